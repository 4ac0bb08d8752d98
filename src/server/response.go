package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	todoagent "github.com/Protocol-Lattice/todo-agent"
	"github.com/Protocol-Lattice/todo-agent/src/models"
)

const maxRequestBodyBytes = 1 << 20

const chatFailureMessage = "Failed to process chat request"

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeChatError maps a failure that happened before the stream started.
// Missing credentials name the variable to set; anything else is an upstream
// failure with the cause in details.
func writeChatError(w http.ResponseWriter, err error) {
	var ce *models.CredentialError
	switch {
	case errors.As(err, &ce):
		writeError(w, http.StatusInternalServerError, ce.Error())
	case errors.Is(err, todoagent.ErrEmptyConversation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: chatFailureMessage, Details: err.Error()})
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
