package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredential is matched by every CredentialError.
var ErrMissingCredential = errors.New("missing provider credential")

// CredentialError reports that none of the provider's key variables are set.
type CredentialError struct {
	Provider string
	EnvVars  []string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: missing API key, set %s", e.Provider, strings.Join(e.EnvVars, " or "))
}

func (e *CredentialError) Unwrap() error { return ErrMissingCredential }
