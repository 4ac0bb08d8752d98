package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	todoagent "github.com/Protocol-Lattice/todo-agent"
	"github.com/Protocol-Lattice/todo-agent/src/dispatch"
)

// Data stream protocol (v1) part codes.
const (
	partText       = "0"
	partData       = "2"
	partError      = "3"
	partToolCall   = "9"
	partToolResult = "a"
	partFinishStep = "e"
	partFinish     = "d"
)

const dataStreamHeader = "X-Vercel-AI-Data-Stream"

type toolResultPart struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

type finishStepPart struct {
	FinishReason string `json:"finishReason"`
	IsContinued  bool   `json:"isContinued"`
}

type finishPart struct {
	FinishReason string `json:"finishReason"`
}

// dataStreamWriter writes one `<code>:<json>\n` line per event and flushes
// after each so tokens reach the client as they arrive.
type dataStreamWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newDataStreamWriter(w http.ResponseWriter) *dataStreamWriter {
	flusher, _ := w.(http.Flusher)
	return &dataStreamWriter{w: w, flusher: flusher}
}

func (d *dataStreamWriter) part(code string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s part: %w", code, err)
	}
	if _, err := fmt.Fprintf(d.w, "%s:%s\n", code, b); err != nil {
		return err
	}
	if d.flusher != nil {
		d.flusher.Flush()
	}
	return nil
}

// event writes ev. Events without a wire representation are skipped.
func (d *dataStreamWriter) event(ev todoagent.Event) error {
	switch ev.Kind {
	case todoagent.EventText:
		if ev.Text == "" {
			return nil
		}
		return d.part(partText, ev.Text)
	case todoagent.EventToolCall:
		if ev.ToolCall == nil {
			return nil
		}
		return d.part(partToolCall, ev.ToolCall)
	case todoagent.EventToolResult:
		if ev.ToolResult == nil {
			return nil
		}
		if err := d.part(partToolResult, toolResultPart{ToolCallID: ev.ToolResult.ToolCallID, Result: ev.ToolResult.Result}); err != nil {
			return err
		}
		if ev.ToolResult.Action != nil {
			return d.part(partData, []dispatch.ExecutionResult{*ev.ToolResult.Action})
		}
		return nil
	case todoagent.EventAction:
		if ev.Action == nil {
			return nil
		}
		return d.part(partData, []dispatch.ExecutionResult{*ev.Action})
	case todoagent.EventStepFinish:
		return d.part(partFinishStep, finishStepPart{FinishReason: ev.FinishReason, IsContinued: ev.Continued})
	case todoagent.EventFinish:
		return d.part(partFinish, finishPart{FinishReason: ev.FinishReason})
	case todoagent.EventError:
		msg := ev.Text
		if msg == "" && ev.Err != nil {
			msg = ev.Err.Error()
		}
		return d.part(partError, msg)
	}
	return nil
}
