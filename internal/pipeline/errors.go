package pipeline

import (
	"encoding/json"
	"fmt"
)

// TransportError covers request failures against the processing
// service: connection problems, non-2xx responses, and responses
// missing required fields. Callers log it to the owning slot and keep
// going; it never takes down the other slot's flow.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: server said %q (status %d)", e.Op, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// serverMessage extracts the human-readable error from a failure body.
// The service answers with either {"detail": ...} (validation errors)
// or {"message": ...} depending on the endpoint.
func serverMessage(body []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return payload.Message
}
