package client

import (
	"encoding/json"
	"fmt"
)

// envelope is the wrapper around every backend response body.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// decodeEnvelope parses body. ok is false when body is not an envelope.
func decodeEnvelope(body []byte) (env envelope, ok bool) {
	if len(body) == 0 {
		return envelope{}, false
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

// failed reports an explicit success=false.
func (e envelope) failed() bool {
	return e.Success != nil && !*e.Success
}

// message returns the most specific human-readable text.
func (e envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// unwrap decodes data into out.
func (e envelope) unwrap(out any) error {
	if out == nil {
		return nil
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("response envelope has no data")
	}
	if string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
