package tool

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of one tool call. It serialises flat: Data keys sit
// alongside success, so handlers shape their payload exactly as the model
// sees it.
type Result struct {
	Success   bool
	Data      map[string]any
	Error     string
	Traceback string
}

func (r Result) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, len(r.Data)+3)
	for key, value := range r.Data {
		payload[key] = value
	}
	payload["success"] = r.Success
	if r.Error != "" {
		payload["error"] = r.Error
	}
	if r.Traceback != "" {
		payload["traceback"] = r.Traceback
	}
	return json.Marshal(payload)
}

// JSON renders the result for a tool-role message. Marshal failures degrade
// to a generic failure payload rather than propagating.
func (r Result) JSON() json.RawMessage {
	data, err := json.Marshal(r)
	if err != nil {
		return json.RawMessage(`{"success":false,"error":"failed to encode tool result"}`)
	}
	return data
}

// Succeed builds a passing result carrying the given payload fields.
func Succeed(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Message builds the common {success, message} shape.
func Message(format string, args ...any) Result {
	return Succeed(map[string]any{"message": fmt.Sprintf(format, args...)})
}

// Fail builds a failed result with the given error text.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// FailErr wraps a handler error into the standard failure shape.
func FailErr(err error) Result {
	return Fail("Tool execution failed: %v", err)
}
