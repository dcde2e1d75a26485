package lambda

import (
	"context"
	"encoding/json"
)

// Event is the input of [EchoHandler].
type Event struct {
	Message string `json:"message"`
}

// EchoHandler returns the message of the event.
func EchoHandler(_ context.Context, event Event) (string, error) {
	return event.Message, nil
}

// StreamHandler returns its raw input unchanged.
func StreamHandler(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return payload, nil
}
