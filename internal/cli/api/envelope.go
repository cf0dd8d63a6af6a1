package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the uniform {success, data, message} wrapper returned by every portal endpoint.
// Raw keeps the whole body: some endpoints (login) put their payload next to success instead of in data.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// DecodeData unmarshals the data field into v
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// DecodeBody unmarshals the whole response body into v
func (e *Envelope) DecodeBody(v any) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	env.Raw = append(json.RawMessage(nil), body...)
	return &env, nil
}

// envelopeMessage extracts message from an error body, if the body is an envelope at all
func envelopeMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &env) != nil {
		return ""
	}
	return env.Message
}

// DefaultErrorMessage is used when a failed call carries no message of its own
const DefaultErrorMessage = "API request failed"

// ErrUnsupportedMethod is a caller bug: no request is sent
var ErrUnsupportedMethod = errors.New("unsupported HTTP method")

// ErrInvalidQuery is a caller bug: GET data must map to named parameters. It arrives
// inside an *ApplicationError like every other failure.
var ErrInvalidQuery = errors.New("invalid query parameters")

// ApplicationError is a failed call. Message is what the portal said, or DefaultErrorMessage.
// Err is the transport or status error underneath, nil for a success:false envelope.
type ApplicationError struct {
	Message string
	Err     error
}

func (e *ApplicationError) Error() string {
	return e.Message
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}
