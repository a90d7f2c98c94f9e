package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidEnvelope = errors.New("invalid_envelope")

// DecodeEnvelope parses and validates a posted envelope. The payload must be
// a JSON object and the sender must be named.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidEnvelope)
	}
	if e.User == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidEnvelope)
	}
	payload := bytes.TrimSpace(e.Message)
	if len(payload) == 0 || payload[0] != '{' {
		return fmt.Errorf("%w: message must be an object", ErrInvalidEnvelope)
	}
	return nil
}
