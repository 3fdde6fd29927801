// internal/model/envelope.go
package model

import (
	"encoding/json"
	"fmt"
)

// Envelope is the JSON form of a SendRequest used on NDJSON streams and the
// broker. Exactly one payload field is set, selected by Type.
type Envelope struct {
	Type  string        `json:"type"`
	Email *EmailMessage `json:"email,omitempty"`
	Sms   *SmsMessage   `json:"sms,omitempty"`
	InApp *InAppMessage `json:"in_app,omitempty"`
}

func EnvelopeOf(m Message) (Envelope, error) {
	switch m := m.(type) {
	case *EmailMessage:
		return Envelope{Type: m.Channel(), Email: m}, nil
	case *SmsMessage:
		return Envelope{Type: m.Channel(), Sms: m}, nil
	case *InAppMessage:
		return Envelope{Type: m.Channel(), InApp: m}, nil
	}
	return Envelope{}, fmt.Errorf("unsupported message type %T", m)
}

// Message returns the carried message, or nil when the type tag is unknown
// or its payload is missing.
func (e Envelope) Message() Message {
	switch e.Type {
	case "email":
		if e.Email != nil {
			return e.Email
		}
	case "sms":
		if e.Sms != nil {
			return e.Sms
		}
	case "in_app":
		if e.InApp != nil {
			return e.InApp
		}
	}
	return nil
}

func MarshalMessage(m Message) ([]byte, error) {
	env, err := EnvelopeOf(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalSendRequest decodes one envelope. Syntax errors are returned;
// an unknown type yields a SendRequest with a nil Msg.
func UnmarshalSendRequest(data []byte) (SendRequest, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return SendRequest{}, err
	}
	return SendRequest{Msg: env.Message()}, nil
}
