// internal/model/message.go
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is the closed set of outbound notifications: *EmailMessage,
// *SmsMessage and *InAppMessage.
type Message interface {
	ID() string
	Channel() string
	// Accept hands the concrete message to the matching visitor method.
	Accept(v MessageVisitor) (DeliveryAck, error)
}

// MessageVisitor must grow a method for every new Message variant.
type MessageVisitor interface {
	VisitEmail(m *EmailMessage) (DeliveryAck, error)
	VisitSms(m *SmsMessage) (DeliveryAck, error)
	VisitInApp(m *InAppMessage) (DeliveryAck, error)
}

type EmailMessage struct {
	MessageID  string   `json:"message_id"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

type SmsMessage struct {
	MessageID  string   `json:"message_id"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Body       string   `json:"body"`
}

type InAppMessage struct {
	MessageID string `json:"message_id"`
	Recipient string `json:"recipient"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

func (m *EmailMessage) ID() string      { return m.MessageID }
func (m *EmailMessage) Channel() string { return "email" }
func (m *EmailMessage) Accept(v MessageVisitor) (DeliveryAck, error) {
	return v.VisitEmail(m)
}

func (m *SmsMessage) ID() string      { return m.MessageID }
func (m *SmsMessage) Channel() string { return "sms" }
func (m *SmsMessage) Accept(v MessageVisitor) (DeliveryAck, error) {
	return v.VisitSms(m)
}

func (m *InAppMessage) ID() string      { return m.MessageID }
func (m *InAppMessage) Channel() string { return "in_app" }
func (m *InAppMessage) Accept(v MessageVisitor) (DeliveryAck, error) {
	return v.VisitInApp(m)
}

// NewMessageID returns a random v4 UUID string.
func NewMessageID() string { return uuid.NewString() }

// NewEmail builds an email with a fresh message id.
func NewEmail(sender string, recipients []string, subject, body string) *EmailMessage {
	return &EmailMessage{
		MessageID:  NewMessageID(),
		Sender:     sender,
		Recipients: recipients,
		Subject:    subject,
		Body:       body,
	}
}

func NewSms(sender string, recipients []string, body string) *SmsMessage {
	return &SmsMessage{MessageID: NewMessageID(), Sender: sender, Recipients: recipients, Body: body}
}

func NewInApp(recipient, title, body string) *InAppMessage {
	return &InAppMessage{MessageID: NewMessageID(), Recipient: recipient, Title: title, Body: body}
}

// RecipientsOf joins the addressees of m for logging and the ledger.
func RecipientsOf(m Message) string {
	switch m := m.(type) {
	case *EmailMessage:
		return strings.Join(m.Recipients, ",")
	case *SmsMessage:
		return strings.Join(m.Recipients, ",")
	case *InAppMessage:
		return m.Recipient
	}
	return ""
}

// SendRequest is one inbound dispatch item. A nil Msg is an unrecognized
// variant.
type SendRequest struct {
	Msg Message
}

type DeliveryAck struct {
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

// DispatchResult carries either an Ack or an Err, never both.
type DispatchResult struct {
	Ack *DeliveryAck
	Err error
}

func (r DispatchResult) OK() bool { return r.Err == nil }
