// internal/model/outbound_message.go
package model

import "time"

// Delivery ledger statuses
const (
	MessageStatusPending = "pending"
	MessageStatusSent    = "sent"
	MessageStatusFailed  = "failed"
)

// OutboundMessage is the ledger entry the delivery worker keeps per message.
type OutboundMessage struct {
	MessageID  string    `db:"message_id" json:"message_id"`
	Channel    string    `db:"channel" json:"channel"`
	Recipients string    `db:"recipients" json:"recipients"`
	Status     string    `db:"status" json:"status"`
	LastError  string    `db:"last_error,omitempty" json:"last_error,omitempty"`
	RetryCount int       `db:"retry_count" json:"retry_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
