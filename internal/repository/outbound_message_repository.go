package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

// OutboundMessageRepository is the delivery ledger.
type OutboundMessageRepository struct {
	DB Executor
}

// Record inserts msg or updates the existing row with the same message id.
func (r *OutboundMessageRepository) Record(ctx context.Context, msg *model.OutboundMessage) error {
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	query := `
		INSERT INTO outbound_messages
		(message_id, channel, recipients, status, last_error, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (message_id) DO UPDATE
		SET status = EXCLUDED.status,
		    last_error = EXCLUDED.last_error,
		    retry_count = EXCLUDED.retry_count,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.DB.ExecContext(ctx, query,
		msg.MessageID,
		msg.Channel,
		msg.Recipients,
		msg.Status,
		msg.LastError,
		msg.RetryCount,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	return err
}

// GetByID fetches a ledger entry by message id
func (r *OutboundMessageRepository) GetByID(ctx context.Context, messageID string) (*model.OutboundMessage, error) {
	query := `
		SELECT message_id, channel, recipients, status, last_error, retry_count, created_at, updated_at
		FROM outbound_messages
		WHERE message_id=$1
	`
	var msg model.OutboundMessage
	err := r.DB.QueryRowContext(ctx, query, messageID).Scan(
		&msg.MessageID,
		&msg.Channel,
		&msg.Recipients,
		&msg.Status,
		&msg.LastError,
		&msg.RetryCount,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("message %s not found", messageID)
		}
		return nil, err
	}
	return &msg, nil
}
