package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/queue"
	"github.com/unclebandit/crm-backend/internal/sender"
)

const retryHeader = "x-retry-count"

// consumer delivers messages published by the server's amqp sink.
type consumer struct {
	Sink       queue.Sink
	Publisher  sender.Publisher
	Queue      string
	Ledger     queue.Ledger // optional
	MaxRetries int
	Log        zerolog.Logger
}

// handle delivers one queued message. A failed delivery is republished with
// an incremented retry header until MaxRetries is reached, then rejected.
func (c *consumer) handle(ctx context.Context, d amqp.Delivery) {
	req, err := model.UnmarshalSendRequest(d.Body)
	if err != nil || req.Msg == nil {
		c.Log.Warn().Err(err).Str("message_id", d.MessageId).Msg("invalid job, rejecting")
		d.Reject(false)
		return
	}
	msg := req.Msg
	retries := retryCount(d.Headers)

	err = c.Sink.Send(ctx, msg)
	if err == nil {
		c.record(ctx, msg, model.MessageStatusSent, "", retries)
		d.Ack(false)
		return
	}

	log := c.Log.With().Str("message_id", msg.ID()).Int("retry", retries).Logger()
	if retries >= c.MaxRetries {
		log.Error().Err(err).Msg("delivery failed, giving up")
		c.record(ctx, msg, model.MessageStatusFailed, err.Error(), retries)
		d.Reject(false)
		return
	}

	log.Warn().Err(err).Msg("delivery failed, requeueing")
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(retries + 1)
	pubErr := c.Publisher.Publish("", c.Queue, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now().UTC(),
		Type:         d.Type,
		Headers:      headers,
		Body:         d.Body,
	})
	if pubErr != nil {
		log.Error().Err(pubErr).Msg("republish failed, nacking")
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func (c *consumer) record(ctx context.Context, msg model.Message, status, lastErr string, retries int) {
	if c.Ledger == nil {
		return
	}
	now := time.Now().UTC()
	entry := &model.OutboundMessage{
		MessageID:  msg.ID(),
		Channel:    msg.Channel(),
		Recipients: model.RecipientsOf(msg),
		Status:     status,
		LastError:  lastErr,
		RetryCount: retries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.Ledger.Record(ctx, entry); err != nil {
		c.Log.Error().Err(err).Str("message_id", msg.ID()).Msg("failed to record delivery")
	}
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
