package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unclebandit/crm-backend/internal/model"
)

var ErrWorkerRunning = errors.New("delivery worker already running")

// Sink performs the external send.
type Sink interface {
	Send(ctx context.Context, msg model.Message) error
}

// Ledger records delivery outcomes. Optional.
type Ledger interface {
	Record(ctx context.Context, msg *model.OutboundMessage) error
}

// Worker is the single consumer of a DeliveryQueue.
type Worker struct {
	Queue      *DeliveryQueue
	Sink       Sink
	Ledger     Ledger
	Limiter    *rate.Limiter
	MaxRetries int
	Backoff    time.Duration
	Log        zerolog.Logger

	running atomic.Bool
	sent    atomic.Int64
	failed  atomic.Int64
}

// Constructor
func NewWorker(q *DeliveryQueue, sink Sink, log zerolog.Logger) *Worker {
	return &Worker{
		Queue:      q,
		Sink:       sink,
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		Log:        log,
	}
}

// Run consumes the queue until ctx ends or the queue is closed and drained.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrWorkerRunning
	}
	defer w.running.Store(false)

	w.Log.Info().Int("capacity", w.Queue.Cap()).Msg("delivery worker started")
	for {
		select {
		case <-ctx.Done():
			w.Log.Info().Int("pending", w.Queue.Len()).Msg("delivery worker stopped")
			return ctx.Err()
		case <-w.Queue.done:
			w.drain(ctx)
			w.Log.Info().Msg("delivery worker drained")
			return nil
		case msg := <-w.Queue.ch:
			w.deliver(ctx, msg)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case msg := <-w.Queue.ch:
			w.deliver(ctx, msg)
		default:
			return
		}
	}
}

// deliver sends msg with retries; the outcome is only logged and recorded.
func (w *Worker) deliver(ctx context.Context, msg model.Message) {
	if w.Limiter != nil {
		if err := w.Limiter.Wait(ctx); err != nil {
			return
		}
	}

	var lastErr error
	attempts := 0
	for {
		attempts++
		lastErr = w.Sink.Send(ctx, msg)
		if lastErr == nil || attempts > w.MaxRetries {
			break
		}
		w.Log.Debug().
			Str("message_id", msg.ID()).
			Int("attempt", attempts).
			Err(lastErr).
			Msg("delivery failed, retrying")
		if !sleep(ctx, time.Duration(attempts)*w.Backoff) {
			lastErr = ctx.Err()
			break
		}
	}

	entry := &model.OutboundMessage{
		MessageID:  msg.ID(),
		Channel:    msg.Channel(),
		Recipients: model.RecipientsOf(msg),
		Status:     model.MessageStatusSent,
		RetryCount: attempts - 1,
	}
	if lastErr != nil {
		w.failed.Add(1)
		entry.Status = model.MessageStatusFailed
		entry.LastError = lastErr.Error()
		w.Log.Warn().
			Str("message_id", msg.ID()).
			Str("channel", msg.Channel()).
			Int("attempts", attempts).
			Err(lastErr).
			Msg("delivery permanently failed")
	} else {
		w.sent.Add(1)
		w.Log.Debug().
			Str("message_id", msg.ID()).
			Str("channel", msg.Channel()).
			Msg("message delivered")
	}

	if w.Ledger != nil {
		if err := w.Ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
			w.Log.Warn().Str("message_id", msg.ID()).Err(err).Msg("failed to record delivery")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Stats returns delivery counters.
func (w *Worker) Stats() map[string]int64 {
	return map[string]int64{
		"sent":    w.sent.Load(),
		"failed":  w.failed.Load(),
		"pending": int64(w.Queue.Len()),
	}
}
