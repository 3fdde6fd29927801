package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unclebandit/crm-backend/internal/model"
)

var (
	ErrQueueFull   = errors.New("delivery queue is full")
	ErrQueueClosed = errors.New("delivery queue is closed")
)

// Policy decides what Enqueue does when the queue is full.
type Policy string

const (
	// PolicyBlock waits until there is room or the caller's context ends.
	PolicyBlock Policy = "block"
	// PolicyWait waits at most Options.Timeout, then fails with ErrQueueFull.
	PolicyWait Policy = "wait"
	// PolicyFailFast fails with ErrQueueFull immediately.
	PolicyFailFast Policy = "fail_fast"
)

type Options struct {
	Capacity int
	Policy   Policy
	Timeout  time.Duration
}

// DeliveryQueue is the bounded hand-off between dispatch handlers and the
// single delivery Worker. It is created once per process and shared by all
// dispatch calls; only the Worker in this package receives from it.
type DeliveryQueue struct {
	ch      chan model.Message
	done    chan struct{}
	once    sync.Once
	policy  Policy
	timeout time.Duration
}

func NewDeliveryQueue(opts Options) *DeliveryQueue {
	if opts.Capacity <= 0 {
		opts.Capacity = 1024 * 100
	}
	if opts.Policy == "" {
		opts.Policy = PolicyWait
	}
	if opts.Policy == PolicyWait && opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &DeliveryQueue{
		ch:      make(chan model.Message, opts.Capacity),
		done:    make(chan struct{}),
		policy:  opts.Policy,
		timeout: opts.Timeout,
	}
}

// Enqueue hands msg to the worker according to the queue's full policy.
func (q *DeliveryQueue) Enqueue(ctx context.Context, msg model.Message) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	default:
	}

	switch q.policy {
	case PolicyFailFast:
		return ErrQueueFull
	case PolicyWait:
		timer := time.NewTimer(q.timeout)
		defer timer.Stop()
		select {
		case q.ch <- msg:
			return nil
		case <-timer.C:
			return ErrQueueFull
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrQueueClosed
		}
	default:
		select {
		case q.ch <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrQueueClosed
		}
	}
}

func (q *DeliveryQueue) Len() int { return len(q.ch) }

func (q *DeliveryQueue) Cap() int { return cap(q.ch) }

// Close stops accepting messages. The worker drains what is buffered.
func (q *DeliveryQueue) Close() {
	q.once.Do(func() { close(q.done) })
}
