// internal/service/dispatcher.go
package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

// Notifier accepts a stream of send requests and returns their acks.
type Notifier interface {
	Send(ctx context.Context, in RequestStream) (*AckStream, error)
}

// Enqueuer is the write side of the shared delivery queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg model.Message) error
}

// Dispatcher demultiplexes inbound messages by variant, hands each one to
// the delivery queue and acknowledges it. One goroutine per call reads the
// inbound stream; every item gets exactly one result before the next item
// is read.
type Dispatcher struct {
	Queue  Enqueuer
	Buffer int
	Log    zerolog.Logger

	now func() time.Time
}

func NewDispatcher(q Enqueuer, buffer int, log zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Dispatcher{Queue: q, Buffer: buffer, Log: log, now: time.Now}
}

func (d *Dispatcher) Send(ctx context.Context, in RequestStream) (*AckStream, error) {
	if in == nil {
		return nil, appErrors.InvalidArgument("nil request stream")
	}
	out := make(chan model.DispatchResult, d.Buffer)
	acks := &AckStream{results: out}
	go d.run(ctx, in, out, acks)
	return acks, nil
}

func (d *Dispatcher) run(ctx context.Context, in RequestStream, out chan<- model.DispatchResult, acks *AckStream) {
	defer close(out)

	h := &deliveryHandler{ctx: ctx, queue: d.Queue, now: d.clock()}
	var n int
	for {
		req, err := in.Recv(ctx)
		if errors.Is(err, io.EOF) {
			d.Log.Debug().Int("items", n).Msg("dispatch stream finished")
			return
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				acks.err = ctxErr
			} else {
				acks.err = appErrors.Unavailable(err, "inbound stream failed")
			}
			d.Log.Warn().Int("items", n).Err(err).Msg("dispatch stream terminated")
			return
		}
		n++

		res := d.handle(h, req)
		if res.Err != nil {
			d.Log.Debug().Int("position", n).Err(res.Err).Msg("dispatch item failed")
		}
		select {
		case out <- res:
		case <-ctx.Done():
			acks.err = ctx.Err()
			return
		}
	}
}

func (d *Dispatcher) handle(h *deliveryHandler, req model.SendRequest) model.DispatchResult {
	if req.Msg == nil {
		return model.DispatchResult{Err: appErrors.InvalidArgument("unrecognized message variant")}
	}
	ack, err := req.Msg.Accept(h)
	if err != nil {
		return model.DispatchResult{Err: err}
	}
	return model.DispatchResult{Ack: &ack}
}

func (d *Dispatcher) clock() func() time.Time {
	if d.now == nil {
		return time.Now
	}
	return d.now
}

// deliveryHandler is the per-call MessageVisitor.
type deliveryHandler struct {
	ctx   context.Context
	queue Enqueuer
	now   func() time.Time
}

func (h *deliveryHandler) VisitEmail(m *model.EmailMessage) (model.DeliveryAck, error) {
	return h.deliver(m)
}

func (h *deliveryHandler) VisitSms(m *model.SmsMessage) (model.DeliveryAck, error) {
	return h.deliver(m)
}

func (h *deliveryHandler) VisitInApp(m *model.InAppMessage) (model.DeliveryAck, error) {
	return h.deliver(m)
}

func (h *deliveryHandler) deliver(m model.Message) (model.DeliveryAck, error) {
	// the queue owns m once enqueued
	id := m.ID()
	if err := h.queue.Enqueue(h.ctx, m); err != nil {
		return model.DeliveryAck{}, appErrors.Internal(err, "enqueue "+m.Channel()+" "+id)
	}
	return model.DeliveryAck{MessageID: id, Timestamp: h.now().UTC()}, nil
}
