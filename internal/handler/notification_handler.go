// internal/handler/notification_handler.go
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/service"
)

type LedgerReader interface {
	GetByID(ctx context.Context, messageID string) (*model.OutboundMessage, error)
}

// NotificationHandler exposes the dispatcher and the delivery ledger.
type NotificationHandler struct {
	Dispatcher service.Notifier
	Ledger     LedgerReader // optional
	Log        zerolog.Logger
}

type ackLine struct {
	Ack   *model.DeliveryAck `json:"ack,omitempty"`
	Error *errorBody         `json:"error,omitempty"`
}

// Send reads NDJSON envelopes and writes one ack line per envelope, in
// order, while the request body is still being read.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.EnableFullDuplex(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.Log.Debug().Err(err).Msg("full duplex unavailable")
	}

	ctx := r.Context()
	acks, err := h.Dispatcher.Send(ctx, newRequestStream(r.Body))
	if err != nil {
		writeError(w, appErrors.HTTPStatus(err), err.Error())
		return
	}

	out := newNDJSONWriter(w)
	n := 0
	for {
		res, err := acks.Recv(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.Log.Warn().Int("acks", n).Err(err).Msg("notification stream terminated")
			out.write(ackLine{Error: errorOf(err)})
			return
		}
		line := ackLine{Ack: res.Ack}
		if res.Err != nil {
			line = ackLine{Error: errorOf(res.Err)}
		}
		if err := out.write(line); err != nil {
			h.Log.Warn().Err(err).Msg("client went away")
			return
		}
		n++
	}
	h.Log.Debug().Int("acks", n).Msg("notification stream finished")
}

// GetMessage returns the delivery ledger entry of a message.
func (h *NotificationHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		writeError(w, http.StatusNotFound, "delivery ledger disabled")
		return
	}
	id := chi.URLParam(r, "id")
	msg, err := h.Ledger.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, appErrors.HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
