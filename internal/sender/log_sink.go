// internal/sender/log_sink.go
package sender

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/model"
)

// LogSink simulates an external provider: it waits Latency and logs the message.
type LogSink struct {
	Latency time.Duration
	Log     zerolog.Logger
}

func NewLogSink(latency time.Duration, log zerolog.Logger) *LogSink {
	return &LogSink{Latency: latency, Log: log}
}

func (s *LogSink) Send(ctx context.Context, msg model.Message) error {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	s.Log.Info().
		Str("message_id", msg.ID()).
		Str("channel", msg.Channel()).
		Str("recipients", model.RecipientsOf(msg)).
		Msg("message sent")
	return nil
}
