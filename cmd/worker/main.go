// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/db"
	"github.com/unclebandit/crm-backend/internal/logger"
	"github.com/unclebandit/crm-backend/internal/queue"
	"github.com/unclebandit/crm-backend/internal/repository"
	"github.com/unclebandit/crm-backend/internal/sender"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log).With().Str("component", "notification-worker").Logger()
	if cfg.AMQP.URL == "" {
		log.Fatal().Msg("amqp.url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ledger queue.Ledger
	if cfg.Delivery.RecordLedger {
		conn, err := db.Open(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("database unavailable")
		}
		defer conn.Close()
		ledger = &repository.OutboundMessageRepository{DB: conn}
	}

	sink, err := newSink(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up sink")
	}

	// Connect to RabbitMQ
	conn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open a channel")
	}
	defer ch.Close()

	q, err := sender.DeclareQueue(ch, cfg.AMQP.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare queue")
	}
	if err := ch.Qos(16, 0, false); err != nil {
		log.Fatal().Err(err).Msg("failed to set qos")
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	c := &consumer{
		Sink:       sink,
		Publisher:  ch,
		Queue:      q.Name,
		Ledger:     ledger,
		MaxRetries: cfg.Delivery.MaxRetries,
		Log:        log,
	}

	log.Info().Str("queue", q.Name).Msg("worker running, waiting for messages")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopped")
			return
		case d, ok := <-msgs:
			if !ok {
				log.Error().Msg("delivery channel closed")
				return
			}
			c.handle(ctx, d)
		}
	}
}

// newSink picks SES when configured, otherwise the log sink.
func newSink(ctx context.Context, cfg *config.Config, log zerolog.Logger) (queue.Sink, error) {
	if cfg.SES.Region != "" {
		return sender.NewSESSink(ctx, cfg.SES, log)
	}
	return sender.NewLogSink(cfg.Delivery.Latency, log), nil
}
