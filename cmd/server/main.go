// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/unclebandit/crm-backend/internal/cache"
	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/controller"
	"github.com/unclebandit/crm-backend/internal/db"
	"github.com/unclebandit/crm-backend/internal/handler"
	"github.com/unclebandit/crm-backend/internal/logger"
	"github.com/unclebandit/crm-backend/internal/queue"
	"github.com/unclebandit/crm-backend/internal/repository"
	"github.com/unclebandit/crm-backend/internal/scheduler"
	"github.com/unclebandit/crm-backend/internal/sender"
	"github.com/unclebandit/crm-backend/internal/service"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer conn.Close()

	userStatRepo := &repository.UserStatRepository{DB: conn}
	contentRepo := &repository.ContentRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	outboundRepo := &repository.OutboundMessageRepository{DB: conn}

	fetcher := &service.ContentFetcher{Source: contentRepo, Log: log}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, content cache disabled")
		} else {
			fetcher.Cache = cache.NewContentCache(rdb, cfg.Redis.ContentTTL)
		}
	}

	// Delivery side
	q := queue.NewDeliveryQueue(queue.Options{
		Capacity: cfg.Queue.DeliveryCapacity,
		Policy:   enqueuePolicy(cfg.Queue.EnqueuePolicy),
		Timeout:  cfg.Queue.EnqueueTimeout,
	})
	sink, closeSink, err := newSink(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("sink", cfg.Delivery.Sink).Msg("failed to set up delivery sink")
	}
	defer closeSink()

	worker := queue.NewWorker(q, sink, log.With().Str("component", "worker").Logger())
	worker.MaxRetries = cfg.Delivery.MaxRetries
	if cfg.Delivery.RatePerSecond > 0 {
		worker.Limiter = rate.NewLimiter(rate.Limit(cfg.Delivery.RatePerSecond), cfg.Delivery.RatePerSecond)
	}
	if cfg.Delivery.RecordLedger {
		worker.Ledger = outboundRepo
	}
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		// The worker stops when the queue is closed and drained.
		if err := worker.Run(context.Background()); err != nil {
			log.Error().Err(err).Msg("delivery worker stopped")
		}
	}()

	dispatcher := service.NewDispatcher(q, cfg.Queue.MessageCapacity, log.With().Str("component", "dispatcher").Logger())

	// Campaign side
	templates, err := service.NewTemplateService(cfg.Server.SenderEmail, cfg.Campaigns)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid campaign templates")
	}
	userStats := &service.UserStatsService{Repo: userStatRepo, Log: log}
	campaignService := service.NewCampaignService(userStats, fetcher, dispatcher, templates, log.With().Str("component", "campaigns").Logger())
	campaignService.Capacity = cfg.Queue.MessageCapacity
	campaignService.FullPolicy = cfg.Queue.FullPolicy
	campaignService.Runs = campaignRepo

	sched := scheduler.New(campaignService, log.With().Str("component", "scheduler").Logger())
	for _, sc := range cfg.Schedules {
		if _, err := sched.Add(sc); err != nil {
			log.Fatal().Err(err).Str("schedule", sc.Name).Msg("invalid schedule")
		}
	}
	sched.Start()

	campaignController := &controller.CampaignController{CampaignService: campaignService, Log: log}
	campaignHandler := &handler.CampaignHandler{Service: campaignService, Log: log}
	streamHandler := &handler.StreamHandler{Stats: userStats, Contents: contentRepo, Log: log}
	notificationHandler := &handler.NotificationHandler{Dispatcher: dispatcher, Ledger: outboundRepo, Log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Campaign routes
	r.Post("/campaigns/welcome", campaignController.Welcome)
	r.Post("/campaigns/recall", campaignController.Recall)
	r.Post("/campaigns/remind", campaignController.Remind)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaignHandler)

	// Streaming collaborators
	r.Post("/user-stats/query", streamHandler.QueryUserStats)
	r.Post("/metadata/materialize", streamHandler.Materialize)
	r.Post("/notifications/send", notificationHandler.Send)
	r.Get("/notifications/{id}", notificationHandler.GetMessage)

	r.Get("/healthz", handler.Health)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("sink", cfg.Delivery.Sink).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
	if err := campaignService.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("campaign shutdown")
	}
	q.Close()
	select {
	case <-workerDone:
		log.Info().Interface("stats", worker.Stats()).Msg("delivery queue drained")
	case <-shutdownCtx.Done():
		log.Warn().Int("pending", q.Len()).Msg("delivery queue not drained before deadline")
	}
}

func enqueuePolicy(name string) queue.Policy {
	switch name {
	case config.EnqueueBlock:
		return queue.PolicyBlock
	case config.EnqueueFailFast:
		return queue.PolicyFailFast
	default:
		return queue.PolicyWait
	}
}

// newSink builds the configured delivery sink and a func releasing its
// resources.
func newSink(ctx context.Context, cfg *config.Config, log zerolog.Logger) (queue.Sink, func(), error) {
	switch cfg.Delivery.Sink {
	case config.SinkAMQP:
		conn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("open channel: %w", err)
		}
		if _, err := sender.DeclareQueue(ch, cfg.AMQP.Queue); err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("declare queue: %w", err)
		}
		return sender.NewAMQPSink(ch, cfg.AMQP.Queue), func() {
			ch.Close()
			conn.Close()
		}, nil
	case config.SinkSES:
		s, err := sender.NewSESSink(ctx, cfg.SES, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return sender.NewLogSink(cfg.Delivery.Latency, log), func() {}, nil
	}
}
