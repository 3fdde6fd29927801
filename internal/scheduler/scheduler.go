// Package scheduler fires configured campaigns on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/model"
)

// Runner is implemented by service.CampaignService.
type Runner interface {
	Run(ctx context.Context, req model.CampaignRequest) (*model.CampaignResponse, error)
}

type Scheduler struct {
	runner  Runner
	parser  cron.Parser
	c       *cron.Cron
	log     zerolog.Logger
	timeout time.Duration

	mu      sync.Mutex
	started bool
}

func New(runner Runner, log zerolog.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		runner:  runner,
		parser:  parser,
		c:       cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC)),
		log:     log,
		timeout: 30 * time.Second,
	}
}

// BuildRequest returns the campaign request for one firing of sc.
func BuildRequest(sc config.ScheduleConfig, id string) (model.CampaignRequest, error) {
	switch model.CampaignKind(sc.Kind) {
	case model.KindWelcome:
		return &model.WelcomeRequest{ID: id, IntervalDays: sc.IntervalDays, ContentIDs: sc.ContentIDs}, nil
	case model.KindRecall:
		return &model.RecallRequest{ID: id, LastVisitIntervalDays: sc.IntervalDays, ContentIDs: sc.ContentIDs}, nil
	case model.KindRemind:
		return &model.RemindRequest{ID: id, LastVisitIntervalDays: sc.IntervalDays}, nil
	}
	return nil, fmt.Errorf("schedule %q: unknown kind %q", sc.Name, sc.Kind)
}

// Add registers sc. Every firing runs the campaign under a fresh id.
func (s *Scheduler) Add(sc config.ScheduleConfig) (cron.EntryID, error) {
	if _, err := BuildRequest(sc, ""); err != nil {
		return 0, err
	}
	sched, err := s.parser.Parse(sc.Spec)
	if err != nil {
		return 0, fmt.Errorf("schedule %q: bad spec %q: %w", sc.Name, sc.Spec, err)
	}
	id := s.c.Schedule(sched, cron.FuncJob(func() { s.fire(sc) }))
	s.log.Info().Str("schedule", sc.Name).Str("spec", sc.Spec).Str("kind", sc.Kind).Msg("campaign scheduled")
	return id, nil
}

func (s *Scheduler) fire(sc config.ScheduleConfig) {
	req, err := BuildRequest(sc, uuid.NewString())
	if err != nil {
		s.log.Error().Str("schedule", sc.Name).Err(err).Msg("scheduled campaign skipped")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	resp, err := s.runner.Run(ctx, req)
	if err != nil {
		s.log.Error().Str("schedule", sc.Name).Str("campaign_id", req.CampaignID()).Err(err).Msg("scheduled campaign failed")
		return
	}
	s.log.Info().Str("schedule", sc.Name).Str("campaign_id", resp.ID).Msg("scheduled campaign accepted")
}

func (s *Scheduler) Len() int { return len(s.c.Entries()) }

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.c.Start()
}

// Stop halts the schedule and waits for running jobs, or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	select {
	case <-s.c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
