// internal/service/campaign_service.go
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/config"
	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/repository"
)

// ContentFetch resolves campaign content ids.
type ContentFetch interface {
	Fetch(ctx context.Context, ids []int64) *model.ContentSnapshot
}

// CampaignService runs welcome, recall and remind campaigns. Each call
// queries matching users, starts a producer that turns them into messages
// and hands the message stream to the Notifier. The call returns once the
// Notifier has accepted the stream; the run then continues in the
// background until the acks are drained or Shutdown is called.
type CampaignService struct {
	UserStats UserStats
	Contents  ContentFetch
	Notifier  Notifier
	Templates *TemplateService
	Runs      repository.CampaignRepositoryInterface // optional

	// Capacity of the per-call message queue.
	Capacity int
	// FullPolicy is config.FullPolicyBlock or config.FullPolicyDrop.
	FullPolicy string
	Log        zerolog.Logger

	now    func() time.Time
	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	active map[string]*runTracker
}

func NewCampaignService(stats UserStats, contents ContentFetch, notifier Notifier, templates *TemplateService, log zerolog.Logger) *CampaignService {
	base, stop := context.WithCancel(context.Background())
	return &CampaignService{
		UserStats:  stats,
		Contents:   contents,
		Notifier:   notifier,
		Templates:  templates,
		Capacity:   1024,
		FullPolicy: config.FullPolicyBlock,
		Log:        log,
		now:        time.Now,
		base:       base,
		stop:       stop,
		active:     make(map[string]*runTracker),
	}
}

func (s *CampaignService) Welcome(ctx context.Context, req *model.WelcomeRequest) (*model.CampaignResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return s.Run(ctx, req)
}

func (s *CampaignService) Recall(ctx context.Context, req *model.RecallRequest) (*model.CampaignResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return s.Run(ctx, req)
}

func (s *CampaignService) Remind(ctx context.Context, req *model.RemindRequest) (*model.CampaignResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return s.Run(ctx, req)
}

// Run executes one campaign call. A statistics query failure aborts the call
// with the query's error; content failures are absorbed by Contents.
func (s *CampaignService) Run(ctx context.Context, req model.CampaignRequest) (*model.CampaignResponse, error) {
	id := req.CampaignID()
	if id == "" {
		return nil, appErrors.InvalidArgument("campaign id is required")
	}
	log := s.Log.With().Str("campaign_id", id).Str("kind", string(req.Kind())).Logger()

	runCtx, cancel := context.WithCancel(s.base)
	detach := context.AfterFunc(ctx, cancel)

	tr, err := s.track(req)
	if err != nil {
		detach()
		cancel()
		return nil, err
	}

	abort := func(err error) (*model.CampaignResponse, error) {
		detach()
		cancel()
		tr.abort(err)
		s.untrack(id)
		log.Warn().Err(err).Msg("campaign aborted")
		return nil, err
	}

	field, days := req.Window()
	query := model.QueryRequest{
		Timestamps: map[string]model.TimeWindow{field: model.LastDays(s.clock()(), days)},
	}
	tr.setState(model.StateQueryIssued)
	users, err := s.UserStats.Query(runCtx, query)
	if err != nil {
		return abort(err)
	}

	snapshot := model.EmptySnapshot()
	if ids := req.Contents(); len(ids) > 0 {
		snapshot = s.Contents.Fetch(runCtx, ids)
	}
	builder := s.Templates.Builder(id, req.Kind(), snapshot)

	capacity := s.Capacity
	if capacity <= 0 {
		capacity = 1024
	}
	queue := make(chan model.SendRequest, capacity)
	acks, err := s.Notifier.Send(runCtx, NewChanStream(queue))
	if err != nil {
		users.Close()
		return abort(err)
	}

	// Accepted: from here on the run is bound to the service, not the caller.
	detach()
	log.Info().Int("contents", snapshot.Len()).Msg("campaign accepted")

	s.wg.Add(2)
	go s.produce(runCtx, tr, users, builder, queue, log)
	go s.drain(runCtx, cancel, tr, acks, log)

	return &model.CampaignResponse{ID: id}, nil
}

// produce builds one message per user, in stream order, and pushes it onto
// queue. It closes queue when done.
func (s *CampaignService) produce(ctx context.Context, tr *runTracker, users UserStream, b *MessageBuilder, queue chan<- model.SendRequest, log zerolog.Logger) {
	defer s.wg.Done()
	defer close(queue)
	defer users.Close()

	tr.setState(model.StateStreaming)
	for users.Next() {
		if ctx.Err() != nil {
			break
		}
		user := users.User()
		msg, err := b.Build(user)
		if err != nil {
			log.Warn().Str("email", user.Email).Err(err).Msg("failed to build message, skipping")
			tr.count(func(r *model.CampaignRun) { r.Dropped++ })
			continue
		}
		if !s.push(ctx, tr, queue, model.SendRequest{Msg: msg}, log) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("message consumer gone, producer stopped")
		tr.abort(err)
		return
	}
	if err := users.Err(); err != nil {
		log.Error().Err(err).Msg("user stats stream failed")
		tr.abort(err)
		return
	}
	tr.setState(model.StateDraining)
}

func (s *CampaignService) push(ctx context.Context, tr *runTracker, queue chan<- model.SendRequest, req model.SendRequest, log zerolog.Logger) bool {
	if s.FullPolicy == config.FullPolicyDrop {
		select {
		case queue <- req:
			tr.count(func(r *model.CampaignRun) { r.Produced++ })
		default:
			log.Warn().Str("message_id", req.Msg.ID()).Msg("message queue full, dropping")
			tr.count(func(r *model.CampaignRun) { r.Dropped++ })
		}
		return true
	}
	select {
	case queue <- req:
		tr.count(func(r *model.CampaignRun) { r.Produced++ })
		return true
	case <-ctx.Done():
		return false
	}
}

// drain consumes the ack stream and completes the run.
func (s *CampaignService) drain(ctx context.Context, cancel context.CancelFunc, tr *runTracker, acks *AckStream, log zerolog.Logger) {
	defer s.wg.Done()
	defer s.untrack(tr.id())
	defer cancel()

	for {
		res, err := acks.Recv(ctx)
		if err != nil {
			if isEOF(err) {
				break
			}
			log.Warn().Err(err).Msg("ack stream terminated")
			tr.abort(err)
			return
		}
		if res.OK() {
			tr.count(func(r *model.CampaignRun) { r.Acked++ })
			continue
		}
		log.Debug().Err(res.Err).Msg("message not accepted")
		tr.count(func(r *model.CampaignRun) { r.Failed++ })
	}

	run := tr.complete()
	log.Info().
		Int("produced", run.Produced).
		Int("dropped", run.Dropped).
		Int("acked", run.Acked).
		Int("failed", run.Failed).
		Str("state", string(run.State)).
		Msg("campaign finished")
}

// GetRun returns the live record of an active run, or the stored one.
func (s *CampaignService) GetRun(ctx context.Context, id string) (*model.CampaignRun, error) {
	s.mu.Lock()
	tr, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		run := tr.snapshot()
		return &run, nil
	}
	if s.Runs == nil {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return s.Runs.GetByID(ctx, id)
}

// Shutdown stops accepting campaigns, cancels every active run and waits for
// their goroutines, or for ctx.
func (s *CampaignService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CampaignService) track(req model.CampaignRequest) (*runTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, appErrors.Unavailable(nil, "campaign service is shutting down")
	}
	if _, dup := s.active[req.CampaignID()]; dup {
		return nil, appErrors.InvalidArgument("campaign %s is already running", req.CampaignID())
	}
	tr := newRunTracker(req, s.Runs, s.Log)
	s.active[req.CampaignID()] = tr
	return tr, nil
}

func (s *CampaignService) untrack(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

func (s *CampaignService) clock() func() time.Time {
	if s.now == nil {
		return time.Now
	}
	return s.now
}
