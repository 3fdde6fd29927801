// internal/service/run_tracker.go
package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/repository"
)

const persistTimeout = 5 * time.Second

// runTracker holds the CampaignRun of one call. State changes are persisted
// to the store; counters only on state changes.
type runTracker struct {
	mu    sync.Mutex
	run   model.CampaignRun
	store repository.CampaignRepositoryInterface
	log   zerolog.Logger
}

func newRunTracker(req model.CampaignRequest, store repository.CampaignRepositoryInterface, log zerolog.Logger) *runTracker {
	now := time.Now().UTC()
	t := &runTracker{
		run: model.CampaignRun{
			ID:        req.CampaignID(),
			Kind:      req.Kind(),
			State:     model.StateStart,
			CreatedAt: now,
			UpdatedAt: now,
		},
		store: store,
		log:   log,
	}
	t.persist(t.run, true)
	return t
}

func (t *runTracker) id() string { return t.run.ID }

func (t *runTracker) setState(state model.RunState) {
	t.mu.Lock()
	if t.run.State.Terminal() {
		t.mu.Unlock()
		return
	}
	t.run.State = state
	t.run.UpdatedAt = time.Now().UTC()
	run := t.run
	t.mu.Unlock()
	t.persist(run, false)
}

func (t *runTracker) count(fn func(r *model.CampaignRun)) {
	t.mu.Lock()
	fn(&t.run)
	t.mu.Unlock()
}

func (t *runTracker) abort(err error) {
	t.mu.Lock()
	if t.run.State.Terminal() {
		t.mu.Unlock()
		return
	}
	t.run.State = model.StateAborted
	t.run.Error = err.Error()
	t.run.UpdatedAt = time.Now().UTC()
	run := t.run
	t.mu.Unlock()
	t.persist(run, false)
}

// complete marks the run Completed unless it was aborted and persists the
// final counters.
func (t *runTracker) complete() model.CampaignRun {
	t.mu.Lock()
	if !t.run.State.Terminal() {
		t.run.State = model.StateCompleted
	}
	t.run.UpdatedAt = time.Now().UTC()
	run := t.run
	t.mu.Unlock()
	t.persist(run, false)
	return run
}

func (t *runTracker) snapshot() model.CampaignRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run
}

func (t *runTracker) persist(run model.CampaignRun, create bool) {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if create {
		err = t.store.Create(ctx, &run)
	} else {
		err = t.store.Update(ctx, &run)
	}
	if err != nil {
		t.log.Warn().Str("campaign_id", run.ID).Str("state", string(run.State)).Err(err).Msg("failed to persist campaign run")
	}
}
