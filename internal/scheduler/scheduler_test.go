package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/model"
)

type fakeRunner struct {
	mu   sync.Mutex
	reqs []model.CampaignRequest
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, req model.CampaignRequest) (*model.CampaignResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.CampaignResponse{ID: req.CampaignID()}, nil
}

func TestBuildRequest(t *testing.T) {
	req, err := BuildRequest(config.ScheduleConfig{Kind: "recall", IntervalDays: 30, ContentIDs: []int64{1}}, "r-1")
	require.NoError(t, err)
	recall, ok := req.(*model.RecallRequest)
	require.True(t, ok)
	assert.Equal(t, uint32(30), recall.LastVisitIntervalDays)
	assert.Equal(t, "r-1", recall.ID)

	req, err = BuildRequest(config.ScheduleConfig{Kind: "remind", IntervalDays: 3, ContentIDs: []int64{1}}, "m-1")
	require.NoError(t, err)
	assert.Empty(t, req.Contents())

	_, err = BuildRequest(config.ScheduleConfig{Name: "x", Kind: "promo"}, "p")
	assert.Error(t, err)
}

func TestAddValidates(t *testing.T) {
	s := New(&fakeRunner{}, zerolog.Nop())

	_, err := s.Add(config.ScheduleConfig{Name: "bad-spec", Spec: "every tuesday", Kind: "welcome"})
	assert.Error(t, err)
	_, err = s.Add(config.ScheduleConfig{Name: "bad-kind", Spec: "@daily", Kind: "promo"})
	assert.Error(t, err)

	_, err = s.Add(config.ScheduleConfig{Name: "daily", Spec: "0 9 * * *", Kind: "welcome", IntervalDays: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestFireUsesFreshIDs(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, zerolog.Nop())
	sc := config.ScheduleConfig{Name: "weekly", Spec: "@weekly", Kind: "welcome", IntervalDays: 7}

	s.fire(sc)
	s.fire(sc)

	require.Len(t, runner.reqs, 2)
	assert.NotEmpty(t, runner.reqs[0].CampaignID())
	assert.NotEqual(t, runner.reqs[0].CampaignID(), runner.reqs[1].CampaignID())
	assert.Equal(t, model.KindWelcome, runner.reqs[0].Kind())
}

func TestFireSurvivesRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("query failed")}
	s := New(runner, zerolog.Nop())
	s.fire(config.ScheduleConfig{Name: "r", Kind: "remind"})
	assert.Len(t, runner.reqs, 1)
}

func TestStartStop(t *testing.T) {
	s := New(&fakeRunner{}, zerolog.Nop())
	s.Start()
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
