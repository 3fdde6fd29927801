package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/crm-backend/internal/config"
	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

// sliceStream yields users, then reports err.
type sliceStream struct {
	users  []model.UserRecord
	err    error
	i      int
	cur    model.UserRecord
	closed atomic.Bool
}

func (s *sliceStream) Next() bool {
	if s.i >= len(s.users) {
		return false
	}
	s.cur = s.users[s.i]
	s.i++
	return true
}

func (s *sliceStream) User() model.UserRecord { return s.cur }

func (s *sliceStream) Err() error {
	if s.i >= len(s.users) {
		return s.err
	}
	return nil
}

func (s *sliceStream) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeStats struct {
	mu        sync.Mutex
	users     []model.UserRecord
	streamErr error
	err       error
	last      model.QueryRequest
	stream    *sliceStream
}

func (f *fakeStats) Query(ctx context.Context, req model.QueryRequest) (UserStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	f.stream = &sliceStream{users: f.users, err: f.streamErr}
	return f.stream, nil
}

func (f *fakeStats) lastQuery() model.QueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// recordingQueue records enqueued messages; failAt fails the n-th call (1-based).
type recordingQueue struct {
	mu     sync.Mutex
	msgs   []model.Message
	failAt map[int]error
	calls  int
}

func (q *recordingQueue) Enqueue(ctx context.Context, msg model.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if err := q.failAt[q.calls]; err != nil {
		return err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) messages() []model.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.Message(nil), q.msgs...)
}

type memRunStore struct {
	mu   sync.Mutex
	runs map[string]model.CampaignRun
}

func newMemRunStore() *memRunStore {
	return &memRunStore{runs: map[string]model.CampaignRun{}}
}

func (m *memRunStore) Create(ctx context.Context, run *model.CampaignRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memRunStore) Update(ctx context.Context, run *model.CampaignRun) error {
	return m.Create(ctx, run)
}

func (m *memRunStore) GetByID(ctx context.Context, id string) (*model.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return &run, nil
}

// gatedStream holds every Recv until gate is closed.
type gatedStream struct {
	inner RequestStream
	gate  <-chan struct{}
}

func (g *gatedStream) Recv(ctx context.Context) (model.SendRequest, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return model.SendRequest{}, ctx.Err()
	}
	return g.inner.Recv(ctx)
}

type gatedNotifier struct {
	d    *Dispatcher
	gate chan struct{}
}

func (n *gatedNotifier) Send(ctx context.Context, in RequestStream) (*AckStream, error) {
	return n.d.Send(ctx, &gatedStream{inner: in, gate: n.gate})
}

type staticContents struct {
	items []model.Content
}

func (s staticContents) Fetch(ctx context.Context, ids []int64) *model.ContentSnapshot {
	return model.NewContentSnapshot(s.items)
}

func makeUsers(n int) []model.UserRecord {
	users := make([]model.UserRecord, n)
	for i := range users {
		users[i] = model.UserRecord{Email: fmt.Sprintf("user%03d@acme.io", i), Name: fmt.Sprintf("User %d", i)}
	}
	return users
}

func newTestService(t *testing.T, stats UserStats, contents ContentFetch, notifier Notifier, runs *memRunStore) *CampaignService {
	t.Helper()
	tpl, err := NewTemplateService("crm@acme.io", config.CampaignsConfig{})
	require.NoError(t, err)
	svc := NewCampaignService(stats, contents, notifier, tpl, zerolog.Nop())
	if runs != nil {
		svc.Runs = runs
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func waitForState(t *testing.T, svc *CampaignService, id string, want model.RunState) *model.CampaignRun {
	t.Helper()
	var run *model.CampaignRun
	require.Eventually(t, func() bool {
		r, err := svc.GetRun(context.Background(), id)
		if err != nil {
			return false
		}
		run = r
		return r.State == want
	}, 3*time.Second, 5*time.Millisecond, "campaign %s never reached %s", id, want)
	return run
}
