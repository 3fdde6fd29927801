package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/service"
)

type nopQueue struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (q *nopQueue) Enqueue(ctx context.Context, msg model.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func envelope(t *testing.T, m model.Message) string {
	t.Helper()
	b, err := model.MarshalMessage(m)
	require.NoError(t, err)
	return string(b)
}

func decodeLines(t *testing.T, body io.Reader) []map[string]json.RawMessage {
	t.Helper()
	var out []map[string]json.RawMessage
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		var line map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), "line %q", sc.Text())
		out = append(out, line)
	}
	require.NoError(t, sc.Err())
	return out
}

func newNotificationHandler(q service.Enqueuer) *NotificationHandler {
	return &NotificationHandler{
		Dispatcher: service.NewDispatcher(q, 8, zerolog.Nop()),
		Log:        zerolog.Nop(),
	}
}

func TestSendOneResultPerLine(t *testing.T) {
	q := &nopQueue{}
	h := newNotificationHandler(q)

	email := model.NewEmail("crm@acme.io", []string{"a@acme.io"}, "Welcome", "hi")
	sms := model.NewSms("ACME", []string{"+254700000000"}, "hi")
	body := strings.Join([]string{
		envelope(t, email),
		`{"type":"fax","fax":{}}`,
		"",
		"not json",
		envelope(t, sms),
	}, "\n")

	w := httptest.NewRecorder()
	h.Send(w, httptest.NewRequest(http.MethodPost, "/notifications/send", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ndjsonContentType, w.Header().Get("Content-Type"))
	lines := decodeLines(t, w.Body)
	require.Len(t, lines, 4)

	var ack model.DeliveryAck
	require.NoError(t, json.Unmarshal(lines[0]["ack"], &ack))
	assert.Equal(t, email.ID(), ack.MessageID)

	for _, i := range []int{1, 2} {
		var e errorBody
		require.NoError(t, json.Unmarshal(lines[i]["error"], &e))
		assert.Equal(t, "invalid_argument", e.Code)
	}

	require.NoError(t, json.Unmarshal(lines[3]["ack"], &ack))
	assert.Equal(t, sms.ID(), ack.MessageID)
	assert.Len(t, q.msgs, 2)
}

func TestSendIsFullDuplex(t *testing.T) {
	h := newNotificationHandler(&nopQueue{})
	srv := httptest.NewServer(http.HandlerFunc(h.Send))
	defer srv.Close()

	pr, pw := io.Pipe()
	req, err := http.NewRequest(http.MethodPost, srv.URL, pr)
	require.NoError(t, err)

	first := model.NewInApp("u-1", "t", "b")
	second := model.NewInApp("u-2", "t", "b")
	firstLine := envelope(t, first) + "\n"
	go func() {
		io.WriteString(pw, firstLine)
	}()

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	rd := bufio.NewReader(resp.Body)

	// The first ack arrives while the request body is still open.
	line, err := rd.ReadBytes('\n')
	require.NoError(t, err)
	assert.Contains(t, string(line), first.ID())

	io.WriteString(pw, envelope(t, second)+"\n")
	line, err = rd.ReadBytes('\n')
	require.NoError(t, err)
	assert.Contains(t, string(line), second.ID())

	pw.Close()
	_, err = rd.ReadBytes('\n')
	assert.ErrorIs(t, err, io.EOF)
}

type fakeRuns struct {
	runs map[string]*model.CampaignRun
}

func (f fakeRuns) GetRun(ctx context.Context, id string) (*model.CampaignRun, error) {
	if run, ok := f.runs[id]; ok {
		return run, nil
	}
	return nil, appErrors.NewCampaignNotFound(id)
}

func TestGetCampaignHandler(t *testing.T) {
	h := &CampaignHandler{
		Service: fakeRuns{runs: map[string]*model.CampaignRun{
			"c-1": {ID: "c-1", Kind: model.KindWelcome, State: model.StateCompleted, Acked: 3},
		}},
		Log: zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Get("/campaigns/{id}", h.GetCampaignHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/campaigns/c-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var run model.CampaignRun
	require.NoError(t, json.NewDecoder(w.Body).Decode(&run))
	assert.Equal(t, model.StateCompleted, run.State)
	assert.Equal(t, 3, run.Acked)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/campaigns/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type usersStream struct {
	users []model.UserRecord
	err   error
	cur   model.UserRecord
}

func (s *usersStream) Next() bool {
	if len(s.users) == 0 {
		return false
	}
	s.cur, s.users = s.users[0], s.users[1:]
	return true
}
func (s *usersStream) User() model.UserRecord { return s.cur }
func (s *usersStream) Err() error             { return s.err }
func (s *usersStream) Close() error           { return nil }

type fakeStats struct {
	stream *usersStream
	err    error
}

func (f fakeStats) Query(ctx context.Context, req model.QueryRequest) (service.UserStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func TestQueryUserStatsStreamsRecords(t *testing.T) {
	h := &StreamHandler{
		Stats: fakeStats{stream: &usersStream{
			users: []model.UserRecord{{Email: "a@acme.io", Name: "A"}, {Email: "b@acme.io", Name: "B"}},
			err:   errors.New("connection lost"),
		}},
		Log: zerolog.Nop(),
	}

	w := httptest.NewRecorder()
	h.QueryUserStats(w, httptest.NewRequest(http.MethodPost, "/user-stats/query",
		strings.NewReader(`{"timestamps":{"created_at":{"lower":"2024-01-01T00:00:00Z"}}}`)))

	require.Equal(t, http.StatusOK, w.Code)
	lines := decodeLines(t, w.Body)
	require.Len(t, lines, 3)
	assert.JSONEq(t, `"a@acme.io"`, string(lines[0]["email"]))
	assert.JSONEq(t, `"b@acme.io"`, string(lines[1]["email"]))
	assert.Contains(t, string(lines[2]["error"]), "connection lost")
}

func TestQueryUserStatsRejectsUnknownField(t *testing.T) {
	h := &StreamHandler{Stats: fakeStats{err: appErrors.InvalidArgument("unknown timestamp field %q", "x")}, Log: zerolog.Nop()}
	w := httptest.NewRecorder()
	h.QueryUserStats(w, httptest.NewRequest(http.MethodPost, "/user-stats/query", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type chanSource struct {
	results []model.ContentResult
	err     error
}

func (c chanSource) Materialize(ctx context.Context, ids []int64) (<-chan model.ContentResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(chan model.ContentResult, len(c.results))
	for _, r := range c.results {
		out <- r
	}
	close(out)
	return out, nil
}

func TestMaterializeStreamsItemsAndErrors(t *testing.T) {
	h := &StreamHandler{
		Contents: chanSource{results: []model.ContentResult{
			{Content: model.Content{ID: 1, Name: "Intro"}},
			{Err: errors.New("bad row")},
			{Content: model.Content{ID: 3, Name: "Outro"}},
		}},
		Log: zerolog.Nop(),
	}
	w := httptest.NewRecorder()
	h.Materialize(w, httptest.NewRequest(http.MethodPost, "/metadata/materialize", strings.NewReader(`{"content_ids":[1,2,3]}`)))

	lines := decodeLines(t, w.Body)
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]["content"]), `"Intro"`)
	assert.Contains(t, string(lines[1]["error"]), "bad row")
	assert.Contains(t, string(lines[2]["content"]), `"Outro"`)
}

func TestMaterializeUnavailable(t *testing.T) {
	h := &StreamHandler{Contents: chanSource{err: appErrors.Unavailable(errors.New("refused"), "materialize contents")}, Log: zerolog.Nop()}
	w := httptest.NewRecorder()
	h.Materialize(w, httptest.NewRequest(http.MethodPost, "/metadata/materialize", strings.NewReader(`{"content_ids":[1]}`)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type fakeLedger map[string]*model.OutboundMessage

func (f fakeLedger) GetByID(ctx context.Context, id string) (*model.OutboundMessage, error) {
	if m, ok := f[id]; ok {
		return m, nil
	}
	return nil, appErrors.NotFound("message %s not found", id)
}

func TestGetMessage(t *testing.T) {
	h := &NotificationHandler{
		Ledger: fakeLedger{"m-1": {MessageID: "m-1", Status: model.MessageStatusSent, UpdatedAt: time.Now()}},
		Log:    zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Get("/notifications/{id}", h.GetMessage)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/m-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"sent"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/m-2", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
