package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madgic/madgic-chat/internal/config"
	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
	"github.com/madgic/madgic-chat/internal/infrastructure/backend"
	"github.com/madgic/madgic-chat/internal/infrastructure/repository/conversation"
	"github.com/madgic/madgic-chat/internal/interfaces/httpserver/handlers"
	"github.com/madgic/madgic-chat/internal/worker"
	"github.com/madgic/madgic-chat/pkg/observability"
	"github.com/madgic/madgic-chat/pkg/sse"
	"github.com/madgic/madgic-chat/pkg/testhelpers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(job func(ctx context.Context)) error {
	job(context.Background())
	return nil
}

type heldDispatcher struct {
	mu   sync.Mutex
	jobs []func(ctx context.Context)
	err  error
}

func (d *heldDispatcher) Dispatch(job func(ctx context.Context)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *heldDispatcher) runAll() {
	d.mu.Lock()
	jobs := d.jobs
	d.jobs = nil
	d.mu.Unlock()
	for _, job := range jobs {
		job(context.Background())
	}
}

type fixture struct {
	fake    *testhelpers.FakeBackend
	handler http.Handler
}

func newFixture(t *testing.T, dispatcher chat.Dispatcher) *fixture {
	t.Helper()

	fake := testhelpers.NewFakeBackend(t)
	cfg := &config.Config{
		ServiceName:     "madgic-chat-test",
		Environment:     "test",
		ShutdownTimeout: time.Second,
	}
	obs, err := observability.Init(context.Background(), observability.DefaultConfig(cfg.ServiceName))
	require.NoError(t, err)

	client := backend.NewClient(backend.Config{BaseURL: fake.URL(), RequestTimeout: 5 * time.Second})
	service := chat.NewService(chat.ServiceConfig{
		DefaultMode:       transcript.ModeAgent,
		DefaultStreamMode: transcript.StreamModeStream,
		BufferFrames:      true,
		TurnTimeout:       5 * time.Second,
	}, client, conversation.NewInMemoryRepository(), zerolog.Nop(), nil, nil)

	server := New(cfg, zerolog.Nop(), obs, handlers.NewProvider(service, dispatcher), client)
	return &fixture{fake: fake, handler: server.Handler()}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createSession(t *testing.T, body string) handlers.SessionResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp handlers.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (f *fixture) getSession(t *testing.T, id string) handlers.SessionResponse {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handlers.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCoreRoutes(t *testing.T) {
	f := newFixture(t, inlineDispatcher{})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)

	rec := f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"healthy"`)

	metrics := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "madgic_http_requests_total")

	f.fake.FailWith(http.StatusServiceUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/readyz", "").Code)
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t, inlineDispatcher{})

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
}

func TestCreateAndUpdateSession(t *testing.T) {
	f := newFixture(t, inlineDispatcher{})

	sess := f.createSession(t, "")
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, transcript.ModeAgent, sess.Mode)
	assert.Equal(t, transcript.StreamModeStream, sess.StreamMode)
	assert.Empty(t, sess.Messages)

	other := f.createSession(t, `{"mode":"chatbot","stream_mode":"normal","thread_id":"t-9"}`)
	assert.Equal(t, transcript.ModeChatbot, other.Mode)
	assert.Equal(t, "t-9", other.ThreadID)

	rec := f.do(t, http.MethodPatch, "/v1/sessions/"+sess.ID, `{"mode":"chatbot"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, transcript.ModeChatbot, f.getSession(t, sess.ID).Mode)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/sessions", `{"mode":"robot"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/v1/sessions/"+sess.ID, `{"stream_mode":"fast"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/sessions/missing", "").Code)
}

func TestSubmitMessage_Background(t *testing.T) {
	f := newFixture(t, inlineDispatcher{})
	f.fake.RespondQuery(map[string]any{"status": "success", "response": "Hello there"})
	sess := f.createSession(t, `{"mode":"chatbot","stream_mode":"normal"}`)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/messages", `{"text":"hi"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted handlers.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, sess.ID, accepted.SessionID)

	view := f.getSession(t, sess.ID)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, transcript.RoleUser, view.Messages[0].Role)
	assert.Equal(t, "hi", view.Messages[0].Content)
	assert.Equal(t, accepted.PlaceholderID, view.Messages[1].ID)
	assert.Equal(t, "Hello there", view.Messages[1].Content)
	assert.False(t, view.Loading)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/messages", `{"text":"   "}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/v1/sessions/missing/messages", `{"text":"hi"}`).Code)
}

func TestSubmitMessage_ConflictWhileBusy(t *testing.T) {
	dispatcher := &heldDispatcher{}
	f := newFixture(t, dispatcher)
	f.fake.RespondQuery(map[string]any{"status": "success", "response": "ok"})
	sess := f.createSession(t, `{"mode":"chatbot","stream_mode":"normal"}`)
	path := "/v1/sessions/" + sess.ID + "/messages"

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, path, `{"text":"first"}`).Code)
	view := f.getSession(t, sess.ID)
	assert.True(t, view.Loading)
	assert.True(t, view.Busy)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, path, `{"text":"second"}`).Code)

	dispatcher.runAll()
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, path, `{"text":"third"}`).Code)
}

func TestSubmitMessage_QueueFull(t *testing.T) {
	f := newFixture(t, &heldDispatcher{err: worker.ErrQueueFull})
	sess := f.createSession(t, `{"mode":"chatbot","stream_mode":"normal"}`)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	view := f.getSession(t, sess.ID)
	assert.False(t, view.Busy)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "Error: worker queue is full", view.Messages[1].Content)
}

func TestSubmitMessage_StreamsAgentTurn(t *testing.T) {
	f := newFixture(t, inlineDispatcher{})
	f.fake.StreamAgent(
		testhelpers.Update(map[string]any{"status": "in_progress", "step": "Plan", "result": "Agent execution result: steps identified"}),
		testhelpers.Update(map[string]any{"status": "success", "is_final": true, "final_result": "All done"}),
	)
	sess := f.createSession(t, "")

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/messages", `{"text":"plan my day","stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := sse.Parse(rec.Body.String())
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, "done", events[len(events)-1].Event)

	var last handlers.SessionResponse
	require.NoError(t, json.Unmarshal([]byte(events[len(events)-2].Data), &last))
	require.Len(t, last.Messages, 3)
	assert.False(t, last.Loading)

	placeholder := last.Messages[1]
	assert.False(t, placeholder.Thinking)
	assert.True(t, placeholder.IsStepsCompleted)
	require.Len(t, placeholder.Steps, 1)
	assert.Equal(t, "Plan", placeholder.Steps[0].Title)
	assert.Equal(t, "steps identified", placeholder.Steps[0].Content)
	assert.True(t, placeholder.Steps[0].IsCompleted)
	assert.False(t, placeholder.Steps[0].IsActive)

	assert.Equal(t, "All done", last.Messages[2].Content)
	assert.Equal(t, transcript.RoleAssistant, last.Messages[2].Role)

	reqs := f.fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/v1/mcp", reqs[0].Path)
	assert.Equal(t, "plan my day", reqs[0].Body["task"])
}

func TestResetAndDeleteSession(t *testing.T) {
	f := newFixture(t, inlineDispatcher{})
	f.fake.RespondQuery(map[string]any{"status": "success", "response": "ok"})
	sess := f.createSession(t, `{"mode":"chatbot","stream_mode":"normal"}`)
	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/messages", `{"text":"hi"}`).Code)

	rec := f.do(t, http.MethodDelete, "/v1/sessions/"+sess.ID+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.getSession(t, sess.ID).Messages)

	list := f.do(t, http.MethodGet, "/v1/sessions", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), sess.ID)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/v1/sessions/"+sess.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/sessions/"+sess.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/v1/sessions/"+sess.ID, "").Code)
}

func TestSessionEvents(t *testing.T) {
	f := newFixture(t, inlineDispatcher{})
	sess := f.createSession(t, "")

	server := httptest.NewServer(f.handler)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/v1/sessions/"+sess.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	var frame strings.Builder
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			break
		}
		frame.WriteString(line)
	}

	events := sse.Parse(frame.String() + "\n")
	require.Len(t, events, 1)
	assert.Equal(t, "transcript", events[0].Event)
	assert.Contains(t, events[0].Data, sess.ID)
}
