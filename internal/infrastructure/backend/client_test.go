package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/pkg/sse"
	"github.com/madgic/madgic-chat/pkg/testhelpers"
)

func newTestClient(fake *testhelpers.FakeBackend) *Client {
	return NewClient(Config{BaseURL: fake.URL(), RequestTimeout: 5 * time.Second})
}

func TestClient_StreamAgentTask(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.StreamAgent(
		testhelpers.Update(map[string]any{"status": "in_progress", "step": "Plan", "result": "ok"}),
		testhelpers.Update(map[string]any{"status": "success", "is_final": true, "final_result": "done"}),
	)
	client := newTestClient(fake)

	body, err := client.StreamAgentTask(context.Background(), chat.TaskRequest{Task: "hello", ThreadID: "t1"})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	events := sse.Parse(string(raw))
	require.Len(t, events, 2)
	assert.Equal(t, "update", events[0].Event)
	assert.JSONEq(t, `{"status":"in_progress","step":"Plan","result":"ok"}`, events[0].Data)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/api/v1/mcp", reqs[0].Path)
	assert.Equal(t, map[string]any{"task": "hello", "thread_id": "t1"}, reqs[0].Body)
}

func TestClient_StreamQueryUsesStreamEndpoint(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.StreamQuery(testhelpers.Update(map[string]any{"status": "streaming", "chunk": "Hi"}))
	client := newTestClient(fake)
	temp := 0.5

	body, err := client.StreamQuery(context.Background(), chat.QueryRequest{Prompt: "hi", Model: "m", Temperature: &temp})
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, body)
	require.NoError(t, body.Close())

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/v1/query/stream", reqs[0].Path)
	assert.Equal(t, map[string]any{"prompt": "hi", "model": "m", "temperature": 0.5}, reqs[0].Body)
}

func TestClient_StatusErrors(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.FailWith(http.StatusBadGateway)
	client := newTestClient(fake)
	ctx := context.Background()

	_, err := client.StreamAgentTask(ctx, chat.TaskRequest{Task: "x"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.EqualError(t, err, "API error: 502 Bad Gateway")

	_, err = client.Query(ctx, chat.QueryRequest{Prompt: "x"})
	assert.EqualError(t, err, "API error: 502 Bad Gateway")

	_, err = client.RunAgentTask(ctx, chat.TaskRequest{Task: "x"})
	assert.EqualError(t, err, "API error: 502 Bad Gateway")

	_, err = client.Health(ctx)
	assert.EqualError(t, err, "API error: 502 Bad Gateway")
}

func TestClient_StatusErrorKeepsReasonPhrase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 503 Backend Warming Up\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
		_ = buf.Flush()
	}))
	t.Cleanup(server.Close)
	client := NewClient(Config{BaseURL: server.URL, RequestTimeout: 5 * time.Second})
	ctx := context.Background()

	_, err := client.StreamAgentTask(ctx, chat.TaskRequest{Task: "x"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.EqualError(t, err, "API error: 503 Backend Warming Up")

	_, err = client.Query(ctx, chat.QueryRequest{Prompt: "x"})
	assert.EqualError(t, err, "API error: 503 Backend Warming Up")
}

func TestClient_Query(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.RespondQuery(map[string]any{"status": "success", "response": "Hello"})
	client := newTestClient(fake)

	res, err := client.Query(context.Background(), chat.QueryRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, &chat.QueryResult{Status: "success", Response: "Hello"}, res)
}

func TestClient_RunAgentTaskKeepsResultOrder(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.RespondAgentSync(`{"status":"success","result":{"results":{"zeta":"first","alpha":{"n":1},"mid":"third"},"final_result":"done"},"error":null}`)
	client := newTestClient(fake)

	res, err := client.RunAgentTask(context.Background(), chat.TaskRequest{Task: "go"})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	require.NotNil(t, res.FinalResult)
	assert.Equal(t, "done", *res.FinalResult)

	require.Len(t, res.Results, 3)
	assert.Equal(t, "zeta", res.Results[0].Name)
	assert.Equal(t, "alpha", res.Results[1].Name)
	assert.JSONEq(t, `{"n":1}`, string(res.Results[1].Value))
	assert.Equal(t, "mid", res.Results[2].Name)
}

func TestClient_RunAgentTaskError(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	fake.RespondAgentSync(`{"status":"error","error":"tool crashed"}`)
	client := newTestClient(fake)

	res, err := client.RunAgentTask(context.Background(), chat.TaskRequest{Task: "go"})
	require.NoError(t, err)
	assert.Equal(t, "tool crashed", res.Error)
	assert.Nil(t, res.FinalResult)
	assert.Empty(t, res.Results)
}

func TestClient_Health(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	client := newTestClient(fake)

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status)
}

func TestClient_TransportError(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", RequestTimeout: time.Second})

	_, err := client.StreamAgentTask(context.Background(), chat.TaskRequest{Task: "x"})
	assert.Error(t, err)
}
