// Package testhelpers provides an in-process fake of the task backend for tests.
package testhelpers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/madgic/madgic-chat/pkg/sse"
)

// Frame is one SSE frame the fake streams. A string Payload is sent verbatim,
// anything else is JSON-encoded.
type Frame struct {
	Event   string
	Payload any
}

// Update is shorthand for an `update` frame.
func Update(payload any) Frame { return Frame{Event: "update", Payload: payload} }

// ErrorFrame is shorthand for an `error` frame.
func ErrorFrame(message string) Frame {
	return Frame{Event: "error", Payload: map[string]any{"status": "error", "error": message, "is_final": true}}
}

// Request is a request the fake received.
type Request struct {
	Method string
	Path   string
	Body   map[string]any
}

// FakeBackend serves the task backend endpoints from canned responses.
type FakeBackend struct {
	server *httptest.Server

	mu          sync.Mutex
	agentFrames []Frame
	queryFrames []Frame
	agentSync   any
	query       any
	health      string
	failWith    int
	requests    []Request
}

// NewFakeBackend starts a fake backend that is closed when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()

	f := &FakeBackend{health: "healthy"}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/mcp", f.streamHandler(func() []Frame { return f.agentFrames }))
	mux.HandleFunc("/api/v1/query/stream", f.streamHandler(func() []Frame { return f.queryFrames }))
	mux.HandleFunc("/api/v1/mcp/sync", f.jsonHandler(func() any { return f.agentSync }))
	mux.HandleFunc("/api/v1/query", f.jsonHandler(func() any { return f.query }))
	mux.HandleFunc("/health", f.jsonHandler(func() any { return map[string]string{"status": f.health} }))

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// URL is the base URL of the fake.
func (f *FakeBackend) URL() string { return f.server.URL }

// StreamAgent sets the frames returned by the agent stream endpoint.
func (f *FakeBackend) StreamAgent(frames ...Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agentFrames = frames
}

// StreamQuery sets the frames returned by the chatbot stream endpoint.
func (f *FakeBackend) StreamQuery(frames ...Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryFrames = frames
}

// RespondAgentSync sets the body of the non-streaming agent endpoint.
func (f *FakeBackend) RespondAgentSync(body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agentSync = body
}

// RespondQuery sets the body of the non-streaming chatbot endpoint.
func (f *FakeBackend) RespondQuery(body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = body
}

// FailWith makes every endpoint answer with the given status code.
func (f *FakeBackend) FailWith(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = code
}

// Requests returns the requests received so far.
func (f *FakeBackend) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func (f *FakeBackend) record(r *http.Request) int {
	body := map[string]any{}
	if data, err := io.ReadAll(r.Body); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
	return f.failWith
}

func (f *FakeBackend) streamHandler(frames func() []Frame) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if code := f.record(r); code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}

		sw, err := sse.NewWriter(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		f.mu.Lock()
		out := frames()
		f.mu.Unlock()

		for _, fr := range out {
			if raw, ok := fr.Payload.(string); ok {
				err = sw.SendRaw(fr.Event, raw)
			} else {
				err = sw.Send(fr.Event, fr.Payload)
			}
			if err != nil {
				return
			}
		}
	}
}

func (f *FakeBackend) jsonHandler(body func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if code := f.record(r); code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}

		f.mu.Lock()
		out := body()
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if raw, ok := out.(string); ok {
			_, _ = io.WriteString(w, raw)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
