package terminal

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
	"github.com/madgic/madgic-chat/internal/infrastructure/backend"
	"github.com/madgic/madgic-chat/pkg/testhelpers"
)

func newSession(t *testing.T, mode transcript.Mode, stream transcript.StreamMode) (*chat.Session, *testhelpers.FakeBackend) {
	t.Helper()
	fake := testhelpers.NewFakeBackend(t)
	client := backend.NewClient(backend.Config{BaseURL: fake.URL(), RequestTimeout: 5 * time.Second})
	sess := chat.NewSession(chat.Options{
		Mode:         mode,
		StreamMode:   stream,
		BufferFrames: true,
	}, chat.Dependencies{Backend: client, Logger: zerolog.Nop()})
	return sess, fake
}

func agentFrames() []testhelpers.Frame {
	return []testhelpers.Frame{
		testhelpers.Update(map[string]any{"status": "in_progress", "step": "Plan", "result": "Agent execution result: steps identified"}),
		testhelpers.Update(map[string]any{"status": "in_progress", "step": "Search", "result": "three hits"}),
		testhelpers.Update(map[string]any{"status": "success", "is_final": true, "final_result": "All done"}),
	}
}

func TestResolveSuggestion(t *testing.T) {
	tests := []struct {
		name  string
		mode  transcript.Mode
		input string
		want  string
		ok    bool
	}{
		{"agent first", transcript.ModeAgent, "1", "Plan a trip to Italy", true},
		{"agent last", transcript.ModeAgent, " 4 ", "Create a workout plan for beginners", true},
		{"chatbot last", transcript.ModeChatbot, "6", "What are the potential impacts of climate change?", true},
		{"zero", transcript.ModeAgent, "0", "", false},
		{"out of range", transcript.ModeAgent, "5", "", false},
		{"not a number", transcript.ModeAgent, "hello", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveSuggestion(tt.mode, tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinter_AgentTurn(t *testing.T) {
	sess, fake := newSession(t, transcript.ModeAgent, transcript.StreamModeStream)
	fake.StreamAgent(agentFrames()...)

	var out bytes.Buffer
	remove := sess.Observe(NewPrinter(&out, 60))
	defer remove()

	require.NoError(t, sess.Submit(context.Background(), "plan my day"))

	text := out.String()
	assert.NotContains(t, text, "plan my day")
	thinking := strings.Index(text, skeletonText)
	plan := strings.Index(text, "Plan")
	search := strings.Index(text, "Search")
	done := strings.Index(text, "Steps completed (2)")
	answer := strings.Index(text, "All done")

	require.True(t, thinking >= 0 && plan >= 0 && search >= 0 && done >= 0 && answer >= 0, text)
	assert.Less(t, thinking, plan)
	assert.Less(t, plan, search)
	assert.Less(t, search, done)
	assert.Less(t, done, answer)
	assert.Equal(t, 1, strings.Count(text, "steps identified"))
	assert.Equal(t, 1, strings.Count(text, "three hits"))
	assert.NotContains(t, text, "```")
	assert.NotContains(t, text, "**Plan**")
	assert.Equal(t, 1, strings.Count(text, "All done"))
}

func TestPrinter_ChatbotStreamingPrintsDeltas(t *testing.T) {
	sess, fake := newSession(t, transcript.ModeChatbot, transcript.StreamModeStream)
	fake.StreamQuery(
		testhelpers.Update(map[string]any{"status": "streaming", "chunk": "Hel"}),
		testhelpers.Update(map[string]any{"status": "streaming", "chunk": "lo"}),
		testhelpers.Update(map[string]any{"status": "success", "is_final": true, "full_response": "Hello"}),
	)

	var out bytes.Buffer
	remove := sess.Observe(NewPrinter(&out, 60))
	defer remove()

	require.NoError(t, sess.Submit(context.Background(), "hi"))

	text := out.String()
	assert.Contains(t, text, skeletonText)
	assert.Contains(t, text, "Hello\n")
	assert.Equal(t, 1, strings.Count(text, "Hello"))
}

func TestPrinter_Error(t *testing.T) {
	sess, fake := newSession(t, transcript.ModeAgent, transcript.StreamModeStream)
	fake.FailWith(http.StatusInternalServerError)

	var out bytes.Buffer
	remove := sess.Observe(NewPrinter(&out, 60))
	defer remove()

	require.NoError(t, sess.Submit(context.Background(), "hi"))
	assert.Contains(t, out.String(), "Error: API error: 500 Internal Server Error")
}

func TestPrinter_Render(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{}, 60)
	view := chat.View{Messages: transcript.Transcript{
		{ID: "u", Role: transcript.RoleUser, Content: "plan"},
		{
			ID:               "p",
			Role:             transcript.RoleAssistant,
			Content:          transcript.AppendThinking("", "Plan", "hidden once complete"),
			IsStepsCompleted: true,
			Mode:             transcript.ModeAgent,
			Steps:            []transcript.Step{{Title: "Plan", Content: "hidden once complete"}},
		},
		{ID: "a", Role: transcript.RoleAssistant, Content: "answer"},
		{ID: "t", Role: transcript.RoleAssistant, Thinking: true},
	}}

	text := p.Render(view)
	assert.Contains(t, text, "You")
	assert.Contains(t, text, "plan")
	assert.Contains(t, text, "✓ Plan")
	assert.NotContains(t, text, "hidden once complete")
	assert.NotContains(t, text, "```")
	assert.Contains(t, text, "Steps completed (1)")
	assert.Contains(t, text, "answer")
	assert.Contains(t, text, skeletonText)
}

func TestREPL_SuggestionsAndCommands(t *testing.T) {
	sess, fake := newSession(t, transcript.ModeAgent, transcript.StreamModeStream)
	fake.StreamAgent(agentFrames()...)

	in := strings.NewReader("1\n/mode\n/stream normal\n/stream sideways\n/bogus\n/quit\nnever sent\n")
	var out bytes.Buffer
	repl := NewREPL(sess, in, &out, zerolog.Nop(), Options{Width: 60})

	require.NoError(t, repl.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "How can I help you today?")
	assert.Contains(t, text, "> Plan a trip to Italy")
	assert.Contains(t, text, "All done")
	assert.Contains(t, text, "mode: chatbot")
	assert.Contains(t, text, "stream mode: normal")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Contains(t, text, "invalid")

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Plan a trip to Italy", reqs[0].Body["task"])

	view := sess.Snapshot()
	assert.Equal(t, transcript.ModeChatbot, view.Mode)
	assert.Equal(t, transcript.StreamModeNormal, view.StreamMode)
}

func TestREPL_NewStartsOver(t *testing.T) {
	sess, fake := newSession(t, transcript.ModeChatbot, transcript.StreamModeNormal)
	fake.RespondQuery(map[string]any{"status": "success", "response": "Hi!"})

	var ran int
	in := strings.NewReader("hello\n/new\n")
	var out bytes.Buffer
	repl := NewREPL(sess, in, &out, zerolog.Nop(), Options{
		Runner: func(ctx context.Context, run *chat.PendingTurn) {
			ran++
			run.Run(ctx)
		},
	})

	require.NoError(t, repl.Run(context.Background()))
	assert.Equal(t, 1, ran)
	assert.Contains(t, out.String(), "Hi!")
	assert.Empty(t, sess.Snapshot().Messages)
	assert.Equal(t, 2, strings.Count(out.String(), "How can I help you today?"))
}

func TestREPL_RestoredTranscriptIsRendered(t *testing.T) {
	fake := testhelpers.NewFakeBackend(t)
	client := backend.NewClient(backend.Config{BaseURL: fake.URL(), RequestTimeout: 5 * time.Second})
	sess := chat.RestoreSession(chat.Options{Mode: transcript.ModeChatbot}, chat.Dependencies{Backend: client, Logger: zerolog.Nop()},
		transcript.Transcript{
			{ID: "u", Role: transcript.RoleUser, Content: "earlier question"},
			{ID: "a", Role: transcript.RoleAssistant, Content: "earlier answer"},
		})

	var out bytes.Buffer
	require.NoError(t, NewREPL(sess, strings.NewReader(""), &out, zerolog.Nop(), Options{}).Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "earlier question")
	assert.Contains(t, text, "earlier answer")
	assert.NotContains(t, text, "How can I help you today?")
}

func TestAsk(t *testing.T) {
	sess, fake := newSession(t, transcript.ModeChatbot, transcript.StreamModeNormal)
	fake.RespondQuery(map[string]any{"status": "success", "response": "42"})

	var out bytes.Buffer
	require.NoError(t, Ask(context.Background(), sess, "meaning?", &out, 60))
	assert.Contains(t, out.String(), "42")

	fake.RespondQuery(map[string]any{"status": "error", "error": "quota exceeded"})
	err := Ask(context.Background(), sess, "again?", &out, 60)
	assert.EqualError(t, err, "quota exceeded")

	assert.ErrorIs(t, Ask(context.Background(), sess, " ", &out, 60), chat.ErrEmptyInput)
}
