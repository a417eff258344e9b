package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/madgic/madgic-chat/internal/domain/transcript"
	"github.com/madgic/madgic-chat/pkg/observability"
	"github.com/madgic/madgic-chat/pkg/sse"
)

const (
	readChunkSize = 4096

	// EventUpdate and EventError are the SSE event names the backend emits.
	EventUpdate = "update"
	EventError  = "error"

	outcomeCompleted  = "completed"
	outcomeFailed     = "failed"
	outcomeIncomplete = "incomplete"

	unknownError = "Unknown error"
)

var tracer = otel.Tracer("github.com/madgic/madgic-chat/internal/domain/chat")

// QueryOptions are forwarded with every chatbot request.
type QueryOptions struct {
	Model       string
	Temperature *float64
}

// Options configure a new session.
type Options struct {
	ID           string
	Mode         transcript.Mode
	StreamMode   transcript.StreamMode
	ThreadID     string
	BufferFrames bool
	Query        QueryOptions
}

// Dependencies are the collaborators a session talks to. Only Backend is required.
type Dependencies struct {
	Backend  Backend
	Logger   zerolog.Logger
	Recorder Recorder
	Redactor Redactor
	NewID    func() string
	// Persist is called with the settled view after every turn and after Reset.
	Persist func(View)
}

// Session owns one conversation: the transcript, the loading flag and at most one
// running turn.
type Session struct {
	id           string
	backend      Backend
	log          zerolog.Logger
	recorder     Recorder
	redactor     Redactor
	newID        func() string
	persist      func(View)
	bufferFrames bool
	query        QueryOptions

	mu         sync.Mutex
	notifyMu   sync.Mutex
	messages   transcript.Transcript
	mode       transcript.Mode
	streamMode transcript.StreamMode
	threadID   string
	loading    bool
	busy       bool
	generation uint64
	observers  map[uint64]Observer
	nextObs    uint64
}

// NewSession builds an empty session.
func NewSession(opts Options, deps Dependencies) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if !opts.Mode.Valid() {
		opts.Mode = transcript.ModeAgent
	}
	if !opts.StreamMode.Valid() {
		opts.StreamMode = transcript.StreamModeStream
	}
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if deps.Redactor == nil {
		deps.Redactor = passthroughRedactor{}
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	return &Session{
		id:           opts.ID,
		backend:      deps.Backend,
		log:          deps.Logger.With().Str("session_id", opts.ID).Logger(),
		recorder:     deps.Recorder,
		redactor:     deps.Redactor,
		newID:        deps.NewID,
		persist:      deps.Persist,
		bufferFrames: opts.BufferFrames,
		query:        opts.Query,
		mode:         opts.Mode,
		streamMode:   opts.StreamMode,
		threadID:     opts.ThreadID,
		observers:    make(map[uint64]Observer),
	}
}

// RestoreSession rebuilds a session around an archived transcript.
func RestoreSession(opts Options, deps Dependencies, messages transcript.Transcript) *Session {
	s := NewSession(opts, deps)
	s.messages = messages.Clone()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Observe registers an observer and returns the function that removes it.
func (s *Session) Observe(o Observer) func() {
	s.mu.Lock()
	remove := s.addObserverLocked(o)
	s.mu.Unlock()
	return remove
}

// Subscribe returns a channel that always holds the newest view, starting with
// the current one. Intermediate views are dropped when the consumer falls
// behind. The channel is closed by the returned cancel function.
func (s *Session) Subscribe() (<-chan View, func()) {
	o := newLatestObserver()

	s.mu.Lock()
	remove := s.addObserverLocked(o)
	view := s.viewLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	o.OnChange(view)
	s.notifyMu.Unlock()

	return o.ch, func() {
		remove()
		o.close()
	}
}

func (s *Session) addObserverLocked(o Observer) func() {
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// SetMode switches the mode used by the next turn.
func (s *Session) SetMode(mode transcript.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.publishLocked()
	return nil
}

// SetStreamMode switches the stream mode used by the next turn.
func (s *Session) SetStreamMode(mode transcript.StreamMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	s.mu.Lock()
	s.streamMode = mode
	s.publishLocked()
	return nil
}

// SetThreadID sets the conversation thread forwarded to the agent backend.
func (s *Session) SetThreadID(threadID string) {
	s.mu.Lock()
	s.threadID = threadID
	s.publishLocked()
}

// Reset clears the transcript and the loading flag. Effects of a turn still in
// flight are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	s.generation++
	s.messages = nil
	s.loading = false
	s.busy = false
	view := s.viewLocked()
	s.publishLocked()

	if s.persist != nil {
		s.persist(view)
	}
	s.log.Debug().Msg("session reset")
}

// Submit runs one turn to completion. It returns ErrEmptyInput or
// ErrTurnInProgress without touching the transcript; backend and transport
// failures are recorded in the transcript and are not returned.
func (s *Session) Submit(ctx context.Context, text string) error {
	run, err := s.Start(text)
	if err != nil {
		return err
	}
	run.Run(ctx)
	return nil
}

// Start records the user message and the assistant placeholder, and returns the
// pending turn. Run must be called exactly once on the result.
func (s *Session) Start(text string) (*PendingTurn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrTurnInProgress
	}

	turn := Turn{
		State:         StateIdle,
		PlaceholderID: s.newID(),
		Mode:          s.mode,
		StreamMode:    s.streamMode,
	}
	turn, _ = turn.Transition(SignalSubmit)

	now := time.Now().UTC()
	s.messages = s.messages.Append(
		&transcript.Message{
			ID:        s.newID(),
			Role:      transcript.RoleUser,
			Content:   text,
			Mode:      turn.Mode,
			CreatedAt: now,
		},
		&transcript.Message{
			ID:        turn.PlaceholderID,
			Role:      transcript.RoleAssistant,
			Thinking:  true,
			Mode:      turn.Mode,
			CreatedAt: now,
		},
	)
	s.loading = true
	s.busy = true

	p := &PendingTurn{
		session:    s,
		turn:       turn,
		text:       text,
		threadID:   s.threadID,
		generation: s.generation,
		log: s.log.With().
			Str("mode", string(turn.Mode)).
			Str("stream_mode", string(turn.StreamMode)).
			Logger(),
	}
	s.publishLocked()
	return p, nil
}

// PendingTurn is a submitted turn that has not been run yet.
type PendingTurn struct {
	session    *Session
	turn       Turn
	text       string
	threadID   string
	generation uint64
	log        zerolog.Logger
	started    time.Time
	span       trace.Span
	once       sync.Once
}

// PlaceholderID returns the id of the assistant message this turn fills in.
func (p *PendingTurn) PlaceholderID() string { return p.turn.PlaceholderID }

// Run talks to the backend and folds its answer into the transcript. The loading
// flag is cleared when Run returns, whatever happened.
func (p *PendingTurn) Run(ctx context.Context) {
	p.once.Do(func() { p.run(ctx) })
}

// Abort settles a turn that will never be run, recording err on the placeholder.
func (p *PendingTurn) Abort(err error) {
	p.once.Do(func() {
		p.started = time.Now()
		p.log.Error().Err(err).Msg("turn aborted")
		p.fail(SignalTransportError, err.Error())
		p.settle()
	})
}

func (p *PendingTurn) run(ctx context.Context) {
	s := p.session
	p.started = time.Now()
	attrs := observability.WithTurnAttrs(s.id, p.threadID, string(p.turn.Mode), string(p.turn.StreamMode), p.text, s.redactor)
	if p.turn.Mode == transcript.ModeChatbot {
		attrs = append(attrs, observability.WithModelAttrs(s.query.Model)...)
	}
	ctx, p.span = tracer.Start(ctx, "chat.turn", trace.WithAttributes(attrs...))
	defer p.settle()

	p.log.Info().
		Str("prompt", s.redactor.SanitizePrompt(p.text)).
		Msg("turn started")

	var err error
	switch {
	case p.turn.Mode == transcript.ModeAgent && p.turn.StreamMode == transcript.StreamModeStream:
		err = p.stream(func() (io.ReadCloser, error) {
			return s.backend.StreamAgentTask(ctx, p.taskRequest())
		})
	case p.turn.Mode == transcript.ModeAgent:
		err = p.runAgentSync(ctx)
	case p.turn.StreamMode == transcript.StreamModeStream:
		err = p.stream(func() (io.ReadCloser, error) {
			return s.backend.StreamQuery(ctx, p.queryRequest())
		})
	default:
		err = p.runQuery(ctx)
	}

	if err != nil {
		p.span.RecordError(err)
		if p.turn.State.Terminal() {
			p.log.Warn().Err(err).Msg("transport error after turn ended")
			return
		}
		p.log.Error().Err(err).Msg("turn failed")
		p.fail(SignalTransportError, err.Error())
	}
}

func (p *PendingTurn) taskRequest() TaskRequest {
	return TaskRequest{Task: p.text, ThreadID: p.threadID}
}

func (p *PendingTurn) queryRequest() QueryRequest {
	q := p.session.query
	return QueryRequest{Prompt: p.text, Model: q.Model, Temperature: q.Temperature}
}

func (p *PendingTurn) stream(open func() (io.ReadCloser, error)) error {
	body, err := open()
	if err != nil {
		return err
	}
	defer body.Close()

	p.transition(SignalOpened)

	framer := sse.NewFramer(p.session.bufferFrames)
	buf := make([]byte, readChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, ev := range framer.Feed(string(buf[:n])) {
				p.handleEvent(ev)
			}
		}
		if errors.Is(readErr, io.EOF) {
			if rest := framer.Pending(); strings.TrimSpace(rest) != "" {
				p.log.Debug().Int("bytes", len(rest)).Msg("discarding unterminated frame")
			}
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read stream: %w", readErr)
		}
	}
}

func (p *PendingTurn) handleEvent(ev sse.Event) {
	s := p.session
	s.recorder.EventReceived(ev.Event)

	var (
		u   Update
		err error
	)
	switch ev.Event {
	case EventUpdate:
		u, err = DecodeUpdate(ev.Data)
	case EventError:
		u, err = DecodeErrorEvent(ev.Data)
	default:
		p.log.Debug().Str("event", ev.Event).Msg("ignoring unknown event")
		return
	}
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrUnrecognizedPayload) {
			reason = "unrecognized"
		}
		s.recorder.PayloadRejected(reason)
		p.log.Warn().Err(err).Str("event", ev.Event).Msg("skipping event payload")
		return
	}

	p.fold(u)
}

func (p *PendingTurn) fold(u Update) {
	next, effect, err := p.turn.Apply(u, p.session.newID)
	if err != nil {
		p.log.Debug().Err(err).Str("state", string(p.turn.State)).Msg("dropping event")
		return
	}
	p.turn = next
	p.apply(effect)
}

func (p *PendingTurn) runAgentSync(ctx context.Context) error {
	res, err := p.session.backend.RunAgentTask(ctx, p.taskRequest())
	if err != nil {
		return err
	}

	if res.Error != "" || res.FinalResult == nil {
		msg := res.Error
		if msg == "" {
			msg = unknownError
		}
		p.fold(ErrorUpdate{Message: msg})
		return nil
	}

	p.transition(SignalOpened)
	for _, r := range res.Results {
		if !truthy(r.Value) {
			continue
		}
		p.fold(StepUpdate{Step: r.Name, Result: r.Value})
	}
	p.fold(FinalUpdate{FinalResult: res.FinalResult})
	return nil
}

func (p *PendingTurn) runQuery(ctx context.Context) error {
	res, err := p.session.backend.Query(ctx, p.queryRequest())
	if err != nil {
		return err
	}

	if res.Status == "success" && res.Response != "" {
		p.fold(FinalUpdate{FullResponse: res.Response})
		return nil
	}

	msg := res.Error
	if msg == "" {
		msg = unknownError
	}
	p.fold(ErrorUpdate{Message: msg})
	return nil
}

func (p *PendingTurn) transition(sig Signal) {
	next, err := p.turn.Transition(sig)
	if err != nil {
		p.log.Debug().Err(err).Msg("ignoring transition")
		return
	}
	p.turn = next
	p.apply(Effect{})
}

func (p *PendingTurn) fail(sig Signal, message string) {
	next, effect, err := p.turn.Fail(sig, message)
	if err != nil {
		p.log.Debug().Err(err).Msg("ignoring failure after turn ended")
		return
	}
	p.turn = next
	p.apply(effect)
}

// apply writes an effect into the session unless the session was reset since
// the turn started.
func (p *PendingTurn) apply(effect Effect) {
	s := p.session
	s.mu.Lock()
	if s.generation != p.generation {
		s.mu.Unlock()
		return
	}
	if effect.Patch != nil {
		s.messages = s.messages.Update(p.turn.PlaceholderID, *effect.Patch)
	}
	if effect.Append != nil {
		s.messages = s.messages.Append(effect.Append)
	}
	s.loading = p.turn.State.Loading()
	s.publishLocked()
}

func (p *PendingTurn) settle() {
	s := p.session

	outcome := outcomeIncomplete
	switch p.turn.State {
	case StateFinalizing:
		outcome = outcomeCompleted
	case StateErrored:
		outcome = outcomeFailed
	}
	if next, err := p.turn.Transition(SignalSettle); err == nil {
		p.turn = next
	}

	elapsed := time.Since(p.started)
	s.recorder.TurnFinished(p.turn.Mode, p.turn.StreamMode, outcome, elapsed)

	if p.span != nil {
		observability.SetOutcome(p.span, outcome)
		if outcome == outcomeFailed {
			p.span.SetStatus(codes.Error, outcome)
		}
		p.span.End()
	}

	s.mu.Lock()
	if s.generation != p.generation {
		s.mu.Unlock()
		p.log.Debug().Msg("turn settled after reset")
		return
	}
	s.loading = false
	s.busy = false
	view := s.viewLocked()
	s.publishLocked()

	if s.persist != nil {
		s.persist(view)
	}

	p.log.Info().
		Str("outcome", outcome).
		Dur("elapsed", elapsed).
		Msg("turn settled")
}

func (s *Session) viewLocked() View {
	return View{
		SessionID:  s.id,
		Mode:       s.mode,
		StreamMode: s.streamMode,
		ThreadID:   s.threadID,
		Loading:    s.loading,
		Busy:       s.busy,
		Messages:   s.messages,
	}
}

// publishLocked hands the current view to every observer and releases s.mu.
// notifyMu is taken before s.mu is released so observers see changes in order.
func (s *Session) publishLocked() {
	view := s.viewLocked()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, o := range observers {
		o.OnChange(view)
	}
}
