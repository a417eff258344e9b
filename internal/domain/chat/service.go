package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

// Record is the archived form of a session.
type Record struct {
	ID         string
	Mode       transcript.Mode
	StreamMode transcript.StreamMode
	ThreadID   string
	Messages   transcript.Transcript
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store archives settled sessions. Load returns ErrSessionNotFound for unknown ids.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Record, error)
}

// Dispatcher runs jobs in the background.
type Dispatcher interface {
	Dispatch(job func(ctx context.Context)) error
}

// CreateParams are the per-session choices of a new session.
type CreateParams struct {
	Mode       transcript.Mode
	StreamMode transcript.StreamMode
	ThreadID   string
}

// ServiceConfig holds the defaults applied to new sessions.
type ServiceConfig struct {
	DefaultMode       transcript.Mode
	DefaultStreamMode transcript.StreamMode
	BufferFrames      bool
	Query             QueryOptions
	TurnTimeout       time.Duration
}

// Service keeps live sessions in memory and archives them in a Store.
type Service struct {
	cfg      ServiceConfig
	backend  Backend
	store    Store
	log      zerolog.Logger
	recorder Recorder
	redactor Redactor

	mu       sync.RWMutex
	sessions map[string]*Session
	created  map[string]time.Time
}

// NewService creates a session registry.
func NewService(cfg ServiceConfig, backend Backend, store Store, log zerolog.Logger, recorder Recorder, redactor Redactor) *Service {
	return &Service{
		cfg:      cfg,
		backend:  backend,
		store:    store,
		log:      log.With().Str("component", "chat").Logger(),
		recorder: recorder,
		redactor: redactor,
		sessions: make(map[string]*Session),
		created:  make(map[string]time.Time),
	}
}

// Create opens a new session with the service defaults filled in.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Session, error) {
	mode := params.Mode
	if mode == "" {
		mode = s.cfg.DefaultMode
	}
	streamMode := params.StreamMode
	if streamMode == "" {
		streamMode = s.cfg.DefaultStreamMode
	}
	if !mode.Valid() || !streamMode.Valid() {
		return nil, ErrInvalidMode
	}

	sess := NewSession(s.options("", mode, streamMode, params.ThreadID), s.dependencies())

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.created[sess.ID()] = time.Now().UTC()
	s.mu.Unlock()

	s.save(ctx, sess.Snapshot())
	s.log.Info().Str("session_id", sess.ID()).Str("mode", string(mode)).Msg("session created")
	return sess, nil
}

// Get returns a live session, restoring it from the archive if needed.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	sess = RestoreSession(s.options(rec.ID, rec.Mode, rec.StreamMode, rec.ThreadID), s.dependencies(), rec.Messages)
	s.sessions[id] = sess
	s.created[id] = rec.CreatedAt
	return sess, nil
}

// List returns the archived sessions, newest first.
func (s *Service) List(ctx context.Context) ([]*Record, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
	})
	return recs, nil
}

// Delete forgets a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, live := s.sessions[id]
	delete(s.sessions, id)
	delete(s.created, id)
	s.mu.Unlock()

	if live {
		sess.Reset()
	}
	err := s.store.Delete(ctx, id)
	if errors.Is(err, ErrSessionNotFound) && live {
		return nil
	}
	return err
}

// SubmitAsync starts a turn and runs it on the dispatcher. The returned turn has
// already recorded the user message and placeholder.
func (s *Service) SubmitAsync(sess *Session, text string, d Dispatcher) (*PendingTurn, error) {
	run, err := sess.Start(text)
	if err != nil {
		return nil, err
	}
	if err := d.Dispatch(func(ctx context.Context) {
		s.RunTurn(ctx, run)
	}); err != nil {
		run.Abort(err)
		return nil, err
	}
	return run, nil
}

// RunTurn runs a pending turn under the configured turn timeout.
func (s *Service) RunTurn(ctx context.Context, run *PendingTurn) {
	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}
	run.Run(ctx)
}

func (s *Service) options(id string, mode transcript.Mode, streamMode transcript.StreamMode, threadID string) Options {
	return Options{
		ID:           id,
		Mode:         mode,
		StreamMode:   streamMode,
		ThreadID:     threadID,
		BufferFrames: s.cfg.BufferFrames,
		Query:        s.cfg.Query,
	}
}

func (s *Service) dependencies() Dependencies {
	return Dependencies{
		Backend:  s.backend,
		Logger:   s.log,
		Recorder: s.recorder,
		Redactor: s.redactor,
		Persist: func(v View) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.save(ctx, v)
		},
	}
}

func (s *Service) save(ctx context.Context, v View) {
	s.mu.RLock()
	created, ok := s.created[v.SessionID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	rec := &Record{
		ID:         v.SessionID,
		Mode:       v.Mode,
		StreamMode: v.StreamMode,
		ThreadID:   v.ThreadID,
		Messages:   v.Messages,
		CreatedAt:  created,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("session_id", v.SessionID).Msg("failed to archive session")
	}
}
