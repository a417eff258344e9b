package conversation

import (
	"context"
	"sync"

	"github.com/madgic/madgic-chat/internal/domain/chat"
)

// InMemoryRepository keeps archived sessions for the lifetime of the process.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*chat.Record
}

// NewInMemoryRepository creates an empty archive.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string]*chat.Record)}
}

// Save stores a copy of rec.
func (r *InMemoryRepository) Save(_ context.Context, rec *chat.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

// Load returns a copy of the stored record.
func (r *InMemoryRepository) Load(_ context.Context, id string) (*chat.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, chat.ErrSessionNotFound
	}
	return cloneRecord(rec), nil
}

// Delete removes a record.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return chat.ErrSessionNotFound
	}
	delete(r.records, id)
	return nil
}

// List returns every record in no particular order.
func (r *InMemoryRepository) List(_ context.Context) ([]*chat.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*chat.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func cloneRecord(rec *chat.Record) *chat.Record {
	c := *rec
	c.Messages = rec.Messages.Clone()
	return &c
}

var _ chat.Store = (*InMemoryRepository)(nil)
