// Package movelog keeps a history of detected moves and engine replies.
package movelog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tells where a logged move came from.
type Kind string

const (
	KindDetected Kind = "detected"
	KindEngine   Kind = "engine"
	KindPlayed   Kind = "played"
)

type Entry struct {
	ID          uuid.UUID
	SessionID   string
	Kind        Kind
	Move        string
	Orientation string
	CreatedAt   time.Time
}

// Recorder stores entries. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Close() error
}

// NewEntry fills ID and CreatedAt.
func NewEntry(sessionID string, kind Kind, move, orientation string) Entry {
	return Entry{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Kind:        kind,
		Move:        move,
		Orientation: orientation,
		CreatedAt:   time.Now().UTC(),
	}
}

const defaultMemoryLimit = 512

// Memory is a bounded in-process Recorder; the oldest entries fall off.
type Memory struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = defaultMemoryLimit
	}
	return &Memory{limit: limit}
}

func (m *Memory) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = append(m.entries[:0], m.entries[over:]...)
	}
	return nil
}

// Recent returns up to limit entries of a session, newest first.
func (m *Memory) Recent(_ context.Context, sessionID string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if e := m.entries[i]; sessionID == "" || e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
