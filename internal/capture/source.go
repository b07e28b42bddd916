// Package capture supplies full-screen frames to the watcher. The watcher
// only ever asks for the latest frame; sources never block.
package capture

import (
	"sync"

	"github.com/park285/Cheese-BoardWatch/internal/framepool"
)

// Source hands out the most recent frame, if any. Ownership of the returned
// buffer passes to the caller, who must recycle it to the same pool.
type Source interface {
	Latest() (*framepool.Buffer, bool)
}

// MailboxStats reports producer/consumer balance.
type MailboxStats struct {
	Published uint64
	Taken     uint64
	Dropped   uint64
}

// Mailbox is a single-slot hand-off between a capture producer and the
// watcher. A new frame replaces an unconsumed one, which goes back to the
// pool and is counted as dropped.
type Mailbox struct {
	pool *framepool.Pool

	mu    sync.Mutex
	slot  *framepool.Buffer
	stats MailboxStats
}

func NewMailbox(pool *framepool.Pool) *Mailbox {
	return &Mailbox{pool: pool}
}

// Publish takes ownership of frame.
func (m *Mailbox) Publish(frame *framepool.Buffer) {
	if frame == nil {
		return
	}
	m.mu.Lock()
	old := m.slot
	m.slot = frame
	m.stats.Published++
	if old != nil {
		m.stats.Dropped++
	}
	m.mu.Unlock()

	if old != nil {
		m.pool.Recycle(old)
	}
}

func (m *Mailbox) Latest() (*framepool.Buffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.slot
	if f == nil {
		return nil, false
	}
	m.slot = nil
	m.stats.Taken++
	return f, true
}

func (m *Mailbox) Stats() MailboxStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Drain recycles any pending frame.
func (m *Mailbox) Drain() {
	m.mu.Lock()
	f := m.slot
	m.slot = nil
	m.mu.Unlock()
	if f != nil {
		m.pool.Recycle(f)
	}
}
