package memory

import (
	"context"
	"sync"

	"github.com/mistlabs/coreshell/internal/journal"
)

// DefaultCapacity bounds the ring when the caller passes zero.
const DefaultCapacity = 256

// Sink keeps the most recent entries in memory. It backs the diagnostics
// server's /events endpoint and tests.
type Sink struct {
	mu      sync.Mutex
	entries []journal.Entry
	cap     int
}

func New(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sink{cap: capacity}
}

func (s *Sink) Send(_ context.Context, e journal.Entry) error {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.cap {
		s.entries = s.entries[len(s.entries)-s.cap:]
	}
	s.mu.Unlock()
	return nil
}

// Recent returns up to n most recent entries, newest last.
func (s *Sink) Recent(n int) []journal.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]journal.Entry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}
