package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the most recent records of each limiter in a ring.
type MemoryStore struct {
	mu       sync.RWMutex
	rings    map[string]*ring
	capacity int
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store keeping capacity records per
// limiter. capacity <= 0 uses DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		rings:    make(map[string]*ring),
		capacity: capacity,
	}
}

func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	if rec.Limiter == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rings[rec.Limiter]
	if !ok {
		r = &ring{buf: make([]Record, s.capacity)}
		s.rings[rec.Limiter] = r
	}
	r.push(rec)
	return nil
}

func (s *MemoryStore) History(_ context.Context, name string, n int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rings[name]
	if !ok {
		return []Record{}, nil
	}
	return r.newest(n), nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rings = make(map[string]*ring)
	return nil
}

// ring is a fixed-size circular buffer of records.
type ring struct {
	buf  []Record
	next int
	size int
}

func (r *ring) push(rec Record) {
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// newest returns up to n records, newest first.
func (r *ring) newest(n int) []Record {
	if n <= 0 || n > r.size {
		n = r.size
	}

	out := make([]Record, 0, n)
	idx := r.next
	for i := 0; i < n; i++ {
		idx = (idx - 1 + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
