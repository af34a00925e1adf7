package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/bmbilon/merets/internal/domain/ledger"
	"github.com/bmbilon/merets/internal/domain/model"
)

// MemoryStore implements Store with per-subject slices guarded by a single
// RWMutex. Appends run inside one critical section, which gives the
// all-or-nothing visibility the chain requires.
type MemoryStore struct {
	mu      sync.RWMutex
	events  map[string][]model.OutcomeEvent
	entries map[string][]ledger.Entry
	seenIDs map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(_ context.Context) *MemoryStore {
	return &MemoryStore{
		events:  make(map[string][]model.OutcomeEvent),
		entries: make(map[string][]ledger.Entry),
		seenIDs: make(map[string]struct{}),
	}
}

// AppendOutcome records the event and optional ledger entry atomically.
func (s *MemoryStore) AppendOutcome(_ context.Context, event model.OutcomeEvent, entry *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seenIDs[event.EventID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, event.EventID)
	}

	s.seenIDs[event.EventID] = struct{}{}
	s.events[event.SubjectID] = append(s.events[event.SubjectID], event)
	if entry != nil {
		s.entries[entry.SubjectID] = append(s.entries[entry.SubjectID], *entry)
	}
	return nil
}

// LoadHistory returns a copy of the subject's events in insertion order.
func (s *MemoryStore) LoadHistory(_ context.Context, subjectID string) ([]model.OutcomeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.events[subjectID]
	out := make([]model.OutcomeEvent, len(src))
	copy(out, src)
	return out, nil
}

// LedgerTail returns the subject's most recent entry, or nil.
func (s *MemoryStore) LedgerTail(_ context.Context, subjectID string) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.entries[subjectID]
	if len(chain) == 0 {
		return nil, nil
	}
	tail := chain[len(chain)-1]
	return &tail, nil
}

// ScanLedger returns a copy of the subject's chain in ascending id order.
func (s *MemoryStore) ScanLedger(_ context.Context, subjectID string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.entries[subjectID]
	out := make([]ledger.Entry, len(src))
	copy(out, src)
	return out, nil
}

// RecentLedger returns up to limit entries, newest first.
func (s *MemoryStore) RecentLedger(_ context.Context, subjectID string, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.entries[subjectID]
	if len(src) < limit {
		limit = len(src)
	}
	out := make([]ledger.Entry, 0, limit)
	for i := len(src) - 1; i >= len(src)-limit; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

// SubjectCount returns the number of subjects with any history.
func (s *MemoryStore) SubjectCount(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
