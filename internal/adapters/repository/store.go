// Package repository defines the history/ledger store interface and errors.
//
// The engine issues nothing fancier than "append row" and "scan rows for
// subject in insertion order", so the interface stays deliberately narrow.
// Two implementations exist: an in-memory store for tests and dev runs, and
// a SQLite-backed store for durable deployments.
package repository

import (
	"context"

	"github.com/bmbilon/merets/internal/domain/ledger"
	"github.com/bmbilon/merets/internal/domain/model"
)

// Store provides append and scan access to a subject's outcome history and
// ledger chain. Implementations must keep per-subject insertion order
// stable; the caller owns serializing writes for one subject.
type Store interface {
	// AppendOutcome durably records an outcome event and, when entry is
	// non-nil, its ledger entry in the same atomic operation. Either both
	// rows land or neither does. A re-delivered event id returns
	// ErrDuplicateEvent without writing anything.
	AppendOutcome(ctx context.Context, event model.OutcomeEvent, entry *ledger.Entry) error

	// LoadHistory returns the subject's events in insertion order. A
	// subject with no history yields an empty slice, not an error.
	LoadHistory(ctx context.Context, subjectID string) ([]model.OutcomeEvent, error)

	// LedgerTail returns the most recent ledger entry for the subject, or
	// nil when the subject has no ledger yet.
	LedgerTail(ctx context.Context, subjectID string) (*ledger.Entry, error)

	// ScanLedger returns the subject's full chain in ascending id order.
	ScanLedger(ctx context.Context, subjectID string) ([]ledger.Entry, error)

	// RecentLedger returns up to limit entries, newest first.
	RecentLedger(ctx context.Context, subjectID string, limit int) ([]ledger.Entry, error)

	// SubjectCount returns the number of subjects with recorded history.
	SubjectCount(ctx context.Context) int

	// Close releases store resources.
	Close() error
}
