package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // cgo-free sqlite driver

	"github.com/bmbilon/merets/internal/domain/ledger"
	"github.com/bmbilon/merets/internal/domain/model"
	"github.com/bmbilon/merets/internal/domain/scoring"
)

// timeLayout preserves full nanosecond precision so a reloaded entry
// rehashes to its stored content hash.
const timeLayout = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS outcome_events (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id          TEXT NOT NULL UNIQUE,
	subject_id        TEXT NOT NULL,
	kind              TEXT NOT NULL,
	rating            TEXT NOT NULL DEFAULT '',
	accepted_at       TEXT NOT NULL,
	completed_at      TEXT,
	due_at            TEXT,
	planned_effort_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcome_events_subject ON outcome_events(subject_id, seq);

CREATE TABLE IF NOT EXISTS ledger_entries (
	subject_id      TEXT NOT NULL,
	id              INTEGER NOT NULL,
	ts              TEXT NOT NULL,
	action          TEXT NOT NULL,
	old_composite   REAL NOT NULL,
	new_composite   REAL NOT NULL,
	change          REAL NOT NULL,
	reason          TEXT NOT NULL,
	completion_rate REAL NOT NULL,
	quality_average REAL NOT NULL,
	consistency     REAL NOT NULL,
	volume_bonus    REAL NOT NULL,
	failure_penalty REAL NOT NULL,
	content_hash    TEXT NOT NULL,
	prev_hash       TEXT NOT NULL,
	PRIMARY KEY (subject_id, id)
);
`

// SQLiteStore implements Store on a SQLite database. Appends run in a
// single transaction, so an event and its ledger entry land together or
// not at all.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dsn and
// prepares the schema. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, dsn, err)
	}
	// SQLite allows one writer; a second connection would only queue.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", ErrUnavailable, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AppendOutcome(ctx context.Context, event model.OutcomeEvent, entry *ledger.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outcome_events
			(event_id, subject_id, kind, rating, accepted_at, completed_at, due_at, planned_effort_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID,
		event.SubjectID,
		string(event.Kind),
		string(event.Rating),
		event.AcceptedAt.UTC().Format(timeLayout),
		optionalTime(event.CompletedAt),
		optionalTime(event.DueAt),
		int64(event.PlannedEffort),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEvent, event.EventID)
		}
		return fmt.Errorf("%w: insert event: %v", ErrUnavailable, err)
	}

	if entry != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries
				(subject_id, id, ts, action, old_composite, new_composite, change, reason,
				 completion_rate, quality_average, consistency, volume_bonus, failure_penalty,
				 content_hash, prev_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.SubjectID,
			entry.ID,
			entry.Timestamp.UTC().Format(timeLayout),
			string(entry.Action),
			entry.OldComposite,
			entry.NewComposite,
			entry.Change,
			entry.Reason,
			entry.Breakdown.CompletionRate,
			entry.Breakdown.QualityAverage,
			entry.Breakdown.Consistency,
			entry.Breakdown.VolumeBonus,
			entry.Breakdown.FailurePenalty,
			entry.ContentHash,
			entry.PrevHash,
		)
		if err != nil {
			return fmt.Errorf("%w: insert ledger entry: %v", ErrUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) LoadHistory(ctx context.Context, subjectID string) ([]model.OutcomeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, subject_id, kind, rating, accepted_at, completed_at, due_at, planned_effort_ns
		FROM outcome_events WHERE subject_id = ? ORDER BY seq ASC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	events := make([]model.OutcomeEvent, 0)
	for rows.Next() {
		var (
			e                        model.OutcomeEvent
			kind, rating, acceptedAt string
			completedAt, dueAt       sql.NullString
			effortNS                 int64
		)
		if err := rows.Scan(&e.EventID, &e.SubjectID, &kind, &rating, &acceptedAt, &completedAt, &dueAt, &effortNS); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", ErrUnavailable, err)
		}
		e.Kind = model.OutcomeKind(kind)
		e.Rating = model.QualityRating(rating)
		e.PlannedEffort = time.Duration(effortNS)
		if e.AcceptedAt, err = time.Parse(timeLayout, acceptedAt); err != nil {
			return nil, fmt.Errorf("%w: parse accepted_at: %v", ErrUnavailable, err)
		}
		if e.CompletedAt, err = parseOptionalTime(completedAt); err != nil {
			return nil, fmt.Errorf("%w: parse completed_at: %v", ErrUnavailable, err)
		}
		if e.DueAt, err = parseOptionalTime(dueAt); err != nil {
			return nil, fmt.Errorf("%w: parse due_at: %v", ErrUnavailable, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate history: %v", ErrUnavailable, err)
	}
	return events, nil
}

func (s *SQLiteStore) LedgerTail(ctx context.Context, subjectID string) (*ledger.Entry, error) {
	entries, err := s.queryLedger(ctx, subjectID, "DESC", 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *SQLiteStore) ScanLedger(ctx context.Context, subjectID string) ([]ledger.Entry, error) {
	return s.queryLedger(ctx, subjectID, "ASC", 0)
}

func (s *SQLiteStore) RecentLedger(ctx context.Context, subjectID string, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return s.queryLedger(ctx, subjectID, "DESC", limit)
}

func (s *SQLiteStore) queryLedger(ctx context.Context, subjectID, order string, limit int) ([]ledger.Entry, error) {
	q := `
		SELECT subject_id, id, ts, action, old_composite, new_composite, change, reason,
		       completion_rate, quality_average, consistency, volume_bonus, failure_penalty,
		       content_hash, prev_hash
		FROM ledger_entries WHERE subject_id = ? ORDER BY id ` + order
	args := []any{subjectID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: scan ledger: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	entries := make([]ledger.Entry, 0)
	for rows.Next() {
		var (
			e          ledger.Entry
			ts, action string
			b          scoring.Breakdown
		)
		if err := rows.Scan(&e.SubjectID, &e.ID, &ts, &action,
			&e.OldComposite, &e.NewComposite, &e.Change, &e.Reason,
			&b.CompletionRate, &b.QualityAverage, &b.Consistency, &b.VolumeBonus, &b.FailurePenalty,
			&e.ContentHash, &e.PrevHash); err != nil {
			return nil, fmt.Errorf("%w: scan ledger entry: %v", ErrUnavailable, err)
		}
		e.Action = ledger.Action(action)
		e.Breakdown = b
		if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("%w: parse entry timestamp: %v", ErrUnavailable, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate ledger: %v", ErrUnavailable, err)
	}
	return entries, nil
}

func (s *SQLiteStore) SubjectCount(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT subject_id) FROM outcome_events`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseOptionalTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// isUniqueViolation sniffs the driver's constraint error. The modernc
// driver reports constraint failures as plain error strings.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
