// Package ledger builds and verifies the per-subject hash chain.
//
// Every qualifying score transition becomes one immutable Entry whose
// content hash covers all of its fields, including the link to its
// predecessor. Verification re-walks a subject's chain from the genesis
// link and reports the first point of breakage; it never mutates state and
// a broken chain is reported, never repaired.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/bmbilon/merets/internal/domain/scoring"
)

// GenesisHash is the defined previous-hash value of a subject's first entry.
const GenesisHash = "genesis"

const hashPrefix = "sha256:"

// Action categorizes what caused a score transition.
type Action string

const (
	ActionTaskOutcome Action = "TASK_OUTCOME"
	ActionRating      Action = "RATING"
	ActionPenalty     Action = "PENALTY"
	ActionAdjustment  Action = "ADJUSTMENT"
)

// Valid reports whether a is a declared action kind.
func (a Action) Valid() bool {
	switch a {
	case ActionTaskOutcome, ActionRating, ActionPenalty, ActionAdjustment:
		return true
	}
	return false
}

// Entry is one immutable link in a subject's chain. IDs are monotonic per
// subject starting at 1. ContentHash covers every other field, so any
// in-place edit, reorder, insertion or deletion is detectable.
type Entry struct {
	ID           int64             `json:"id"`
	SubjectID    string            `json:"subject_id"`
	Timestamp    time.Time         `json:"timestamp"`
	Action       Action            `json:"action"`
	OldComposite float64           `json:"old_composite"`
	NewComposite float64           `json:"new_composite"`
	Change       float64           `json:"change"`
	Reason       string            `json:"reason"`
	Breakdown    scoring.Breakdown `json:"breakdown"`
	ContentHash  string            `json:"content_hash"`
	PrevHash     string            `json:"prev_hash"`
}

// Fault classifies the first verification failure in a chain.
type Fault string

const (
	FaultNone         Fault = ""
	FaultHashMismatch Fault = "hash_mismatch"
	FaultBrokenLink   Fault = "broken_link"
	FaultEntryMissing Fault = "entry_missing"
)

// Status is the result of a full chain verification. It is data, not an
// error: callers surface it to decide whether the audit trail can be
// trusted.
type Status struct {
	Valid           bool   `json:"valid"`
	TotalEntries    int    `json:"total_entries"`
	VerifiedEntries int    `json:"verified_entries"`
	BrokenAtEntryID *int64 `json:"broken_at_entry_id,omitempty"`
	Fault           Fault  `json:"fault,omitempty"`
	Detail          string `json:"detail,omitempty"`
}

// Build constructs the next entry for a subject. tail is the current chain
// tail, or nil for a subject with no ledger yet. The caller owns
// serializing concurrent builds for the same subject.
func Build(subjectID string, tail *Entry, oldComposite, newComposite float64,
	breakdown scoring.Breakdown, reason string, action Action, now time.Time) (Entry, error) {
	if !action.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	e := Entry{
		ID:           1,
		SubjectID:    subjectID,
		Timestamp:    now.UTC(),
		Action:       action,
		OldComposite: oldComposite,
		NewComposite: newComposite,
		Change:       newComposite - oldComposite,
		Reason:       reason,
		Breakdown:    breakdown,
		PrevHash:     GenesisHash,
	}
	if tail != nil {
		e.ID = tail.ID + 1
		e.PrevHash = tail.ContentHash
	}

	hash, err := ContentHash(e)
	if err != nil {
		return Entry{}, err
	}
	e.ContentHash = hash

	return e, nil
}

// ContentHash computes the canonical hash of an entry: SHA-256 over the
// RFC 8785 canonical JSON of every field except the stored hash itself.
func ContentHash(e Entry) (string, error) {
	e.ContentHash = ""
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal entry %d: %w", e.ID, err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize entry %d: %w", e.ID, err)
	}
	sum := sha256.Sum256(canonical)
	return hashPrefix + hex.EncodeToString(sum[:]), nil
}

// Verify walks a subject's entries in ascending id order and re-checks
// every link and content hash. The first fault wins: trust cannot be
// re-established past a break, so later entries stay unverified even when
// individually well-formed. ctx is honored between entries so callers can
// bound long walks; cancellation returns ctx's error and no status.
func Verify(ctx context.Context, entries []Entry) (Status, error) {
	st := Status{Valid: true, TotalEntries: len(entries)}

	prevHash := GenesisHash
	var prevID int64
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return Status{}, fmt.Errorf("verification cancelled: %w", err)
		}
		e := entries[i]

		if e.ID != prevID+1 {
			// Report the position where continuity broke, not the id of
			// whatever entry happens to sit there.
			return broken(st, prevID+1, FaultEntryMissing,
				fmt.Sprintf("expected entry %d, found %d", prevID+1, e.ID)), nil
		}
		if e.PrevHash != prevHash {
			return broken(st, e.ID, FaultBrokenLink,
				fmt.Sprintf("entry %d does not link to its predecessor", e.ID)), nil
		}

		computed, err := ContentHash(e)
		if err != nil {
			return broken(st, e.ID, FaultHashMismatch, err.Error()), nil
		}
		if computed != e.ContentHash {
			return broken(st, e.ID, FaultHashMismatch,
				fmt.Sprintf("entry %d stored hash does not match recomputation", e.ID)), nil
		}

		st.VerifiedEntries++
		prevHash = e.ContentHash
		prevID = e.ID
	}

	return st, nil
}

func broken(st Status, id int64, fault Fault, detail string) Status {
	st.Valid = false
	st.BrokenAtEntryID = &id
	st.Fault = fault
	st.Detail = detail
	return st
}
