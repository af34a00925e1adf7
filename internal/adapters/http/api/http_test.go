package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bmbilon/merets/internal/adapters/http/api"
	"github.com/bmbilon/merets/internal/adapters/repository"
	"github.com/bmbilon/merets/internal/domain/ledger"
	"github.com/bmbilon/merets/internal/domain/model"
	"github.com/bmbilon/merets/internal/domain/progress"
	"github.com/bmbilon/merets/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDeps implements api.Dependencies with canned responses.
type fakeDeps struct {
	seen      map[string]bool
	enqueueOK bool
	enqueued  []model.OutcomeEvent

	score    scoring.Score
	scoreErr error

	entries  []ledger.Entry
	auditErr error

	status    ledger.Status
	verifyErr error

	progress    progress.Progress
	progressErr error

	qual     progress.Qualification
	bonusErr error
}

func (f *fakeDeps) SeenAndRecord(_ context.Context, id string) bool {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[id] {
		return true
	}
	f.seen[id] = true
	return false
}

func (f *fakeDeps) Unrecord(_ context.Context, id string) {
	delete(f.seen, id)
}

func (f *fakeDeps) Enqueue(_ context.Context, e model.OutcomeEvent) bool {
	if !f.enqueueOK {
		return false
	}
	f.enqueued = append(f.enqueued, e)
	return true
}

func (f *fakeDeps) CurrentScore(_ context.Context, _ string) (scoring.Score, error) {
	return f.score, f.scoreErr
}

func (f *fakeDeps) AuditTrail(_ context.Context, _ string, limit int) ([]ledger.Entry, error) {
	if f.auditErr != nil {
		return nil, f.auditErr
	}
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeDeps) VerifyIntegrity(_ context.Context, _ string) (ledger.Status, error) {
	return f.status, f.verifyErr
}

func (f *fakeDeps) WindowedProgress(_ context.Context, _ string, window string) (progress.Progress, error) {
	if f.progressErr != nil {
		return progress.Progress{}, f.progressErr
	}
	w, err := progress.ParseWindow(window)
	if err != nil {
		return progress.Progress{}, err
	}
	p := f.progress
	p.Window = w
	return p, nil
}

func (f *fakeDeps) BonusQualification(_ context.Context, _ string) (progress.Qualification, error) {
	return f.qual, f.bonusErr
}

type fakeStatsProvider struct {
	stats map[string]interface{}
}

func (f *fakeStatsProvider) GetStats() map[string]interface{} {
	return f.stats
}

func newMux(deps *fakeDeps) *http.ServeMux {
	server := api.NewServer(deps, &fakeStatsProvider{stats: map[string]interface{}{"started": true}})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func outcomeBody(eventID string) string {
	accepted := time.Now().Add(-2 * time.Hour).Format(time.RFC3339)
	completed := time.Now().Add(-time.Hour).Format(time.RFC3339)
	return fmt.Sprintf(`{
		"event_id": %q,
		"subject_id": "alice",
		"kind": "COMPLETED",
		"rating": "PERFECT",
		"accepted_at": %q,
		"completed_at": %q,
		"planned_effort_minutes": 60
	}`, eventID, accepted, completed)
}

func TestPostOutcome(t *testing.T) {
	Convey("Given the outcomes endpoint", t, func() {
		deps := &fakeDeps{enqueueOK: true}
		mux := newMux(deps)

		Convey("When posting a valid outcome", func() {
			req := httptest.NewRequest("POST", "/outcomes", strings.NewReader(outcomeBody("evt-1")))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is accepted and enqueued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(len(deps.enqueued), ShouldEqual, 1)
				So(deps.enqueued[0].SubjectID, ShouldEqual, "alice")
				So(deps.enqueued[0].Kind, ShouldEqual, model.OutcomeCompleted)
				So(deps.enqueued[0].PlannedEffort, ShouldEqual, time.Hour)
			})
		})

		Convey("When posting the same event id twice", func() {
			first := httptest.NewRequest("POST", "/outcomes", strings.NewReader(outcomeBody("evt-2")))
			mux.ServeHTTP(httptest.NewRecorder(), first)

			second := httptest.NewRequest("POST", "/outcomes", strings.NewReader(outcomeBody("evt-2")))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, second)

			Convey("Then the replay is flagged as a duplicate", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				So(json.NewDecoder(w.Body).Decode(&ack), ShouldBeNil)
				So(ack.Duplicate, ShouldBeTrue)
				So(len(deps.enqueued), ShouldEqual, 1)
			})
		})

		Convey("When posting malformed JSON", func() {
			req := httptest.NewRequest("POST", "/outcomes", strings.NewReader(`{not json`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When posting an unknown outcome kind", func() {
			body := strings.Replace(outcomeBody("evt-3"), "COMPLETED", "EXPLODED", 1)
			req := httptest.NewRequest("POST", "/outcomes", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When posting a missed outcome with a rating", func() {
			body := strings.Replace(outcomeBody("evt-4"), "COMPLETED", "MISSED", 1)
			req := httptest.NewRequest("POST", "/outcomes", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then domain validation rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the queue pushes back", func() {
			deps.enqueueOK = false
			req := httptest.NewRequest("POST", "/outcomes", strings.NewReader(outcomeBody("evt-5")))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the client gets 503 and the id is retryable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(deps.seen["evt-5"], ShouldBeFalse)
			})
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest("GET", "/outcomes", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the route does not exist", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestGetScore(t *testing.T) {
	Convey("Given the score endpoint", t, func() {
		deps := &fakeDeps{
			score: scoring.Score{
				Reliability: 3.75,
				Quality:     4.33,
				Experience:  1.15,
				Composite:   3.42,
				Tier:        scoring.TierTrusted,
				Trend:       scoring.TrendStable,
			},
		}
		mux := newMux(deps)

		Convey("When fetching a subject's score", func() {
			req := httptest.NewRequest("GET", "/score/alice", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the payload carries the rounded display value", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					SubjectID string  `json:"subject_id"`
					Display   float64 `json:"display_composite"`
					Composite float64 `json:"composite"`
					Tier      string  `json:"tier"`
				}
				So(json.NewDecoder(w.Body).Decode(&resp), ShouldBeNil)
				So(resp.SubjectID, ShouldEqual, "alice")
				So(resp.Display, ShouldEqual, 3.4)
				So(resp.Composite, ShouldEqual, 3.42)
				So(resp.Tier, ShouldEqual, "TRUSTED")
			})
		})

		Convey("When the subject id is missing", func() {
			req := httptest.NewRequest("GET", "/score/", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the store is unavailable", func() {
			deps.scoreErr = fmt.Errorf("load: %w", repository.ErrUnavailable)
			req := httptest.NewRequest("GET", "/score/alice", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestGetAudit(t *testing.T) {
	Convey("Given the audit endpoint", t, func() {
		deps := &fakeDeps{
			entries: []ledger.Entry{
				{ID: 3, SubjectID: "alice"},
				{ID: 2, SubjectID: "alice"},
				{ID: 1, SubjectID: "alice"},
			},
		}
		mux := newMux(deps)

		Convey("When fetching with an explicit limit", func() {
			req := httptest.NewRequest("GET", "/audit/alice?limit=2", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the page is limited and newest first", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					SubjectID string         `json:"subject_id"`
					Entries   []ledger.Entry `json:"entries"`
				}
				So(json.NewDecoder(w.Body).Decode(&resp), ShouldBeNil)
				So(len(resp.Entries), ShouldEqual, 2)
				So(resp.Entries[0].ID, ShouldEqual, 3)
			})
		})

		Convey("When the limit is not a positive integer", func() {
			req := httptest.NewRequest("GET", "/audit/alice?limit=zero", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the subject has no ledger", func() {
			deps.entries = nil
			req := httptest.NewRequest("GET", "/audit/nobody", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the trail serializes as an empty array", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"entries":[]`)
			})
		})
	})
}

func TestGetVerify(t *testing.T) {
	Convey("Given the verify endpoint", t, func() {
		brokenAt := int64(4)
		deps := &fakeDeps{
			status: ledger.Status{
				Valid:           false,
				TotalEntries:    7,
				VerifiedEntries: 3,
				BrokenAtEntryID: &brokenAt,
				Fault:           ledger.FaultHashMismatch,
			},
		}
		mux := newMux(deps)

		Convey("When verifying a tampered chain", func() {
			req := httptest.NewRequest("GET", "/verify/alice", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the verdict is a 200 payload, not an error", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Valid           bool   `json:"valid"`
					VerifiedEntries int    `json:"verified_entries"`
					BrokenAtEntryID *int64 `json:"broken_at_entry_id"`
					Fault           string `json:"fault"`
				}
				So(json.NewDecoder(w.Body).Decode(&resp), ShouldBeNil)
				So(resp.Valid, ShouldBeFalse)
				So(resp.VerifiedEntries, ShouldEqual, 3)
				So(*resp.BrokenAtEntryID, ShouldEqual, 4)
				So(resp.Fault, ShouldEqual, "hash_mismatch")
			})
		})
	})
}

func TestGetProgress(t *testing.T) {
	Convey("Given the progress endpoint", t, func() {
		deps := &fakeDeps{
			progress: progress.Progress{
				Units:           6,
				TargetUnits:     5,
				MinutesIntoNext: 12,
				UnitMinutes:     30,
			},
		}
		mux := newMux(deps)

		Convey("When fetching monthly progress", func() {
			req := httptest.NewRequest("GET", "/progress/alice?window=monthly", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the requested window is echoed back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Window string `json:"window"`
					Units  int    `json:"units"`
				}
				So(json.NewDecoder(w.Body).Decode(&resp), ShouldBeNil)
				So(resp.Window, ShouldEqual, "MONTHLY")
				So(resp.Units, ShouldEqual, 6)
			})
		})

		Convey("When omitting the window", func() {
			req := httptest.NewRequest("GET", "/progress/alice", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it defaults to weekly", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"window":"WEEKLY"`)
			})
		})

		Convey("When asking for an unknown window", func() {
			req := httptest.NewRequest("GET", "/progress/alice?window=fortnightly", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestGetBonus(t *testing.T) {
	Convey("Given the bonus endpoint", t, func() {
		deps := &fakeDeps{
			qual: progress.Qualification{
				Qualifies:  true,
				Multiplier: 1.5,
				Requirements: []progress.Requirement{
					{Name: "weekly_units", Met: true, Current: 6, Required: 5},
					{Name: "composite_score", Met: true, Current: 3.8, Required: 3.5},
					{Name: "missed_commitments", Met: true, Current: 0, Required: 1},
				},
			},
		}
		mux := newMux(deps)

		Convey("When fetching a qualifying subject", func() {
			req := httptest.NewRequest("GET", "/bonus/alice", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the verdict and every gate come back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Qualifies    bool    `json:"qualifies"`
					Multiplier   float64 `json:"multiplier"`
					Requirements []struct {
						Name string `json:"name"`
						Met  bool   `json:"met"`
					} `json:"requirements"`
				}
				So(json.NewDecoder(w.Body).Decode(&resp), ShouldBeNil)
				So(resp.Qualifies, ShouldBeTrue)
				So(resp.Multiplier, ShouldEqual, 1.5)
				So(len(resp.Requirements), ShouldEqual, 3)
			})
		})
	})
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&fakeDeps{enqueueOK: true})

		Convey("Then the health endpoint responds", func() {
			req := httptest.NewRequest("GET", "/healthz", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And the stats endpoint responds", func() {
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "started")
		})

		Convey("And the metrics endpoint serves Prometheus text", func() {
			req := httptest.NewRequest("GET", "/metrics", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And unknown paths fall through to 404", func() {
			req := httptest.NewRequest("GET", "/unknown", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
