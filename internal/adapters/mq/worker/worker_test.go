package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bmbilon/merets/internal/adapters/mq/queue"
	"github.com/bmbilon/merets/internal/adapters/mq/worker"
	"github.com/bmbilon/merets/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// captureRecorder collects recorded events for assertions.
type captureRecorder struct {
	mu     sync.Mutex
	events []model.OutcomeEvent
	fail   bool
}

func (r *captureRecorder) RecordOutcome(_ context.Context, e model.OutcomeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("boom")
	}
	r.events = append(r.events, e)
	return nil
}

func (r *captureRecorder) recorded() []model.OutcomeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.OutcomeEvent, len(r.events))
	copy(out, r.events)
	return out
}

func event(id string) queue.Event {
	return queue.Event{
		EventID:    id,
		SubjectID:  "subject-1",
		Kind:       model.OutcomeCompleted,
		AcceptedAt: time.Now().UTC(),
	}
}

func TestWorkerDrainsQueue(t *testing.T) {
	Convey("Given a worker over a queue of three events", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		rec := &captureRecorder{}
		w := worker.NewWorker(q, rec, worker.WithName("worker-test"))

		So(q.Enqueue(ctx, event("evt-1")), ShouldBeTrue)
		So(q.Enqueue(ctx, event("evt-2")), ShouldBeTrue)
		So(q.Enqueue(ctx, event("evt-3")), ShouldBeTrue)

		Convey("When the worker runs until the queue closes", func() {
			go w.Run(ctx)
			So(q.Close(), ShouldBeNil)

			done := make(chan struct{})
			go func() {
				defer close(done)
				for len(rec.recorded()) < 3 {
					time.Sleep(time.Millisecond)
				}
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
			}

			Convey("Then every event was recorded in order", func() {
				got := rec.recorded()
				So(got, ShouldHaveLength, 3)
				So(got[0].EventID, ShouldEqual, "evt-1")
				So(got[2].EventID, ShouldEqual, "evt-3")
			})
		})
	})
}

func TestWorkerShutdown(t *testing.T) {
	Convey("Given a running worker on an idle queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		w := worker.NewWorker(q, &captureRecorder{})
		go w.Run(ctx)

		Convey("When shut down with a generous deadline", func() {
			sctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			Convey("Then it stops cleanly", func() {
				So(w.Shutdown(sctx), ShouldBeNil)
			})
		})
	})
}

func TestWorkerSurvivesRecorderErrors(t *testing.T) {
	Convey("Given a recorder that always fails", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		rec := &captureRecorder{fail: true}
		w := worker.NewWorker(q, rec)

		So(q.Enqueue(ctx, event("evt-err")), ShouldBeTrue)
		So(q.Close(), ShouldBeNil)

		Convey("When the worker processes the event", func() {
			done := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(done)
			}()

			Convey("Then the loop completes instead of panicking", func() {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					So("worker did not stop", ShouldBeEmpty)
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of four workers", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		rec := &captureRecorder{}
		p := worker.NewPool(4, q, rec)
		p.Start(ctx)

		Convey("When twenty events flow through", func() {
			for i := 0; i < 20; i++ {
				So(q.Enqueue(ctx, event("evt-"+time.Now().Format("150405.000000000")+"-"+string(rune('a'+i)))), ShouldBeTrue)
			}

			deadline := time.After(2 * time.Second)
			for len(rec.recorded()) < 20 {
				select {
				case <-deadline:
					t.Fatal("pool did not drain the queue in time")
				default:
					time.Sleep(time.Millisecond)
				}
			}

			Convey("Then all of them were recorded", func() {
				So(rec.recorded(), ShouldHaveLength, 20)
			})

			p.Stop()
		})
	})
}
