package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vyakaran/tutorlive/pkg/core/live"
)

type insertRecorder struct {
	mu       sync.Mutex
	tasks    []task
	failures int
}

func (r *insertRecorder) insert(ctx context.Context, t task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("transient")
	}
	r.tasks = append(r.tasks, t)
	return nil
}

func (r *insertRecorder) snapshot() []task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]task(nil), r.tasks...)
}

func testStore(rec *insertRecorder) *Store {
	s := newStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.insert = rec.insert
	s.start()
	return s
}

func waitTasks(t *testing.T, rec *insertRecorder, n int) []task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tasks := rec.snapshot(); len(tasks) >= n {
			return tasks
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("archived %d entries, want %d", len(rec.snapshot()), n)
	return nil
}

func TestStore_ArchivesOnlyNewEntries(t *testing.T) {
	rec := &insertRecorder{}
	s := testStore(rec)
	defer s.Close()

	history := []live.Entry{
		{Speaker: live.SpeakerUser, Text: "नमस्कार"},
		{Speaker: live.SpeakerModel, Text: "स्वागत"},
	}
	s.Update(live.Snapshot{SessionID: "sess-1", History: history})
	// The same snapshot again must not duplicate rows.
	s.Update(live.Snapshot{SessionID: "sess-1", History: history})
	s.Update(live.Snapshot{
		SessionID: "sess-1",
		History:   append(history, live.Entry{Speaker: live.SpeakerUser, Text: "धन्यवाद"}),
	})

	tasks := waitTasks(t, rec, 3)
	if len(tasks) != 3 {
		t.Fatalf("archived %d entries, want 3", len(tasks))
	}
	for i, task := range tasks {
		if task.seq != i {
			t.Errorf("task %d seq = %d", i, task.seq)
		}
		if task.sessionID != "sess-1" {
			t.Errorf("task %d session = %q", i, task.sessionID)
		}
	}
	if tasks[2].entry.Text != "धन्यवाद" {
		t.Errorf("third entry = %+v", tasks[2].entry)
	}
}

func TestStore_SessionsTrackedIndependently(t *testing.T) {
	rec := &insertRecorder{}
	s := testStore(rec)
	defer s.Close()

	s.Update(live.Snapshot{SessionID: "a", History: []live.Entry{{Speaker: live.SpeakerUser, Text: "one"}}})
	s.Update(live.Snapshot{SessionID: "b", History: []live.Entry{{Speaker: live.SpeakerUser, Text: "two"}}})

	tasks := waitTasks(t, rec, 2)
	if tasks[0].seq != 0 || tasks[1].seq != 0 {
		t.Errorf("per-session seq not independent: %+v", tasks)
	}
}

func TestStore_IgnoresStatusOnlySnapshots(t *testing.T) {
	rec := &insertRecorder{}
	s := testStore(rec)

	s.Update(live.Snapshot{SessionID: "a", Status: live.StatusThinking, Partial: live.Partial{User: "..."}})
	s.Update(live.Snapshot{Status: live.StatusConnecting})
	s.Close()

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("archived %d entries from entry-free snapshots", len(got))
	}
}

func TestStore_RetriesTransientInsertFailures(t *testing.T) {
	rec := &insertRecorder{failures: 2}
	s := testStore(rec)
	defer s.Close()

	s.Update(live.Snapshot{SessionID: "a", History: []live.Entry{{Speaker: live.SpeakerModel, Text: "उत्तर"}}})

	tasks := waitTasks(t, rec, 1)
	if tasks[0].entry.Text != "उत्तर" {
		t.Errorf("entry = %+v", tasks[0].entry)
	}
}
