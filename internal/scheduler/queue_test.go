package scheduler

import (
	"testing"

	"github.com/estudioia/timeline-render/internal/model"
)

func TestPendingQueue(t *testing.T) {
	q := newPendingQueue()
	for _, id := range []string{"a", "b", "c", "d"} {
		if err := q.push(id); err != nil {
			t.Fatalf("push %s: %v", id, err)
		}
	}

	if !q.remove("c") {
		t.Fatal("expected c to be removed")
	}
	if q.remove("zzz") {
		t.Error("expected unknown id not to be removed")
	}
	if q.len() != 3 {
		t.Fatalf("expected 3 ids, got %d", q.len())
	}

	for _, want := range []string{"a", "b", "d"} {
		got, ok := q.pop()
		if !ok || got != want {
			t.Fatalf("expected %s, got %s (%v)", want, got, ok)
		}
	}
	if _, ok := q.pop(); ok {
		t.Error("expected empty queue")
	}
}

func TestFeed_DropsOldestButKeepsTerminal(t *testing.T) {
	f := newFeed()
	ch, _ := f.subscribe()

	for i := 0; i < feedBuffer+10; i++ {
		f.publish(progressEvent(i))
	}
	f.publish(terminalProgress())

	var got []int
	var last string
	for ev := range ch {
		got = append(got, ev.Frame)
		last = ev.Type
	}
	if last != "completed" {
		t.Fatalf("expected terminal event last, got %s", last)
	}
	if len(got) != feedBuffer {
		t.Errorf("expected %d buffered events, got %d", feedBuffer, len(got))
	}
	for i := 1; i < len(got)-1; i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("events out of order: %v", got)
		}
	}
}

func TestFeed_Unsubscribe(t *testing.T) {
	f := newFeed()
	ch, unsubscribe := f.subscribe()
	unsubscribe()
	unsubscribe()

	if _, open := <-ch; open {
		t.Error("expected channel closed after unsubscribe")
	}
	f.publish(progressEvent(1))
}

func progressEvent(frame int) model.ProgressEvent {
	return model.ProgressEvent{Type: model.EventProgress, JobID: "job", Frame: frame}
}

func terminalProgress() model.ProgressEvent {
	return model.ProgressEvent{Type: model.EventCompleted, JobID: "job", Status: model.JobStatusCompleted}
}
