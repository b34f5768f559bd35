package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileRecorder_AppendAndLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "logs", "queries.jsonl")
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	defer rec.Close()

	ev1 := Event{Timestamp: time.Unix(1, 0).UTC(), RequestID: "a", Source: "http", Question: "hourly?", HasChart: true, ChartType: "bar"}
	ev2 := Event{Timestamp: time.Unix(2, 0).UTC(), RequestID: "b", Source: "telegram", ChatID: 42, Question: "peak?", ErrorKind: "MalformedResponse"}
	if err := rec.AppendEvent(ev1); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := rec.AppendEvent(ev2); err != nil {
		t.Fatalf("append2: %v", err)
	}

	events, err := rec.LoadEvents()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2, got %d", len(events))
	}
	if events[0].RequestID != "a" || events[1].ChatID != 42 {
		t.Fatalf("order mismatch: %+v", events)
	}
	if !events[0].HasChart || events[1].ErrorKind != "MalformedResponse" {
		t.Fatalf("fields not round-tripped: %+v", events)
	}

	// ensure file exists and non-empty
	st, err := os.Stat(p)
	if err != nil || st.Size() == 0 {
		t.Fatalf("file not written")
	}
}

func TestFileRecorder_SkipsCorruptLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "q.jsonl")
	if err := os.WriteFile(p, []byte("{not json\n\n{\"request_id\":\"ok\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	events, err := rec.LoadEvents()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 1 || events[0].RequestID != "ok" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFileRecorder_ConcurrentAppends(t *testing.T) {
	rec, err := NewFileRecorder(filepath.Join(t.TempDir(), "q.jsonl"))
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	defer rec.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := rec.AppendEvent(Event{RequestID: fmt.Sprint(i), Question: "q"}); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	events, err := rec.LoadEvents()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 20 {
		t.Fatalf("want 20 intact events, got %d", len(events))
	}
}

func TestFileRecorder_AppendAfterClose(t *testing.T) {
	rec, err := NewFileRecorder(filepath.Join(t.TempDir(), "q.jsonl"))
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rec.AppendEvent(Event{RequestID: "late"}); err == nil {
		t.Fatal("expected error after close")
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
