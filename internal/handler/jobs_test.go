package handler

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestJobTracker_Lifecycle(t *testing.T) {
	tracker := NewJobTracker()
	tracker.CreateJob("j-1", "d-1")

	job, ok := tracker.GetJob("j-1")
	if !ok {
		t.Fatal("job not found after create")
	}
	if job.Status != "running" || job.DocumentID != "d-1" {
		t.Fatalf("unexpected initial job: %+v", job)
	}

	tracker.UpdateJob("j-1", "embedding", 3, 10, "running")
	job, _ = tracker.GetJob("j-1")
	if job.Progress != 3 || job.Total != 10 || job.Stage != "embedding" {
		t.Fatalf("unexpected job after update: %+v", job)
	}

	tracker.UpdateJob("j-1", "done", 10, 10, "complete")
	job, _ = tracker.GetJob("j-1")
	if job.Status != "complete" || job.CompletedAt.IsZero() {
		t.Fatalf("job not completed: %+v", job)
	}
}

func TestJobTracker_FailJob(t *testing.T) {
	tracker := NewJobTracker()
	tracker.CreateJob("j-2", "d-2")
	tracker.FailJob("j-2", errors.New("embed batch: boom"))

	job, _ := tracker.GetJob("j-2")
	if job.Status != "error" || job.Error != "embed batch: boom" {
		t.Fatalf("unexpected failed job: %+v", job)
	}
}

func TestJobTracker_SubscribeReceivesUpdates(t *testing.T) {
	tracker := NewJobTracker()
	tracker.CreateJob("j-3", "d-3")

	ch := tracker.Subscribe("j-3")
	tracker.UpdateJob("j-3", "embedding", 1, 2, "running")

	select {
	case update := <-ch:
		if update.Progress != 1 || update.Stage != "embedding" {
			t.Fatalf("unexpected update: %+v", update)
		}
	default:
		t.Fatal("expected a buffered update")
	}

	tracker.Unsubscribe("j-3", ch)
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestJobTracker_UnsubscribeDuringUpdates(t *testing.T) {
	tracker := NewJobTracker()
	tracker.CreateJob("j-4", "d-4")

	chans := make([]chan JobStatus, 0, 500)
	for i := 0; i < 500; i++ {
		chans = append(chans, tracker.Subscribe("j-4"))
	}

	// Updates and unsubscribes race; neither side may send on a closed
	// channel.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tracker.UpdateJob("j-4", "embedding", i, 1000, "running")
		}
	}()
	for _, ch := range chans {
		tracker.Unsubscribe("j-4", ch)
	}
	wg.Wait()
}

func TestWriteJobEvent_FinalStates(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	if writeJobEvent(w, JobStatus{ID: "j-5", Status: "running", Stage: "embedding"}) {
		t.Fatal("running job should not be final")
	}
	if !strings.Contains(buf.String(), "event: progress\n") {
		t.Fatalf("expected progress event, got %q", buf.String())
	}

	buf.Reset()
	if !writeJobEvent(w, JobStatus{ID: "j-5", Status: "complete", Stage: "done"}) {
		t.Fatal("complete job should terminate the stream")
	}
	if !strings.Contains(buf.String(), "event: complete\n") {
		t.Fatalf("expected complete event, got %q", buf.String())
	}

	buf.Reset()
	if !writeJobEvent(w, JobStatus{ID: "j-5", Status: "error", Error: "boom"}) {
		t.Fatal("failed job should terminate the stream")
	}
	if !strings.Contains(buf.String(), "event: error\n") {
		t.Fatalf("expected error event, got %q", buf.String())
	}
}

func TestJobTracker_UnknownJob(t *testing.T) {
	tracker := NewJobTracker()
	if _, ok := tracker.GetJob("missing"); ok {
		t.Fatal("expected missing job")
	}
	// Updates to unknown jobs are ignored, not panics.
	tracker.UpdateJob("missing", "x", 1, 1, "running")
	tracker.FailJob("missing", errors.New("nope"))
}
