package diag

import (
	"testing"
	"time"
)

func TestRecorderSnapshotsOnInterval(t *testing.T) {
	r := NewRecorder(30 * time.Millisecond)
	r.Run()
	defer r.Stop()

	r.Record(Outcome{Operation: "udp-map", Success: true})
	r.Record(Outcome{Operation: "tcp-punch", Success: false, Warnings: []string{"timed out"}})

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		if len(r.Snapshot()) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected 2 recorded outcomes after a snapshot interval, got %d", len(r.Snapshot()))
}

func TestRecorderStopIsIdempotent(t *testing.T) {
	r := NewRecorder(time.Hour)
	r.Run()
	r.Stop()
	r.Stop() // must not panic or block
}

func TestRecorderAssignsIDWhenMissing(t *testing.T) {
	r := NewRecorder(30 * time.Millisecond)
	r.Run()
	defer r.Stop()

	r.Record(Outcome{Operation: "udp-map", Success: true})

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		snap := r.Snapshot()
		if len(snap) == 1 {
			if snap[0].ID == "" {
				t.Fatal("expected Record to assign a non-empty ID")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected a recorded outcome after a snapshot interval")
}
