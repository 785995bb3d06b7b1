// Package diag is an optional diagnostics surface: it accumulates the
// Warning lists mapping and hole-punch operations return and can publish
// them over HTTP or to InfluxDB. mappingctx, socketutil, echo, rendezvous,
// udpsocket, and tcpsocket stay free of it; cmd/chat wires a Recorder in
// at the call sites that already receive Warning slices, so only the
// command that wants visibility into what's going wrong in the field
// pays for it.
//
// Grounded on dropbox-llama's Summarizer: the same store/summarize split
// across a ticker-driven goroutine pair, repurposed to collect Outcomes
// (one per mapping or punch attempt) instead of latency Results.
package diag

import (
	"log"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
)

// Outcome records the result of a single mapping or hole-punch attempt:
// its warnings, whether it ultimately succeeded, and when it ran.
type Outcome struct {
	ID        string
	Operation string
	Warnings  []string
	Success   bool
	At        time.Time
}

// newOutcomeID returns 10 bytes of a new UUID4 as a string, grounded on
// dropbox-llama's util.go NewID: enough entropy to correlate an Outcome
// across the recorder's buffer and an InfluxDB point without the full
// 36-byte textual form.
func newOutcomeID() string {
	full := uuid.NewV4()
	last10 := full[len(full)-10:]
	return string(last10)
}

// Recorder stores incoming Outcomes and periodically snapshots them into
// Cache, the same store/summarize split as dropbox-llama's Summarizer.
type Recorder struct {
	CMutex sync.RWMutex
	Cache  []Outcome

	in       chan Outcome
	stop     chan bool
	mutex    sync.RWMutex
	pending  []Outcome
	interval time.Duration
	ticker   *time.Ticker
}

// NewRecorder returns a Recorder that snapshots accumulated outcomes into
// Cache every interval.
func NewRecorder(interval time.Duration) *Recorder {
	return &Recorder{
		in:       make(chan Outcome, 64),
		stop:     make(chan bool),
		interval: interval,
	}
}

// Run starts the recorder's background goroutines. Non-blocking.
func (r *Recorder) Run() {
	r.ticker = time.NewTicker(r.interval)
	go r.store()
	go r.waitToSnapshot()
}

// Record submits an outcome for the next snapshot. Non-blocking: a full
// buffer drops the outcome rather than stall the caller's mapping or
// punch path.
func (r *Recorder) Record(o Outcome) {
	if o.ID == "" {
		o.ID = newOutcomeID()
	}
	select {
	case r.in <- o:
	default:
		log.Println("diag: recorder buffer full, dropping outcome for", o.Operation)
	}
}

func (r *Recorder) store() {
	for {
		select {
		case <-r.stop:
			return
		case o := <-r.in:
			r.mutex.Lock()
			r.pending = append(r.pending, o)
			r.mutex.Unlock()
		}
	}
}

func (r *Recorder) waitToSnapshot() {
	for {
		select {
		case <-r.stop:
			return
		case <-r.ticker.C:
			r.snapshot()
		}
	}
}

func (r *Recorder) snapshot() {
	r.mutex.Lock()
	pending := r.pending
	r.pending = nil
	r.mutex.Unlock()

	r.CMutex.Lock()
	r.Cache = pending
	r.CMutex.Unlock()
}

// Stop halts the recorder's goroutines.
func (r *Recorder) Stop() {
	select {
	case <-r.stop:
	default:
		r.ticker.Stop()
		close(r.stop)
	}
}

// Snapshot returns the most recently captured batch of outcomes.
func (r *Recorder) Snapshot() []Outcome {
	r.CMutex.RLock()
	defer r.CMutex.RUnlock()
	out := make([]Outcome, len(r.Cache))
	copy(out, r.Cache)
	return out
}
