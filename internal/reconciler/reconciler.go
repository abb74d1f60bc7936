package reconciler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
	"arpledger/internal/ledger"
	"arpledger/internal/sink"
)

// State is the reconciler's position in its poll cycle
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateSkipped
	StateDiffed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSkipped:
		return "skipped"
	case StateDiffed:
		return "diffed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Reconciler
type Options struct {
	Interval      time.Duration
	EmitUnchanged bool
	// SinkTimeout bounds each event post
	SinkTimeout time.Duration
	// Now is the clock, for tests
	Now func() time.Time
}

// Result summarizes one poll
type Result struct {
	Skipped   bool
	Bindings  int
	New       int
	Unchanged int
	Changed   int
	Events    []domain.ReconciliationEvent
}

// Totals accumulates results across polls
type Totals struct {
	Polls     int64 `json:"polls"`
	Skipped   int64 `json:"skipped"`
	New       int64 `json:"new"`
	Unchanged int64 `json:"unchanged"`
	Changed   int64 `json:"changed"`
}

// Reconciler polls the ledger and classifies every binding against the
// previous snapshot. Only one poll runs at a time.
type Reconciler struct {
	client ledger.Client
	sink   sink.Sink
	opts   Options

	pollMu sync.Mutex // serializes PollOnce

	mu    sync.RWMutex
	known domain.Snapshot

	state  atomic.Int32
	totals Totals
}

// New creates a reconciler with an empty Known State
func New(client ledger.Client, s sink.Sink, opts Options) *Reconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 5 * time.Second
	}
	if s == nil {
		s = sink.Log{}
	}
	return &Reconciler{
		client: client,
		sink:   s,
		opts:   opts,
		known:  domain.Snapshot{},
	}
}

// Run polls once immediately and then every interval until ctx is cancelled.
// A slow poll delays the next one; ticks are not caught up.
func (r *Reconciler) Run(ctx context.Context) error {
	logrus.Infof("Reconciler: polling every %s", r.opts.Interval)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		r.PollOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce queries the ledger, diffs against Known State, swaps in the new
// snapshot and posts events. A failed query leaves Known State untouched.
func (r *Reconciler) PollOnce(ctx context.Context) Result {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	r.setState(StatePolling)
	defer r.setState(StateIdle)
	atomic.AddInt64(&r.totals.Polls, 1)

	entries, err := r.client.QueryAll(ctx)
	if err != nil {
		r.setState(StateSkipped)
		atomic.AddInt64(&r.totals.Skipped, 1)
		logrus.Warnf("Reconciler: query failed, keeping previous state: %v", err)
		return Result{Skipped: true}
	}

	next := domain.BuildSnapshot(normalize(entries))

	r.mu.RLock()
	known := r.known
	r.mu.RUnlock()

	classes := domain.Diff(known, next)
	now := r.opts.Now()

	res := Result{Bindings: len(next)}
	for _, c := range classes {
		switch c.Type {
		case domain.EventNew:
			res.New++
		case domain.EventChanged:
			res.Changed++
		case domain.EventUnchanged:
			res.Unchanged++
			if !r.opts.EmitUnchanged {
				continue
			}
		}
		res.Events = append(res.Events, c.Event(now))
	}

	r.mu.Lock()
	r.known = next
	r.mu.Unlock()
	r.setState(StateDiffed)

	atomic.AddInt64(&r.totals.New, int64(res.New))
	atomic.AddInt64(&r.totals.Unchanged, int64(res.Unchanged))
	atomic.AddInt64(&r.totals.Changed, int64(res.Changed))

	logrus.Debugf("Reconciler: %d bindings, %d new, %d changed, %d unchanged",
		res.Bindings, res.New, res.Changed, res.Unchanged)

	for _, ev := range res.Events {
		r.post(ctx, ev)
	}
	return res
}

// normalize drops entries that cannot be normalized
func normalize(entries []domain.Binding) []domain.Binding {
	out := entries[:0:0]
	for _, b := range entries {
		if err := b.Normalize(); err != nil {
			logrus.Warnf("Reconciler: dropping ledger entry: %v", err)
			continue
		}
		out = append(out, b)
	}
	return out
}

// post delivers one event best-effort
func (r *Reconciler) post(ctx context.Context, ev domain.ReconciliationEvent) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.SinkTimeout)
	defer cancel()
	if err := r.sink.Post(ctx, ev); err != nil {
		logrus.Warnf("Reconciler: failed to deliver %s event for %s: %v", ev.EventType, ev.IP, err)
	}
}

func (r *Reconciler) setState(s State) {
	r.state.Store(int32(s))
}

// State returns the current cycle state
func (r *Reconciler) State() State {
	return State(r.state.Load())
}

// Known returns a copy of Known State
func (r *Reconciler) Known() domain.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.known.Clone()
}

// Totals returns counts across all polls so far
func (r *Reconciler) Totals() Totals {
	return Totals{
		Polls:     atomic.LoadInt64(&r.totals.Polls),
		Skipped:   atomic.LoadInt64(&r.totals.Skipped),
		New:       atomic.LoadInt64(&r.totals.New),
		Unchanged: atomic.LoadInt64(&r.totals.Unchanged),
		Changed:   atomic.LoadInt64(&r.totals.Changed),
	}
}
