package observer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"arpledger/internal/config"
	"arpledger/internal/domain"
	"arpledger/internal/ledger"
	"arpledger/internal/source"
)

// Options configures an Agent
type Options struct {
	ObserverID string
	Interface  string
	Dedup      config.DedupPolicy
	Workers    int

	// Falsifier turns the agent Byzantine when set
	Falsifier *Falsifier
}

// Stats counts what the agent did with its input
type Stats struct {
	Observed   int64
	Malformed  int64
	Suppressed int64
	Submitted  int64
	Failed     int64
	Falsified  int64
}

// Agent deduplicates observed bindings and submits them to the ledger.
//
// The seen set grows for the life of the process. It holds one entry per
// distinct (ip, hwaddr) pair, which stays small on a LAN; restart the
// observer to reset it.
type Agent struct {
	opts   Options
	client ledger.Client

	mu      sync.Mutex
	seen    map[domain.DedupKey]struct{}
	pending map[domain.DedupKey]int

	observed   atomic.Int64
	malformed  atomic.Int64
	suppressed atomic.Int64
	submitted  atomic.Int64
	failed     atomic.Int64
	falsified  atomic.Int64
}

// NewAgent creates an agent submitting through client
func NewAgent(client ledger.Client, opts Options) *Agent {
	if opts.Dedup == "" {
		opts.Dedup = config.DedupReplyPassthrough
	}
	return &Agent{
		opts:    opts,
		client:  client,
		seen:    make(map[domain.DedupKey]struct{}),
		pending: make(map[domain.DedupKey]int),
	}
}

// Run drains src until it closes or ctx is cancelled, then waits for
// in-flight submissions.
func (a *Agent) Run(ctx context.Context, src source.Source) error {
	bindings, err := src.Bindings(ctx)
	if err != nil {
		return err
	}

	d := NewDispatcher(ctx, a.opts.Workers, a.client.Submit)
	defer d.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-bindings:
			if !ok {
				logrus.Infof("Observer: source exhausted")
				return nil
			}
			a.observe(ctx, d, b)
		}
	}
}

// Observe handles a single binding and submits inline. Run uses the
// dispatcher instead.
func (a *Agent) Observe(ctx context.Context, b domain.Binding) {
	a.observe(ctx, NewDispatcher(ctx, 0, a.client.Submit), b)
}

func (a *Agent) observe(ctx context.Context, d *Dispatcher, b domain.Binding) {
	a.observed.Add(1)

	if err := b.Normalize(); err != nil {
		a.malformed.Add(1)
		logrus.Warnf("Observer: dropping binding: %v", err)
		return
	}
	if b.ObserverID == "" {
		b.ObserverID = a.opts.ObserverID
	}
	if b.Interface == "" {
		b.Interface = a.opts.Interface
	}
	if b.RecordedAt.IsZero() {
		b.RecordedAt = time.Now()
	}

	key := b.Key()
	if !a.accept(b.Kind, key) {
		a.suppressed.Add(1)
		logrus.Debugf("Observer: suppressing %s", b)
		return
	}

	send := b
	if f := a.opts.Falsifier; f != nil && f.Targets(b.IP) {
		send.HWAddr = f.Falsify(b.IP, b.HWAddr)
		a.falsified.Add(1)
		logrus.Warnf("Observer: reporting %s as %s (observed %s)", b.IP, send.HWAddr, b.HWAddr)
	}

	d.Dispatch(ctx, send, func(err error) {
		a.complete(key, b, err)
	})
}

// accept applies the dedup policy and marks accepted keys in flight.
// A request for an in-flight key counts as seen and is not resubmitted if
// that call fails; the next observation of the key retries it.
func (a *Agent) accept(kind domain.Kind, key domain.DedupKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	passthrough := kind == domain.KindReply && a.opts.Dedup != config.DedupStrict
	if !passthrough {
		if _, ok := a.seen[key]; ok {
			return false
		}
		if a.pending[key] > 0 {
			return false
		}
	}
	a.pending[key]++
	return true
}

// complete records the observed key on success only
func (a *Agent) complete(key domain.DedupKey, observed domain.Binding, err error) {
	a.mu.Lock()
	if a.pending[key]--; a.pending[key] <= 0 {
		delete(a.pending, key)
	}
	if err == nil {
		a.seen[key] = struct{}{}
	}
	a.mu.Unlock()

	if err != nil {
		a.failed.Add(1)
		if errors.Is(err, ledger.ErrTimeout) {
			logrus.Warnf("Observer: submit of %s timed out, will retry on next observation", observed)
		} else {
			logrus.Warnf("Observer: submit of %s failed: %v", observed, err)
		}
		return
	}
	a.submitted.Add(1)
	logrus.Infof("Observer: recorded %s", observed)
}

// Seen reports whether key has been successfully submitted
func (a *Agent) Seen(key domain.DedupKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.seen[key]
	return ok
}

// Stats returns a snapshot of the agent's counters
func (a *Agent) Stats() Stats {
	return Stats{
		Observed:   a.observed.Load(),
		Malformed:  a.malformed.Load(),
		Suppressed: a.suppressed.Load(),
		Submitted:  a.submitted.Load(),
		Failed:     a.failed.Load(),
		Falsified:  a.falsified.Load(),
	}
}
