package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arpledger/internal/domain"
	"arpledger/internal/sink"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// scriptedLedger returns one scripted answer per QueryAll call, repeating the last
type scriptedLedger struct {
	mu      sync.Mutex
	answers []answer
	calls   int
	block   chan struct{}
}

type answer struct {
	entries []domain.Binding
	err     error
}

func (s *scriptedLedger) Submit(context.Context, domain.Binding) error { return nil }

func (s *scriptedLedger) QueryAll(ctx context.Context) ([]domain.Binding, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.answers) {
		i = len(s.answers) - 1
	}
	s.calls++
	a := s.answers[i]
	return a.entries, a.err
}

// captureSink keeps posted events
type captureSink struct {
	mu     sync.Mutex
	events []domain.ReconciliationEvent
	err    error
}

func (c *captureSink) Post(_ context.Context, ev domain.ReconciliationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *captureSink) all() []domain.ReconciliationEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ReconciliationEvent(nil), c.events...)
}

func entry(ip, hw string) domain.Binding {
	return domain.Binding{IP: ip, HWAddr: hw, ObserverID: "Org1MSP", Kind: domain.KindReply, RecordedAt: fixedNow}
}

func newTestReconciler(l *scriptedLedger, s sink.Sink, emitUnchanged bool) *Reconciler {
	return New(l, s, Options{
		Interval:      time.Hour,
		EmitUnchanged: emitUnchanged,
		Now:           func() time.Time { return fixedNow },
	})
}

func TestChangedAndNew(t *testing.T) {
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.5", "aa:aa:aa:aa:aa:aa")}},
		{entries: []domain.Binding{entry("10.0.0.5", "bb:bb:bb:bb:bb:bb"), entry("10.0.0.9", "cc:cc:cc:cc:cc:cc")}},
	}}
	s := &captureSink{}
	r := newTestReconciler(l, s, false)
	ctx := context.Background()

	r.PollOnce(ctx)
	first := s.all()
	if len(first) != 1 || first[0].EventType != domain.EventNew {
		t.Fatalf("first poll events = %+v", first)
	}

	res := r.PollOnce(ctx)
	if res.Changed != 1 || res.New != 1 {
		t.Fatalf("result = %+v", res)
	}

	events := s.all()[1:]
	if len(events) != 2 {
		t.Fatalf("second poll emitted %d events, want 2", len(events))
	}

	changed, added := events[0], events[1]
	if changed.EventType != domain.EventChanged || changed.IP != "10.0.0.5" {
		t.Fatalf("first event = %+v", changed)
	}
	if changed.PreviousHWAddr != "aa:aa:aa:aa:aa:aa" || changed.HWAddr != "bb:bb:bb:bb:bb:bb" {
		t.Errorf("changed = %s -> %s", changed.PreviousHWAddr, changed.HWAddr)
	}
	if added.EventType != domain.EventNew || added.IP != "10.0.0.9" || added.HWAddr != "cc:cc:cc:cc:cc:cc" {
		t.Errorf("new event = %+v", added)
	}
	if added.PreviousHWAddr != "" {
		t.Errorf("new event carries previous %q", added.PreviousHWAddr)
	}
}

func TestQueryFailureKeepsState(t *testing.T) {
	failure := errors.New("peer unreachable")
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.5", "aa:aa:aa:aa:aa:aa")}},
		{err: failure},
		{err: failure},
	}}
	s := &captureSink{}
	r := newTestReconciler(l, s, false)
	ctx := context.Background()

	r.PollOnce(ctx)
	before := r.Known()
	posted := len(s.all())

	for i := 0; i < 2; i++ {
		res := r.PollOnce(ctx)
		if !res.Skipped || len(res.Events) != 0 {
			t.Fatalf("poll %d result = %+v", i, res)
		}
	}

	after := r.Known()
	if len(after) != len(before) || after["10.0.0.5"].HWAddr != before["10.0.0.5"].HWAddr {
		t.Errorf("known state changed: %v -> %v", before, after)
	}
	if got := len(s.all()); got != posted {
		t.Errorf("events emitted during failures: %d", got-posted)
	}
	if tot := r.Totals(); tot.Skipped != 2 || tot.Polls != 3 {
		t.Errorf("totals = %+v", tot)
	}
}

func TestIdempotentPoll(t *testing.T) {
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.2", "11:22:33:44:55:66")}},
	}}
	s := &captureSink{}
	r := newTestReconciler(l, s, false)
	ctx := context.Background()

	r.PollOnce(ctx)
	for i := 0; i < 3; i++ {
		res := r.PollOnce(ctx)
		if res.Changed != 0 || res.New != 0 || res.Unchanged != 1 {
			t.Fatalf("repeat poll %d result = %+v", i, res)
		}
	}
	if got := len(s.all()); got != 1 {
		t.Errorf("emitted %d events, want only the first new", got)
	}
}

func TestEmitUnchanged(t *testing.T) {
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.2", "11:22:33:44:55:66")}},
	}}
	s := &captureSink{}
	r := newTestReconciler(l, s, true)
	ctx := context.Background()

	r.PollOnce(ctx)
	r.PollOnce(ctx)

	events := s.all()
	if len(events) != 2 || events[1].EventType != domain.EventUnchanged {
		t.Fatalf("events = %+v", events)
	}
	if events[1].Message != "Valid update: 10.0.0.2 -> 11:22:33:44:55:66" {
		t.Errorf("message = %q", events[1].Message)
	}
}

func TestExactlyOneNewPerIP(t *testing.T) {
	// duplicate rows for one ip resolve to one binding
	later := entry("10.0.0.7", "aa:bb:cc:00:00:02")
	later.RecordedAt = fixedNow.Add(time.Second)
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.7", "aa:bb:cc:00:00:01"), later, entry("10.0.0.8", "aa:bb:cc:00:00:08")}},
	}}
	s := &captureSink{}
	r := newTestReconciler(l, s, false)

	res := r.PollOnce(context.Background())
	if res.New != 2 || res.Changed != 0 {
		t.Fatalf("result = %+v", res)
	}

	counts := map[string]int{}
	for _, ev := range s.all() {
		if ev.EventType != domain.EventNew {
			t.Errorf("unexpected %s event", ev.EventType)
		}
		counts[ev.IP]++
	}
	if counts["10.0.0.7"] != 1 || counts["10.0.0.8"] != 1 {
		t.Errorf("new counts = %v", counts)
	}
	if hw, _ := r.Known().HWAddr("10.0.0.7"); hw != "aa:bb:cc:00:00:02" {
		t.Errorf("latest write lost: %s", hw)
	}
}

func TestDisappearedIPNotReported(t *testing.T) {
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.1", "aa:bb:cc:00:00:01"), entry("10.0.0.2", "aa:bb:cc:00:00:02")}},
		{entries: []domain.Binding{entry("10.0.0.2", "aa:bb:cc:00:00:02")}},
		{entries: []domain.Binding{entry("10.0.0.1", "aa:bb:cc:00:00:01"), entry("10.0.0.2", "aa:bb:cc:00:00:02")}},
	}}
	s := &captureSink{}
	r := newTestReconciler(l, s, false)
	ctx := context.Background()

	r.PollOnce(ctx)
	res := r.PollOnce(ctx)
	if len(res.Events) != 0 {
		t.Fatalf("vanished ip produced events: %+v", res.Events)
	}
	if _, ok := r.Known()["10.0.0.1"]; ok {
		t.Fatal("known state should be replaced, not merged")
	}

	// full replacement means a returning ip is new again
	res = r.PollOnce(ctx)
	if res.New != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestMalformedEntriesDropped(t *testing.T) {
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.1", "AA:BB:CC:00:00:01"), entry("bogus", "aa:bb:cc:00:00:02")}},
	}}
	r := newTestReconciler(l, &captureSink{}, false)

	res := r.PollOnce(context.Background())
	if res.Bindings != 1 || res.New != 1 {
		t.Fatalf("result = %+v", res)
	}
	if hw, _ := r.Known().HWAddr("10.0.0.1"); hw != "aa:bb:cc:00:00:01" {
		t.Errorf("hwaddr not normalized: %s", hw)
	}
}

func TestSinkFailureDoesNotAffectState(t *testing.T) {
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.1", "aa:bb:cc:00:00:01")}},
	}}
	s := &captureSink{err: errors.New("dashboard down")}
	r := newTestReconciler(l, s, false)

	res := r.PollOnce(context.Background())
	if res.Skipped || res.New != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(r.Known()) != 1 {
		t.Fatal("known state not updated")
	}
}

func TestKnownReturnsCopy(t *testing.T) {
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.1", "aa:bb:cc:00:00:01")}},
	}}
	r := newTestReconciler(l, &captureSink{}, false)
	r.PollOnce(context.Background())

	k := r.Known()
	delete(k, "10.0.0.1")
	if len(r.Known()) != 1 {
		t.Fatal("Known() exposed internal state")
	}
}

func TestStateTransitions(t *testing.T) {
	l := &scriptedLedger{
		answers: []answer{{entries: []domain.Binding{entry("10.0.0.1", "aa:bb:cc:00:00:01")}}},
		block:   make(chan struct{}),
	}
	r := newTestReconciler(l, &captureSink{}, false)

	if r.State() != StateIdle {
		t.Fatalf("initial state = %s", r.State())
	}

	done := make(chan struct{})
	go func() {
		r.PollOnce(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for r.State() != StatePolling {
		if time.Now().After(deadline) {
			t.Fatal("never entered polling")
		}
		time.Sleep(time.Millisecond)
	}

	close(l.block)
	<-done
	if r.State() != StateIdle {
		t.Errorf("state after poll = %s, want idle", r.State())
	}
}

func TestRunPollsImmediatelyAndStops(t *testing.T) {
	l := &scriptedLedger{answers: []answer{
		{entries: []domain.Binding{entry("10.0.0.1", "aa:bb:cc:00:00:01")}},
	}}
	s := &captureSink{}
	r := New(l, s, Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for r.Totals().Polls < 3 {
		if time.Now().After(deadline) {
			t.Fatal("Run did not keep polling")
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	if got := len(s.all()); got != 1 {
		t.Errorf("emitted %d events, want 1", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StatePolling, "polling"},
		{StateSkipped, "skipped"},
		{StateDiffed, "diffed"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
