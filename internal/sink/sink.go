package sink

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
)

// Sink receives reconciliation events. Delivery is best-effort: callers log
// failures and move on.
type Sink interface {
	Post(ctx context.Context, ev domain.ReconciliationEvent) error
}

// Func adapts a function to Sink
type Func func(ctx context.Context, ev domain.ReconciliationEvent) error

// Post calls f
func (f Func) Post(ctx context.Context, ev domain.ReconciliationEvent) error {
	return f(ctx, ev)
}

// Multi posts every event to each sink in order. One failing sink does not
// stop the others; their errors are joined.
type Multi []Sink

// Post fans ev out
func (m Multi) Post(ctx context.Context, ev domain.ReconciliationEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Post(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes events to the process log. Changed bindings log at warn level.
type Log struct{}

// Post logs ev
func (Log) Post(_ context.Context, ev domain.ReconciliationEvent) error {
	entry := logrus.WithFields(logrus.Fields{
		"event":    ev.EventType,
		"ip":       ev.IP,
		"hwaddr":   ev.HWAddr,
		"observer": ev.ObserverID,
	})
	if ev.IsSpoofingSignal() {
		entry.WithField("previous", ev.PreviousHWAddr).Warnf("Reconciler: %s", ev.Message)
		return nil
	}
	entry.Infof("Reconciler: %s", ev.Message)
	return nil
}

// EventJournal is the storage a Journal sink writes to
type EventJournal interface {
	SaveEvent(ctx context.Context, ev domain.ReconciliationEvent) error
}

// Journal persists events, e.g. to the sqlite event journal
type Journal struct {
	Store EventJournal
}

// Post saves ev
func (j Journal) Post(ctx context.Context, ev domain.ReconciliationEvent) error {
	return j.Store.SaveEvent(ctx, ev)
}

// Publisher is a live fan-out such as the SSE hub
type Publisher interface {
	Publish(ev domain.ReconciliationEvent) bool
}

// ErrDropped is returned when a live publisher had no room for an event
var ErrDropped = errors.New("event dropped")

// Live forwards events to a Publisher without blocking
type Live struct {
	Publisher Publisher
}

// Post publishes ev
func (l Live) Post(_ context.Context, ev domain.ReconciliationEvent) error {
	if !l.Publisher.Publish(ev) {
		return ErrDropped
	}
	return nil
}
