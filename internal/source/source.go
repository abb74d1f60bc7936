package source

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
)

// Source produces observed bindings in arrival order. The channel is closed
// when the source is exhausted or ctx is cancelled.
type Source interface {
	Bindings(ctx context.Context) (<-chan domain.Binding, error)
}

// pollFunc reads one full table of bindings
type pollFunc func(ctx context.Context) ([]domain.Binding, error)

// poll runs fn immediately and then every interval, emitting each result in
// order. Failed polls are logged and retried on the next tick.
func poll(ctx context.Context, name string, interval time.Duration, fn pollFunc) <-chan domain.Binding {
	out := make(chan domain.Binding, 64)

	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			bindings, err := fn(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logrus.Warnf("%s: poll failed: %v", name, err)
			}
			for _, b := range bindings {
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}
