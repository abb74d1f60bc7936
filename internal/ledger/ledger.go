// Package ledger defines the client side of the shared binding ledger and
// its Fabric implementations.
//
// The ledger is append-only and trusted. Observers only Submit; the
// reconciler only QueryAll. Every call is bounded by a timeout and a timeout
// is a failure, never an empty result.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arpledger/internal/domain"
)

var (
	// ErrTimeout is returned when a ledger call exceeds its deadline
	ErrTimeout = errors.New("ledger call timed out")
	// ErrRejected is returned when the ledger answered with a failure status
	ErrRejected = errors.New("ledger rejected call")
)

// Client is the ledger surface the core depends on
type Client interface {
	// Submit records one binding, as reported by the caller
	Submit(ctx context.Context, b domain.Binding) error
	// QueryAll returns the latest binding for every ip
	QueryAll(ctx context.Context) ([]domain.Binding, error)
}

// Chaincode function names
const (
	FnRecord = "RecordARPEntry"
	FnGetAll = "GetAllARPEntries"
)

// Entry is the chaincode's stored record
type Entry struct {
	IPAddress  string    `json:"ipAddress"`
	MACAddress string    `json:"macAddress"`
	Interface  string    `json:"interface"`
	Hostname   string    `json:"hostname"`
	Timestamp  time.Time `json:"timestamp"`
	EntryType  string    `json:"entryType"`
	State      string    `json:"state"`
	RecordedBy string    `json:"recordedBy"`
}

// RecordArgs returns the RecordARPEntry arguments for a binding
func RecordArgs(b domain.Binding) []string {
	return []string{b.IP, b.HWAddr, b.Interface, "", "dynamic", "reachable", b.ObserverID}
}

// DecodeEntries parses a GetAllARPEntries result. Entries that do not
// normalize are skipped and returned as warnings.
func DecodeEntries(payload []byte) ([]domain.Binding, []error, error) {
	if len(payload) == 0 {
		return nil, nil, nil
	}

	var entries []*Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: decode query result: %v", domain.ErrMalformed, err)
	}

	var (
		out      = make([]domain.Binding, 0, len(entries))
		warnings []error
	)
	for _, e := range entries {
		if e == nil {
			continue
		}
		b := domain.Binding{
			IP:         e.IPAddress,
			HWAddr:     e.MACAddress,
			ObserverID: e.RecordedBy,
			Interface:  e.Interface,
			Kind:       domain.KindReply,
			RecordedAt: e.Timestamp,
		}
		if err := b.Normalize(); err != nil {
			warnings = append(warnings, err)
			continue
		}
		out = append(out, b)
	}
	return out, warnings, nil
}

// WithTimeout wraps a client so every call carries its own deadline
func WithTimeout(c Client, timeout time.Duration) Client {
	if timeout <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: timeout}
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

func (t *timeoutClient) Submit(ctx context.Context, b domain.Binding) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return classify(ctx, t.next.Submit(ctx, b))
}

func (t *timeoutClient) QueryAll(ctx context.Context) ([]domain.Binding, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.QueryAll(ctx)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return out, nil
}

// classify maps a deadline overrun onto ErrTimeout
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
