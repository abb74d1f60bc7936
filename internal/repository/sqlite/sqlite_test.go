package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"arpledger/internal/domain"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

func binding(ip, hw, observer string, at time.Time) domain.Binding {
	return domain.Binding{
		IP:         ip,
		HWAddr:     hw,
		ObserverID: observer,
		Interface:  "eth0",
		Kind:       domain.KindRequest,
		RecordedAt: at,
	}
}

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestNullToString(t *testing.T) {
	tests := []struct {
		name     string
		input    sql.NullString
		expected string
	}{
		{"valid string", sql.NullString{String: "eth0", Valid: true}, "eth0"},
		{"null", sql.NullString{}, ""},
		{"valid empty", sql.NullString{String: "", Valid: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertEqual(t, tt.expected, nullToString(tt.input))
		})
	}
}

func TestStringToNull(t *testing.T) {
	assertEqual(t, sql.NullString{}, stringToNull(""))
	assertEqual(t, sql.NullString{String: "org1", Valid: true}, stringToNull("org1"))
}

func TestTimeRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.FixedZone("X", 3600))
	got, err := parseTime(formatTime(at))
	assertNoError(t, err)
	if !got.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got)
	}

	if _, err := parseTime("yesterday"); err == nil {
		t.Fatal("expected error for bad timestamp")
	}
}

// ============================================================================
// Ledger Tests
// ============================================================================

func TestSubmitAndQueryAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assertNoError(t, repo.Submit(ctx, binding("10.0.0.2", "AA:BB:CC:00:00:02", "Org1MSP", base)))
	assertNoError(t, repo.Submit(ctx, binding("10.0.0.1", "aa:bb:cc:00:00:01", "Org1MSP", base)))

	got, err := repo.QueryAll(ctx)
	assertNoError(t, err)
	assertEqual(t, 2, len(got))

	// ordered by ip, normalized on write
	assertEqual(t, "10.0.0.1", got[0].IP)
	assertEqual(t, "10.0.0.2", got[1].IP)
	assertEqual(t, "aa:bb:cc:00:00:02", got[1].HWAddr)
	assertEqual(t, "Org1MSP", got[1].ObserverID)
	assertEqual(t, domain.KindRequest, got[1].Kind)
	if !got[1].RecordedAt.Equal(base) {
		t.Fatalf("expected recorded_at %v, got %v", base, got[1].RecordedAt)
	}
}

func TestSubmitLastWriteWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assertNoError(t, repo.Submit(ctx, binding("10.0.0.5", "aa:bb:cc:00:00:05", "Org1MSP", base)))
	assertNoError(t, repo.Submit(ctx, binding("10.0.0.5", "bb:cc:dd:11:11:16", "Org2MSP", base.Add(time.Second))))

	got, err := repo.QueryAll(ctx)
	assertNoError(t, err)
	assertEqual(t, 1, len(got))
	assertEqual(t, "bb:cc:dd:11:11:16", got[0].HWAddr)
	assertEqual(t, "Org2MSP", got[0].ObserverID)

	history, err := repo.History(ctx, "10.0.0.5")
	assertNoError(t, err)
	assertEqual(t, 2, len(history))
	assertEqual(t, "aa:bb:cc:00:00:05", history[0].HWAddr)
	assertEqual(t, "bb:cc:dd:11:11:16", history[1].HWAddr)
}

func TestSubmitRejectsMalformed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name string
		b    domain.Binding
	}{
		{"bad ip", binding("not-an-ip", "aa:bb:cc:00:00:01", "o", time.Now())},
		{"bad hwaddr", binding("10.0.0.1", "zz:zz", "o", time.Now())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Submit(ctx, tt.b)
			if !errors.Is(err, domain.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}

	got, err := repo.QueryAll(ctx)
	assertNoError(t, err)
	assertEqual(t, 0, len(got))
}

func TestSubmitStampsMissingTime(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	assertNoError(t, repo.Submit(ctx, binding("10.0.0.9", "aa:bb:cc:00:00:09", "o", time.Time{})))

	got, err := repo.QueryAll(ctx)
	assertNoError(t, err)
	if got[0].RecordedAt.Before(before) {
		t.Fatalf("expected recorded_at to be stamped, got %v", got[0].RecordedAt)
	}
}

func TestHistoryUnknownIP(t *testing.T) {
	repo := newTestRepo(t)
	got, err := repo.History(context.Background(), "10.9.9.9")
	assertNoError(t, err)
	assertEqual(t, 0, len(got))
}

// ============================================================================
// Event Journal Tests
// ============================================================================

func TestSaveAndListEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := domain.NewEvent(domain.EventNew, binding("10.0.0.1", "aa:bb:cc:00:00:01", "Org1MSP", at), "", at)
	second := domain.NewEvent(domain.EventChanged, binding("10.0.0.5", "bb:cc:dd:11:11:16", "Org2MSP", at), "aa:bb:cc:00:00:05", at)

	assertNoError(t, repo.SaveEvent(ctx, first))
	assertNoError(t, repo.SaveEvent(ctx, second))
	// duplicate id is ignored
	assertNoError(t, repo.SaveEvent(ctx, second))

	events, err := repo.ListEvents(ctx, 10)
	assertNoError(t, err)
	assertEqual(t, 2, len(events))

	// newest first
	assertEqual(t, second.ID, events[0].ID)
	assertEqual(t, domain.EventChanged, events[0].EventType)
	assertEqual(t, "aa:bb:cc:00:00:05", events[0].PreviousHWAddr)
	assertEqual(t, "", events[1].PreviousHWAddr)

	limited, err := repo.ListEvents(ctx, 1)
	assertNoError(t, err)
	assertEqual(t, 1, len(limited))
}

func TestStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Now()

	events := []domain.ReconciliationEvent{
		domain.NewEvent(domain.EventNew, binding("10.0.0.1", "aa:bb:cc:00:00:01", "Org1MSP", at), "", at),
		domain.NewEvent(domain.EventNew, binding("10.0.0.2", "aa:bb:cc:00:00:02", "Org2MSP", at), "", at),
		domain.NewEvent(domain.EventChanged, binding("10.0.0.1", "bb:cc:dd:11:11:12", "Org2MSP", at), "aa:bb:cc:00:00:01", at),
		domain.NewEvent(domain.EventNew, binding("10.0.0.3", "aa:bb:cc:00:00:03", "", at), "", at),
	}
	for _, ev := range events {
		assertNoError(t, repo.SaveEvent(ctx, ev))
	}

	stats, err := repo.Stats(ctx)
	assertNoError(t, err)
	assertEqual(t, 4, stats.Total)
	assertEqual(t, 3, stats.ByType[string(domain.EventNew)])
	assertEqual(t, 1, stats.ByType[string(domain.EventChanged)])
	assertEqual(t, 2, stats.ByObserver["Org2MSP"])
	assertEqual(t, 1, stats.ByObserver["Unknown"])
}

func TestStatsEmpty(t *testing.T) {
	repo := newTestRepo(t)
	stats, err := repo.Stats(context.Background())
	assertNoError(t, err)
	assertEqual(t, 0, stats.Total)
	assertEqual(t, 0, len(stats.ByType))
}
