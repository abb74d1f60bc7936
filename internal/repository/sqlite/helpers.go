package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"arpledger/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// Time Helpers
// ============================================================================
//
// Timestamps are stored as fixed-width UTC TEXT so they sort lexically.

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ============================================================================
// Binding Row Scanner
// ============================================================================
//
// CRITICAL: Column order must match between bindingColumns and scanArgs().
// Same pattern applies to events.

const bindingColumns = `ip, hwaddr, interface, observer_id, kind, recorded_at`

type bindingRow struct {
	IP         string
	HWAddr     string
	Interface  sql.NullString
	ObserverID sql.NullString
	Kind       string
	RecordedAt string
}

func (r *bindingRow) scanArgs() []interface{} {
	return []interface{}{
		&r.IP,
		&r.HWAddr,
		&r.Interface,
		&r.ObserverID,
		&r.Kind,
		&r.RecordedAt,
	}
}

func (r *bindingRow) toDomain() (domain.Binding, error) {
	at, err := parseTime(r.RecordedAt)
	if err != nil {
		return domain.Binding{}, err
	}
	return domain.Binding{
		IP:         r.IP,
		HWAddr:     r.HWAddr,
		Interface:  nullToString(r.Interface),
		ObserverID: nullToString(r.ObserverID),
		Kind:       domain.Kind(r.Kind),
		RecordedAt: at,
	}, nil
}

func scanBindings(rows *sql.Rows) ([]domain.Binding, error) {
	var out []domain.Binding
	for rows.Next() {
		var row bindingRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		b, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bindings: %w", err)
	}
	return out, nil
}

// ============================================================================
// Event Row Scanner
// ============================================================================

const eventColumns = `id, event_type, ip, hwaddr, previous_hwaddr, observer_id, interface, message, timestamp`

type eventRow struct {
	ID             string
	EventType      string
	IP             string
	HWAddr         string
	PreviousHWAddr sql.NullString
	ObserverID     sql.NullString
	Interface      sql.NullString
	Message        sql.NullString
	Timestamp      string
}

func (r *eventRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.EventType,
		&r.IP,
		&r.HWAddr,
		&r.PreviousHWAddr,
		&r.ObserverID,
		&r.Interface,
		&r.Message,
		&r.Timestamp,
	}
}

func (r *eventRow) toDomain() (domain.ReconciliationEvent, error) {
	at, err := parseTime(r.Timestamp)
	if err != nil {
		return domain.ReconciliationEvent{}, err
	}
	return domain.ReconciliationEvent{
		ID:             r.ID,
		EventType:      domain.EventType(r.EventType),
		IP:             r.IP,
		HWAddr:         r.HWAddr,
		PreviousHWAddr: nullToString(r.PreviousHWAddr),
		ObserverID:     nullToString(r.ObserverID),
		Interface:      nullToString(r.Interface),
		Message:        nullToString(r.Message),
		Timestamp:      at,
	}, nil
}
