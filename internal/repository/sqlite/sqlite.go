package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"arpledger/internal/domain"
)

// Repository is an embedded single-host ledger and event journal.
// ledger_entries is append-only; ledger_latest is its last-write-wins view.
type Repository struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer; also keeps :memory: on one connection
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		ip TEXT NOT NULL,
		hwaddr TEXT NOT NULL,
		interface TEXT,
		observer_id TEXT,
		kind TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledger_latest (
		ip TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		hwaddr TEXT NOT NULL,
		interface TEXT,
		observer_id TEXT,
		kind TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		ip TEXT NOT NULL,
		hwaddr TEXT NOT NULL,
		previous_hwaddr TEXT,
		observer_id TEXT,
		interface TEXT,
		message TEXT,
		timestamp TEXT NOT NULL,
		received_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_ip ON ledger_entries(ip, seq);
	CREATE INDEX IF NOT EXISTS idx_events_received ON events(received_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Submit appends a binding and makes it the latest for its ip
func (r *Repository) Submit(ctx context.Context, b domain.Binding) error {
	if err := b.Normalize(); err != nil {
		return err
	}
	if b.RecordedAt.IsZero() {
		b.RecordedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (ip, hwaddr, interface, observer_id, kind, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.IP, b.HWAddr, stringToNull(b.Interface), stringToNull(b.ObserverID), string(b.Kind), formatTime(b.RecordedAt))
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("entry sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_latest (ip, seq, hwaddr, interface, observer_id, kind, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET
			seq = excluded.seq,
			hwaddr = excluded.hwaddr,
			interface = excluded.interface,
			observer_id = excluded.observer_id,
			kind = excluded.kind,
			recorded_at = excluded.recorded_at
	`, b.IP, seq, b.HWAddr, stringToNull(b.Interface), stringToNull(b.ObserverID), string(b.Kind), formatTime(b.RecordedAt))
	if err != nil {
		return fmt.Errorf("update latest: %w", err)
	}

	return tx.Commit()
}

// QueryAll returns the latest binding for every ip, ordered by ip
func (r *Repository) QueryAll(ctx context.Context) ([]domain.Binding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bindingColumns+` FROM ledger_latest ORDER BY ip
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest: %w", err)
	}
	defer rows.Close()

	return scanBindings(rows)
}

// History returns every binding ever appended for ip, oldest first
func (r *Repository) History(ctx context.Context, ip string) ([]domain.Binding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bindingColumns+` FROM ledger_entries WHERE ip = ? ORDER BY seq
	`, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return scanBindings(rows)
}

// SaveEvent journals a reconciliation event. Saving the same ID twice is a no-op.
func (r *Repository) SaveEvent(ctx context.Context, ev domain.ReconciliationEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events
			(id, event_type, ip, hwaddr, previous_hwaddr, observer_id, interface, message, timestamp, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, string(ev.EventType), ev.IP, ev.HWAddr, stringToNull(ev.PreviousHWAddr),
		stringToNull(ev.ObserverID), stringToNull(ev.Interface), stringToNull(ev.Message),
		formatTime(ev.Timestamp), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first
func (r *Repository) ListEvents(ctx context.Context, limit int) ([]domain.ReconciliationEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		ORDER BY rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.ReconciliationEvent
	for rows.Next() {
		var row eventRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// EventStats counts journaled events
type EventStats struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	ByObserver map[string]int `json:"by_observer"`
}

// Stats returns event counts by type and by reporting observer
func (r *Repository) Stats(ctx context.Context) (*EventStats, error) {
	stats := &EventStats{
		ByType:     make(map[string]int),
		ByObserver: make(map[string]int),
	}

	rows, err := r.db.QueryContext(ctx, `SELECT event_type, COUNT(*) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		stats.ByType[typ] = n
		stats.Total += n
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `
		SELECT COALESCE(observer_id, 'Unknown'), COUNT(*) FROM events GROUP BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count observers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var obs string
		var n int
		if err := rows.Scan(&obs, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		stats.ByObserver[obs] = n
	}

	return stats, rows.Err()
}

// Close releases the database
func (r *Repository) Close() error {
	return r.db.Close()
}
