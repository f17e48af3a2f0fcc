/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists work orders, the stage ledger, the shift configuration and the
  holiday calendar. Implements production.Store and worktime.ConfigSource.

INTERFACES IMPLEMENTED:
  production.Store:           Orders and stage records
  production.AllStageRecords: Cross-order record scan for reports
  worktime.ConfigSource:      Shift config and holidays

LEDGER ENFORCEMENT:
  - stage_records has one row per (order_id, stage)
  - committed_minutes is NULL while the stage is pending
  - Commits run "UPDATE ... WHERE committed_minutes IS NULL", so a value is
    written at most once even across processes sharing the file
  - Upserts never touch entered_at or committed_minutes

KEY TABLES:
  orders:          Work orders
  stage_records:   Stage ledger
  calendar_config: Key/value settings (shift config JSON, seed markers)
  holidays:        Non-working civil dates

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The conditional commit is what
  protects the ledger between processes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/workorders.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := production.NewLedger(store, worktime.NewProvider(store, loc, ttl))

SEE ALSO:
  - production/store.go: Store contract
  - worktime/provider.go: ConfigSource contract
  - production/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/workorder-engine/production"
	"github.com/warp/workorder-engine/worktime"
)

const (
	keyShifts         = "shifts"
	keyHolidaysSeeded = "holidays_seeded"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL DEFAULT '',
		customer TEXT NOT NULL DEFAULT '',
		motor_type TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		secondary_activity TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'normal',
		entry_date TEXT,
		authorization_date TEXT,
		due_date TEXT,
		stage TEXT NOT NULL,
		current_worker TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		rework TEXT NOT NULL DEFAULT '',
		delay_reason TEXT NOT NULL DEFAULT '',
		delay_sector TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		concluded_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_orders_stage ON orders(stage);
	CREATE INDEX IF NOT EXISTS idx_orders_due_date
		ON orders(due_date) WHERE due_date IS NOT NULL;

	-- Stage ledger: one row per (order, stage). NULL minutes = pending.
	CREATE TABLE IF NOT EXISTS stage_records (
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		stage TEXT NOT NULL,
		entered_at TEXT NOT NULL,
		worker TEXT NOT NULL DEFAULT '',
		committed_minutes INTEGER CHECK (committed_minutes IS NULL OR committed_minutes >= 0),
		PRIMARY KEY (order_id, stage)
	);

	CREATE INDEX IF NOT EXISTS idx_stage_records_worker
		ON stage_records(worker) WHERE worker <> '';

	CREATE TABLE IF NOT EXISTS calendar_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ORDERS
// =============================================================================

const orderColumns = `id, number, customer, motor_type, category, secondary_activity, priority,
	entry_date, authorization_date, due_date, stage, current_worker,
	notes, rework, delay_reason, delay_sector, created_at, updated_at, concluded_at`

// SaveOrder inserts or replaces a work order.
func (s *Store) SaveOrder(ctx context.Context, o production.WorkOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			customer = excluded.customer,
			motor_type = excluded.motor_type,
			category = excluded.category,
			secondary_activity = excluded.secondary_activity,
			priority = excluded.priority,
			entry_date = excluded.entry_date,
			authorization_date = excluded.authorization_date,
			due_date = excluded.due_date,
			stage = excluded.stage,
			current_worker = excluded.current_worker,
			notes = excluded.notes,
			rework = excluded.rework,
			delay_reason = excluded.delay_reason,
			delay_sector = excluded.delay_sector,
			updated_at = excluded.updated_at,
			concluded_at = excluded.concluded_at
	`

	var concludedAt sql.NullString
	if o.ConcludedAt != nil {
		concludedAt = nullString(formatTime(*o.ConcludedAt))
	}

	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.Number, o.Customer, o.MotorType, string(o.Category), o.SecondaryActivity, string(o.Priority),
		nullDate(o.EntryDate), nullDate(o.AuthorizationDate), nullDate(o.DueDate),
		string(o.Stage), o.CurrentWorker,
		o.Notes, o.Rework, o.DelayReason, o.DelaySector,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt), concludedAt,
	)
	return err
}

// GetOrder retrieves an order by ID. Returns nil if not found.
func (s *Store) GetOrder(ctx context.Context, id string) (*production.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns orders matching the filter, newest first.
func (s *Store) ListOrders(ctx context.Context, f production.OrderFilter) ([]production.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.OpenOnly {
		where = append(where, "stage <> ?")
		args = append(args, string(production.StageConcluido))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if len(f.Stages) > 0 {
		marks := make([]string, len(f.Stages))
		for i, st := range f.Stages {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "stage IN ("+strings.Join(marks, ", ")+")")
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []production.WorkOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// DeleteOrder removes an order. Its stage records go with it.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (production.WorkOrder, error) {
	var o production.WorkOrder
	var category, priority, stage string
	var entryDate, authDate, dueDate, concludedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&o.ID, &o.Number, &o.Customer, &o.MotorType, &category, &o.SecondaryActivity, &priority,
		&entryDate, &authDate, &dueDate, &stage, &o.CurrentWorker,
		&o.Notes, &o.Rework, &o.DelayReason, &o.DelaySector, &createdAt, &updatedAt, &concludedAt,
	)
	if err != nil {
		return o, err
	}

	o.Category = production.Category(category)
	o.Priority = production.Priority(priority)
	o.Stage = production.Stage(stage)
	o.EntryDate = parseDate(entryDate)
	o.AuthorizationDate = parseDate(authDate)
	o.DueDate = parseDate(dueDate)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	if concludedAt.Valid {
		t := parseTime(concludedAt.String)
		o.ConcludedAt = &t
	}
	return o, nil
}

// =============================================================================
// STAGE RECORDS
// =============================================================================

// UpsertStageRecord creates a pending record, or replaces the worker of an
// existing one when the given worker is non-empty.
func (s *Store) UpsertStageRecord(ctx context.Context, rec production.StageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO stage_records (order_id, stage, entered_at, worker, committed_minutes)
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT(order_id, stage) DO UPDATE SET
			worker = CASE WHEN excluded.worker <> '' THEN excluded.worker ELSE stage_records.worker END
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.OrderID, string(rec.Stage), formatTime(rec.EnteredAt), rec.Worker,
	)
	return err
}

// CommitStageDuration writes the duration only if the record is pending.
func (s *Store) CommitStageDuration(ctx context.Context, orderID string, stage production.Stage, minutes int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if minutes < 0 {
		minutes = 0
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE stage_records SET committed_minutes = ?
		WHERE order_id = ? AND stage = ? AND committed_minutes IS NULL
	`, minutes, orderID, string(stage))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// StageRecord returns one record. Returns nil if not found.
func (s *Store) StageRecord(ctx context.Context, orderID string, stage production.Stage) (*production.StageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, stage, entered_at, worker, committed_minutes
		FROM stage_records WHERE order_id = ? AND stage = ?
	`, orderID, string(stage))
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// StageRecords returns the records of an order ordered by entry.
func (s *Store) StageRecords(ctx context.Context, orderID string) ([]production.StageRecord, error) {
	return s.queryRecords(ctx, `
		SELECT order_id, stage, entered_at, worker, committed_minutes
		FROM stage_records WHERE order_id = ?
		ORDER BY entered_at, stage
	`, orderID)
}

// AllStageRecords returns every record, grouped by order.
func (s *Store) AllStageRecords(ctx context.Context) ([]production.StageRecord, error) {
	return s.queryRecords(ctx, `
		SELECT order_id, stage, entered_at, worker, committed_minutes
		FROM stage_records
		ORDER BY order_id, entered_at, stage
	`)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]production.StageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []production.StageRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(row scanner) (production.StageRecord, error) {
	var rec production.StageRecord
	var stage, enteredAt string
	var minutes sql.NullInt64

	if err := row.Scan(&rec.OrderID, &stage, &enteredAt, &rec.Worker, &minutes); err != nil {
		return rec, err
	}
	rec.Stage = production.Stage(stage)
	rec.EnteredAt = parseTime(enteredAt)
	if minutes.Valid {
		rec.Duration = production.Committed(int(minutes.Int64))
	} else {
		rec.Duration = production.Pending()
	}
	return rec, nil
}

// =============================================================================
// CALENDAR CONFIG - worktime.ConfigSource
// =============================================================================

// LoadCalendarConfig returns the raw shift config JSON, if any was saved.
func (s *Store) LoadCalendarConfig(ctx context.Context) ([]byte, bool, error) {
	value, found, err := s.setting(ctx, keyShifts)
	if err != nil || !found {
		return nil, false, err
	}
	return []byte(value), true, nil
}

// SaveCalendarConfig stores the raw shift config JSON.
func (s *Store) SaveCalendarConfig(ctx context.Context, raw []byte) error {
	return s.setSetting(ctx, keyShifts, string(raw))
}

func (s *Store) setting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM calendar_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now()))
	return err
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holidays returns every holiday ordered by date.
func (s *Store) Holidays(ctx context.Context) ([]worktime.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT date, name FROM holidays ORDER BY date")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []worktime.Holiday
	for rows.Next() {
		var date, name string
		if err := rows.Scan(&date, &name); err != nil {
			return nil, err
		}
		d, err := worktime.ParseDate(date)
		if err != nil {
			continue
		}
		holidays = append(holidays, worktime.Holiday{Date: d, Name: name})
	}
	return holidays, rows.Err()
}

// SaveHoliday adds a holiday or renames an existing one.
func (s *Store) SaveHoliday(ctx context.Context, h worktime.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (date, name) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET name = excluded.name
	`, h.Date.String(), h.Name)
	return err
}

// DeleteHoliday removes the holiday on a date.
func (s *Store) DeleteHoliday(ctx context.Context, d worktime.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE date = ?", d.String())
	return err
}

// SeedHolidays inserts the given holidays the first time it runs against a
// database. Later calls do nothing, so deleted holidays stay deleted.
// Returns whether the seed was applied.
func (s *Store) SeedHolidays(ctx context.Context, holidays []worktime.Holiday) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO calendar_config (key, value, updated_at) VALUES (?, 'true', ?)
		ON CONFLICT(key) DO NOTHING
	`, keyHolidaysSeeded, formatTime(time.Now()))
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, h := range holidays {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO holidays (date, name) VALUES (?, ?) ON CONFLICT(date) DO NOTHING",
			h.Date.String(), h.Name,
		); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// Reset clears orders and the stage ledger (for testing/demo). Calendar
// settings and holidays are kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"stage_records", "orders"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d worktime.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return nullString(d.String())
}

func parseDate(s sql.NullString) worktime.Date {
	if !s.Valid {
		return worktime.Date{}
	}
	d, err := worktime.ParseDate(s.String)
	if err != nil {
		return worktime.Date{}
	}
	return d
}

// Instants are stored as UTC RFC3339 with nanoseconds so that text order
// matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
