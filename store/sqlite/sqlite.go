/*
Package sqlite provides the SQLite-backed implementation of leave.Store.

PURPOSE:
  Production persistence for users, day records, notes and the config
  singleton. The same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  users:    one row per employee; UNIQUE(name) and UNIQUE(code) back the
            duplicate checks the engine reports before writing
  bookings: one row per (date, user); the PRIMARY KEY(date, user_id) makes
            the one-entry-per-user-per-date invariant a schema fact
  notes:    date-keyed admin annotations
  config:   single-row settings (admin code, last rollover year)

EMPTY-RECORD CONTRACT:
  PutDay deletes all rows for the date and re-inserts the record inside one
  transaction; an empty record therefore leaves no rows behind, and GetDay
  for an absent date returns nil.

DECIMALS:
  Allowances are stored as decimal strings, never floats; the rollover
  carry-forward is a 0.1-day quantity and must round-trip exactly.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer at a time, better crash recovery.

CHANGE FEED:
  The store embeds leave.Hub and publishes a change after every successful
  write, mirroring the push feed the engine's consumers subscribe to.

SEE ALSO:
  - leave/store.go: interface and contracts
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/solara/leavedesk/leave"
)

// Store implements leave.Store using SQLite.
type Store struct {
	leave.Hub

	db *sql.DB
	mu sync.Mutex
}

// New opens (and migrates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
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

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL UNIQUE,
		code          TEXT NOT NULL UNIQUE,
		old_allowance TEXT NOT NULL,
		new_allowance TEXT NOT NULL
	);

	-- One row per (date, user): the single-entry invariant is schema-level.
	CREATE TABLE IF NOT EXISTS bookings (
		date    TEXT NOT NULL,
		user_id TEXT NOT NULL,
		status  TEXT NOT NULL,
		hours   INTEGER NOT NULL,
		kind    TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (date, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status);

	CREATE TABLE IF NOT EXISTS notes (
		id     TEXT PRIMARY KEY,
		date   TEXT NOT NULL,
		text   TEXT NOT NULL,
		author TEXT NOT NULL,
		at     INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_date ON notes(date);

	CREATE TABLE IF NOT EXISTS config (
		id                 INTEGER PRIMARY KEY CHECK (id = 1),
		admin_code         TEXT NOT NULL,
		last_rollover_year INTEGER
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

const userColumns = "id, name, code, old_allowance, new_allowance"

func scanUser(row interface{ Scan(...any) error }) (leave.User, error) {
	var u leave.User
	var id, oldStr, newStr string
	if err := row.Scan(&id, &u.Name, &u.Code, &oldStr, &newStr); err != nil {
		return leave.User{}, err
	}
	u.ID = leave.UserID(id)
	var err error
	if u.OldAllowance, err = decimal.NewFromString(oldStr); err != nil {
		return leave.User{}, fmt.Errorf("corrupt old_allowance %q: %w", oldStr, err)
	}
	if u.NewAllowance, err = decimal.NewFromString(newStr); err != nil {
		return leave.User{}, fmt.Errorf("corrupt new_allowance %q: %w", newStr, err)
	}
	return u, nil
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg any) (leave.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.User{}, leave.ErrNotFound
	}
	if err != nil {
		return leave.User{}, &leave.StoreError{Op: "get user", Err: err}
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id leave.UserID) (leave.User, error) {
	return s.getUserWhere(ctx, "id = ?", string(id))
}

func (s *Store) GetUserByCode(ctx context.Context, code string) (leave.User, error) {
	return s.getUserWhere(ctx, "code = ?", code)
}

func (s *Store) GetUserByName(ctx context.Context, name string) (leave.User, error) {
	return s.getUserWhere(ctx, "name = ?", name)
}

func (s *Store) ListUsers(ctx context.Context) ([]leave.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY name")
	if err != nil {
		return nil, &leave.StoreError{Op: "list users", Err: err}
	}
	defer rows.Close()

	var users []leave.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, &leave.StoreError{Op: "scan user", Err: err}
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// PutUser upserts. Duplicate name/code is reported before any write so the
// caller gets a ValidationError, not a constraint failure.
func (s *Store) PutUser(ctx context.Context, u leave.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var field string
	err := s.db.QueryRowContext(ctx,
		`SELECT CASE WHEN name = ? THEN 'name' ELSE 'code' END
		 FROM users WHERE (name = ? OR code = ?) AND id <> ? LIMIT 1`,
		u.Name, u.Name, u.Code, string(u.ID)).Scan(&field)
	switch {
	case err == nil:
		if field == "name" {
			return &leave.DuplicateError{Field: "name", Value: u.Name}
		}
		return &leave.DuplicateError{Field: "code", Value: u.Code}
	case !errors.Is(err, sql.ErrNoRows):
		return &leave.StoreError{Op: "check user uniqueness", Err: err}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, code, old_allowance, new_allowance)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, code = excluded.code,
		   old_allowance = excluded.old_allowance,
		   new_allowance = excluded.new_allowance`,
		string(u.ID), u.Name, u.Code, u.OldAllowance.String(), u.NewAllowance.String())
	if isUniqueConstraintError(err) {
		// Writer raced past the pre-write check; still a duplicate.
		return &leave.DuplicateError{Field: "code", Value: u.Code}
	}
	if err != nil {
		return &leave.StoreError{Op: "put user", Err: err}
	}

	s.Publish(leave.Change{Kind: leave.ChangeUsers, UserID: u.ID})
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id leave.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", string(id))
	if err != nil {
		return &leave.StoreError{Op: "delete user", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrNotFound
	}

	s.Publish(leave.Change{Kind: leave.ChangeUsers, UserID: id})
	return nil
}

// =============================================================================
// DAY RECORDS
// =============================================================================

func (s *Store) GetDay(ctx context.Context, d leave.Date) (leave.DayRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, status, hours, kind FROM bookings WHERE date = ?", string(d))
	if err != nil {
		return nil, &leave.StoreError{Op: "get day", Err: err}
	}
	defer rows.Close()

	var rec leave.DayRecord
	for rows.Next() {
		var e leave.Entry
		var uid string
		if err := rows.Scan(&uid, &e.Status, &e.Hours, &e.Kind); err != nil {
			return nil, &leave.StoreError{Op: "scan booking", Err: err}
		}
		e.UserID = leave.UserID(uid)
		if rec == nil {
			rec = leave.DayRecord{}
		}
		rec[e.UserID] = e
	}
	return rec, rows.Err()
}

// PutDay replaces the whole record in one transaction: delete-then-insert,
// so an empty record leaves no rows behind.
func (s *Store) PutDay(ctx context.Context, d leave.Date, rec leave.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &leave.StoreError{Op: "put day", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM bookings WHERE date = ?", string(d)); err != nil {
		return &leave.StoreError{Op: "put day", Err: err}
	}
	for _, e := range rec {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO bookings (date, user_id, status, hours, kind) VALUES (?, ?, ?, ?, ?)",
			string(d), string(e.UserID), string(e.Status), e.Hours, e.Kind)
		if err != nil {
			return &leave.StoreError{Op: "put day", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &leave.StoreError{Op: "put day", Err: err}
	}

	s.Publish(leave.Change{Kind: leave.ChangeBookings, Date: d})
	return nil
}

func (s *Store) ListDays(ctx context.Context) (map[leave.Date]leave.DayRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, user_id, status, hours, kind FROM bookings ORDER BY date")
	if err != nil {
		return nil, &leave.StoreError{Op: "list days", Err: err}
	}
	defer rows.Close()

	days := make(map[leave.Date]leave.DayRecord)
	for rows.Next() {
		var e leave.Entry
		var date, uid string
		if err := rows.Scan(&date, &uid, &e.Status, &e.Hours, &e.Kind); err != nil {
			return nil, &leave.StoreError{Op: "scan booking", Err: err}
		}
		e.UserID = leave.UserID(uid)
		d := leave.Date(date)
		if days[d] == nil {
			days[d] = leave.DayRecord{}
		}
		days[d][e.UserID] = e
	}
	return days, rows.Err()
}

// =============================================================================
// NOTES
// =============================================================================

func (s *Store) GetNotes(ctx context.Context, d leave.Date) ([]leave.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, author, at FROM notes WHERE date = ? ORDER BY at", string(d))
	if err != nil {
		return nil, &leave.StoreError{Op: "get notes", Err: err}
	}
	defer rows.Close()

	var notes []leave.Note
	for rows.Next() {
		var n leave.Note
		if err := rows.Scan(&n.ID, &n.Text, &n.By, &n.At); err != nil {
			return nil, &leave.StoreError{Op: "scan note", Err: err}
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *Store) PutNotes(ctx context.Context, d leave.Date, notes []leave.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &leave.StoreError{Op: "put notes", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE date = ?", string(d)); err != nil {
		return &leave.StoreError{Op: "put notes", Err: err}
	}
	for _, n := range notes {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO notes (id, date, text, author, at) VALUES (?, ?, ?, ?, ?)",
			n.ID, string(d), n.Text, n.By, n.At)
		if err != nil {
			return &leave.StoreError{Op: "put notes", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &leave.StoreError{Op: "put notes", Err: err}
	}

	s.Publish(leave.Change{Kind: leave.ChangeNotes, Date: d})
	return nil
}

// =============================================================================
// CONFIG
// =============================================================================

func (s *Store) GetConfig(ctx context.Context) (leave.Config, error) {
	var cfg leave.Config
	var year sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT admin_code, last_rollover_year FROM config WHERE id = 1").
		Scan(&cfg.AdminCode, &year)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Config{}, leave.ErrNotFound
	}
	if err != nil {
		return leave.Config{}, &leave.StoreError{Op: "get config", Err: err}
	}
	if year.Valid {
		y := int(year.Int64)
		cfg.LastRolloverYear = &y
	}
	return cfg, nil
}

func (s *Store) PutConfig(ctx context.Context, cfg leave.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var year sql.NullInt64
	if cfg.LastRolloverYear != nil {
		year = sql.NullInt64{Int64: int64(*cfg.LastRolloverYear), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (id, admin_code, last_rollover_year) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   admin_code = excluded.admin_code,
		   last_rollover_year = excluded.last_rollover_year`,
		cfg.AdminCode, year)
	if err != nil {
		return &leave.StoreError{Op: "put config", Err: err}
	}

	s.Publish(leave.Change{Kind: leave.ChangeConfig})
	return nil
}

// isUniqueConstraintError reports whether err is a SQLite UNIQUE violation.
// Kept for callers that race past the pre-write uniqueness check.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
