/*
Package leave provides the core vacation accounting engine.

PURPOSE:
  This package contains the domain types and algorithms for hourly leave
  booking: users with two allowance pools, date-keyed booking records,
  approved-usage aggregation, and the year-end rollover transformation.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: an employee with an old (carried-over) and new (annual) pool
  - Entry: a single booking on one calendar day (pending or approved)
  - DayRecord: all bookings for one date, keyed by user
  - Date: a calendar date string (YYYY-MM-DD), the aggregation key
  - Note: free-text admin annotation attached to a date

DESIGN PRINCIPLES:
  1. One entry per user per date, enforced by the DayRecord representation
  2. Precision: allowances use decimal.Decimal (rollover carry is 0.1-day)
  3. Hours are small integers in [1,8]; 0 is a transient "delete" signal
  4. An empty DayRecord is never persisted; the key is removed instead

SEE ALSO:
  - pool.go: old-before-new pool consumption split
  - usage.go: approved-hours aggregation and balances
  - ledger.go: booking mutations and their locking rules
  - rollover.go: year-end carry-forward
*/
package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// HoursPerDay is the pool unit invariant: 1 day = 8 hours.
const HoursPerDay = 8

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string

// =============================================================================
// USER - Employee with two allowance pools
// =============================================================================

// User is an employee record. Name and Code are secondary lookup keys and
// must be unique across users. Allowances are in days; the old pool holds
// carry-over from the previous year and drains before the new pool.
type User struct {
	ID           UserID
	Name         string
	Code         string // shared-secret login token
	OldAllowance decimal.Decimal // days, pool A capacity
	NewAllowance decimal.Decimal // days, pool B capacity
}

// CapOldHours returns the old-pool capacity in hours.
func (u User) CapOldHours() decimal.Decimal {
	return u.OldAllowance.Mul(decimal.NewFromInt(HoursPerDay))
}

// CapNewHours returns the new-pool capacity in hours.
func (u User) CapNewHours() decimal.Decimal {
	return u.NewAllowance.Mul(decimal.NewFromInt(HoursPerDay))
}

// =============================================================================
// BOOKING ENTRY + DAY RECORD
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// Entry is one user's booking on one calendar day. The date is the key of
// the surrounding DayRecord, not a field of the entry.
type Entry struct {
	UserID UserID
	Status Status
	Hours  int    // [1,8]; 0 only as an in-flight delete signal
	Kind   string // optional leave kind, defaults to "vacation" on export
}

// DayRecord holds all bookings for one date, keyed by user. The map shape
// makes "at most one entry per user per date" hold by construction instead
// of relying on list order.
type DayRecord map[UserID]Entry

// Clone returns an independent copy of the record.
func (r DayRecord) Clone() DayRecord {
	if r == nil {
		return nil
	}
	out := make(DayRecord, len(r))
	for id, e := range r {
		out[id] = e
	}
	return out
}

// ApprovedHours sums the clamped approved hours recorded for userID.
// Baseline for the over-allocation gate in the ledger.
func (r DayRecord) ApprovedHours(userID UserID) int {
	sum := 0
	for id, e := range r {
		if id == userID && e.Status == StatusApproved {
			sum += ClampHours(e.Hours)
		}
	}
	return sum
}

// ClampHours forces a stored hours value into [1,8]. Corrupt values (0,
// negative, >8) must not break accounting: floor is 1, ceiling is 8, never 0.
func ClampHours(h int) int {
	if h < 1 {
		return 1
	}
	if h > HoursPerDay {
		return HoursPerDay
	}
	return h
}

// =============================================================================
// DATE - Calendar-date string, the booking key
// =============================================================================

// Date is a calendar date in YYYY-MM-DD form. ISO dates order
// lexicographically, so string comparison is date comparison.
type Date string

const dateLayout = "2006-01-02"

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t.Format(dateLayout)), nil
}

func NewDate(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(dateLayout))
}

// Today returns the current calendar date.
func Today() Date {
	return Date(time.Now().Format(dateLayout))
}

func (d Date) Before(other Date) bool { return string(d) < string(other) }
func (d Date) After(other Date) bool  { return string(d) > string(other) }
func (d Date) String() string         { return string(d) }

func (d Date) Time() time.Time {
	t, _ := time.Parse(dateLayout, string(d))
	return t
}

func (d Date) Year() int            { return d.Time().Year() }
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

// InYear reports whether the date falls in the given calendar year.
func (d Date) InYear(year int) bool { return d.Year() == year }

// =============================================================================
// NOTE - Admin annotation on a date
// =============================================================================

// Note is a free-text annotation attached to a calendar date. Notes share
// the date-keyed store shape but are independent of accounting.
type Note struct {
	ID     string
	Text   string
	By     string
	At     int64 // epoch milliseconds
}

// =============================================================================
// CONFIG - Singleton application settings
// =============================================================================

// Config is the singleton settings record. LastRolloverYear records the most
// recent rollover target year; nil means rollover has never run. It backs the
// soft re-run gate, which is a caller responsibility (see rollover.go).
type Config struct {
	AdminCode        string
	LastRolloverYear *int
}
