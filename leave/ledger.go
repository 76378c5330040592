/*
ledger.go - Booking mutations and their locking rules

PURPOSE:
  The authoritative mutation surface for booking entries. Employees create,
  change and cancel their own pending entries; admins upsert any entry and
  every admin edit of an existing entry both changes hours and toggles the
  approval state as one atomic action.

STATE MACHINE (per entry):
  pending  -> approved   admin toggle only
  approved -> pending    admin toggle only ("un-approve")
  any      -> (deleted)  hours set to 0, or user deletion cascade

EMPLOYEE RULES:
  - hours 0 cancels the employee's own entry for that date
  - a past date is Locked regardless of entry state
  - an approved entry is immutable to the employee (Locked)

READ-MODIFY-WRITE:
  Each operation loads the day record, computes the new record and writes it
  back as a single logical step with no interleaved I/O. Two concurrent
  writers on the same date can still race at the store boundary; the store
  keeps the per-key write atomic and the workload is human-paced.

SEE ALSO:
  - usage.go: derives balances from the records this ledger maintains
  - store.go: the empty-record deletion contract PutDay implements
*/
package leave

import (
	"context"
	"fmt"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger applies booking mutations against the store. Now is the clock used
// for the past-date lock; it defaults to Today and is injectable for tests.
type Ledger struct {
	Store Store
	Now   func() Date
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store, Now: Today}
}

func validateHours(hours int) error {
	if hours < 0 || hours > HoursPerDay {
		return &HoursError{Hours: hours}
	}
	return nil
}

// =============================================================================
// EMPLOYEE OPERATIONS
// =============================================================================

// Request creates, updates or cancels the employee's own entry for date.
// hours 0 cancels; hours in [1,8] upserts a pending entry. Past dates and
// approved entries are Locked; the existing entry is left unchanged.
func (l *Ledger) Request(ctx context.Context, date Date, userID UserID, hours int) error {
	if err := validateHours(hours); err != nil {
		return err
	}
	if date.Before(l.Now()) {
		return &LockedError{Date: date, UserID: userID, Reason: LockPastDate}
	}

	rec, err := l.Store.GetDay(ctx, date)
	if err != nil {
		return err
	}
	existing, ok := rec[userID]
	if ok && existing.Status == StatusApproved {
		return &LockedError{Date: date, UserID: userID, Reason: LockApprovedEntry}
	}

	next := rec.Clone()
	if next == nil {
		next = DayRecord{}
	}
	if hours == 0 {
		delete(next, userID)
	} else {
		next[userID] = Entry{UserID: userID, Status: StatusPending, Hours: hours, Kind: existing.Kind}
	}
	return l.Store.PutDay(ctx, date, next)
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// AdminSetHours is the admin upsert for one user's entry on date.
//
// No entry + hours 0:  no-op.
// No entry + hours>0:  creates a pending entry; the over-allocation gate
//                      fires when the user's approved hours that day plus
//                      the new hours exceed HoursPerDay.
// Entry + hours 0:     deletes the entry; an emptied day record is removed.
// Entry + hours>0:     sets hours AND toggles pending<->approved as one
//                      action; toggling into approved re-runs the gate
//                      against the user's other approved hours that day.
//
// The gate is non-blocking: it returns OverAllocationError until the caller
// retries with confirmed=true. The returned entry is the written state
// (zero Entry on delete/no-op).
func (l *Ledger) AdminSetHours(ctx context.Context, date Date, userID UserID, hours int, confirmed bool) (Entry, error) {
	if err := validateHours(hours); err != nil {
		return Entry{}, err
	}

	rec, err := l.Store.GetDay(ctx, date)
	if err != nil {
		return Entry{}, err
	}
	existing, ok := rec[userID]

	if !ok {
		if hours == 0 {
			return Entry{}, nil
		}
		if base := rec.ApprovedHours(userID); base+hours > HoursPerDay && !confirmed {
			return Entry{}, &OverAllocationError{Date: date, UserID: userID, ProjectedHours: base + hours}
		}
		next := rec.Clone()
		if next == nil {
			next = DayRecord{}
		}
		entry := Entry{UserID: userID, Status: StatusPending, Hours: hours}
		next[userID] = entry
		return entry, l.Store.PutDay(ctx, date, next)
	}

	if hours == 0 {
		next := rec.Clone()
		delete(next, userID)
		return Entry{}, l.Store.PutDay(ctx, date, next)
	}

	// Hour change and status toggle are one atomic admin action.
	status := StatusApproved
	if existing.Status == StatusApproved {
		status = StatusPending
	}
	if status == StatusApproved {
		base := rec.ApprovedHours(userID)
		if existing.Status == StatusApproved {
			base -= ClampHours(existing.Hours)
		}
		if base+hours > HoursPerDay && !confirmed {
			return Entry{}, &OverAllocationError{Date: date, UserID: userID, ProjectedHours: base + hours}
		}
	}
	next := rec.Clone()
	entry := Entry{UserID: userID, Status: status, Hours: hours, Kind: existing.Kind}
	next[userID] = entry
	return entry, l.Store.PutDay(ctx, date, next)
}

// DeleteUserEverywhere removes the user record and strips the user's entries
// from every day record, deleting records that become empty. The cascade is
// not atomic across dates: on a store failure mid-loop, already-cleaned
// dates stay cleaned and the error is surfaced.
func (l *Ledger) DeleteUserEverywhere(ctx context.Context, userID UserID) error {
	if err := l.Store.DeleteUser(ctx, userID); err != nil {
		return err
	}

	days, err := l.Store.ListDays(ctx)
	if err != nil {
		return err
	}
	for date, rec := range days {
		if _, ok := rec[userID]; !ok {
			continue
		}
		next := rec.Clone()
		delete(next, userID)
		if err := l.Store.PutDay(ctx, date, next); err != nil {
			return fmt.Errorf("cascade stopped at %s: %w", date, err)
		}
	}
	return nil
}
