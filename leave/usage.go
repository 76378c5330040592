/*
usage.go - Approved-hours aggregation and balances

PURPOSE:
  Scans the full day-record collection and answers "how much has each user
  consumed?". Only approved entries count toward consumption; pending
  entries are excluded from balances but surfaced separately for admin
  review.

CLAMP SAFETY:
  Stored hours are defensively re-clamped to [1,8] before accumulating.
  A corrupt stored value of 0, -5 or 12 contributes 1, 1 and 8 hours
  respectively - it never zeroes out or inflates accounting.

YEAR SCOPING:
  All queries accept an optional year; nil means the whole dataset.
*/
package leave

import (
	"context"
	"sort"
)

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator derives usage and balances from the store. It holds no state;
// every call re-reads the shared snapshot, so change-feed consumers can
// simply recompute on notification.
type Aggregator struct {
	Store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{Store: store}
}

// ApprovedHoursByUser sums clamped approved hours per user, optionally
// scoped to entries whose date falls in year.
func (a *Aggregator) ApprovedHoursByUser(ctx context.Context, year *int) (map[UserID]int, error) {
	days, err := a.Store.ListDays(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[UserID]int)
	for date, rec := range days {
		if year != nil && !date.InYear(*year) {
			continue
		}
		for id, e := range rec {
			if e.Status != StatusApproved {
				continue
			}
			totals[id] += ClampHours(e.Hours)
		}
	}
	return totals, nil
}

// ApprovedHoursFor returns one user's clamped approved hours in year.
func (a *Aggregator) ApprovedHoursFor(ctx context.Context, id UserID, year int) (int, error) {
	totals, err := a.ApprovedHoursByUser(ctx, &year)
	if err != nil {
		return 0, err
	}
	return totals[id], nil
}

// Balances composes per-user approved totals with User records and the pool
// split. Every user gets a balance, including users with zero consumption.
// Results are sorted by name for stable display.
func (a *Aggregator) Balances(ctx context.Context, year *int) ([]Balance, error) {
	users, err := a.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := a.ApprovedHoursByUser(ctx, year)
	if err != nil {
		return nil, err
	}

	balances := make([]Balance, 0, len(users))
	for _, u := range users {
		balances = append(balances, NewBalance(u, totals[u.ID]))
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].User.Name < balances[j].User.Name
	})
	return balances, nil
}

// =============================================================================
// PENDING REQUESTS - Excluded from balances, surfaced for admin review
// =============================================================================

// PendingRequest is one not-yet-approved entry awaiting admin action.
type PendingRequest struct {
	Date   Date
	UserID UserID
	Name   string // resolved display name, empty if the user is gone
	Hours  int
}

// PendingRequests lists all pending entries, dates ascending then names.
func (a *Aggregator) PendingRequests(ctx context.Context) ([]PendingRequest, error) {
	days, err := a.Store.ListDays(ctx)
	if err != nil {
		return nil, err
	}
	users, err := a.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[UserID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	var pending []PendingRequest
	for date, rec := range days {
		for id, e := range rec {
			if e.Status != StatusPending {
				continue
			}
			pending = append(pending, PendingRequest{
				Date:   date,
				UserID: id,
				Name:   names[id],
				Hours:  ClampHours(e.Hours),
			})
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Date != pending[j].Date {
			return pending[i].Date.Before(pending[j].Date)
		}
		return pending[i].Name < pending[j].Name
	})
	return pending, nil
}
