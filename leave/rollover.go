/*
rollover.go - Year-end carry-forward

PURPOSE:
  Transforms every user's allowances at the turn of the year: the unused
  part of the NEW pool becomes next year's OLD pool, and the new pool is
  reset to an administrator-chosen allowance.

PER USER, FOR TARGET YEAR y:
  usedHours       = clamped approved hours in y (pending ignored)
  split           = old-before-new split against CURRENT allowances
  leftoverNewDays = (capNew - usedNew) / 8, clamped >= 0, rounded to 0.1
  oldAllowance'   = leftoverNewDays
  newAllowance'   = chosen constant (org presets are 20 or 25 days, but the
                    mechanism accepts any non-negative value; the preset
                    check is UI policy and lives at the API layer)

  An over-drawn new pool never produces negative carry-forward.

NOT IDEMPOTENT:
  Running the rollover twice for the same year compounds carry-forward
  incorrectly. The engine does not prevent re-application; the caller must
  guard by comparing Config.LastRolloverYear and asking for explicit
  confirmation (soft gate, see api package).

FAILURE MODE:
  User updates are independent. A store failure mid-loop leaves earlier
  users rolled over and later ones not; the partial results are returned
  alongside the error for manual reconciliation.
*/
package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// RolloverEngine performs the year-end allowance transformation.
type RolloverEngine struct {
	Store      Store
	Aggregator *Aggregator
}

func NewRolloverEngine(store Store) *RolloverEngine {
	return &RolloverEngine{Store: store, Aggregator: NewAggregator(store)}
}

// RolloverResult records the transformation applied to one user.
type RolloverResult struct {
	UserID       UserID
	Name         string
	UsedHours    int             // approved hours consumed in the target year
	CarryDays    decimal.Decimal // became the new old-pool allowance
	NewAllowance decimal.Decimal // the chosen annual allowance
}

// Run applies the rollover for year to every user, producing allowances
// effective for year+1. def is the new-pool allowance in days and must be
// non-negative. Returns the per-user results; on a store failure the results
// completed so far are returned with the error.
func (e *RolloverEngine) Run(ctx context.Context, year int, def decimal.Decimal) ([]RolloverResult, error) {
	if def.IsNegative() {
		return nil, &FieldError{Field: "newAllowance", Reason: "must be non-negative"}
	}

	users, err := e.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := e.Aggregator.ApprovedHoursByUser(ctx, &year)
	if err != nil {
		return nil, err
	}

	results := make([]RolloverResult, 0, len(users))
	for _, u := range users {
		used := totals[u.ID]
		usage := SplitHours(decimal.NewFromInt(int64(used)), u.CapOldHours())

		carry := HoursToDays(u.CapNewHours().Sub(usage.NewHours))
		if carry.IsNegative() {
			carry = decimal.Zero
		}

		u.OldAllowance = carry
		u.NewAllowance = def
		if err := e.Store.PutUser(ctx, u); err != nil {
			return results, fmt.Errorf("rollover stopped at user %s: %w", u.ID, err)
		}
		results = append(results, RolloverResult{
			UserID:       u.ID,
			Name:         u.Name,
			UsedHours:    used,
			CarryDays:    carry,
			NewAllowance: def,
		})
	}
	return results, nil
}
