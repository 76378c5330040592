/*
pool.go - Two-pool allowance consumption model

PURPOSE:
  Splits a user's total approved hours across the two allowance pools.
  The old pool (carried over from last year) always drains before the new
  pool - that ordering models "use up carried-over days first" and is a
  policy decision, not incidental.

THE SPLIT:
  capOld   = oldAllowance * 8
  capNew   = newAllowance * 8
  usedOld  = min(total, capOld)
  usedNew  = total - usedOld        <- NOT capped at capNew

  usedNew is deliberately uncapped: a user can over-draw the new pool and
  the negative remaining balance must be surfaced (rendered in a warning
  color), never silently clamped. usedOld + usedNew == total always holds.

SEE ALSO:
  - usage.go: feeds per-user approved totals through this split
  - rollover.go: uses the split to compute year-end carry-forward
*/
package leave

import "github.com/shopspring/decimal"

var hoursPerDay = decimal.NewFromInt(HoursPerDay)

// PoolUsage is a user's consumption split across the two pools, in hours.
type PoolUsage struct {
	OldHours decimal.Decimal
	NewHours decimal.Decimal
}

// SplitHours distributes totalHours across the pools, old pool first.
// Invariant: OldHours + NewHours == totalHours exactly; OldHours never
// exceeds capOldHours; NewHours is not capped.
func SplitHours(totalHours, capOldHours decimal.Decimal) PoolUsage {
	usedOld := decimal.Min(totalHours, capOldHours)
	if usedOld.IsNegative() {
		usedOld = decimal.Zero
	}
	return PoolUsage{
		OldHours: usedOld,
		NewHours: totalHours.Sub(usedOld),
	}
}

// Balance is the derived state for one user: approved consumption split into
// pools plus remaining capacity. RemainingNewHours can be negative;
// RemainingOldHours cannot (usedOld is capped by construction).
type Balance struct {
	User      User
	UsedHours int // total clamped approved hours
	Usage     PoolUsage

	RemainingOldHours decimal.Decimal
	RemainingNewHours decimal.Decimal
}

// NewBalance computes the balance for u given its total approved hours.
func NewBalance(u User, totalHours int) Balance {
	total := decimal.NewFromInt(int64(totalHours))
	usage := SplitHours(total, u.CapOldHours())
	return Balance{
		User:              u,
		UsedHours:         totalHours,
		Usage:             usage,
		RemainingOldHours: u.CapOldHours().Sub(usage.OldHours),
		RemainingNewHours: u.CapNewHours().Sub(usage.NewHours),
	}
}

// OverAllocated reports whether the user has drawn more than both pools hold.
func (b Balance) OverAllocated() bool {
	return b.RemainingNewHours.IsNegative()
}

// HoursToDays converts an hour amount to days rounded to one decimal place,
// the display precision used everywhere (balances, CSV summary, rollover).
func HoursToDays(hours decimal.Decimal) decimal.Decimal {
	return hours.Div(hoursPerDay).Round(1)
}
