/*
csv.go - Year-scoped CSV reports

PURPOSE:
  Two report shapes, both scoped to one calendar year:

  Detail:  Year,Name,Code,Date,Weekday,Hours,Kind,Status
           one row per booking entry, dates ascending, optionally filtered
           to a single user by exact name

  Summary: Year,Name,Code,TotalApprovedHours,ApprovedDays,
           RemainingOldDays,RemainingNewDays
           one row per user sorted by name; day figures to one decimal
           place; RemainingNewDays can be negative (over-allocation is
           reported, not clamped)

  Write prepends a UTF-8 BOM so spreadsheet tools detect the encoding.
*/
package export

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/solara/leavedesk/leave"
)

// DefaultKind labels entries whose kind was never set.
const DefaultKind = "vacation"

var detailHeader = []string{"Year", "Name", "Code", "Date", "Weekday", "Hours", "Kind", "Status"}

var summaryHeader = []string{
	"Year", "Name", "Code", "TotalApprovedHours", "ApprovedDays",
	"RemainingOldDays", "RemainingNewDays",
}

// DetailRows builds the per-entry report for year. nameFilter, when
// non-empty, keeps only the user with that exact name (case-insensitive).
func DetailRows(ctx context.Context, st leave.Store, year int, nameFilter string) ([][]string, error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[leave.UserID]leave.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	days, err := st.ListDays(ctx)
	if err != nil {
		return nil, err
	}

	dates := make([]leave.Date, 0, len(days))
	for d := range days {
		if d.InYear(year) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	filter := strings.ToLower(strings.TrimSpace(nameFilter))
	rows := [][]string{detailHeader}
	for _, date := range dates {
		for _, e := range sortedEntries(days[date]) {
			u, ok := byID[e.UserID]
			if !ok {
				continue // orphaned entry, user was deleted out-of-band
			}
			if filter != "" && strings.ToLower(u.Name) != filter {
				continue
			}
			kind := e.Kind
			if kind == "" {
				kind = DefaultKind
			}
			rows = append(rows, []string{
				strconv.Itoa(year),
				u.Name,
				u.Code,
				date.String(),
				date.Weekday().String(),
				strconv.Itoa(e.Hours),
				strings.ToUpper(kind),
				string(e.Status),
			})
		}
	}
	return rows, nil
}

// SummaryRows builds the per-user balance report for year using the same
// old-before-new split as the balance display.
func SummaryRows(ctx context.Context, st leave.Store, year int) ([][]string, error) {
	agg := leave.NewAggregator(st)
	balances, err := agg.Balances(ctx, &year)
	if err != nil {
		return nil, err
	}

	rows := [][]string{summaryHeader}
	for _, b := range balances {
		rows = append(rows, []string{
			strconv.Itoa(year),
			b.User.Name,
			b.User.Code,
			strconv.Itoa(b.UsedHours),
			leave.HoursToDays(decimal.NewFromInt(int64(b.UsedHours))).StringFixed(1),
			leave.HoursToDays(b.RemainingOldHours).StringFixed(1),
			leave.HoursToDays(b.RemainingNewHours).StringFixed(1),
		})
	}
	return rows, nil
}

// Write renders rows as CSV with a leading UTF-8 BOM.
func Write(w io.Writer, rows [][]string) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// sortedEntries orders a record's entries by user id for stable output.
func sortedEntries(rec leave.DayRecord) []leave.Entry {
	entries := make([]leave.Entry, 0, len(rec))
	for _, e := range rec {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries
}

// floatDays converts an exported float allowance back to a decimal day
// amount at display precision.
func floatDays(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(1)
}
