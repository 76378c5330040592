/*
Package export implements the JSON export/import and CSV report formats.

PURPOSE:
  Serializes the full dataset (users + bookings, config informationally) to
  the schemaVersion 2 JSON payload, re-imports such payloads in merge or
  replace mode, and renders the two year-scoped CSV reports.

IMPORT CONTRACT:
  - merge:   upsert users by id, upsert booking dates
  - replace: delete all existing users and bookings first, then insert
  - config is NEVER written, regardless of mode or payload content

LEGACY SHAPES:
  Exports store booking entries as arrays. Old payloads can carry two
  entries for the same user on one date; on import the approved entry wins
  over a pending one, otherwise the later entry wins, and the day record's
  map shape keeps at most one.
*/
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/solara/leavedesk/leave"
)

const SchemaVersion = 2

// =============================================================================
// PAYLOAD - schemaVersion 2 wire format
// =============================================================================

type Payload struct {
	SchemaVersion int                    `json:"schemaVersion"`
	ExportedAt    string                 `json:"exportedAt"`
	Config        ConfigJSON             `json:"config"` // informational only, never re-imported
	Users         []UserJSON             `json:"users"`
	Bookings      map[string][]EntryJSON `json:"bookings"`
}

type ConfigJSON struct {
	AdminCode        string `json:"adminCode"`
	LastRolloverYear *int   `json:"lastRolloverYear"`
}

type UserJSON struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	OldAllowance float64 `json:"oldAllowance"`
	NewAllowance float64 `json:"newAllowance"`
}

type EntryJSON struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	Hours  int    `json:"hours"`
	Kind   string `json:"kind,omitempty"`
}

// =============================================================================
// EXPORT
// =============================================================================

// Snapshot builds the export payload from the current store state.
func Snapshot(ctx context.Context, st leave.Store) (Payload, error) {
	cfg, err := st.GetConfig(ctx)
	if err != nil && !leave.IsNotFound(err) {
		return Payload{}, err
	}
	users, err := st.ListUsers(ctx)
	if err != nil {
		return Payload{}, err
	}
	days, err := st.ListDays(ctx)
	if err != nil {
		return Payload{}, err
	}

	p := Payload{
		SchemaVersion: SchemaVersion,
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			AdminCode:        cfg.AdminCode,
			LastRolloverYear: cfg.LastRolloverYear,
		},
		Users:    make([]UserJSON, 0, len(users)),
		Bookings: make(map[string][]EntryJSON, len(days)),
	}
	for _, u := range users {
		p.Users = append(p.Users, UserJSON{
			ID:           string(u.ID),
			Name:         u.Name,
			Code:         u.Code,
			OldAllowance: u.OldAllowance.InexactFloat64(),
			NewAllowance: u.NewAllowance.InexactFloat64(),
		})
	}
	for date, rec := range days {
		items := make([]EntryJSON, 0, len(rec))
		for _, e := range sortedEntries(rec) {
			items = append(items, EntryJSON{
				UserID: string(e.UserID),
				Status: string(e.Status),
				Hours:  e.Hours,
				Kind:   e.Kind,
			})
		}
		p.Bookings[string(date)] = items
	}
	return p, nil
}

// =============================================================================
// IMPORT
// =============================================================================

type Mode string

const (
	ModeMerge   Mode = "merge"
	ModeReplace Mode = "replace"
)

// Import applies a payload to the store. In replace mode all existing users
// and bookings are deleted first. Config is never written. Deletions that
// succeeded before a failure are not rolled back.
func Import(ctx context.Context, st leave.Store, p Payload, mode Mode) error {
	if mode != ModeMerge && mode != ModeReplace {
		return &leave.FieldError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}

	if mode == ModeReplace {
		users, err := st.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			if err := st.DeleteUser(ctx, u.ID); err != nil {
				return err
			}
		}
		days, err := st.ListDays(ctx)
		if err != nil {
			return err
		}
		for date := range days {
			if err := st.PutDay(ctx, date, nil); err != nil {
				return err
			}
		}
	}

	for _, uj := range p.Users {
		u, err := userFromJSON(uj)
		if err != nil {
			return err
		}
		if err := st.PutUser(ctx, u); err != nil {
			return err
		}
	}

	for dateStr, items := range p.Bookings {
		date, err := leave.ParseDate(dateStr)
		if err != nil {
			return &leave.FieldError{Field: "bookings", Reason: err.Error()}
		}
		rec := recordFromItems(items)
		if len(rec) == 0 {
			continue
		}
		if err := st.PutDay(ctx, date, rec); err != nil {
			return err
		}
	}
	return nil
}

func userFromJSON(uj UserJSON) (leave.User, error) {
	if uj.Name == "" {
		return leave.User{}, &leave.FieldError{Field: "name", Reason: "must not be empty"}
	}
	id := leave.UserID(uj.ID)
	if id == "" {
		id = leave.UserID(uuid.NewString())
	}
	return leave.User{
		ID:           id,
		Name:         uj.Name,
		Code:         uj.Code,
		OldAllowance: floatDays(uj.OldAllowance),
		NewAllowance: floatDays(uj.NewAllowance),
	}, nil
}

// recordFromItems collapses a legacy entry array into the map shape. The
// approved entry wins over a pending one; otherwise the later entry wins.
func recordFromItems(items []EntryJSON) leave.DayRecord {
	rec := leave.DayRecord{}
	for _, it := range items {
		id := leave.UserID(it.UserID)
		if id == "" {
			continue
		}
		entry := leave.Entry{
			UserID: id,
			Status: leave.Status(it.Status),
			Hours:  leave.ClampHours(it.Hours),
			Kind:   it.Kind,
		}
		if entry.Status != leave.StatusApproved {
			entry.Status = leave.StatusPending
		}
		if prev, ok := rec[id]; ok && prev.Status == leave.StatusApproved && entry.Status != leave.StatusApproved {
			continue
		}
		rec[id] = entry
	}
	return rec
}
