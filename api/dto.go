/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model from
  the wire contract. Request bodies carry go-playground/validator tags and
  are validated in the handlers before any domain call.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/solara/leavedesk/leave"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LoginRequest carries a shared-secret code to resolve into a capability.
type LoginRequest struct {
	Code string `json:"code" validate:"required"`
}

// LoginResponse is the resolved capability.
type LoginResponse struct {
	Role   string `json:"role"`
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name,omitempty"`
}

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	OldAllowance float64 `json:"oldAllowance"`
	NewAllowance float64 `json:"newAllowance"`
}

// UpsertUserRequest creates or updates a user.
type UpsertUserRequest struct {
	Name         string  `json:"name" validate:"required"`
	Code         string  `json:"code" validate:"required"`
	OldAllowance float64 `json:"oldAllowance" validate:"gte=0"`
	NewAllowance float64 `json:"newAllowance" validate:"gte=0"`
}

// EntryDTO is one booking entry within a day.
type EntryDTO struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	Hours  int    `json:"hours"`
	Kind   string `json:"kind,omitempty"`
}

// DayDTO is the record for one date.
type DayDTO struct {
	Date    string     `json:"date"`
	Entries []EntryDTO `json:"entries"`
	Notes   []NoteDTO  `json:"notes,omitempty"`
}

// RequestHoursRequest is the employee booking request. Hours 0 cancels.
type RequestHoursRequest struct {
	Hours int `json:"hours" validate:"gte=0,lte=8"`
}

// AdminSetHoursRequest is the admin upsert. Confirmed acknowledges the
// over-allocation warning; without it the API answers 409 with details.
type AdminSetHoursRequest struct {
	Hours     int  `json:"hours" validate:"gte=0,lte=8"`
	Confirmed bool `json:"confirmed"`
}

// BalanceDTO is one user's derived balance, in hours and days.
type BalanceDTO struct {
	UserID            string  `json:"userId"`
	Name              string  `json:"name"`
	UsedHours         int     `json:"usedHours"`
	UsedOldHours      float64 `json:"usedOldHours"`
	UsedNewHours      float64 `json:"usedNewHours"`
	RemainingOldHours float64 `json:"remainingOldHours"`
	RemainingNewHours float64 `json:"remainingNewHours"`
	RemainingOldDays  string  `json:"remainingOldDays"`
	RemainingNewDays  string  `json:"remainingNewDays"`
	OverAllocated     bool    `json:"overAllocated"`
}

// PendingDTO is one pending request awaiting admin review.
type PendingDTO struct {
	Date   string `json:"date"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Hours  int    `json:"hours"`
}

// NoteDTO is an admin annotation on a date.
type NoteDTO struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	By   string `json:"by"`
	At   int64  `json:"at"`
}

// AddNoteRequest appends a note to a date.
type AddNoteRequest struct {
	Text string `json:"text" validate:"required"`
}

// RolloverRequest triggers the year-end rollover. Force acknowledges the
// soft re-run gate when the year was already rolled over.
type RolloverRequest struct {
	Year         int `json:"year" validate:"required"`
	NewAllowance int `json:"newAllowance" validate:"required"`
	Force        bool `json:"force"`
}

// RolloverResultDTO is the transformation applied to one user.
type RolloverResultDTO struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	UsedHours    int    `json:"usedHours"`
	CarryDays    string `json:"carryDays"`
	NewAllowance string `json:"newAllowance"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUserDTO(u leave.User) UserDTO {
	return UserDTO{
		ID:           string(u.ID),
		Name:         u.Name,
		Code:         u.Code,
		OldAllowance: u.OldAllowance.InexactFloat64(),
		NewAllowance: u.NewAllowance.InexactFloat64(),
	}
}

func toEntryDTOs(rec leave.DayRecord) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(rec))
	for _, e := range rec {
		dtos = append(dtos, EntryDTO{
			UserID: string(e.UserID),
			Status: string(e.Status),
			Hours:  leave.ClampHours(e.Hours),
			Kind:   e.Kind,
		})
	}
	return dtos
}

func toBalanceDTO(b leave.Balance) BalanceDTO {
	return BalanceDTO{
		UserID:            string(b.User.ID),
		Name:              b.User.Name,
		UsedHours:         b.UsedHours,
		UsedOldHours:      b.Usage.OldHours.InexactFloat64(),
		UsedNewHours:      b.Usage.NewHours.InexactFloat64(),
		RemainingOldHours: b.RemainingOldHours.InexactFloat64(),
		RemainingNewHours: b.RemainingNewHours.InexactFloat64(),
		RemainingOldDays:  leave.HoursToDays(b.RemainingOldHours).StringFixed(1),
		RemainingNewDays:  leave.HoursToDays(b.RemainingNewHours).StringFixed(1),
		OverAllocated:     b.OverAllocated(),
	}
}

func toNoteDTOs(notes []leave.Note) []NoteDTO {
	dtos := make([]NoteDTO, 0, len(notes))
	for _, n := range notes {
		dtos = append(dtos, NoteDTO{ID: n.ID, Text: n.Text, By: n.By, At: n.At})
	}
	return dtos
}

func toRolloverDTOs(results []leave.RolloverResult) []RolloverResultDTO {
	dtos := make([]RolloverResultDTO, len(results))
	for i, r := range results {
		dtos[i] = RolloverResultDTO{
			UserID:       string(r.UserID),
			Name:         r.Name,
			UsedHours:    r.UsedHours,
			CarryDays:    r.CarryDays.StringFixed(1),
			NewAllowance: r.NewAllowance.StringFixed(1),
		}
	}
	return dtos
}

func decimalDays(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(1)
}
