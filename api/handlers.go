/*
handlers.go - HTTP handlers for the leave calendar

PURPOSE:
  Exposes the leave engine via REST. Handles request parsing, validation
  and JSON serialization, and delegates every decision to the domain
  layer (ledger, aggregator, rollover engine, notebook).

ERROR HANDLING:
  Domain errors map onto HTTP statuses:
  - 400: validation (hours range, missing fields, duplicate name/code)
  - 401: unknown access code
  - 403: capability/role mismatch
  - 404: user/date not found
  - 409: locked entry, over-allocation gate, rollover re-run gate
  - 500: store failures

ROLLOVER GATE:
  The engine is not idempotent, so this layer owns the duplicate-run
  guard: a rollover for the recorded LastRolloverYear needs force=true.
  The 20/25-day preset for the new allowance is also enforced here - it
  is UI policy, not a core invariant.

SEE ALSO:
  - dto.go: request/response shapes
  - auth.go: capability resolution
  - server.go: routing and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/solara/leavedesk/export"
	"github.com/solara/leavedesk/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    leave.Store
	Ledger   *leave.Ledger
	Agg      *leave.Aggregator
	Rollover *leave.RolloverEngine
	Notes    *leave.Notebook
	Log      zerolog.Logger

	validate *validator.Validate
}

// NewHandler wires the domain services around the given store.
func NewHandler(store leave.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Ledger:   leave.NewLedger(store),
		Agg:      leave.NewAggregator(store),
		Rollover: leave.NewRolloverEngine(store),
		Notes:    leave.NewNotebook(store),
		Log:      log,
		validate: validator.New(),
	}
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return h.validate.Struct(dst)
}

// =============================================================================
// LOGIN
// =============================================================================

// Login resolves a shared-secret code into a capability.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	cap, user, err := h.resolveCode(r.Context(), strings.TrimSpace(req.Code))
	if leave.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Unknown code", nil)
		return
	}
	if err != nil {
		h.serverError(w, "login", err)
		return
	}

	resp := LoginResponse{Role: string(cap.Role)}
	if cap.Role == RoleEmployee {
		resp.UserID = string(user.ID)
		resp.Name = user.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// USER HANDLERS (admin)
// =============================================================================

// ListUsers returns all users, sorted by name.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.serverError(w, "list users", err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser creates a user with a fresh id.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UpsertUserRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	u := leave.User{
		ID:           leave.UserID(uuid.NewString()),
		Name:         strings.TrimSpace(req.Name),
		Code:         strings.TrimSpace(req.Code),
		OldAllowance: decimalDays(req.OldAllowance),
		NewAllowance: decimalDays(req.NewAllowance),
	}
	if err := h.Store.PutUser(r.Context(), u); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// UpdateUser overwrites an existing user's fields.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := leave.UserID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetUser(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	var req UpsertUserRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	u := leave.User{
		ID:           id,
		Name:         strings.TrimSpace(req.Name),
		Code:         strings.TrimSpace(req.Code),
		OldAllowance: decimalDays(req.OldAllowance),
		NewAllowance: decimalDays(req.NewAllowance),
	}
	if err := h.Store.PutUser(r.Context(), u); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// DeleteUser removes the user and cascades through every day record.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := leave.UserID(chi.URLParam(r, "id"))
	if err := h.Ledger.DeleteUserEverywhere(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

func parseDateParam(r *http.Request) (leave.Date, error) {
	return leave.ParseDate(chi.URLParam(r, "date"))
}

// GetDay returns the record for one date. Notes are included for admins.
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	rec, err := h.Store.GetDay(r.Context(), date)
	if err != nil {
		h.serverError(w, "get day", err)
		return
	}

	dto := DayDTO{Date: date.String(), Entries: toEntryDTOs(rec)}
	if cap, ok := capabilityFrom(r.Context()); ok && cap.IsAdmin() {
		notes, err := h.Store.GetNotes(r.Context(), date)
		if err != nil {
			h.serverError(w, "get notes", err)
			return
		}
		dto.Notes = toNoteDTOs(notes)
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListDays returns all day records, optionally scoped to ?year=.
func (h *Handler) ListDays(w http.ResponseWriter, r *http.Request) {
	days, err := h.Store.ListDays(r.Context())
	if err != nil {
		h.serverError(w, "list days", err)
		return
	}

	var year *int
	if y := r.URL.Query().Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", nil)
			return
		}
		year = &n
	}

	dtos := make([]DayDTO, 0, len(days))
	for date, rec := range days {
		if year != nil && !date.InYear(*year) {
			continue
		}
		dtos = append(dtos, DayDTO{Date: date.String(), Entries: toEntryDTOs(rec)})
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Date < dtos[j].Date })
	writeJSON(w, http.StatusOK, dtos)
}

// SubmitRequest is the employee booking operation on the caller's own
// entry. Hours 0 cancels the pending request.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	cap, _ := capabilityFrom(r.Context())
	if cap.IsAdmin() {
		writeError(w, http.StatusForbidden, "Employee capability required", nil)
		return
	}

	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	var req RequestHoursRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.Ledger.Request(r.Context(), date, cap.UserID, req.Hours); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminSetEntry is the admin upsert: set hours and toggle approval in one
// action. Without confirmed=true an over-allocation answers 409.
func (h *Handler) AdminSetEntry(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	userID := leave.UserID(chi.URLParam(r, "userId"))
	if _, err := h.Store.GetUser(r.Context(), userID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	var req AdminSetHoursRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	entry, err := h.Ledger.AdminSetHours(r.Context(), date, userID, req.Hours, req.Confirmed)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if entry == (leave.Entry{}) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, EntryDTO{
		UserID: string(entry.UserID),
		Status: string(entry.Status),
		Hours:  entry.Hours,
		Kind:   entry.Kind,
	})
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalances returns per-user balances, optionally scoped to ?year=.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	var year *int
	if y := r.URL.Query().Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", nil)
			return
		}
		year = &n
	}

	balances, err := h.Agg.Balances(r.Context(), year)
	if err != nil {
		h.serverError(w, "balances", err)
		return
	}
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPending returns all pending requests for admin review.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Agg.PendingRequests(r.Context())
	if err != nil {
		h.serverError(w, "pending", err)
		return
	}
	dtos := make([]PendingDTO, len(pending))
	for i, p := range pending {
		dtos[i] = PendingDTO{
			Date:   p.Date.String(),
			UserID: string(p.UserID),
			Name:   p.Name,
			Hours:  p.Hours,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ROLLOVER
// =============================================================================

// TriggerRollover runs the year-end rollover. Owns the duplicate-run soft
// gate and the 20/25-day preset check; records LastRolloverYear on success.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	var req RolloverRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.NewAllowance != 20 && req.NewAllowance != 25 {
		writeError(w, http.StatusBadRequest, "New allowance must be 20 or 25 days", nil)
		return
	}

	ctx := r.Context()
	cfg, err := h.Store.GetConfig(ctx)
	if err != nil && !leave.IsNotFound(err) {
		h.serverError(w, "get config", err)
		return
	}
	if cfg.LastRolloverYear != nil && *cfg.LastRolloverYear == req.Year && !req.Force {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("Rollover for %d already recorded; repeat with force", req.Year),
			map[string]any{"code": "rollover_repeat", "year": req.Year})
		return
	}

	results, err := h.Rollover.Run(ctx, req.Year, decimal.NewFromInt(int64(req.NewAllowance)))
	if err != nil {
		// Partial completion is surfaced, not hidden: report what finished.
		h.Log.Error().Err(err).Int("year", req.Year).
			Int("completed", len(results)).Msg("rollover stopped early")
		writeError(w, http.StatusInternalServerError, err.Error(),
			map[string]any{"completed": toRolloverDTOs(results)})
		return
	}

	year := req.Year
	cfg.LastRolloverYear = &year
	if err := h.Store.PutConfig(ctx, cfg); err != nil {
		h.serverError(w, "record rollover year", err)
		return
	}

	h.Log.Info().Int("year", req.Year).Int("users", len(results)).Msg("rollover complete")
	writeJSON(w, http.StatusOK, toRolloverDTOs(results))
}

// =============================================================================
// NOTES (admin)
// =============================================================================

// ListNotes returns the notes for one date.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	notes, err := h.Store.GetNotes(r.Context(), date)
	if err != nil {
		h.serverError(w, "get notes", err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTOs(notes))
}

// AddNote appends a note to a date.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	var req AddNoteRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	note, err := h.Notes.Add(r.Context(), date, req.Text, "admin")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NoteDTO{ID: note.ID, Text: note.Text, By: note.By, At: note.At})
}

// ClearNotes removes all notes for a date.
func (h *Handler) ClearNotes(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Notes.Clear(r.Context(), date); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EXPORT / IMPORT (admin)
// =============================================================================

// ExportJSON streams the full dataset as the schemaVersion 2 payload.
func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	payload, err := export.Snapshot(r.Context(), h.Store)
	if err != nil {
		h.serverError(w, "export", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="leavedesk-export.json"`)
	writeJSON(w, http.StatusOK, payload)
}

func yearParam(r *http.Request) (int, error) {
	y := r.URL.Query().Get("year")
	if y == "" {
		return 0, fmt.Errorf("year query parameter is required")
	}
	return strconv.Atoi(y)
}

// ExportCSV streams the per-entry detail report for ?year=, optionally
// filtered to one user with ?name=.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	rows, err := export.DetailRows(r.Context(), h.Store, year, r.URL.Query().Get("name"))
	if err != nil {
		h.serverError(w, "export csv", err)
		return
	}
	h.writeCSV(w, fmt.Sprintf("leavedesk-%d.csv", year), rows)
}

// ExportSummary streams the per-user balance report for ?year=.
func (h *Handler) ExportSummary(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	rows, err := export.SummaryRows(r.Context(), h.Store, year)
	if err != nil {
		h.serverError(w, "export summary", err)
		return
	}
	h.writeCSV(w, fmt.Sprintf("leavedesk-%d-summary.csv", year), rows)
}

func (h *Handler) writeCSV(w http.ResponseWriter, filename string, rows [][]string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.Write(w, rows); err != nil {
		h.Log.Error().Err(err).Msg("csv write failed")
	}
}

// ImportJSON applies an export payload in ?mode=merge (default) or
// ?mode=replace. Config is never written.
func (h *Handler) ImportJSON(w http.ResponseWriter, r *http.Request) {
	mode := export.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = export.ModeMerge
	}

	var payload export.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload", nil)
		return
	}
	if err := export.Import(r.Context(), h.Store, payload, mode); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CONFIG (admin)
// =============================================================================

// UpdateAdminCode rotates the admin shared secret. The only config write
// surface besides the rollover year - imports never touch config.
func (h *Handler) UpdateAdminCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminCode string `json:"adminCode" validate:"required"`
	}
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	cfg, err := h.Store.GetConfig(r.Context())
	if err != nil && !leave.IsNotFound(err) {
		h.serverError(w, "get config", err)
		return
	}
	cfg.AdminCode = strings.TrimSpace(req.AdminCode)
	if err := h.Store.PutConfig(r.Context(), cfg); err != nil {
		h.serverError(w, "put config", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ERROR WRITING
// =============================================================================

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.Log.Error().Err(err).Str("op", op).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "Internal error", nil)
}

// writeDomainError maps engine errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var oa *leave.OverAllocationError
	switch {
	case errors.As(err, &oa):
		writeError(w, http.StatusConflict, oa.Error(), map[string]any{
			"code":           "over_allocation",
			"projectedHours": oa.ProjectedHours,
			"date":           oa.Date.String(),
			"userId":         string(oa.UserID),
		})
	case errors.Is(err, leave.ErrLocked):
		writeError(w, http.StatusConflict, err.Error(), map[string]any{"code": "locked"})
	case errors.Is(err, leave.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", nil)
	default:
		h.serverError(w, "domain", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
