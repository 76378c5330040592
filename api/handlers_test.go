package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solara/leavedesk/api"
	"github.com/solara/leavedesk/leave"
	"github.com/solara/leavedesk/store/memory"
)

const (
	adminCode    = "admin-secret"
	employeeCode = "bea-1"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newTestServer starts the full router backed by a memory store, seeded with
// the admin code and one employee.
func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.PutConfig(ctx, leave.Config{AdminCode: adminCode}))
	require.NoError(t, store.PutUser(ctx, leave.User{
		ID:           "u-bea",
		Name:         "Bea",
		Code:         employeeCode,
		OldAllowance: decimal.NewFromInt(5),
		NewAllowance: decimal.NewFromInt(20),
	}))

	h := api.NewHandler(store, zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, store
}

// do issues a request with the given access code and JSON body.
func do(t *testing.T, srv *httptest.Server, method, path, code string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if code != "" {
		req.Header.Set("X-Access-Code", code)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// futureDate returns a date safely in the future relative to the wall clock.
func futureDate() string {
	return time.Now().AddDate(1, 0, 0).Format("2006-01-02")
}

// =============================================================================
// LOGIN / CAPABILITY TESTS
// =============================================================================

func TestLogin_ResolvesCapabilities(t *testing.T) {
	// GIVEN: A seeded admin code and one employee
	// WHEN: Logging in with each code and with an unknown one
	// THEN: Admin resolves without identity, employee resolves to their user,
	//       unknown codes answer 404

	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/login", "", map[string]string{"code": adminCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	admin := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "admin", admin["role"])
	assert.NotContains(t, admin, "userId")

	resp = do(t, srv, http.MethodPost, "/api/login", "", map[string]string{"code": employeeCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	emp := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "employee", emp["role"])
	assert.Equal(t, "u-bea", emp["userId"])
	assert.Equal(t, "Bea", emp["name"])

	resp = do(t, srv, http.MethodPost, "/api/login", "", map[string]string{"code": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuth_MissingOrUnknownCode_Unauthorized(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/balances", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/balances", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutes_EmployeeForbidden(t *testing.T) {
	// GIVEN: An employee capability
	// WHEN: Hitting admin-only routes
	// THEN: 403 across the board

	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/users", "/api/pending", "/api/export/json"} {
		resp := do(t, srv, http.MethodGet, path, employeeCode, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}
}

// =============================================================================
// BOOKING FLOW TESTS
// =============================================================================

func TestBookingFlow_RequestApproveLock(t *testing.T) {
	// GIVEN: An employee and an admin
	// WHEN: The employee requests 6h, the admin approves, the employee
	//       tries to change the approved entry
	// THEN: Request lands pending, approval toggles it, the follow-up edit
	//       answers 409 locked

	srv, _ := newTestServer(t)
	date := futureDate()

	resp := do(t, srv, http.MethodPost, "/api/days/"+date+"/request", employeeCode,
		map[string]int{"hours": 6})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/days/"+date, employeeCode, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	day := decodeBody[struct {
		Entries []struct {
			UserID string `json:"userId"`
			Status string `json:"status"`
			Hours  int    `json:"hours"`
		} `json:"entries"`
	}](t, resp)
	require.Len(t, day.Entries, 1)
	assert.Equal(t, "pending", day.Entries[0].Status)
	assert.Equal(t, 6, day.Entries[0].Hours)

	resp = do(t, srv, http.MethodPut, "/api/days/"+date+"/entries/u-bea", adminCode,
		map[string]any{"hours": 6})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "approved", entry["status"])

	resp = do(t, srv, http.MethodPost, "/api/days/"+date+"/request", employeeCode,
		map[string]int{"hours": 2})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	conflict := decodeBody[map[string]any](t, resp)
	details, _ := conflict["details"].(map[string]any)
	assert.Equal(t, "locked", details["code"])
}

func TestSubmitRequest_AdminCapabilityForbidden(t *testing.T) {
	// GIVEN: The admin capability, which is not bound to a user
	// WHEN: Posting an employee booking request
	// THEN: 403; admins edit through the entries route instead

	srv, _ := newTestServer(t)
	resp := do(t, srv, http.MethodPost, "/api/days/"+futureDate()+"/request", adminCode,
		map[string]int{"hours": 6})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubmitRequest_InvalidHoursRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, srv, http.MethodPost, "/api/days/"+futureDate()+"/request", employeeCode,
		map[string]int{"hours": 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminSetEntry_UnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, srv, http.MethodPut, "/api/days/"+futureDate()+"/entries/ghost", adminCode,
		map[string]any{"hours": 6})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminSetEntry_ZeroDeletes(t *testing.T) {
	// GIVEN: An existing entry
	// WHEN: Admin sets 0h
	// THEN: 204 and the day is gone

	srv, store := newTestServer(t)
	date := futureDate()

	resp := do(t, srv, http.MethodPut, "/api/days/"+date+"/entries/u-bea", adminCode,
		map[string]any{"hours": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodPut, "/api/days/"+date+"/entries/u-bea", adminCode,
		map[string]any{"hours": 0})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	rec, err := store.GetDay(context.Background(), leave.Date(date))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

// =============================================================================
// USER MANAGEMENT TESTS
// =============================================================================

func TestUsers_CreateDuplicateDelete(t *testing.T) {
	// GIVEN: The seeded employee Bea
	// WHEN: Creating a user, colliding with Bea's code, then deleting Bea
	// THEN: Create answers 201, the collision 400, and deletion cascades
	//       through Bea's bookings

	srv, store := newTestServer(t)
	ctx := context.Background()

	resp := do(t, srv, http.MethodPost, "/api/users", adminCode, map[string]any{
		"name": "Al", "code": "al-1", "oldAllowance": 2.5, "newAllowance": 20,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[map[string]any](t, resp)
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, 2.5, created["oldAllowance"])

	resp = do(t, srv, http.MethodPost, "/api/users", adminCode, map[string]any{
		"name": "Clone", "code": employeeCode, "oldAllowance": 0, "newAllowance": 20,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	date := leave.Date(futureDate())
	require.NoError(t, store.PutDay(ctx, date, leave.DayRecord{
		"u-bea": {UserID: "u-bea", Status: leave.StatusApproved, Hours: 8},
	}))

	resp = do(t, srv, http.MethodDelete, "/api/users/u-bea", adminCode, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	days, err := store.ListDays(ctx)
	require.NoError(t, err)
	assert.NotContains(t, days, date, "deletion cascades through bookings")
}

// =============================================================================
// ROLLOVER ENDPOINT TESTS
// =============================================================================

func TestRollover_PresetAndSoftGate(t *testing.T) {
	// GIVEN: A fresh config with no recorded rollover
	// WHEN: Rolling over with a non-preset allowance, then 2025 twice, then
	//       2025 with force
	// THEN: 400 for the bad preset, 200 for the first run, 409 for the
	//       repeat, 200 again once forced

	srv, store := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/admin/rollover", adminCode,
		map[string]any{"year": 2025, "newAllowance": 21})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/admin/rollover", adminCode,
		map[string]any{"year": 2025, "newAllowance": 25})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := decodeBody[[]map[string]any](t, resp)
	require.Len(t, results, 1)
	assert.Equal(t, "20.0", results[0]["carryDays"], "untouched new pool carries whole")
	assert.Equal(t, "25.0", results[0]["newAllowance"])

	cfg, err := store.GetConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg.LastRolloverYear)
	assert.Equal(t, 2025, *cfg.LastRolloverYear)

	resp = do(t, srv, http.MethodPost, "/api/admin/rollover", adminCode,
		map[string]any{"year": 2025, "newAllowance": 25})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	conflict := decodeBody[map[string]any](t, resp)
	details, _ := conflict["details"].(map[string]any)
	assert.Equal(t, "rollover_repeat", details["code"])

	resp = do(t, srv, http.MethodPost, "/api/admin/rollover", adminCode,
		map[string]any{"year": 2025, "newAllowance": 25, "force": true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// BALANCES / NOTES / EXPORT TESTS
// =============================================================================

func TestGetBalances_EmployeeVisible(t *testing.T) {
	// GIVEN: One approved day for Bea
	// WHEN: An employee reads balances
	// THEN: The shared overview is visible with the pool split applied

	srv, store := newTestServer(t)
	require.NoError(t, store.PutDay(context.Background(), leave.Date(futureDate()), leave.DayRecord{
		"u-bea": {UserID: "u-bea", Status: leave.StatusApproved, Hours: 8},
	}))

	resp := do(t, srv, http.MethodGet, "/api/balances", employeeCode, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances := decodeBody[[]map[string]any](t, resp)
	require.Len(t, balances, 1)
	assert.Equal(t, float64(8), balances[0]["usedHours"])
	assert.Equal(t, float64(8), balances[0]["usedOldHours"], "old pool drains first")
	assert.Equal(t, "4.0", balances[0]["remainingOldDays"])
	assert.Equal(t, "20.0", balances[0]["remainingNewDays"])
	assert.Equal(t, false, balances[0]["overAllocated"])
}

func TestNotes_AdminOnlyVisibility(t *testing.T) {
	// GIVEN: A note added by the admin
	// WHEN: Reading the day as admin and as employee
	// THEN: The admin sees notes inline; the employee's day omits them

	srv, _ := newTestServer(t)
	date := futureDate()

	resp := do(t, srv, http.MethodPost, "/api/notes/"+date, adminCode,
		map[string]string{"text": "office closed pm"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/days/"+date, adminCode, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	adminDay := decodeBody[map[string]any](t, resp)
	assert.NotEmpty(t, adminDay["notes"])

	resp = do(t, srv, http.MethodGet, "/api/days/"+date, employeeCode, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empDay := decodeBody[map[string]any](t, resp)
	assert.NotContains(t, empDay, "notes")

	resp = do(t, srv, http.MethodDelete, "/api/notes/"+date, adminCode, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestExportCSV_RequiresYear(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/api/export/csv", adminCode, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportCSV_ContentTypeAndFilename(t *testing.T) {
	srv, _ := newTestServer(t)
	year := time.Now().Year()

	resp := do(t, srv, http.MethodGet, fmt.Sprintf("/api/export/csv?year=%d", year), adminCode, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), fmt.Sprintf("leavedesk-%d.csv", year))
}

func TestImport_MergeThroughAPI(t *testing.T) {
	// GIVEN: An export-shaped payload
	// WHEN: Posting it to /api/import
	// THEN: Users land in the store; the admin code stays untouched

	srv, store := newTestServer(t)

	payload := map[string]any{
		"schemaVersion": 2,
		"config":        map[string]any{"adminCode": "attacker"},
		"users": []map[string]any{
			{"id": "u-al", "name": "Al", "code": "al-1", "oldAllowance": 0, "newAllowance": 20},
		},
		"bookings": map[string]any{},
	}
	resp := do(t, srv, http.MethodPost, "/api/import", adminCode, payload)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err := store.GetUser(context.Background(), "u-al")
	assert.NoError(t, err)

	cfg, err := store.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, adminCode, cfg.AdminCode, "imported config must be ignored")
}
