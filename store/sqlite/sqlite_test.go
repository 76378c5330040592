package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solara/leavedesk/leave"
	"github.com/solara/leavedesk/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// USER TESTS
// =============================================================================

func TestStore_UserRoundTrip(t *testing.T) {
	// GIVEN: A user with a fractional old allowance
	// WHEN: Writing and reading back through every lookup
	// THEN: All fields round-trip, including the exact 10.5-day decimal

	store := newTestStore(t)
	ctx := context.Background()

	u := leave.User{
		ID:           "u1",
		Name:         "Bea",
		Code:         "bea-1",
		OldAllowance: decimal.RequireFromString("10.5"),
		NewAllowance: decimal.NewFromInt(20),
	}
	require.NoError(t, store.PutUser(ctx, u))

	byID, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Bea", byID.Name)
	assert.True(t, byID.OldAllowance.Equal(u.OldAllowance),
		"allowance must round-trip exactly, got %s", byID.OldAllowance)

	byCode, err := store.GetUserByCode(ctx, "bea-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byCode.ID)

	byName, err := store.GetUserByName(ctx, "Bea")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
}

func TestStore_ListUsers_SortedByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, u := range []leave.User{
		{ID: "u1", Name: "Zed", Code: "z-1"},
		{ID: "u2", Name: "Al", Code: "a-1"},
	} {
		require.NoError(t, store.PutUser(ctx, u))
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Al", users[0].Name)
	assert.Equal(t, "Zed", users[1].Name)
}

func TestStore_PutUser_DuplicateCodeRejected(t *testing.T) {
	// GIVEN: An existing user with code "shared"
	// WHEN: A different user claims the same code, then the same name
	// THEN: Both writes fail with a DuplicateError naming the field

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutUser(ctx, leave.User{ID: "u1", Name: "Al", Code: "shared"}))

	err := store.PutUser(ctx, leave.User{ID: "u2", Name: "Bea", Code: "shared"})
	var dup *leave.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "code", dup.Field)
	assert.ErrorIs(t, err, leave.ErrValidation)

	err = store.PutUser(ctx, leave.User{ID: "u2", Name: "Al", Code: "other"})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "name", dup.Field)
}

func TestStore_PutUser_UpdateOwnRecord(t *testing.T) {
	// GIVEN: An existing user
	// WHEN: Upserting the same id with the same name/code
	// THEN: The update succeeds; a user never collides with itself

	store := newTestStore(t)
	ctx := context.Background()

	u := leave.User{ID: "u1", Name: "Al", Code: "a-1", OldAllowance: decimal.NewFromInt(5)}
	require.NoError(t, store.PutUser(ctx, u))

	u.OldAllowance = decimal.NewFromInt(7)
	require.NoError(t, store.PutUser(ctx, u))

	after, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, after.OldAllowance.Equal(decimal.NewFromInt(7)))
}

func TestStore_DeleteUser_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.DeleteUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// DAY RECORD TESTS
// =============================================================================

func TestStore_DayRecord_EmptyRecordDeletesKey(t *testing.T) {
	// GIVEN: A stored day record
	// WHEN: Writing an empty record for the same date
	// THEN: GetDay returns nil and ListDays drops the key entirely

	store := newTestStore(t)
	ctx := context.Background()
	date := leave.NewDate(2025, time.July, 1)

	rec := leave.DayRecord{
		"u1": {UserID: "u1", Status: leave.StatusApproved, Hours: 8, Kind: "vacation"},
		"u2": {UserID: "u2", Status: leave.StatusPending, Hours: 4},
	}
	require.NoError(t, store.PutDay(ctx, date, rec))

	got, err := store.GetDay(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, store.PutDay(ctx, date, leave.DayRecord{}))

	got, err = store.GetDay(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, got)

	days, err := store.ListDays(ctx)
	require.NoError(t, err)
	assert.NotContains(t, days, date)
}

func TestStore_DayRecord_ReplaceSemantics(t *testing.T) {
	// GIVEN: A record with two entries
	// WHEN: Writing a record with only one
	// THEN: The removed entry leaves no row behind

	store := newTestStore(t)
	ctx := context.Background()
	date := leave.NewDate(2025, time.July, 1)

	require.NoError(t, store.PutDay(ctx, date, leave.DayRecord{
		"u1": {UserID: "u1", Status: leave.StatusApproved, Hours: 8},
		"u2": {UserID: "u2", Status: leave.StatusPending, Hours: 4},
	}))
	require.NoError(t, store.PutDay(ctx, date, leave.DayRecord{
		"u1": {UserID: "u1", Status: leave.StatusApproved, Hours: 8},
	}))

	got, err := store.GetDay(ctx, date)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got, leave.UserID("u1"))
}

// =============================================================================
// NOTES TESTS
// =============================================================================

func TestStore_NotesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := leave.NewDate(2025, time.July, 1)

	notes := []leave.Note{
		{ID: "n1", Text: "first", By: "admin", At: 100},
		{ID: "n2", Text: "second", By: "admin", At: 200},
	}
	require.NoError(t, store.PutNotes(ctx, date, notes))

	got, err := store.GetNotes(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, notes, got, "notes come back ordered by timestamp")

	require.NoError(t, store.PutNotes(ctx, date, nil))
	got, err = store.GetNotes(ctx, date)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestStore_Config_NotFoundUntilSeeded(t *testing.T) {
	// GIVEN: A fresh database
	// WHEN: Reading config before and after the first write
	// THEN: ErrNotFound first, then the stored record including the
	//       nullable rollover year

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetConfig(ctx)
	assert.ErrorIs(t, err, leave.ErrNotFound)

	require.NoError(t, store.PutConfig(ctx, leave.Config{AdminCode: "secret"}))
	cfg, err := store.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.AdminCode)
	assert.Nil(t, cfg.LastRolloverYear)

	year := 2025
	require.NoError(t, store.PutConfig(ctx, leave.Config{AdminCode: "secret", LastRolloverYear: &year}))
	cfg, err = store.GetConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg.LastRolloverYear)
	assert.Equal(t, 2025, *cfg.LastRolloverYear)
}

// =============================================================================
// CHANGE FEED TESTS
// =============================================================================

func TestStore_Subscribe_PublishesAfterWrites(t *testing.T) {
	// GIVEN: A subscriber on the change feed
	// WHEN: Mutating users, bookings and config
	// THEN: One change per write arrives with the right kind; after cancel
	//       nothing more is delivered

	store := newTestStore(t)
	ctx := context.Background()

	var changes []leave.Change
	cancel := store.Subscribe(func(c leave.Change) { changes = append(changes, c) })

	require.NoError(t, store.PutUser(ctx, leave.User{ID: "u1", Name: "Al", Code: "a-1"}))
	date := leave.NewDate(2025, time.July, 1)
	require.NoError(t, store.PutDay(ctx, date, leave.DayRecord{
		"u1": {UserID: "u1", Status: leave.StatusPending, Hours: 4},
	}))
	require.NoError(t, store.PutConfig(ctx, leave.Config{AdminCode: "x"}))

	require.Len(t, changes, 3)
	assert.Equal(t, leave.ChangeUsers, changes[0].Kind)
	assert.Equal(t, leave.UserID("u1"), changes[0].UserID)
	assert.Equal(t, leave.ChangeBookings, changes[1].Kind)
	assert.Equal(t, date, changes[1].Date)
	assert.Equal(t, leave.ChangeConfig, changes[2].Kind)

	cancel()
	require.NoError(t, store.PutConfig(ctx, leave.Config{AdminCode: "y"}))
	assert.Len(t, changes, 3, "no delivery after cancel")
}
