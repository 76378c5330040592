/*
store.go - Repository interface for the shared document store

PURPOSE:
  Defines the interface between the engine and persistence. The store is a
  document-shaped key-value repository: users by id, day records by date,
  notes by date, one config singleton. Implementations can use SQLite or
  in-memory maps; the engine never knows which.

EMPTY-RECORD CONTRACT:
  PutDay with an empty (or nil) record deletes the key. A date with zero
  entries must never persist as an empty record; GetDay for an absent date
  returns nil, not an empty map.

ATOMICITY:
  Every ledger mutation is a read-modify-write against a single per-date
  record performed as one logical step. PutDay must be atomic per key
  (the SQLite implementation wraps it in a transaction). Multi-record
  cascades (user deletion, rollover) are NOT atomic across keys; partial
  completion is surfaced to the caller, never rolled back.

CHANGE FEED:
  Subscribe registers a callback invoked after every successful mutation.
  Consumers re-derive balances on notification; nothing polls.

IMPLEMENTATIONS:
  - store/sqlite: production store (mattn/go-sqlite3, WAL)
  - store/memory: in-memory store for tests and dev
*/
package leave

import (
	"context"
	"sync"
)

// =============================================================================
// STORE - Document-shaped repository
// =============================================================================

type Store interface {
	// Users. PutUser upserts and rejects duplicate name or code with a
	// DuplicateError before writing. DeleteUser removes only the user
	// record; booking cleanup is the ledger's cascade.
	GetUser(ctx context.Context, id UserID) (User, error)
	GetUserByCode(ctx context.Context, code string) (User, error)
	GetUserByName(ctx context.Context, name string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	PutUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id UserID) error

	// Day records. GetDay returns nil for an absent date. PutDay with an
	// empty record deletes the key.
	GetDay(ctx context.Context, d Date) (DayRecord, error)
	PutDay(ctx context.Context, d Date, rec DayRecord) error
	ListDays(ctx context.Context) (map[Date]DayRecord, error)

	// Notes. PutNotes with an empty slice deletes the key.
	GetNotes(ctx context.Context, d Date) ([]Note, error)
	PutNotes(ctx context.Context, d Date, notes []Note) error

	// Config singleton. GetConfig returns ErrNotFound until seeded.
	GetConfig(ctx context.Context) (Config, error)
	PutConfig(ctx context.Context, cfg Config) error

	// Subscribe registers a change callback and returns a cancel func.
	Subscribe(fn func(Change)) (cancel func())
}

// =============================================================================
// CHANGE FEED
// =============================================================================

type ChangeKind string

const (
	ChangeUsers    ChangeKind = "users"
	ChangeBookings ChangeKind = "bookings"
	ChangeNotes    ChangeKind = "notes"
	ChangeConfig   ChangeKind = "config"
)

// Change describes one store mutation. Date and UserID are set when the
// mutation is scoped to a single key.
type Change struct {
	Kind   ChangeKind
	Date   Date
	UserID UserID
}

// Hub is a minimal fan-out of store changes to subscribers. Store
// implementations embed it and call Publish after successful writes.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Change)
}

// Subscribe registers fn and returns a cancel func. fn is invoked
// synchronously from the mutating goroutine; subscribers must not block.
func (h *Hub) Subscribe(fn func(Change)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func(Change))
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// Publish delivers c to all current subscribers.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	fns := make([]func(Change), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
