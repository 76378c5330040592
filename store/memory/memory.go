// Package memory provides an in-memory leave.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/solara/leavedesk/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	leave.Hub

	mu        sync.RWMutex
	users     map[leave.UserID]leave.User
	days      map[leave.Date]leave.DayRecord
	notes     map[leave.Date][]leave.Note
	config    leave.Config
	hasConfig bool
}

func New() *Store {
	return &Store{
		users: make(map[leave.UserID]leave.User),
		days:  make(map[leave.Date]leave.DayRecord),
		notes: make(map[leave.Date][]leave.Note),
	}
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) GetUser(_ context.Context, id leave.UserID) (leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return leave.User{}, leave.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByCode(_ context.Context, code string) (leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Code == code {
			return u, nil
		}
	}
	return leave.User{}, leave.ErrNotFound
}

func (s *Store) GetUserByName(_ context.Context, name string) (leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Name == name {
			return u, nil
		}
	}
	return leave.User{}, leave.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leave.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) PutUser(_ context.Context, u leave.User) error {
	s.mu.Lock()
	for _, other := range s.users {
		if other.ID == u.ID {
			continue
		}
		if other.Name == u.Name {
			s.mu.Unlock()
			return &leave.DuplicateError{Field: "name", Value: u.Name}
		}
		if other.Code == u.Code {
			s.mu.Unlock()
			return &leave.DuplicateError{Field: "code", Value: u.Code}
		}
	}
	s.users[u.ID] = u
	s.mu.Unlock()

	s.Publish(leave.Change{Kind: leave.ChangeUsers, UserID: u.ID})
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id leave.UserID) error {
	s.mu.Lock()
	if _, ok := s.users[id]; !ok {
		s.mu.Unlock()
		return leave.ErrNotFound
	}
	delete(s.users, id)
	s.mu.Unlock()

	s.Publish(leave.Change{Kind: leave.ChangeUsers, UserID: id})
	return nil
}

// =============================================================================
// DAY RECORDS
// =============================================================================

func (s *Store) GetDay(_ context.Context, d leave.Date) (leave.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.days[d].Clone(), nil
}

func (s *Store) PutDay(_ context.Context, d leave.Date, rec leave.DayRecord) error {
	s.mu.Lock()
	if len(rec) == 0 {
		delete(s.days, d)
	} else {
		s.days[d] = rec.Clone()
	}
	s.mu.Unlock()

	s.Publish(leave.Change{Kind: leave.ChangeBookings, Date: d})
	return nil
}

func (s *Store) ListDays(_ context.Context) (map[leave.Date]leave.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[leave.Date]leave.DayRecord, len(s.days))
	for d, rec := range s.days {
		out[d] = rec.Clone()
	}
	return out, nil
}

// =============================================================================
// NOTES
// =============================================================================

func (s *Store) GetNotes(_ context.Context, d leave.Date) ([]leave.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]leave.Note(nil), s.notes[d]...), nil
}

func (s *Store) PutNotes(_ context.Context, d leave.Date, notes []leave.Note) error {
	s.mu.Lock()
	if len(notes) == 0 {
		delete(s.notes, d)
	} else {
		s.notes[d] = append([]leave.Note(nil), notes...)
	}
	s.mu.Unlock()

	s.Publish(leave.Change{Kind: leave.ChangeNotes, Date: d})
	return nil
}

// =============================================================================
// CONFIG
// =============================================================================

func (s *Store) GetConfig(_ context.Context) (leave.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasConfig {
		return leave.Config{}, leave.ErrNotFound
	}
	return s.config, nil
}

func (s *Store) PutConfig(_ context.Context, cfg leave.Config) error {
	s.mu.Lock()
	s.config = cfg
	s.hasConfig = true
	s.mu.Unlock()

	s.Publish(leave.Change{Kind: leave.ChangeConfig})
	return nil
}
