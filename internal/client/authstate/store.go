// Package authstate holds the local authentication cache: an injectable,
// observable container for {isAuthenticated, isLoading, user}.
//
// The store has no business logic. Listeners are invoked synchronously,
// outside the lock, after every write that changes the state.
package authstate

import (
	"sync"

	"github.com/dmitrijs2005/wardrobe/internal/client/models"
)

// State is an immutable snapshot of the cache.
type State struct {
	IsAuthenticated bool
	IsLoading       bool
	User            *models.CachedUser
}

// Listener receives the state after each change.
type Listener func(State)

// UserPatch describes a partial user update; nil fields are kept.
type UserPatch struct {
	RecordID      *string
	Email         *string
	FirstName     *string
	LastName      *string
	ImageURL      *string
	EmailVerified *bool
}

type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
}

// NewStore returns a store in the start-up state {false, true, nil}.
func NewStore() *Store {
	return &Store{
		state:     State{IsLoading: true},
		listeners: make(map[int]Listener),
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) IsAuthenticated() bool { return s.Snapshot().IsAuthenticated }
func (s *Store) IsLoading() bool       { return s.Snapshot().IsLoading }
func (s *Store) User() *models.CachedUser {
	return s.Snapshot().User
}

func (s *Store) SetAuthenticated(v bool) {
	s.update(func(st *State) { st.IsAuthenticated = v })
}

func (s *Store) SetLoading(v bool) {
	s.update(func(st *State) { st.IsLoading = v })
}

func (s *Store) SetUser(u *models.CachedUser) {
	s.update(func(st *State) { st.User = copyUser(u) })
}

// SignIn sets the user and isAuthenticated in one write.
func (s *Store) SignIn(u models.CachedUser) {
	s.update(func(st *State) {
		st.User = &u
		st.IsAuthenticated = true
	})
}

// UpdateUser applies p to the current user. It is a no-op without a user.
func (s *Store) UpdateUser(p UserPatch) {
	s.update(func(st *State) {
		if st.User == nil {
			return
		}
		u := *st.User
		if p.RecordID != nil {
			u.RecordID = *p.RecordID
		}
		if p.Email != nil {
			u.Email = *p.Email
		}
		if p.FirstName != nil {
			u.FirstName = *p.FirstName
		}
		if p.LastName != nil {
			u.LastName = *p.LastName
		}
		if p.ImageURL != nil {
			u.ImageURL = *p.ImageURL
		}
		if p.EmailVerified != nil {
			u.EmailVerified = *p.EmailVerified
		}
		st.User = &u
	})
}

// SignOut clears isAuthenticated and user atomically.
func (s *Store) SignOut() {
	s.update(func(st *State) {
		st.IsAuthenticated = false
		st.User = nil
	})
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	before := s.state.clone()
	fn(&s.state)
	after := s.state.clone()
	if before.equal(after) {
		s.mu.Unlock()
		return
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(after)
	}
}

func (st State) clone() State {
	st.User = copyUser(st.User)
	return st
}

func (st State) equal(o State) bool {
	if st.IsAuthenticated != o.IsAuthenticated || st.IsLoading != o.IsLoading {
		return false
	}
	if st.User == nil || o.User == nil {
		return st.User == nil && o.User == nil
	}
	return *st.User == *o.User
}

func copyUser(u *models.CachedUser) *models.CachedUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
