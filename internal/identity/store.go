// Package identity owns the canonical in-memory user records.
//
// THE RECONCILIATION PROBLEM:
// Users get loaded from the persistence gateway at startup, created at
// registration, and occasionally reconstructed by callers holding stale
// data. If two in-memory User structs share a student id and both receive
// writes, observers of that identity see diverging notification lists
// depending on which copy they happen to hold.
//
// THE CONTRACT:
// The Store keeps exactly one authoritative record per student id. Upsert
// installs a record only if none exists — if one does, the EXISTING record
// stays canonical and the caller's copy becomes a disposable view. All
// notification writes go through ApplyNotification, which targets the
// canonical record by key, never a caller-held pointer. (The system this
// replaces had a second code path that wrote to whatever instance the
// caller held; that variant is exactly the bug this package exists to
// prevent.)
//
// One mutex guards the whole map. Operations are short and in-memory, so
// global serialization is cheap and keeps the invariant trivial to audit.
package identity

import (
	"log/slog"
	"sync"

	"github.com/sakif/campus-forum/internal/model"
)

// Store is the process-wide canonical identity map, keyed by student id.
// Construct one at startup with New and inject it explicitly — there is no
// package-level instance.
type Store struct {
	mu     sync.Mutex
	users  map[string]*model.User
	logger *slog.Logger
}

// New creates an empty Store.
func New(logger *slog.Logger) *Store {
	return &Store{
		users:  make(map[string]*model.User),
		logger: logger,
	}
}

// Upsert installs user as the canonical record for its student id if none
// exists, and returns the canonical record either way.
//
// If a record already exists, the existing one is KEPT and returned — the
// argument becomes a disposable view whose posts/notifications must not be
// read or written afterwards. Callers should always continue with the
// returned pointer.
func (s *Store) Upsert(user *model.User) *model.User {
	if user == nil || user.StudentID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.StudentID]; ok {
		return existing
	}
	s.users[user.StudentID] = user
	return user
}

// Get returns the canonical record for the student id, or (nil, false).
func (s *Store) Get(studentID string) (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[studentID]
	return u, ok
}

// ApplyNotification appends a notification to the canonical record for the
// given student id — and only to it. Returns false if no canonical record
// exists (the caller logs and drops the delivery; this is non-fatal).
func (s *Store) ApplyNotification(studentID string, n *model.Notification) bool {
	if n == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[studentID]
	if !ok {
		return false
	}
	u.Notifications = append(u.Notifications, n)
	return true
}

// ApplyMutation runs fn against the canonical record for the student id
// while holding the store lock. Used for small canonical-record updates
// (marking a notification read, profile edits) that must not race with
// notification delivery. Returns false if no record exists.
//
// fn must be quick and must not call back into the Store.
func (s *Store) ApplyMutation(studentID string, fn func(*model.User)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[studentID]
	if !ok {
		return false
	}
	fn(u)
	return true
}

// Load installs a batch of users loaded from the persistence gateway.
// Unlike Upsert, duplicates here resolve LAST-write-wins: the persisted
// file is the source of truth at startup and a later entry supersedes an
// earlier one with the same student id.
func (s *Store) Load(users []*model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range users {
		if u == nil || u.StudentID == "" {
			continue
		}
		s.users[u.StudentID] = u
	}
	s.logger.Info("identity store loaded", slog.Int("users", len(s.users)))
}

// All returns detached deep copies of the canonical records, cloned while
// the store lock is held. Persistence workers serialize the returned
// snapshot without ever touching a record a concurrent delivery is
// appending to. Writes still go through the canonical record by key —
// mutating a returned copy changes nothing.
func (s *Store) All() []*model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	return out
}

// Len reports how many canonical records exist.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
