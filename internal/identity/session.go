package identity

import (
	"sync"

	"github.com/sakif/campus-forum/internal/model"
)

// Session tracks the currently authenticated identity for the running
// interaction. The forum service reads it to attribute comment authorship;
// the notification pipeline reads it for self-notification suppression.
//
// SINGLE-DESK ASSUMPTION:
// Exactly one active session per process — this models the original
// single-user desktop deployment, not a multi-tenant session table. The
// HTTP edge additionally carries a per-request identity (JWT subject) and
// passes it down explicitly; Session is the fallback when no per-request
// identity is supplied.
type Session struct {
	mu      sync.Mutex
	current *model.User
}

// NewSession creates an empty session context.
func NewSession() *Session {
	return &Session{}
}

// Start makes user the current identity, replacing any previous one.
func (s *Session) Start(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = user
}

// Current returns the active identity, or (nil, false) when nobody is
// logged in.
func (s *Session) Current() (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

// CurrentID returns the active identity's student id, or "" when nobody is
// logged in.
func (s *Session) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.StudentID
}

// End clears the session.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
