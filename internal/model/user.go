// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — plain fields plus a few small
// behaviour methods. There is no inheritance here: the original design called
// for an abstract User with concrete kinds, which in Go becomes a single
// struct with a Kind tag (room for more kinds without subclassing).
package model

import "time"

// UserKind tags the concrete kind of a user account.
// Today there is exactly one kind — Student — but the tag keeps the door open
// for staff/guest accounts without changing the struct shape.
type UserKind string

// KindStudent is the only user kind currently issued at registration.
const KindStudent UserKind = "student"

// DefaultAvatarPath is assigned to every new account at registration.
const DefaultAvatarPath = "avatar.png"

// User represents a registered forum account.
//
// IDENTITY FIELDS:
//   - ID is our internal xid (generated at registration, never user-facing)
//   - StudentID is the STABLE KEY: the identity store, the notification
//     pipeline and all authorship checks are keyed by it. At most one
//     authoritative User per StudentID exists in memory at a time; any other
//     copy sharing the StudentID is a disposable view and must not be read
//     for posts or notifications.
//
// PASSWORD FIELDS:
// Salt and PasswordHash hold the base64-encoded PBKDF2 salt and derived key
// (see internal/auth). The plaintext password is never stored or logged,
// which is why both fields carry `json:"-"` — they must not leak through
// any API response that serializes a User.
//
// PostIDs is a back-reference list: posts are OWNED by the forum post store;
// a user only remembers which post ids it authored, in publish order.
// Notifications are owned by the user and are append-only — the sole later
// mutation is flipping the Read flag.
type User struct {
	ID           string    `json:"id"`
	Kind         UserKind  `json:"kind"`
	StudentID    string    `json:"studentId"`
	Nickname     string    `json:"nickname"`
	AvatarPath   string    `json:"avatarPath"`
	Salt         string    `json:"-"`
	PasswordHash string    `json:"-"`
	RegisteredAt time.Time `json:"registeredAt"`

	PostIDs       []string        `json:"postIds,omitempty"`
	Notifications []*Notification `json:"notifications,omitempty"`
}

// AddPostRef appends a post id to the user's authored-post back-references.
// It records the id only — the post itself lives in the forum post store.
func (u *User) AddPostRef(postID string) {
	if postID == "" {
		return
	}
	u.PostIDs = append(u.PostIDs, postID)
}

// NotificationCount reports how many notifications the user has without
// exposing the underlying slice.
func (u *User) NotificationCount() int {
	return len(u.Notifications)
}

// NotificationSnapshot returns a copy of the notification list.
// Renderers should take a fresh snapshot on every refresh rather than
// holding on to the slice across operations.
func (u *User) NotificationSnapshot() []*Notification {
	out := make([]*Notification, len(u.Notifications))
	copy(out, u.Notifications)
	return out
}

// Clone returns a detached deep copy: the post-reference list and the
// notification list share no storage with the original. Persistence
// snapshots serialize clones, so gateway workers never read a record the
// identity store is still mutating under its lock.
func (u *User) Clone() *User {
	out := *u
	if u.PostIDs != nil {
		out.PostIDs = append([]string(nil), u.PostIDs...)
	}
	if u.Notifications != nil {
		out.Notifications = make([]*Notification, len(u.Notifications))
		for i, n := range u.Notifications {
			if n != nil {
				out.Notifications[i] = n.Clone()
			}
		}
	}
	return &out
}

// UpdateProfile changes the mutable display fields. The stable key and the
// credential fields are untouched.
func (u *User) UpdateProfile(nickname, avatarPath string) {
	if nickname != "" {
		u.Nickname = nickname
	}
	if avatarPath != "" {
		u.AvatarPath = avatarPath
	}
}
