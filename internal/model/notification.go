package model

import (
	"time"

	"github.com/rs/xid"
)

// EventType identifies the kind of domain event that produced a notification.
type EventType string

const (
	// EventCommentCreated fires when a top-level comment is added to a post.
	EventCommentCreated EventType = "comment_created"
	// EventReplyCreated fires when a comment is threaded under another comment.
	EventReplyCreated EventType = "reply_created"
)

// Event is a transient value describing one qualifying interaction: who did
// what, rendered as a human-readable message. Events are never persisted —
// they exist only long enough for the notification pipeline to turn them
// into Notifications.
type Event struct {
	Type    EventType
	ActorID string // stable key (student id) of the acting user
	Message string
	At      time.Time
}

// NewEvent builds an Event stamped with the current time.
func NewEvent(kind EventType, actorID, message string) Event {
	return Event{
		Type:    kind,
		ActorID: actorID,
		Message: message,
		At:      time.Now(),
	}
}

// Notification is a delivered message owned by exactly one User.
// Append-only: after delivery the only mutation ever applied is marking
// it read.
type Notification struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Read    bool      `json:"read"`
	At      time.Time `json:"at"`
}

// Notification titles, keyed by event type. A fixed lookup — event kinds
// without an entry produce no notification.
var notificationTitles = map[EventType]string{
	EventCommentCreated: "新评论提醒",
	EventReplyCreated:   "新回复提醒",
}

// NewNotification creates an unread notification with a fresh id.
func NewNotification(title, content string) *Notification {
	return &Notification{
		ID:      xid.New().String(),
		Title:   title,
		Content: content,
		At:      time.Now(),
	}
}

// NotificationFromEvent converts an Event into a Notification: the title
// comes from the fixed per-kind lookup, the content is the event message.
// Returns nil for event kinds that do not notify.
func NotificationFromEvent(ev Event) *Notification {
	title, ok := notificationTitles[ev.Type]
	if !ok {
		return nil
	}
	n := NewNotification(title, ev.Message)
	n.At = ev.At
	return n
}

// MarkRead flips the read flag. Idempotent.
func (n *Notification) MarkRead() {
	n.Read = true
}

// Clone returns a detached copy. The Read flag is the one field that
// mutates after delivery, so persistence snapshots copy rather than share.
func (n *Notification) Clone() *Notification {
	out := *n
	return &out
}
