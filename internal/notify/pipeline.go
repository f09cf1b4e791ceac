// Package notify converts domain events into delivered notifications.
//
// OBSERVER MODEL:
// Interested users are registered as observers of an entity (a post,
// today) in an explicit subscription table — entity id → set of observer
// keys — rather than as user lists hanging off the entity objects. That
// keeps posts and users from owning references to each other; an entity
// only needs its id to be observable.
//
// DELIVERY RULES, in order:
//  1. An observer whose key equals the acting user's key is skipped
//     (no self-notification).
//  2. The notification title comes from a fixed per-event-kind lookup;
//     the content is the event's rendered message.
//  3. If the observer's canonical record already holds a notification with
//     identical content stamped within one second of the new one, the new
//     delivery is suppressed. This absorbs double-delivery from retried
//     operations without keeping a delivery log.
//  4. Surviving notifications are appended to the observer's CANONICAL
//     record in the identity store — never to a caller-held copy.
//
// A missing canonical record (observer unknown to the identity store) is a
// warning, not an error: that delivery is dropped and the event continues
// to the remaining observers.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/campus-forum/internal/identity"
	"github.com/sakif/campus-forum/internal/model"
)

// DedupeWindow is the span within which two notifications with identical
// content to the same observer collapse into one.
const DedupeWindow = time.Second

// DeliverResult says what happened to a single delivery attempt.
type DeliverResult int

const (
	// Delivered — appended to the canonical record.
	Delivered DeliverResult = iota
	// Suppressed — duplicate content inside the dedupe window.
	Suppressed
	// Dropped — the target has no canonical record.
	Dropped
)

// Pipeline owns the subscription table and delivers events.
// Construct once at startup and inject wherever events are raised.
type Pipeline struct {
	mu        sync.Mutex
	observers map[string]map[string]struct{} // entity id → observer keys

	store  *identity.Store
	logger *slog.Logger
}

// New creates a Pipeline delivering into the given identity store.
func New(store *identity.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		observers: make(map[string]map[string]struct{}),
		store:     store,
		logger:    logger,
	}
}

// Subscribe registers studentID as an observer of the entity. Idempotent —
// subscribing twice leaves a single subscription.
func (p *Pipeline) Subscribe(entityID, studentID string) {
	if entityID == "" || studentID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.observers[entityID]
	if !ok {
		set = make(map[string]struct{})
		p.observers[entityID] = set
	}
	set[studentID] = struct{}{}
}

// Observers returns the observer keys for an entity (order unspecified).
func (p *Pipeline) Observers(entityID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.observers[entityID]))
	for k := range p.observers[entityID] {
		out = append(out, k)
	}
	return out
}

// Publish delivers the event to every observer of the entity, applying the
// delivery rules described in the package comment. It returns the number of
// notifications actually appended.
func (p *Pipeline) Publish(entityID string, ev model.Event) int {
	delivered := 0
	for _, observer := range p.Observers(entityID) {
		if observer == ev.ActorID {
			// no self-notification
			continue
		}

		// Each observer gets its own Notification instance — the read flag
		// must flip independently per user.
		n := model.NotificationFromEvent(ev)
		if n == nil {
			// event kind has no notification title — nothing to deliver
			return delivered
		}

		switch p.Deliver(observer, n) {
		case Delivered:
			delivered++
		case Suppressed:
			p.logger.Debug("duplicate notification suppressed",
				slog.String("observer", observer),
				slog.String("title", n.Title),
			)
		case Dropped:
			p.logger.Warn("notification dropped: no canonical record",
				slog.String("observer", observer),
				slog.String("entityID", entityID),
			)
		}
	}
	return delivered
}

// Deliver appends n to the canonical record for studentID, unless the record
// already holds identical content inside the dedupe window.
//
// The duplicate check and the append run under a single identity-store
// mutation, so a concurrent delivery of the same content cannot slip in
// between the check and the append.
func (p *Pipeline) Deliver(studentID string, n *model.Notification) DeliverResult {
	if n == nil {
		return Dropped
	}

	result := Dropped
	p.store.ApplyMutation(studentID, func(canonical *model.User) {
		for _, existing := range canonical.Notifications {
			if existing == nil || existing.Content != n.Content {
				continue
			}
			d := n.At.Sub(existing.At)
			if d < 0 {
				d = -d
			}
			if d <= DedupeWindow {
				result = Suppressed
				return
			}
		}
		canonical.Notifications = append(canonical.Notifications, n)
		result = Delivered
	})
	return result
}
