// Package repository defines the persistence gateway interface.
//
// The core treats persistence as an external collaborator: every mutating
// operation that changes persisted-relevant state calls SaveUsers/SavePosts
// afterwards, best-effort. A failed save is logged and ignored — the
// in-memory state stays authoritative for the rest of the process.
//
// Snapshot model: Save* always receives the FULL collection and replaces
// whatever was stored before. There is no per-row CRUD at this boundary;
// the domain services own the live collections in memory.
package repository

import (
	"context"

	"github.com/sakif/campus-forum/internal/model"
)

// Gateway loads and saves the two persisted collections.
//
// Implementations must tolerate being called from background worker
// goroutines (see internal/tasks) — the sqlite implementation serializes
// through database/sql's pool; test fakes guard their slices with a mutex
// where needed.
type Gateway interface {
	LoadUsers(ctx context.Context) ([]*model.User, error)
	SaveUsers(ctx context.Context, users []*model.User) error
	LoadPosts(ctx context.Context) ([]*model.Post, error)
	SavePosts(ctx context.Context, posts []*model.Post) error
}
