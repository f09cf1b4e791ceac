package model

import (
	"strings"
	"time"
)

// PostStatus is the visibility state of a post.
//
// STATE MACHINE (one-way, no reverse transitions):
//
//	Draft → Published
//	Draft → PublishedAnonymous
//
// An anonymous post keeps its real AuthorID internally — notification routing
// and "my posts" views still work — but display contexts must use
// DisplayAuthor, which hides the identity.
type PostStatus string

const (
	StatusDraft              PostStatus = "draft"
	StatusPublished          PostStatus = "published"
	StatusPublishedAnonymous PostStatus = "published_anonymous"
)

// AnonymousAuthorLabel is shown in place of the author for anonymous posts.
const AnonymousAuthorLabel = "匿名用户"

// PostCategory classifies a post for filtered listing.
type PostCategory string

const (
	CategoryLearning   PostCategory = "learning"
	CategoryCampusLife PostCategory = "campus_life"
	CategorySecondHand PostCategory = "second_hand"
	CategoryActivity   PostCategory = "activity"
	CategoryQnA        PostCategory = "qna"
	CategoryEmployment PostCategory = "employment"
)

// Post is a forum post. Posts are owned by the forum post store; users hold
// only id back-references.
//
// MUTABLE COUNTERS:
// Views only moves forward (IncrementViews adds exactly 1). The liker set
// only changes via ToggleLike — membership implies "liked", its size is the
// like count. There is no retroactive decrease other than toggling a like
// off again.
//
// The likers map and the comment slice are NOT safe for concurrent mutation;
// the forum service serializes all post mutations behind its own lock.
type Post struct {
	ID          string       `json:"id"`
	AuthorID    string       `json:"authorId"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	Category    PostCategory `json:"category"`
	Status      PostStatus   `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	PublishedAt time.Time    `json:"publishedAt"`
	Views       int          `json:"views"`

	likers   map[string]struct{}
	Comments []*Comment `json:"comments,omitempty"`
}

// NewPost creates a Draft post. The caller publishes it (normally or
// anonymously) before handing it to the forum service.
func NewPost(id, authorID, title, body string, category PostCategory) *Post {
	return &Post{
		ID:        id,
		AuthorID:  authorID,
		Title:     strings.TrimSpace(title),
		Body:      body,
		Category:  category,
		Status:    StatusDraft,
		CreatedAt: time.Now(),
	}
}

// Publish transitions Draft → Published. Returns false if the post has
// already left Draft (transitions are one-way).
func (p *Post) Publish() bool {
	return p.transition(StatusPublished)
}

// PublishAnonymously transitions Draft → PublishedAnonymous.
// The real AuthorID is retained internally.
func (p *Post) PublishAnonymously() bool {
	return p.transition(StatusPublishedAnonymous)
}

func (p *Post) transition(to PostStatus) bool {
	if p.Status != StatusDraft {
		return false
	}
	p.Status = to
	if p.PublishedAt.IsZero() {
		p.PublishedAt = time.Now()
	}
	return true
}

// Published reports whether the post has left Draft and is visible.
func (p *Post) Published() bool {
	return p.Status == StatusPublished || p.Status == StatusPublishedAnonymous
}

// Anonymous reports whether the author identity is hidden in display contexts.
func (p *Post) Anonymous() bool {
	return p.Status == StatusPublishedAnonymous
}

// DisplayAuthor returns the author label for display contexts: the supplied
// nickname for normal posts, the anonymized label for anonymous ones.
// Internal consumers (notification routing, "my posts") read AuthorID instead.
func (p *Post) DisplayAuthor(nickname string) string {
	if p.Anonymous() {
		return AnonymousAuthorLabel
	}
	if nickname == "" {
		return p.AuthorID
	}
	return nickname
}

// ToggleLike flips userID's membership in the liker set and reports the
// resulting liked state. Calling it twice is an involution — the post is
// back in its original state.
func (p *Post) ToggleLike(userID string) bool {
	if p.likers == nil {
		p.likers = make(map[string]struct{})
	}
	if _, ok := p.likers[userID]; ok {
		delete(p.likers, userID)
		return false
	}
	p.likers[userID] = struct{}{}
	return true
}

// LikedBy reports whether userID is in the liker set.
func (p *Post) LikedBy(userID string) bool {
	_, ok := p.likers[userID]
	return ok
}

// LikeCount is the size of the liker set.
func (p *Post) LikeCount() int {
	return len(p.likers)
}

// Likers returns the liker keys as a slice (order unspecified).
// Used by the persistence gateway when snapshotting posts.
func (p *Post) Likers() []string {
	out := make([]string, 0, len(p.likers))
	for k := range p.likers {
		out = append(out, k)
	}
	return out
}

// SetLikers replaces the liker set wholesale. Used when rehydrating a post
// from the persistence gateway.
func (p *Post) SetLikers(userIDs []string) {
	p.likers = make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			p.likers[id] = struct{}{}
		}
	}
}

// Clone returns a detached deep copy: the liker set and comment list share
// no storage with the original. Read views and persistence snapshots hand
// out clones, so no goroutine ever holds a post the forum service is still
// mutating under its lock.
func (p *Post) Clone() *Post {
	out := *p
	if p.likers != nil {
		out.likers = make(map[string]struct{}, len(p.likers))
		for k := range p.likers {
			out.likers[k] = struct{}{}
		}
	}
	if p.Comments != nil {
		out.Comments = make([]*Comment, len(p.Comments))
		for i, c := range p.Comments {
			cc := *c
			out.Comments[i] = &cc
		}
	}
	return &out
}

// AddComment appends a comment. Comments are owned by the post and are only
// destroyed with it.
func (p *Post) AddComment(c *Comment) {
	if c == nil {
		return
	}
	p.Comments = append(p.Comments, c)
}

// CommentCount returns the number of comments on the post.
func (p *Post) CommentCount() int {
	return len(p.Comments)
}

// IncrementViews bumps the monotonic view counter by exactly 1 and returns
// the new value.
func (p *Post) IncrementViews() int {
	p.Views++
	return p.Views
}

// HotScore combines the engagement counters into the ranking value used by
// the hot-score sort strategy and the hot-posts view.
//
// The weights are a tunable policy, not a law — any monotonic combination
// works. We use views*1 + likes*2 + comments*3.
func (p *Post) HotScore() float64 {
	return float64(p.Views) + 2*float64(p.LikeCount()) + 3*float64(p.CommentCount())
}

// Comment is a single comment on a post, optionally threaded under a parent
// comment via ParentID (empty = top-level).
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	ParentID  string    `json:"parentId,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reply reports whether the comment is threaded under another comment.
func (c *Comment) Reply() bool {
	return c.ParentID != ""
}
