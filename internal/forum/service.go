package forum

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/campus-forum/internal/identity"
	"github.com/sakif/campus-forum/internal/model"
	"github.com/sakif/campus-forum/internal/notify"
	"github.com/sakif/campus-forum/internal/repository"
	"github.com/sakif/campus-forum/internal/tasks"
)

// HotThreshold is the minimum hot score (exclusive) for a post to appear in
// the hot-posts view.
const HotThreshold = 20.0

// LikeResult is what ToggleLike hands back to the presentation layer:
// plain data, no shared mutable state.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

// Service owns the mutable post collection and the interaction operations
// over it (create, like, comment, view), plus the ranked/filtered read
// views. One Service exists per process, constructed in the composition
// root and injected — there is no package-level instance.
//
// LOCKING:
// One mutex serializes every mutation and every read of the backing slice.
// Per-post locking would also satisfy the ordering requirements, but the
// collection is small and in-memory; global serialization keeps counter and
// comment ordering trivially consistent. Read views and persistence
// snapshots return posts CLONED under the lock — no pointer into the live
// collection ever leaves it, so handlers and gateway workers read stable
// data while mutations continue. No isolation is provided across separate
// operations — consecutive reads may observe the list before and after a
// concurrent mutation.
type Service struct {
	mu      sync.Mutex
	posts   []*model.Post
	seeded  bool
	sorter  SortStrategy
	matcher SearchStrategy
	keyword string

	session    *identity.Session
	identities *identity.Store
	pipeline   *notify.Pipeline
	gateway    repository.Gateway
	runner     *tasks.Runner
	logger     *slog.Logger
}

// NewService wires the post store to its collaborators. runner may be nil,
// in which case persistence runs synchronously on the calling goroutine
// (tests rely on this for deterministic save counts).
func NewService(
	identities *identity.Store,
	session *identity.Session,
	pipeline *notify.Pipeline,
	gateway repository.Gateway,
	runner *tasks.Runner,
	logger *slog.Logger,
) *Service {
	return &Service{
		sorter:     TimeSort{},
		matcher:    TitleKeyword{},
		identities: identities,
		session:    session,
		pipeline:   pipeline,
		gateway:    gateway,
		runner:     runner,
		logger:     logger,
	}
}

// Load installs posts previously saved through the persistence gateway.
// Called once at startup, before the service is exposed to callers.
// A non-empty load also marks the store seeded — the demo fixture only
// belongs in a store that has never held real data.
func (s *Service) Load(posts []*model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range posts {
		if p == nil || p.ID == "" {
			continue
		}
		s.posts = append(s.posts, p)
	}
	if len(s.posts) > 0 {
		s.seeded = true
	}
	s.logger.Info("post store loaded", slog.Int("posts", len(s.posts)))
}

// CreatePost inserts a post at the head of the backing store.
//
// A post still in Draft is published on the way in (normally — callers
// wanting anonymity publish the draft themselves first); a post may not be
// inserted in Draft state. Creation raises no notification: a brand-new
// post has no observers yet. The author's canonical record gets a post-id
// back-reference, and the collection is persisted best-effort.
func (s *Service) CreatePost(post *model.Post) error {
	if post == nil {
		return fmt.Errorf("forum: post must not be nil")
	}
	if post.ID == "" {
		post.ID = xid.New().String()
	}
	if !post.Published() {
		post.Publish()
	}

	s.mu.Lock()
	s.ensureSeeded()
	s.posts = append([]*model.Post{post}, s.posts...)
	s.mu.Unlock()

	// Back-reference on the canonical author record. A missing record (post
	// loaded for an unknown author) is fine — the post store owns the post.
	s.identities.ApplyMutation(post.AuthorID, func(u *model.User) {
		u.AddPostRef(post.ID)
	})

	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("author", post.AuthorID),
		slog.Bool("anonymous", post.Anonymous()),
	)

	s.persistPosts()
	return nil
}

// Get returns a detached copy of the post with the given id, or
// (nil, false).
func (s *Service) Get(postID string) (*model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(postID)
	if p == nil {
		return nil, false
	}
	return p.Clone(), true
}

// ToggleLike flips userID's membership in the post's liker set and returns
// the resulting liked flag plus the new like count.
//
// Unknown post id → neutral LikeResult{false, 0}, not an error. Toggling
// twice returns the post to its original state; a retried toggle is just a
// toggle, not a failure.
func (s *Service) ToggleLike(postID, userID string) LikeResult {
	s.mu.Lock()
	post := s.findLocked(postID)
	if post == nil {
		s.mu.Unlock()
		return LikeResult{}
	}
	liked := post.ToggleLike(userID)
	count := post.LikeCount()
	s.mu.Unlock()

	s.persistPosts()
	return LikeResult{Liked: liked, LikeCount: count}
}

// AddComment appends the comment to the post and, when an authenticated
// acting identity is available and differs from the post author, registers
// the author as an observer and raises a comment-created (or reply-created,
// for threaded comments) event through the notification pipeline.
//
// Unknown post id → (nil, false), a no-op. With no active session the
// comment is stored as-is, without any actor-keyed notification logic.
func (s *Service) AddComment(postID string, comment *model.Comment) (*model.Comment, bool) {
	if comment == nil {
		return nil, false
	}

	s.mu.Lock()
	post := s.findLocked(postID)
	if post == nil {
		s.mu.Unlock()
		return nil, false
	}

	actor, hasActor := s.session.Current()
	if hasActor {
		comment.AuthorID = actor.StudentID
	}
	if comment.ID == "" {
		comment.ID = xid.New().String()
	}
	comment.PostID = post.ID
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	post.AddComment(comment)

	authorID := post.AuthorID
	title := post.Title
	s.mu.Unlock()

	if hasActor {
		// The author observes their own post from the first interaction on.
		// Self-notification suppression in the pipeline keeps the author
		// from being notified about their own comments.
		s.pipeline.Subscribe(post.ID, authorID)

		ev := model.NewEvent(
			eventKind(comment),
			actor.StudentID,
			renderEventMessage(actor.Nickname, title, comment),
		)
		if delivered := s.pipeline.Publish(post.ID, ev); delivered > 0 {
			s.persistUsers()
		}
	}

	s.persistPosts()
	return comment, true
}

// eventKind classifies the interaction: threaded comments raise reply
// events, top-level ones raise comment events.
func eventKind(c *model.Comment) model.EventType {
	if c.Reply() {
		return model.EventReplyCreated
	}
	return model.EventCommentCreated
}

// renderEventMessage builds the human-readable notification content: it
// names the actor and the target context.
func renderEventMessage(actorName, postTitle string, c *model.Comment) string {
	if c.Reply() {
		return fmt.Sprintf("%s 回复了你在《%s》下的评论：%s", actorName, postTitle, c.Body)
	}
	return fmt.Sprintf("%s 评论了你的帖子《%s》：%s", actorName, postTitle, c.Body)
}

// IncrementView bumps the post's view counter by exactly 1 and persists the
// post collection. Every call persists — no batching; durability is chosen
// over throughput here.
//
// Unknown post id → 0, a no-op with no persistence call.
func (s *Service) IncrementView(postID string) int {
	s.mu.Lock()
	post := s.findLocked(postID)
	if post == nil {
		s.mu.Unlock()
		return 0
	}
	views := post.IncrementViews()
	s.mu.Unlock()

	s.persistPosts()
	return views
}

// SetSortStrategy swaps the active sort strategy. nil restores the default
// time sort.
func (s *Service) SetSortStrategy(strategy SortStrategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strategy == nil {
		strategy = TimeSort{}
	}
	s.sorter = strategy
}

// SetSearchStrategy swaps the active search strategy. nil restores the
// default title-keyword search.
func (s *Service) SetSearchStrategy(strategy SearchStrategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strategy == nil {
		strategy = TitleKeyword{}
	}
	s.matcher = strategy
}

// SetSearchKeyword sets (or, when blank, clears) the active search keyword
// that VisiblePosts filters by.
func (s *Service) SetSearchKeyword(keyword string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyword = strings.TrimSpace(keyword)
}

// VisiblePosts returns the collection transformed by the active sort
// strategy — filtered down by the active search strategy first when a
// search keyword is set. The returned slice is the caller's to keep.
func (s *Service) VisiblePosts() []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := s.sortedLocked()
	if s.keyword != "" {
		posts = s.matcher.Search(posts, s.keyword)
	}
	return posts
}

// SearchPosts sets the active keyword and returns the matching posts under
// the active sort order.
func (s *Service) SearchPosts(keyword string) []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keyword = strings.TrimSpace(keyword)
	posts := s.sortedLocked()
	if s.keyword == "" {
		return posts
	}
	return s.matcher.Search(posts, s.keyword)
}

// PostsByCategory returns the posts in the given category, sorted by the
// active strategy.
func (s *Service) PostsByCategory(category model.PostCategory) []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Post, 0)
	for _, p := range s.sortedLocked() {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// PostsByAuthor returns the author's posts, newest first, regardless of the
// active sort strategy. Anonymous posts are included — the author key is
// retained internally, so "my posts" still shows them to their author.
func (s *Service) PostsByAuthor(studentID string) []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureSeeded()
	out := make([]*model.Post, 0)
	for _, p := range s.posts {
		if p.AuthorID == studentID {
			out = append(out, p.Clone())
		}
	}
	TimeSort{}.Sort(out)
	return out
}

// HotPosts returns the posts whose hot score exceeds HotThreshold, sorted
// by the active strategy.
func (s *Service) HotPosts() []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Post, 0)
	for _, p := range s.sortedLocked() {
		if p.HotScore() > HotThreshold {
			out = append(out, p)
		}
	}
	return out
}

// Refresh re-reads the full sorted collection. In this in-memory design it
// is equivalent to VisiblePosts without the search filter.
func (s *Service) Refresh() []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Snapshot returns detached deep copies of the collection in insertion
// order, cloned under the lock. Persistence workers serialize the snapshot
// while interactions keep mutating the live posts.
func (s *Service) Snapshot() []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return out
}

// sortedLocked clones the published posts, seeds the store on first read if
// empty, and applies the active sort strategy to the clones. Callers hold
// s.mu.
func (s *Service) sortedLocked() []*model.Post {
	s.ensureSeeded()

	out := make([]*model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if p.Published() {
			out = append(out, p.Clone())
		}
	}
	s.sorter.Sort(out)
	return out
}

// findLocked scans the backing store for a post id. Callers hold s.mu.
func (s *Service) findLocked(postID string) *model.Post {
	if postID == "" {
		return nil
	}
	s.ensureSeeded()
	for _, p := range s.posts {
		if p.ID == postID {
			return p
		}
	}
	return nil
}

// persistPosts saves the post collection through the gateway, best-effort.
// With a runner the save runs on a worker goroutine (fire-and-forget);
// without one it runs synchronously. A failed save is logged and the
// in-memory state stays authoritative.
func (s *Service) persistPosts() {
	snapshot := s.Snapshot()
	save := func() {
		if err := s.gateway.SavePosts(context.Background(), snapshot); err != nil {
			s.logger.Warn("persisting posts failed (keeping in-memory state)",
				slog.String("error", err.Error()),
			)
		}
	}
	if s.runner != nil {
		s.runner.Submit(save)
		return
	}
	save()
}

// persistUsers saves the canonical user records (notification deliveries
// change them), best-effort, same rules as persistPosts.
func (s *Service) persistUsers() {
	snapshot := s.identities.All()
	save := func() {
		if err := s.gateway.SaveUsers(context.Background(), snapshot); err != nil {
			s.logger.Warn("persisting users failed (keeping in-memory state)",
				slog.String("error", err.Error()),
			)
		}
	}
	if s.runner != nil {
		s.runner.Submit(save)
		return
	}
	save()
}
