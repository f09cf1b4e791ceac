package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/campus-forum/internal/apperror"
	"github.com/sakif/campus-forum/internal/auth"
	"github.com/sakif/campus-forum/internal/forum"
	"github.com/sakif/campus-forum/internal/model"
)

// PostHandler exposes the post store's operations and ranked views.
//
// PLAIN-DATA BOUNDARY:
// Every response is a postView / LikeResult / comment — copies built for
// the response, so the presentation side can never corrupt the live
// collection. Anonymization happens HERE: internal consumers see the real
// author key, display consumers get the anonymized label.
type PostHandler struct {
	posts  *forum.Service
	logger *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(posts *forum.Service, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// postView is the display shape of a post. AuthorID is blanked and the
// label substituted for anonymous posts.
type postView struct {
	ID           string             `json:"id"`
	Author       string             `json:"author"`
	Title        string             `json:"title"`
	Body         string             `json:"body"`
	Category     model.PostCategory `json:"category"`
	Anonymous    bool               `json:"anonymous"`
	PublishedAt  string             `json:"publishedAt"`
	Views        int                `json:"views"`
	LikeCount    int                `json:"likeCount"`
	CommentCount int                `json:"commentCount"`
	HotScore     float64            `json:"hotScore"`
}

func toView(p *model.Post) postView {
	author := p.AuthorID
	if p.Anonymous() {
		author = model.AnonymousAuthorLabel
	}
	published := ""
	if !p.PublishedAt.IsZero() {
		published = p.PublishedAt.Format("2006-01-02 15:04:05")
	}
	return postView{
		ID:           p.ID,
		Author:       author,
		Title:        p.Title,
		Body:         p.Body,
		Category:     p.Category,
		Anonymous:    p.Anonymous(),
		PublishedAt:  published,
		Views:        p.Views,
		LikeCount:    p.LikeCount(),
		CommentCount: p.CommentCount(),
		HotScore:     p.HotScore(),
	}
}

func toViews(posts []*model.Post) []postView {
	out := make([]postView, 0, len(posts))
	for _, p := range posts {
		out = append(out, toView(p))
	}
	return out
}

// HandleList returns the visible posts under the active sort strategy and
// search keyword.
//
// HTTP: GET /api/posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toViews(h.posts.VisiblePosts()))
}

// HandleSearch sets the active keyword and returns the matching posts.
//
// HTTP: GET /api/posts/search?q=keyword
func (h *PostHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, toViews(h.posts.SearchPosts(keyword)))
}

// HandleHot returns posts whose hot score exceeds the threshold.
//
// HTTP: GET /api/posts/hot
func (h *PostHandler) HandleHot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toViews(h.posts.HotPosts()))
}

// HandleByCategory filters by category tag.
//
// HTTP: GET /api/posts/category/{category}
func (h *PostHandler) HandleByCategory(w http.ResponseWriter, r *http.Request) {
	category := model.PostCategory(r.PathValue("category"))
	writeJSON(w, http.StatusOK, toViews(h.posts.PostsByCategory(category)))
}

// HandleMine returns the authenticated user's own posts, anonymous ones
// included — authorship is retained internally.
//
// HTTP: GET /api/posts/mine (behind RequireAuth)
func (h *PostHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	studentID, _ := auth.StudentIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, toViews(h.posts.PostsByAuthor(studentID)))
}

// HandleGet returns one post with its comments.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, ok := h.posts.Get(r.PathValue("id"))
	if !ok {
		writeError(w, apperror.NotFound("post", r.PathValue("id")))
		return
	}

	writeJSON(w, http.StatusOK, struct {
		postView
		Comments []*model.Comment `json:"comments"`
	}{toView(post), post.Comments})
}

// HandleCreate publishes a new post authored by the authenticated user.
//
// HTTP: POST /api/posts (behind RequireAuth)
// BODY: {"title": "...", "body": "...", "category": "learning", "anonymous": false}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	studentID, _ := auth.StudentIDFromContext(r.Context())

	var req struct {
		Title     string             `json:"title"`
		Body      string             `json:"body"`
		Category  model.PostCategory `json:"category"`
		Anonymous bool               `json:"anonymous"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if req.Title == "" {
		writeError(w, apperror.ValidationFailed("title", "post title is required"))
		return
	}

	post := model.NewPost("", studentID, req.Title, req.Body, req.Category)
	if req.Anonymous {
		post.PublishAnonymously()
	}

	if err := h.posts.CreatePost(post); err != nil {
		h.logger.Error("creating post",
			slog.String("author", studentID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	// Re-read through the store: the insert handed ownership of the post to
	// the forum service, so the response renders a detached copy.
	created, _ := h.posts.Get(post.ID)
	writeJSON(w, http.StatusCreated, toView(created))
}

// HandleToggleLike flips the caller's like on a post.
//
// HTTP: POST /api/posts/{id}/like (behind RequireAuth)
// RESPONSE: {"liked": true, "likeCount": 5}
//
// An unknown post id yields the neutral {"liked": false, "likeCount": 0}
// rather than an error — the toggle is a no-op.
func (h *PostHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	studentID, _ := auth.StudentIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.posts.ToggleLike(r.PathValue("id"), studentID))
}

// HandleAddComment appends a comment (optionally threaded) to a post.
//
// HTTP: POST /api/posts/{id}/comments (behind RequireAuth)
// BODY: {"body": "...", "parentId": ""}
func (h *PostHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	studentID, _ := auth.StudentIDFromContext(r.Context())

	var req struct {
		Body     string `json:"body"`
		ParentID string `json:"parentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if req.Body == "" {
		writeError(w, apperror.ValidationFailed("body", "comment body is required"))
		return
	}

	comment := &model.Comment{
		AuthorID: studentID,
		ParentID: req.ParentID,
		Body:     req.Body,
	}

	stored, ok := h.posts.AddComment(r.PathValue("id"), comment)
	if !ok {
		writeError(w, apperror.NotFound("post", r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// HandleIncrementView bumps a post's view counter.
//
// HTTP: POST /api/posts/{id}/view
// RESPONSE: {"views": 42}
func (h *PostHandler) HandleIncrementView(w http.ResponseWriter, r *http.Request) {
	views := h.posts.IncrementView(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]int{"views": views})
}

// HandleSetStrategies swaps the active sort/search strategies and keyword.
//
// HTTP: PUT /api/posts/strategies
// BODY: {"sort": "hot", "search": "title", "keyword": ""}
//
// Unknown names fall back to the defaults (time sort, title search); a
// blank keyword clears the search filter.
func (h *PostHandler) HandleSetStrategies(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sort    string `json:"sort"`
		Search  string `json:"search"`
		Keyword string `json:"keyword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	h.posts.SetSortStrategy(forum.SortStrategyByName(req.Sort))
	h.posts.SetSearchStrategy(forum.SearchStrategyByName(req.Search))
	h.posts.SetSearchKeyword(req.Keyword)

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
