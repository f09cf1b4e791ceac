package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/campus-forum/internal/auth"
	"github.com/sakif/campus-forum/internal/model"
)

// postFixture loads one published post into the harness's forum service and
// registers its author, bypassing seeding.
func postFixture(t *testing.T, h *harness, id, authorID, title string) {
	t.Helper()
	h.store.Upsert(&model.User{ID: "id-" + authorID, StudentID: authorID, Nickname: authorID})
	p := model.NewPost(id, authorID, title, "body", model.CategoryLearning)
	p.Publish()
	p.PublishedAt = time.Now()
	h.forumSvc.Load([]*model.Post{p})
}

func TestHandleList(t *testing.T) {
	h := newHarness(t)
	postFixture(t, h, "p1", "20250009", "Java多线程学习心得")

	rr := httptest.NewRecorder()
	h.posts.HandleList(rr, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var views []map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&views))
	if assert.Len(t, views, 1) {
		assert.Equal(t, "p1", views[0]["id"])
		assert.Equal(t, "Java多线程学习心得", views[0]["title"])
	}
}

func TestHandleGet(t *testing.T) {
	h := newHarness(t)
	postFixture(t, h, "p1", "20250009", "标题")

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/posts/p1", nil)
		req.SetPathValue("id", "p1")
		rr := httptest.NewRecorder()
		h.posts.HandleGet(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var view map[string]any
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
		assert.Equal(t, "p1", view["id"])
		assert.Contains(t, view, "comments")
	})

	t.Run("missing is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/posts/nope", nil)
		req.SetPathValue("id", "nope")
		rr := httptest.NewRecorder()
		h.posts.HandleGet(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandleCreate(t *testing.T) {
	t.Run("normal post shows its author", func(t *testing.T) {
		h := newHarness(t)
		postFixture(t, h, "seed", "20250009", "seed")
		protected := auth.RequireAuth(h.tokens)(http.HandlerFunc(h.posts.HandleCreate))

		req := h.authedRequest(t, http.MethodPost, "/api/posts",
			`{"title":"新帖子","body":"内容","category":"qna"}`)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var view map[string]any
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
		assert.Equal(t, "20250001", view["author"])
		assert.Equal(t, false, view["anonymous"])
	})

	t.Run("anonymous post hides its author", func(t *testing.T) {
		h := newHarness(t)
		postFixture(t, h, "seed", "20250009", "seed")
		protected := auth.RequireAuth(h.tokens)(http.HandlerFunc(h.posts.HandleCreate))

		req := h.authedRequest(t, http.MethodPost, "/api/posts",
			`{"title":"匿名吐槽","body":"内容","category":"campus_life","anonymous":true}`)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var view map[string]any
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
		assert.Equal(t, model.AnonymousAuthorLabel, view["author"])
		assert.Equal(t, true, view["anonymous"])
		assert.NotContains(t, rr.Body.String(), "20250001",
			"the real author key must not leak through the display view")
	})

	t.Run("missing title is a validation error", func(t *testing.T) {
		h := newHarness(t)
		protected := auth.RequireAuth(h.tokens)(http.HandlerFunc(h.posts.HandleCreate))

		req := h.authedRequest(t, http.MethodPost, "/api/posts", `{"body":"no title"}`)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unauthenticated is 401", func(t *testing.T) {
		h := newHarness(t)
		protected := auth.RequireAuth(h.tokens)(http.HandlerFunc(h.posts.HandleCreate))

		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, jsonRequest(http.MethodPost, "/api/posts", `{"title":"t"}`))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestHandleToggleLike(t *testing.T) {
	h := newHarness(t)
	postFixture(t, h, "p1", "20250009", "标题")
	protected := auth.RequireAuth(h.tokens)(http.HandlerFunc(h.posts.HandleToggleLike))

	toggle := func() map[string]any {
		req := h.authedRequest(t, http.MethodPost, "/api/posts/p1/like", "")
		req.SetPathValue("id", "p1")
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)

		var res map[string]any
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		return res
	}

	first := toggle()
	assert.Equal(t, true, first["liked"])
	assert.Equal(t, float64(1), first["likeCount"])

	second := toggle()
	assert.Equal(t, false, second["liked"])
	assert.Equal(t, float64(0), second["likeCount"])
}

func TestHandleAddComment(t *testing.T) {
	h := newHarness(t)
	postFixture(t, h, "p1", "20250009", "标题")
	protected := auth.RequireAuth(h.tokens)(http.HandlerFunc(h.posts.HandleAddComment))

	t.Run("stores the comment", func(t *testing.T) {
		req := h.authedRequest(t, http.MethodPost, "/api/posts/p1/comments",
			`{"body":"支持一下！"}`)
		req.SetPathValue("id", "p1")
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var c model.Comment
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&c))
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, "p1", c.PostID)
		assert.Equal(t, "20250001", c.AuthorID)
	})

	t.Run("empty body rejected", func(t *testing.T) {
		req := h.authedRequest(t, http.MethodPost, "/api/posts/p1/comments", `{"body":""}`)
		req.SetPathValue("id", "p1")
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing post is 404", func(t *testing.T) {
		req := h.authedRequest(t, http.MethodPost, "/api/posts/nope/comments", `{"body":"x"}`)
		req.SetPathValue("id", "nope")
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandleIncrementView(t *testing.T) {
	h := newHarness(t)
	postFixture(t, h, "p1", "20250009", "标题")

	req := httptest.NewRequest(http.MethodPost, "/api/posts/p1/view", nil)
	req.SetPathValue("id", "p1")
	rr := httptest.NewRecorder()
	h.posts.HandleIncrementView(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var res map[string]int
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, 1, res["views"])
}

func TestHandleSearch(t *testing.T) {
	h := newHarness(t)
	h.store.Upsert(&model.User{ID: "id-a", StudentID: "a", Nickname: "a"})
	p1 := model.NewPost("p1", "a", "Java多线程学习心得", "b", model.CategoryLearning)
	p1.Publish()
	p1.PublishedAt = time.Now()
	p2 := model.NewPost("p2", "a", "校园篮球比赛通知", "b", model.CategoryCampusLife)
	p2.Publish()
	p2.PublishedAt = time.Now()
	h.forumSvc.Load([]*model.Post{p1, p2})

	rr := httptest.NewRecorder()
	h.posts.HandleSearch(rr, httptest.NewRequest(http.MethodGet, "/api/posts/search?q=java", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var views []map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&views))
	if assert.Len(t, views, 1) {
		assert.Equal(t, "p1", views[0]["id"])
	}
}

func TestHandleSetStrategies(t *testing.T) {
	h := newHarness(t)
	postFixture(t, h, "p1", "20250009", "标题")

	rr := httptest.NewRecorder()
	h.posts.HandleSetStrategies(rr, jsonRequest(http.MethodPut, "/api/posts/strategies",
		`{"sort":"hot","search":"title","keyword":""}`))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleByCategory(t *testing.T) {
	h := newHarness(t)
	h.store.Upsert(&model.User{ID: "id-a", StudentID: "a", Nickname: "a"})
	p1 := model.NewPost("p1", "a", "one", "b", model.CategoryQnA)
	p1.Publish()
	p1.PublishedAt = time.Now()
	p2 := model.NewPost("p2", "a", "two", "b", model.CategoryLearning)
	p2.Publish()
	p2.PublishedAt = time.Now()
	h.forumSvc.Load([]*model.Post{p1, p2})

	req := httptest.NewRequest(http.MethodGet, "/api/posts/category/qna", nil)
	req.SetPathValue("category", "qna")
	rr := httptest.NewRecorder()
	h.posts.HandleByCategory(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var views []map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&views))
	if assert.Len(t, views, 1) {
		assert.Equal(t, "p1", views[0]["id"])
	}
}

func TestHandleMine_IncludesAnonymousPosts(t *testing.T) {
	h := newHarness(t)
	h.store.Upsert(&model.User{ID: "id-1", StudentID: "20250001", Nickname: "alice"})
	p := model.NewPost("p1", "20250001", "匿名帖", "b", model.CategoryCampusLife)
	p.PublishAnonymously()
	p.PublishedAt = time.Now()
	h.forumSvc.Load([]*model.Post{p})

	protected := auth.RequireAuth(h.tokens)(http.HandlerFunc(h.posts.HandleMine))
	req := h.authedRequest(t, http.MethodGet, "/api/posts/mine", "")
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var views []map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&views))
	assert.Len(t, views, 1, "anonymous posts still appear in their author's own list")
}
