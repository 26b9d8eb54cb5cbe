package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/blogflow/internal/blog"
	"github.com/hitoshi/blogflow/internal/model"
)

// --- モック定義 ---

type mockBlogService struct {
	listFn       func(ctx context.Context, filter model.BlogFilter, page model.Page, viewer *model.AuthContext) (*blog.ListResult, error)
	getFn        func(ctx context.Context, identifier string, viewer *model.AuthContext) (*model.Blog, error)
	createFn     func(ctx context.Context, author *model.AuthContext, in blog.CreateInput) (*model.Blog, error)
	updateFn     func(ctx context.Context, id string, viewer *model.AuthContext, in blog.UpdateInput) (*model.Blog, error)
	setStatusFn  func(ctx context.Context, id string, in blog.StatusInput) (*model.Blog, error)
	deleteFn     func(ctx context.Context, id string, viewer *model.AuthContext) error
	toggleLikeFn func(ctx context.Context, id string, viewer *model.AuthContext) (*model.LikeResult, error)
	trendingFn   func(ctx context.Context, limit int) ([]*model.Blog, error)
	feedFn       func(ctx context.Context) ([]*model.Blog, error)
}

func (m *mockBlogService) List(ctx context.Context, filter model.BlogFilter, page model.Page, viewer *model.AuthContext) (*blog.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter, page, viewer)
	}
	return &blog.ListResult{Blogs: []*model.Blog{}, Pagination: page.Paginate(0)}, nil
}

func (m *mockBlogService) Get(ctx context.Context, identifier string, viewer *model.AuthContext) (*model.Blog, error) {
	if m.getFn != nil {
		return m.getFn(ctx, identifier, viewer)
	}
	return nil, model.NewBlogNotFoundError()
}

func (m *mockBlogService) Create(ctx context.Context, author *model.AuthContext, in blog.CreateInput) (*model.Blog, error) {
	if m.createFn != nil {
		return m.createFn(ctx, author, in)
	}
	return nil, nil
}

func (m *mockBlogService) Update(ctx context.Context, id string, viewer *model.AuthContext, in blog.UpdateInput) (*model.Blog, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, viewer, in)
	}
	return nil, nil
}

func (m *mockBlogService) SetStatus(ctx context.Context, id string, in blog.StatusInput) (*model.Blog, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, in)
	}
	return nil, nil
}

func (m *mockBlogService) Delete(ctx context.Context, id string, viewer *model.AuthContext) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, viewer)
	}
	return nil
}

func (m *mockBlogService) ToggleLike(ctx context.Context, id string, viewer *model.AuthContext) (*model.LikeResult, error) {
	if m.toggleLikeFn != nil {
		return m.toggleLikeFn(ctx, id, viewer)
	}
	return nil, nil
}

func (m *mockBlogService) Trending(ctx context.Context, limit int) ([]*model.Blog, error) {
	if m.trendingFn != nil {
		return m.trendingFn(ctx, limit)
	}
	return []*model.Blog{}, nil
}

func (m *mockBlogService) Feed(ctx context.Context) ([]*model.Blog, error) {
	if m.feedFn != nil {
		return m.feedFn(ctx)
	}
	return []*model.Blog{}, nil
}

func newTestBlogHandler(svc BlogServiceInterface) *BlogHandler {
	return NewBlogHandler(svc, blog.FeedChannel{
		Title:       "blogflow",
		Description: "latest posts",
		SiteURL:     "https://blog.example.com",
	}, ErrorConfig{})
}

func sampleBlog(id string) *model.Blog {
	published := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	return &model.Blog{
		ID:          id,
		Title:       "Hello Go",
		Content:     "<p>body</p>",
		Excerpt:     "body",
		Slug:        "hello-go",
		Status:      model.BlogStatusPublished,
		PublishedAt: &published,
		AuthorID:    "user-1",
		Author:      &model.UserSummary{ID: "user-1", Username: "alice", Name: "Alice"},
		CreatedAt:   published,
		UpdatedAt:   published,
	}
}

// --- テスト ---

func TestBlogHandler_List_ParsesFilter(t *testing.T) {
	var gotFilter model.BlogFilter
	var gotPage model.Page
	var gotViewer *model.AuthContext
	svc := &mockBlogService{
		listFn: func(ctx context.Context, filter model.BlogFilter, page model.Page, viewer *model.AuthContext) (*blog.ListResult, error) {
			gotFilter, gotPage, gotViewer = filter, page, viewer
			return &blog.ListResult{Blogs: []*model.Blog{sampleBlog("b1")}, Pagination: page.Paginate(1)}, nil
		},
	}
	h := newTestBlogHandler(svc)

	req := newRequest(http.MethodGet, "/api/blogs?category=tech&tags=Go,%20Web&tags=api&sort=popular&status=draft&featured=true&search=chi&page=3&limit=500", "")
	w := httptest.NewRecorder()
	h.List(w, withAuth(req, testUser))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body=%s)", w.Code, w.Body.String())
	}
	if gotFilter.Category != "tech" || gotFilter.Search != "chi" {
		t.Errorf("filter = %+v", gotFilter)
	}
	if strings.Join(gotFilter.Tags, ",") != "go,web,api" {
		t.Errorf("tags = %v, want [go web api]", gotFilter.Tags)
	}
	if gotFilter.Sort != model.BlogSortPopular {
		t.Errorf("sort = %q", gotFilter.Sort)
	}
	if gotFilter.Status == nil || *gotFilter.Status != model.BlogStatusDraft {
		t.Errorf("status = %v", gotFilter.Status)
	}
	if gotFilter.Featured == nil || !*gotFilter.Featured {
		t.Errorf("featured = %v", gotFilter.Featured)
	}
	if gotPage.Page != 3 || gotPage.Limit != model.MaxPageLimit {
		t.Errorf("page = %+v, limit should be capped", gotPage)
	}
	if gotViewer == nil || gotViewer.UserID != testUser.UserID {
		t.Errorf("viewer = %+v", gotViewer)
	}

	var list listEnvelope
	decodeData(t, decodeEnvelope(t, w), &list)
	var blogs []blogResponse
	if err := json.Unmarshal(list.Data, &blogs); err != nil {
		t.Fatal(err)
	}
	if len(blogs) != 1 || blogs[0].Content != "" {
		t.Errorf("list items should omit content: %+v", blogs)
	}
}

func TestBlogHandler_List_InvalidQuery(t *testing.T) {
	h := newTestBlogHandler(&mockBlogService{})

	tests := []struct {
		name  string
		query string
		field string
	}{
		{name: "unknown status", query: "status=archived", field: "status"},
		{name: "bad featured", query: "featured=maybe", field: "featured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.List(w, newRequest(http.MethodGet, "/api/blogs?"+tt.query, ""))

			env := assertError(t, w, http.StatusBadRequest, model.ErrCodeValidationFailed)
			if !hasFieldError(env.Details, tt.field) {
				t.Errorf("details = %+v", env.Details)
			}
		})
	}
}

func TestBlogHandler_Get(t *testing.T) {
	svc := &mockBlogService{
		getFn: func(ctx context.Context, identifier string, viewer *model.AuthContext) (*model.Blog, error) {
			if identifier == "hello-go" {
				b := sampleBlog("b1")
				b.IsLiked = viewer != nil
				return b, nil
			}
			return nil, model.NewBlogNotFoundError()
		},
	}
	h := newTestBlogHandler(svc)

	t.Run("by slug with content", func(t *testing.T) {
		req := withURLParams(newRequest(http.MethodGet, "/api/blogs/hello-go", ""), "identifier", "hello-go")
		w := httptest.NewRecorder()
		h.Get(w, withAuth(req, testUser))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var b blogResponse
		decodeData(t, decodeEnvelope(t, w), &b)
		if b.Content != "<p>body</p>" {
			t.Errorf("content = %q", b.Content)
		}
		if !b.IsLiked {
			t.Error("isLiked should reflect the viewer")
		}
		if b.Author == nil || b.Author.Username != "alice" {
			t.Errorf("author = %+v", b.Author)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := withURLParams(newRequest(http.MethodGet, "/api/blogs/missing", ""), "identifier", "missing")
		w := httptest.NewRecorder()
		h.Get(w, req)

		assertError(t, w, http.StatusNotFound, model.ErrCodeBlogNotFound)
	})
}

func TestBlogHandler_Create(t *testing.T) {
	var got blog.CreateInput
	var gotAuthor *model.AuthContext
	svc := &mockBlogService{
		createFn: func(ctx context.Context, author *model.AuthContext, in blog.CreateInput) (*model.Blog, error) {
			got, gotAuthor = in, author
			return sampleBlog("b1"), nil
		},
	}
	h := newTestBlogHandler(svc)

	t.Run("success", func(t *testing.T) {
		body := `{"title":"Hello Go","content":"<p>body</p>","tags":["go","web"],"status":"PENDING"}`
		w := httptest.NewRecorder()
		h.Create(w, withAuth(newRequest(http.MethodPost, "/api/blogs", body), testUser))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201 (body=%s)", w.Code, w.Body.String())
		}
		if got.Title != "Hello Go" || got.Status != model.BlogStatusPending || len(got.Tags) != 2 {
			t.Errorf("input = %+v", got)
		}
		if gotAuthor.UserID != testUser.UserID {
			t.Errorf("author = %+v", gotAuthor)
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			body  string
			field string
		}{
			{name: "title missing", body: `{"content":"x"}`, field: "title"},
			{name: "content missing", body: `{"title":"t"}`, field: "content"},
			{name: "title too long", body: `{"title":"` + strings.Repeat("a", 201) + `","content":"x"}`, field: "title"},
			{name: "too many tags", body: `{"title":"t","content":"x","tags":["a","b","c","d","e","f","g","h","i","j","k"]}`, field: "tags"},
			{name: "empty tag", body: `{"title":"t","content":"x","tags":["go",""]}`, field: "tags[1]"},
			{name: "unknown status", body: `{"title":"t","content":"x","status":"ARCHIVED"}`, field: "status"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := httptest.NewRecorder()
				h.Create(w, withAuth(newRequest(http.MethodPost, "/api/blogs", tt.body), testUser))

				env := assertError(t, w, http.StatusBadRequest, model.ErrCodeValidationFailed)
				if !hasFieldError(env.Details, tt.field) {
					t.Errorf("details = %+v, want field %q", env.Details, tt.field)
				}
			})
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(http.MethodPost, "/api/blogs", `{"title":"t","content":"x"}`))
		assertError(t, w, http.StatusUnauthorized, model.ErrCodeAuthenticationRequired)
	})
}

func TestBlogHandler_Update_ForwardsPartialInput(t *testing.T) {
	var got blog.UpdateInput
	svc := &mockBlogService{
		updateFn: func(ctx context.Context, id string, viewer *model.AuthContext, in blog.UpdateInput) (*model.Blog, error) {
			got = in
			return sampleBlog(id), nil
		},
	}
	h := newTestBlogHandler(svc)

	req := withURLParams(newRequest(http.MethodPut, "/api/blogs/b1", `{"title":"New","status":"PENDING"}`), "id", "b1")
	w := httptest.NewRecorder()
	h.Update(w, withAuth(req, testUser))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body=%s)", w.Code, w.Body.String())
	}
	if got.Title == nil || *got.Title != "New" {
		t.Errorf("title = %v", got.Title)
	}
	if got.Status == nil || *got.Status != model.BlogStatusPending {
		t.Errorf("status = %v", got.Status)
	}
	if got.Content != nil || got.Featured != nil {
		t.Error("omitted fields should stay nil")
	}
}

func TestBlogHandler_Update_AccessDenied(t *testing.T) {
	svc := &mockBlogService{
		updateFn: func(ctx context.Context, id string, viewer *model.AuthContext, in blog.UpdateInput) (*model.Blog, error) {
			return nil, model.NewAccessDeniedError("You can only edit your own blogs")
		},
	}
	h := newTestBlogHandler(svc)

	req := withURLParams(newRequest(http.MethodPut, "/api/blogs/b1", `{"title":"New"}`), "id", "b1")
	w := httptest.NewRecorder()
	h.Update(w, withAuth(req, testUser))

	assertError(t, w, http.StatusForbidden, model.ErrCodeAccessDenied)
}

func TestBlogHandler_SetStatus(t *testing.T) {
	var got blog.StatusInput
	svc := &mockBlogService{
		setStatusFn: func(ctx context.Context, id string, in blog.StatusInput) (*model.Blog, error) {
			got = in
			b := sampleBlog(id)
			b.Status = in.Status
			return b, nil
		},
	}
	h := newTestBlogHandler(svc)

	req := withURLParams(newRequest(http.MethodPut, "/api/blogs/b1/status", `{"status":"REJECTED","reason":"  off topic  "}`), "id", "b1")
	w := httptest.NewRecorder()
	h.SetStatus(w, withAuth(req, testAdmin))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body=%s)", w.Code, w.Body.String())
	}
	if got.Status != model.BlogStatusRejected || got.Reason != "off topic" {
		t.Errorf("input = %+v", got)
	}
}

func TestBlogHandler_Delete(t *testing.T) {
	var deleted string
	svc := &mockBlogService{
		deleteFn: func(ctx context.Context, id string, viewer *model.AuthContext) error {
			deleted = id
			return nil
		},
	}
	h := newTestBlogHandler(svc)

	req := withURLParams(newRequest(http.MethodDelete, "/api/blogs/b1", ""), "id", "b1")
	w := httptest.NewRecorder()
	h.Delete(w, withAuth(req, testUser))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if deleted != "b1" {
		t.Errorf("deleted = %q", deleted)
	}
}

func TestBlogHandler_ToggleLike(t *testing.T) {
	svc := &mockBlogService{
		toggleLikeFn: func(ctx context.Context, id string, viewer *model.AuthContext) (*model.LikeResult, error) {
			return &model.LikeResult{Liked: true, LikesCount: 4}, nil
		},
	}
	h := newTestBlogHandler(svc)

	req := withURLParams(newRequest(http.MethodPost, "/api/blogs/b1/like", ""), "id", "b1")
	w := httptest.NewRecorder()
	h.ToggleLike(w, withAuth(req, testUser))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got likeResponse
	decodeData(t, decodeEnvelope(t, w), &got)
	if !got.Liked || got.LikesCount != 4 {
		t.Errorf("like = %+v", got)
	}
}

func TestBlogHandler_Trending_PassesLimit(t *testing.T) {
	var gotLimit int
	svc := &mockBlogService{
		trendingFn: func(ctx context.Context, limit int) ([]*model.Blog, error) {
			gotLimit = limit
			return []*model.Blog{sampleBlog("b1")}, nil
		},
	}
	h := newTestBlogHandler(svc)

	w := httptest.NewRecorder()
	h.Trending(w, newRequest(http.MethodGet, "/api/blogs/trending?limit=5", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotLimit != 5 {
		t.Errorf("limit = %d, want 5", gotLimit)
	}
}

func TestBlogHandler_RSS(t *testing.T) {
	svc := &mockBlogService{
		feedFn: func(ctx context.Context) ([]*model.Blog, error) {
			return []*model.Blog{sampleBlog("b1")}, nil
		},
	}
	h := newTestBlogHandler(svc)

	w := httptest.NewRecorder()
	h.RSS(w, newRequest(http.MethodGet, "/feed.xml", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<rss") || !strings.Contains(body, "https://blog.example.com/blog/hello-go") {
		t.Errorf("unexpected feed body: %s", body)
	}
}
