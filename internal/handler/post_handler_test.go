package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogforge/internal/model"
	"github.com/hitoshi/blogforge/internal/post"
)

// mockPostService はPostServiceInterfaceのモック実装。
type mockPostService struct {
	generateFn      func(ctx context.Context, userID, titleID string) (*model.Post, error)
	generateBatchFn func(ctx context.Context, userID string, titleIDs []string) ([]*model.Post, error)
	saveFn          func(ctx context.Context, userID, postID string, content *string, status *string) (*model.Post, error)
	deleteFn        func(ctx context.Context, userID, postID string) error
	listFn          func(ctx context.Context, userID string, page int) (*post.Page, error)
	getFn           func(ctx context.Context, userID, postID string) (*post.Detail, error)
}

func (m *mockPostService) Generate(ctx context.Context, userID, titleID string) (*model.Post, error) {
	return m.generateFn(ctx, userID, titleID)
}

func (m *mockPostService) GenerateBatch(ctx context.Context, userID string, titleIDs []string) ([]*model.Post, error) {
	return m.generateBatchFn(ctx, userID, titleIDs)
}

func (m *mockPostService) Save(ctx context.Context, userID, postID string, content *string, status *string) (*model.Post, error) {
	return m.saveFn(ctx, userID, postID, content, status)
}

func (m *mockPostService) Delete(ctx context.Context, userID, postID string) error {
	return m.deleteFn(ctx, userID, postID)
}

func (m *mockPostService) List(ctx context.Context, userID string, page int) (*post.Page, error) {
	return m.listFn(ctx, userID, page)
}

func (m *mockPostService) Get(ctx context.Context, userID, postID string) (*post.Detail, error) {
	return m.getFn(ctx, userID, postID)
}

// newPostRouter はパスパラメータを解決するためのchi.Routerでハンドラーを包む。
func newPostRouter(h *PostHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/posts/generate", h.GeneratePost)
	r.Post("/api/posts/generate-batch", h.GenerateBatch)
	r.Get("/api/posts", h.ListPosts)
	r.Get("/api/posts/{id}", h.GetPost)
	r.Patch("/api/posts/{id}", h.SavePost)
	r.Delete("/api/posts/{id}", h.DeletePost)
	return r
}

// TestGeneratePost_ReturnsCreatedPost は記事生成が201と生成結果を返すことを検証する。
func TestGeneratePost_ReturnsCreatedPost(t *testing.T) {
	svc := &mockPostService{
		generateFn: func(ctx context.Context, userID, titleID string) (*model.Post, error) {
			if titleID != "title-1" {
				t.Errorf("titleID = %q, want %q", titleID, "title-1")
			}
			return &model.Post{
				ID:      "post-1",
				TitleID: titleID,
				Content: "# 本文",
				Status:  model.PostStatusDraft,
			}, nil
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	body, _ := json.Marshal(generatePostRequest{TitleID: "title-1"})
	req := authedRequest(http.MethodPost, "/api/posts/generate", body, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp postResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "post-1" {
		t.Errorf("id = %q, want %q", resp.ID, "post-1")
	}
	if resp.Status != string(model.PostStatusDraft) {
		t.Errorf("status = %q, want %q", resp.Status, model.PostStatusDraft)
	}
}

// TestGeneratePost_TitleAlreadyUsed_ReturnsConflict は使用済みタイトルで409が返ることを検証する。
func TestGeneratePost_TitleAlreadyUsed_ReturnsConflict(t *testing.T) {
	svc := &mockPostService{
		generateFn: func(ctx context.Context, userID, titleID string) (*model.Post, error) {
			return nil, model.NewTitleAlreadyUsedError(titleID)
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	body, _ := json.Marshal(generatePostRequest{TitleID: "title-1"})
	req := authedRequest(http.MethodPost, "/api/posts/generate", body, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

// TestGeneratePost_PostLimit_ReturnsConflict は記事数上限で409が返ることを検証する。
func TestGeneratePost_PostLimit_ReturnsConflict(t *testing.T) {
	svc := &mockPostService{
		generateFn: func(ctx context.Context, userID, titleID string) (*model.Post, error) {
			return nil, model.NewPostLimitError(50)
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	body, _ := json.Marshal(generatePostRequest{TitleID: "title-1"})
	req := authedRequest(http.MethodPost, "/api/posts/generate", body, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}

	var resp apiErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != model.ErrCodePostLimit {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodePostLimit)
	}
}

// TestGeneratePost_MissingTitleID_ReturnsBadRequest はtitle_idなしで400が返ることを検証する。
func TestGeneratePost_MissingTitleID_ReturnsBadRequest(t *testing.T) {
	router := newPostRouter(NewPostHandler(&mockPostService{}))

	req := authedRequest(http.MethodPost, "/api/posts/generate", []byte(`{}`), "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestGenerateBatch_ReturnsAllPosts は一括生成が全成功分を返すことを検証する。
func TestGenerateBatch_ReturnsAllPosts(t *testing.T) {
	svc := &mockPostService{
		generateBatchFn: func(ctx context.Context, userID string, titleIDs []string) ([]*model.Post, error) {
			if len(titleIDs) != 2 {
				t.Errorf("len(titleIDs) = %d, want 2", len(titleIDs))
			}
			return []*model.Post{
				{ID: "post-1", TitleID: titleIDs[0]},
				{ID: "post-2", TitleID: titleIDs[1]},
			}, nil
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	body, _ := json.Marshal(generateBatchRequest{TitleIDs: []string{"t1", "t2"}})
	req := authedRequest(http.MethodPost, "/api/posts/generate-batch", body, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp struct {
		Posts []postResponse `json:"posts"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Posts) != 2 {
		t.Errorf("len(posts) = %d, want 2", len(resp.Posts))
	}
}

// TestGenerateBatch_EmptyTitleIDs_ReturnsBadRequest は空のtitle_idsで400が返ることを検証する。
func TestGenerateBatch_EmptyTitleIDs_ReturnsBadRequest(t *testing.T) {
	router := newPostRouter(NewPostHandler(&mockPostService{}))

	body, _ := json.Marshal(generateBatchRequest{TitleIDs: []string{}})
	req := authedRequest(http.MethodPost, "/api/posts/generate-batch", body, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestListPosts_PageParamPassedToService はpageパラメータがサービスに渡ることを検証する。
func TestListPosts_PageParamPassedToService(t *testing.T) {
	var gotPage int
	svc := &mockPostService{
		listFn: func(ctx context.Context, userID string, page int) (*post.Page, error) {
			gotPage = page
			return &post.Page{
				Posts:       []post.Summary{{ID: "post-1", TitleText: "タイトル"}},
				TotalCount:  13,
				TotalPages:  3,
				CurrentPage: page,
			}, nil
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	req := authedRequest(http.MethodGet, "/api/posts?page=2", nil, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotPage != 2 {
		t.Errorf("page = %d, want 2", gotPage)
	}

	var resp postListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TotalCount != 13 {
		t.Errorf("total_count = %d, want 13", resp.TotalCount)
	}
	if resp.TotalPages != 3 {
		t.Errorf("total_pages = %d, want 3", resp.TotalPages)
	}
}

// TestListPosts_InvalidPage_ReturnsBadRequest は非整数のpageで400が返ることを検証する。
func TestListPosts_InvalidPage_ReturnsBadRequest(t *testing.T) {
	router := newPostRouter(NewPostHandler(&mockPostService{}))

	req := authedRequest(http.MethodGet, "/api/posts?page=abc", nil, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestGetPost_ReturnsDetailWithHTML は記事詳細がHTML付きで返ることを検証する。
func TestGetPost_ReturnsDetailWithHTML(t *testing.T) {
	svc := &mockPostService{
		getFn: func(ctx context.Context, userID, postID string) (*post.Detail, error) {
			return &post.Detail{
				Post: &model.Post{
					ID:      postID,
					TitleID: "title-1",
					Content: "# 見出し",
					Status:  model.PostStatusDraft,
				},
				TitleText:   "記事タイトル",
				ContentHTML: "<h1>見出し</h1>",
			}, nil
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	req := authedRequest(http.MethodGet, "/api/posts/post-1", nil, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp postDetailResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TitleText != "記事タイトル" {
		t.Errorf("title_text = %q", resp.TitleText)
	}
	if resp.ContentHTML != "<h1>見出し</h1>" {
		t.Errorf("content_html = %q", resp.ContentHTML)
	}
}

// TestGetPost_NotFound_ReturnsNotFound は存在しない記事で404が返ることを検証する。
func TestGetPost_NotFound_ReturnsNotFound(t *testing.T) {
	svc := &mockPostService{
		getFn: func(ctx context.Context, userID, postID string) (*post.Detail, error) {
			return nil, model.NewPostNotFoundError(postID)
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	req := authedRequest(http.MethodGet, "/api/posts/nope", nil, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// TestSavePost_PartialUpdate_StatusOnly はstatusのみの部分更新を検証する。
func TestSavePost_PartialUpdate_StatusOnly(t *testing.T) {
	svc := &mockPostService{
		saveFn: func(ctx context.Context, userID, postID string, content *string, status *string) (*model.Post, error) {
			if content != nil {
				t.Errorf("content = %v, want nil", *content)
			}
			if status == nil || *status != "published" {
				t.Errorf("status = %v, want published", status)
			}
			return &model.Post{ID: postID, Status: model.PostStatusPublished}, nil
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	req := authedRequest(http.MethodPatch, "/api/posts/post-1", []byte(`{"status":"published"}`), "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestSavePost_NoFields_ReturnsBadRequest は更新フィールドなしで400が返ることを検証する。
func TestSavePost_NoFields_ReturnsBadRequest(t *testing.T) {
	router := newPostRouter(NewPostHandler(&mockPostService{}))

	req := authedRequest(http.MethodPatch, "/api/posts/post-1", []byte(`{}`), "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestDeletePost_ReturnsNoContent は記事削除が204を返すことを検証する。
func TestDeletePost_ReturnsNoContent(t *testing.T) {
	deleted := false
	svc := &mockPostService{
		deleteFn: func(ctx context.Context, userID, postID string) error {
			deleted = true
			if postID != "post-1" {
				t.Errorf("postID = %q, want %q", postID, "post-1")
			}
			return nil
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	req := authedRequest(http.MethodDelete, "/api/posts/post-1", nil, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !deleted {
		t.Error("expected delete to be called")
	}
}

// TestDeletePost_NotFound_ReturnsNotFound は存在しない記事の削除で404が返ることを検証する。
func TestDeletePost_NotFound_ReturnsNotFound(t *testing.T) {
	svc := &mockPostService{
		deleteFn: func(ctx context.Context, userID, postID string) error {
			return model.NewPostNotFoundError(postID)
		},
	}
	router := newPostRouter(NewPostHandler(svc))

	req := authedRequest(http.MethodDelete, "/api/posts/nope", nil, "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
