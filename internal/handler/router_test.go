package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/blogforge/internal/middleware"
	"github.com/hitoshi/blogforge/internal/model"
	"github.com/hitoshi/blogforge/internal/post"
	"github.com/hitoshi/blogforge/internal/user"
)

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.findByIDFn(ctx, id)
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	getProfileFn func(ctx context.Context, userID string) (*user.Profile, error)
	withdrawFn   func(ctx context.Context, userID string) error
}

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*user.Profile, error) {
	return m.getProfileFn(ctx, userID)
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	return m.withdrawFn(ctx, userID)
}

// newTestRouter は全ハンドラーをモックで構成したルーターを返す。
func newTestRouter(t *testing.T, titleSvc *mockTitleService, postSvc *mockPostService, userSvc *mockUserService) (http.Handler, *middleware.RateLimiter) {
	t.Helper()

	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session" {
				return &model.Session{
					ID:        id,
					UserID:    "user-1",
					ExpiresAt: time.Now().Add(time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		SessionFinder:     finder,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		CSRFConfig:        middleware.CSRFConfig{CookieSecure: false},
		AuthService:       &mockAuthService{},
		AuthConfig:        testAuthConfig(),
		TitleService:      titleSvc,
		PostService:       postSvc,
		UserService:       userSvc,
	})

	return router, rl
}

// authedSessionRequest は有効なセッションCookieとCSRFトークンを持つリクエストを生成する。
func authedSessionRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	return req
}

// TestRouter_HealthEndpoint_NoAuthRequired は/healthが認証なしで200を返すことを検証する。
func TestRouter_HealthEndpoint_NoAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t, &mockTitleService{}, &mockPostService{}, &mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

// TestRouter_ProtectedRoute_NoSession_ReturnsUnauthorized は認証なしの保護ルートで401が返ることを検証する。
func TestRouter_ProtectedRoute_NoSession_ReturnsUnauthorized(t *testing.T) {
	router, _ := newTestRouter(t, &mockTitleService{}, &mockPostService{}, &mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestRouter_ProtectedRoute_WithSession_ReachesHandler は有効セッションで保護ルートに到達することを検証する。
func TestRouter_ProtectedRoute_WithSession_ReachesHandler(t *testing.T) {
	postSvc := &mockPostService{
		listFn: func(ctx context.Context, userID string, page int) (*post.Page, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			return &post.Page{Posts: []post.Summary{}, CurrentPage: 1}, nil
		},
	}
	router, _ := newTestRouter(t, &mockTitleService{}, postSvc, &mockUserService{})

	req := authedSessionRequest(http.MethodGet, "/api/posts")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRouter_MutatingRoute_WithoutCSRF_ReturnsForbidden はCSRFトークンなしの
// 状態変更リクエストで403が返ることを検証する。
func TestRouter_MutatingRoute_WithoutCSRF_ReturnsForbidden(t *testing.T) {
	router, _ := newTestRouter(t, &mockTitleService{}, &mockPostService{}, &mockUserService{})

	req := httptest.NewRequest(http.MethodPost, "/api/titles/cleanup", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestRouter_UserProfile_ReturnsProfileWithPostsCount はプロフィールに記事数が含まれることを検証する。
func TestRouter_UserProfile_ReturnsProfileWithPostsCount(t *testing.T) {
	userSvc := &mockUserService{
		getProfileFn: func(ctx context.Context, userID string) (*user.Profile, error) {
			return &user.Profile{
				User:       &model.User{ID: userID, Email: "a@example.com", Name: "Alice"},
				PostsCount: 7,
			}, nil
		},
	}
	router, _ := newTestRouter(t, &mockTitleService{}, &mockPostService{}, userSvc)

	req := authedSessionRequest(http.MethodGet, "/api/users/me")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp profileResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.PostsCount != 7 {
		t.Errorf("posts_count = %d, want 7", resp.PostsCount)
	}
}

// TestRouter_CORSPreflight_ReturnsNoContent はOPTIONSプリフライトに204が返ることを検証する。
func TestRouter_CORSPreflight_ReturnsNoContent(t *testing.T) {
	router, _ := newTestRouter(t, &mockTitleService{}, &mockPostService{}, &mockUserService{})

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

// TestRouter_SecurityHeaders_AreSet はセキュリティヘッダーが付与されることを検証する。
func TestRouter_SecurityHeaders_AreSet(t *testing.T) {
	router, _ := newTestRouter(t, &mockTitleService{}, &mockPostService{}, &mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}
