package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/blogforge/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetProfile はユーザープロフィールと記事作成数を返す。
	GetProfile(ctx context.Context, userID string) (*user.Profile, error)
	// Withdraw はユーザーの退会処理を実行する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// profileResponse はプロフィール情報のAPIレスポンス。
type profileResponse struct {
	userResponse
	PostsCount int `json:"posts_count"`
}

// GetProfile はユーザープロフィールを返す。
// GET /api/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profileResponse{
		userResponse: toUserResponse(profile.User),
		PostsCount:   profile.PostsCount,
	})
}

// Withdraw はユーザーの退会処理を実行し、セッションCookieをクリアする。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
