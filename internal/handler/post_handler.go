package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogforge/internal/middleware"
	"github.com/hitoshi/blogforge/internal/model"
	"github.com/hitoshi/blogforge/internal/post"
)

// PostServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// Generate はタイトルから記事を1件生成する。
	Generate(ctx context.Context, userID, titleID string) (*model.Post, error)
	// GenerateBatch は複数タイトルから記事を並行生成する。
	GenerateBatch(ctx context.Context, userID string, titleIDs []string) ([]*model.Post, error)
	// Save は記事のcontent/statusを部分更新する。
	Save(ctx context.Context, userID, postID string, content *string, status *string) (*model.Post, error)
	// Delete は記事を削除し、タイトルを未使用に戻す。
	Delete(ctx context.Context, userID, postID string) error
	// List は記事一覧の1ページ分を返す。
	List(ctx context.Context, userID string, page int) (*post.Page, error)
	// Get は記事詳細をサニタイズ済みHTML付きで返す。
	Get(ctx context.Context, userID, postID string) (*post.Detail, error)
}

// PostHandler は記事管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// generatePostRequest は記事生成リクエストのボディ。
type generatePostRequest struct {
	TitleID string `json:"title_id"`
}

// generateBatchRequest は記事一括生成リクエストのボディ。
type generateBatchRequest struct {
	TitleIDs []string `json:"title_ids"`
}

// savePostRequest は記事保存リクエストのボディ。
// nilのフィールドは変更しない部分更新として扱う。
type savePostRequest struct {
	Content *string `json:"content"`
	Status  *string `json:"status"`
}

// postResponse は記事情報のAPIレスポンス。
type postResponse struct {
	ID        string    `json:"id"`
	TitleID   string    `json:"title_id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// postDetailResponse は記事詳細のAPIレスポンス。サニタイズ済みHTMLを含む。
type postDetailResponse struct {
	postResponse
	TitleText   string `json:"title_text"`
	ContentHTML string `json:"content_html"`
}

// postListResponse は記事一覧のAPIレスポンス。
type postListResponse struct {
	Posts       []post.Summary `json:"posts"`
	TotalCount  int            `json:"total_count"`
	TotalPages  int            `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// GeneratePost はタイトルからの記事生成を処理する。
// POST /api/posts/generate
func (h *PostHandler) GeneratePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	var req generatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.TitleID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("title_idは必須です"))
		return
	}

	p, err := h.service.Generate(r.Context(), userID, req.TitleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostResponse(p))
}

// GenerateBatch は複数タイトルからの記事一括生成を処理する。
// POST /api/posts/generate-batch
func (h *PostHandler) GenerateBatch(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	var req generateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if len(req.TitleIDs) == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("title_idsは必須です"))
		return
	}

	posts, err := h.service.GenerateBatch(r.Context(), userID, req.TitleIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]postResponse, len(posts))
	for i, p := range posts {
		results[i] = toPostResponse(p)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"posts": results,
	})
}

// ListPosts は記事一覧をページネーション付きで返す。
// GET /api/posts?page=N
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("pageは整数で指定してください"))
			return
		}
		page = parsed
	}

	result, err := h.service.List(r.Context(), userID, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(postListResponse{
		Posts:       result.Posts,
		TotalCount:  result.TotalCount,
		TotalPages:  result.TotalPages,
		CurrentPage: result.CurrentPage,
	})
}

// GetPost は記事詳細を返す。
// GET /api/posts/:id
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	postID := chi.URLParam(r, "id")

	detail, err := h.service.Get(r.Context(), userID, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(postDetailResponse{
		postResponse: toPostResponse(detail.Post),
		TitleText:    detail.TitleText,
		ContentHTML:  detail.ContentHTML,
	})
}

// SavePost は記事のcontent/statusを部分更新する。
// PATCH /api/posts/:id
func (h *PostHandler) SavePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	postID := chi.URLParam(r, "id")

	var req savePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Content == nil && req.Status == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("contentまたはstatusを指定してください"))
		return
	}

	p, err := h.service.Save(r.Context(), userID, postID, req.Content, req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostResponse(p))
}

// DeletePost は記事を削除し、使用していたタイトルを未使用に戻す。
// DELETE /api/posts/:id
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	postID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, postID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toPostResponse はmodel.PostからAPIレスポンスに変換する。
func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		TitleID:   p.TitleID,
		Content:   p.Content,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// userIDOrUnauthorized はコンテキストからユーザーIDを取得する。
// 取得できない場合は401を書き込み、エラーを返す。
func userIDOrUnauthorized(w http.ResponseWriter, r *http.Request) (string, error) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", err
	}
	return userID, nil
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidLogin:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeTopicRequired:
		return http.StatusBadRequest
	case model.ErrCodeTitleNotFound, model.ErrCodePostNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeTitleAlreadyUsed, model.ErrCodePostLimit, model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
