package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/blogforge/internal/model"
)

// TitleServiceInterface はタイトルハンドラーが必要とするサービスインターフェース。
type TitleServiceInterface interface {
	// Generate はトピックからタイトル候補を一括生成する。
	Generate(ctx context.Context, userID, topic string) ([]*model.Title, error)
	// List はユーザーのタイトル一覧をフィルタ付きで返す。
	List(ctx context.Context, userID string, filter model.TitleFilter) ([]*model.Title, error)
	// Cleanup は既存タイトルから引用符を除去し、更新件数を返す。
	Cleanup(ctx context.Context, userID string) (int, error)
}

// TitleHandler はタイトル管理のHTTPハンドラー。
type TitleHandler struct {
	service TitleServiceInterface
}

// NewTitleHandler はTitleHandlerを生成する。
func NewTitleHandler(service TitleServiceInterface) *TitleHandler {
	return &TitleHandler{service: service}
}

// generateTitlesRequest はタイトル生成リクエストのボディ。
type generateTitlesRequest struct {
	Topic string `json:"topic"`
}

// titleResponse はタイトル情報のAPIレスポンス。
type titleResponse struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	TitleText string    `json:"title_text"`
	IsUsed    bool      `json:"is_used"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateTitles はトピックからのタイトル候補生成を処理する。
// POST /api/titles/generate
func (h *TitleHandler) GenerateTitles(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	var req generateTitlesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	titles, err := h.service.Generate(r.Context(), userID, req.Topic)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"titles": toTitleResponses(titles),
	})
}

// ListTitles はタイトル一覧を返す。
// GET /api/titles?filter=all|unused|used
func (h *TitleHandler) ListTitles(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	filter := model.TitleFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = model.TitleFilterAll
	}
	switch filter {
	case model.TitleFilterAll, model.TitleFilterUnused, model.TitleFilterUsed:
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("filterはall、unused、usedのいずれかを指定してください"))
		return
	}

	titles, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"titles": toTitleResponses(titles),
	})
}

// CleanupTitles は既存タイトルの引用符除去を処理する。
// POST /api/titles/cleanup
func (h *TitleHandler) CleanupTitles(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDOrUnauthorized(w, r)
	if err != nil {
		return
	}

	updated, err := h.service.Cleanup(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"updated_count": updated,
	})
}

// toTitleResponses はmodel.TitleのスライスからAPIレスポンスに変換する。
// nilスライスでも空配列としてシリアライズされるようにする。
func toTitleResponses(titles []*model.Title) []titleResponse {
	results := make([]titleResponse, len(titles))
	for i, t := range titles {
		results[i] = titleResponse{
			ID:        t.ID,
			Topic:     t.Topic,
			TitleText: t.TitleText,
			IsUsed:    t.IsUsed,
			CreatedAt: t.CreatedAt,
		}
	}
	return results
}
