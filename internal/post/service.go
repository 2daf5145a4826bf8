// Package post は記事の生成・編集・削除・一覧取得のドメインロジックを提供する。
package post

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogforge/internal/cache"
	"github.com/hitoshi/blogforge/internal/llm"
	"github.com/hitoshi/blogforge/internal/model"
	"github.com/hitoshi/blogforge/internal/render"
	"github.com/hitoshi/blogforge/internal/repository"
)

// postSystemPrompt は記事生成の固定システムプロンプト。
// Markdown構造（H1タイトル、導入、3〜5個のH2セクション、結論）を指示する。
const postSystemPrompt = "You are a helpful assistant that generates high-quality blog content. " +
	"Generate a well-structured, engaging blog post based on the provided title. " +
	"The content should be in markdown format with proper headings, paragraphs, and formatting. " +
	"Include an introduction, 3-5 main sections with subheadings, and a conclusion."

// GenerationRecorder は生成メトリクスの記録インターフェース。
type GenerationRecorder interface {
	RecordGenerationSuccess(kind string)
	RecordGenerationFailure(kind string)
	RecordGenerationLatency(kind string, duration time.Duration)
}

// Config はServiceの設定パラメータ。
type Config struct {
	// PostsPerPage は一覧の1ページあたりの件数（デフォルト: 6）。
	PostsPerPage int
	// MaxPostsPerUser はユーザーあたりの記事数上限（デフォルト: 50）。
	MaxPostsPerUser int
	// BatchMaxConcurrent はバッチ生成の最大並列数（デフォルト: 3）。
	BatchMaxConcurrent int
	// Temperature はLLM呼び出しのtemperature。
	Temperature float64
}

// DefaultConfig はデフォルトのService設定を返す。
func DefaultConfig() Config {
	return Config{
		PostsPerPage:       6,
		MaxPostsPerUser:    50,
		BatchMaxConcurrent: 3,
		Temperature:        0.7,
	}
}

// Service は記事管理のサービス層。
// 記事の主書き込みとタイトルフラグ・使用量カウンタの整合はリポジトリの
// トランザクションに委ね、キャッシュ無効化のみをベストエフォートで行う。
type Service struct {
	postRepo  repository.PostRepository
	titleRepo repository.TitleRepository
	usageRepo repository.UsageRepository
	llmClient llm.Client
	pageCache *cache.PageCache // nilの場合はキャッシュ無効
	renderer  *render.Renderer
	logger    *slog.Logger
	metrics   GenerationRecorder
	config    Config
}

// NewService はServiceの新しいインスタンスを生成する。
// pageCacheはnilを許容し、その場合は常にストアから読み取る。
func NewService(
	postRepo repository.PostRepository,
	titleRepo repository.TitleRepository,
	usageRepo repository.UsageRepository,
	llmClient llm.Client,
	pageCache *cache.PageCache,
	renderer *render.Renderer,
	logger *slog.Logger,
	metrics GenerationRecorder,
	config Config,
) *Service {
	if config.PostsPerPage <= 0 {
		config.PostsPerPage = 6
	}
	if config.MaxPostsPerUser <= 0 {
		config.MaxPostsPerUser = 50
	}
	if config.BatchMaxConcurrent <= 0 {
		config.BatchMaxConcurrent = 3
	}
	return &Service{
		postRepo:  postRepo,
		titleRepo: titleRepo,
		usageRepo: usageRepo,
		llmClient: llmClient,
		pageCache: pageCache,
		renderer:  renderer,
		logger:    logger,
		metrics:   metrics,
		config:    config,
	}
}

// --- 一覧・詳細の結果型 ---

// Summary は記事一覧の1件分のドメインオブジェクト。
type Summary struct {
	ID        string           `json:"id"`
	TitleID   string           `json:"title_id"`
	TitleText string           `json:"title_text"`
	Content   string           `json:"content"`
	Status    model.PostStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// Page は記事一覧の1ページ分の結果。
type Page struct {
	Posts       []Summary
	TotalCount  int
	TotalPages  int
	CurrentPage int
}

// Detail は記事詳細。Markdown本文とサニタイズ済みHTMLの両方を含む。
type Detail struct {
	Post        *model.Post
	TitleText   string
	ContentHTML string
}

// Generate はタイトルから記事を1件生成する。
//
// タイトルが存在しない、または他ユーザー所有の場合はTITLE_NOT_FOUNDを返す
// （存在を秘匿するため両者を区別しない）。使用済みタイトルはTITLE_ALREADY_USED、
// 記事数上限超過はPOST_LIMITを返す。LLMの出力はMarkdown検証を行わず
// そのまま本文として保存し、status=draftで作成する。
// 記事作成・タイトル使用済み遷移・カウンタ加算は同一トランザクションで行われる。
func (s *Service) Generate(ctx context.Context, userID, titleID string) (*model.Post, error) {
	title, err := s.titleRepo.FindByUser(ctx, userID, titleID)
	if err != nil {
		return nil, fmt.Errorf("タイトルの取得に失敗しました: %w", err)
	}
	if title == nil {
		return nil, model.NewTitleNotFoundError(titleID)
	}
	if title.IsUsed {
		return nil, model.NewTitleAlreadyUsedError(titleID)
	}

	// 記事数上限チェック
	usage, err := s.usageRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("使用量の取得に失敗しました: %w", err)
	}
	if usage.PostsCount >= s.config.MaxPostsPerUser {
		return nil, model.NewPostLimitError(s.config.MaxPostsPerUser)
	}

	start := time.Now()
	userPrompt := fmt.Sprintf(
		"Write a comprehensive blog post with the title: %s. The blog post should be about: %s.",
		title.TitleText, title.Topic,
	)

	content, err := s.llmClient.Chat(ctx, postSystemPrompt, userPrompt, s.config.Temperature)
	if err != nil {
		s.metrics.RecordGenerationFailure("post")
		s.logger.Error("記事生成のLLM呼び出しに失敗しました",
			slog.String("user_id", userID),
			slog.String("title_id", titleID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewGenerationFailedError()
	}
	s.metrics.RecordGenerationSuccess("post")
	s.metrics.RecordGenerationLatency("post", time.Since(start))

	now := time.Now()
	post := &model.Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		TitleID:   titleID,
		Content:   content,
		Status:    model.PostStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.postRepo.CreateWithTitleUse(ctx, post); err != nil {
		if errors.Is(err, repository.ErrTitleAlreadyUsed) {
			return nil, model.NewTitleAlreadyUsedError(titleID)
		}
		return nil, fmt.Errorf("記事の作成に失敗しました: %w", err)
	}

	s.invalidateCache(ctx, userID)

	s.logger.Info("記事を生成しました",
		slog.String("user_id", userID),
		slog.String("post_id", post.ID),
		slog.String("title_id", titleID),
	)

	return post, nil
}

// GenerateBatch は複数タイトルから記事を一括生成する。
//
// 先頭のタイトルは同期的に生成し、失敗した場合はバッチ全体を失敗させる。
// 残りのタイトルはsemaphoreで並列数を制御しながら並行生成し、
// 個別の失敗はログに記録して結果から除外する（バッチは中断しない）。
// 結果は入力タイトルの順序を保つ。
func (s *Service) GenerateBatch(ctx context.Context, userID string, titleIDs []string) ([]*model.Post, error) {
	if len(titleIDs) == 0 {
		return nil, model.NewInvalidRequestError("title_idsが空です")
	}

	// 先頭は同期生成。失敗はそのまま呼び出し元へ返す。
	first, err := s.Generate(ctx, userID, titleIDs[0])
	if err != nil {
		return nil, err
	}

	results := make([]*model.Post, len(titleIDs))
	results[0] = first

	rest := titleIDs[1:]
	if len(rest) > 0 {
		// semaphoreパターンで並列数を制御
		sem := make(chan struct{}, s.config.BatchMaxConcurrent)
		var wg sync.WaitGroup

		for i, titleID := range rest {
			wg.Add(1)
			sem <- struct{}{} // semaphore取得（ブロック）

			go func(idx int, id string) {
				defer wg.Done()
				defer func() { <-sem }() // semaphore解放

				post, err := s.Generate(ctx, userID, id)
				if err != nil {
					s.logger.Error("バッチ生成の個別タイトルで失敗しました",
						slog.String("user_id", userID),
						slog.String("title_id", id),
						slog.String("error", err.Error()),
					)
					return
				}
				results[idx+1] = post
			}(i, titleID)
		}

		wg.Wait()
	}

	// 失敗分を除外して詰める
	posts := make([]*model.Post, 0, len(results))
	for _, p := range results {
		if p != nil {
			posts = append(posts, p)
		}
	}

	s.logger.Info("バッチ生成が完了しました",
		slog.String("user_id", userID),
		slog.Int("requested", len(titleIDs)),
		slog.Int("succeeded", len(posts)),
	)

	return posts, nil
}

// Save は記事のcontent/statusを部分更新する。
// nilのフィールドは変更しない（部分更新セマンティクス）。
func (s *Service) Save(ctx context.Context, userID, postID string, content *string, status *string) (*model.Post, error) {
	var postStatus *model.PostStatus
	if status != nil {
		if !model.ValidPostStatus(*status) {
			return nil, model.NewInvalidRequestError(
				fmt.Sprintf("statusはdraftまたはpublishedを指定してください: %s", *status))
		}
		ps := model.PostStatus(*status)
		postStatus = &ps
	}

	updated, err := s.postRepo.UpdateFields(ctx, userID, postID, content, postStatus)
	if err != nil {
		return nil, fmt.Errorf("記事の更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	s.invalidateCache(ctx, userID)

	return updated, nil
}

// Delete は記事を削除する。
// タイトルの未使用復帰とカウンタ減算は削除と同一トランザクションで行われる。
func (s *Service) Delete(ctx context.Context, userID, postID string) error {
	err := s.postRepo.DeleteWithTitleRelease(ctx, userID, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewPostNotFoundError(postID)
	}
	if err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}

	s.invalidateCache(ctx, userID)

	s.logger.Info("記事を削除しました",
		slog.String("user_id", userID),
		slog.String("post_id", postID),
	)

	return nil
}

// List はユーザーの記事一覧を1ページ分返す。
// キャッシュヒット時はストアに触れず、ミス時はストアから読み取って
// ページと総件数をキャッシュに書き戻す。キャッシュ障害は常に
// ストアへのフォールスルーで処理を継続する。
func (s *Service) List(ctx context.Context, userID string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	// キャッシュから取得を試みる
	if s.pageCache != nil {
		if payload, count, ok := s.pageCache.GetPage(ctx, userID, page); ok {
			var posts []Summary
			if err := json.Unmarshal(payload, &posts); err == nil {
				return &Page{
					Posts:       posts,
					TotalCount:  count,
					TotalPages:  totalPages(count, s.config.PostsPerPage),
					CurrentPage: page,
				}, nil
			}
			s.logger.Warn("キャッシュペイロードのデコードに失敗しました",
				slog.String("user_id", userID),
				slog.Int("page", page),
			)
		}
	}

	count, err := s.postRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}

	offset := (page - 1) * s.config.PostsPerPage
	rows, err := s.postRepo.ListByUser(ctx, userID, offset, s.config.PostsPerPage)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}

	posts := make([]Summary, len(rows))
	for i, row := range rows {
		posts[i] = Summary{
			ID:        row.ID,
			TitleID:   row.TitleID,
			TitleText: row.TitleText,
			Content:   row.Content,
			Status:    row.Status,
			CreatedAt: row.CreatedAt,
		}
	}

	// ページと総件数をキャッシュに書き戻す
	if s.pageCache != nil {
		if payload, err := json.Marshal(posts); err == nil {
			s.pageCache.SetPage(ctx, userID, page, payload, count)
		}
	}

	return &Page{
		Posts:       posts,
		TotalCount:  count,
		TotalPages:  totalPages(count, s.config.PostsPerPage),
		CurrentPage: page,
	}, nil
}

// Get は記事詳細を返す。本文はMarkdownとサニタイズ済みHTMLの両方を含む。
func (s *Service) Get(ctx context.Context, userID, postID string) (*Detail, error) {
	post, err := s.postRepo.FindByUser(ctx, userID, postID)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	title, err := s.titleRepo.FindByUser(ctx, userID, post.TitleID)
	if err != nil {
		return nil, fmt.Errorf("タイトルの取得に失敗しました: %w", err)
	}

	detail := &Detail{Post: post}
	if title != nil {
		detail.TitleText = title.TitleText
	}

	html, err := s.renderer.ToHTML(post.Content)
	if err != nil {
		// 表示用HTMLはベストエフォート。失敗してもMarkdown本文は返す。
		s.logger.Error("記事本文のHTML変換に失敗しました",
			slog.String("post_id", postID),
			slog.String("error", err.Error()),
		)
	} else {
		detail.ContentHTML = html
	}

	return detail, nil
}

// invalidateCache はユーザーの一覧キャッシュを無効化する。
// 失敗はPageCache内でログに記録され、呼び出し元の操作は失敗しない。
func (s *Service) invalidateCache(ctx context.Context, userID string) {
	if s.pageCache != nil {
		s.pageCache.Invalidate(ctx, userID)
	}
}

// totalPages は総件数とページサイズから総ページ数を計算する。
func totalPages(count, perPage int) int {
	if count == 0 {
		return 0
	}
	return (count + perPage - 1) / perPage
}
