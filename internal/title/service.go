// Package title はトピックからのタイトル生成ドメインロジックを提供する。
package title

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogforge/internal/llm"
	"github.com/hitoshi/blogforge/internal/model"
	"github.com/hitoshi/blogforge/internal/repository"
)

// titleSystemPrompt はタイトル生成の固定システムプロンプト。
// 引用符なし・番号付きリスト・余計なテキストなしを強制する。
const titleSystemPrompt = "You are a helpful assistant that generates engaging blog titles. " +
	"Generate 10 unique, creative, and engaging blog titles based on the provided topic. " +
	"Do not use any quotation marks in the titles. " +
	"Return only the titles as a numbered list, with no additional text or punctuation marks."

// GenerationRecorder は生成メトリクスの記録インターフェース。
type GenerationRecorder interface {
	RecordGenerationSuccess(kind string)
	RecordGenerationFailure(kind string)
	RecordGenerationLatency(kind string, duration time.Duration)
	RecordTitlesParsed(count int)
}

// Service はタイトル生成のサービス層。
type Service struct {
	titleRepo   repository.TitleRepository
	llmClient   llm.Client
	logger      *slog.Logger
	metrics     GenerationRecorder
	temperature float64
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	titleRepo repository.TitleRepository,
	llmClient llm.Client,
	logger *slog.Logger,
	metrics GenerationRecorder,
	temperature float64,
) *Service {
	return &Service{
		titleRepo:   titleRepo,
		llmClient:   llmClient,
		logger:      logger,
		metrics:     metrics,
		temperature: temperature,
	}
}

// Generate はトピックから10件のタイトル候補を生成して保存する。
// LLM出力のパースで候補が0件になった場合は空の結果を返す（エラーにしない）。
// LLM呼び出しの失敗はGENERATION_FAILEDとして返す。
func (s *Service) Generate(ctx context.Context, userID, topic string) ([]*model.Title, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, model.NewTopicRequiredError()
	}

	start := time.Now()
	userPrompt := fmt.Sprintf("Generate 10 engaging blog titles about: %s", topic)

	text, err := s.llmClient.Chat(ctx, titleSystemPrompt, userPrompt, s.temperature)
	if err != nil {
		s.metrics.RecordGenerationFailure("title")
		s.logger.Error("タイトル生成のLLM呼び出しに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewGenerationFailedError()
	}
	s.metrics.RecordGenerationSuccess("title")
	s.metrics.RecordGenerationLatency("title", time.Since(start))

	parsed := ParseTitles(text)
	s.metrics.RecordTitlesParsed(len(parsed))

	if len(parsed) == 0 {
		s.logger.Warn("LLM出力からタイトルを1件も抽出できませんでした",
			slog.String("user_id", userID),
			slog.String("topic", topic),
		)
		return []*model.Title{}, nil
	}

	now := time.Now()
	titles := make([]*model.Title, len(parsed))
	for i, titleText := range parsed {
		titles[i] = &model.Title{
			ID:        uuid.NewString(),
			UserID:    userID,
			Topic:     topic,
			TitleText: titleText,
			IsUsed:    false,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	if err := s.titleRepo.CreateBatch(ctx, titles); err != nil {
		return nil, fmt.Errorf("タイトルの保存に失敗しました: %w", err)
	}

	s.logger.Info("タイトルを生成しました",
		slog.String("user_id", userID),
		slog.String("topic", topic),
		slog.Int("count", len(titles)),
	)

	return titles, nil
}

// List はユーザーのタイトル一覧をフィルタ付きで返す。
func (s *Service) List(ctx context.Context, userID string, filter model.TitleFilter) ([]*model.Title, error) {
	titles, err := s.titleRepo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("タイトル一覧の取得に失敗しました: %w", err)
	}
	return titles, nil
}

// Cleanup は保存済みタイトルから引用符を除去する。
// 過去にパースをすり抜けた引用符付きタイトルの修復用。
// 個別の更新失敗はログに記録して続行し、更新できた件数を返す。
func (s *Service) Cleanup(ctx context.Context, userID string) (int, error) {
	titles, err := s.titleRepo.ListByUser(ctx, userID, model.TitleFilterAll)
	if err != nil {
		return 0, fmt.Errorf("タイトル一覧の取得に失敗しました: %w", err)
	}

	var updated int
	for _, title := range titles {
		cleaned := StripQuotes(title.TitleText)
		if cleaned == title.TitleText {
			continue
		}
		if err := s.titleRepo.UpdateText(ctx, title.ID, cleaned); err != nil {
			s.logger.Error("タイトルのクリーンアップに失敗しました",
				slog.String("title_id", title.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		updated++
	}

	if updated > 0 {
		s.logger.Info("タイトルをクリーンアップしました",
			slog.String("user_id", userID),
			slog.Int("updated", updated),
		)
	}

	return updated, nil
}
