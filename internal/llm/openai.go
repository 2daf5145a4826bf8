package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient は公式openai-go SDK（chat completions）によるClient実装。
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient は設定からOpenAIClientを生成する。
// APIキーとモデル名は必須。
func NewOpenAIClient(settings Settings) (*OpenAIClient, error) {
	if settings.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if settings.Model == "" {
		return nil, errors.New("openai model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(settings.APIKey)}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  settings.Model,
	}, nil
}

// Chat はシステムプロンプトとユーザープロンプトで1回のチャット補完を行う。
func (c *OpenAIClient) Chat(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("チャット補完の呼び出しに失敗しました: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("チャット補完のレスポンスにchoicesが含まれていません")
	}

	return resp.Choices[0].Message.Content, nil
}

// compile-time interface check
var _ Client = (*OpenAIClient)(nil)
