// Package llm は生成プロバイダ（LLM）のクライアントを提供する。
// チャット補完の単発呼び出しのみを扱い、ストリーミングや
// 関数呼び出しはサポートしない。リトライはプロバイダSDKの既定に委ねる。
package llm

import "context"

// Client は生成プロバイダの呼び出しインターフェース。
// テスト時にモックに差し替え可能。
type Client interface {
	// Chat はシステムプロンプトとユーザープロンプトで1回のチャット補完を行い、
	// 生成されたテキストを返す。ステートレスな単発呼び出し。
	Chat(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// Settings はプロバイダ実装に渡す基礎設定。
type Settings struct {
	APIKey  string
	BaseURL string // 空の場合はSDKの既定エンドポイント
	Model   string
}
