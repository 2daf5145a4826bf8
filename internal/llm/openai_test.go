package llm

import "testing"

// TestNewOpenAIClient_RequiresAPIKey はAPIキー未指定でエラーになることを検証する。
func TestNewOpenAIClient_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIClient(Settings{Model: "gpt-4o-mini"})
	if err == nil {
		t.Fatal("APIキー未指定はエラーになるべき")
	}
}

// TestNewOpenAIClient_RequiresModel はモデル名未指定でエラーになることを検証する。
func TestNewOpenAIClient_RequiresModel(t *testing.T) {
	_, err := NewOpenAIClient(Settings{APIKey: "test-key"})
	if err == nil {
		t.Fatal("モデル名未指定はエラーになるべき")
	}
}

// TestNewOpenAIClient_Valid は必須設定が揃っていればクライアントが生成されることを検証する。
func TestNewOpenAIClient_Valid(t *testing.T) {
	client, err := NewOpenAIClient(Settings{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: "https://example.com/v1",
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient() がエラーを返した: %v", err)
	}
	if client == nil {
		t.Fatal("クライアントがnil")
	}
}
