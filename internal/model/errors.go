// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, generation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeTopicRequired    = "TOPIC_REQUIRED"
	ErrCodeTitleNotFound    = "TITLE_NOT_FOUND"
	ErrCodeTitleAlreadyUsed = "TITLE_ALREADY_USED"
	ErrCodePostNotFound     = "POST_NOT_FOUND"
	ErrCodePostLimit        = "POST_LIMIT"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeEmailTaken       = "EMAIL_TAKEN"
	ErrCodeInvalidLogin     = "INVALID_LOGIN"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewTopicRequiredError はトピック未指定エラーを生成する。
func NewTopicRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTopicRequired,
		Message:  "トピックが指定されていません。",
		Category: "validation",
		Action:   "タイトルを生成したいトピックを入力してください。",
	}
}

// NewTitleNotFoundError はタイトル未検出エラーを生成する。
// 他ユーザー所有のタイトルを指定した場合も同じエラーを返し、存在を秘匿する。
func NewTitleNotFoundError(titleID string) *APIError {
	return &APIError{
		Code:     ErrCodeTitleNotFound,
		Message:  fmt.Sprintf("指定されたタイトルが見つかりません: %s", titleID),
		Category: "validation",
		Action:   "タイトルIDを確認してください。",
	}
}

// NewTitleAlreadyUsedError は使用済みタイトルからの記事生成エラーを生成する。
func NewTitleAlreadyUsedError(titleID string) *APIError {
	return &APIError{
		Code:     ErrCodeTitleAlreadyUsed,
		Message:  fmt.Sprintf("このタイトルからは既に記事が生成されています: %s", titleID),
		Category: "validation",
		Action:   "未使用のタイトルを選択してください。",
	}
}

// NewPostNotFoundError は記事未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", postID),
		Category: "validation",
		Action:   "記事IDを確認してください。",
	}
}

// NewPostLimitError は記事数上限エラーを生成する。
func NewPostLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodePostLimit,
		Message:  fmt.Sprintf("記事数が上限（%d件）に達しています。", limit),
		Category: "validation",
		Action:   "不要な記事を削除してから、新しい記事を生成してください。",
	}
}

// NewGenerationFailedError は生成プロバイダ呼び出し失敗エラーを生成する。
// プロバイダ側の詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewGenerationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  "コンテンツの生成に失敗しました。",
		Category: "generation",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効なリクエストです: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidLoginError は認証情報不一致エラーを生成する。
func NewInvalidLoginError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLogin,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
