// Package model はドメインモデルを定義する。
package model

import "time"

// Title はトピックから生成されたブログタイトル候補を表す。
// タイトル生成で一括作成され、記事生成時にIsUsedがtrueに遷移する。
// 記事削除時にはIsUsedがfalseに戻り、再び未使用として扱われる。
type Title struct {
	ID        string
	UserID    string
	Topic     string
	TitleText string
	IsUsed    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TitleFilter はタイトル一覧のフィルタ種別を表す。
type TitleFilter string

const (
	// TitleFilterAll は全タイトルを表示するフィルタ。
	TitleFilterAll TitleFilter = "all"
	// TitleFilterUnused は未使用タイトルのみを表示するフィルタ。
	TitleFilterUnused TitleFilter = "unused"
	// TitleFilterUsed は使用済みタイトルのみを表示するフィルタ。
	TitleFilterUsed TitleFilter = "used"
)
