// Package model はドメインモデルを定義する。
package model

import "time"

// Post はタイトルから生成されたブログ記事を表す。
// 生成直後はstatus=draftで、編集・公開を経てstatus=publishedに遷移する。
// 1つのタイトルに対して記事は最大1件（posts.title_idの一意制約で強制）。
type Post struct {
	ID        string
	UserID    string
	TitleID   string
	Content   string // Markdown本文
	Status    PostStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostStatus は記事のライフサイクル状態を表す。
type PostStatus string

const (
	// PostStatusDraft は下書き状態。
	PostStatusDraft PostStatus = "draft"
	// PostStatusPublished は公開済み状態。
	PostStatusPublished PostStatus = "published"
)

// ValidPostStatus はstatusが許可された値かどうかを返す。
func ValidPostStatus(s string) bool {
	switch PostStatus(s) {
	case PostStatusDraft, PostStatusPublished:
		return true
	}
	return false
}

// PostWithTitle は記事とタイトル本文を結合したモデル。
// titlesテーブルとJOINして一覧表示に使用される。
type PostWithTitle struct {
	Post
	TitleText string
}

// UserUsage はユーザーごとの記事作成数カウンタを表す。
// 記事作成数の上限チェックに使用される。加算・減算はストア側の
// アトミックな更新式で行い、0未満には減算されない。
type UserUsage struct {
	UserID     string
	PostsCount int
	UpdatedAt  time.Time
}
