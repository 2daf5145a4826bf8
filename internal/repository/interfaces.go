// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/blogforge/internal/model"
)

// ErrTitleAlreadyUsed は同一タイトルからの二重記事生成が
// posts.title_idの一意制約で拒否された場合に返される。
var ErrTitleAlreadyUsed = errors.New("title already has a post")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、titles、posts、user_usageはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// TitleRepository はタイトルデータの永続化インターフェース。
// 全クエリにuser_id条件を付与し、ユーザーデータ分離をこの層で強制する。
type TitleRepository interface {
	// CreateBatch は複数タイトルを同一トランザクションで一括作成する。
	CreateBatch(ctx context.Context, titles []*model.Title) error

	// FindByUser はユーザー所有の指定IDタイトルを取得する。
	// 存在しない、または他ユーザー所有の場合はnilを返す。
	FindByUser(ctx context.Context, userID, titleID string) (*model.Title, error)

	// ListByUser はユーザーのタイトル一覧を作成日時降順で返す。
	ListByUser(ctx context.Context, userID string, filter model.TitleFilter) ([]*model.Title, error)

	// UpdateText はタイトル本文を更新する。
	UpdateText(ctx context.Context, titleID, text string) error
}

// PostRepository は記事データの永続化インターフェース。
// 記事の主書き込みとタイトルの使用フラグ・使用量カウンタの更新は
// 同一トランザクションで行い、部分適用によるドリフトを防ぐ。
type PostRepository interface {
	// FindByUser はユーザー所有の指定ID記事を取得する。
	// 存在しない、または他ユーザー所有の場合はnilを返す。
	FindByUser(ctx context.Context, userID, postID string) (*model.Post, error)

	// ListByUser はユーザーの記事一覧をタイトル本文付き・作成日時降順で返す。
	// offset/limitによるページネーションを使用する。
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.PostWithTitle, error)

	// CountByUser はユーザーの記事総数を返す。
	CountByUser(ctx context.Context, userID string) (int, error)

	// CreateWithTitleUse は記事の作成、タイトルのis_used=true遷移、
	// 使用量カウンタのアトミック加算を同一トランザクションで行う。
	// タイトルが既に記事を持つ場合はErrTitleAlreadyUsedを返す。
	CreateWithTitleUse(ctx context.Context, post *model.Post) error

	// UpdateFields は記事のcontent/statusを部分更新する。
	// nilのフィールドは変更しない。
	UpdateFields(ctx context.Context, userID, postID string, content *string, status *model.PostStatus) (*model.Post, error)

	// DeleteWithTitleRelease は記事の削除、タイトルのis_used=false復帰、
	// 使用量カウンタのアトミック減算（0未満に下げない）を
	// 同一トランザクションで行う。
	DeleteWithTitleRelease(ctx context.Context, userID, postID string) error
}

// UsageRepository はユーザーごとの使用量カウンタの永続化インターフェース。
// 加算・減算は記事の書き込みトランザクション内で行われるため、
// ここには参照と再計算のみを定義する。
type UsageRepository interface {
	// Get はユーザーの使用量を取得する。レコードがない場合はposts_count=0として返す。
	Get(ctx context.Context, userID string) (*model.UserUsage, error)

	// RecomputeAll は全ユーザーのposts_countを実記事数から再計算する。
	// カウンタのドリフト修復用。更新した行数を返す。
	RecomputeAll(ctx context.Context) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
