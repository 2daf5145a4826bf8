package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/blogforge/internal/model"
)

// PostgresUsageRepo はPostgreSQLを使用した使用量カウンタリポジトリ。
type PostgresUsageRepo struct {
	db *sql.DB
}

// NewPostgresUsageRepo はPostgresUsageRepoを生成する。
func NewPostgresUsageRepo(db *sql.DB) *PostgresUsageRepo {
	return &PostgresUsageRepo{db: db}
}

// Get はユーザーの使用量を取得する。レコードがない場合はposts_count=0として返す。
func (r *PostgresUsageRepo) Get(ctx context.Context, userID string) (*model.UserUsage, error) {
	usage := &model.UserUsage{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, posts_count, updated_at FROM user_usage WHERE user_id = $1`,
		userID,
	).Scan(&usage.UserID, &usage.PostsCount, &usage.UpdatedAt)

	if err == sql.ErrNoRows {
		return &model.UserUsage{UserID: userID, PostsCount: 0, UpdatedAt: time.Time{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("使用量の取得に失敗しました: %w", err)
	}

	return usage, nil
}

// RecomputeAll は全ユーザーのposts_countを実記事数から再計算する。
// カウンタと実態が一致している行は更新しない。更新した行数を返す。
func (r *PostgresUsageRepo) RecomputeAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO user_usage (user_id, posts_count, updated_at)
		 SELECT u.id, COALESCE(c.cnt, 0), now()
		 FROM users u
		 LEFT JOIN (SELECT user_id, COUNT(*) AS cnt FROM posts GROUP BY user_id) c
		   ON c.user_id = u.id
		 ON CONFLICT (user_id)
		 DO UPDATE SET posts_count = EXCLUDED.posts_count, updated_at = now()
		 WHERE user_usage.posts_count IS DISTINCT FROM EXCLUDED.posts_count`,
	)
	if err != nil {
		return 0, fmt.Errorf("使用量カウンタの再計算に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}

	return affected, nil
}

// compile-time interface check
var _ UsageRepository = (*PostgresUsageRepo)(nil)
