package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/blogforge/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATEコード。
const uniqueViolation = "23505"

// PostgresPostRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// FindByUser はユーザー所有の指定ID記事を取得する。
// 存在しない、または他ユーザー所有の場合はnilを返す。
func (r *PostgresPostRepo) FindByUser(ctx context.Context, userID, postID string) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title_id, content, status, created_at, updated_at
		 FROM posts WHERE id = $1 AND user_id = $2`,
		postID, userID,
	).Scan(
		&post.ID, &post.UserID, &post.TitleID, &post.Content,
		&post.Status, &post.CreatedAt, &post.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	return post, nil
}

// ListByUser はユーザーの記事一覧をタイトル本文付き・作成日時降順で返す。
func (r *PostgresPostRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.PostWithTitle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.title_id, p.content, p.status,
		        p.created_at, p.updated_at, t.title_text
		 FROM posts p
		 JOIN titles t ON p.title_id = t.id
		 WHERE p.user_id = $1
		 ORDER BY p.created_at DESC
		 OFFSET $2 LIMIT $3`,
		userID, offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []model.PostWithTitle
	for rows.Next() {
		var pwt model.PostWithTitle
		if err := rows.Scan(
			&pwt.ID, &pwt.UserID, &pwt.TitleID, &pwt.Content, &pwt.Status,
			&pwt.CreatedAt, &pwt.UpdatedAt, &pwt.TitleText,
		); err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, pwt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}

	return posts, nil
}

// CountByUser はユーザーの記事総数を返す。
func (r *PostgresPostRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CreateWithTitleUse は記事の作成、タイトルのis_used=true遷移、
// 使用量カウンタのアトミック加算を同一トランザクションで行う。
// タイトルが既に記事を持つ場合はErrTitleAlreadyUsedを返す。
func (r *PostgresPostRepo) CreateWithTitleUse(ctx context.Context, post *model.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 記事を作成（ux_posts_title_idが二重生成を拒否する）
	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title_id, content, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.UserID, post.TitleID, post.Content,
		post.Status, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrTitleAlreadyUsed
		}
		return fmt.Errorf("記事の作成に失敗しました: %w", err)
	}

	// タイトルを使用済みに遷移
	_, err = tx.ExecContext(ctx,
		`UPDATE titles SET is_used = true, updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		post.TitleID, post.UserID,
	)
	if err != nil {
		return fmt.Errorf("タイトルの使用済み遷移に失敗しました: %w", err)
	}

	// 使用量カウンタをストア側の更新式でアトミックに加算
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_usage (user_id, posts_count, updated_at)
		 VALUES ($1, 1, now())
		 ON CONFLICT (user_id)
		 DO UPDATE SET posts_count = user_usage.posts_count + 1, updated_at = now()`,
		post.UserID,
	)
	if err != nil {
		return fmt.Errorf("使用量カウンタの加算に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// UpdateFields は記事のcontent/statusを部分更新する。
// nilのフィールドは変更しない。更新後の記事を返す。
// 対象が存在しない、または他ユーザー所有の場合はnilを返す。
func (r *PostgresPostRepo) UpdateFields(ctx context.Context, userID, postID string, content *string, status *model.PostStatus) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE posts SET
		    content = COALESCE($3::text, content),
		    status = COALESCE($4::text, status),
		    updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, title_id, content, status, created_at, updated_at`,
		postID, userID, content, (*string)(status),
	).Scan(
		&post.ID, &post.UserID, &post.TitleID, &post.Content,
		&post.Status, &post.CreatedAt, &post.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の更新に失敗しました: %w", err)
	}

	return post, nil
}

// DeleteWithTitleRelease は記事の削除、タイトルのis_used=false復帰、
// 使用量カウンタのアトミック減算（0未満に下げない）を同一トランザクションで行う。
// 対象が存在しない、または他ユーザー所有の場合はsql.ErrNoRowsを返す。
func (r *PostgresPostRepo) DeleteWithTitleRelease(ctx context.Context, userID, postID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 記事を削除し、参照していたタイトルIDを取得
	var titleID string
	err = tx.QueryRowContext(ctx,
		`DELETE FROM posts WHERE id = $1 AND user_id = $2 RETURNING title_id`,
		postID, userID,
	).Scan(&titleID)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}

	// タイトルを未使用に復帰
	_, err = tx.ExecContext(ctx,
		`UPDATE titles SET is_used = false, updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		titleID, userID,
	)
	if err != nil {
		return fmt.Errorf("タイトルの未使用復帰に失敗しました: %w", err)
	}

	// 使用量カウンタをアトミックに減算（GREATESTで0未満を防ぐ）
	_, err = tx.ExecContext(ctx,
		`UPDATE user_usage
		 SET posts_count = GREATEST(posts_count - 1, 0), updated_at = now()
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("使用量カウンタの減算に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
