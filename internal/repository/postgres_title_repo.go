package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blogforge/internal/model"
)

// PostgresTitleRepo はPostgreSQLを使用したタイトルリポジトリ。
type PostgresTitleRepo struct {
	db *sql.DB
}

// NewPostgresTitleRepo はPostgresTitleRepoを生成する。
func NewPostgresTitleRepo(db *sql.DB) *PostgresTitleRepo {
	return &PostgresTitleRepo{db: db}
}

// CreateBatch は複数タイトルを同一トランザクションで一括作成する。
func (r *PostgresTitleRepo) CreateBatch(ctx context.Context, titles []*model.Title) error {
	if len(titles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for _, title := range titles {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO titles (id, user_id, topic, title_text, is_used, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			title.ID, title.UserID, title.Topic, title.TitleText,
			title.IsUsed, title.CreatedAt, title.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("タイトルの作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// FindByUser はユーザー所有の指定IDタイトルを取得する。
// 存在しない、または他ユーザー所有の場合はnilを返す。
func (r *PostgresTitleRepo) FindByUser(ctx context.Context, userID, titleID string) (*model.Title, error) {
	title := &model.Title{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, topic, title_text, is_used, created_at, updated_at
		 FROM titles WHERE id = $1 AND user_id = $2`,
		titleID, userID,
	).Scan(
		&title.ID, &title.UserID, &title.Topic, &title.TitleText,
		&title.IsUsed, &title.CreatedAt, &title.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タイトルの取得に失敗しました: %w", err)
	}

	return title, nil
}

// ListByUser はユーザーのタイトル一覧を作成日時降順で返す。
func (r *PostgresTitleRepo) ListByUser(ctx context.Context, userID string, filter model.TitleFilter) ([]*model.Title, error) {
	query := `SELECT id, user_id, topic, title_text, is_used, created_at, updated_at
	          FROM titles WHERE user_id = $1`

	switch filter {
	case model.TitleFilterUnused:
		query += " AND is_used = false"
	case model.TitleFilterUsed:
		query += " AND is_used = true"
	case model.TitleFilterAll:
		// 全件: 追加条件なし
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("タイトル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var titles []*model.Title
	for rows.Next() {
		title := &model.Title{}
		if err := rows.Scan(
			&title.ID, &title.UserID, &title.Topic, &title.TitleText,
			&title.IsUsed, &title.CreatedAt, &title.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("タイトル行の読み取りに失敗しました: %w", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タイトル一覧の走査に失敗しました: %w", err)
	}

	return titles, nil
}

// UpdateText はタイトル本文を更新する。
func (r *PostgresTitleRepo) UpdateText(ctx context.Context, titleID, text string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE titles SET title_text = $2, updated_at = now() WHERE id = $1`,
		titleID, text,
	)
	if err != nil {
		return fmt.Errorf("タイトル本文の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TitleRepository = (*PostgresTitleRepo)(nil)
