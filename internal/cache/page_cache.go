package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// CacheRecorder はキャッシュヒット・ミスの記録インターフェース。
type CacheRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// PageCache は記事一覧ページのユーザースコープキャッシュ。
//
// キーはバージョンスタンプ方式を採用する。各ユーザーの世代番号
// （user:<id>:posts_ver）をキーに織り込み、無効化は世代番号の
// INCR 1回で行う。プレフィックス配下の全キーを列挙して個別削除する
// 方式と異なり、無効化がアトミックになる。旧世代のキーは到達不能に
// なり、TTLで自然に消滅する。
//
// キャッシュ操作の失敗はすべてログに記録して握りつぶす。読み取りは
// ミス扱いとなりストアへフォールスルーし、無効化の失敗もユーザー
// 操作を妨げない（TTLが上限の古さを保証する）。
type PageCache struct {
	store   Store
	logger  *slog.Logger
	metrics CacheRecorder
	ttl     time.Duration
}

// NewPageCache はPageCacheの新しいインスタンスを生成する。
func NewPageCache(store Store, logger *slog.Logger, metrics CacheRecorder, ttl time.Duration) *PageCache {
	return &PageCache{
		store:   store,
		logger:  logger,
		metrics: metrics,
		ttl:     ttl,
	}
}

// versionKey はユーザーの世代番号キーを返す。
func versionKey(userID string) string {
	return fmt.Sprintf("user:%s:posts_ver", userID)
}

// pageKey は世代付きのページキーを返す。
func pageKey(userID string, version int64, page int) string {
	return fmt.Sprintf("user:%s:v%d:posts_page_%d", userID, version, page)
}

// countKey は世代付きの総件数キーを返す。
func countKey(userID string, version int64) string {
	return fmt.Sprintf("user:%s:v%d:posts_total_count", userID, version)
}

// currentVersion はユーザーの現在の世代番号を読み取る。
// 世代キーが存在しない場合は0を返す。
func (c *PageCache) currentVersion(ctx context.Context, userID string) (int64, error) {
	value, ok, err := c.store.Get(ctx, versionKey(userID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("世代番号のパースに失敗しました: %w", err)
	}
	return version, nil
}

// GetPage はキャッシュから指定ページのペイロードと総件数を取得する。
// ページと総件数が揃ってヒットした場合のみok=trueを返す。
func (c *PageCache) GetPage(ctx context.Context, userID string, page int) (payload []byte, totalCount int, ok bool) {
	version, err := c.currentVersion(ctx, userID)
	if err != nil {
		c.logger.Warn("キャッシュ世代番号の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordCacheMiss()
		return nil, 0, false
	}

	value, hit, err := c.store.Get(ctx, pageKey(userID, version, page))
	if err != nil || !hit {
		if err != nil {
			c.logger.Warn("キャッシュページの取得に失敗しました",
				slog.String("user_id", userID),
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
		}
		c.metrics.RecordCacheMiss()
		return nil, 0, false
	}

	countValue, hit, err := c.store.Get(ctx, countKey(userID, version))
	if err != nil || !hit {
		c.metrics.RecordCacheMiss()
		return nil, 0, false
	}
	count, err := strconv.Atoi(countValue)
	if err != nil {
		c.metrics.RecordCacheMiss()
		return nil, 0, false
	}

	c.metrics.RecordCacheHit()
	return []byte(value), count, true
}

// SetPage は指定ページのペイロードと総件数をTTL付きでキャッシュする。
func (c *PageCache) SetPage(ctx context.Context, userID string, page int, payload []byte, totalCount int) {
	version, err := c.currentVersion(ctx, userID)
	if err != nil {
		c.logger.Warn("キャッシュ世代番号の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.store.Set(ctx, pageKey(userID, version, page), string(payload), c.ttl); err != nil {
		c.logger.Warn("キャッシュページの保存に失敗しました",
			slog.String("user_id", userID),
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.store.Set(ctx, countKey(userID, version), strconv.Itoa(totalCount), c.ttl); err != nil {
		c.logger.Warn("キャッシュ総件数の保存に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Invalidate はユーザーの全キャッシュページを無効化する。
// 世代番号のINCR 1回のアトミック操作で、既存の全ページキーが
// 到達不能になる。
func (c *PageCache) Invalidate(ctx context.Context, userID string) {
	if _, err := c.store.Incr(ctx, versionKey(userID)); err != nil {
		c.logger.Warn("キャッシュの無効化に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
