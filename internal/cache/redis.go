// Package cache は記事一覧ページの機会的キャッシュを提供する。
// キャッシュはあくまで高速化のための層であり、障害時は常に
// ストアへのフォールスルーで処理を継続する。
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store はキーバリューキャッシュの操作インターフェース。
// テスト時にインメモリのフェイクに差し替え可能。
type Store interface {
	// Get はキーの値を取得する。キーが存在しない場合はok=falseを返す。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set はキーに値をTTL付きで設定する。
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Incr はキーの整数値をアトミックに加算し、加算後の値を返す。
	// キーが存在しない場合は0から開始する。
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisStore はgo-redisによるStore実装。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore は接続URL（例: "redis://localhost:6379/0"）からRedisStoreを生成する。
// 接続確認は行わない。必要であれば呼び出し側でPingを使用すること。
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Ping はRedisへの接続を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close はRedis接続を閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get はキーの値を取得する。キーが存在しない場合はok=falseを返す。
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GET failed: %w", err)
	}
	return value, true, nil
}

// Set はキーに値をTTL付きで設定する。
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

// Incr はキーの整数値をアトミックに加算し、加算後の値を返す。
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis INCR failed: %w", err)
	}
	return value, nil
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)
