package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeStore はStoreのインメモリフェイク実装。
type fakeStore struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	incrErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (s *fakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *fakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *fakeStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrErr != nil {
		return 0, s.incrErr
	}
	n, _ := strconv.ParseInt(s.data[key], 10, 64)
	n++
	s.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

var _ Store = (*fakeStore)(nil)

// countingRecorder はCacheRecorderのカウント実装。
type countingRecorder struct {
	hits   int
	misses int
}

func (r *countingRecorder) RecordCacheHit()  { r.hits++ }
func (r *countingRecorder) RecordCacheMiss() { r.misses++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// TestPageCache_SetThenGet は保存したページが総件数とともに取得できることを検証する。
func TestPageCache_SetThenGet(t *testing.T) {
	store := newFakeStore()
	rec := &countingRecorder{}
	c := NewPageCache(store, testLogger(), rec, time.Minute)
	ctx := context.Background()

	c.SetPage(ctx, "user-1", 1, []byte(`[{"id":"p1"}]`), 7)

	payload, count, ok := c.GetPage(ctx, "user-1", 1)
	if !ok {
		t.Fatal("保存したページがヒットしない")
	}
	if string(payload) != `[{"id":"p1"}]` {
		t.Errorf("payload = %q", payload)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
	if rec.hits != 1 {
		t.Errorf("hits = %d, want 1", rec.hits)
	}
}

// TestPageCache_MissOnUnknownPage は未保存ページがミスになることを検証する。
func TestPageCache_MissOnUnknownPage(t *testing.T) {
	store := newFakeStore()
	rec := &countingRecorder{}
	c := NewPageCache(store, testLogger(), rec, time.Minute)

	_, _, ok := c.GetPage(context.Background(), "user-1", 2)
	if ok {
		t.Error("未保存ページはミスになるべき")
	}
	if rec.misses != 1 {
		t.Errorf("misses = %d, want 1", rec.misses)
	}
}

// TestPageCache_KeysAreVersionStamped はキーに世代番号が織り込まれることを検証する。
func TestPageCache_KeysAreVersionStamped(t *testing.T) {
	store := newFakeStore()
	c := NewPageCache(store, testLogger(), &countingRecorder{}, time.Minute)
	ctx := context.Background()

	c.SetPage(ctx, "user-1", 3, []byte("payload"), 1)

	if _, ok := store.data["user:user-1:v0:posts_page_3"]; !ok {
		t.Errorf("世代付きページキーが存在しない: %v", keysOf(store))
	}
	if _, ok := store.data["user:user-1:v0:posts_total_count"]; !ok {
		t.Errorf("世代付き総件数キーが存在しない: %v", keysOf(store))
	}
}

// TestPageCache_InvalidateIsSingleIncr は無効化がINCR 1回で全ページを
// 到達不能にすることを検証する。
func TestPageCache_InvalidateIsSingleIncr(t *testing.T) {
	store := newFakeStore()
	rec := &countingRecorder{}
	c := NewPageCache(store, testLogger(), rec, time.Minute)
	ctx := context.Background()

	c.SetPage(ctx, "user-1", 1, []byte("page1"), 2)
	c.SetPage(ctx, "user-1", 2, []byte("page2"), 2)

	c.Invalidate(ctx, "user-1")

	if store.data["user:user-1:posts_ver"] != "1" {
		t.Errorf("世代番号 = %q, want %q", store.data["user:user-1:posts_ver"], "1")
	}
	if _, _, ok := c.GetPage(ctx, "user-1", 1); ok {
		t.Error("無効化後の旧世代ページがヒットしてはいけない")
	}
	if _, _, ok := c.GetPage(ctx, "user-1", 2); ok {
		t.Error("無効化後の旧世代ページがヒットしてはいけない")
	}

	// 旧世代キーは削除されずTTLで消滅する
	if _, ok := store.data["user:user-1:v0:posts_page_1"]; !ok {
		t.Error("旧世代キーは即時削除しない")
	}
}

// TestPageCache_WriteAfterInvalidateUsesNewVersion は無効化後の書き込みが
// 新世代キーを使用することを検証する。
func TestPageCache_WriteAfterInvalidateUsesNewVersion(t *testing.T) {
	store := newFakeStore()
	c := NewPageCache(store, testLogger(), &countingRecorder{}, time.Minute)
	ctx := context.Background()

	c.Invalidate(ctx, "user-1")
	c.SetPage(ctx, "user-1", 1, []byte("fresh"), 1)

	if _, ok := store.data["user:user-1:v1:posts_page_1"]; !ok {
		t.Errorf("新世代キーで書き込まれていない: %v", keysOf(store))
	}

	payload, _, ok := c.GetPage(ctx, "user-1", 1)
	if !ok || string(payload) != "fresh" {
		t.Errorf("新世代の読み取りに失敗: ok=%v payload=%q", ok, payload)
	}
}

// TestPageCache_UserScopedInvalidation は無効化が他ユーザーに影響しないことを検証する。
func TestPageCache_UserScopedInvalidation(t *testing.T) {
	store := newFakeStore()
	c := NewPageCache(store, testLogger(), &countingRecorder{}, time.Minute)
	ctx := context.Background()

	c.SetPage(ctx, "user-1", 1, []byte("a"), 1)
	c.SetPage(ctx, "user-2", 1, []byte("b"), 1)

	c.Invalidate(ctx, "user-1")

	if _, _, ok := c.GetPage(ctx, "user-1", 1); ok {
		t.Error("user-1のキャッシュは無効化されるべき")
	}
	if _, _, ok := c.GetPage(ctx, "user-2", 1); !ok {
		t.Error("user-2のキャッシュは影響を受けるべきではない")
	}
}

// TestPageCache_GetFailureIsMiss はストア障害時の読み取りがミス扱いになることを検証する。
func TestPageCache_GetFailureIsMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	rec := &countingRecorder{}
	c := NewPageCache(store, testLogger(), rec, time.Minute)

	_, _, ok := c.GetPage(context.Background(), "user-1", 1)
	if ok {
		t.Error("ストア障害時はミス扱いにすべき")
	}
	if rec.misses != 1 {
		t.Errorf("misses = %d, want 1", rec.misses)
	}
}

// TestPageCache_SetFailureIsSwallowed はストア障害時の書き込み失敗が
// パニックやエラー伝播にならないことを検証する。
func TestPageCache_SetFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("connection refused")
	c := NewPageCache(store, testLogger(), &countingRecorder{}, time.Minute)

	c.SetPage(context.Background(), "user-1", 1, []byte("payload"), 1)
	// 失敗はログに記録されるのみ。何も保存されない。
	if len(store.data) != 0 {
		t.Errorf("障害時に書き込まれた: %v", keysOf(store))
	}
}

// TestPageCache_InvalidateFailureIsSwallowed は無効化失敗が
// エラー伝播にならないことを検証する。
func TestPageCache_InvalidateFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	store.incrErr = errors.New("connection refused")
	c := NewPageCache(store, testLogger(), &countingRecorder{}, time.Minute)

	c.Invalidate(context.Background(), "user-1")
}

// TestPageCache_CorruptVersionIsMiss は世代番号が壊れている場合に
// ミス扱いになることを検証する。
func TestPageCache_CorruptVersionIsMiss(t *testing.T) {
	store := newFakeStore()
	store.data["user:user-1:posts_ver"] = "not-a-number"
	rec := &countingRecorder{}
	c := NewPageCache(store, testLogger(), rec, time.Minute)

	_, _, ok := c.GetPage(context.Background(), "user-1", 1)
	if ok {
		t.Error("世代番号が壊れている場合はミス扱いにすべき")
	}
	if rec.misses != 1 {
		t.Errorf("misses = %d, want 1", rec.misses)
	}
}

func keysOf(s *fakeStore) []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
