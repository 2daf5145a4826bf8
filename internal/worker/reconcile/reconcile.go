// Package reconcile は使用量カウンタの整合ジョブを提供する。
// user_usage.posts_countは記事の書き込みトランザクション内で更新されるが、
// 手動のデータ修正や障害復旧でドリフトする可能性があるため、
// 定期的に実記事数から再計算して補正する。
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// UsageRecomputer は使用量カウンタの再計算インターフェース。
// repository.UsageRepositoryの部分集合として定義する。
type UsageRecomputer interface {
	// RecomputeAll は全ユーザーのposts_countを実記事数から再計算し、更新行数を返す。
	RecomputeAll(ctx context.Context) (int64, error)
}

// ReconcileJob は使用量カウンタの定期整合ジョブ。
type ReconcileJob struct {
	usage  UsageRecomputer
	logger *slog.Logger
}

// NewReconcileJob は新しいReconcileJobを生成する。
func NewReconcileJob(usage UsageRecomputer, logger *slog.Logger) *ReconcileJob {
	return &ReconcileJob{
		usage:  usage,
		logger: logger,
	}
}

// Run はカウンタの再計算を1回実行する。
// ドリフトがない場合は更新行数0で正常終了する。
func (j *ReconcileJob) Run(ctx context.Context) error {
	start := time.Now()

	updated, err := j.usage.RecomputeAll(ctx)
	if err != nil {
		j.logger.Error("使用量カウンタの整合に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("使用量カウンタの整合に失敗: %w", err)
	}

	duration := time.Since(start)
	if updated > 0 {
		j.logger.Warn("使用量カウンタのドリフトを補正しました",
			slog.Int64("updated_count", updated),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
	} else {
		j.logger.Info("使用量カウンタの整合が完了しました",
			slog.Int64("updated_count", updated),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
	}

	return nil
}

// Start は指定間隔のティッカーで整合ジョブを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *ReconcileJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("使用量整合ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("使用量整合の実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("使用量整合ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("使用量整合の実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
