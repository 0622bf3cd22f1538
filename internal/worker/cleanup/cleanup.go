// Package cleanup は有効期限切れの共有コードの自動削除ジョブを提供する。
// 使用済みかどうかに関わらず、expires_atを過ぎたコードを定期的に削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/bptogether/internal/metrics"
)

// ExpiredCodeDeleter は有効期限切れの共有コードを削除するインターフェース。
type ExpiredCodeDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupJob は有効期限切れの共有コードの自動削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	codes   ExpiredCodeDeleter
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(codes ExpiredCodeDeleter, logger *slog.Logger, mc metrics.MetricsCollector) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CleanupJob{
		codes:   codes,
		logger:  logger,
		metrics: mc,
		now:     time.Now,
	}
}

// Run は有効期限切れの共有コードを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.codes.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("共有コードクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("共有コードクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordExpiredCodesDeleted(deletedCount)

	duration := time.Since(start)
	j.logger.Info("共有コードクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
