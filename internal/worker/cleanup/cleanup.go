// Package cleanup は失効したセッションの定期削除ジョブを提供する。
// 無操作タイムアウトを超過したセッションと、絶対有効期限を過ぎたセッションを
// 一定間隔で削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの実行間隔のデフォルト値。
const DefaultInterval = 10 * time.Minute

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Recorder は削除件数を記録する。
type Recorder interface {
	RecordSessionsCleaned(count int64)
}

// SessionCleanupJob は失効セッションの削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type SessionCleanupJob struct {
	db       Executor
	logger   *slog.Logger
	recorder Recorder
	timeout  time.Duration
	now      func() time.Time
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
// timeoutはサーバーの無操作タイムアウトと同じ値を指定する。recorderはnilでもよい。
func NewSessionCleanupJob(db Executor, logger *slog.Logger, recorder Recorder, timeout time.Duration) *SessionCleanupJob {
	return &SessionCleanupJob{
		db:       db,
		logger:   logger,
		recorder: recorder,
		timeout:  timeout,
		now:      time.Now,
	}
}

const deleteExpiredSessionsQuery = `DELETE FROM sessions WHERE expires_at <= $1 OR last_active_at <= $2`

// Run は失効したセッションを削除し、削除件数を返す。
// 最終アクティブ日時からtimeout以上経過したものは失効とみなす。
func (j *SessionCleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	now := j.now().UTC()
	idleBefore := now.Add(-j.timeout)

	result, err := j.db.ExecContext(ctx, deleteExpiredSessionsQuery, now, idleBefore)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsCleaned(deletedCount)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("idle_timeout", j.timeout),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deletedCount, nil
}

// Start は起動直後に1回実行し、以降interval毎に実行する。
// ctxがキャンセルされるまでブロックする。実行エラーはログに記録して継続する。
func (j *SessionCleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session cleanup stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *SessionCleanupJob) runOnce(ctx context.Context) {
	// エラーはRun内でログ出力済み
	_, _ = j.Run(ctx)
}
