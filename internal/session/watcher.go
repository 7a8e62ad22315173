package session

import (
	"context"
	"log/slog"
	"time"
)

// Watcher はセッションの失効を定期的に確認する。
type Watcher struct {
	store     *Store
	interval  time.Duration
	onExpired func(Status)
	logger    *slog.Logger
}

// NewWatcher はWatcherを生成する。
// onExpiredはセッションが失効または存在しないと判定されたときに一度だけ呼ばれる。
func NewWatcher(store *Store, interval time.Duration, onExpired func(Status)) *Watcher {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Watcher{
		store:     store,
		interval:  interval,
		onExpired: onExpired,
		logger:    store.logger,
	}
}

// Run は開始直後に一度チェックし、以降interval毎にチェックする。
// セッションが有効でなくなるか、ctxがキャンセルされるまでブロックする。
func (w *Watcher) Run(ctx context.Context) {
	if w.check() {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.check() {
				return
			}
		}
	}
}

// check は失効チェックを行い、監視を終了すべき場合にtrueを返す。
// ストレージのエラーは一時的なものとみなし、次回のチェックで再判定する。
func (w *Watcher) check() bool {
	status, err := w.store.CheckAndExpire()
	if err != nil {
		w.logger.Warn("session check failed", slog.String("error", err.Error()))
		return false
	}
	if status == StatusActive {
		return false
	}
	if w.onExpired != nil {
		w.onExpired(status)
	}
	return true
}
