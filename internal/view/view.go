// Package view はトレーナーと顧客が操作する一覧ビューを提供する。
//
// 各ビューはoptimistic.Listで一覧を保持し、読み込みは単純な要求応答で、
// 変更はoptimistic.Runによる楽観的更新で行う。
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mypt/mypt/internal/optimistic"
)

// ErrNothingSelected は対象が1件もない一括操作を表す。リモートは呼び出さない。
var ErrNothingSelected = errors.New("nothing selected")

// pendingIDPrefix はリモートでの採番前に一覧へ仮追加する要素のIDの接頭辞。
const pendingIDPrefix = "pending-"

func pendingID() string {
	return pendingIDPrefix + uuid.NewString()
}

// loadStatus は直近の読み込みエラーを保持する。
type loadStatus struct {
	mu  sync.Mutex
	msg string
}

func (s *loadStatus) set(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = msg
}

func (s *loadStatus) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msg
}

// load は一覧を取得して置き換える。失敗した場合は一覧を空にし、エラーメッセージを設定する。
func load[T any](ctx context.Context, logger *slog.Logger, list *optimistic.List[T], status *loadStatus, what string, fetch func(context.Context) ([]T, error)) error {
	items, err := fetch(ctx)
	if err != nil {
		logger.Warn("failed to load list",
			slog.String("list", what),
			slog.String("error", err.Error()),
		)
		list.Set(nil)
		status.set(fmt.Sprintf("Failed to load %s.", what))
		return err
	}
	list.Set(items)
	status.set("")
	return nil
}

func failureMessage(action string) string {
	return fmt.Sprintf("Failed to %s. Please try again.", action)
}

// Options はビュー共通の設定。
type Options struct {
	Runner *optimistic.Runner
	Logger *slog.Logger
}

func (o Options) normalize() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Runner == nil {
		o.Runner = optimistic.NewRunner(optimistic.NewBanner(0), o.Logger, nil)
	}
	return o
}
