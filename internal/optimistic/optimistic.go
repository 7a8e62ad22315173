// Package optimistic は一覧に対する楽観的更新を提供する。
//
// ローカルの一覧を先に書き換えてからリモートへ書き込み、
// 失敗した場合はリモートの正しい一覧を再取得して巻き戻す。
package optimistic

import (
	"context"
	"fmt"
	"log/slog"
)

// Outcome は楽観的更新の結果。
type Outcome int

const (
	// OutcomeInvalidInput は入力検証に失敗し、リモート呼び出しを行わなかったことを表す。
	OutcomeInvalidInput Outcome = iota
	// OutcomeRemoteConfirmed はリモート書き込みに成功したことを表す。
	OutcomeRemoteConfirmed
	// OutcomeRolledBack はリモート書き込みに失敗し、一覧を巻き戻したことを表す。
	OutcomeRolledBack
	// OutcomeUnchanged は変更対象がなく、何も行わなかったことを表す。
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalidInput:
		return "invalid_input"
	case OutcomeRemoteConfirmed:
		return "remote_confirmed"
	case OutcomeRolledBack:
		return "rolled_back"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Recorder は楽観的更新の結果を記録する。
type Recorder interface {
	RecordOptimisticOutcome(outcome string)
}

// Mutation は一覧に対する1回の楽観的更新を表す。
type Mutation[T any] struct {
	// Name はログ出力用の操作名。
	Name string
	// Validate は入力を検証する。nilの場合は検証しない。
	Validate func() error
	// Apply はローカルの一覧に変更を適用する。nilの場合は一覧を変更しない。
	Apply func(items []T) []T
	// Remote はリモートへの書き込みを行う。必須。
	Remote func(ctx context.Context) error
	// Refetch はリモートから正しい一覧を取得する。
	Refetch func(ctx context.Context) ([]T, error)
	// Reconcile がtrueの場合、成功後にも再取得して一覧を置き換える。
	// サーバー側で採番されるIDを反映する場合に使用する。
	Reconcile bool
	// FailureMessage はリモート失敗時にバナーへ表示するメッセージ。
	FailureMessage string
}

// Runner は楽観的更新を実行する。
type Runner struct {
	banner   *Banner
	logger   *slog.Logger
	recorder Recorder
}

// NewRunner はRunnerを生成する。loggerがnilの場合はslog.Default()、recorderはnilでもよい。
func NewRunner(banner *Banner, logger *slog.Logger, recorder Recorder) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{banner: banner, logger: logger, recorder: recorder}
}

// Banner は失敗通知用のバナーを返す。
func (r *Runner) Banner() *Banner {
	return r.banner
}

// Run はmを一覧に適用する。
//
// 入力検証に失敗した場合はリモートを呼ばずにOutcomeInvalidInputと検証エラーを返す。
// リモート書き込みに成功した場合はOutcomeRemoteConfirmedを返す。
// 失敗した場合は一覧を再取得して置き換え、バナーにメッセージを表示して
// OutcomeRolledBackとリモートのエラーを返す。再取得にも失敗した場合は
// 適用前の一覧に戻す。
func Run[T any](ctx context.Context, r *Runner, list *List[T], m Mutation[T]) (Outcome, error) {
	if m.Validate != nil {
		if err := m.Validate(); err != nil {
			r.record(OutcomeInvalidInput)
			return OutcomeInvalidInput, err
		}
	}

	apply := m.Apply
	if apply == nil {
		apply = func(items []T) []T { return items }
	}
	snapshot := list.Update(apply)

	if err := m.Remote(ctx); err != nil {
		r.logger.Warn("optimistic update failed, rolling back",
			slog.String("operation", m.Name),
			slog.String("error", err.Error()),
		)
		rollback(ctx, r.logger, list, m, snapshot)
		if r.banner != nil && m.FailureMessage != "" {
			r.banner.Show(m.FailureMessage)
		}
		r.record(OutcomeRolledBack)
		return OutcomeRolledBack, err
	}

	if m.Reconcile && m.Refetch != nil {
		items, err := m.Refetch(ctx)
		if err != nil {
			// 書き込み自体は成功しているためローカルの一覧を維持する
			r.logger.Warn("failed to reconcile after update",
				slog.String("operation", m.Name),
				slog.String("error", err.Error()),
			)
		} else {
			list.Set(items)
		}
	}

	r.record(OutcomeRemoteConfirmed)
	return OutcomeRemoteConfirmed, nil
}

// rollback はリモートの一覧で置き換える。取得できない場合は適用前の一覧に戻す。
func rollback[T any](ctx context.Context, logger *slog.Logger, list *List[T], m Mutation[T], snapshot []T) {
	if m.Refetch == nil {
		list.Set(snapshot)
		return
	}
	items, err := m.Refetch(ctx)
	if err != nil {
		logger.Warn("failed to refetch after rollback, restoring snapshot",
			slog.String("operation", m.Name),
			slog.String("error", err.Error()),
		)
		list.Set(snapshot)
		return
	}
	list.Set(items)
}

func (r *Runner) record(o Outcome) {
	if r.recorder != nil {
		r.recorder.RecordOptimisticOutcome(o.String())
	}
}
