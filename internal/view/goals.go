package view

import (
	"context"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/optimistic"
	"github.com/mypt/mypt/internal/paginate"
)

// GoalBackend は目標ビューが使用するリモート操作。
type GoalBackend interface {
	ListGoals(ctx context.Context, customerID string) ([]model.Goal, error)
	AddGoal(ctx context.Context, customerID string, input facade.GoalInput) (*model.Goal, error)
	SetGoalCompleted(ctx context.Context, customerID, goalID string, completed bool) error
	DeleteGoals(ctx context.Context, customerID string, goalIDs []string) error
}

// GoalsView は顧客1人の目標一覧ビュー。
type GoalsView struct {
	backend    GoalBackend
	opts       Options
	customerID string
	goals      *optimistic.List[model.Goal]
	status     loadStatus
}

// NewGoalsView はGoalsViewを生成する。
func NewGoalsView(backend GoalBackend, customerID string, opts Options) *GoalsView {
	return &GoalsView{
		backend:    backend,
		opts:       opts.normalize(),
		customerID: customerID,
		goals:      optimistic.NewList[model.Goal](nil),
	}
}

// Load は目標一覧を読み込む。
func (v *GoalsView) Load(ctx context.Context) error {
	return load(ctx, v.opts.Logger, v.goals, &v.status, "goals", v.fetch)
}

func (v *GoalsView) fetch(ctx context.Context) ([]model.Goal, error) {
	return v.backend.ListGoals(ctx, v.customerID)
}

// Goals は現在の目標一覧を返す。
func (v *GoalsView) Goals() []model.Goal {
	return v.goals.Items()
}

// Page は目標一覧の指定ページを返す。
func (v *GoalsView) Page(page, perPage int) paginate.Page[model.Goal] {
	return paginate.Paginate(v.goals.Items(), page, perPage)
}

// Error は直近の読み込みエラーメッセージを返す。
func (v *GoalsView) Error() string {
	return v.status.get()
}

// Add は目標を追加する。成功後はサーバーで採番されたIDを反映するため再取得する。
func (v *GoalsView) Add(ctx context.Context, input facade.GoalInput) (optimistic.Outcome, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.TargetValue = strings.TrimSpace(input.TargetValue)

	return optimistic.Run(ctx, v.opts.Runner, v.goals, optimistic.Mutation[model.Goal]{
		Name:     "add_goal",
		Validate: func() error { return facade.Validate(input) },
		Apply: func(items []model.Goal) []model.Goal {
			target, _ := strconv.ParseFloat(input.TargetValue, 64)
			return append(items, model.Goal{
				ID:          pendingID(),
				CustomerID:  v.customerID,
				Name:        input.Name,
				TargetValue: target,
			})
		},
		Remote: func(ctx context.Context) error {
			_, err := v.backend.AddGoal(ctx, v.customerID, input)
			return err
		},
		Refetch:        v.fetch,
		Reconcile:      true,
		FailureMessage: failureMessage("add goal"),
	})
}

// Toggle は目標の達成状態を反転する。
func (v *GoalsView) Toggle(ctx context.Context, goalID string) (optimistic.Outcome, error) {
	current, found := lo.Find(v.goals.Items(), func(g model.Goal) bool { return g.ID == goalID })
	completed := !current.Completed

	return optimistic.Run(ctx, v.opts.Runner, v.goals, optimistic.Mutation[model.Goal]{
		Name: "toggle_goal",
		Validate: func() error {
			if !found {
				return model.NewGoalNotFoundError(goalID)
			}
			return nil
		},
		Apply: func(items []model.Goal) []model.Goal {
			return lo.Map(items, func(g model.Goal, _ int) model.Goal {
				if g.ID == goalID {
					g.Completed = completed
				}
				return g
			})
		},
		Remote: func(ctx context.Context) error {
			return v.backend.SetGoalCompleted(ctx, v.customerID, goalID, completed)
		},
		Refetch:        v.fetch,
		FailureMessage: failureMessage("update goal"),
	})
}

// RemoveCompleted は達成済みの目標をまとめて削除する。
// 達成済みの目標がない場合は何もせずOutcomeUnchangedを返す。
func (v *GoalsView) RemoveCompleted(ctx context.Context) (optimistic.Outcome, error) {
	ids := lo.FilterMap(v.goals.Items(), func(g model.Goal, _ int) (string, bool) {
		return g.ID, g.Completed
	})
	if len(ids) == 0 {
		return optimistic.OutcomeUnchanged, nil
	}

	return optimistic.Run(ctx, v.opts.Runner, v.goals, optimistic.Mutation[model.Goal]{
		Name: "remove_completed_goals",
		Apply: func(items []model.Goal) []model.Goal {
			return lo.Reject(items, func(g model.Goal, _ int) bool { return lo.Contains(ids, g.ID) })
		},
		Remote: func(ctx context.Context) error {
			return v.backend.DeleteGoals(ctx, v.customerID, ids)
		},
		Refetch:        v.fetch,
		FailureMessage: failureMessage("remove completed goals"),
	})
}
