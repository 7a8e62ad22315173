package view

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/optimistic"
)

// PlanBackend はプランビューが使用するリモート操作。
type PlanBackend interface {
	ListPlans(ctx context.Context, customerID string) ([]model.Plan, error)
	SavePlan(ctx context.Context, customerID string, input facade.PlanInput) (*model.Plan, error)
	DeletePlan(ctx context.Context, customerID, planID string) error
}

// PlansView は顧客1人のトレーニングプラン一覧ビュー。
type PlansView struct {
	backend    PlanBackend
	opts       Options
	customerID string
	plans      *optimistic.List[model.Plan]
	status     loadStatus
}

// NewPlansView はPlansViewを生成する。
func NewPlansView(backend PlanBackend, customerID string, opts Options) *PlansView {
	return &PlansView{
		backend:    backend,
		opts:       opts.normalize(),
		customerID: customerID,
		plans:      optimistic.NewList[model.Plan](nil),
	}
}

// Load はプラン一覧を読み込む。
func (v *PlansView) Load(ctx context.Context) error {
	return load(ctx, v.opts.Logger, v.plans, &v.status, "plans", v.fetch)
}

func (v *PlansView) fetch(ctx context.Context) ([]model.Plan, error) {
	return v.backend.ListPlans(ctx, v.customerID)
}

// Plans は現在のプラン一覧を返す。
func (v *PlansView) Plans() []model.Plan {
	return v.plans.Items()
}

// Error は直近の読み込みエラーメッセージを返す。
func (v *PlansView) Error() string {
	return v.status.get()
}

// Save はプランを作成または置き換える。input.IDが空の場合は新規作成する。
func (v *PlansView) Save(ctx context.Context, input facade.PlanInput) (optimistic.Outcome, error) {
	input.Name = strings.TrimSpace(input.Name)
	entries := lo.Map(input.Entries, func(e facade.PlanEntryInput, _ int) model.PlanEntry {
		return model.PlanEntry{ExerciseID: e.ExerciseID, Sets: e.Sets, Reps: e.Reps}
	})

	return optimistic.Run(ctx, v.opts.Runner, v.plans, optimistic.Mutation[model.Plan]{
		Name:     "save_plan",
		Validate: func() error { return facade.Validate(input) },
		Apply: func(items []model.Plan) []model.Plan {
			if input.ID != "" {
				if _, i, ok := lo.FindIndexOf(items, func(p model.Plan) bool { return p.ID == input.ID }); ok {
					items[i].Name = input.Name
					items[i].Entries = entries
					return items
				}
			}
			return append(items, model.Plan{
				ID:         pendingID(),
				CustomerID: v.customerID,
				Name:       input.Name,
				Entries:    entries,
			})
		},
		Remote: func(ctx context.Context) error {
			_, err := v.backend.SavePlan(ctx, v.customerID, input)
			return err
		},
		Refetch:        v.fetch,
		Reconcile:      true,
		FailureMessage: failureMessage("save plan"),
	})
}

// Delete はプランを削除する。
func (v *PlansView) Delete(ctx context.Context, planID string) (optimistic.Outcome, error) {
	return optimistic.Run(ctx, v.opts.Runner, v.plans, optimistic.Mutation[model.Plan]{
		Name: "delete_plan",
		Validate: func() error {
			if planID == "" {
				return ErrNothingSelected
			}
			return nil
		},
		Apply: func(items []model.Plan) []model.Plan {
			return lo.Reject(items, func(p model.Plan, _ int) bool { return p.ID == planID })
		},
		Remote: func(ctx context.Context) error {
			return v.backend.DeletePlan(ctx, v.customerID, planID)
		},
		Refetch:        v.fetch,
		FailureMessage: failureMessage("delete plan"),
	})
}
