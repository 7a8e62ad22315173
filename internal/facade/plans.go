package facade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mypt/mypt/internal/docstore"
	"github.com/mypt/mypt/internal/model"
)

// PlanEntryInput はプランに含めるエクササイズ1件分の入力。
type PlanEntryInput struct {
	ExerciseID string `json:"exerciseId" validate:"required"`
	Sets       int    `json:"sets" validate:"min=1,max=20"`
	Reps       int    `json:"reps" validate:"min=1,max=100"`
}

// PlanInput はプラン保存の入力。IDが空の場合は新規作成する。
type PlanInput struct {
	ID      string           `json:"id"`
	Name    string           `json:"name" validate:"required,max=50"`
	Entries []PlanEntryInput `json:"entries" validate:"required,min=1,max=50,dive"`
}

// ListPlans は顧客のプラン一覧を返す。
func (f *Facade) ListPlans(ctx context.Context, actor model.Actor, customerID string) ([]model.Plan, error) {
	if err := f.authorizeCustomerRead(ctx, actor, customerID); err != nil {
		return nil, err
	}
	docs, err := f.store.List(ctx, plansPath(customerID))
	if err != nil {
		return nil, fmt.Errorf("プラン一覧の取得に失敗しました: %w", err)
	}
	return docstore.DecodeAll[model.Plan](docs)
}

// SavePlan は担当顧客のプランを作成または置換する。
// 全てのエントリが既存のエクササイズを参照している必要がある。
func (f *Facade) SavePlan(ctx context.Context, actor model.Actor, customerID string, input PlanInput) (*model.Plan, error) {
	input.Name = f.sanitizer.PlainText(input.Name)
	if err := f.check(input); err != nil {
		return nil, err
	}
	if err := f.authorizeTrainerOf(ctx, actor, customerID); err != nil {
		return nil, err
	}
	if err := f.checkExercisesExist(ctx, input.Entries); err != nil {
		return nil, err
	}

	now := f.now()
	plan := model.Plan{
		ID:         input.ID,
		CustomerID: customerID,
		Name:       input.Name,
		Entries: lo.Map(input.Entries, func(e PlanEntryInput, _ int) model.PlanEntry {
			return model.PlanEntry{ExerciseID: e.ExerciseID, Sets: e.Sets, Reps: e.Reps}
		}),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if plan.ID == "" {
		plan.ID = uuid.New().String()
	} else {
		existing, err := f.store.Get(ctx, plansPath(customerID), plan.ID)
		if err != nil {
			return nil, fmt.Errorf("プランの取得に失敗しました: %w", err)
		}
		if existing == nil {
			return nil, model.NewPlanNotFoundError(plan.ID)
		}
		prev, err := docstore.Decode[model.Plan](*existing)
		if err != nil {
			return nil, err
		}
		plan.CreatedAt = prev.CreatedAt
	}

	if err := f.store.Set(ctx, plansPath(customerID), plan.ID, plan); err != nil {
		return nil, fmt.Errorf("プランの保存に失敗しました: %w", err)
	}

	slog.Info("plan saved",
		slog.String("trainer_id", actor.UserID),
		slog.String("customer_id", customerID),
		slog.String("plan_id", plan.ID),
		slog.Int("entries", len(plan.Entries)),
	)
	return &plan, nil
}

func (f *Facade) checkExercisesExist(ctx context.Context, entries []PlanEntryInput) error {
	ids := lo.Uniq(lo.Map(entries, func(e PlanEntryInput, _ int) string { return e.ExerciseID }))
	for _, id := range ids {
		doc, err := f.store.Get(ctx, exercisesPath, id)
		if err != nil {
			return fmt.Errorf("エクササイズの取得に失敗しました: %w", err)
		}
		if doc == nil {
			return model.NewExerciseNotFoundError(id)
		}
	}
	return nil
}

// DeletePlan は担当顧客のプランを削除する。
func (f *Facade) DeletePlan(ctx context.Context, actor model.Actor, customerID, planID string) error {
	if err := f.authorizeTrainerOf(ctx, actor, customerID); err != nil {
		return err
	}
	if err := f.store.Delete(ctx, plansPath(customerID), planID); err != nil {
		return fmt.Errorf("プランの削除に失敗しました: %w", err)
	}
	return nil
}
