package facade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mypt/mypt/internal/docstore"
	"github.com/mypt/mypt/internal/model"
)

// GoalInput は目標追加の入力。TargetValueはフォーム入力の文字列のまま受け取る。
type GoalInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	TargetValue string `json:"targetValue" validate:"required,numeric"`
}

// ListGoals は顧客の目標一覧を作成日時の昇順で返す。
func (f *Facade) ListGoals(ctx context.Context, actor model.Actor, customerID string) ([]model.Goal, error) {
	if err := f.authorizeCustomerRead(ctx, actor, customerID); err != nil {
		return nil, err
	}
	docs, err := f.store.List(ctx, goalsPath(customerID))
	if err != nil {
		return nil, fmt.Errorf("目標一覧の取得に失敗しました: %w", err)
	}
	return docstore.DecodeAll[model.Goal](docs)
}

// AddGoal は顧客本人の目標を追加し、採番されたIDを含む目標を返す。
func (f *Facade) AddGoal(ctx context.Context, actor model.Actor, customerID string, input GoalInput) (*model.Goal, error) {
	input.Name = f.sanitizer.PlainText(input.Name)
	input.TargetValue = strings.TrimSpace(input.TargetValue)
	if err := f.check(input); err != nil {
		return nil, err
	}
	if err := authorizeCustomerSelf(actor, customerID, "add goals for another customer"); err != nil {
		return nil, err
	}

	target, err := strconv.ParseFloat(input.TargetValue, 64)
	if err != nil {
		return nil, model.NewValidationError(map[string]string{"targetValue": "must be a number"})
	}

	goal := model.Goal{
		CustomerID:  customerID,
		Name:        input.Name,
		TargetValue: target,
		Completed:   false,
		CreatedAt:   f.now(),
	}
	id, err := f.store.Create(ctx, goalsPath(customerID), goal)
	if err != nil {
		return nil, fmt.Errorf("目標の追加に失敗しました: %w", err)
	}
	goal.ID = id

	slog.Info("goal added",
		slog.String("customer_id", customerID),
		slog.String("goal_id", id),
	)
	return &goal, nil
}

// SetGoalCompleted は目標の達成状態を変更する。
func (f *Facade) SetGoalCompleted(ctx context.Context, actor model.Actor, customerID, goalID string, completed bool) error {
	if goalID == "" {
		return model.NewValidationError(map[string]string{"id": "is required"})
	}
	if err := authorizeCustomerSelf(actor, customerID, "update goals for another customer"); err != nil {
		return err
	}

	err := f.store.Update(ctx, goalsPath(customerID), goalID, map[string]any{"completed": completed})
	if errors.Is(err, docstore.ErrNotFound) {
		return model.NewGoalNotFoundError(goalID)
	}
	if err != nil {
		return fmt.Errorf("目標の更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteGoals は指定IDの目標を一括削除する。IDが空の場合は何もしない。
func (f *Facade) DeleteGoals(ctx context.Context, actor model.Actor, customerID string, goalIDs []string) error {
	if len(goalIDs) == 0 {
		return nil
	}
	if err := authorizeCustomerSelf(actor, customerID, "delete goals for another customer"); err != nil {
		return err
	}

	if err := f.store.DeleteMany(ctx, goalsPath(customerID), goalIDs); err != nil {
		return fmt.Errorf("目標の削除に失敗しました: %w", err)
	}

	slog.Info("goals deleted",
		slog.String("customer_id", customerID),
		slog.Int("count", len(goalIDs)),
	)
	return nil
}
