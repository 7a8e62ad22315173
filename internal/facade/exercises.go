package facade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/mypt/mypt/internal/docstore"
	"github.com/mypt/mypt/internal/model"
)

// ExerciseInput はエクササイズ作成・更新の入力。
// Difficultyは0を有効な値として扱うためポインタで受け取る。
type ExerciseInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=200"`
	Difficulty  *int   `json:"difficulty" validate:"required,min=0,max=5"`
	MuscleGroup string `json:"muscleGroup" validate:"required,oneof=chest back legs shoulders arms core full_body"`
}

func (f *Facade) normalizeExercise(input ExerciseInput) (ExerciseInput, error) {
	input.Name = f.sanitizer.PlainText(input.Name)
	input.Description = f.sanitizer.PlainText(input.Description)
	if err := f.check(input); err != nil {
		return input, err
	}
	return input, nil
}

// ListExercises はエクササイズ一覧を返す。muscleGroupが空でなければ対象部位で絞り込む。
func (f *Facade) ListExercises(ctx context.Context, muscleGroup string) ([]model.Exercise, error) {
	var (
		docs []docstore.Document
		err  error
	)
	if muscleGroup == "" {
		docs, err = f.store.List(ctx, exercisesPath)
	} else {
		if !slices.Contains(model.MuscleGroups, model.MuscleGroup(muscleGroup)) {
			return nil, model.NewValidationError(map[string]string{"muscleGroup": "is not a known muscle group"})
		}
		docs, err = f.store.Query(ctx, exercisesPath, "muscleGroup", muscleGroup)
	}
	if err != nil {
		return nil, fmt.Errorf("エクササイズ一覧の取得に失敗しました: %w", err)
	}
	return docstore.DecodeAll[model.Exercise](docs)
}

// CreateExercise はエクササイズを作成する。トレーナーのみ実行できる。
func (f *Facade) CreateExercise(ctx context.Context, actor model.Actor, input ExerciseInput) (*model.Exercise, error) {
	input, err := f.normalizeExercise(input)
	if err != nil {
		return nil, err
	}
	if err := requireTrainer(actor, "create exercises"); err != nil {
		return nil, err
	}

	now := f.now()
	ex := model.Exercise{
		Name:        input.Name,
		Description: input.Description,
		Difficulty:  *input.Difficulty,
		MuscleGroup: model.MuscleGroup(input.MuscleGroup),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := f.store.Create(ctx, exercisesPath, ex)
	if err != nil {
		return nil, fmt.Errorf("エクササイズの作成に失敗しました: %w", err)
	}
	ex.ID = id

	slog.Info("exercise created",
		slog.String("trainer_id", actor.UserID),
		slog.String("exercise_id", id),
	)
	return &ex, nil
}

// UpdateExercise はエクササイズを更新する。トレーナーのみ実行できる。
func (f *Facade) UpdateExercise(ctx context.Context, actor model.Actor, exerciseID string, input ExerciseInput) error {
	input, err := f.normalizeExercise(input)
	if err != nil {
		return err
	}
	if err := requireTrainer(actor, "edit exercises"); err != nil {
		return err
	}

	err = f.store.Update(ctx, exercisesPath, exerciseID, map[string]any{
		"name":        input.Name,
		"description": input.Description,
		"difficulty":  *input.Difficulty,
		"muscleGroup": input.MuscleGroup,
		"updatedAt":   f.now(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return model.NewExerciseNotFoundError(exerciseID)
	}
	if err != nil {
		return fmt.Errorf("エクササイズの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteExercises は指定IDのエクササイズを一括削除する。トレーナーのみ実行できる。
// いずれかのプランから参照されている場合はEXERCISE_IN_USEを返し、何も削除しない。
func (f *Facade) DeleteExercises(ctx context.Context, actor model.Actor, exerciseIDs []string) error {
	if err := requireTrainer(actor, "delete exercises"); err != nil {
		return err
	}
	exerciseIDs = lo.Uniq(exerciseIDs)
	if len(exerciseIDs) == 0 {
		return nil
	}

	inUse, err := f.exercisesInUse(ctx, exerciseIDs)
	if err != nil {
		return err
	}
	if len(inUse) > 0 {
		return model.NewExerciseInUseError(inUse)
	}

	if err := f.store.DeleteMany(ctx, exercisesPath, exerciseIDs); err != nil {
		return fmt.Errorf("エクササイズの削除に失敗しました: %w", err)
	}

	slog.Info("exercises deleted",
		slog.String("trainer_id", actor.UserID),
		slog.Int("count", len(exerciseIDs)),
	)
	return nil
}

// exercisesInUse は全顧客のプランから参照されているIDをexerciseIDsの順で返す。
func (f *Facade) exercisesInUse(ctx context.Context, exerciseIDs []string) ([]string, error) {
	docs, err := f.store.CollectionGroup(ctx, plansPath("").Kind())
	if err != nil {
		return nil, fmt.Errorf("プランの参照確認に失敗しました: %w", err)
	}
	plans, err := docstore.DecodeAll[model.Plan](docs)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]struct{})
	for _, plan := range plans {
		for _, entry := range plan.Entries {
			referenced[entry.ExerciseID] = struct{}{}
		}
	}
	return lo.Filter(exerciseIDs, func(id string, _ int) bool {
		_, ok := referenced[id]
		return ok
	}), nil
}
