package view

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/optimistic"
	"github.com/mypt/mypt/internal/paginate"
)

// ExerciseBackend はエクササイズビューが使用するリモート操作。
type ExerciseBackend interface {
	ListExercises(ctx context.Context, muscleGroup string) ([]model.Exercise, error)
	CreateExercise(ctx context.Context, input facade.ExerciseInput) (*model.Exercise, error)
	UpdateExercise(ctx context.Context, exerciseID string, input facade.ExerciseInput) error
	DeleteExercises(ctx context.Context, exerciseIDs []string) error
}

// ExercisesView はエクササイズカタログのビュー。
// 一覧は全件を保持し、部位の絞り込みとページ分割はクライアント側で行う。
type ExercisesView struct {
	backend   ExerciseBackend
	opts      Options
	exercises *optimistic.List[model.Exercise]
	status    loadStatus
}

// NewExercisesView はExercisesViewを生成する。
func NewExercisesView(backend ExerciseBackend, opts Options) *ExercisesView {
	return &ExercisesView{
		backend:   backend,
		opts:      opts.normalize(),
		exercises: optimistic.NewList[model.Exercise](nil),
	}
}

// Load はエクササイズ一覧を読み込む。
func (v *ExercisesView) Load(ctx context.Context) error {
	return load(ctx, v.opts.Logger, v.exercises, &v.status, "exercises", v.fetch)
}

func (v *ExercisesView) fetch(ctx context.Context) ([]model.Exercise, error) {
	return v.backend.ListExercises(ctx, "")
}

// Exercises は部位で絞り込んだ一覧を返す。muscleGroupが空の場合は全件を返す。
func (v *ExercisesView) Exercises(muscleGroup model.MuscleGroup) []model.Exercise {
	items := v.exercises.Items()
	if muscleGroup == "" {
		return items
	}
	return paginate.Filter(items, func(e model.Exercise) bool { return e.MuscleGroup == muscleGroup })
}

// Page は部位で絞り込んだ一覧の指定ページを返す。
func (v *ExercisesView) Page(muscleGroup model.MuscleGroup, page, perPage int) paginate.Page[model.Exercise] {
	return paginate.Paginate(v.Exercises(muscleGroup), page, perPage)
}

// Error は直近の読み込みエラーメッセージを返す。
func (v *ExercisesView) Error() string {
	return v.status.get()
}

func normalizeExerciseInput(input facade.ExerciseInput) facade.ExerciseInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	return input
}

func applyExerciseInput(e model.Exercise, input facade.ExerciseInput) model.Exercise {
	e.Name = input.Name
	e.Description = input.Description
	if input.Difficulty != nil {
		e.Difficulty = *input.Difficulty
	}
	e.MuscleGroup = model.MuscleGroup(input.MuscleGroup)
	e.UpdatedAt = time.Now().UTC()
	return e
}

// Create はエクササイズを登録する。成功後は採番されたIDを反映するため再取得する。
func (v *ExercisesView) Create(ctx context.Context, input facade.ExerciseInput) (optimistic.Outcome, error) {
	input = normalizeExerciseInput(input)

	return optimistic.Run(ctx, v.opts.Runner, v.exercises, optimistic.Mutation[model.Exercise]{
		Name:     "create_exercise",
		Validate: func() error { return facade.Validate(input) },
		Apply: func(items []model.Exercise) []model.Exercise {
			return append(items, applyExerciseInput(model.Exercise{ID: pendingID()}, input))
		},
		Remote: func(ctx context.Context) error {
			_, err := v.backend.CreateExercise(ctx, input)
			return err
		},
		Refetch:        v.fetch,
		Reconcile:      true,
		FailureMessage: failureMessage("create exercise"),
	})
}

// Update はエクササイズを更新する。
func (v *ExercisesView) Update(ctx context.Context, exerciseID string, input facade.ExerciseInput) (optimistic.Outcome, error) {
	input = normalizeExerciseInput(input)

	return optimistic.Run(ctx, v.opts.Runner, v.exercises, optimistic.Mutation[model.Exercise]{
		Name: "update_exercise",
		Validate: func() error {
			if !lo.ContainsBy(v.exercises.Items(), func(e model.Exercise) bool { return e.ID == exerciseID }) {
				return model.NewExerciseNotFoundError(exerciseID)
			}
			return facade.Validate(input)
		},
		Apply: func(items []model.Exercise) []model.Exercise {
			return lo.Map(items, func(e model.Exercise, _ int) model.Exercise {
				if e.ID == exerciseID {
					return applyExerciseInput(e, input)
				}
				return e
			})
		},
		Remote: func(ctx context.Context) error {
			return v.backend.UpdateExercise(ctx, exerciseID, input)
		},
		Refetch:        v.fetch,
		FailureMessage: failureMessage("update exercise"),
	})
}

// Delete はエクササイズをまとめて削除する。idsが空の場合はリモートを呼ばない。
func (v *ExercisesView) Delete(ctx context.Context, exerciseIDs []string) (optimistic.Outcome, error) {
	ids := lo.Uniq(exerciseIDs)

	return optimistic.Run(ctx, v.opts.Runner, v.exercises, optimistic.Mutation[model.Exercise]{
		Name: "delete_exercises",
		Validate: func() error {
			if len(ids) == 0 {
				return ErrNothingSelected
			}
			return nil
		},
		Apply: func(items []model.Exercise) []model.Exercise {
			return lo.Reject(items, func(e model.Exercise, _ int) bool { return lo.Contains(ids, e.ID) })
		},
		Remote: func(ctx context.Context) error {
			return v.backend.DeleteExercises(ctx, ids)
		},
		Refetch:        v.fetch,
		FailureMessage: failureMessage("delete exercises"),
	})
}
