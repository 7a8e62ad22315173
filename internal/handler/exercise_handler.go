package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/paginate"
)

// ExerciseServiceInterface はエクササイズハンドラーが必要とするサービスインターフェース。
type ExerciseServiceInterface interface {
	ListExercises(ctx context.Context, muscleGroup string) ([]model.Exercise, error)
	CreateExercise(ctx context.Context, actor model.Actor, input facade.ExerciseInput) (*model.Exercise, error)
	UpdateExercise(ctx context.Context, actor model.Actor, exerciseID string, input facade.ExerciseInput) error
	DeleteExercises(ctx context.Context, actor model.Actor, exerciseIDs []string) error
}

// ExerciseHandler はエクササイズカタログのHTTPハンドラー。
type ExerciseHandler struct {
	service ExerciseServiceInterface
}

// NewExerciseHandler はExerciseHandlerを生成する。
func NewExerciseHandler(service ExerciseServiceInterface) *ExerciseHandler {
	return &ExerciseHandler{service: service}
}

// ListExercises はエクササイズ一覧をページ分割して返す。
// muscle_groupを指定した場合はその部位のみに絞り込む。
// GET /api/exercises?muscle_group=&page=&per_page=
func (h *ExerciseHandler) ListExercises(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}

	exercises, err := h.service.ListExercises(r.Context(), r.URL.Query().Get("muscle_group"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, perPage := pageParams(r)
	writeJSON(w, http.StatusOK, paginate.Paginate(exercises, page, perPage))
}

// CreateExercise はエクササイズを登録する。
// POST /api/exercises
func (h *ExerciseHandler) CreateExercise(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input facade.ExerciseInput
	if !decodeJSON(w, r, &input) {
		return
	}

	exercise, err := h.service.CreateExercise(r.Context(), actor, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, exercise)
}

// UpdateExercise はエクササイズを更新する。
// PUT /api/exercises/{id}
func (h *ExerciseHandler) UpdateExercise(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input facade.ExerciseInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.service.UpdateExercise(r.Context(), actor, chi.URLParam(r, "id"), input); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteExercises は指定IDのエクササイズをまとめて削除する。
// POST /api/exercises/delete
func (h *ExerciseHandler) DeleteExercises(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req idsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.DeleteExercises(r.Context(), actor, req.IDs); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
