package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
)

// GoalServiceInterface は目標ハンドラーが必要とするサービスインターフェース。
type GoalServiceInterface interface {
	ListGoals(ctx context.Context, actor model.Actor, customerID string) ([]model.Goal, error)
	AddGoal(ctx context.Context, actor model.Actor, customerID string, input facade.GoalInput) (*model.Goal, error)
	SetGoalCompleted(ctx context.Context, actor model.Actor, customerID, goalID string, completed bool) error
	DeleteGoals(ctx context.Context, actor model.Actor, customerID string, goalIDs []string) error
}

// GoalHandler は顧客の目標に関するHTTPハンドラー。
type GoalHandler struct {
	service GoalServiceInterface
}

// NewGoalHandler はGoalHandlerを生成する。
func NewGoalHandler(service GoalServiceInterface) *GoalHandler {
	return &GoalHandler{service: service}
}

// completedRequest は達成状態の更新リクエスト。
type completedRequest struct {
	Completed *bool `json:"completed"`
}

// ListGoals は顧客の目標一覧を返す。
// GET /api/customers/{id}/goals
func (h *GoalHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	goals, err := h.service.ListGoals(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, goals)
}

// AddGoal は目標を追加する。
// POST /api/customers/{id}/goals
func (h *GoalHandler) AddGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input facade.GoalInput
	if !decodeJSON(w, r, &input) {
		return
	}

	goal, err := h.service.AddGoal(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, goal)
}

// SetGoalCompleted は目標の達成状態を更新する。
// PUT /api/customers/{id}/goals/{goalID}/completed
func (h *GoalHandler) SetGoalCompleted(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req completedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Completed == nil {
		handleServiceError(w, model.NewValidationError(map[string]string{
			"completed": "completed is required",
		}))
		return
	}

	err := h.service.SetGoalCompleted(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "goalID"), *req.Completed)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteGoals は指定IDの目標をまとめて削除する。
// POST /api/customers/{id}/goals/delete
func (h *GoalHandler) DeleteGoals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req idsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.DeleteGoals(r.Context(), actor, chi.URLParam(r, "id"), req.IDs); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
