package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
)

// PlanServiceInterface はプランハンドラーが必要とするサービスインターフェース。
type PlanServiceInterface interface {
	ListPlans(ctx context.Context, actor model.Actor, customerID string) ([]model.Plan, error)
	SavePlan(ctx context.Context, actor model.Actor, customerID string, input facade.PlanInput) (*model.Plan, error)
	DeletePlan(ctx context.Context, actor model.Actor, customerID, planID string) error
}

// PlanHandler は顧客のトレーニングプランに関するHTTPハンドラー。
type PlanHandler struct {
	service PlanServiceInterface
}

// NewPlanHandler はPlanHandlerを生成する。
func NewPlanHandler(service PlanServiceInterface) *PlanHandler {
	return &PlanHandler{service: service}
}

// ListPlans は顧客のプラン一覧を返す。
// GET /api/customers/{id}/plans
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	plans, err := h.service.ListPlans(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plans)
}

// SavePlan はプランを作成または置き換える。IDが空の場合は新規作成。
// PUT /api/customers/{id}/plans
func (h *PlanHandler) SavePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input facade.PlanInput
	if !decodeJSON(w, r, &input) {
		return
	}

	plan, err := h.service.SavePlan(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if input.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, plan)
}

// DeletePlan はプランを削除する。
// DELETE /api/customers/{id}/plans/{planID}
func (h *PlanHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePlan(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "planID")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
