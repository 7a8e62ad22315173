package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/paginate"
)

// UserServiceInterface はユーザー・顧客ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	FindUser(ctx context.Context, actor model.Actor, userID string) (*model.User, error)
	ListCustomers(ctx context.Context, actor model.Actor) ([]*model.User, error)
	CreateCustomer(ctx context.Context, actor model.Actor, input facade.CustomerInput) (*model.User, error)
	DeleteCustomer(ctx context.Context, actor model.Actor, customerID string) error
}

// UserHandler はユーザー・顧客管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// GetUser はユーザー情報を返す。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	userID := chi.URLParam(r, "id")
	user, err := h.service.FindUser(r.Context(), actor, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		handleServiceError(w, model.NewUserNotFoundError(userID))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ListCustomers はトレーナーの担当顧客一覧をページ分割して返す。
// GET /api/customers?page=&per_page=
func (h *UserHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	customers, err := h.service.ListCustomers(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, perPage := pageParams(r)
	writeJSON(w, http.StatusOK, paginate.Paginate(customers, page, perPage))
}

// CreateCustomer は顧客アカウントを作成する。
// POST /api/customers
func (h *UserHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var input facade.CustomerInput
	if !decodeJSON(w, r, &input) {
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), actor, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, customer)
}

// DeleteCustomer は顧客と関連データを削除する。
// DELETE /api/customers/{id}
func (h *UserHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
