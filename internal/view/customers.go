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

// CustomerBackend は顧客ビューが使用するリモート操作。
type CustomerBackend interface {
	ListCustomers(ctx context.Context) ([]model.User, error)
	CreateCustomer(ctx context.Context, input facade.CustomerInput) (*model.User, error)
	DeleteCustomer(ctx context.Context, customerID string) error
}

// CustomersView はトレーナーの担当顧客一覧ビュー。
type CustomersView struct {
	backend   CustomerBackend
	opts      Options
	trainerID string
	customers *optimistic.List[model.User]
	status    loadStatus
}

// NewCustomersView はCustomersViewを生成する。
func NewCustomersView(backend CustomerBackend, trainerID string, opts Options) *CustomersView {
	return &CustomersView{
		backend:   backend,
		opts:      opts.normalize(),
		trainerID: trainerID,
		customers: optimistic.NewList[model.User](nil),
	}
}

// Load は顧客一覧を読み込む。
func (v *CustomersView) Load(ctx context.Context) error {
	return load(ctx, v.opts.Logger, v.customers, &v.status, "customers", v.backend.ListCustomers)
}

// Customers は現在の顧客一覧を返す。
func (v *CustomersView) Customers() []model.User {
	return v.customers.Items()
}

// Search は名前またはメールアドレスに部分一致する顧客の指定ページを返す。
func (v *CustomersView) Search(query string, page, perPage int) paginate.Page[model.User] {
	q := strings.ToLower(strings.TrimSpace(query))
	items := v.customers.Items()
	if q != "" {
		items = paginate.Filter(items, func(u model.User) bool {
			return strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(u.Email, q)
		})
	}
	return paginate.Paginate(items, page, perPage)
}

// Error は直近の読み込みエラーメッセージを返す。
func (v *CustomersView) Error() string {
	return v.status.get()
}

// Create は顧客を登録する。成功後は採番されたIDを反映するため再取得する。
func (v *CustomersView) Create(ctx context.Context, input facade.CustomerInput) (optimistic.Outcome, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)

	return optimistic.Run(ctx, v.opts.Runner, v.customers, optimistic.Mutation[model.User]{
		Name:     "create_customer",
		Validate: func() error { return facade.Validate(input) },
		Apply: func(items []model.User) []model.User {
			now := time.Now().UTC()
			return append(items, model.User{
				ID:        pendingID(),
				Email:     input.Email,
				Name:      input.Name,
				Role:      model.RoleCustomer,
				TrainerID: v.trainerID,
				CreatedAt: now,
				UpdatedAt: now,
			})
		},
		Remote: func(ctx context.Context) error {
			_, err := v.backend.CreateCustomer(ctx, input)
			return err
		},
		Refetch:        v.backend.ListCustomers,
		Reconcile:      true,
		FailureMessage: failureMessage("add customer"),
	})
}

// Delete は顧客と関連データを削除する。
func (v *CustomersView) Delete(ctx context.Context, customerID string) (optimistic.Outcome, error) {
	return optimistic.Run(ctx, v.opts.Runner, v.customers, optimistic.Mutation[model.User]{
		Name: "delete_customer",
		Validate: func() error {
			if !lo.ContainsBy(v.customers.Items(), func(u model.User) bool { return u.ID == customerID }) {
				return model.NewUserNotFoundError(customerID)
			}
			return nil
		},
		Apply: func(items []model.User) []model.User {
			return lo.Reject(items, func(u model.User, _ int) bool { return u.ID == customerID })
		},
		Remote: func(ctx context.Context) error {
			return v.backend.DeleteCustomer(ctx, customerID)
		},
		Refetch:        v.backend.ListCustomers,
		FailureMessage: failureMessage("delete customer"),
	})
}
