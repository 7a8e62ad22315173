package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/paginate"
	"github.com/mypt/mypt/internal/view"
)

var (
	_ view.GoalBackend     = (*Client)(nil)
	_ view.ExerciseBackend = (*Client)(nil)
	_ view.PlanBackend     = (*Client)(nil)
	_ view.MessageBackend  = (*Client)(nil)
	_ view.CustomerBackend = (*Client)(nil)
)

// listPageSize は全件取得時に1リクエストで取得する件数。
const listPageSize = 100

type idsRequest struct {
	IDs []string `json:"ids"`
}

type completedRequest struct {
	Completed bool `json:"completed"`
}

func customerPath(customerID string, rest ...string) string {
	p := "/api/customers/" + url.PathEscape(customerID)
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}

// fetchAll はページ分割された一覧を最後のページまで取得する。
func fetchAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(listPageSize))

	all := []T{}
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))
		var p paginate.Page[T]
		if err := c.do(ctx, request{method: http.MethodGet, path: path + "?" + query.Encode(), out: &p}); err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if !p.HasNext {
			return all, nil
		}
	}
}

// --- ユーザー ---

// FindUser はユーザーを取得する。
func (c *Client) FindUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/" + url.PathEscape(userID), out: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListCustomers は担当顧客の全件を返す。
func (c *Client) ListCustomers(ctx context.Context) ([]model.User, error) {
	return fetchAll[model.User](ctx, c, "/api/customers", nil)
}

// CreateCustomer は担当顧客を登録する。
func (c *Client) CreateCustomer(ctx context.Context, input facade.CustomerInput) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/customers", body: input, out: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteCustomer は担当顧客と関連データを削除する。
func (c *Client) DeleteCustomer(ctx context.Context, customerID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: customerPath(customerID)})
}

// --- 目標 ---

// ListGoals は顧客の目標一覧を返す。
func (c *Client) ListGoals(ctx context.Context, customerID string) ([]model.Goal, error) {
	var goals []model.Goal
	if err := c.do(ctx, request{method: http.MethodGet, path: customerPath(customerID, "goals"), out: &goals}); err != nil {
		return nil, err
	}
	return goals, nil
}

// AddGoal は目標を追加する。
func (c *Client) AddGoal(ctx context.Context, customerID string, input facade.GoalInput) (*model.Goal, error) {
	var goal model.Goal
	if err := c.do(ctx, request{method: http.MethodPost, path: customerPath(customerID, "goals"), body: input, out: &goal}); err != nil {
		return nil, err
	}
	return &goal, nil
}

// SetGoalCompleted は目標の達成状態を更新する。
func (c *Client) SetGoalCompleted(ctx context.Context, customerID, goalID string, completed bool) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   customerPath(customerID, "goals", goalID, "completed"),
		body:   completedRequest{Completed: completed},
	})
}

// DeleteGoals は目標をまとめて削除する。
func (c *Client) DeleteGoals(ctx context.Context, customerID string, goalIDs []string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   customerPath(customerID, "goals", "delete"),
		body:   idsRequest{IDs: goalIDs},
	})
}

// --- プラン ---

// ListPlans は顧客のプラン一覧を返す。
func (c *Client) ListPlans(ctx context.Context, customerID string) ([]model.Plan, error) {
	var plans []model.Plan
	if err := c.do(ctx, request{method: http.MethodGet, path: customerPath(customerID, "plans"), out: &plans}); err != nil {
		return nil, err
	}
	return plans, nil
}

// SavePlan はプランを作成または置き換える。
func (c *Client) SavePlan(ctx context.Context, customerID string, input facade.PlanInput) (*model.Plan, error) {
	var plan model.Plan
	if err := c.do(ctx, request{method: http.MethodPut, path: customerPath(customerID, "plans"), body: input, out: &plan}); err != nil {
		return nil, err
	}
	return &plan, nil
}

// DeletePlan はプランを削除する。
func (c *Client) DeletePlan(ctx context.Context, customerID, planID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: customerPath(customerID, "plans", planID)})
}

// --- メッセージ ---

// SendMessage はメッセージを送信する。
func (c *Client) SendMessage(ctx context.Context, input facade.MessageInput) (*model.Message, error) {
	var msg model.Message
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/messages", body: input, out: &msg}); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListInbox は受信メッセージを新しい順に返す。
func (c *Client) ListInbox(ctx context.Context) ([]model.Message, error) {
	return c.listMessages(ctx, "/api/messages/inbox")
}

// ListOutbox は送信メッセージを新しい順に返す。
func (c *Client) ListOutbox(ctx context.Context) ([]model.Message, error) {
	return c.listMessages(ctx, "/api/messages/outbox")
}

func (c *Client) listMessages(ctx context.Context, path string) ([]model.Message, error) {
	var messages []model.Message
	if err := c.do(ctx, request{method: http.MethodGet, path: path, out: &messages}); err != nil {
		return nil, err
	}
	return messages, nil
}

// --- エクササイズ ---

// ListExercises はエクササイズの全件を返す。muscleGroupが空でなければその部位に絞り込む。
func (c *Client) ListExercises(ctx context.Context, muscleGroup string) ([]model.Exercise, error) {
	query := url.Values{}
	if muscleGroup != "" {
		query.Set("muscle_group", muscleGroup)
	}
	return fetchAll[model.Exercise](ctx, c, "/api/exercises", query)
}

// CreateExercise はエクササイズを登録する。
func (c *Client) CreateExercise(ctx context.Context, input facade.ExerciseInput) (*model.Exercise, error) {
	var exercise model.Exercise
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/exercises", body: input, out: &exercise}); err != nil {
		return nil, err
	}
	return &exercise, nil
}

// UpdateExercise はエクササイズを更新する。
func (c *Client) UpdateExercise(ctx context.Context, exerciseID string, input facade.ExerciseInput) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/api/exercises/" + url.PathEscape(exerciseID), body: input})
}

// DeleteExercises はエクササイズをまとめて削除する。
func (c *Client) DeleteExercises(ctx context.Context, exerciseIDs []string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/api/exercises/delete", body: idsRequest{IDs: exerciseIDs}})
}
