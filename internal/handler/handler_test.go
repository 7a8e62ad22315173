package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/middleware"
	"github.com/mypt/mypt/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	signInFn         func(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, model.NewUnauthorizedError()
}

// mockAuthenticator は固定のセッションIDを受け付けるAuthenticator。
type mockAuthenticator struct {
	sessions map[string]model.Actor
	err      error
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	actor, ok := m.sessions[sessionID]
	if !ok {
		return nil, model.NewUnauthorizedError()
	}
	return &model.Session{ID: sessionID, UserID: actor.UserID, Role: actor.Role}, nil
}

// mockDataService はDataServiceのモック実装。未設定のメソッドはゼロ値を返す。
type mockDataService struct {
	findUserFn       func(ctx context.Context, actor model.Actor, userID string) (*model.User, error)
	listCustomersFn  func(ctx context.Context, actor model.Actor) ([]*model.User, error)
	createCustomerFn func(ctx context.Context, actor model.Actor, input facade.CustomerInput) (*model.User, error)
	deleteCustomerFn func(ctx context.Context, actor model.Actor, customerID string) error

	listGoalsFn        func(ctx context.Context, actor model.Actor, customerID string) ([]model.Goal, error)
	addGoalFn          func(ctx context.Context, actor model.Actor, customerID string, input facade.GoalInput) (*model.Goal, error)
	setGoalCompletedFn func(ctx context.Context, actor model.Actor, customerID, goalID string, completed bool) error
	deleteGoalsFn      func(ctx context.Context, actor model.Actor, customerID string, goalIDs []string) error

	listPlansFn  func(ctx context.Context, actor model.Actor, customerID string) ([]model.Plan, error)
	savePlanFn   func(ctx context.Context, actor model.Actor, customerID string, input facade.PlanInput) (*model.Plan, error)
	deletePlanFn func(ctx context.Context, actor model.Actor, customerID, planID string) error

	sendMessageFn func(ctx context.Context, actor model.Actor, input facade.MessageInput) (*model.Message, error)
	listInboxFn   func(ctx context.Context, actor model.Actor) ([]model.Message, error)
	listOutboxFn  func(ctx context.Context, actor model.Actor) ([]model.Message, error)

	listExercisesFn   func(ctx context.Context, muscleGroup string) ([]model.Exercise, error)
	createExerciseFn  func(ctx context.Context, actor model.Actor, input facade.ExerciseInput) (*model.Exercise, error)
	updateExerciseFn  func(ctx context.Context, actor model.Actor, exerciseID string, input facade.ExerciseInput) error
	deleteExercisesFn func(ctx context.Context, actor model.Actor, exerciseIDs []string) error
}

var _ DataService = (*mockDataService)(nil)

func (m *mockDataService) FindUser(ctx context.Context, actor model.Actor, userID string) (*model.User, error) {
	if m.findUserFn != nil {
		return m.findUserFn(ctx, actor, userID)
	}
	return nil, model.NewUserNotFoundError(userID)
}

func (m *mockDataService) ListCustomers(ctx context.Context, actor model.Actor) ([]*model.User, error) {
	if m.listCustomersFn != nil {
		return m.listCustomersFn(ctx, actor)
	}
	return nil, nil
}

func (m *mockDataService) CreateCustomer(ctx context.Context, actor model.Actor, input facade.CustomerInput) (*model.User, error) {
	if m.createCustomerFn != nil {
		return m.createCustomerFn(ctx, actor, input)
	}
	return &model.User{}, nil
}

func (m *mockDataService) DeleteCustomer(ctx context.Context, actor model.Actor, customerID string) error {
	if m.deleteCustomerFn != nil {
		return m.deleteCustomerFn(ctx, actor, customerID)
	}
	return nil
}

func (m *mockDataService) ListGoals(ctx context.Context, actor model.Actor, customerID string) ([]model.Goal, error) {
	if m.listGoalsFn != nil {
		return m.listGoalsFn(ctx, actor, customerID)
	}
	return nil, nil
}

func (m *mockDataService) AddGoal(ctx context.Context, actor model.Actor, customerID string, input facade.GoalInput) (*model.Goal, error) {
	if m.addGoalFn != nil {
		return m.addGoalFn(ctx, actor, customerID, input)
	}
	return &model.Goal{}, nil
}

func (m *mockDataService) SetGoalCompleted(ctx context.Context, actor model.Actor, customerID, goalID string, completed bool) error {
	if m.setGoalCompletedFn != nil {
		return m.setGoalCompletedFn(ctx, actor, customerID, goalID, completed)
	}
	return nil
}

func (m *mockDataService) DeleteGoals(ctx context.Context, actor model.Actor, customerID string, goalIDs []string) error {
	if m.deleteGoalsFn != nil {
		return m.deleteGoalsFn(ctx, actor, customerID, goalIDs)
	}
	return nil
}

func (m *mockDataService) ListPlans(ctx context.Context, actor model.Actor, customerID string) ([]model.Plan, error) {
	if m.listPlansFn != nil {
		return m.listPlansFn(ctx, actor, customerID)
	}
	return nil, nil
}

func (m *mockDataService) SavePlan(ctx context.Context, actor model.Actor, customerID string, input facade.PlanInput) (*model.Plan, error) {
	if m.savePlanFn != nil {
		return m.savePlanFn(ctx, actor, customerID, input)
	}
	return &model.Plan{}, nil
}

func (m *mockDataService) DeletePlan(ctx context.Context, actor model.Actor, customerID, planID string) error {
	if m.deletePlanFn != nil {
		return m.deletePlanFn(ctx, actor, customerID, planID)
	}
	return nil
}

func (m *mockDataService) SendMessage(ctx context.Context, actor model.Actor, input facade.MessageInput) (*model.Message, error) {
	if m.sendMessageFn != nil {
		return m.sendMessageFn(ctx, actor, input)
	}
	return &model.Message{}, nil
}

func (m *mockDataService) ListInbox(ctx context.Context, actor model.Actor) ([]model.Message, error) {
	if m.listInboxFn != nil {
		return m.listInboxFn(ctx, actor)
	}
	return nil, nil
}

func (m *mockDataService) ListOutbox(ctx context.Context, actor model.Actor) ([]model.Message, error) {
	if m.listOutboxFn != nil {
		return m.listOutboxFn(ctx, actor)
	}
	return nil, nil
}

func (m *mockDataService) ListExercises(ctx context.Context, muscleGroup string) ([]model.Exercise, error) {
	if m.listExercisesFn != nil {
		return m.listExercisesFn(ctx, muscleGroup)
	}
	return nil, nil
}

func (m *mockDataService) CreateExercise(ctx context.Context, actor model.Actor, input facade.ExerciseInput) (*model.Exercise, error) {
	if m.createExerciseFn != nil {
		return m.createExerciseFn(ctx, actor, input)
	}
	return &model.Exercise{}, nil
}

func (m *mockDataService) UpdateExercise(ctx context.Context, actor model.Actor, exerciseID string, input facade.ExerciseInput) error {
	if m.updateExerciseFn != nil {
		return m.updateExerciseFn(ctx, actor, exerciseID, input)
	}
	return nil
}

func (m *mockDataService) DeleteExercises(ctx context.Context, actor model.Actor, exerciseIDs []string) error {
	if m.deleteExercisesFn != nil {
		return m.deleteExercisesFn(ctx, actor, exerciseIDs)
	}
	return nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

const (
	trainerSession  = "trainer-session"
	customerSession = "customer-session"
	testCSRFToken   = "test-csrf-token"
)

var (
	testTrainer  = model.Actor{UserID: "trainer-1", Role: model.RoleTrainer}
	testCustomer = model.Actor{UserID: "customer-1", Role: model.RoleCustomer}
)

type testRouterOption func(*RouterDeps)

func withAuthService(svc AuthServiceInterface) testRouterOption {
	return func(d *RouterDeps) { d.AuthService = svc }
}

func withAuthenticator(a middleware.Authenticator) testRouterOption {
	return func(d *RouterDeps) { d.Authenticator = a }
}

func withHealthChecker(h HealthChecker) testRouterOption {
	return func(d *RouterDeps) { d.HealthChecker = h }
}

// newTestRouter はモックのサービスでルーターを構築する。
func newTestRouter(t *testing.T, data DataService, opts ...testRouterOption) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, 1000))
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		Authenticator: &mockAuthenticator{sessions: map[string]model.Actor{
			trainerSession:  testTrainer,
			customerSession: testCustomer,
		}},
		RateLimiter: rl,
		AuthService: &mockAuthService{},
		AuthConfig:  AuthHandlerConfig{SessionMaxAge: 86400},
		Data:        data,
	}
	for _, opt := range opts {
		opt(deps)
	}
	return NewRouter(deps)
}

// doRequest はCSRFトークンとセッションCookieを付与してリクエストを実行する。
// sessionIDが空の場合はセッションCookieを付与しない。
func doRequest(t *testing.T, router http.Handler, method, path string, body any, sessionID string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: testCSRFToken})
	req.Header.Set(middleware.CSRFHeaderName, testCSRFToken)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode body: %v\nraw: %s", err, w.Body.String())
	}
	return v
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d\nbody: %s", w.Code, want, w.Body.String())
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	body := decodeBody[middleware.ErrorResponseBody](t, w)
	if body.Code != want {
		t.Errorf("code = %q, want %q", body.Code, want)
	}
}
