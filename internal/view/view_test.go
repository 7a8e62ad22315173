package view

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/optimistic"
)

var errRemote = errors.New("remote unavailable")

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) RecordOptimisticOutcome(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func testOptions(rec optimistic.Recorder) Options {
	return Options{Runner: optimistic.NewRunner(optimistic.NewBanner(50*time.Millisecond), nil, rec)}
}

// fakeGoals はGoalBackendのフェイク実装。サーバー側の一覧を保持する。
type fakeGoals struct {
	mu        sync.Mutex
	server    []model.Goal
	nextID    int
	failWrite error
	failList  error
	calls     []string
}

func (f *fakeGoals) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeGoals) ListGoals(ctx context.Context, customerID string) ([]model.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if f.failList != nil {
		return nil, f.failList
	}
	return append([]model.Goal(nil), f.server...), nil
}

func (f *fakeGoals) AddGoal(ctx context.Context, customerID string, input facade.GoalInput) (*model.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("add")
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	f.nextID++
	g := model.Goal{ID: "srv-" + string(rune('0'+f.nextID)), CustomerID: customerID, Name: input.Name}
	f.server = append(f.server, g)
	return &g, nil
}

func (f *fakeGoals) SetGoalCompleted(ctx context.Context, customerID, goalID string, completed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set")
	if f.failWrite != nil {
		return f.failWrite
	}
	for i := range f.server {
		if f.server[i].ID == goalID {
			f.server[i].Completed = completed
		}
	}
	return nil
}

func (f *fakeGoals) DeleteGoals(ctx context.Context, customerID string, goalIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete")
	if f.failWrite != nil {
		return f.failWrite
	}
	kept := f.server[:0]
	for _, g := range f.server {
		if !containsString(goalIDs, g.ID) {
			kept = append(kept, g)
		}
	}
	f.server = kept
	return nil
}

func (f *fakeGoals) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func newLoadedGoalsView(t *testing.T, backend *fakeGoals, opts Options) *GoalsView {
	t.Helper()
	v := NewGoalsView(backend, "customer-1", opts)
	require.NoError(t, v.Load(context.Background()))
	return v
}

// --- 目標 ---

func TestGoalsView_Load_FailureEmptiesList(t *testing.T) {
	backend := &fakeGoals{server: []model.Goal{{ID: "g1"}}}
	v := newLoadedGoalsView(t, backend, testOptions(nil))
	require.Len(t, v.Goals(), 1)

	backend.failList = errRemote
	err := v.Load(context.Background())

	assert.ErrorIs(t, err, errRemote)
	assert.Empty(t, v.Goals())
	assert.Equal(t, "Failed to load goals.", v.Error())

	backend.failList = nil
	require.NoError(t, v.Load(context.Background()))
	assert.Empty(t, v.Error())
}

func TestGoalsView_Add_ReconcilesWithServerID(t *testing.T) {
	rec := &outcomeRecorder{}
	backend := &fakeGoals{}
	v := newLoadedGoalsView(t, backend, testOptions(rec))

	outcome, err := v.Add(context.Background(), facade.GoalInput{Name: " Lose 5kg ", TargetValue: "5"})

	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeRemoteConfirmed, outcome)
	goals := v.Goals()
	require.Len(t, goals, 1)
	assert.Equal(t, "srv-1", goals[0].ID)
	assert.Equal(t, "Lose 5kg", goals[0].Name)
	assert.Equal(t, []string{"remote_confirmed"}, rec.outcomes)
}

func TestGoalsView_Add_InvalidInputSkipsRemote(t *testing.T) {
	backend := &fakeGoals{}
	v := newLoadedGoalsView(t, backend, testOptions(nil))

	outcome, err := v.Add(context.Background(), facade.GoalInput{Name: "Run", TargetValue: "far"})

	assert.Equal(t, optimistic.OutcomeInvalidInput, outcome)
	assert.True(t, model.IsCode(err, model.ErrCodeValidationFailed))
	assert.Zero(t, backend.callCount("add"))
	assert.Empty(t, v.Goals())
}

func TestGoalsView_Add_FailureRollsBackAndShowsBanner(t *testing.T) {
	backend := &fakeGoals{server: []model.Goal{{ID: "g1", Name: "Existing"}}}
	opts := testOptions(nil)
	v := newLoadedGoalsView(t, backend, opts)
	backend.failWrite = errRemote

	outcome, err := v.Add(context.Background(), facade.GoalInput{Name: "New", TargetValue: "1"})

	assert.Equal(t, optimistic.OutcomeRolledBack, outcome)
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, []model.Goal{{ID: "g1", Name: "Existing"}}, v.Goals())
	assert.Equal(t, "Failed to add goal. Please try again.", opts.Runner.Banner().Message())

	assert.Eventually(t, func() bool { return opts.Runner.Banner().Message() == "" },
		time.Second, 10*time.Millisecond, "バナーは一定時間後に自動で消える")
}

func TestGoalsView_Toggle_DoesNotRefetchOnSuccess(t *testing.T) {
	backend := &fakeGoals{server: []model.Goal{{ID: "g1"}, {ID: "g2"}}}
	v := newLoadedGoalsView(t, backend, testOptions(nil))
	listsBefore := backend.callCount("list")

	outcome, err := v.Toggle(context.Background(), "g2")

	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeRemoteConfirmed, outcome)
	assert.True(t, v.Goals()[1].Completed)
	assert.Equal(t, listsBefore, backend.callCount("list"))

	_, err = v.Toggle(context.Background(), "g2")
	require.NoError(t, err)
	assert.False(t, v.Goals()[1].Completed)
}

func TestGoalsView_Toggle_Failure_RestoresServerState(t *testing.T) {
	backend := &fakeGoals{server: []model.Goal{{ID: "g1"}}}
	v := newLoadedGoalsView(t, backend, testOptions(nil))
	backend.failWrite = errRemote

	outcome, err := v.Toggle(context.Background(), "g1")

	assert.Equal(t, optimistic.OutcomeRolledBack, outcome)
	assert.Error(t, err)
	assert.False(t, v.Goals()[0].Completed)
}

func TestGoalsView_Toggle_UnknownGoal(t *testing.T) {
	backend := &fakeGoals{}
	v := newLoadedGoalsView(t, backend, testOptions(nil))

	outcome, err := v.Toggle(context.Background(), "missing")

	assert.Equal(t, optimistic.OutcomeInvalidInput, outcome)
	assert.True(t, model.IsCode(err, model.ErrCodeGoalNotFound))
	assert.Zero(t, backend.callCount("set"))
}

func TestGoalsView_RemoveCompleted(t *testing.T) {
	backend := &fakeGoals{server: []model.Goal{
		{ID: "g1", Completed: true},
		{ID: "g2"},
		{ID: "g3", Completed: true},
	}}
	v := newLoadedGoalsView(t, backend, testOptions(nil))

	outcome, err := v.RemoveCompleted(context.Background())

	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeRemoteConfirmed, outcome)
	assert.Equal(t, []model.Goal{{ID: "g2"}}, v.Goals())
	assert.Len(t, backend.server, 1)
}

func TestGoalsView_RemoveCompleted_NothingCompletedIsNoop(t *testing.T) {
	backend := &fakeGoals{server: []model.Goal{{ID: "g1"}}}
	rec := &outcomeRecorder{}
	opts := testOptions(rec)
	v := newLoadedGoalsView(t, backend, opts)

	outcome, err := v.RemoveCompleted(context.Background())

	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeUnchanged, outcome)
	assert.Zero(t, backend.callCount("delete"))
	assert.Len(t, v.Goals(), 1)
	assert.Empty(t, rec.outcomes)
	assert.Empty(t, opts.Runner.Banner().Message())
}

func TestGoalsView_Page(t *testing.T) {
	goals := make([]model.Goal, 12)
	for i := range goals {
		goals[i] = model.Goal{ID: string(rune('a' + i))}
	}
	v := newLoadedGoalsView(t, &fakeGoals{server: goals}, testOptions(nil))

	p := v.Page(3, 5)

	assert.Equal(t, 3, p.Page)
	assert.Len(t, p.Items, 2)
	assert.False(t, p.HasNext)
	assert.True(t, p.HasPrev)
}

// --- エクササイズ ---

type fakeExercises struct {
	mu        sync.Mutex
	server    []model.Exercise
	failWrite error
	creates   int
	updates   int
	deletes   int
}

func (f *fakeExercises) ListExercises(ctx context.Context, muscleGroup string) ([]model.Exercise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Exercise(nil), f.server...), nil
}

func (f *fakeExercises) CreateExercise(ctx context.Context, input facade.ExerciseInput) (*model.Exercise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	e := model.Exercise{ID: "e-new", Name: input.Name, Difficulty: *input.Difficulty, MuscleGroup: model.MuscleGroup(input.MuscleGroup)}
	f.server = append(f.server, e)
	return &e, nil
}

func (f *fakeExercises) UpdateExercise(ctx context.Context, exerciseID string, input facade.ExerciseInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return f.failWrite
}

func (f *fakeExercises) DeleteExercises(ctx context.Context, exerciseIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return f.failWrite
}

func intPtr(n int) *int { return &n }

func TestExercisesView_FilterAndCreate(t *testing.T) {
	backend := &fakeExercises{server: []model.Exercise{
		{ID: "e1", Name: "Squat", MuscleGroup: model.MuscleGroupLegs},
		{ID: "e2", Name: "Curl", MuscleGroup: model.MuscleGroupArms},
	}}
	v := NewExercisesView(backend, testOptions(nil))
	require.NoError(t, v.Load(context.Background()))

	assert.Len(t, v.Exercises(""), 2)
	legs := v.Exercises(model.MuscleGroupLegs)
	require.Len(t, legs, 1)
	assert.Equal(t, "e1", legs[0].ID)

	outcome, err := v.Create(context.Background(), facade.ExerciseInput{Name: "Lunge", Difficulty: intPtr(2), MuscleGroup: "legs"})
	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeRemoteConfirmed, outcome)
	assert.Equal(t, 2, v.Page(model.MuscleGroupLegs, 1, 10).TotalItems)
}

func TestExercisesView_Create_Validation(t *testing.T) {
	backend := &fakeExercises{}
	v := NewExercisesView(backend, testOptions(nil))

	tests := []struct {
		name  string
		input facade.ExerciseInput
	}{
		{"difficulty too high", facade.ExerciseInput{Name: "X", Difficulty: intPtr(6), MuscleGroup: "legs"}},
		{"difficulty missing", facade.ExerciseInput{Name: "X", MuscleGroup: "legs"}},
		{"unknown muscle group", facade.ExerciseInput{Name: "X", Difficulty: intPtr(1), MuscleGroup: "neck"}},
		{"description too long", facade.ExerciseInput{Name: "X", Difficulty: intPtr(1), MuscleGroup: "legs", Description: strings.Repeat("a", 201)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := v.Create(context.Background(), tt.input)
			assert.Equal(t, optimistic.OutcomeInvalidInput, outcome)
			assert.True(t, model.IsCode(err, model.ErrCodeValidationFailed), "err = %v", err)
		})
	}
	assert.Zero(t, backend.creates)
}

func TestExercisesView_Update_FailureRollsBack(t *testing.T) {
	backend := &fakeExercises{server: []model.Exercise{{ID: "e1", Name: "Squat", Difficulty: 3, MuscleGroup: model.MuscleGroupLegs}}}
	opts := testOptions(nil)
	v := NewExercisesView(backend, opts)
	require.NoError(t, v.Load(context.Background()))
	backend.failWrite = errRemote

	outcome, err := v.Update(context.Background(), "e1", facade.ExerciseInput{Name: "Front Squat", Difficulty: intPtr(4), MuscleGroup: "legs"})

	assert.Equal(t, optimistic.OutcomeRolledBack, outcome)
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, "Squat", v.Exercises("")[0].Name)
	assert.Equal(t, "Failed to update exercise. Please try again.", opts.Runner.Banner().Message())
}

func TestExercisesView_Delete(t *testing.T) {
	backend := &fakeExercises{server: []model.Exercise{{ID: "e1"}, {ID: "e2"}}}
	v := NewExercisesView(backend, testOptions(nil))
	require.NoError(t, v.Load(context.Background()))

	outcome, err := v.Delete(context.Background(), nil)
	assert.Equal(t, optimistic.OutcomeInvalidInput, outcome)
	assert.ErrorIs(t, err, ErrNothingSelected)
	assert.Zero(t, backend.deletes)

	outcome, err = v.Delete(context.Background(), []string{"e1", "e1"})
	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeRemoteConfirmed, outcome)
	assert.Equal(t, []model.Exercise{{ID: "e2"}}, v.Exercises(""))
	assert.Equal(t, 1, backend.deletes)
}

func TestExercisesView_Delete_InUseRollsBack(t *testing.T) {
	backend := &fakeExercises{server: []model.Exercise{{ID: "e1"}, {ID: "e2"}}}
	opts := testOptions(nil)
	v := NewExercisesView(backend, opts)
	require.NoError(t, v.Load(context.Background()))
	backend.failWrite = model.NewExerciseInUseError([]string{"e1"})

	outcome, err := v.Delete(context.Background(), []string{"e1"})

	assert.Equal(t, optimistic.OutcomeRolledBack, outcome)
	assert.True(t, model.IsCode(err, model.ErrCodeExerciseInUse), "err = %v", err)
	assert.Equal(t, []model.Exercise{{ID: "e1"}, {ID: "e2"}}, v.Exercises(""))
	assert.Equal(t, "Failed to delete exercises. Please try again.", opts.Runner.Banner().Message())
}

// --- プラン ---

type fakePlans struct {
	server    []model.Plan
	failWrite error
	saved     []facade.PlanInput
}

func (f *fakePlans) ListPlans(ctx context.Context, customerID string) ([]model.Plan, error) {
	return append([]model.Plan(nil), f.server...), nil
}

func (f *fakePlans) SavePlan(ctx context.Context, customerID string, input facade.PlanInput) (*model.Plan, error) {
	f.saved = append(f.saved, input)
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	p := model.Plan{ID: "p-srv", CustomerID: customerID, Name: input.Name}
	f.server = append(f.server, p)
	return &p, nil
}

func (f *fakePlans) DeletePlan(ctx context.Context, customerID, planID string) error {
	return f.failWrite
}

func TestPlansView_Save(t *testing.T) {
	backend := &fakePlans{server: []model.Plan{{ID: "p1", Name: "Monday"}}}
	v := NewPlansView(backend, "customer-1", testOptions(nil))
	require.NoError(t, v.Load(context.Background()))

	outcome, err := v.Save(context.Background(), facade.PlanInput{
		Name:    "Wednesday",
		Entries: []facade.PlanEntryInput{{ExerciseID: "e1", Sets: 3, Reps: 12}},
	})

	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeRemoteConfirmed, outcome)
	plans := v.Plans()
	require.Len(t, plans, 2)
	assert.Equal(t, "p-srv", plans[1].ID)
}

func TestPlansView_Save_InvalidEntries(t *testing.T) {
	backend := &fakePlans{}
	v := NewPlansView(backend, "customer-1", testOptions(nil))

	outcome, err := v.Save(context.Background(), facade.PlanInput{
		Name:    "Monday",
		Entries: []facade.PlanEntryInput{{ExerciseID: "e1", Sets: 0, Reps: 101}},
	})

	assert.Equal(t, optimistic.OutcomeInvalidInput, outcome)
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Fields, "entries[0].sets")
	assert.Contains(t, apiErr.Fields, "entries[0].reps")
	assert.Empty(t, backend.saved)
}

func TestPlansView_Delete_Failure(t *testing.T) {
	backend := &fakePlans{server: []model.Plan{{ID: "p1"}}}
	v := NewPlansView(backend, "customer-1", testOptions(nil))
	require.NoError(t, v.Load(context.Background()))
	backend.failWrite = errRemote

	outcome, _ := v.Delete(context.Background(), "p1")

	assert.Equal(t, optimistic.OutcomeRolledBack, outcome)
	assert.Len(t, v.Plans(), 1)
}

// --- メッセージ ---

type fakeMessages struct {
	inbox     []model.Message
	outbox    []model.Message
	failInbox error
	failWrite error
}

func (f *fakeMessages) SendMessage(ctx context.Context, input facade.MessageInput) (*model.Message, error) {
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	m := model.Message{ID: "m-srv", SenderID: "trainer-1", RecipientID: input.RecipientID, Subject: input.Subject}
	f.outbox = append([]model.Message{m}, f.outbox...)
	return &m, nil
}

func (f *fakeMessages) ListInbox(ctx context.Context) ([]model.Message, error) {
	if f.failInbox != nil {
		return nil, f.failInbox
	}
	return append([]model.Message(nil), f.inbox...), nil
}

func (f *fakeMessages) ListOutbox(ctx context.Context) ([]model.Message, error) {
	return append([]model.Message(nil), f.outbox...), nil
}

func TestMessagesView_SendPrependsToOutbox(t *testing.T) {
	backend := &fakeMessages{outbox: []model.Message{{ID: "m-old"}}}
	v := NewMessagesView(backend, "trainer-1", testOptions(nil))
	require.NoError(t, v.Load(context.Background()))

	outcome, err := v.Send(context.Background(), facade.MessageInput{RecipientID: "customer-1", Subject: "Plan", Body: "New plan is ready"})

	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeRemoteConfirmed, outcome)
	outbox := v.Outbox()
	require.Len(t, outbox, 2)
	assert.Equal(t, "m-srv", outbox[0].ID)
}

func TestMessagesView_Send_MissingSubject(t *testing.T) {
	backend := &fakeMessages{}
	v := NewMessagesView(backend, "trainer-1", testOptions(nil))

	outcome, err := v.Send(context.Background(), facade.MessageInput{RecipientID: "customer-1", Subject: "  ", Body: "Hi"})

	assert.Equal(t, optimistic.OutcomeInvalidInput, outcome)
	assert.True(t, model.IsCode(err, model.ErrCodeValidationFailed))
	assert.Empty(t, backend.outbox)
}

func TestMessagesView_LoadFailure(t *testing.T) {
	backend := &fakeMessages{failInbox: errRemote, outbox: []model.Message{{ID: "m1"}}}
	v := NewMessagesView(backend, "trainer-1", testOptions(nil))

	err := v.Load(context.Background())

	assert.ErrorIs(t, err, errRemote)
	assert.Empty(t, v.Inbox())
	assert.Empty(t, v.Outbox())
	assert.Equal(t, "Failed to load inbox.", v.Error())
}

// --- 顧客 ---

type fakeCustomers struct {
	server    []model.User
	failWrite error
	deleted   []string
}

func (f *fakeCustomers) ListCustomers(ctx context.Context) ([]model.User, error) {
	return append([]model.User(nil), f.server...), nil
}

func (f *fakeCustomers) CreateCustomer(ctx context.Context, input facade.CustomerInput) (*model.User, error) {
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	u := model.User{ID: "c-srv", Email: input.Email, Name: input.Name, Role: model.RoleCustomer}
	f.server = append(f.server, u)
	return &u, nil
}

func (f *fakeCustomers) DeleteCustomer(ctx context.Context, customerID string) error {
	f.deleted = append(f.deleted, customerID)
	if f.failWrite != nil {
		return f.failWrite
	}
	var kept []model.User
	for _, u := range f.server {
		if u.ID != customerID {
			kept = append(kept, u)
		}
	}
	f.server = kept
	return nil
}

func TestCustomersView_CreateSearchDelete(t *testing.T) {
	backend := &fakeCustomers{server: []model.User{{ID: "c1", Name: "Alice", Email: "alice@example.com"}}}
	v := NewCustomersView(backend, "trainer-1", testOptions(nil))
	require.NoError(t, v.Load(context.Background()))

	outcome, err := v.Create(context.Background(), facade.CustomerInput{Email: "BOB@example.com", Name: "Bob", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeRemoteConfirmed, outcome)

	page := v.Search("bob", 1, 10)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "bob@example.com", page.Items[0].Email)
	assert.Equal(t, 2, v.Search("", 1, 10).TotalItems)

	outcome, err = v.Delete(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, optimistic.OutcomeRemoteConfirmed, outcome)
	assert.Len(t, v.Customers(), 1)
	assert.Equal(t, []string{"c1"}, backend.deleted)
}

func TestCustomersView_Delete_UnknownCustomer(t *testing.T) {
	backend := &fakeCustomers{}
	v := NewCustomersView(backend, "trainer-1", testOptions(nil))

	outcome, err := v.Delete(context.Background(), "ghost")

	assert.Equal(t, optimistic.OutcomeInvalidInput, outcome)
	assert.True(t, model.IsCode(err, model.ErrCodeUserNotFound))
	assert.Empty(t, backend.deleted)
}

func TestCustomersView_Create_ShortPassword(t *testing.T) {
	backend := &fakeCustomers{}
	v := NewCustomersView(backend, "trainer-1", testOptions(nil))

	outcome, err := v.Create(context.Background(), facade.CustomerInput{Email: "x@example.com", Name: "X", Password: "short"})

	assert.Equal(t, optimistic.OutcomeInvalidInput, outcome)
	assert.True(t, model.IsCode(err, model.ErrCodeValidationFailed))
	assert.Empty(t, backend.server)
}
