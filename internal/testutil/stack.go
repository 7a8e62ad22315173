package testutil

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mypt/mypt/internal/auth"
	"github.com/mypt/mypt/internal/docstore"
	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/security"
)

// Clock はテストから進められる時計。
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock はtを現在時刻とするClockを生成する。
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now は現在時刻を返す。
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance は時計をd進める。
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Stack はHTTP層より下のサーバー構成一式をメモリ上で組み立てたもの。
type Stack struct {
	Clock    *Clock
	Identity *Identity
	Store    *docstore.MemoryStore
	Auth     *auth.Service
	Facade   *facade.Facade
}

// StackConfig はStackの設定。
type StackConfig struct {
	SessionTimeout time.Duration
	SessionMaxAge  time.Duration
}

// NewStack はメモリ上のリポジトリとドキュメントストアで認証サービスとファサードを構成する。
func NewStack(cfg StackConfig) *Stack {
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = time.Hour
	}
	if cfg.SessionMaxAge == 0 {
		cfg.SessionMaxAge = 24 * time.Hour
	}

	clock := NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	identity := NewIdentity(clock.Now)
	store := docstore.NewMemoryStore()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	authService := auth.NewService(
		identity.Users(), identity.Credentials(), identity.Sessions(),
		hasher, nil,
		auth.ServiceConfig{
			SessionTimeout: cfg.SessionTimeout,
			SessionMaxAge:  cfg.SessionMaxAge,
			Now:            clock.Now,
		},
	)

	return &Stack{
		Clock:    clock,
		Identity: identity,
		Store:    store,
		Auth:     authService,
		Facade:   facade.New(store, identity.Users(), hasher, security.NewTextSanitizer()),
	}
}

// SeedTrainer はトレーナーを登録する。
func (s *Stack) SeedTrainer(ctx context.Context, email, password string) (*model.User, error) {
	return s.Facade.CreateTrainer(ctx, facade.CustomerInput{
		Email:    email,
		Name:     "Trainer " + email,
		Password: password,
	})
}

// SeedCustomer はトレーナーの担当顧客を登録する。
func (s *Stack) SeedCustomer(ctx context.Context, trainer *model.User, email, password string) (*model.User, error) {
	return s.Facade.CreateCustomer(ctx, model.Actor{UserID: trainer.ID, Role: model.RoleTrainer}, facade.CustomerInput{
		Email:    email,
		Name:     "Customer " + email,
		Password: password,
	})
}
