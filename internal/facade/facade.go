// Package facade はドキュメントストアとユーザーリポジトリへのアクセスを
// 意図の明確な操作として提供する。
//
// 全ての操作はストアを呼び出す前に入力を検証し、検証エラーの場合は
// ストアに一切アクセスしない。
package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mypt/mypt/internal/auth"
	"github.com/mypt/mypt/internal/docstore"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/repository"
	"github.com/mypt/mypt/internal/security"
)

// コレクション名
const (
	collectionCustomers = "customers"
	collectionGoals     = "goals"
	collectionPlans     = "plans"
	collectionExercises = "exercises"
	collectionMessages  = "messages"
)

func goalsPath(customerID string) docstore.Path {
	return docstore.Collection(collectionCustomers, customerID, collectionGoals)
}

func plansPath(customerID string) docstore.Path {
	return docstore.Collection(collectionCustomers, customerID, collectionPlans)
}

func customerDoc(customerID string) docstore.Path {
	return docstore.Collection(collectionCustomers, customerID)
}

var (
	exercisesPath = docstore.Collection(collectionExercises)
	messagesPath  = docstore.Collection(collectionMessages)
)

// Facade はリモートデータアクセスのファサード。
type Facade struct {
	store     docstore.Store
	users     repository.UserRepository
	hasher    auth.PasswordHasher
	sanitizer security.TextSanitizer
	validate  *validator.Validate
	now       func() time.Time
}

// New はFacadeを生成する。
func New(
	store docstore.Store,
	users repository.UserRepository,
	hasher auth.PasswordHasher,
	sanitizer security.TextSanitizer,
) *Facade {
	return &Facade{
		store:     store,
		users:     users,
		hasher:    hasher,
		sanitizer: sanitizer,
		validate:  newValidator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// requireTrainer はトレーナー以外の操作を拒否する。
func requireTrainer(actor model.Actor, action string) error {
	if actor.Role != model.RoleTrainer {
		return model.NewForbiddenError(action)
	}
	return nil
}

// loadCustomer は顧客を取得する。存在しないか顧客でない場合はUSER_NOT_FOUNDを返す。
func (f *Facade) loadCustomer(ctx context.Context, customerID string) (*model.User, error) {
	user, err := f.users.FindByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("顧客の取得に失敗しました: %w", err)
	}
	if user == nil || user.Role != model.RoleCustomer {
		return nil, model.NewUserNotFoundError(customerID)
	}
	return user, nil
}

// authorizeCustomerRead は顧客本人、または担当トレーナーのみ許可する。
func (f *Facade) authorizeCustomerRead(ctx context.Context, actor model.Actor, customerID string) error {
	switch actor.Role {
	case model.RoleCustomer:
		if actor.UserID != customerID {
			return model.NewForbiddenError("view another customer's data")
		}
		return nil
	case model.RoleTrainer:
		return f.authorizeTrainerOf(ctx, actor, customerID)
	default:
		return model.NewForbiddenError("view this customer's data")
	}
}

// authorizeTrainerOf は担当トレーナーのみ許可する。
func (f *Facade) authorizeTrainerOf(ctx context.Context, actor model.Actor, customerID string) error {
	if err := requireTrainer(actor, "manage customers"); err != nil {
		return err
	}
	customer, err := f.loadCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if customer.TrainerID != actor.UserID {
		// 他のトレーナーの顧客の存在は明かさない
		return model.NewUserNotFoundError(customerID)
	}
	return nil
}

// authorizeCustomerSelf は顧客本人のみ許可する。
func authorizeCustomerSelf(actor model.Actor, customerID, action string) error {
	if actor.Role != model.RoleCustomer || actor.UserID != customerID {
		return model.NewForbiddenError(action)
	}
	return nil
}
