package facade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mypt/mypt/internal/docstore"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/repository"
)

// CustomerInput は顧客作成の入力。
type CustomerInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// FindUser は指定ユーザーを取得する。
// 自分自身、担当顧客、担当トレーナーのみ参照できる。
func (f *Facade) FindUser(ctx context.Context, actor model.Actor, userID string) (*model.User, error) {
	user, err := f.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	visible, err := f.canSee(ctx, actor, user)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, model.NewUserNotFoundError(userID)
	}
	return user, nil
}

func (f *Facade) canSee(ctx context.Context, actor model.Actor, user *model.User) (bool, error) {
	if user.ID == actor.UserID {
		return true, nil
	}
	switch actor.Role {
	case model.RoleTrainer:
		return user.TrainerID == actor.UserID, nil
	case model.RoleCustomer:
		if user.Role != model.RoleTrainer {
			return false, nil
		}
		self, err := f.users.FindByID(ctx, actor.UserID)
		if err != nil {
			return false, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		return self != nil && self.TrainerID == user.ID, nil
	}
	return false, nil
}

// ListCustomers はトレーナーの担当顧客一覧を返す。
func (f *Facade) ListCustomers(ctx context.Context, actor model.Actor) ([]*model.User, error) {
	if err := requireTrainer(actor, "list customers"); err != nil {
		return nil, err
	}
	users, err := f.users.ListByTrainerID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("顧客一覧の取得に失敗しました: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// CreateCustomer はトレーナーの担当顧客を作成する。
// ログイン情報はパスワードをハッシュ化して同時に作成する。
func (f *Facade) CreateCustomer(ctx context.Context, actor model.Actor, input CustomerInput) (*model.User, error) {
	if err := requireTrainer(actor, "create customers"); err != nil {
		return nil, err
	}
	user, err := f.createUser(ctx, input, model.RoleCustomer, actor.UserID)
	if err != nil {
		return nil, err
	}

	slog.Info("customer created",
		slog.String("trainer_id", actor.UserID),
		slog.String("customer_id", user.ID),
	)
	return user, nil
}

// CreateTrainer はトレーナーアカウントを作成する。管理コマンドから使用する。
func (f *Facade) CreateTrainer(ctx context.Context, input CustomerInput) (*model.User, error) {
	user, err := f.createUser(ctx, input, model.RoleTrainer, "")
	if err != nil {
		return nil, err
	}

	slog.Info("trainer created", slog.String("trainer_id", user.ID))
	return user, nil
}

func (f *Facade) createUser(ctx context.Context, input CustomerInput, role model.Role, trainerID string) (*model.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = f.sanitizer.PlainText(input.Name)
	if err := f.check(input); err != nil {
		return nil, err
	}

	hash, err := f.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := f.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     input.Email,
		Name:      input.Name,
		Role:      role,
		TrainerID: trainerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cred := &model.Credential{
		UserID:       user.ID,
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    now,
	}

	if err := f.users.CreateWithCredential(ctx, user, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError(input.Email)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return user, nil
}

// DeleteCustomer は担当顧客を削除する。
// 顧客の目標、プラン、送受信メッセージも削除する。
// ログイン情報とセッションはユーザー削除に伴いCASCADE削除される。
func (f *Facade) DeleteCustomer(ctx context.Context, actor model.Actor, customerID string) error {
	if err := f.authorizeTrainerOf(ctx, actor, customerID); err != nil {
		return err
	}

	removed, err := f.store.DeleteTree(ctx, customerDoc(customerID))
	if err != nil {
		return fmt.Errorf("顧客データの削除に失敗しました: %w", err)
	}

	messageIDs, err := f.messageIDsInvolving(ctx, customerID)
	if err != nil {
		return err
	}
	if err := f.store.DeleteMany(ctx, messagesPath, messageIDs); err != nil {
		return fmt.Errorf("メッセージの削除に失敗しました: %w", err)
	}

	if err := f.users.DeleteByID(ctx, customerID); err != nil {
		return fmt.Errorf("顧客の削除に失敗しました: %w", err)
	}

	slog.Info("customer deleted",
		slog.String("trainer_id", actor.UserID),
		slog.String("customer_id", customerID),
		slog.Int64("documents_removed", removed),
		slog.Int("messages_removed", len(messageIDs)),
	)
	return nil
}

// messageIDsInvolving は指定ユーザーが送信者または受信者であるメッセージのIDを返す。
func (f *Facade) messageIDsInvolving(ctx context.Context, userID string) ([]string, error) {
	sent, err := f.store.Query(ctx, messagesPath, "senderId", userID)
	if err != nil {
		return nil, fmt.Errorf("送信メッセージの取得に失敗しました: %w", err)
	}
	received, err := f.store.Query(ctx, messagesPath, "recipientId", userID)
	if err != nil {
		return nil, fmt.Errorf("受信メッセージの取得に失敗しました: %w", err)
	}
	ids := lo.Map(append(sent, received...), func(d docstore.Document, _ int) string { return d.ID })
	return lo.Uniq(ids), nil
}
