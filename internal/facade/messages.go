package facade

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mypt/mypt/internal/docstore"
	"github.com/mypt/mypt/internal/model"
)

// MessageInput はメッセージ送信の入力。
type MessageInput struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Subject     string `json:"subject" validate:"required,max=150"`
	Body        string `json:"body" validate:"required,max=5000"`
}

// SendMessage はメッセージを送信する。
// トレーナーは担当顧客へ、顧客は担当トレーナーへのみ送信できる。
func (f *Facade) SendMessage(ctx context.Context, actor model.Actor, input MessageInput) (*model.Message, error) {
	input.Subject = f.sanitizer.PlainText(input.Subject)
	input.Body = f.sanitizer.RichText(input.Body)
	if err := f.check(input); err != nil {
		return nil, err
	}

	if err := f.authorizeRecipient(ctx, actor, input.RecipientID); err != nil {
		return nil, err
	}

	msg := model.Message{
		SenderID:    actor.UserID,
		RecipientID: input.RecipientID,
		Subject:     input.Subject,
		Body:        input.Body,
		SentAt:      f.now(),
	}
	id, err := f.store.Create(ctx, messagesPath, msg)
	if err != nil {
		return nil, fmt.Errorf("メッセージの送信に失敗しました: %w", err)
	}
	msg.ID = id

	slog.Info("message sent",
		slog.String("sender_id", actor.UserID),
		slog.String("message_id", id),
	)
	return &msg, nil
}

func (f *Facade) authorizeRecipient(ctx context.Context, actor model.Actor, recipientID string) error {
	if recipientID == actor.UserID {
		return model.NewForbiddenError("send messages to yourself")
	}
	recipient, err := f.users.FindByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("宛先ユーザーの取得に失敗しました: %w", err)
	}
	if recipient == nil {
		return model.NewUserNotFoundError(recipientID)
	}

	switch actor.Role {
	case model.RoleTrainer:
		if recipient.TrainerID == actor.UserID {
			return nil
		}
	case model.RoleCustomer:
		sender, err := f.users.FindByID(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("送信者の取得に失敗しました: %w", err)
		}
		if sender != nil && sender.TrainerID == recipient.ID {
			return nil
		}
	}
	return model.NewForbiddenError("message this user")
}

// ListInbox は受信メッセージを新しい順に返す。
func (f *Facade) ListInbox(ctx context.Context, actor model.Actor) ([]model.Message, error) {
	return f.listMessages(ctx, "recipientId", actor.UserID)
}

// ListOutbox は送信メッセージを新しい順に返す。
func (f *Facade) ListOutbox(ctx context.Context, actor model.Actor) ([]model.Message, error) {
	return f.listMessages(ctx, "senderId", actor.UserID)
}

func (f *Facade) listMessages(ctx context.Context, field, userID string) ([]model.Message, error) {
	docs, err := f.store.Query(ctx, messagesPath, field, userID)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	msgs, err := docstore.DecodeAll[model.Message](docs)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(msgs, func(a, b model.Message) int {
		return b.SentAt.Compare(a.SentAt)
	})
	return msgs, nil
}
