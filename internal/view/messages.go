package view

import (
	"context"
	"strings"
	"time"

	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/optimistic"
	"github.com/mypt/mypt/internal/paginate"
)

// MessageBackend はメッセージビューが使用するリモート操作。
type MessageBackend interface {
	SendMessage(ctx context.Context, input facade.MessageInput) (*model.Message, error)
	ListInbox(ctx context.Context) ([]model.Message, error)
	ListOutbox(ctx context.Context) ([]model.Message, error)
}

// MessagesView はサインイン中のユーザーの受信箱と送信箱のビュー。
// どちらも新しい順に並ぶ。
type MessagesView struct {
	backend MessageBackend
	opts    Options
	userID  string
	inbox   *optimistic.List[model.Message]
	outbox  *optimistic.List[model.Message]
	status  loadStatus
}

// NewMessagesView はMessagesViewを生成する。userIDは送信者として仮表示に使用する。
func NewMessagesView(backend MessageBackend, userID string, opts Options) *MessagesView {
	return &MessagesView{
		backend: backend,
		opts:    opts.normalize(),
		userID:  userID,
		inbox:   optimistic.NewList[model.Message](nil),
		outbox:  optimistic.NewList[model.Message](nil),
	}
}

// Load は受信箱と送信箱を読み込む。どちらかの取得に失敗した場合は最初のエラーを返す。
func (v *MessagesView) Load(ctx context.Context) error {
	if err := load(ctx, v.opts.Logger, v.inbox, &v.status, "inbox", v.backend.ListInbox); err != nil {
		v.outbox.Set(nil)
		return err
	}
	return load(ctx, v.opts.Logger, v.outbox, &v.status, "outbox", v.backend.ListOutbox)
}

// Inbox は受信メッセージ一覧を返す。
func (v *MessagesView) Inbox() []model.Message {
	return v.inbox.Items()
}

// Outbox は送信メッセージ一覧を返す。
func (v *MessagesView) Outbox() []model.Message {
	return v.outbox.Items()
}

// InboxPage は受信メッセージの指定ページを返す。
func (v *MessagesView) InboxPage(page, perPage int) paginate.Page[model.Message] {
	return paginate.Paginate(v.inbox.Items(), page, perPage)
}

// Error は直近の読み込みエラーメッセージを返す。
func (v *MessagesView) Error() string {
	return v.status.get()
}

// Send はメッセージを送信し、送信箱の先頭に仮表示する。成功後は送信箱を再取得する。
func (v *MessagesView) Send(ctx context.Context, input facade.MessageInput) (optimistic.Outcome, error) {
	input.Subject = strings.TrimSpace(input.Subject)
	input.Body = strings.TrimSpace(input.Body)

	return optimistic.Run(ctx, v.opts.Runner, v.outbox, optimistic.Mutation[model.Message]{
		Name:     "send_message",
		Validate: func() error { return facade.Validate(input) },
		Apply: func(items []model.Message) []model.Message {
			msg := model.Message{
				ID:          pendingID(),
				SenderID:    v.userID,
				RecipientID: input.RecipientID,
				Subject:     input.Subject,
				Body:        input.Body,
				SentAt:      time.Now().UTC(),
			}
			return append([]model.Message{msg}, items...)
		},
		Remote: func(ctx context.Context) error {
			_, err := v.backend.SendMessage(ctx, input)
			return err
		},
		Refetch:        v.backend.ListOutbox,
		Reconcile:      true,
		FailureMessage: failureMessage("send message"),
	})
}
