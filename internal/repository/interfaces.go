// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mypt/mypt/internal/model"
)

// ErrDuplicateEmail はメールアドレスが既に登録されている場合に返される。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ListByTrainerID はトレーナーに紐付く顧客一覧を作成日時の昇順で返す。
	ListByTrainerID(ctx context.Context, trainerID string) ([]*model.User, error)

	// CreateWithCredential はユーザーとログイン情報を同一トランザクションで作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	CreateWithCredential(ctx context.Context, user *model.User, credential *model.Credential) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するcredentials、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// CredentialRepository はログイン情報の永続化インターフェース。
type CredentialRepository interface {
	// FindByEmail はメールアドレスでログイン情報を検索する。
	// メールアドレスは大文字小文字を区別しない。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Credential, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。絶対有効期限切れの場合はnilを返す。
	// 無操作タイムアウトの判定は呼び出し側で行う。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Touch はセッションの最終アクティブ日時を更新する。
	Touch(ctx context.Context, id string, at time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
