package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mypt/mypt/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用したログイン情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// FindByEmail はメールアドレスでログイン情報を検索する。
// 見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByEmail(ctx context.Context, email string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, email, password_hash, created_at
		 FROM credentials
		 WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&cred.UserID, &cred.Email, &cred.PasswordHash, &cred.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return cred, nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
