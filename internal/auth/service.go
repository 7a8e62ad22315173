// Package auth はメールアドレスとパスワードによる認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mypt/mypt/internal/metrics"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/repository"
)

// dummyHash はメールアドレスが未登録の場合にも照合処理を行うためのハッシュ。
// 応答時間からアカウントの有無を推測されないようにする。
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BGB3sRFRpwPQTPXFm3dCAz3qvv3a"

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTimeout time.Duration    // 無操作タイムアウト
	SessionMaxAge  time.Duration    // セッションの絶対有効期間
	Now            func() time.Time // 時刻の取得元。nilの場合はtime.Now
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	credRepo    repository.CredentialRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	credRepo repository.CredentialRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
	metrics metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		userRepo:    userRepo,
		credRepo:    credRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		metrics:     metrics,
		config:      config,
		now:         now,
	}
}

// IsIdle は最終アクティブ日時からtimeout以上経過しているかを返す。
// 期限ちょうどの時刻は失効扱いとする。
func IsIdle(lastActive, now time.Time, timeout time.Duration) bool {
	return !now.Before(lastActive.Add(timeout))
}

// SignIn はメールアドレスとパスワードを検証し、セッションを発行する。
// 認証に失敗した場合はINVALID_CREDENTIALSのAPIErrorを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil, model.NewValidationError(map[string]string{
			"email":    "required",
			"password": "required",
		})
	}

	cred, err := s.credRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find credential: %w", err)
	}

	hash := dummyHash
	if cred != nil {
		hash = cred.PasswordHash
	}
	if err := s.hasher.Compare(hash, password); err != nil || cred == nil {
		if err != nil && !errors.Is(err, ErrPasswordMismatch) {
			slog.Warn("password comparison failed", slog.String("error", err.Error()))
		}
		s.recordLogin(false)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByID(ctx, cred.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.recordLogin(false)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recordLogin(true)
	slog.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return session, user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// Authenticate はセッションを検証し、最終アクティブ日時を更新する。
// セッションが存在しない場合はUNAUTHORIZED、無操作タイムアウトを
// 超過している場合はセッションを削除してSESSION_EXPIREDを返す。
func (s *Service) Authenticate(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	now := s.now()
	if IsIdle(session.LastActiveAt, now, s.config.SessionTimeout) {
		if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
			return nil, fmt.Errorf("failed to delete idle session: %w", err)
		}
		if s.metrics != nil {
			s.metrics.RecordSessionExpired("server")
		}
		slog.Info("session expired by inactivity",
			slog.String("user_id", session.UserID),
		)
		return nil, model.NewSessionExpiredError()
	}

	if err := s.sessionRepo.Touch(ctx, session.ID, now); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	session.LastActiveAt = now
	return session, nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.Authenticate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(session.UserID)
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:           sessionID,
		UserID:       user.ID,
		Role:         user.Role,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(s.config.SessionMaxAge),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) recordLogin(success bool) {
	if s.metrics != nil {
		s.metrics.RecordLogin(success)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
