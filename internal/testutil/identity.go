// Package testutil はテスト用のインメモリ実装を提供する。
package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/repository"
)

// Identity はユーザー・ログイン情報・セッションをメモリ上に保持する。
// PostgreSQLの外部キーと同様に、ユーザー削除時はログイン情報とセッションも削除する。
type Identity struct {
	mu          sync.Mutex
	users       map[string]*model.User
	credentials map[string]*model.Credential // email(小文字) -> credential
	sessions    map[string]*model.Session
	now         func() time.Time
}

// NewIdentity は空のIdentityを生成する。nowがnilの場合はtime.Nowを使う。
func NewIdentity(now func() time.Time) *Identity {
	if now == nil {
		now = time.Now
	}
	return &Identity{
		users:       make(map[string]*model.User),
		credentials: make(map[string]*model.Credential),
		sessions:    make(map[string]*model.Session),
		now:         now,
	}
}

// Users はUserRepositoryとしてのビューを返す。
func (m *Identity) Users() *UserRepo { return &UserRepo{m} }

// Credentials はCredentialRepositoryとしてのビューを返す。
func (m *Identity) Credentials() *CredentialRepo { return &CredentialRepo{m} }

// Sessions はSessionRepositoryとしてのビューを返す。
func (m *Identity) Sessions() *SessionRepo { return &SessionRepo{m} }

// SessionCount は保持しているセッション数を返す。
func (m *Identity) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// UserRepo はIdentityのUserRepository実装。
type UserRepo struct{ m *Identity }

// CredentialRepo はIdentityのCredentialRepository実装。
type CredentialRepo struct{ m *Identity }

// SessionRepo はIdentityのSessionRepository実装。
type SessionRepo struct{ m *Identity }

var (
	_ repository.UserRepository       = (*UserRepo)(nil)
	_ repository.CredentialRepository = (*CredentialRepo)(nil)
	_ repository.SessionRepository    = (*SessionRepo)(nil)
)

// FindByID はユーザーを取得する。見つからない場合はnilを返す。
func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) ListByTrainerID(_ context.Context, trainerID string) ([]*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.User
	for _, u := range r.m.users {
		if u.TrainerID == trainerID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *UserRepo) CreateWithCredential(_ context.Context, user *model.User, credential *model.Credential) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(credential.Email))
	if _, exists := r.m.credentials[email]; exists {
		return repository.ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	cred := *credential
	cred.UserID = user.ID
	cred.Email = email
	u := *user
	r.m.users[user.ID] = &u
	r.m.credentials[email] = &cred
	return nil
}

func (r *UserRepo) DeleteByID(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return errors.New("user not found")
	}
	delete(r.m.users, id)
	for email, c := range r.m.credentials {
		if c.UserID == id {
			delete(r.m.credentials, email)
		}
	}
	for sid, s := range r.m.sessions {
		if s.UserID == id {
			delete(r.m.sessions, sid)
		}
	}
	return nil
}

// FindByEmail はログイン情報を検索する。見つからない場合はnilを返す。
func (r *CredentialRepo) FindByEmail(_ context.Context, email string) (*model.Credential, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.credentials[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := *session
	r.m.sessions[session.ID] = &s
	return nil
}

// FindByID はセッションを取得する。絶対有効期限切れの場合はnilを返す。
func (r *SessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok || !r.m.now().Before(s.ExpiresAt) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *SessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s, ok := r.m.sessions[id]; ok && s.LastActiveAt.Before(at) {
		s.LastActiveAt = at
	}
	return nil
}

func (r *SessionRepo) DeleteByID(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.sessions, id)
	return nil
}

func (r *SessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for sid, s := range r.m.sessions {
		if s.UserID == userID {
			delete(r.m.sessions, sid)
		}
	}
	return nil
}
