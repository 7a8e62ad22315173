// Package session はクライアント側のセッションストアを提供する。
// サインイン中のIDを保持し、一定時間操作がなければ失効させる。
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mypt/mypt/internal/model"
)

const (
	// StorageKey はセッションレコードを保存する固定キー。
	StorageKey = "mypt.session"
	// DefaultTimeout は無操作タイムアウトのデフォルト値。
	DefaultTimeout = time.Hour
	// DefaultCheckInterval は失効チェック間隔のデフォルト値。
	DefaultCheckInterval = 15 * time.Second
)

// ErrNoSession はセッションが存在しない状態で更新しようとした場合に返される。
var ErrNoSession = errors.New("no active session")

// Status はCheckAndExpireの判定結果。
type Status int

const (
	// StatusAbsent はセッションが存在しないことを表す。
	StatusAbsent Status = iota
	// StatusActive はセッションが有効で、最終アクティブ日時を更新したことを表す。
	StatusActive
	// StatusExpired はタイムアウトによりセッションを破棄したことを表す。
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	default:
		return "absent"
	}
}

// Identity はサインイン成功時に得られる認証済みID。
type Identity struct {
	Token  string
	UserID string
	Role   model.Role
}

// Record は永続化されるセッションレコード。
type Record struct {
	Token        string     `json:"token"`
	UserID       string     `json:"userId"`
	Role         model.Role `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActiveAt time.Time  `json:"lastActiveAt"`
}

// Clock は現在時刻を返す。テストで時刻を差し替えるために使用する。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store はクライアント側のセッションストア。
// 複数のgoroutineから安全に利用できる。
type Store struct {
	mu      sync.Mutex
	storage Storage
	clock   Clock
	timeout time.Duration
	logger  *slog.Logger
}

// Option はStoreの設定を変更する。
type Option func(*Store)

// WithClock は時刻の取得元を設定する。
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithTimeout は無操作タイムアウトを設定する。0以下の値は無視する。
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore はStoreを生成する。
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		clock:   systemClock{},
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout は無操作タイムアウトを返す。
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Establish は現在時刻でセッションを記録し、永続化する。
func (s *Store) Establish(id Identity) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	rec := Record{
		Token:        id.Token,
		UserID:       id.UserID,
		Role:         id.Role,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.save(rec); err != nil {
		return Record{}, err
	}
	s.logger.Info("session established",
		slog.String("user_id", rec.UserID),
		slog.String("role", string(rec.Role)),
	)
	return rec, nil
}

// Current は保存されているセッションを返す。存在しない場合はnilを返す。
// 失効判定は行わない。
func (s *Store) Current() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// IsActive はセッションが存在し、最終アクティブ日時からタイムアウト未満であればtrueを返す。
func (s *Store) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		s.logger.Warn("failed to read session", slog.String("error", err.Error()))
		return false
	}
	return rec != nil && s.live(rec)
}

// Touch は最終アクティブ日時を現在時刻に更新する。
// セッションが存在しない場合はErrNoSessionを返す。
func (s *Store) Touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNoSession
	}
	rec.LastActiveAt = s.clock.Now()
	return s.save(*rec)
}

// CheckAndExpire はタイムアウトを判定し、経過していればセッションを破棄してStatusExpiredを返す。
// 有効な場合は最終アクティブ日時を更新してStatusActiveを返す。
func (s *Store) CheckAndExpire() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return StatusAbsent, err
	}
	if rec == nil {
		return StatusAbsent, nil
	}

	if !s.live(rec) {
		if err := s.storage.Delete(StorageKey); err != nil {
			return StatusExpired, fmt.Errorf("failed to clear expired session: %w", err)
		}
		s.logger.Info("session expired", slog.String("user_id", rec.UserID))
		return StatusExpired, nil
	}

	rec.LastActiveAt = s.clock.Now()
	if err := s.save(*rec); err != nil {
		return StatusActive, err
	}
	return StatusActive, nil
}

// Clear はセッションを破棄する（サインアウト）。
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(StorageKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Token は有効なセッションのトークンを返す。セッションがない場合は空文字列を返す。
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil || rec == nil {
		return ""
	}
	return rec.Token
}

// live は期限の直前までをアクティブとみなす。期限ちょうどは失効。
func (s *Store) live(rec *Record) bool {
	return s.clock.Now().Before(rec.LastActiveAt.Add(s.timeout))
}

func (s *Store) load() (*Record, error) {
	raw, err := s.storage.Load(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &rec, nil
}

func (s *Store) save(rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.storage.Save(StorageKey, raw); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}
