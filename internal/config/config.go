// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Session
	SessionTimeout         time.Duration `envconfig:"SESSION_TIMEOUT" default:"1h"`
	SessionMaxAge          time.Duration `envconfig:"SESSION_MAX_AGE" default:"24h"`
	SessionCleanupInterval time.Duration `envconfig:"SESSION_CLEANUP_INTERVAL" default:"10m"`

	// Auth
	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`

	// Rate Limit（req/min/user）
	RateLimitGeneral int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	RateLimitLogin   int `envconfig:"RATE_LIMIT_LOGIN" default:"10"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL    string `envconfig:"BASE_URL" required:"true"`

	// Cookie
	CookieSecure bool   `ignored:"true"`
	CookieDomain string `envconfig:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles は指定された.envファイルを読み込んだ上でConfigを構築する。
// 存在しないファイルは無視する。
func LoadFiles(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	if cfg.SessionTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_TIMEOUT must be positive, got %s", cfg.SessionTimeout)
	}
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

// SlogLevel はLOG_LEVELをslog.Levelに変換する。未知の値はInfoとして扱う。
func (c *Config) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}

// ClientConfig はAPIクライアント側（clientサブコマンド）の設定を保持する。
// DATABASE_URLなどサーバー側の設定は要求しない。
type ClientConfig struct {
	// APIURL は接続先APIサーバーのベースURL。
	APIURL string `envconfig:"MYPT_API_URL" default:"http://localhost:8080"`
	// DataDir はクライアントのセッションを永続化するディレクトリ。
	DataDir string `envconfig:"MYPT_CLIENT_DIR" default:".mypt"`

	// Session
	SessionTimeout       time.Duration `envconfig:"SESSION_TIMEOUT" default:"1h"`
	SessionCheckInterval time.Duration `envconfig:"SESSION_CHECK_INTERVAL" default:"15s"`

	// UI
	BannerTimeout time.Duration `envconfig:"BANNER_TIMEOUT" default:"3s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadClient は環境変数からClientConfigを読み込む。.envの扱いはLoadと同じ。
func LoadClient(envFiles ...string) (*ClientConfig, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := &ClientConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	if cfg.SessionTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_TIMEOUT must be positive, got %s", cfg.SessionTimeout)
	}
	if cfg.SessionCheckInterval <= 0 {
		return nil, fmt.Errorf("SESSION_CHECK_INTERVAL must be positive, got %s", cfg.SessionCheckInterval)
	}
	if cfg.BannerTimeout <= 0 {
		return nil, fmt.Errorf("BANNER_TIMEOUT must be positive, got %s", cfg.BannerTimeout)
	}
	if cfg.DataDir == "" {
		return nil, errors.New("MYPT_CLIENT_DIR must not be empty")
	}

	return cfg, nil
}

// SlogLevel はLOG_LEVELをslog.Levelに変換する。未知の値はInfoとして扱う。
func (c *ClientConfig) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
