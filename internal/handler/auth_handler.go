// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mypt/mypt/internal/middleware"
	"github.com/mypt/mypt/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain   string
	CookieSecure   bool
	SessionMaxAge  int           // セッションCookieの有効期間（秒）
	SessionTimeout time.Duration // 無操作タイムアウト。クライアントに通知する
}

// AuthHandler はメールアドレスとパスワードによる認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse はログイン成功時に返すセッション情報。
type SessionResponse struct {
	Token              string     `json:"token"`
	UserID             string     `json:"userId"`
	Role               model.Role `json:"role"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastActiveAt       time.Time  `json:"lastActiveAt"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	IdleTimeoutSeconds int        `json:"idleTimeoutSeconds"`
}

// LoginResponse はPOST /auth/loginのレスポンス。
type LoginResponse struct {
	User    *model.User     `json:"user"`
	Session SessionResponse `json:"session"`
}

// Login はメールアドレスとパスワードで認証し、セッションCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, user, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(session.ID, h.config.SessionMaxAge))

	writeJSON(w, http.StatusOK, LoginResponse{
		User: user,
		Session: SessionResponse{
			Token:              session.ID,
			UserID:             session.UserID,
			Role:               session.Role,
			CreatedAt:          session.CreatedAt,
			LastActiveAt:       session.LastActiveAt,
			ExpiresAt:          session.ExpiresAt,
			IdleTimeoutSeconds: int(h.config.SessionTimeout / time.Second),
		},
	})
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// sessionCookie はセッションCookieを生成する。maxAgeが負の場合は削除用。
func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
