package client

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mypt/mypt/internal/handler"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/session"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn はメールアドレスとパスワードでサインインし、セッションストアにセッションを記録する。
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	var resp handler.LoginResponse
	err := c.send(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   signInRequest{Email: email, Password: password},
		out:    &resp,
		public: true,
	}, true)
	if err != nil {
		return nil, err
	}

	if _, err := c.session.Establish(session.Identity{
		Token:  resp.Session.Token,
		UserID: resp.Session.UserID,
		Role:   resp.Session.Role,
	}); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// SignOut はサーバー側のセッションを破棄し、ローカルのセッションを消去する。
// サーバーへの通知に失敗してもローカルのセッションは消去する。
func (c *Client) SignOut(ctx context.Context) error {
	if c.session.Token() != "" {
		if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"}); err != nil {
			c.logger.Warn("failed to sign out on server", slog.String("error", err.Error()))
		}
	}
	return c.session.Clear()
}

// Me はサインイン中のユーザーを返す。
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", out: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}
