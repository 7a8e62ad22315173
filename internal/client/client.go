// Package client はMyPersonalTrainingのAPIクライアントを提供する。
//
// サインイン時にsession.Storeへセッションを記録し、以降のリクエストでは
// そのトークンをセッションCookieとして送信する。状態変更リクエストには
// ダブルサブミット方式のCSRFトークンを付与する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mypt/mypt/internal/middleware"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/session"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxTries = 3
	csrfTokenPath   = "/api/csrf-token"
	maxErrorBody    = 64 << 10
)

// Client はAPIクライアント。複数のgoroutineから安全に利用できる。
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Store
	logger     *slog.Logger
	maxTries   uint

	mu        sync.Mutex
	csrfToken string
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithHTTPClient は使用するhttp.Clientを設定する。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMaxTries は読み取りリクエストの最大試行回数を設定する。1の場合はリトライしない。
func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// New はClientを生成する。baseURLの末尾のスラッシュは取り除く。
func New(baseURL string, store *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		session:    store,
		logger:     slog.Default(),
		maxTries:   defaultMaxTries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session はクライアントが使用するセッションストアを返す。
func (c *Client) Session() *session.Store {
	return c.session
}

// request は1回のAPI呼び出しを表す。
type request struct {
	method string
	path   string
	body   any
	out    any
	// public がtrueの場合はセッションなしで送信する
	public bool
}

// do はリクエストを送信し、レスポンスをoutにデコードする。
// GETはネットワークエラーと5xxの場合にバックオフ付きでリトライする。
func (c *Client) do(ctx context.Context, req request) error {
	if req.method != http.MethodGet {
		return c.send(ctx, req, true)
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.send(ctx, req, true)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	return err
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// send は1回だけ送信する。CSRFトークンが拒否された場合はretryCSRFがtrueのときに限り
// トークンを取り直して再送する。
func (c *Client) send(ctx context.Context, req request, retryCSRF bool) error {
	token := ""
	if !req.public {
		token = c.session.Token()
		if token == "" {
			return model.NewUnauthorizedError()
		}
	}

	httpReq, err := c.newRequest(ctx, req, token)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeError(resp)
		switch {
		case apiErr.Code == model.ErrCodeCSRFInvalid && retryCSRF:
			c.resetCSRFToken()
			return c.send(ctx, req, false)
		case !req.public && sessionRejected(resp.StatusCode, apiErr):
			c.logger.Info("session rejected by server, clearing local session",
				slog.String("code", apiErr.Code),
			)
			if err := c.session.Clear(); err != nil {
				c.logger.Warn("failed to clear session", slog.String("error", err.Error()))
			}
		}
		return &statusError{status: resp.StatusCode, err: apiErr}
	}

	if !req.public {
		if err := c.session.Touch(); err != nil && !errors.Is(err, session.ErrNoSession) {
			c.logger.Warn("failed to touch session", slog.String("error", err.Error()))
		}
	}

	if req.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", req.method, req.path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req request, token string) (*http.Request, error) {
	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}

	if req.method != http.MethodGet {
		csrf, err := c.csrf(ctx)
		if err != nil {
			return nil, err
		}
		httpReq.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: csrf})
		httpReq.Header.Set(middleware.CSRFHeaderName, csrf)
	}
	return httpReq, nil
}

// csrf はキャッシュ済みのCSRFトークンを返す。なければサーバーから取得する。
func (c *Client) csrf(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.csrfToken != "" {
		return c.csrfToken, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+csrfTokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create CSRF token request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{status: resp.StatusCode, err: decodeError(resp)}
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode CSRF token: %w", err)
	}
	if body.Token == "" {
		return "", errors.New("server returned an empty CSRF token")
	}
	c.csrfToken = body.Token
	return c.csrfToken, nil
}

func (c *Client) resetCSRFToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.csrfToken = ""
}

// decodeError はエラーレスポンスをAPIErrorに変換する。
// 統一エラーフォーマットでない場合はステータスコードから内部エラーを組み立てる。
func decodeError(resp *http.Response) *model.APIError {
	var body middleware.ErrorResponseBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		apiErr := model.NewInternalError()
		apiErr.Message = fmt.Sprintf("unexpected response: %s", resp.Status)
		return apiErr
	}
	return &model.APIError{
		Code:     body.Code,
		Message:  body.Message,
		Category: body.Category,
		Action:   body.Action,
		Fields:   body.Fields,
	}
}

// statusError はHTTPステータスとAPIErrorを保持する。errors.AsでAPIErrorを取り出せる。
type statusError struct {
	status int
	err    *model.APIError
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.err.Error())
}

func (e *statusError) Unwrap() error {
	return e.err
}

// transportError はサーバーに到達できなかったことを表す。
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return "request failed: " + e.err.Error()
}

func (e *transportError) Unwrap() error {
	return e.err
}

// StatusCode はerrがAPIからのエラーレスポンスであればHTTPステータスコードを返す。
func StatusCode(err error) (int, bool) {
	var se *statusError
	if errors.As(err, &se) {
		return se.status, true
	}
	return 0, false
}

// sessionRejected はサーバーがセッション自体を拒否したかどうかを返す。
// 5xxなど一時的な障害ではローカルのセッションを保持する。
func sessionRejected(status int, apiErr *model.APIError) bool {
	if status != http.StatusUnauthorized {
		return false
	}
	return apiErr.Code == model.ErrCodeSessionExpired || apiErr.Code == model.ErrCodeUnauthorized
}

// retryable はネットワークエラーと5xxのみをリトライ対象とする。
func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	status, ok := StatusCode(err)
	return ok && status >= http.StatusInternalServerError
}
