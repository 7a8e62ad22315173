package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mypt/mypt/internal/model"
)

// --- モック定義 ---

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, sessionID string) (*model.Session, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, sessionID)
	}
	return nil, model.NewUnauthorizedError()
}

func validSessionAuthenticator(userID string, role model.Role) *mockAuthenticator {
	return &mockAuthenticator{
		authenticateFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			if sessionID != "valid-session-id" {
				return nil, model.NewUnauthorizedError()
			}
			return &model.Session{ID: sessionID, UserID: userID, Role: role}, nil
		},
	}
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsActor(t *testing.T) {
	mw := NewSessionMiddleware(validSessionAuthenticator("trainer-1", model.RoleTrainer))

	var captured model.Actor
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := ActorFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		captured = actor
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/exercises", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured.UserID != "trainer-1" || captured.Role != model.RoleTrainer {
		t.Errorf("actor = %+v, want trainer-1/trainer", captured)
	}
}

func TestSessionMiddleware_MissingCookie_Returns401(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie", cookie: nil},
		{name: "empty cookie", cookie: &http.Cookie{Name: SessionCookieName, Value: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			auth := &mockAuthenticator{
				authenticateFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
					called = true
					return nil, nil
				},
			}
			handler := NewSessionMiddleware(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if called {
				t.Error("authenticator should not be called without a session cookie")
			}
			if body := decodeErrorBody(t, w); body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestSessionMiddleware_IdleSession_ReturnsSessionExpired(t *testing.T) {
	auth := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return nil, model.NewSessionExpiredError()
		},
	}
	handler := NewSessionMiddleware(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "idle-session"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeSessionExpired {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeSessionExpired)
	}
}

// TestSessionMiddleware_StoreFailure_Returns500 はセッションストアの障害を
// 認証失敗として扱わず、500 INTERNAL_ERRORを返すことを検証する。
func TestSessionMiddleware_StoreFailure_Returns500(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"plain error", errors.New("pq: connection refused")},
		{"wrapped error", fmt.Errorf("failed to touch session: %w", errors.New("driver: bad connection"))},
		{"non-auth api error", model.NewInternalError()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuthenticator{
				authenticateFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
					return nil, tt.err
				},
			}
			handler := NewSessionMiddleware(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "some-session"})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
			}
			if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInternal {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
			}
		})
	}
}

func TestActorFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := ActorFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
}

func TestContextWithActor_RoundTrip(t *testing.T) {
	ctx := ContextWithActor(context.Background(), model.Actor{UserID: "customer-1", Role: model.RoleCustomer})

	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "customer-1" {
		t.Errorf("userID = %q, want %q", userID, "customer-1")
	}
}
