package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mypt/mypt/internal/model"
)

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethods_PassThroughWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(method, "/api/goals", nil))

			if !called {
				t.Fatalf("handler should have been called for %s", method)
			}
		})
	}
}

func TestCSRFMiddleware_StateChangingMethods_ValidateToken(t *testing.T) {
	tests := []struct {
		name        string
		cookieToken string
		headerToken string
		wantStatus  int
	}{
		{"no cookie", "", "token-abc", http.StatusForbidden},
		{"no header", "token-abc", "", http.StatusForbidden},
		{"mismatch", "token-abc", "token-xyz", http.StatusForbidden},
		{"match", "token-abc", "token-abc", http.StatusOK},
	}

	methods := []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	for _, method := range methods {
		for _, tt := range tests {
			t.Run(method+"/"+tt.name, func(t *testing.T) {
				handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

				req := httptest.NewRequest(method, "/api/goals", nil)
				if tt.cookieToken != "" {
					req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: tt.cookieToken})
				}
				if tt.headerToken != "" {
					req.Header.Set(CSRFHeaderName, tt.headerToken)
				}
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)

				if w.Code != tt.wantStatus {
					t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
				}
				if tt.wantStatus == http.StatusForbidden {
					if body := decodeErrorBody(t, w); body.Code != model.ErrCodeCSRFInvalid {
						t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFInvalid)
					}
				}
			})
		}
	}
}

func TestCSRFMiddleware_GETRequest_SetsCSRFCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{CookieDomain: "example.com"})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/goals", nil))

	cookie := findCookie(w.Result(), CSRFCookieName)
	if cookie == nil {
		t.Fatal("expected CSRF cookie to be set on GET request")
	}
	if cookie.Value == "" {
		t.Error("CSRF cookie value should not be empty")
	}
	if cookie.HttpOnly {
		t.Error("CSRF cookie should be readable by the client")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want %v", cookie.SameSite, http.SameSiteLaxMode)
	}
}

func TestCSRFMiddleware_GETRequest_ExistingCookie_DoesNotReplace(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if cookie := findCookie(w.Result(), CSRFCookieName); cookie != nil {
		t.Error("CSRF cookie should not be re-set when already present")
	}
}

func TestCSRFTokenHandler_IssuesTokenMatchingCookie(t *testing.T) {
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	cookie := findCookie(w.Result(), CSRFCookieName)
	if cookie == nil {
		t.Fatal("expected CSRF cookie")
	}
	if body["token"] == "" || body["token"] != cookie.Value {
		t.Errorf("token = %q, cookie = %q, want equal and non-empty", body["token"], cookie.Value)
	}
}

func TestCSRFTokenHandler_ExistingCookie_ReturnsSameToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["token"] != "existing-token" {
		t.Errorf("token = %q, want %q", body["token"], "existing-token")
	}
}
