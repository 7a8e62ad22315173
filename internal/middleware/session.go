// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mypt/mypt/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// actorContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
	actorContextKey = contextKey("actor")
	// actorHolderContextKey は前段のミドルウェアへ認証済みユーザーを伝えるホルダーのキー。
	actorHolderContextKey = contextKey("actor_holder")
)

// actorHolder はロギングミドルウェアが後段で確定したユーザーを参照するための入れ物。
type actorHolder struct {
	actor model.Actor
}

func contextWithActorHolder(ctx context.Context, holder *actorHolder) context.Context {
	return context.WithValue(ctx, actorHolderContextKey, holder)
}

// Authenticator はセッションの検証に必要なインターフェース。
// auth.Serviceが実装する。検証に成功した場合は最終アクティブ日時を更新する。
type Authenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーのIDとロールをリクエストコンテキストに注入する。
// 未認証リクエストには401 UNAUTHORIZED、無操作タイムアウトを超過した
// セッションには401 SESSION_EXPIREDを返す。セッションストアの障害は500 INTERNAL_ERRORとする。
func NewSessionMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. セッションの有効性を検証
			session, err := authenticator.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) && apiErr.Category == model.CategoryAuth {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				// ストア障害はセッションの拒否ではないため、401ではなく500を返す
				slog.Error("failed to authenticate session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			// 3. 認証済みユーザーをコンテキストに注入
			ctx := ContextWithActor(r.Context(), model.Actor{
				UserID: session.UserID,
				Role:   session.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func ActorFromContext(ctx context.Context) (model.Actor, error) {
	actor, ok := ctx.Value(actorContextKey).(model.Actor)
	if !ok || actor.UserID == "" {
		return model.Actor{}, fmt.Errorf("actor not found in context")
	}
	return actor, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return actor.UserID, nil
}

// ContextWithActor はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithActor(ctx context.Context, actor model.Actor) context.Context {
	if holder, ok := ctx.Value(actorHolderContextKey).(*actorHolder); ok {
		holder.actor = actor
	}
	return context.WithValue(ctx, actorContextKey, actor)
}
