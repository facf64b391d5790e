// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoman/internal/auth"
	"github.com/hitoshi/todoman/internal/model"
)

const sessionCookieName = "session_id"

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// SessionOptions はセッションミドルウェアの未認証時の応答を制御する。
type SessionOptions struct {
	// RedirectTo が空でない場合、未認証リクエストをこのパスへ302リダイレクトする。
	// 空の場合は401とJSONエンベロープを返す（APIルート向け）。
	RedirectTo string
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーIDとセッションIDをリクエストコンテキストに注入する。
func NewSessionMiddleware(sessionFinder SessionFinder, opts SessionOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				writeUnauthorized(w, r, opts)
				return
			}

			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w, r, opts)
				return
			}
			if session == nil {
				writeUnauthorized(w, r, opts)
				return
			}

			ctx := auth.ContextWithUserID(r.Context(), session.UserID)
			ctx = auth.ContextWithSessionID(ctx, session.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized は未認証リクエストへの応答を書き込む。
// ページルートはログイン画面へ誘導し、APIルートはエンベロープで失敗を返す。
func writeUnauthorized(w http.ResponseWriter, r *http.Request, opts SessionOptions) {
	if opts.RedirectTo != "" {
		http.Redirect(w, r, opts.RedirectTo, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"status": 0,
		"data":   map[string]any{},
		"error":  "Authentication required.",
	})
}
