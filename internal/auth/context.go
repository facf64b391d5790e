// Package auth はパスワード認証、セッション管理、認証済みアイデンティティの
// 参照を提供する。
package auth

import "context"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストに認証済みユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
	sessionIDContextKey = contextKey("session_id")
)

// ContextWithUserID はコンテキストに認証済みユーザーIDを注入する。
// セッションミドルウェアおよびテストで使用する。
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext はコンテキストから認証済みユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok && userID != 0
}

// ContextWithSessionID はコンテキストに現在のセッションIDを注入する。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}

// SessionIDFromContext はコンテキストから現在のセッションIDを取得する。
// セッションコンテキストがない場合は空文字列とfalseを返す。
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionIDContextKey).(string)
	return sessionID, ok && sessionID != ""
}

// Identity は認証済みアイデンティティの参照インターフェース。
// マネージャ層は認証そのものを行わず、このインターフェース経由で
// 「現在のユーザー」と「認証済みか」のみを問い合わせる。
type Identity interface {
	// CurrentUserID は現在認証されているユーザーのIDを返す。
	// 未認証の場合は第2戻り値がfalse。
	CurrentUserID(ctx context.Context) (int64, bool)
	// IsLoggedIn は現在のリクエストが認証済みかを返す。
	IsLoggedIn(ctx context.Context) bool
}

// ContextIdentity はセッションミドルウェアがコンテキストに注入した
// 認証状態を読み取るIdentity実装。
type ContextIdentity struct{}

// NewContextIdentity はContextIdentityを生成する。
func NewContextIdentity() *ContextIdentity {
	return &ContextIdentity{}
}

// CurrentUserID はコンテキストから現在のユーザーIDを返す。
func (i *ContextIdentity) CurrentUserID(ctx context.Context) (int64, bool) {
	return UserIDFromContext(ctx)
}

// IsLoggedIn はコンテキストに認証済みユーザーIDがあるかを返す。
func (i *ContextIdentity) IsLoggedIn(ctx context.Context) bool {
	_, ok := UserIDFromContext(ctx)
	return ok
}

// compile-time interface check
var _ Identity = (*ContextIdentity)(nil)
