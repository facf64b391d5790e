package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoman/internal/model"
)

const sessionCookieName = "session_id"

// UserManagerInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserManagerInterface interface {
	// CreateUser は新規ユーザーのエンティティを組み立てる（永続化はしない）。
	CreateUser(email, password, name string) (*model.User, error)
	// Validate はエンティティ検証とメールアドレスの一意性検証を行う。
	Validate(ctx context.Context, user *model.User) (map[string]string, error)
	// Insert は新規ユーザーを永続化する。
	Insert(ctx context.Context, user *model.User) error
	// LoginAsUser は指定ユーザーの認証済みセッションを確立する。
	LoginAsUser(ctx context.Context, user *model.User) (*model.Session, error)
	// GetCurrentUser は現在認証されているユーザーを返す。
	GetCurrentUser(ctx context.Context) (*model.User, error)
}

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はメールアドレスとパスワードで認証し、セッションを発行する。
	Login(ctx context.Context, email, password string) (*model.Session, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, sessionID string) error
}

// UserHandlerConfig はユーザーハンドラーの設定。
type UserHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// UserHandler はユーザー登録と認証のHTTPハンドラー。
type UserHandler struct {
	users  UserManagerInterface
	auth   AuthServiceInterface
	config UserHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserManagerInterface, auth AuthServiceInterface, config UserHandlerConfig) *UserHandler {
	return &UserHandler{
		users:  users,
		auth:   auth,
		config: config,
	}
}

// registerPageData は登録ページのテンプレートデータ。
type registerPageData struct {
	Errors map[string]string
	Email  string
	Name   string
}

// loginPageData はログインページのテンプレートデータ。
type loginPageData struct {
	Error string
}

// RegisterPage は登録フォームを表示する。
// GET /user/register
func (h *UserHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "register.html", registerPageData{})
}

// Register は新規ユーザーを登録し、自動ログインしてタスク一覧へ誘導する。
// POST /user/register（フォームエンコード: email, password, confirm_password, name）
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	email := r.PostForm.Get("email")
	password := r.PostForm.Get("password")
	name := r.PostForm.Get("name")

	if password != r.PostForm.Get("confirm_password") {
		renderPage(w, "register.html", registerPageData{
			Errors: map[string]string{"password": "Passwords don't match."},
			Email:  email,
			Name:   name,
		})
		return
	}

	// 検証はハッシュ化前の平文パスワードに対して行う
	candidate := model.NewUser(email)
	candidate.Password = password
	candidate.Name = name
	violations, err := h.users.Validate(r.Context(), candidate)
	if err != nil {
		slog.Error("failed to validate user", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if len(violations) > 0 {
		renderPage(w, "register.html", registerPageData{
			Errors: violations,
			Email:  email,
			Name:   name,
		})
		return
	}

	user, err := h.users.CreateUser(email, password, name)
	if err != nil {
		slog.Error("failed to create user entity", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.users.Insert(r.Context(), user); err != nil {
		slog.Error("failed to insert user", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	session, err := h.users.LoginAsUser(r.Context(), user)
	if err != nil {
		slog.Error("failed to start session after registration", slog.String("error", err.Error()))
		// 登録は完了しているためログインページへ誘導する
		http.Redirect(w, r, "/user/login", http.StatusFound)
		return
	}

	h.setSessionCookie(w, session.ID)
	http.Redirect(w, r, "/task/", http.StatusFound)
}

// LoginPage はログインフォームを表示する。
// GET /user/login
func (h *UserHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := loginPageData{}
	if r.URL.Query().Get("error") != "" {
		data.Error = "Invalid email address or password."
	}
	renderPage(w, "login.html", data)
}

// LoginCheck はログインフォームの認証を処理する。
// POST /user/login_check（フォームエンコード: email, password）
// 成功時はタスク一覧へ、失敗時はエラー付きでログインページへリダイレクトする。
func (h *UserHandler) LoginCheck(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	session, err := h.auth.Login(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		http.Redirect(w, r, "/user/login?error=1", http.StatusFound)
		return
	}

	h.setSessionCookie(w, session.ID)
	http.Redirect(w, r, "/task/", http.StatusFound)
}

// Logout はセッションを破棄し、ログインページへ誘導する。
// POST /user/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.auth.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, "/user/login", http.StatusFound)
}

// Me は現在のログインユーザー情報を返す。
// GET /user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetCurrentUser(r.Context())
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		writeFailure(w, http.StatusInternalServerError, "An internal error occurred.")
		return
	}
	if user == nil {
		writeFailure(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.DisplayName(),
	})
}

// setSessionCookie はセッションCookie（HTTP Only）を設定する。
func (h *UserHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieをクリアする。
func (h *UserHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
