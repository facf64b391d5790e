package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// --- モック ---

type mockUserRepo struct {
	findByFn func(ctx context.Context, criteria map[string]any, opts repository.FindOptions) ([]*model.User, error)
}

func (m *mockUserRepo) FindBy(ctx context.Context, criteria map[string]any, opts repository.FindOptions) ([]*model.User, error) {
	if m.findByFn != nil {
		return m.findByFn(ctx, criteria, opts)
	}
	return []*model.User{}, nil
}

func (m *mockUserRepo) Insert(ctx context.Context, user *model.User) error {
	return nil
}

type mockSessionRepo struct {
	created      []*model.Session
	deleted      []string
	createFn     func(ctx context.Context, session *model.Session) error
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	m.created = append(m.created, session)
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func testUser(t *testing.T, password string) *model.User {
	t.Helper()
	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u := model.NewUser("a@x.com")
	u.ID = 7
	u.Password = hashed
	return u
}

// --- テスト ---

// 正しい資格情報でログインするとセッションが発行されることを検証
func TestService_Login_Success(t *testing.T) {
	user := testUser(t, "secret1")
	userRepo := &mockUserRepo{
		findByFn: func(ctx context.Context, criteria map[string]any, opts repository.FindOptions) ([]*model.User, error) {
			if criteria["email"] != "a@x.com" {
				t.Errorf("criteria email = %v, want a@x.com", criteria["email"])
			}
			return []*model.User{user}, nil
		},
	}
	sessionRepo := &mockSessionRepo{}
	svc := NewService(userRepo, sessionRepo, ServiceConfig{SessionMaxAge: 3600})

	session, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if session.UserID != 7 {
		t.Errorf("session.UserID = %d, want 7", session.UserID)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64 hex chars", len(session.ID))
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("session should expire in the future")
	}
	if len(sessionRepo.created) != 1 {
		t.Errorf("created sessions = %d, want 1", len(sessionRepo.created))
	}
}

// パスワード不一致で資格情報エラーになることを検証
func TestService_Login_WrongPassword(t *testing.T) {
	user := testUser(t, "secret1")
	userRepo := &mockUserRepo{
		findByFn: func(ctx context.Context, criteria map[string]any, opts repository.FindOptions) ([]*model.User, error) {
			return []*model.User{user}, nil
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 3600})

	_, err := svc.Login(context.Background(), "a@x.com", "wrong")
	assertInvalidCredentials(t, err)
}

// 未登録メールアドレスでも同一の資格情報エラーになることを検証
// （ユーザー存在の探り当てを防ぐ）
func TestService_Login_UnknownEmail(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 3600})

	_, err := svc.Login(context.Background(), "nobody@x.com", "secret1")
	assertInvalidCredentials(t, err)
}

// LoginAsUserが新規セッションを発行することを検証
func TestService_LoginAsUser_CreatesSession(t *testing.T) {
	sessionRepo := &mockSessionRepo{}
	svc := NewService(&mockUserRepo{}, sessionRepo, ServiceConfig{SessionMaxAge: 3600})

	user := &model.User{ID: 3, Email: "b@x.com"}
	session, err := svc.LoginAsUser(context.Background(), user)
	if err != nil {
		t.Fatalf("LoginAsUser returned error: %v", err)
	}
	if session.UserID != 3 {
		t.Errorf("session.UserID = %d, want 3", session.UserID)
	}
	if len(sessionRepo.deleted) != 0 {
		t.Errorf("deleted sessions = %v, want none without session context", sessionRepo.deleted)
	}
}

// コンテキストに既存セッションがある場合、LoginAsUserがそれを破棄することを検証
func TestService_LoginAsUser_DiscardsPreviousSession(t *testing.T) {
	sessionRepo := &mockSessionRepo{}
	svc := NewService(&mockUserRepo{}, sessionRepo, ServiceConfig{SessionMaxAge: 3600})

	ctx := ContextWithSessionID(context.Background(), "old-session")
	if _, err := svc.LoginAsUser(ctx, &model.User{ID: 3}); err != nil {
		t.Fatalf("LoginAsUser returned error: %v", err)
	}
	if len(sessionRepo.deleted) != 1 || sessionRepo.deleted[0] != "old-session" {
		t.Errorf("deleted sessions = %v, want [old-session]", sessionRepo.deleted)
	}
}

// Logoutがセッションを削除することを検証
func TestService_Logout(t *testing.T) {
	sessionRepo := &mockSessionRepo{}
	svc := NewService(&mockUserRepo{}, sessionRepo, ServiceConfig{SessionMaxAge: 3600})

	if err := svc.Logout(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if len(sessionRepo.deleted) != 1 || sessionRepo.deleted[0] != "sess-1" {
		t.Errorf("deleted sessions = %v, want [sess-1]", sessionRepo.deleted)
	}
}

// 空のセッションIDでLogoutが失敗することを検証
func TestService_Logout_EmptySessionID(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 3600})

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

// HashPassword/CheckPasswordの往復を検証
func TestPassword_HashAndCheck(t *testing.T) {
	hashed, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hashed == "secret1" {
		t.Error("hash should not equal the plaintext")
	}
	if !CheckPassword(hashed, "secret1") {
		t.Error("CheckPassword should accept the original password")
	}
	if CheckPassword(hashed, "secret2") {
		t.Error("CheckPassword should reject a wrong password")
	}
}

// ContextIdentityがコンテキストの認証状態を反映することを検証
func TestContextIdentity(t *testing.T) {
	identity := NewContextIdentity()
	ctx := context.Background()

	if identity.IsLoggedIn(ctx) {
		t.Error("empty context should not be logged in")
	}
	if _, ok := identity.CurrentUserID(ctx); ok {
		t.Error("empty context should have no current user")
	}

	ctx = ContextWithUserID(ctx, 42)
	if !identity.IsLoggedIn(ctx) {
		t.Error("context with user ID should be logged in")
	}
	id, ok := identity.CurrentUserID(ctx)
	if !ok || id != 42 {
		t.Errorf("CurrentUserID = %d, %v, want 42, true", id, ok)
	}
}

func assertInvalidCredentials(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %s, want %s", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}
