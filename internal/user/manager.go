// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/todoman/internal/auth"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// SessionStarter は指定ユーザーの認証済みセッションを確立するインターフェース。
// auth.Serviceが実装する。
type SessionStarter interface {
	LoginAsUser(ctx context.Context, user *model.User) (*model.Session, error)
}

// Manager はユーザー管理のサービス層。
// IDで読み込んだユーザーをアイデンティティマップに保持し、
// 同一IDの再検索ではデータベースに問い合わせない。
type Manager struct {
	userRepo       repository.UserRepository
	identity       auth.Identity
	sessionStarter SessionStarter

	mu          sync.RWMutex
	identityMap map[int64]*model.User
}

// NewManager はManagerの新しいインスタンスを生成する。
func NewManager(
	userRepo repository.UserRepository,
	identity auth.Identity,
	sessionStarter SessionStarter,
) *Manager {
	return &Manager{
		userRepo:       userRepo,
		identity:       identity,
		sessionStarter: sessionStarter,
		identityMap:    make(map[int64]*model.User),
	}
}

// FindBy は等価条件criteriaに一致するユーザーを取得する。
// 条件がID単独かつオプションなしの場合はアイデンティティマップを先に参照し、
// ヒットすればデータベースに問い合わせない。取得した行はすべてマップに登録する。
func (m *Manager) FindBy(ctx context.Context, criteria map[string]any, opts repository.FindOptions) ([]*model.User, error) {
	if id, ok := idOnlyCriteria(criteria, opts); ok {
		m.mu.RLock()
		cached, hit := m.identityMap[id]
		m.mu.RUnlock()
		if hit {
			return []*model.User{cached}, nil
		}
	}

	users, err := m.userRepo.FindBy(ctx, criteria, opts)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}

	m.mu.Lock()
	for _, u := range users {
		if u.ID != 0 {
			m.identityMap[u.ID] = u
		}
	}
	m.mu.Unlock()

	return users, nil
}

// FindOneBy は条件に一致する最初の1件を返す。見つからない場合はnilを返す。
func (m *Manager) FindOneBy(ctx context.Context, criteria map[string]any) (*model.User, error) {
	users, err := m.FindBy(ctx, criteria, repository.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// GetUser は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (m *Manager) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return m.FindOneBy(ctx, map[string]any{"id": id})
}

// LoadUserByUsername はメールアドレスでユーザーを取得する。
// 見つからない場合はUSER_NOT_FOUNDエラーを返す（認証フローで使用する）。
func (m *Manager) LoadUserByUsername(ctx context.Context, email string) (*model.User, error) {
	user, err := m.FindOneBy(ctx, map[string]any{"email": email})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(email)
	}
	return user, nil
}

// Insert は新規ユーザーを永続化し、アイデンティティマップに登録する。
func (m *Manager) Insert(ctx context.Context, user *model.User) error {
	if err := m.userRepo.Insert(ctx, user); err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	m.mu.Lock()
	m.identityMap[user.ID] = user
	m.mu.Unlock()

	slog.Info("ユーザーを作成しました",
		slog.Int64("user_id", user.ID),
	)

	return nil
}

// CreateUser は新規ユーザーのエンティティを組み立てる（永続化はしない）。
// パスワードが空でない場合はbcryptでハッシュ化して設定する。
func (m *Manager) CreateUser(email, password, name string) (*model.User, error) {
	user := model.NewUser(email)

	if password != "" {
		hashed, err := auth.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
		}
		user.Password = hashed
	}
	if name != "" {
		user.Name = name
	}

	return user, nil
}

// Validate はエンティティ検証に加えメールアドレスの一意性を検証する。
// 自分自身のIDに紐づく既存行は重複とみなさない。
// 違反がない場合は空のマップを返す。
func (m *Manager) Validate(ctx context.Context, user *model.User) (map[string]string, error) {
	violations := user.Validate()

	if _, taken := violations["email"]; !taken && user.Email != "" {
		existing, err := m.FindOneBy(ctx, map[string]any{"email": user.Email})
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != user.ID {
			violations["email"] = "This email is already used."
		}
	}

	return violations, nil
}

// IsLoggedIn は現在のリクエストが認証済みかを返す。
func (m *Manager) IsLoggedIn(ctx context.Context) bool {
	return m.identity.IsLoggedIn(ctx)
}

// GetCurrentUser は現在認証されているユーザーを返す。
// 未認証の場合はnilを返す。
func (m *Manager) GetCurrentUser(ctx context.Context) (*model.User, error) {
	userID, ok := m.identity.CurrentUserID(ctx)
	if !ok {
		return nil, nil
	}
	return m.GetUser(ctx, userID)
}

// LoginAsUser は指定ユーザーの認証済みセッションを確立する。
// 登録直後の自動ログインで使用する。
func (m *Manager) LoginAsUser(ctx context.Context, user *model.User) (*model.Session, error) {
	return m.sessionStarter.LoginAsUser(ctx, user)
}

// idOnlyCriteria はcriteriaがID単独の等価条件かを判定し、そのIDを返す。
// 結果が変わりうるソートや読み飛ばしが指定されている場合は対象外とする。
func idOnlyCriteria(criteria map[string]any, opts repository.FindOptions) (int64, bool) {
	if len(criteria) != 1 || opts.OrderBy != "" || opts.Offset != 0 || opts.Limit > 1 {
		return 0, false
	}
	switch id := criteria["id"].(type) {
	case int64:
		return id, true
	case int:
		return int64(id), true
	default:
		return 0, false
	}
}
