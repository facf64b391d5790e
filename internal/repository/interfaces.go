// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/todoman/internal/model"
)

// FindOptions は検索クエリのオプション（ソート・ページネーション）を表す。
// ゼロ値はオプションなしを意味する。
type FindOptions struct {
	// OrderBy はソート対象のカラム名。空の場合はソートしない。
	OrderBy string
	// Descending はtrueの場合降順でソートする。
	Descending bool
	// Limit は最大取得件数。0の場合は無制限。
	Limit int
	// Offset は読み飛ばす件数。Limitが0の場合は無視される。
	Offset int
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindBy は等価条件criteriaに一致するユーザーを取得する。
	// criteriaのキーは許可されたカラム名のみ。0件の場合は空スライスを返す。
	FindBy(ctx context.Context, criteria map[string]any, opts FindOptions) ([]*model.User, error)

	// Insert は新規ユーザーを作成し、生成されたIDをエンティティに書き戻す。
	Insert(ctx context.Context, user *model.User) error
}

// ListRepository はTodoリストデータの永続化インターフェース。
type ListRepository interface {
	// FindByOwner は指定ユーザーが所有するリストを取得する。
	// 複数存在する場合は最初の1件、存在しない場合はnilを返す。
	FindByOwner(ctx context.Context, ownerID int64) (*model.TodoList, error)

	// IsOwner は指定リストの所有者が指定ユーザーかを返す。
	// リストが存在しない場合もfalseを返す。
	IsOwner(ctx context.Context, listID, ownerID int64) (bool, error)

	// Create は指定ユーザーを所有者とする新規リストを作成し、生成されたIDを返す。
	Create(ctx context.Context, ownerID int64) (int64, error)
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Task, error)

	// ListByListID は指定リストの全タスクをID昇順で取得する。
	// 0件の場合は空スライスを返す。
	ListByListID(ctx context.Context, listID int64) ([]model.Task, error)

	// Insert は新規タスクを作成し、生成されたIDをエンティティに書き戻す。
	Insert(ctx context.Context, task *model.Task) error

	// Update は既存タスクを上書き更新する。対象が存在しない場合はエラーを返す。
	Update(ctx context.Context, task *model.Task) error

	// Delete は指定IDのタスクを削除する。対象が存在しない場合はエラーを返す。
	Delete(ctx context.Context, id int64) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}
