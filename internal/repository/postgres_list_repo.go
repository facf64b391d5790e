package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todoman/internal/model"
)

// PostgresListRepo はPostgreSQLを使用したTodoリストリポジトリ。
type PostgresListRepo struct {
	db *sql.DB
}

// NewPostgresListRepo はPostgresListRepoを生成する。
func NewPostgresListRepo(db *sql.DB) *PostgresListRepo {
	return &PostgresListRepo{db: db}
}

// FindByOwner は指定ユーザーが所有するリストを取得する。
// 重複リストが存在する場合に結果が安定するよう、ID昇順の先頭1件を返す。
func (r *PostgresListRepo) FindByOwner(ctx context.Context, ownerID int64) (*model.TodoList, error) {
	list := &model.TodoList{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id FROM todo_lists WHERE owner_id = $1 ORDER BY id LIMIT 1`,
		ownerID,
	).Scan(&list.ID, &list.OwnerID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find todo list by owner: %w", err)
	}

	return list, nil
}

// IsOwner は指定リストの所有者が指定ユーザーかを返す。
func (r *PostgresListRepo) IsOwner(ctx context.Context, listID, ownerID int64) (bool, error) {
	var found int64
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_id FROM todo_lists WHERE id = $1 AND owner_id = $2`,
		listID, ownerID,
	).Scan(&found)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check list ownership: %w", err)
	}

	return true, nil
}

// Create は指定ユーザーを所有者とする新規リストを作成し、生成されたIDを返す。
func (r *PostgresListRepo) Create(ctx context.Context, ownerID int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO todo_lists (owner_id) VALUES ($1) RETURNING id`,
		ownerID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create todo list: %w", err)
	}
	return id, nil
}

// compile-time interface check
var _ ListRepository = (*PostgresListRepo)(nil)
