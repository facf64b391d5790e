package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/hitoshi/todoman/internal/model"
)

// userColumns はFindByのcriteriaおよびOrderByで許可されるカラム名。
// 外部入力がSQLに連結されることを防ぐホワイトリスト。
var userColumns = map[string]bool{
	"id":       true,
	"email":    true,
	"password": true,
	"salt":     true,
	"name":     true,
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindBy は等価条件criteriaに一致するユーザーを取得する。
func (r *PostgresUserRepo) FindBy(ctx context.Context, criteria map[string]any, opts FindOptions) ([]*model.User, error) {
	query, params, err := buildUserFindQuery(criteria, opts)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.Password, &user.Salt, &user.Name); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}

	return users, nil
}

// Insert は新規ユーザーを作成し、生成されたIDをエンティティに書き戻す。
func (r *PostgresUserRepo) Insert(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password, salt, name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		user.Email, user.Password, user.Salt, user.Name,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// buildUserFindQuery はcriteriaとオプションからSELECT文とパラメータを構築する。
// criteriaのキーは決定的な順序で処理する。
func buildUserFindQuery(criteria map[string]any, opts FindOptions) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, email, password, salt, name FROM users`)

	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		if !userColumns[k] {
			return "", nil, fmt.Errorf("unknown user column in criteria: %s", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make([]any, 0, len(keys))
	for i, k := range keys {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "%s = $%d", k, i+1)
		params = append(params, criteria[k])
	}

	if opts.OrderBy != "" {
		if !userColumns[opts.OrderBy] {
			return "", nil, fmt.Errorf("unknown user column in order_by: %s", opts.OrderBy)
		}
		dir := "ASC"
		if opts.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", opts.OrderBy, dir)
	}

	if opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	return sb.String(), params, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
