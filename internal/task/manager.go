// Package task はタスクとTodoリスト管理のドメインロジックを提供する。
package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/todoman/internal/auth"
	"github.com/hitoshi/todoman/internal/cache"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// NameSanitizer はタスク名からマークアップを除去するインターフェース。
// security.TextSanitizerServiceが実装する。
type NameSanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder はタスク操作とキャッシュの統計を記録するインターフェース。
// metrics.Collectorが実装する。nilの場合は記録しない。
type MetricsRecorder interface {
	RecordTaskCreated()
	RecordTaskCompleted()
	RecordTaskDeleted()
	RecordCacheHit()
	RecordCacheMiss()
}

// Manager はタスク管理のサービス層。
// リスト単位のタスク一覧をキャッシュし、ミューテーション時に明示的に無効化する。
type Manager struct {
	taskRepo  repository.TaskRepository
	listRepo  repository.ListRepository
	store     cache.Store
	identity  auth.Identity
	sanitizer NameSanitizer
	metrics   MetricsRecorder
}

// NewManager はManagerの新しいインスタンスを生成する。
// metricsはnil許容。
func NewManager(
	taskRepo repository.TaskRepository,
	listRepo repository.ListRepository,
	store cache.Store,
	identity auth.Identity,
	sanitizer NameSanitizer,
	metrics MetricsRecorder,
) *Manager {
	return &Manager{
		taskRepo:  taskRepo,
		listRepo:  listRepo,
		store:     store,
		identity:  identity,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// cacheKey はリスト単位のタスク一覧キャッシュのキーを返す。
func cacheKey(listID int64) string {
	return fmt.Sprintf("todo_list_%d", listID)
}

// CreateTask は未永続の新規タスクを組み立てる。
// 作成者は現在のユーザー、完了フラグはfalse、名前はサニタイズ済み。
func (m *Manager) CreateTask(ctx context.Context, listID int64, name string) *model.Task {
	userID, _ := m.identity.CurrentUserID(ctx)
	return &model.Task{
		ListID:      listID,
		Name:        m.sanitizer.Sanitize(name),
		IsCompleted: false,
		CreatedBy:   userID,
	}
}

// Validate はタスクのフィールド検証とリスト所有権の検証を行う。
// フィールド名→エラーメッセージのマップを返し、空なら妥当。
// 未ログインおよび他人のリストはlist_idキーの違反とする。
func (m *Manager) Validate(ctx context.Context, task *model.Task) (map[string]string, error) {
	violations := task.Validate()

	canEdit, err := m.HasEditPermissions(ctx, task.ListID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		violations["list_id"] = "You don't have permissions to edit this todo list."
	}

	return violations, nil
}

// GetTask は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (m *Manager) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	task, err := m.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return task, nil
}

// InsertTask は新規タスクを永続化し、所属リストのキャッシュを無効化する。
func (m *Manager) InsertTask(ctx context.Context, task *model.Task) error {
	if err := m.taskRepo.Insert(ctx, task); err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	m.store.Delete(cacheKey(task.ListID))

	if m.metrics != nil {
		m.metrics.RecordTaskCreated()
	}

	slog.Info("タスクを作成しました",
		slog.Int64("task_id", task.ID),
		slog.Int64("list_id", task.ListID),
	)

	return nil
}

// UpdateTask は既存タスクを上書き更新し、所属リストのキャッシュを無効化する。
// タスク名は保存前にサニタイズされる。
func (m *Manager) UpdateTask(ctx context.Context, task *model.Task) error {
	task.Name = m.sanitizer.Sanitize(task.Name)

	if err := m.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}

	m.store.Delete(cacheKey(task.ListID))

	if m.metrics != nil && task.IsCompleted {
		m.metrics.RecordTaskCompleted()
	}

	return nil
}

// DeleteTask は指定IDのタスクを削除し、所属リストのキャッシュを無効化する。
// 対象が存在しない場合はTASK_NOT_FOUNDエラーを返す。
func (m *Manager) DeleteTask(ctx context.Context, id int64) error {
	task, err := m.taskRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return model.NewTaskNotFoundError(id)
	}

	if err := m.taskRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}

	m.store.Delete(cacheKey(task.ListID))

	if m.metrics != nil {
		m.metrics.RecordTaskDeleted()
	}

	slog.Info("タスクを削除しました",
		slog.Int64("task_id", id),
		slog.Int64("list_id", task.ListID),
	)

	return nil
}

// GetListByUser は現在のユーザーが所有するTodoリストを返す。
// リストが存在しない場合はnil、未認証の場合はUNAUTHENTICATEDエラーを返す。
func (m *Manager) GetListByUser(ctx context.Context) (*model.TodoList, error) {
	userID, ok := m.identity.CurrentUserID(ctx)
	if !ok {
		return nil, model.NewUnauthenticatedError()
	}

	list, err := m.listRepo.FindByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	return list, nil
}

// CreateFirstTodoList は現在のユーザーを所有者とする新規リストを作成し、
// 生成されたIDを返す。既存リストの有無は確認しないため、呼び出しごとに
// リストが1つ増える。呼び出し側は事前にGetListByUserで存在を確認すること。
func (m *Manager) CreateFirstTodoList(ctx context.Context) (int64, error) {
	userID, ok := m.identity.CurrentUserID(ctx)
	if !ok {
		return 0, model.NewUnauthenticatedError()
	}

	listID, err := m.listRepo.Create(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("リストの作成に失敗しました: %w", err)
	}

	slog.Info("Todoリストを作成しました",
		slog.Int64("list_id", listID),
		slog.Int64("owner_id", userID),
	)

	return listID, nil
}

// FindByListID は指定リストの全タスクをID昇順で返す。
// キャッシュを先に参照し、ミス時はデータベースから取得してキャッシュに格納する。
func (m *Manager) FindByListID(ctx context.Context, listID int64) ([]model.Task, error) {
	key := cacheKey(listID)

	if cached, ok := m.store.Get(key); ok {
		if tasks, ok := cached.([]model.Task); ok {
			if m.metrics != nil {
				m.metrics.RecordCacheHit()
			}
			return tasks, nil
		}
	}

	if m.metrics != nil {
		m.metrics.RecordCacheMiss()
	}

	tasks, err := m.taskRepo.ListByListID(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}

	m.store.Set(key, tasks)
	return tasks, nil
}

// HasEditPermissions は現在のユーザーが指定リストを編集できるかを返す。
// 未ログインの場合とリストの所有者でない場合はfalseを返す。
func (m *Manager) HasEditPermissions(ctx context.Context, listID int64) (bool, error) {
	userID, ok := m.identity.CurrentUserID(ctx)
	if !ok {
		return false, nil
	}

	isOwner, err := m.listRepo.IsOwner(ctx, listID, userID)
	if err != nil {
		return false, fmt.Errorf("リスト所有権の確認に失敗しました: %w", err)
	}
	return isOwner, nil
}
