package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/todoman/internal/model"
)

// TaskManagerInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskManagerInterface interface {
	// CreateTask は未永続の新規タスクを組み立てる。
	CreateTask(ctx context.Context, listID int64, name string) *model.Task
	// Validate はフィールド検証とリスト所有権の検証を行う。
	Validate(ctx context.Context, task *model.Task) (map[string]string, error)
	// GetTask は指定IDのタスクを取得する。見つからない場合はnilを返す。
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	// InsertTask は新規タスクを永続化する。
	InsertTask(ctx context.Context, task *model.Task) error
	// UpdateTask は既存タスクを上書き更新する。
	UpdateTask(ctx context.Context, task *model.Task) error
	// DeleteTask は指定IDのタスクを削除する。
	DeleteTask(ctx context.Context, id int64) error
	// GetListByUser は現在のユーザーが所有するリストを返す。
	GetListByUser(ctx context.Context) (*model.TodoList, error)
	// CreateFirstTodoList は現在のユーザーの最初のリストを作成する。
	CreateFirstTodoList(ctx context.Context) (int64, error)
	// FindByListID はリストの全タスクを返す。
	FindByListID(ctx context.Context, listID int64) ([]model.Task, error)
	// HasEditPermissions は現在のユーザーがリストを編集できるかを返す。
	HasEditPermissions(ctx context.Context, listID int64) (bool, error)
}

// CurrentUserProvider は現在のログインユーザーを取得するインターフェース。
// user.Managerが実装する。
type CurrentUserProvider interface {
	GetCurrentUser(ctx context.Context) (*model.User, error)
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	manager TaskManagerInterface
	users   CurrentUserProvider
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(manager TaskManagerInterface, users CurrentUserProvider) *TaskHandler {
	return &TaskHandler{
		manager: manager,
		users:   users,
	}
}

// taskResponse はタスクのAPIレスポンス。
type taskResponse struct {
	ID          int64  `json:"id"`
	ListID      int64  `json:"list_id"`
	Name        string `json:"name"`
	IsCompleted bool   `json:"is_completed"`
}

// toTaskResponse はドメインのTaskをAPIレスポンス型に変換する。
func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		ListID:      t.ListID,
		Name:        t.Name,
		IsCompleted: t.IsCompleted,
	}
}

// SaveTask はタスクの作成または更新を処理する。
// POST /task/save（フォームエンコード: id, name, is_completed）
// idが空の場合は現在のユーザーのリストに新規作成し、指定された場合は更新する。
func (h *TaskHandler) SaveTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	idParam := r.PostForm.Get("id")
	if idParam == "" {
		h.createTask(w, r)
		return
	}

	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid task ID.")
		return
	}
	h.updateTask(w, r, id)
}

// createTask は新規タスクを作成する。
// リクエストがlist_idを指定した場合はそのリストを対象とし、所有権はValidateで
// 検証される。未指定の場合は現在のユーザーのリスト（未作成なら作成）を使う。
func (h *TaskHandler) createTask(w http.ResponseWriter, r *http.Request) {
	var listID int64
	if listParam := r.PostForm.Get("list_id"); listParam != "" {
		parsed, err := strconv.ParseInt(listParam, 10, 64)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "Invalid list ID.")
			return
		}
		listID = parsed
	} else {
		resolved, err := h.resolveListID(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		listID = resolved
	}

	task := h.manager.CreateTask(r.Context(), listID, r.PostForm.Get("name"))

	violations, err := h.manager.Validate(r.Context(), task)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(violations) > 0 {
		handleServiceError(w, model.NewValidationError(violations))
		return
	}

	if err := h.manager.InsertTask(r.Context(), task); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, toTaskResponse(task))
}

// updateTask は既存タスクの名前と完了状態を更新する。
func (h *TaskHandler) updateTask(w http.ResponseWriter, r *http.Request, id int64) {
	task, err := h.manager.GetTask(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if task == nil {
		handleServiceError(w, model.NewTaskNotFoundError(id))
		return
	}

	canEdit, err := h.manager.HasEditPermissions(r.Context(), task.ListID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !canEdit {
		handleServiceError(w, model.NewAccessDeniedError())
		return
	}

	if _, ok := r.PostForm["name"]; ok {
		task.Name = r.PostForm.Get("name")
	}
	task.IsCompleted = r.PostForm.Get("is_completed") == "true"

	violations, err := h.manager.Validate(r.Context(), task)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(violations) > 0 {
		handleServiceError(w, model.NewValidationError(violations))
		return
	}

	if err := h.manager.UpdateTask(r.Context(), task); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, toTaskResponse(task))
}

// DeleteTask はタスクを削除する。
// POST /task/delete（フォームエンコード: id）
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	id, err := strconv.ParseInt(r.PostForm.Get("id"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid task ID.")
		return
	}

	task, err := h.manager.GetTask(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if task == nil {
		handleServiceError(w, model.NewTaskNotFoundError(id))
		return
	}

	canEdit, err := h.manager.HasEditPermissions(r.Context(), task.ListID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !canEdit {
		handleServiceError(w, model.NewAccessDeniedError())
		return
	}

	if err := h.manager.DeleteTask(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, map[string]any{})
}

// ListPage はタスク一覧ページを表示する。
// GET /task/
// リストが未作成の場合はこのタイミングで作成する。
func (h *TaskHandler) ListPage(w http.ResponseWriter, r *http.Request) {
	listID, err := h.resolveListID(r.Context())
	if err != nil {
		slog.Error("failed to resolve todo list", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	tasks, err := h.manager.FindByListID(r.Context(), listID)
	if err != nil {
		slog.Error("failed to load tasks", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	displayName := ""
	if user, err := h.users.GetCurrentUser(r.Context()); err == nil && user != nil {
		displayName = user.DisplayName()
	}

	renderPage(w, "tasks.html", taskPageData{
		ListID:      listID,
		Tasks:       tasks,
		DisplayName: displayName,
	})
}

// resolveListID は現在のユーザーのリストIDを返す。
// リストが存在しない場合は作成する。
func (h *TaskHandler) resolveListID(ctx context.Context) (int64, error) {
	list, err := h.manager.GetListByUser(ctx)
	if err != nil {
		return 0, err
	}
	if list != nil {
		return list.ID, nil
	}
	return h.manager.CreateFirstTodoList(ctx)
}

// taskPageData はタスク一覧ページのテンプレートデータ。
type taskPageData struct {
	ListID      int64
	Tasks       []model.Task
	DisplayName string
}
