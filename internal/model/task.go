// Package model はドメインモデルを定義する。
package model

// MaxTaskNameLength はタスク名の最大文字数。tasksテーブルのVARCHAR(255)に対応する。
const MaxTaskNameLength = 255

// Task はTodoリストに属する1件のタスクを表す。
type Task struct {
	ID          int64
	ListID      int64
	Name        string
	IsCompleted bool
	CreatedBy   int64
}

// TodoList はユーザーが所有するTodoリストを表す。
// 現行設計では1ユーザーにつき1リスト（アプリケーションロジックでのみ保証）。
type TodoList struct {
	ID      int64
	OwnerID int64
}

// Validate はタスクのフィールド検証を行い、フィールド名→エラーメッセージの
// マップを返す。マップが空なら妥当。I/Oや副作用は持たない。
// 所有権チェックはここでは行わず、マネージャ層のValidateが担当する。
func (t *Task) Validate() map[string]string {
	errors := make(map[string]string)
	if t.Name == "" {
		errors["name"] = "Task name is required."
	} else if len(t.Name) > MaxTaskNameLength {
		errors["name"] = "Task name can't be longer than 255 characters."
	}
	return errors
}
