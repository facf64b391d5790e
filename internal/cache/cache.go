// Package cache はキー/バリュー型のプロセスローカルキャッシュを提供する。
package cache

import "sync"

// Store はキャッシュストアのインターフェース。
// 文字列キーによるcontains/get/set/deleteのみを提供し、TTLや順序の概念は持たない。
// 整合性は利用側の明示的なDelete（ミューテーション時の無効化）に依存する。
type Store interface {
	// Contains はキーが存在するかを返す。
	Contains(key string) bool
	// Get はキーに対応する値を返す。存在しない場合は第2戻り値がfalse。
	Get(key string) (any, bool)
	// Set はキーに値を格納する。既存の値は上書きされる。
	Set(key string, value any)
	// Delete はキーを削除する。存在しないキーの削除は何もしない。
	Delete(key string)
}

// Memory はインメモリのStore実装。
// HTTPサーバーは並行にリクエストを処理するため、RWMutexで同期する。
type Memory struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewMemory は空のMemoryキャッシュを生成する。
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]any),
	}
}

// Contains はキーが存在するかを返す。
func (m *Memory) Contains(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

// Get はキーに対応する値を返す。
func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Set はキーに値を格納する。
func (m *Memory) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Delete はキーを削除する。
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// compile-time interface check
var _ Store = (*Memory)(nil)
