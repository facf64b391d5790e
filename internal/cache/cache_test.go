package cache

import (
	"fmt"
	"sync"
	"testing"
)

// MemoryはStoreインターフェースを満たすことを検証
func TestMemory_ImplementsInterface(t *testing.T) {
	var _ Store = (*Memory)(nil)
}

// Set/Get/Contains/Deleteの基本動作を検証
func TestMemory_BasicOperations(t *testing.T) {
	m := NewMemory()

	if m.Contains("k") {
		t.Error("empty cache should not contain key")
	}
	if _, ok := m.Get("k"); ok {
		t.Error("Get on empty cache should return false")
	}

	m.Set("k", []int{1, 2, 3})
	if !m.Contains("k") {
		t.Error("cache should contain key after Set")
	}
	v, ok := m.Get("k")
	if !ok {
		t.Fatal("Get should return true after Set")
	}
	if got := v.([]int); len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}

	m.Delete("k")
	if m.Contains("k") {
		t.Error("cache should not contain key after Delete")
	}
}

// Setが既存の値を上書きすることを検証
func TestMemory_SetOverwrites(t *testing.T) {
	m := NewMemory()
	m.Set("k", "old")
	m.Set("k", "new")

	v, _ := m.Get("k")
	if v != "new" {
		t.Errorf("value = %v, want new", v)
	}
}

// 存在しないキーのDeleteがパニックしないことを検証
func TestMemory_DeleteMissingKey(t *testing.T) {
	m := NewMemory()
	m.Delete("missing")
}

// 並行アクセスでレースが発生しないことを検証（go test -race用）
func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%3)
			m.Set(key, n)
			m.Get(key)
			m.Contains(key)
			m.Delete(key)
		}(i)
	}
	wg.Wait()
}
