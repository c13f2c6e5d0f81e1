package cache

import (
	"strings"
	"sync"
)

// Store 是进程内的 populate-once / read-many 缓存。
//
// 约束：
// - 每个 key 只允许成功写入一次；写入后值视为不可变（直到进程退出）
// - 不做过期、不做淘汰、不落盘
// - 并发安全：读多写少，使用 RWMutex
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

func New[V any]() *Store[V] {
	return &Store[V]{entries: make(map[string]V, 4)}
}

// Get 返回 key 对应的值；ok=false 表示尚未填充。
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[cleanKey(key)]
	return v, ok
}

// SetOnce 仅在 key 未填充时写入，并返回最终生效的值。
// stored=false 表示已有值（本次写入被丢弃，调用方应使用返回的 current）。
func (s *Store[V]) SetOnce(key string, v V) (current V, stored bool) {
	key = cleanKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[key]; ok {
		return old, false
	}
	s.entries[key] = v
	return v, true
}

// Len 返回已填充的 key 数量。
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cleanKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
