// Package ratelimit реализует fixed-window счетчики запросов по ключам.
//
// Окно фиксированное, не скользящее: на границе окон допускается до
// 2×limit запросов подряд. Это осознанный компромисс ради O(1) памяти
// на ключ и простоты рассуждений, а не дефект.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store abstracts the per-key counter table consulted by the admission gate.
// Позволяет подменить backing store, не меняя контракт gate.
type Store interface {
	// TryConsume accounts one request for the key.
	// Returns whether the request is allowed and how many permits remain
	// in the current window.
	TryConsume(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

// entry представляет счетчик одного ключа
type entry struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// MemoryStore is an in-process implementation of Store.
// Записи создаются лениво при первом запросе ключа и никогда не удаляются.
// Доступ к записи одного ключа взаимно исключающий, записи разных ключей
// не конкурируют между собой.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory rate limit store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// TryConsume accounts one request for the key within the fixed window
func (s *MemoryStore) TryConsume(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	e := s.getOrCreate(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()

	// Окно истекло - начинаем новое
	if now.Sub(e.windowStart) > window {
		e.count = 0
		e.windowStart = now
	}

	if e.count >= limit {
		return false, 0, nil
	}

	e.count++
	return true, limit - e.count, nil
}

// getOrCreate возвращает запись ключа, создавая ее при первом обращении.
// Перепроверка под write lock делает создание безопасным при конкурентном
// первом обращении к одному ключу.
func (s *MemoryStore) getOrCreate(key string) *entry {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e
	}

	e = &entry{windowStart: s.now()}
	s.entries[key] = e
	return e
}
