package job_scheduler

import (
	"sync"
)

type Cache[K comparable, V any] interface {
	Set(key K, value V)
	Get(key K) (V, bool)
}

func NewLocalCache[K comparable, V any](size int) Cache[K, V] {
	return &LocalCache[K, V]{
		mp: make(map[K]V, size),
		mu: &sync.RWMutex{},
	}
}

type LocalCache[K comparable, V any] struct {
	mp map[K]V
	mu *sync.RWMutex
}

func (l *LocalCache[K, V]) Set(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mp[key] = value
}

func (l *LocalCache[K, V]) Get(key K) (V, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.mp[key]
	return v, ok
}
