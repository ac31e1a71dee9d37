package job_scheduler

import (
	"sync"

	"github.com/google/uuid"
)

// jobLocker 按Job ID加锁，同一个Job的变更串行执行，不同Job之间互不影响
type jobLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newJobLocker() *jobLocker {
	return &jobLocker{locks: make(map[uuid.UUID]*refMutex)}
}

// Lock 返回解锁函数
func (l *jobLocker) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &refMutex{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
