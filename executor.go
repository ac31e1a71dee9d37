package job_scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Execution 传给执行器的一次执行上下文
type Execution struct {
	JobID    uuid.UUID
	JobName  string
	Payload  []byte
	FireTime time.Time
	Manual   bool
}

type ExecutorFunc func(ctx context.Context, exec Execution) error

// Executor 执行器抽象
type Executor interface {
	// Name Executor名称，与Job名称匹配
	Name() string
	// Execute 执行方法
	Execute(ctx context.Context, exec Execution) error
}

// executorRegistry 本地的执行器注册中心，按Job名称查找，找不到时使用默认执行器
type executorRegistry struct {
	mu       sync.RWMutex
	center   map[string]ExecutorFunc
	fallback ExecutorFunc
}

func newExecutorRegistry() *executorRegistry {
	return &executorRegistry{center: map[string]ExecutorFunc{}}
}

func (r *executorRegistry) register(name string, fn ExecutorFunc) error {
	if name == "" {
		return errors.New("executor name required")
	}
	if fn == nil {
		return errors.Newf("executor %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.center[name] = fn
	return nil
}

func (r *executorRegistry) setDefault(fn ExecutorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

func (r *executorRegistry) lookup(name string) (ExecutorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.center[name]; ok {
		return fn, true
	}
	return r.fallback, r.fallback != nil
}
