package job_scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/TimeWtr/job_scheduler/repository"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// flakyLogRepository 前failures次写入失败
type flakyLogRepository struct {
	*repository.MemoryExecutionLogRepository
	mu       sync.Mutex
	failures int
	attempts int
}

func (r *flakyLogRepository) Append(ctx context.Context, entry domain.ExecutionLogEntry) error {
	r.mu.Lock()
	r.attempts++
	fail := r.attempts <= r.failures
	r.mu.Unlock()
	if fail {
		return domain.StoreUnavailable(errors.New("disk full"), "append execution log")
	}
	return r.MemoryExecutionLogRepository.Append(ctx, entry)
}

func newTestRunner(t *testing.T, logs repository.ExecutionLogRepository, registry *executorRegistry, onComplete CompleteFunc) *Runner {
	r := newRunner(registry, logs, 2, time.Second,
		func() RetryStrategy { return NewFixedRetryStrategy(time.Millisecond, 3) },
		newFakeClock(t0), NewZapLogger(zaptest.NewLogger(t)), onComplete)
	t.Cleanup(func() {
		_ = r.Stop(context.Background())
	})
	return r
}

func okRegistry() *executorRegistry {
	registry := newExecutorRegistry()
	registry.setDefault(func(ctx context.Context, exec Execution) error { return nil })
	return registry
}

func TestRunner_RetriesLogAppend(t *testing.T) {
	logs := &flakyLogRepository{MemoryExecutionLogRepository: repository.NewMemoryExecutionLogRepository(), failures: 2}
	var completed []domain.ExecutionLogEntry
	r := newTestRunner(t, logs, okRegistry(), func(f Firing, entry domain.ExecutionLogEntry, _ time.Time) {
		completed = append(completed, entry)
	})

	job := newTestJob("a", domain.FixedRateSchedule(time.Minute))
	entry := r.Run(context.Background(), Firing{Job: job, FireTime: t0})
	assert.Equal(t, _const.ExecutionSuccess, entry.Outcome)
	assert.Equal(t, 3, logs.attempts)

	stored, err := logs.FindByJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, entry.ID, stored[0].ID)
	assert.Len(t, completed, 1)
}

func TestRunner_GivesUpAfterRetries(t *testing.T) {
	logs := &flakyLogRepository{MemoryExecutionLogRepository: repository.NewMemoryExecutionLogRepository(), failures: 10}
	called := false
	r := newTestRunner(t, logs, okRegistry(), func(f Firing, entry domain.ExecutionLogEntry, _ time.Time) {
		called = true
	})

	job := newTestJob("a", domain.FixedRateSchedule(time.Minute))
	r.Run(context.Background(), Firing{Job: job, FireTime: t0})
	// 首次写入加3次重试
	assert.Equal(t, 4, logs.attempts)
	assert.True(t, called)

	stored, err := logs.FindByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRunner_LimitsConcurrency(t *testing.T) {
	logs := repository.NewMemoryExecutionLogRepository()
	registry := newExecutorRegistry()

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	release := make(chan struct{})
	registry.setDefault(func(ctx context.Context, exec Execution) error {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(5)
	r := newTestRunner(t, logs, registry, func(f Firing, entry domain.ExecutionLogEntry, _ time.Time) {
		wg.Done()
	})

	for i := 0; i < 5; i++ {
		job := newTestJob("a", domain.FixedRateSchedule(time.Minute))
		require.NoError(t, r.Submit(Firing{Job: job, FireTime: t0}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return running == 2
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 2, peak)
}
