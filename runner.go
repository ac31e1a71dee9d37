package job_scheduler

import (
	"context"
	"sync"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/TimeWtr/job_scheduler/repository"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"
)

// CompleteFunc 一次执行结束后的回调，执行日志已尝试写入，执行器已经返回
// completedAt为执行器实际返回的时间，超时的执行器晚于日志的写入时间
type CompleteFunc func(f Firing, entry domain.ExecutionLogEntry, completedAt time.Time)

// Runner 执行器调度，使用信号量限制并发，调度循环只负责提交不会被阻塞
type Runner struct {
	registry    *executorRegistry
	logs        repository.ExecutionLogRepository
	limiter     *semaphore.Weighted
	maxDuration time.Duration
	retry       func() RetryStrategy
	clock       Clock
	logger      Logger
	onComplete  CompleteFunc

	// 所有执行共享的根上下文，强制停止时取消
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func newRunner(registry *executorRegistry, logs repository.ExecutionLogRepository, workers int64,
	maxDuration time.Duration, retry func() RetryStrategy, clock Clock, logger Logger, onComplete CompleteFunc) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		registry:    registry,
		logs:        logs,
		limiter:     semaphore.NewWeighted(workers),
		maxDuration: maxDuration,
		retry:       retry,
		clock:       clock,
		logger:      logger,
		onComplete:  onComplete,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Submit 异步提交一次执行，协程池满时在信号量上排队
func (r *Runner) Submit(f Firing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrEngineStopped
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.limiter.Acquire(r.ctx, 1); err != nil {
			r.logger.With(jobFields(f)...).Warn("execution dropped on shutdown")
			return
		}
		r.run(f, func() { r.limiter.Release(1) })
	}()
	return nil
}

// Run 同步执行一次并写入执行日志，返回写入的日志
func (r *Runner) Run(ctx context.Context, f Firing) domain.ExecutionLogEntry {
	return r.execute(ctx, f, func() {})
}

func (r *Runner) run(f Firing, release func()) {
	r.execute(r.ctx, f, release)
}

func (r *Runner) execute(ctx context.Context, f Firing, release func()) domain.ExecutionLogEntry {
	logger := r.logger.With(jobFields(f)...)
	start := r.clock.Now()
	done, execErr := r.invoke(ctx, f, release)
	entry := domain.NewExecutionLogEntry(f.Job.ID, f.FireTime, execErr, r.clock.Now())

	if execErr != nil {
		logger.Error("job execution failed", Field{Key: "err", Val: execErr})
	} else {
		logger.Debug("job executed", Field{Key: "took", Val: entry.CreatedAt.Sub(start)})
	}

	if err := r.appendLog(logger, entry); err != nil {
		// 执行已经发生，日志写入失败只上报，不影响后续调度
		logger.Error("failed to append execution log",
			Field{Key: "outcome", Val: entry.Outcome.String()},
			Field{Key: "err", Val: err},
		)
	}

	completedAt := entry.CreatedAt
	select {
	case <-done:
	default:
		// 超时后执行器仍在运行，等它返回后才回调，同一个Job不会重叠执行
		select {
		case <-done:
			completedAt = r.clock.Now()
			logger.Warn("timed out executor returned", Field{Key: "completed_at", Val: completedAt})
		case <-r.ctx.Done():
			logger.Warn("abandoned running executor on shutdown")
			return entry
		}
	}

	if r.onComplete != nil {
		r.onComplete(f, entry, completedAt)
	}
	return entry
}

// invoke 调用执行器，超时或panic都视为执行失败
// 执行器返回(而不是超时)时才释放并发名额并关闭done，不响应ctx的执行器不会突破并发上限
func (r *Runner) invoke(ctx context.Context, f Firing, release func()) (<-chan struct{}, error) {
	done := make(chan struct{})
	fn, ok := r.registry.lookup(f.Job.Name)
	if !ok {
		release()
		close(done)
		return done, errors.Wrapf(ErrHandlerFailure, "no executor registered for job %q", f.Job.Name)
	}

	lctx, cancel := context.WithTimeout(ctx, r.maxDuration)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer close(done)
		defer release()
		defer func() {
			if p := recover(); p != nil {
				errCh <- errors.Wrapf(ErrHandlerFailure, "executor panic: %v", p)
			}
		}()
		errCh <- fn(lctx, Execution{
			JobID:    f.Job.ID,
			JobName:  f.Job.Name,
			Payload:  f.Job.Payload,
			FireTime: f.FireTime,
			Manual:   f.Manual,
		})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return done, errors.Mark(err, ErrHandlerFailure)
		}
		return done, nil
	case <-lctx.Done():
		return done, errors.Mark(errors.Wrapf(lctx.Err(), "job %q exceeded %s", f.Job.Name, r.maxDuration), ErrHandlerFailure)
	}
}

func (r *Runner) appendLog(logger Logger, entry domain.ExecutionLogEntry) error {
	strategy := r.retry()
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), _const.DefaultStoreTimeout)
		err := r.logs.Append(ctx, entry)
		cancel()
		if err == nil {
			return nil
		}

		interval, serr := strategy.Next()
		if serr != nil {
			return err
		}
		logger.Warn("retry appending execution log",
			Field{Key: "interval", Val: interval},
			Field{Key: "err", Val: err},
		)

		if timer == nil {
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}
		select {
		case <-r.ctx.Done():
			return errors.CombineErrors(err, r.ctx.Err())
		case <-timer.C:
		}
	}
}

// Stop 不再接收新的执行，等待执行中的任务完成，ctx到期后取消所有执行
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.logger.Warn("runner shutdown timed out, cancelling active executions")
		r.cancel()
		<-done
		return ctx.Err()
	}
}
