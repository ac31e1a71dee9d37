package job_scheduler

import (
	"context"
	"sync"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/TimeWtr/job_scheduler/repository"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SchedulerEngine 调度引擎，对控制层暴露的全部能力
type SchedulerEngine interface {
	// Start 重建触发队列后开启调度循环
	Start(ctx context.Context) error
	// Stop 停止调度循环，等待执行中的任务完成
	Stop(ctx context.Context) error
	// Register 注册执行器方法
	Register(name string, executorFunc ExecutorFunc) error

	CreateJob(ctx context.Context, spec domain.JobSpec) (domain.JobDefinition, error)
	PauseJob(ctx context.Context, id uuid.UUID) (domain.JobDefinition, error)
	ResumeJob(ctx context.Context, id uuid.UUID) (domain.JobDefinition, error)
	DeleteJob(ctx context.Context, id uuid.UUID) error
	RunNow(ctx context.Context, id uuid.UUID) error
	ListJobs(ctx context.Context) ([]domain.JobDefinition, error)
	GetJob(ctx context.Context, id uuid.UUID) (domain.JobDefinition, error)
	GetExecutionLogs(ctx context.Context, jobID uuid.UUID) ([]domain.ExecutionLogEntry, error)
	TriggerState(ctx context.Context, id uuid.UUID) (domain.TriggerState, error)
	TriggerStates() []domain.TriggerState
}

var _ SchedulerEngine = (*SchedulerCore)(nil)

type Options func(core *SchedulerCore)

// WithWorkers 设置并发执行的Job数量，与Job总数无关
func WithWorkers(workers int64) Options {
	return func(c *SchedulerCore) {
		if workers > 0 {
			c.workers = workers
		}
	}
}

// WithMaxExecutionDuration 单次执行的超时时间
func WithMaxExecutionDuration(d time.Duration) Options {
	return func(c *SchedulerCore) {
		if d > 0 {
			c.maxExecutionDuration = d
		}
	}
}

// WithSweepInterval 一致性巡检间隔，0表示关闭
func WithSweepInterval(d time.Duration) Options {
	return func(c *SchedulerCore) {
		c.sweepInterval = d
	}
}

func WithClock(clock Clock) Options {
	return func(c *SchedulerCore) {
		c.clock = clock
	}
}

// WithLocation cron表达式使用的时区
func WithLocation(loc *time.Location) Options {
	return func(c *SchedulerCore) {
		c.location = loc
	}
}

// WithRetryStrategy 执行日志写入失败的重试策略，每次写入创建一个新的策略
func WithRetryStrategy(fn func() RetryStrategy) Options {
	return func(c *SchedulerCore) {
		c.retry = fn
	}
}

// WithDefaultExecutor 没有按名称注册执行器的Job使用该执行器
func WithDefaultExecutor(fn ExecutorFunc) Options {
	return func(c *SchedulerCore) {
		c.registry.setDefault(fn)
	}
}

type SchedulerCore struct {
	logger Logger
	jobs   repository.JobRepository
	logs   repository.ExecutionLogRepository
	clock  Clock
	calc   *Calculator
	queue  *TriggerQueue
	runner *Runner
	locker *jobLocker
	// 本地的执行器注册中心
	registry *executorRegistry

	workers              int64
	maxExecutionDuration time.Duration
	sweepInterval        time.Duration
	location             *time.Location
	retry                func() RetryStrategy

	// 控制层变更后唤醒调度循环
	wakeCh chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSchedulerCore(
	jobs repository.JobRepository,
	logs repository.ExecutionLogRepository,
	logger Logger,
	opts ...Options) *SchedulerCore {
	if logger == nil {
		logger = NopLogger{}
	}
	scheduler := &SchedulerCore{
		logger:               logger,
		jobs:                 jobs,
		logs:                 logs,
		clock:                realClock{},
		queue:                NewTriggerQueue(64),
		locker:               newJobLocker(),
		registry:             newExecutorRegistry(),
		workers:              _const.DefaultLimiter,
		maxExecutionDuration: _const.DefaultMaxExecutionDuration,
		sweepInterval:        _const.DefaultSweepInterval,
		retry: func() RetryStrategy {
			return NewFixedRetryStrategy(_const.DefaultLogRetryInterval, _const.DefaultLogRetryAttempts)
		},
		wakeCh: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	scheduler.calc = NewCalculator(scheduler.location)
	scheduler.runner = newRunner(scheduler.registry, logs, scheduler.workers, scheduler.maxExecutionDuration,
		scheduler.retry, scheduler.clock, logger, scheduler.onComplete)
	return scheduler
}

func (s *SchedulerCore) Register(name string, executorFunc ExecutorFunc) error {
	return s.registry.register(name, executorFunc)
}

// RegisterExecutor 以Executor接口注册
func (s *SchedulerCore) RegisterExecutor(exec Executor) error {
	return s.registry.register(exec.Name(), exec.Execute)
}

func (s *SchedulerCore) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrEngineStopped
	}
	if s.running {
		return ErrEngineRunning
	}

	// 重建触发队列之后才开始调度
	if err := s.Reconcile(ctx); err != nil {
		return err
	}

	lctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.dispatch(lctx)
	if s.sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop(lctx)
	}

	s.logger.Info("scheduler engine started",
		Field{Key: "workers", Val: s.workers},
		Field{Key: "triggers", Val: s.queue.Len()},
		Field{Key: "sweep_interval", Val: s.sweepInterval},
	)
	return nil
}

func (s *SchedulerCore) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	running := s.running
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if running {
		cancel()
	}

	var g errgroup.Group
	g.Go(func() error {
		s.wg.Wait()
		return nil
	})
	g.Go(func() error {
		return s.runner.Stop(ctx)
	})
	err := g.Wait()

	s.logger.Info("scheduler engine stopped")
	return err
}

func (s *SchedulerCore) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *SchedulerCore) CreateJob(ctx context.Context, spec domain.JobSpec) (domain.JobDefinition, error) {
	if err := spec.Validate(); err != nil {
		return domain.JobDefinition{}, err
	}

	now := s.clock.Now()
	job := domain.NewJobDefinition(spec, now)
	first, ok, err := s.calc.FirstFireTime(job.Schedule, now)
	if err != nil {
		return domain.JobDefinition{}, err
	}

	unlock := s.locker.Lock(job.ID)
	defer unlock()

	saved, err := s.jobs.Save(ctx, job)
	if err != nil {
		return domain.JobDefinition{}, err
	}

	state := domain.TriggerState{JobID: saved.ID, NextFireTime: first, Status: _const.TriggerStatusNormal}
	if !ok {
		state.Status = _const.TriggerStatusComplete
	}
	s.queue.Upsert(saved, state)
	s.wake()

	s.logger.Info("job created",
		Field{Key: "job_id", Val: saved.ID.String()},
		Field{Key: "job_name", Val: saved.Name},
		Field{Key: "schedule", Val: saved.Schedule.Kind.String()},
		Field{Key: "next_fire_time", Val: first},
	)
	return saved, nil
}

func (s *SchedulerCore) PauseJob(ctx context.Context, id uuid.UUID) (domain.JobDefinition, error) {
	unlock := s.locker.Lock(id)
	defer unlock()

	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return domain.JobDefinition{}, err
	}
	if job.Status == _const.JobStatusPaused {
		return job, nil
	}

	job.Status = _const.JobStatusPaused
	job.UpdatedAt = s.clock.Now()
	saved, err := s.jobs.Save(ctx, job)
	if err != nil {
		return domain.JobDefinition{}, err
	}

	// 存储已经提交，队列没有该条目时由巡检修复
	if !s.queue.Pause(id) {
		s.logger.Warn("paused job missing from trigger queue", Field{Key: "job_id", Val: id.String()})
	}
	s.logger.Info("job paused", Field{Key: "job_id", Val: id.String()}, Field{Key: "version", Val: saved.Version})
	return saved, nil
}

func (s *SchedulerCore) ResumeJob(ctx context.Context, id uuid.UUID) (domain.JobDefinition, error) {
	unlock := s.locker.Lock(id)
	defer unlock()

	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return domain.JobDefinition{}, err
	}
	if job.Status == _const.JobStatusActive {
		return job, nil
	}

	now := s.clock.Now()
	job.Status = _const.JobStatusActive
	job.UpdatedAt = now
	saved, err := s.jobs.Save(ctx, job)
	if err != nil {
		return domain.JobDefinition{}, err
	}

	next, err := s.resumeLocked(saved, now)
	if err != nil {
		s.logger.Error("failed to compute resume fire time",
			Field{Key: "job_id", Val: id.String()},
			Field{Key: "err", Val: err},
		)
		return saved, nil
	}
	s.wake()

	s.logger.Info("job resumed",
		Field{Key: "job_id", Val: id.String()},
		Field{Key: "version", Val: saved.Version},
		Field{Key: "next_fire_time", Val: next},
	)
	return saved, nil
}

// DeleteJob 先以版本号把状态置为DELETED，再从存储和队列中清除
// 执行中的任务会正常完成并写入日志，但不会再计算下一次触发
func (s *SchedulerCore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	unlock := s.locker.Lock(id)
	defer unlock()

	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return err
	}

	job.Status = _const.JobStatusDeleted
	job.UpdatedAt = s.clock.Now()
	if _, err = s.jobs.Save(ctx, job); err != nil {
		return err
	}
	s.queue.Remove(id)

	if err = s.jobs.Delete(ctx, id); err != nil {
		// DELETED已经持久化，对查询不可见，残留的记录不影响语义
		s.logger.Warn("failed to purge deleted job",
			Field{Key: "job_id", Val: id.String()},
			Field{Key: "err", Val: err},
		)
	}
	s.logger.Info("job deleted", Field{Key: "job_id", Val: id.String()})
	return nil
}

// RunNow 立即执行一次，不改变正常调度的下次触发时间
func (s *SchedulerCore) RunNow(ctx context.Context, id uuid.UUID) error {
	unlock := s.locker.Lock(id)
	defer unlock()

	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.queue.BeginManual(id) {
		return errors.Wrapf(ErrJobBusy, "job %s", id)
	}

	f := Firing{Job: job, FireTime: s.clock.Now(), Manual: true}
	if err = s.runner.Submit(f); err != nil {
		next, ok, _ := s.calc.NextFireAfter(job.Schedule, f.FireTime, f.FireTime)
		s.queue.Complete(id, f.FireTime, next, ok)
		return err
	}

	s.logger.Info("job triggered manually", Field{Key: "job_id", Val: id.String()})
	return nil
}

func (s *SchedulerCore) ListJobs(ctx context.Context) ([]domain.JobDefinition, error) {
	return s.jobs.FindAll(ctx)
}

func (s *SchedulerCore) GetJob(ctx context.Context, id uuid.UUID) (domain.JobDefinition, error) {
	return s.jobs.FindByID(ctx, id)
}

func (s *SchedulerCore) GetExecutionLogs(ctx context.Context, jobID uuid.UUID) ([]domain.ExecutionLogEntry, error) {
	return s.logs.FindByJob(ctx, jobID)
}

// TriggerState 查询Job当前的触发状态，
// 队列中没有条目时，暂停的Job返回PAUSED，ACTIVE的Job说明队列与存储不一致，返回ERROR
func (s *SchedulerCore) TriggerState(ctx context.Context, id uuid.UUID) (domain.TriggerState, error) {
	if state, ok := s.queue.Get(id); ok {
		return state, nil
	}

	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return domain.TriggerState{}, err
	}
	state := domain.TriggerState{JobID: id, Status: _const.TriggerStatusError}
	if job.Status == _const.JobStatusPaused {
		state.Status = _const.TriggerStatusPaused
	}
	return state, nil
}

func (s *SchedulerCore) TriggerStates() []domain.TriggerState {
	return s.queue.States()
}

// onComplete FIXED_DELAY以执行器实际返回的时间为锚点计算下次触发
func (s *SchedulerCore) onComplete(f Firing, _ domain.ExecutionLogEntry, completedAt time.Time) {
	if f.Job.Schedule.Kind != _const.ScheduleFixedDelay {
		return
	}

	unlock := s.locker.Lock(f.Job.ID)
	defer unlock()

	next, ok, err := s.calc.NextFireAfter(f.Job.Schedule, completedAt, completedAt)
	if err != nil {
		s.logger.Error("failed to compute next fire time",
			Field{Key: "job_id", Val: f.Job.ID.String()},
			Field{Key: "err", Val: err},
		)
		ok = false
	}
	if s.queue.Complete(f.Job.ID, completedAt, next, ok) {
		s.wake()
	}
}
