package job_scheduler

import (
	"context"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Reconcile 根据存储中ACTIVE的Job重建触发队列，按各调度类型的错过策略处理停机期间错过的触发
// 单个Job失败只记录日志并跳过，不影响其他Job
func (s *SchedulerCore) Reconcile(ctx context.Context) error {
	lctx, cancel := context.WithTimeout(ctx, _const.DefaultStoreTimeout)
	jobs, err := s.jobs.FindAllActive(lctx)
	cancel()
	if err != nil {
		return errors.Wrap(err, "load active jobs")
	}

	var scheduled, failed int
	for _, job := range jobs {
		if s.reconcileJob(ctx, job) {
			scheduled++
		} else {
			failed++
		}
	}
	s.wake()

	s.logger.Info("reconciliation complete",
		Field{Key: "active", Val: len(jobs)},
		Field{Key: "scheduled", Val: scheduled},
		Field{Key: "failed", Val: failed},
	)
	return nil
}

func (s *SchedulerCore) reconcileJob(ctx context.Context, job domain.JobDefinition) bool {
	unlock := s.locker.Lock(job.ID)
	defer unlock()
	return s.reconcileLocked(ctx, job)
}

// reconcileLocked 调用方持有该Job的锁
func (s *SchedulerCore) reconcileLocked(ctx context.Context, job domain.JobDefinition) bool {
	state, err := s.recoverState(ctx, job)
	if err != nil {
		// 保留ERROR状态的条目用于观测，巡检会重试
		s.queue.Upsert(job, domain.TriggerState{Status: _const.TriggerStatusError})
		s.logger.Error("failed to reconcile job",
			Field{Key: "job_id", Val: job.ID.String()},
			Field{Key: "job_name", Val: job.Name},
			Field{Key: "err", Val: err},
		)
		return false
	}

	s.queue.Upsert(job, state)
	s.logger.Debug("job reconciled",
		Field{Key: "job_id", Val: job.ID.String()},
		Field{Key: "next_fire_time", Val: state.NextFireTime},
		Field{Key: "status", Val: state.Status.String()},
	)
	return true
}

// recoverState 从执行日志中读取上次触发和完成时间，计算触发状态
func (s *SchedulerCore) recoverState(ctx context.Context, job domain.JobDefinition) (domain.TriggerState, error) {
	lctx, cancel := context.WithTimeout(ctx, _const.DefaultStoreTimeout)
	latest, found, err := s.logs.FindLatest(lctx, job.ID)
	cancel()
	if err != nil {
		return domain.TriggerState{}, errors.Wrap(err, "load latest execution")
	}

	state := domain.TriggerState{JobID: job.ID, Status: _const.TriggerStatusNormal}
	var last *LastRun
	if found {
		last = &LastRun{FireTime: latest.FireTime, CompletionTime: latest.CreatedAt}
		state.LastFireTime = timePtr(latest.FireTime)
		state.LastCompletionTime = timePtr(latest.CreatedAt)
	}

	next, ok, err := s.calc.RecoverFireTime(job.Schedule, s.clock.Now(), job.CreatedAt, last)
	if err != nil {
		return domain.TriggerState{}, err
	}
	if !ok {
		state.Status = _const.TriggerStatusComplete
		return state, nil
	}
	state.NextFireTime = next
	return state, nil
}

func (s *SchedulerCore) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.Sweep(ctx)
		}
	}
}

// Sweep 一致性巡检，修复存储已提交但队列未同步的情况
// 1. ACTIVE的Job在队列中缺失、处于ERROR或PAUSED状态时重新计算并入队
// 2. 队列中的条目在存储中已删除时移除，已暂停时暂停
func (s *SchedulerCore) Sweep(ctx context.Context) {
	lctx, cancel := context.WithTimeout(ctx, _const.DefaultStoreTimeout)
	jobs, err := s.jobs.FindAllActive(lctx)
	cancel()
	if err != nil {
		s.logger.Warn("consistency sweep skipped", Field{Key: "err", Val: err})
		return
	}

	active := make(map[uuid.UUID]struct{}, len(jobs))
	var repaired int
	for _, job := range jobs {
		active[job.ID] = struct{}{}
		if !s.needsRepair(job.ID) {
			continue
		}
		if s.sweepActive(ctx, job.ID) {
			repaired++
		}
	}

	for _, id := range s.queue.IDs() {
		if _, ok := active[id]; ok {
			continue
		}
		if s.sweepStale(ctx, id) {
			repaired++
		}
	}

	if repaired > 0 {
		s.wake()
		s.logger.Info("consistency sweep repaired triggers", Field{Key: "repaired", Val: repaired})
	}
}

func (s *SchedulerCore) needsRepair(id uuid.UUID) bool {
	state, ok := s.queue.Get(id)
	return !ok || state.Status == _const.TriggerStatusError || state.Status == _const.TriggerStatusPaused
}

// sweepActive 存储中ACTIVE但队列缺失或状态不对，加锁后重新读取确认再修复
func (s *SchedulerCore) sweepActive(ctx context.Context, id uuid.UUID) bool {
	unlock := s.locker.Lock(id)
	defer unlock()

	job, err := s.reload(ctx, id)
	if err != nil || !job.Active() || !s.needsRepair(id) {
		return false
	}

	// 存储侧已恢复但队列仍是暂停状态，按恢复时刻重新计算，而不是按上次触发追赶
	if state, ok := s.queue.Get(id); ok && state.Status == _const.TriggerStatusPaused {
		next, err := s.resumeLocked(job, job.UpdatedAt)
		if err != nil {
			s.logger.Error("failed to resume trigger of resumed job",
				Field{Key: "job_id", Val: id.String()},
				Field{Key: "err", Val: err},
			)
			return false
		}
		s.logger.Info("resumed trigger of resumed job",
			Field{Key: "job_id", Val: id.String()},
			Field{Key: "next_fire_time", Val: next},
		)
		return true
	}
	return s.reconcileLocked(ctx, job)
}

// resumeLocked 以恢复时刻为锚点重新入队，调用方持有该Job的锁
// 恢复时刻算出的触发时间已经错过时合并为now的一次触发
func (s *SchedulerCore) resumeLocked(job domain.JobDefinition, resumedAt time.Time) (time.Time, error) {
	next, ok, err := s.calc.ResumeFireTime(job.Schedule, resumedAt)
	if err != nil {
		s.queue.Upsert(job, domain.TriggerState{Status: _const.TriggerStatusError})
		return time.Time{}, err
	}
	if now := s.clock.Now(); ok && next.Before(now) {
		next = now
	}
	s.queue.Resume(job, next, ok)
	return next, nil
}

func (s *SchedulerCore) reload(ctx context.Context, id uuid.UUID) (domain.JobDefinition, error) {
	lctx, cancel := context.WithTimeout(ctx, _const.DefaultStoreTimeout)
	defer cancel()
	return s.jobs.FindByID(lctx, id)
}

// sweepStale 队列中有条目但存储中不是ACTIVE，重新读取确认后修复
func (s *SchedulerCore) sweepStale(ctx context.Context, id uuid.UUID) bool {
	unlock := s.locker.Lock(id)
	defer unlock()

	job, err := s.reload(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		s.queue.Remove(id)
		s.logger.Info("removed trigger of deleted job", Field{Key: "job_id", Val: id.String()})
		return true
	case err != nil:
		s.logger.Warn("failed to check trigger", Field{Key: "job_id", Val: id.String()}, Field{Key: "err", Val: err})
		return false
	case job.Status == _const.JobStatusPaused:
		if state, ok := s.queue.Get(id); ok && state.Status == _const.TriggerStatusPaused {
			return false
		}
		s.queue.Pause(id)
		s.logger.Info("paused trigger of paused job", Field{Key: "job_id", Val: id.String()})
		return true
	default:
		// 巡检期间新建或恢复的Job
		return false
	}
}
