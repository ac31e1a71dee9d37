package repository

import (
	"context"
	"slices"
	"sync"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// MemoryJobRepository 基于内存的Job存储，用于测试和嵌入式场景
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]domain.JobDefinition
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[uuid.UUID]domain.JobDefinition)}
}

func (r *MemoryJobRepository) Save(_ context.Context, job domain.JobDefinition) (domain.JobDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.Version == 0 {
		if _, ok := r.jobs[job.ID]; ok {
			return domain.JobDefinition{}, errors.Wrapf(domain.ErrConflict, "job %s already exists", job.ID)
		}
		job.Version = 1
		r.jobs[job.ID] = cloneJob(job)
		return job, nil
	}

	cur, ok := r.jobs[job.ID]
	if !ok {
		return domain.JobDefinition{}, errors.Wrapf(domain.ErrNotFound, "job %s", job.ID)
	}
	if cur.Version != job.Version {
		return domain.JobDefinition{}, errors.Wrapf(domain.ErrConflict, "job %s version %d", job.ID, job.Version)
	}

	job.Version++
	r.jobs[job.ID] = cloneJob(job)
	return job, nil
}

func (r *MemoryJobRepository) FindByID(_ context.Context, id uuid.UUID) (domain.JobDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok || job.Status == _const.JobStatusDeleted {
		return domain.JobDefinition{}, errors.Wrapf(domain.ErrNotFound, "job %s", id)
	}
	return cloneJob(job), nil
}

func (r *MemoryJobRepository) FindAllActive(_ context.Context) ([]domain.JobDefinition, error) {
	return r.filter(func(job domain.JobDefinition) bool {
		return job.Status == _const.JobStatusActive
	}), nil
}

func (r *MemoryJobRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return errors.Wrapf(domain.ErrNotFound, "job %s", id)
	}
	delete(r.jobs, id)
	return nil
}

func (r *MemoryJobRepository) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	return ok && job.Status != _const.JobStatusDeleted, nil
}

func (r *MemoryJobRepository) FindAll(_ context.Context) ([]domain.JobDefinition, error) {
	return r.filter(func(job domain.JobDefinition) bool {
		return job.Status != _const.JobStatusDeleted
	}), nil
}

func (r *MemoryJobRepository) filter(fn func(job domain.JobDefinition) bool) []domain.JobDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]domain.JobDefinition, 0, len(r.jobs))
	for _, job := range r.jobs {
		if fn(job) {
			res = append(res, cloneJob(job))
		}
	}
	// 与数据库实现保持一致，按创建时间升序
	slices.SortFunc(res, func(a, b domain.JobDefinition) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return res
}

func cloneJob(job domain.JobDefinition) domain.JobDefinition {
	job.Payload = slices.Clone(job.Payload)
	return job
}

// MemoryExecutionLogRepository 基于内存的执行日志存储
type MemoryExecutionLogRepository struct {
	mu   sync.RWMutex
	logs map[uuid.UUID][]domain.ExecutionLogEntry
}

func NewMemoryExecutionLogRepository() *MemoryExecutionLogRepository {
	return &MemoryExecutionLogRepository{logs: make(map[uuid.UUID][]domain.ExecutionLogEntry)}
}

func (r *MemoryExecutionLogRepository) Append(_ context.Context, entry domain.ExecutionLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[entry.JobID] = append(r.logs[entry.JobID], entry)
	return nil
}

func (r *MemoryExecutionLogRepository) FindByJob(_ context.Context, jobID uuid.UUID) ([]domain.ExecutionLogEntry, error) {
	r.mu.RLock()
	res := slices.Clone(r.logs[jobID])
	r.mu.RUnlock()

	slices.SortStableFunc(res, func(a, b domain.ExecutionLogEntry) int {
		if c := b.FireTime.Compare(a.FireTime); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return res, nil
}

func (r *MemoryExecutionLogRepository) FindLatest(ctx context.Context, jobID uuid.UUID) (domain.ExecutionLogEntry, bool, error) {
	logs, err := r.FindByJob(ctx, jobID)
	if err != nil || len(logs) == 0 {
		return domain.ExecutionLogEntry{}, false, err
	}
	return logs[0], true, nil
}
