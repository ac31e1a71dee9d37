package repository

import (
	"context"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/TimeWtr/job_scheduler/repository/dao"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GORMJobRepository struct {
	dao dao.JobDAO
}

func NewGORMJobRepository(db *gorm.DB) JobRepository {
	return &GORMJobRepository{dao: dao.NewGORMJobDAO(db)}
}

func (r *GORMJobRepository) Save(ctx context.Context, job domain.JobDefinition) (domain.JobDefinition, error) {
	if job.Version == 0 {
		job.Version = 1
		if err := r.dao.Insert(ctx, toJobModel(job)); err != nil {
			return domain.JobDefinition{}, domain.StoreUnavailable(err, "insert job")
		}
		return job, nil
	}

	affected, err := r.dao.UpdateWithVersion(ctx, toJobModel(job), job.Version)
	if err != nil {
		return domain.JobDefinition{}, domain.StoreUnavailable(err, "update job")
	}
	if affected == 0 {
		// 区分版本冲突和记录不存在
		cnt, err := r.dao.Count(ctx, job.ID.String(), "")
		if err != nil {
			return domain.JobDefinition{}, domain.StoreUnavailable(err, "count job")
		}
		if cnt == 0 {
			return domain.JobDefinition{}, errors.Wrapf(domain.ErrNotFound, "job %s", job.ID)
		}
		return domain.JobDefinition{}, errors.Wrapf(domain.ErrConflict, "job %s version %d", job.ID, job.Version)
	}

	job.Version++
	return job, nil
}

func (r *GORMJobRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.JobDefinition, error) {
	m, err := r.dao.FindByID(ctx, id.String())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.JobDefinition{}, errors.Wrapf(domain.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return domain.JobDefinition{}, domain.StoreUnavailable(err, "find job")
	}
	if m.Status == string(_const.JobStatusDeleted) {
		return domain.JobDefinition{}, errors.Wrapf(domain.ErrNotFound, "job %s", id)
	}

	return toJobDomain(m)
}

func (r *GORMJobRepository) FindAllActive(ctx context.Context) ([]domain.JobDefinition, error) {
	ms, err := r.dao.FindByStatus(ctx, string(_const.JobStatusActive))
	if err != nil {
		return nil, domain.StoreUnavailable(err, "find active jobs")
	}
	return toJobDomains(ms)
}

func (r *GORMJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.dao.Delete(ctx, id.String())
	if err != nil {
		return domain.StoreUnavailable(err, "delete job")
	}
	if affected == 0 {
		return errors.Wrapf(domain.ErrNotFound, "job %s", id)
	}
	return nil
}

func (r *GORMJobRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	cnt, err := r.dao.Count(ctx, id.String(), string(_const.JobStatusDeleted))
	if err != nil {
		return false, domain.StoreUnavailable(err, "count job")
	}
	return cnt > 0, nil
}

func (r *GORMJobRepository) FindAll(ctx context.Context) ([]domain.JobDefinition, error) {
	ms, err := r.dao.FindAllExcept(ctx, string(_const.JobStatusDeleted))
	if err != nil {
		return nil, domain.StoreUnavailable(err, "find jobs")
	}
	return toJobDomains(ms)
}

type GORMExecutionLogRepository struct {
	dao dao.ExecutionLogDAO
}

func NewGORMExecutionLogRepository(db *gorm.DB) ExecutionLogRepository {
	return &GORMExecutionLogRepository{dao: dao.NewGORMExecutionLogDAO(db)}
}

func (r *GORMExecutionLogRepository) Append(ctx context.Context, entry domain.ExecutionLogEntry) error {
	if err := r.dao.Insert(ctx, toLogModel(entry)); err != nil {
		return domain.StoreUnavailable(err, "append execution log")
	}
	return nil
}

func (r *GORMExecutionLogRepository) FindByJob(ctx context.Context, jobID uuid.UUID) ([]domain.ExecutionLogEntry, error) {
	ms, err := r.dao.FindByJob(ctx, jobID.String(), 0)
	if err != nil {
		return nil, domain.StoreUnavailable(err, "find execution logs")
	}
	return toLogDomains(ms)
}

func (r *GORMExecutionLogRepository) FindLatest(ctx context.Context, jobID uuid.UUID) (domain.ExecutionLogEntry, bool, error) {
	ms, err := r.dao.FindByJob(ctx, jobID.String(), 1)
	if err != nil {
		return domain.ExecutionLogEntry{}, false, domain.StoreUnavailable(err, "find latest execution log")
	}
	if len(ms) == 0 {
		return domain.ExecutionLogEntry{}, false, nil
	}
	entry, err := toLogDomain(ms[0])
	if err != nil {
		return domain.ExecutionLogEntry{}, false, err
	}
	return entry, true, nil
}
