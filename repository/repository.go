package repository

import (
	"context"

	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/google/uuid"
)

// JobRepository Job定义的持久化契约，所有写操作以Version做乐观锁
// 已删除(DELETED)的Job对查询不可见
type JobRepository interface {
	// Save Version为0时插入(版本号置为1)，否则按版本号更新并返回递增后的Job
	// 版本不匹配返回domain.ErrConflict，记录不存在返回domain.ErrNotFound
	Save(ctx context.Context, job domain.JobDefinition) (domain.JobDefinition, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.JobDefinition, error)
	FindAllActive(ctx context.Context) ([]domain.JobDefinition, error)
	// Delete 物理删除Job定义
	Delete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	FindAll(ctx context.Context) ([]domain.JobDefinition, error)
}

// ExecutionLogRepository 执行日志的持久化契约，只追加
type ExecutionLogRepository interface {
	Append(ctx context.Context, entry domain.ExecutionLogEntry) error
	// FindByJob 按触发时间倒序
	FindByJob(ctx context.Context, jobID uuid.UUID) ([]domain.ExecutionLogEntry, error)
	// FindLatest 最近一次执行记录，没有记录时返回false
	FindLatest(ctx context.Context, jobID uuid.UUID) (domain.ExecutionLogEntry, bool, error)
}
