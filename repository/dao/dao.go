package dao

import (
	"context"

	"gorm.io/gorm"
)

type JobDAO interface {
	Insert(ctx context.Context, job JobDefinition) error
	// UpdateWithVersion 只有版本号匹配时才更新，返回受影响的行数
	UpdateWithVersion(ctx context.Context, job JobDefinition, expected int64) (int64, error)
	FindByID(ctx context.Context, id string) (JobDefinition, error)
	FindByStatus(ctx context.Context, status string) ([]JobDefinition, error)
	FindAllExcept(ctx context.Context, status string) ([]JobDefinition, error)
	Delete(ctx context.Context, id string) (int64, error)
	Count(ctx context.Context, id string, excludeStatus string) (int64, error)
}

type GORMJobDAO struct {
	db *gorm.DB
}

func NewGORMJobDAO(db *gorm.DB) JobDAO {
	return &GORMJobDAO{db: db}
}

func (g *GORMJobDAO) Insert(ctx context.Context, job JobDefinition) error {
	return g.db.WithContext(ctx).Create(&job).Error
}

func (g *GORMJobDAO) UpdateWithVersion(ctx context.Context, job JobDefinition, expected int64) (int64, error) {
	res := g.db.WithContext(ctx).Model(&JobDefinition{}).
		Where("id = ? AND version = ?", job.ID, expected).
		Updates(map[string]interface{}{
			"name":                  job.Name,
			"description":           job.Description,
			"schedule_type":         job.ScheduleType,
			"cron_expression":       job.CronExpression,
			"interval_seconds":      job.IntervalSeconds,
			"initial_delay_seconds": job.InitialDelaySeconds,
			"payload":               job.Payload,
			"status":                job.Status,
			"version":               expected + 1,
			"updated_time":          job.UpdatedTime,
		})
	if res.Error != nil {
		return 0, res.Error
	}

	return res.RowsAffected, nil
}

func (g *GORMJobDAO) FindByID(ctx context.Context, id string) (JobDefinition, error) {
	var job JobDefinition
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	return job, err
}

func (g *GORMJobDAO) FindByStatus(ctx context.Context, status string) ([]JobDefinition, error) {
	var jobs []JobDefinition
	err := g.db.WithContext(ctx).Where("status = ?", status).
		Order("created_time ASC").Find(&jobs).Error
	return jobs, err
}

func (g *GORMJobDAO) FindAllExcept(ctx context.Context, status string) ([]JobDefinition, error) {
	var jobs []JobDefinition
	err := g.db.WithContext(ctx).Where("status <> ?", status).
		Order("created_time ASC").Find(&jobs).Error
	return jobs, err
}

func (g *GORMJobDAO) Delete(ctx context.Context, id string) (int64, error) {
	res := g.db.WithContext(ctx).Where("id = ?", id).Delete(&JobDefinition{})
	return res.RowsAffected, res.Error
}

func (g *GORMJobDAO) Count(ctx context.Context, id string, excludeStatus string) (int64, error) {
	var cnt int64
	err := g.db.WithContext(ctx).Model(&JobDefinition{}).
		Where("id = ? AND status <> ?", id, excludeStatus).Count(&cnt).Error
	return cnt, err
}

type ExecutionLogDAO interface {
	Insert(ctx context.Context, log ExecutionLog) error
	// FindByJob 按触发时间倒序，limit<=0表示不限制
	FindByJob(ctx context.Context, jobID string, limit int) ([]ExecutionLog, error)
}

type GORMExecutionLogDAO struct {
	db *gorm.DB
}

func NewGORMExecutionLogDAO(db *gorm.DB) ExecutionLogDAO {
	return &GORMExecutionLogDAO{db: db}
}

func (g *GORMExecutionLogDAO) Insert(ctx context.Context, log ExecutionLog) error {
	return g.db.WithContext(ctx).Create(&log).Error
}

func (g *GORMExecutionLogDAO) FindByJob(ctx context.Context, jobID string, limit int) ([]ExecutionLog, error) {
	var logs []ExecutionLog
	tx := g.db.WithContext(ctx).Where("job_id = ?", jobID).
		Order("fire_time DESC").Order("created_time DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	err := tx.Find(&logs).Error
	return logs, err
}
