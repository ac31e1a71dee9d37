package repository

import (
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/TimeWtr/job_scheduler/repository/dao"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

func toJobModel(job domain.JobDefinition) dao.JobDefinition {
	m := dao.JobDefinition{
		ID:           job.ID.String(),
		Name:         job.Name,
		Description:  job.Description,
		ScheduleType: string(job.Schedule.Kind),
		Payload:      job.Payload,
		Status:       string(job.Status),
		Version:      job.Version,
		CreatedTime:  job.CreatedAt.UnixMilli(),
		UpdatedTime:  job.UpdatedAt.UnixMilli(),
	}

	switch job.Schedule.Kind {
	case _const.ScheduleCron:
		expr := job.Schedule.CronExpression
		m.CronExpression = &expr
	case _const.ScheduleFixedRate:
		interval := int64(job.Schedule.Interval / time.Second)
		m.IntervalSeconds = &interval
	case _const.ScheduleFixedDelay:
		interval := int64(job.Schedule.Interval / time.Second)
		delay := int64(job.Schedule.InitialDelay / time.Second)
		m.IntervalSeconds = &interval
		m.InitialDelaySeconds = &delay
	}

	return m
}

func toJobDomain(m dao.JobDefinition) (domain.JobDefinition, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.JobDefinition{}, errors.Wrapf(err, "corrupt job id %q", m.ID)
	}

	sch := domain.Schedule{Kind: _const.ScheduleKind(m.ScheduleType)}
	if m.CronExpression != nil {
		sch.CronExpression = *m.CronExpression
	}
	if m.IntervalSeconds != nil {
		sch.Interval = time.Duration(*m.IntervalSeconds) * time.Second
	}
	if m.InitialDelaySeconds != nil {
		sch.InitialDelay = time.Duration(*m.InitialDelaySeconds) * time.Second
	}

	return domain.JobDefinition{
		ID:          id,
		Name:        m.Name,
		Description: m.Description,
		Schedule:    sch,
		Payload:     m.Payload,
		Status:      _const.JobStatus(m.Status),
		Version:     m.Version,
		CreatedAt:   time.UnixMilli(m.CreatedTime),
		UpdatedAt:   time.UnixMilli(m.UpdatedTime),
	}, nil
}

func toJobDomains(ms []dao.JobDefinition) ([]domain.JobDefinition, error) {
	res := make([]domain.JobDefinition, 0, len(ms))
	for _, m := range ms {
		job, err := toJobDomain(m)
		if err != nil {
			return nil, err
		}
		res = append(res, job)
	}
	return res, nil
}

func toLogModel(entry domain.ExecutionLogEntry) dao.ExecutionLog {
	m := dao.ExecutionLog{
		ID:          entry.ID.String(),
		JobID:       entry.JobID.String(),
		FireTime:    entry.FireTime.UnixMilli(),
		Status:      string(entry.Outcome),
		CreatedTime: entry.CreatedAt.UnixMilli(),
	}
	if entry.Failed() {
		msg := entry.Error
		m.ErrorMessage = &msg
	}
	return m
}

func toLogDomain(m dao.ExecutionLog) (domain.ExecutionLogEntry, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.ExecutionLogEntry{}, errors.Wrapf(err, "corrupt execution log id %q", m.ID)
	}
	jobID, err := uuid.Parse(m.JobID)
	if err != nil {
		return domain.ExecutionLogEntry{}, errors.Wrapf(err, "corrupt execution log job id %q", m.JobID)
	}

	entry := domain.ExecutionLogEntry{
		ID:        id,
		JobID:     jobID,
		FireTime:  time.UnixMilli(m.FireTime),
		Outcome:   _const.ExecutionOutcome(m.Status),
		CreatedAt: time.UnixMilli(m.CreatedTime),
	}
	if m.ErrorMessage != nil {
		entry.Error = *m.ErrorMessage
	}
	return entry, nil
}

func toLogDomains(ms []dao.ExecutionLog) ([]domain.ExecutionLogEntry, error) {
	res := make([]domain.ExecutionLogEntry, 0, len(ms))
	for _, m := range ms {
		entry, err := toLogDomain(m)
		if err != nil {
			return nil, err
		}
		res = append(res, entry)
	}
	return res, nil
}
