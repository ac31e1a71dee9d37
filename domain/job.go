package domain

import (
	"strings"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Schedule 调度计划，Kind决定哪些字段有效
// CRON: CronExpression
// FIXED_RATE: Interval
// FIXED_DELAY: Interval + InitialDelay
type Schedule struct {
	Kind           _const.ScheduleKind
	CronExpression string
	Interval       time.Duration
	InitialDelay   time.Duration
}

func CronSchedule(expr string) Schedule {
	return Schedule{Kind: _const.ScheduleCron, CronExpression: expr}
}

func FixedRateSchedule(interval time.Duration) Schedule {
	return Schedule{Kind: _const.ScheduleFixedRate, Interval: interval}
}

func FixedDelaySchedule(interval, initialDelay time.Duration) Schedule {
	return Schedule{Kind: _const.ScheduleFixedDelay, Interval: interval, InitialDelay: initialDelay}
}

// Validate 校验调度计划，cron表达式在这里解析，保证非法的计划不会被持久化
func (s Schedule) Validate() error {
	switch s.Kind {
	case _const.ScheduleCron:
		if strings.TrimSpace(s.CronExpression) == "" {
			return errors.Wrap(ErrInvalidSchedule, "cron expression required for CRON")
		}
		if s.Interval != 0 || s.InitialDelay != 0 {
			return errors.Wrap(ErrInvalidSchedule, "interval is not allowed for CRON")
		}
		if _, err := _const.Parser.Parse(s.CronExpression); err != nil {
			return errors.Mark(errors.Wrapf(err, "invalid cron expression %q", s.CronExpression), ErrInvalidSchedule)
		}
	case _const.ScheduleFixedRate, _const.ScheduleFixedDelay:
		if s.CronExpression != "" {
			return errors.Wrapf(ErrInvalidSchedule, "cron expression is not allowed for %s", s.Kind)
		}
		if err := validateSeconds("interval", s.Interval, false); err != nil {
			return err
		}
		if s.Kind == _const.ScheduleFixedRate && s.InitialDelay != 0 {
			return errors.Wrap(ErrInvalidSchedule, "initial delay is only allowed for FIXED_DELAY")
		}
		if err := validateSeconds("initial delay", s.InitialDelay, true); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrInvalidSchedule, "unknown schedule kind %q", s.Kind)
	}

	return nil
}

// 持久化层以秒为单位保存间隔
func validateSeconds(field string, d time.Duration, allowZero bool) error {
	if d < 0 || (d == 0 && !allowZero) {
		return errors.Wrapf(ErrInvalidSchedule, "%s must be positive, got %s", field, d)
	}
	if d%time.Second != 0 {
		return errors.Wrapf(ErrInvalidSchedule, "%s must be whole seconds, got %s", field, d)
	}
	return nil
}

// JobSpec 创建Job的请求
type JobSpec struct {
	Name        string
	Description string
	Schedule    Schedule
	// Payload 透传给执行器，引擎不解析
	Payload []byte
}

func (s JobSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.Wrap(ErrInvalidSchedule, "job name required")
	}
	return s.Schedule.Validate()
}

// JobDefinition Job定义，持久化在Job Store中
type JobDefinition struct {
	ID          uuid.UUID
	Name        string
	Description string
	Schedule    Schedule
	Payload     []byte
	Status      _const.JobStatus
	// Version 乐观锁版本号，每次更新递增
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewJobDefinition 根据请求构造一个ACTIVE状态的Job，版本号由存储层在插入时分配
func NewJobDefinition(spec JobSpec, now time.Time) JobDefinition {
	return JobDefinition{
		ID:          uuid.New(),
		Name:        spec.Name,
		Description: spec.Description,
		Schedule:    spec.Schedule,
		Payload:     spec.Payload,
		Status:      _const.JobStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j JobDefinition) Active() bool {
	return j.Status == _const.JobStatusActive
}
