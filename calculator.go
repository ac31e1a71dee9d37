package job_scheduler

import (
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

// Calculator 根据调度计划计算下次触发时间，不持有状态，不做I/O
// 解析过的cron表达式缓存在本地，避免每次触发重复解析
type Calculator struct {
	loc   *time.Location
	cache Cache[string, cron.Schedule]
}

func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{
		loc:   loc,
		cache: NewLocalCache[string, cron.Schedule](64),
	}
}

func (c *Calculator) parse(expr string) (cron.Schedule, error) {
	if sch, ok := c.cache.Get(expr); ok {
		return sch, nil
	}

	sch, err := _const.Parser.Parse(expr)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "invalid cron expression %q", expr), ErrInvalidSchedule)
	}
	c.cache.Set(expr, sch)
	return sch, nil
}

// NextFireAfter 返回严格晚于ref的下次触发时间，第二个返回值为false表示不会再触发
// prev为上次触发时间(FIXED_DELAY为上次完成时间)，零值表示以ref为锚点
// FIXED_RATE落后时按整数个间隔追赶，错过的多次触发合并，不会补发
func (c *Calculator) NextFireAfter(s domain.Schedule, ref, prev time.Time) (time.Time, bool, error) {
	switch s.Kind {
	case _const.ScheduleCron:
		sch, err := c.parse(s.CronExpression)
		if err != nil {
			return time.Time{}, false, err
		}
		next := sch.Next(ref.In(c.loc))
		if next.IsZero() {
			return time.Time{}, false, nil
		}
		return next, true, nil
	case _const.ScheduleFixedRate:
		if s.Interval <= 0 {
			return time.Time{}, false, errors.Wrapf(ErrInvalidSchedule, "interval must be positive, got %s", s.Interval)
		}
		if prev.IsZero() {
			prev = ref
		}
		next := prev.Add(s.Interval)
		if !next.After(ref) {
			n := ref.Sub(prev)/s.Interval + 1
			next = prev.Add(n * s.Interval)
		}
		return next, true, nil
	case _const.ScheduleFixedDelay:
		if s.Interval <= 0 {
			return time.Time{}, false, errors.Wrapf(ErrInvalidSchedule, "interval must be positive, got %s", s.Interval)
		}
		if prev.IsZero() {
			prev = ref
		}
		next := prev.Add(s.Interval)
		if !next.After(ref) {
			next = ref.Add(s.Interval)
		}
		return next, true, nil
	default:
		return time.Time{}, false, errors.Wrapf(ErrInvalidSchedule, "unknown schedule kind %q", s.Kind)
	}
}

// FirstFireTime Job创建后的第一次触发时间
// FIXED_RATE: 创建时间+间隔；FIXED_DELAY: 创建时间+初始延迟；CRON: 创建时间之后第一个匹配的时间
func (c *Calculator) FirstFireTime(s domain.Schedule, createdAt time.Time) (time.Time, bool, error) {
	switch s.Kind {
	case _const.ScheduleFixedDelay:
		if s.Interval <= 0 || s.InitialDelay < 0 {
			return time.Time{}, false, errors.Wrapf(ErrInvalidSchedule, "invalid fixed delay %s/%s", s.Interval, s.InitialDelay)
		}
		return createdAt.Add(s.InitialDelay), true, nil
	default:
		return c.NextFireAfter(s, createdAt, createdAt)
	}
}

// ResumeFireTime 恢复调度时以恢复时刻为锚点重新计算，不沿用暂停前的触发时间
func (c *Calculator) ResumeFireTime(s domain.Schedule, now time.Time) (time.Time, bool, error) {
	return c.NextFireAfter(s, now, now)
}

// LastRun 最近一次执行的信息，来自执行日志
type LastRun struct {
	FireTime       time.Time
	CompletionTime time.Time
}

// RecoverFireTime 进程重启或巡检时重建触发时间
// 从上次触发(从未触发则从创建时间)推算下一次，如果已经错过则合并为now的一次触发
func (c *Calculator) RecoverFireTime(s domain.Schedule, now, createdAt time.Time, last *LastRun) (time.Time, bool, error) {
	var (
		candidate time.Time
		ok        bool
		err       error
	)

	switch {
	case last == nil:
		candidate, ok, err = c.FirstFireTime(s, createdAt)
	case s.Kind == _const.ScheduleFixedDelay && s.Interval > 0:
		candidate, ok, err = last.CompletionTime.Add(s.Interval), true, nil
	case s.Kind == _const.ScheduleFixedRate && s.Interval > 0:
		candidate, ok, err = last.FireTime.Add(s.Interval), true, nil
	default:
		candidate, ok, err = c.NextFireAfter(s, last.FireTime, last.FireTime)
	}
	if err != nil || !ok {
		return time.Time{}, ok, err
	}

	if candidate.Before(now) {
		return now, true, nil
	}
	return candidate, true, nil
}
