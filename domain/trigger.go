package domain

import (
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/google/uuid"
)

// TriggerState Job在内存中的触发状态，可以随时从Job定义和执行日志重建，不做持久化
type TriggerState struct {
	JobID        uuid.UUID
	NextFireTime time.Time
	// LastFireTime 为nil表示尚未触发过
	LastFireTime *time.Time
	// LastCompletionTime FIXED_DELAY以完成时间为锚点计算下次触发
	LastCompletionTime *time.Time
	Status             _const.TriggerStatus
}
