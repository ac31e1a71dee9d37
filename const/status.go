package _const

// JobStatus Job定义的生命周期状态
type JobStatus string

const (
	JobStatusActive  JobStatus = "ACTIVE"  // 正常调度
	JobStatusPaused  JobStatus = "PAUSED"  // 暂停调度，可恢复
	JobStatusDeleted JobStatus = "DELETED" // 已删除，终态
)

func (s JobStatus) String() string {
	return string(s)
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusActive, JobStatusPaused, JobStatusDeleted:
		return true
	default:
		return false
	}
}

// TriggerStatus 内存中触发器的状态
type TriggerStatus string

const (
	TriggerStatusNormal   TriggerStatus = "NORMAL"   // 等待下次触发
	TriggerStatusPaused   TriggerStatus = "PAUSED"   // 暂停，不参与到期计算
	TriggerStatusComplete TriggerStatus = "COMPLETE" // 不会再触发
	TriggerStatusError    TriggerStatus = "ERROR"    // 调度计划无法计算
)

func (s TriggerStatus) String() string {
	return string(s)
}

// ExecutionOutcome 单次执行的结果
type ExecutionOutcome string

const (
	ExecutionSuccess ExecutionOutcome = "SUCCESS"
	ExecutionFailed  ExecutionOutcome = "FAILED"
)

func (o ExecutionOutcome) String() string {
	return string(o)
}
