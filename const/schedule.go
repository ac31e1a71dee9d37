package _const

// ScheduleKind 调度类型
type ScheduleKind string

const (
	ScheduleCron       ScheduleKind = "CRON"        // cron表达式
	ScheduleFixedRate  ScheduleKind = "FIXED_RATE"  // 固定频率，以触发时间为锚点
	ScheduleFixedDelay ScheduleKind = "FIXED_DELAY" // 固定延迟，以上次执行完成时间为锚点
)

func (k ScheduleKind) String() string {
	return string(k)
}

func (k ScheduleKind) Valid() bool {
	switch k {
	case ScheduleCron, ScheduleFixedRate, ScheduleFixedDelay:
		return true
	default:
		return false
	}
}
