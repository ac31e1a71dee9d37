package dao

// JobDefinition Job定义表
type JobDefinition struct {
	// ID Job的唯一标识(UUID)
	ID string `gorm:"column:id;type:varchar(36);primaryKey;not null" json:"id"`
	// Name Job名称，同时用于匹配执行器
	Name string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	// Description 描述信息
	Description string `gorm:"column:description;type:text" json:"description"`
	// ScheduleType CRON / FIXED_RATE / FIXED_DELAY
	ScheduleType string `gorm:"column:schedule_type;type:varchar(32);not null" json:"schedule_type"`
	// CronExpression 仅CRON有值
	CronExpression *string `gorm:"column:cron_expression;type:varchar(255)" json:"cron_expression"`
	// IntervalSeconds 仅FIXED_RATE和FIXED_DELAY有值
	IntervalSeconds *int64 `gorm:"column:interval_seconds" json:"interval_seconds"`
	// InitialDelaySeconds 仅FIXED_DELAY有值
	InitialDelaySeconds *int64 `gorm:"column:initial_delay_seconds" json:"initial_delay_seconds"`
	// Payload 透传给执行器的数据
	Payload []byte `gorm:"column:payload" json:"payload"`
	// Status ACTIVE / PAUSED / DELETED
	Status string `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	// Version 乐观锁
	Version int64 `gorm:"column:version;not null" json:"version"`
	// CreatedTime 创建时间(毫秒)
	CreatedTime int64 `gorm:"column:created_time;not null" json:"created_time"`
	// UpdatedTime 更新时间(毫秒)
	UpdatedTime int64 `gorm:"column:updated_time;not null" json:"updated_time"`
}

func (JobDefinition) TableName() string {
	return "job_definition"
}

// ExecutionLog 执行日志表，Job删除后保留用于审计
type ExecutionLog struct {
	ID    string `gorm:"column:id;type:varchar(36);primaryKey;not null" json:"id"`
	JobID string `gorm:"column:job_id;type:varchar(36);not null;index:idx_job_fire,priority:1" json:"job_id"`
	// FireTime 计划触发时间(毫秒)
	FireTime int64 `gorm:"column:fire_time;not null;index:idx_job_fire,priority:2" json:"fire_time"`
	// Status SUCCESS / FAILED
	Status       string  `gorm:"column:status;type:varchar(16);not null" json:"status"`
	ErrorMessage *string `gorm:"column:error_message;type:text" json:"error_message"`
	// CreatedTime 写入时间，即执行完成时间(毫秒)
	CreatedTime int64 `gorm:"column:created_time;not null" json:"created_time"`
}

func (ExecutionLog) TableName() string {
	return "job_execution_log"
}
