package _const

import "time"

const (
	// DefaultLimiter 默认的并发执行数量
	DefaultLimiter = 10
	// DefaultMaxExecutionDuration 单次执行的默认超时时间
	DefaultMaxExecutionDuration = 30 * time.Second
	// DefaultSweepInterval 默认的一致性巡检间隔
	DefaultSweepInterval = time.Minute
	// DefaultLogRetryAttempts 执行日志写入失败后的重试次数
	DefaultLogRetryAttempts = 3
	// DefaultLogRetryInterval 执行日志写入重试间隔
	DefaultLogRetryInterval = 200 * time.Millisecond
	// DefaultStoreTimeout 单次存储操作的超时时间
	DefaultStoreTimeout = 5 * time.Second
)
