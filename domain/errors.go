package domain

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidSchedule 调度计划非法，在持久化之前拒绝
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrConflict 版本号过期，调用方需要重新读取后重试
	ErrConflict = errors.New("version conflict")
	// ErrNotFound Job不存在或已删除
	ErrNotFound = errors.New("job not found")
	// ErrHandlerFailure 执行器返回错误、超时或panic
	ErrHandlerFailure = errors.New("handler failure")
	// ErrStoreUnavailable 存储不可用
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreUnavailable 标记底层存储错误，保留原始错误链
func StoreUnavailable(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrStoreUnavailable)
}
