package job_scheduler

import (
	"time"

	"github.com/cockroachdb/errors"
)

var ErrOverMaxCount = errors.New("over max count")

// RetryStrategy 执行日志写入的重试策略，有状态，每次写入创建一个新的实例
// Next返回下一次重试前的等待时间，次数用完返回ErrOverMaxCount
type RetryStrategy interface {
	Next() (time.Duration, error)
}

// FixedRetryStrategy 固定间隔重试
type FixedRetryStrategy struct {
	interval time.Duration
	maxCount int
	attempts int
}

func NewFixedRetryStrategy(interval time.Duration, maxCount int) *FixedRetryStrategy {
	return &FixedRetryStrategy{interval: interval, maxCount: maxCount}
}

func (s *FixedRetryStrategy) Next() (time.Duration, error) {
	if s.attempts >= s.maxCount {
		return 0, errors.Wrapf(ErrOverMaxCount, "%d attempts", s.attempts)
	}
	s.attempts++
	return s.interval, nil
}

// ExponentialRetryStrategy 间隔按2倍递增，不超过maxInterval
type ExponentialRetryStrategy struct {
	next        time.Duration
	maxInterval time.Duration
	maxCount    int
	attempts    int
}

func NewExponentialRetryStrategy(initial, maxInterval time.Duration, maxCount int) *ExponentialRetryStrategy {
	return &ExponentialRetryStrategy{next: initial, maxInterval: maxInterval, maxCount: maxCount}
}

func (s *ExponentialRetryStrategy) Next() (time.Duration, error) {
	if s.attempts >= s.maxCount {
		return 0, errors.Wrapf(ErrOverMaxCount, "%d attempts", s.attempts)
	}
	s.attempts++
	d := s.next
	s.next = min(s.next*2, s.maxInterval)
	return d, nil
}

// NewRetryStrategyFunc 按配置选择重试策略，maxInterval大于interval时使用指数退避
func NewRetryStrategyFunc(interval, maxInterval time.Duration, maxCount int) func() RetryStrategy {
	if maxInterval > interval {
		return func() RetryStrategy {
			return NewExponentialRetryStrategy(interval, maxInterval, maxCount)
		}
	}
	return func() RetryStrategy {
		return NewFixedRetryStrategy(interval, maxCount)
	}
}
