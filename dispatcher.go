package job_scheduler

import (
	"context"
	"time"

	"github.com/TimeWtr/job_scheduler/domain"
)

// dispatch 调度循环，唯一持有时钟的协程
// 只在等待定时器或唤醒信号时挂起，不做I/O也不执行Job
func (s *SchedulerCore) dispatch(ctx context.Context) {
	defer s.wg.Done()

	for {
		now := s.clock.Now()
		firings := s.queue.Advance(now, s.nextAfterFire)
		for _, f := range firings {
			logger := s.logger.With(jobFields(f)...)
			logger.Debug("job fired")
			if err := s.runner.Submit(f); err != nil {
				logger.Warn("failed to submit firing", Field{Key: "err", Val: err})
			}
		}

		// 队列为空时只等待唤醒
		var (
			timer  Timer
			timerC <-chan time.Time
		)
		if next, ok := s.queue.Next(); ok {
			timer = s.clock.NewTimer(next.Sub(s.clock.Now()))
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wakeCh:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// nextAfterFire 以刚消费的触发时间为锚点计算下次触发，保证严格晚于now，落后的多次触发合并为一次
func (s *SchedulerCore) nextAfterFire(job domain.JobDefinition, fireTime, now time.Time) (time.Time, bool, error) {
	return s.calc.NextFireAfter(job.Schedule, now, fireTime)
}
