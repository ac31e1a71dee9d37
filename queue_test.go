package job_scheduler

import (
	"testing"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(name string, s domain.Schedule) domain.JobDefinition {
	return domain.NewJobDefinition(domain.JobSpec{Name: name, Schedule: s}, t0)
}

func normalState(next time.Time) domain.TriggerState {
	return domain.TriggerState{NextFireTime: next, Status: _const.TriggerStatusNormal}
}

func calcNext() NextFunc {
	calc := NewCalculator(time.UTC)
	return func(job domain.JobDefinition, fireTime, now time.Time) (time.Time, bool, error) {
		return calc.NextFireAfter(job.Schedule, now, fireTime)
	}
}

func TestTriggerQueue_FIFOOnEqualFireTime(t *testing.T) {
	q := NewTriggerQueue(4)
	due := t0.Add(5 * time.Second)

	jobs := []domain.JobDefinition{
		newTestJob("a", domain.FixedRateSchedule(5*time.Second)),
		newTestJob("b", domain.FixedRateSchedule(5*time.Second)),
		newTestJob("c", domain.FixedRateSchedule(5*time.Second)),
	}
	for _, job := range jobs {
		q.Upsert(job, normalState(due))
	}
	q.Upsert(newTestJob("later", domain.FixedRateSchedule(5*time.Second)), normalState(due.Add(time.Second)))

	states := q.PeekDue(due)
	require.Len(t, states, 3)
	for i, job := range jobs {
		assert.Equal(t, job.ID, states[i].JobID)
	}
	// PeekDue不修改队列
	assert.Len(t, q.PeekDue(due), 3)

	firings := q.Advance(due, calcNext())
	require.Len(t, firings, 3)
	for i, job := range jobs {
		assert.Equal(t, job.ID, firings[i].Job.ID)
		assert.Equal(t, due, firings[i].FireTime)
	}

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, due.Add(time.Second), next)
}

func TestTriggerQueue_AdvanceReschedules(t *testing.T) {
	q := NewTriggerQueue(1)
	job := newTestJob("rate", domain.FixedRateSchedule(5*time.Second))
	q.Upsert(job, normalState(t0.Add(5*time.Second)))

	assert.Empty(t, q.Advance(t0.Add(4*time.Second), calcNext()))

	// 晚到的tick仍然按网格排下一次
	firings := q.Advance(t0.Add(6*time.Second), calcNext())
	require.Len(t, firings, 1)
	assert.Equal(t, t0.Add(5*time.Second), firings[0].FireTime)

	state, ok := q.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, t0.Add(10*time.Second), state.NextFireTime)
	require.NotNil(t, state.LastFireTime)
	assert.Equal(t, t0.Add(5*time.Second), *state.LastFireTime)
}

func TestTriggerQueue_AdvanceTerminalStates(t *testing.T) {
	q := NewTriggerQueue(2)
	done := newTestJob("done", domain.CronSchedule("0 0 30 2 *"))
	broken := newTestJob("broken", domain.FixedRateSchedule(5*time.Second))
	q.Upsert(done, normalState(t0))
	q.Upsert(broken, normalState(t0))

	firings := q.Advance(t0, func(job domain.JobDefinition, _, _ time.Time) (time.Time, bool, error) {
		if job.ID == done.ID {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, ErrInvalidSchedule
	})
	assert.Len(t, firings, 2)

	state, _ := q.Get(done.ID)
	assert.Equal(t, _const.TriggerStatusComplete, state.Status)
	state, _ = q.Get(broken.ID)
	assert.Equal(t, _const.TriggerStatusError, state.Status)

	_, ok := q.Next()
	assert.False(t, ok)
	assert.Equal(t, 2, q.Len())
}

func TestTriggerQueue_PauseResume(t *testing.T) {
	q := NewTriggerQueue(1)
	job := newTestJob("rate", domain.FixedRateSchedule(5*time.Second))
	q.Upsert(job, normalState(t0.Add(10*time.Second)))

	require.True(t, q.Pause(job.ID))
	assert.Empty(t, q.Advance(t0.Add(10*time.Second), calcNext()))
	state, ok := q.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, _const.TriggerStatusPaused, state.Status)

	q.Resume(job, t0.Add(17*time.Second), true)
	state, _ = q.Get(job.ID)
	assert.Equal(t, _const.TriggerStatusNormal, state.Status)
	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, t0.Add(17*time.Second), next)

	assert.True(t, q.Remove(job.ID))
	assert.False(t, q.Remove(job.ID))
	assert.False(t, q.Pause(job.ID))
	assert.Equal(t, 0, q.Len())
}

func TestTriggerQueue_FixedDelayWaitsForCompletion(t *testing.T) {
	q := NewTriggerQueue(1)
	job := newTestJob("delay", domain.FixedDelaySchedule(10*time.Second, 0))
	q.Upsert(job, normalState(t0))

	firings := q.Advance(t0, calcNext())
	require.Len(t, firings, 1)

	// 执行完成前不在堆中，也不允许立即执行
	_, ok := q.Next()
	assert.False(t, ok)
	assert.False(t, q.BeginManual(job.ID))
	assert.Empty(t, q.Advance(t0.Add(time.Hour), calcNext()))

	completed := t0.Add(3 * time.Second)
	require.True(t, q.Complete(job.ID, completed, completed.Add(10*time.Second), true))

	state, _ := q.Get(job.ID)
	assert.Equal(t, completed.Add(10*time.Second), state.NextFireTime)
	require.NotNil(t, state.LastCompletionTime)
	assert.Equal(t, completed, *state.LastCompletionTime)
	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, t0.Add(13*time.Second), next)
}

func TestTriggerQueue_FixedDelayManualDefersScheduledFire(t *testing.T) {
	q := NewTriggerQueue(1)
	job := newTestJob("delay", domain.FixedDelaySchedule(10*time.Second, 5*time.Second))
	q.Upsert(job, normalState(t0.Add(5*time.Second)))

	require.True(t, q.BeginManual(job.ID))
	// 立即执行期间正常触发到期，不重叠执行
	assert.Empty(t, q.Advance(t0.Add(5*time.Second), calcNext()))

	completed := t0.Add(8 * time.Second)
	require.True(t, q.Complete(job.ID, completed, completed.Add(10*time.Second), true))
	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, t0.Add(18*time.Second), next)
}

func TestTriggerQueue_ManualCompletionKeepsSchedule(t *testing.T) {
	q := NewTriggerQueue(1)
	job := newTestJob("delay", domain.FixedDelaySchedule(10*time.Second, 5*time.Second))
	q.Upsert(job, normalState(t0.Add(5*time.Second)))

	require.True(t, q.BeginManual(job.ID))
	assert.False(t, q.Complete(job.ID, t0.Add(time.Second), t0.Add(11*time.Second), true))

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, t0.Add(5*time.Second), next)
}
