package domain

import (
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/google/uuid"
)

// ExecutionLogEntry 单次触发的执行记录，只追加不修改
type ExecutionLogEntry struct {
	ID       uuid.UUID
	JobID    uuid.UUID
	FireTime time.Time
	Outcome  _const.ExecutionOutcome
	// Error 仅在Outcome为FAILED时有值
	Error     string
	CreatedAt time.Time
}

func NewExecutionLogEntry(jobID uuid.UUID, fireTime time.Time, execErr error, now time.Time) ExecutionLogEntry {
	entry := ExecutionLogEntry{
		ID:        uuid.New(),
		JobID:     jobID,
		FireTime:  fireTime,
		Outcome:   _const.ExecutionSuccess,
		CreatedAt: now,
	}
	if execErr != nil {
		entry.Outcome = _const.ExecutionFailed
		entry.Error = execErr.Error()
	}

	return entry
}

func (e ExecutionLogEntry) Failed() bool {
	return e.Outcome == _const.ExecutionFailed
}
