package job_scheduler

import (
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidSchedule  = domain.ErrInvalidSchedule
	ErrConflict         = domain.ErrConflict
	ErrNotFound         = domain.ErrNotFound
	ErrHandlerFailure   = domain.ErrHandlerFailure
	ErrStoreUnavailable = domain.ErrStoreUnavailable

	ErrEngineRunning = errors.New("scheduler engine already running")
	ErrEngineStopped = errors.New("scheduler engine stopped")
	// ErrJobBusy FIXED_DELAY的Job正在执行中，不允许重叠执行
	ErrJobBusy = errors.New("job is running")
)
