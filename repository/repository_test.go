package repository

import (
	"context"
	"testing"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/TimeWtr/job_scheduler/repository/dao"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

var t0 = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

type repositories struct {
	jobs JobRepository
	logs ExecutionLogRepository
}

func newSQLiteRepositories(t *testing.T) repositories {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := dao.Open(dao.DriverSQLite, dsn, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, dao.InitTables(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return repositories{
		jobs: NewGORMJobRepository(db),
		logs: NewGORMExecutionLogRepository(db),
	}
}

func newMemoryRepositories(*testing.T) repositories {
	return repositories{
		jobs: NewMemoryJobRepository(),
		logs: NewMemoryExecutionLogRepository(),
	}
}

// 两种实现共用同一组用例
var implementations = []struct {
	name string
	new  func(t *testing.T) repositories
}{
	{name: "memory", new: newMemoryRepositories},
	{name: "sqlite", new: newSQLiteRepositories},
}

func newJob(name string, s domain.Schedule, createdAt time.Time) domain.JobDefinition {
	return domain.NewJobDefinition(domain.JobSpec{
		Name:        name,
		Description: name + " job",
		Schedule:    s,
		Payload:     []byte(`{"k":"v"}`),
	}, createdAt)
}

func TestJobRepository_SaveAndFind(t *testing.T) {
	for _, impl := range implementations {
		t.Run(impl.name, func(t *testing.T) {
			ctx := context.Background()
			repo := impl.new(t).jobs

			schedules := []domain.Schedule{
				domain.CronSchedule("0 30 9 ? * MON-FRI"),
				domain.FixedRateSchedule(5 * time.Second),
				domain.FixedDelaySchedule(time.Minute, 10*time.Second),
			}
			for i, s := range schedules {
				job := newJob("job", s, t0.Add(time.Duration(i)*time.Second))
				saved, err := repo.Save(ctx, job)
				require.NoError(t, err)
				assert.Equal(t, int64(1), saved.Version)

				found, err := repo.FindByID(ctx, job.ID)
				require.NoError(t, err)
				assert.Equal(t, job.ID, found.ID)
				assert.Equal(t, job.Name, found.Name)
				assert.Equal(t, job.Description, found.Description)
				assert.Equal(t, s, found.Schedule)
				assert.Equal(t, job.Payload, found.Payload)
				assert.Equal(t, _const.JobStatusActive, found.Status)
				assert.Equal(t, int64(1), found.Version)
				assert.WithinDuration(t, job.CreatedAt, found.CreatedAt, 0)
			}

			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			// 按创建时间升序
			assert.Equal(t, _const.ScheduleCron, all[0].Schedule.Kind)
			assert.Equal(t, _const.ScheduleFixedDelay, all[2].Schedule.Kind)

			_, err = repo.FindByID(ctx, uuid.New())
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestJobRepository_OptimisticLocking(t *testing.T) {
	for _, impl := range implementations {
		t.Run(impl.name, func(t *testing.T) {
			ctx := context.Background()
			repo := impl.new(t).jobs

			job, err := repo.Save(ctx, newJob("a", domain.FixedRateSchedule(time.Minute), t0))
			require.NoError(t, err)

			stale := job
			job.Status = _const.JobStatusPaused
			job, err = repo.Save(ctx, job)
			require.NoError(t, err)
			assert.Equal(t, int64(2), job.Version)

			stale.Description = "lost update"
			_, err = repo.Save(ctx, stale)
			assert.ErrorIs(t, err, domain.ErrConflict)

			found, err := repo.FindByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, _const.JobStatusPaused, found.Status)
			assert.Equal(t, "a job", found.Description)
			assert.Equal(t, int64(2), found.Version)

			missing := newJob("missing", domain.FixedRateSchedule(time.Minute), t0)
			missing.Version = 3
			_, err = repo.Save(ctx, missing)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestJobRepository_StatusFilters(t *testing.T) {
	for _, impl := range implementations {
		t.Run(impl.name, func(t *testing.T) {
			ctx := context.Background()
			repo := impl.new(t).jobs

			active, err := repo.Save(ctx, newJob("active", domain.FixedRateSchedule(time.Minute), t0))
			require.NoError(t, err)
			paused, err := repo.Save(ctx, newJob("paused", domain.FixedRateSchedule(time.Minute), t0.Add(time.Second)))
			require.NoError(t, err)
			deleted, err := repo.Save(ctx, newJob("deleted", domain.FixedRateSchedule(time.Minute), t0.Add(2*time.Second)))
			require.NoError(t, err)

			paused.Status = _const.JobStatusPaused
			_, err = repo.Save(ctx, paused)
			require.NoError(t, err)
			deleted.Status = _const.JobStatusDeleted
			_, err = repo.Save(ctx, deleted)
			require.NoError(t, err)

			jobs, err := repo.FindAllActive(ctx)
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			assert.Equal(t, active.ID, jobs[0].ID)

			jobs, err = repo.FindAll(ctx)
			require.NoError(t, err)
			assert.Len(t, jobs, 2)

			// DELETED对查询不可见
			_, err = repo.FindByID(ctx, deleted.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			ok, err := repo.Exists(ctx, deleted.ID)
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = repo.Exists(ctx, paused.ID)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, repo.Delete(ctx, deleted.ID))
			assert.ErrorIs(t, repo.Delete(ctx, deleted.ID), domain.ErrNotFound)
		})
	}
}

func TestExecutionLogRepository(t *testing.T) {
	for _, impl := range implementations {
		t.Run(impl.name, func(t *testing.T) {
			ctx := context.Background()
			logs := impl.new(t).logs
			jobID := uuid.New()

			_, found, err := logs.FindLatest(ctx, jobID)
			require.NoError(t, err)
			assert.False(t, found)

			entries := []domain.ExecutionLogEntry{
				domain.NewExecutionLogEntry(jobID, t0.Add(10*time.Second), nil, t0.Add(11*time.Second)),
				domain.NewExecutionLogEntry(jobID, t0.Add(20*time.Second), errors.New("timeout"), t0.Add(25*time.Second)),
				domain.NewExecutionLogEntry(jobID, t0.Add(5*time.Second), nil, t0.Add(30*time.Second)),
				domain.NewExecutionLogEntry(uuid.New(), t0, nil, t0),
			}
			for _, e := range entries {
				require.NoError(t, logs.Append(ctx, e))
			}

			got, err := logs.FindByJob(ctx, jobID)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, entries[1].ID, got[0].ID)
			assert.Equal(t, entries[0].ID, got[1].ID)
			assert.Equal(t, entries[2].ID, got[2].ID)

			assert.Equal(t, _const.ExecutionFailed, got[0].Outcome)
			assert.Equal(t, "timeout", got[0].Error)
			assert.Equal(t, _const.ExecutionSuccess, got[1].Outcome)
			assert.Empty(t, got[1].Error)
			assert.WithinDuration(t, t0.Add(25*time.Second), got[0].CreatedAt, 0)

			latest, found, err := logs.FindLatest(ctx, jobID)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, entries[1].ID, latest.ID)
		})
	}
}

func TestGORMJobRepository_StoreUnavailable(t *testing.T) {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := dao.Open(dao.DriverSQLite, dsn, logger.Silent)
	require.NoError(t, err)
	// 不建表，所有查询都失败
	repo := NewGORMJobRepository(db)

	_, err = repo.FindAllActive(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = repo.Save(context.Background(), newJob("a", domain.FixedRateSchedule(time.Minute), t0))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
