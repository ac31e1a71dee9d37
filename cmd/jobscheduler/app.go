package main

import (
	"context"
	"time"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	"github.com/TimeWtr/job_scheduler/config"
	"github.com/TimeWtr/job_scheduler/repository"
	"github.com/TimeWtr/job_scheduler/repository/dao"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app 命令共用的依赖
type app struct {
	cfg    *config.Config
	zap    *zap.Logger
	db     *gorm.DB
	engine *job_scheduler.SchedulerCore
}

func newZapLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

func openDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := dao.Open(cfg.Driver, cfg.DSN, dao.ParseLogLevel(cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	if err = dao.InitTables(db); err != nil {
		return nil, errors.Wrap(err, "init tables")
	}
	return db, nil
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	zl, err := newZapLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		_ = zl.Sync()
		return nil, err
	}

	sc := cfg.Scheduler
	logger := job_scheduler.NewZapLogger(zl)
	engine := job_scheduler.NewSchedulerCore(
		repository.NewGORMJobRepository(db),
		repository.NewGORMExecutionLogRepository(db),
		logger,
		job_scheduler.WithWorkers(sc.Workers),
		job_scheduler.WithMaxExecutionDuration(sc.MaxExecutionDuration),
		job_scheduler.WithSweepInterval(sc.SweepInterval),
		job_scheduler.WithLocation(loc),
		job_scheduler.WithRetryStrategy(job_scheduler.NewRetryStrategyFunc(
			sc.LogRetryInterval, sc.LogRetryMaxInterval, sc.LogRetryAttempts)),
		job_scheduler.WithDefaultExecutor(logPayloadExecutor(logger)),
	)

	return &app{cfg: cfg, zap: zl, db: db, engine: engine}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.zap.Sync()
}

// logPayloadExecutor 服务端默认执行器，没有注册执行器的Job只记录负载
func logPayloadExecutor(logger job_scheduler.Logger) job_scheduler.ExecutorFunc {
	return func(ctx context.Context, exec job_scheduler.Execution) error {
		logger.Info("executing job",
			job_scheduler.Field{Key: "job_id", Val: exec.JobID.String()},
			job_scheduler.Field{Key: "job_name", Val: exec.JobName},
			job_scheduler.Field{Key: "fire_time", Val: exec.FireTime.Format(time.RFC3339)},
			job_scheduler.Field{Key: "manual", Val: exec.Manual},
			job_scheduler.Field{Key: "payload", Val: string(exec.Payload)},
		)
		return nil
	}
}
