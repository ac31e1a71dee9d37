// Package config 加载调度服务的配置，来源优先级：环境变量 > 配置文件 > 默认值
package config

import (
	"strings"
	"time"

	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "JOBSCHED"

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type DatabaseConfig struct {
	// Driver sqlite / postgres
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// LogLevel gorm日志级别 silent / error / warn / info
	LogLevel string `mapstructure:"log_level"`
}

type SchedulerConfig struct {
	Workers              int64         `mapstructure:"workers"`
	MaxExecutionDuration time.Duration `mapstructure:"max_execution_duration"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	LogRetryAttempts     int           `mapstructure:"log_retry_attempts"`
	LogRetryInterval     time.Duration `mapstructure:"log_retry_interval"`
	// LogRetryMaxInterval 大于LogRetryInterval时重试间隔指数增长到该值
	LogRetryMaxInterval  time.Duration `mapstructure:"log_retry_max_interval"`
	// Timezone cron表达式使用的时区，为空使用本地时区
	Timezone             string        `mapstructure:"timezone"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults 设置默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "jobscheduler.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("scheduler.workers", _const.DefaultLimiter)
	v.SetDefault("scheduler.max_execution_duration", _const.DefaultMaxExecutionDuration)
	v.SetDefault("scheduler.sweep_interval", _const.DefaultSweepInterval)
	v.SetDefault("scheduler.log_retry_attempts", _const.DefaultLogRetryAttempts)
	v.SetDefault("scheduler.log_retry_interval", _const.DefaultLogRetryInterval)
	v.SetDefault("scheduler.log_retry_max_interval", time.Duration(0))
	v.SetDefault("scheduler.timezone", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load 读取配置，path为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper 从已有的viper实例解析配置
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return errors.Newf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn required")
	}
	if c.Scheduler.Workers <= 0 {
		return errors.Newf("scheduler workers must be positive, got %d", c.Scheduler.Workers)
	}
	if c.Scheduler.MaxExecutionDuration <= 0 {
		return errors.Newf("max execution duration must be positive, got %s", c.Scheduler.MaxExecutionDuration)
	}
	if c.Scheduler.SweepInterval < 0 {
		return errors.Newf("sweep interval must not be negative, got %s", c.Scheduler.SweepInterval)
	}
	if c.Scheduler.LogRetryAttempts < 0 {
		return errors.Newf("log retry attempts must not be negative, got %d", c.Scheduler.LogRetryAttempts)
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return err
	}
	return nil
}

// Location 解析时区配置
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timezone %q", s.Timezone)
	}
	return loc, nil
}
