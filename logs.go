package job_scheduler

import (
	"go.uber.org/zap"
)

// Logger 引擎使用的日志抽象，With返回带固定字段的子Logger，单次执行内的日志都带上Job标识
type Logger interface {
	Debug(msg string, args ...Field)
	Info(msg string, args ...Field)
	Warn(msg string, args ...Field)
	Error(msg string, args ...Field)
	With(args ...Field) Logger
}

type Field struct {
	Key string
	Val any
}

// jobFields 单个Job的日志字段
func jobFields(f Firing) []Field {
	return []Field{
		{Key: "job_id", Val: f.Job.ID.String()},
		{Key: "job_name", Val: f.Job.Name},
		{Key: "fire_time", Val: f.FireTime},
		{Key: "manual", Val: f.Manual},
	}
}

type ZapLogger struct {
	l *zap.Logger
}

func NewZapLogger(l *zap.Logger) Logger {
	return &ZapLogger{l: l}
}

func (z *ZapLogger) Debug(msg string, args ...Field) {
	if ce := z.l.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(toZapFields(args)...)
	}
}

func (z *ZapLogger) Info(msg string, args ...Field) {
	z.l.Info(msg, toZapFields(args)...)
}

func (z *ZapLogger) Warn(msg string, args ...Field) {
	z.l.Warn(msg, toZapFields(args)...)
}

func (z *ZapLogger) Error(msg string, args ...Field) {
	z.l.Error(msg, toZapFields(args)...)
}

func (z *ZapLogger) With(args ...Field) Logger {
	return &ZapLogger{l: z.l.With(toZapFields(args)...)}
}

// toZapFields error类型统一输出为错误字段，cockroachdb/errors的错误链在zap中展开
func toZapFields(args []Field) []zap.Field {
	res := make([]zap.Field, 0, len(args))
	for _, arg := range args {
		switch v := arg.Val.(type) {
		case error:
			res = append(res, zap.NamedError(arg.Key, v))
		case string:
			res = append(res, zap.String(arg.Key, v))
		default:
			res = append(res, zap.Any(arg.Key, v))
		}
	}
	return res
}

// NopLogger 丢弃所有日志
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field)  {}
func (NopLogger) Info(string, ...Field)   {}
func (NopLogger) Warn(string, ...Field)   {}
func (NopLogger) Error(string, ...Field)  {}
func (n NopLogger) With(...Field) Logger { return n }
