package job_scheduler

import (
	"testing"
	"time"

	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WithJobFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapLogger(zap.New(core))

	f := Firing{Job: newTestJob("report", domain.FixedRateSchedule(time.Second)), FireTime: t0, Manual: true}
	jl := logger.With(jobFields(f)...)
	jl.Debug("dropped below level")
	jl.Error("job execution failed", Field{Key: "err", Val: errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, f.Job.ID.String(), ctx["job_id"])
	assert.Equal(t, "report", ctx["job_name"])
	assert.Equal(t, true, ctx["manual"])
	assert.Equal(t, "boom", ctx["err"])
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	assert.NotPanics(t, func() {
		logger.With(Field{Key: "k", Val: 1}).Info("ignored")
	})
}
