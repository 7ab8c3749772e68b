package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"skillswap/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Register(Job{Name: "a", Schedule: "*/5 * * * *", Run: noop}))

	assert.Error(t, s.Register(Job{Name: "a", Schedule: "* * * * *", Run: noop}), "duplicate name")
	assert.Error(t, s.Register(Job{Name: "b", Schedule: "every tuesday", Run: noop}), "bad schedule")
	assert.Error(t, s.Register(Job{Name: "", Schedule: "* * * * *", Run: noop}))
	assert.Error(t, s.Register(Job{Name: "c", Schedule: "* * * * *"}))
	assert.Equal(t, []string{"a"}, s.Names())
}

func TestScheduler_RunJob(t *testing.T) {
	s := NewScheduler()
	ctx := context.Background()
	var calls int32

	require.NoError(t, s.Register(Job{Name: "count", Schedule: "0 0 1 1 *", Run: func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}}))
	require.NoError(t, s.Register(Job{Name: "fail", Schedule: "0 0 1 1 *", Run: func(context.Context) error {
		return errors.New("db unavailable")
	}}))
	require.NoError(t, s.Register(Job{Name: "boom", Schedule: "0 0 1 1 *", Run: func(context.Context) error {
		panic("nil map")
	}}))

	successBefore := testutil.ToFloat64(observability.JobRuns.WithLabelValues("count", "success"))
	require.NoError(t, s.RunJob(ctx, "count"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, successBefore+1, testutil.ToFloat64(observability.JobRuns.WithLabelValues("count", "success")))

	err := s.RunJob(ctx, "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db unavailable")

	panicsBefore := testutil.ToFloat64(observability.JobRuns.WithLabelValues("boom", "panic"))
	err = s.RunJob(ctx, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, panicsBefore+1, testutil.ToFloat64(observability.JobRuns.WithLabelValues("boom", "panic")))

	// a panicking job does not block later runs
	require.NoError(t, s.RunJob(ctx, "count"))

	err = s.RunJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownJob)

	byName := map[string]JobStatus{}
	for _, st := range s.Status() {
		byName[st.Name] = st
	}
	assert.Equal(t, 2, byName["count"].Runs)
	assert.Empty(t, byName["count"].LastError)
	require.NotNil(t, byName["count"].LastRun)
	assert.Equal(t, "db unavailable", byName["fail"].LastError)
	assert.Contains(t, byName["boom"].LastError, "nil map")
	assert.False(t, byName["boom"].Running)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Register(Job{Name: "hourly", Schedule: "0 * * * *", Run: noop}))

	before := s.Status()
	require.Len(t, before, 1)
	assert.Nil(t, before[0].NextRun, "no next run before start")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Start(ctx)

	require.Eventually(t, func() bool {
		st := s.Status()
		return st[0].NextRun != nil
	}, time.Second, 10*time.Millisecond)
	next := *s.Status()[0].NextRun
	assert.Equal(t, time.UTC, next.Location())
	assert.Zero(t, next.Minute())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, s.Stop(stopCtx))
}
