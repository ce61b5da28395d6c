package scheduler

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/strmsync/internal/logger"
	"github.com/snapetech/strmsync/internal/metrics"
)

func quiet() *logger.DefaultLogger { return logger.New(&bytes.Buffer{}) }

func TestNew_invalidSpec(t *testing.T) {
	_, err := New(context.Background(), "not a cron", func(context.Context) {}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a cron")
}

func TestTrigger_runsJob(t *testing.T) {
	var runs atomic.Int32
	s, err := New(context.Background(), "0 3 * * *", func(context.Context) { runs.Add(1) }, quiet())
	require.NoError(t, err)

	assert.True(t, s.Trigger("boot"))
	assert.True(t, s.Trigger("signal"))
	assert.EqualValues(t, 2, runs.Load())
}

func TestTrigger_skipsWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32
	s, err := New(context.Background(), "0 3 * * *", func(context.Context) {
		runs.Add(1)
		close(started)
		<-release
	}, quiet())
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.Passes.WithLabelValues("skipped"))
	done := make(chan bool)
	go func() { done <- s.Trigger("schedule") }()
	<-started

	assert.False(t, s.Trigger("signal"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Passes.WithLabelValues("skipped")))

	close(release)
	assert.True(t, <-done)
	assert.EqualValues(t, 1, runs.Load())
}

func TestTrigger_canceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	s, err := New(ctx, "0 3 * * *", func(context.Context) { ran = true }, quiet())
	require.NoError(t, err)
	assert.False(t, s.Trigger("boot"))
	assert.False(t, ran)
}

func TestNext(t *testing.T) {
	s, err := New(context.Background(), "30 4 * * 1,3", func(context.Context) {}, quiet())
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	next := s.Next()
	require.False(t, next.IsZero())
	assert.Equal(t, 4, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday}, next.Weekday())
}
