package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestTrackRecordsTiming(t *testing.T) {
	m := NewPerformanceMonitor(10, quietLogger())

	err := m.Track(context.Background(), "fit_all", func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	timings := m.Timings()
	require.Len(t, timings, 1)
	assert.Equal(t, "fit_all", timings[0].Operation)
	assert.GreaterOrEqual(t, timings[0].Duration, 5*time.Millisecond)
	assert.Positive(t, timings[0].Snapshot.GoroutineCount)
	assert.False(t, timings[0].Snapshot.Timestamp.IsZero())
}

func TestTrackPropagatesError(t *testing.T) {
	m := NewPerformanceMonitor(10, quietLogger())

	wantErr := errors.New("fit failed")
	err := m.Track(context.Background(), "fit_all", func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)

	// The failed operation is still recorded.
	assert.Len(t, m.Timings(), 1)
}

func TestTimingsRingBuffer(t *testing.T) {
	m := NewPerformanceMonitor(3, quietLogger())

	for i := 0; i < 5; i++ {
		op := fmt.Sprintf("op_%d", i)
		require.NoError(t, m.Track(context.Background(), op, func() error { return nil }))
	}

	timings := m.Timings()
	require.Len(t, timings, 3)
	assert.Equal(t, "op_2", timings[0].Operation)
	assert.Equal(t, "op_4", timings[2].Operation)
}

func TestTimingsReturnsCopy(t *testing.T) {
	m := NewPerformanceMonitor(10, quietLogger())
	require.NoError(t, m.Track(context.Background(), "op", func() error { return nil }))

	timings := m.Timings()
	timings[0].Operation = "mutated"
	assert.Equal(t, "op", m.Timings()[0].Operation)
}

func TestSnapshot(t *testing.T) {
	m := NewPerformanceMonitor(10, quietLogger())

	snap := m.Snapshot(context.Background())
	assert.False(t, snap.Timestamp.IsZero())
	assert.Positive(t, snap.GoroutineCount)
	assert.GreaterOrEqual(t, snap.MemoryPercent, 0.0)
}

func TestDefaults(t *testing.T) {
	m := NewPerformanceMonitor(0, nil)
	assert.Equal(t, 100, m.maxKept)
	assert.Positive(t, m.CPUCores())
}
