package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceSnapshot is a point-in-time view of host resource usage.
type ResourceSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemoryPercent  float64   `json:"memory_percent"`
	MemoryTotalMB  float64   `json:"memory_total_mb"`
	MemoryUsedMB   float64   `json:"memory_used_mb"`
	GoroutineCount int       `json:"goroutine_count"`
}

// OperationTiming records how long a named batch operation took and the
// resource state when it finished.
type OperationTiming struct {
	Operation string           `json:"operation"`
	Duration  time.Duration    `json:"duration"`
	Snapshot  ResourceSnapshot `json:"snapshot"`
}

// PerformanceMonitor samples host metrics around batch forecasting
// operations so slow fits can be correlated with resource pressure.
type PerformanceMonitor struct {
	mu       sync.RWMutex
	timings  []OperationTiming
	maxKept  int
	cpuCores int
	logger   *logrus.Logger
}

// NewPerformanceMonitor creates a monitor that keeps the most recent
// maxKept operation timings.
func NewPerformanceMonitor(maxKept int, logger *logrus.Logger) *PerformanceMonitor {
	if maxKept <= 0 {
		maxKept = 100
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PerformanceMonitor{
		maxKept:  maxKept,
		cpuCores: runtime.NumCPU(),
		logger:   logger,
	}
}

// Snapshot samples current CPU, memory and goroutine usage. Sampling errors
// leave the affected fields at zero rather than failing the caller.
func (m *PerformanceMonitor) Snapshot(ctx context.Context) ResourceSnapshot {
	snap := ResourceSnapshot{
		Timestamp:      time.Now(),
		GoroutineCount: runtime.NumGoroutine(),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	} else if err != nil {
		m.logger.WithError(err).Debug("could not sample CPU usage")
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryPercent = memInfo.UsedPercent
		snap.MemoryTotalMB = float64(memInfo.Total) / (1024 * 1024)
		snap.MemoryUsedMB = float64(memInfo.Used) / (1024 * 1024)
	} else {
		m.logger.WithError(err).Debug("could not sample memory usage")
	}

	return snap
}

// Track runs fn, records its duration plus a post-run snapshot, and returns
// fn's error unchanged.
func (m *PerformanceMonitor) Track(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	timing := OperationTiming{
		Operation: operation,
		Duration:  duration,
		Snapshot:  m.Snapshot(ctx),
	}

	m.mu.Lock()
	m.timings = append(m.timings, timing)
	if len(m.timings) > m.maxKept {
		m.timings = m.timings[len(m.timings)-m.maxKept:]
	}
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
		"cpu_percent": timing.Snapshot.CPUPercent,
		"mem_percent": timing.Snapshot.MemoryPercent,
	}).Debug("operation completed")

	return err
}

// Timings returns a copy of the recorded operation timings, oldest first.
func (m *PerformanceMonitor) Timings() []OperationTiming {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OperationTiming, len(m.timings))
	copy(out, m.timings)
	return out
}

// CPUCores reports the core count seen at startup.
func (m *PerformanceMonitor) CPUCores() int {
	return m.cpuCores
}
