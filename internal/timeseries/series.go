// Package timeseries provides the time series representation shared by all
// forecasting models, together with the statistical helpers they rely on.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Series is an ordered sequence of (timestamp, value) observations, one per
// forecasting period. Timestamps are expected to be strictly increasing with
// no missing periods; the dataloader package validates this before a series
// reaches any model.
type Series struct {
	Timestamps []time.Time
	Values     []float64
	Name       string
}

// New builds a series from aligned timestamp and value slices.
func New(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, fmt.Errorf("timestamps and values length mismatch: %d vs %d", len(timestamps), len(values))
	}
	return &Series{Timestamps: timestamps, Values: values}, nil
}

// FromValues builds a series with synthetic monthly timestamps, mostly
// useful in tests and demos.
func FromValues(values []float64, start time.Time) *Series {
	timestamps := make([]time.Time, len(values))
	for i := range values {
		timestamps[i] = start.AddDate(0, i, 0)
	}
	return &Series{Timestamps: timestamps, Values: values}
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Values)
}

// LastTimestamp returns the timestamp of the final observation.
func (s *Series) LastTimestamp() time.Time {
	if len(s.Timestamps) == 0 {
		return time.Time{}
	}
	return s.Timestamps[len(s.Timestamps)-1]
}

// Mean returns the arithmetic mean, ignoring NaN observations.
func (s *Series) Mean() float64 {
	sum, n := 0.0, 0
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Variance returns the sample variance, ignoring NaN observations.
func (s *Series) Variance() float64 {
	mean := s.Mean()
	sumSq, n := 0.0, 0
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		d := v - mean
		sumSq += d * d
		n++
	}
	if n < 2 {
		return 0
	}
	return sumSq / float64(n-1)
}

// Std returns the sample standard deviation.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Median returns the median value.
func (s *Series) Median() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Diff returns the first-difference series (length n-1).
func (s *Series) Diff() *Series {
	if len(s.Values) < 2 {
		return &Series{Name: s.Name}
	}
	values := make([]float64, len(s.Values)-1)
	timestamps := make([]time.Time, len(s.Values)-1)
	for i := 1; i < len(s.Values); i++ {
		values[i-1] = s.Values[i] - s.Values[i-1]
		timestamps[i-1] = s.Timestamps[i]
	}
	return &Series{Timestamps: timestamps, Values: values, Name: s.Name}
}

// Validate checks the core series invariants: non-empty, aligned slices and
// strictly increasing timestamps.
func (s *Series) Validate() error {
	if len(s.Values) == 0 {
		return errors.New("series is empty")
	}
	if len(s.Timestamps) != len(s.Values) {
		return fmt.Errorf("timestamps and values length mismatch: %d vs %d", len(s.Timestamps), len(s.Values))
	}
	for i := 1; i < len(s.Timestamps); i++ {
		if !s.Timestamps[i].After(s.Timestamps[i-1]) {
			return fmt.Errorf("timestamps not strictly increasing at index %d", i)
		}
	}
	return nil
}

// Clone returns a deep copy of the series.
func (s *Series) Clone() *Series {
	timestamps := make([]time.Time, len(s.Timestamps))
	copy(timestamps, s.Timestamps)
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	return &Series{Timestamps: timestamps, Values: values, Name: s.Name}
}
