// Package forecast implements the demand forecasting core: the polymorphic
// model contract, the concrete model variants and the coordinator that
// drives batch training, prediction and ensembling across them.
package forecast

import (
	"fmt"
	"time"

	"github.com/seidrlabs/demandcast/internal/evaluation"
	"github.com/seidrlabs/demandcast/internal/models"
	"github.com/seidrlabs/demandcast/internal/timeseries"
)

// Model is the capability set shared by every forecasting variant. The
// coordinator depends only on this interface, never on a concrete variant.
//
// Lifecycle: a model is constructed unfit, transitions to fitted via Fit,
// and then services repeated Predict calls without mutation of its fitted
// parameters. Predict and ConfidenceIntervals before a successful Fit fail
// with ErrNotFitted.
type Model interface {
	// Name returns the identity the model is registered under.
	Name() string

	// Fit trains the model on a validated historical series.
	Fit(series *timeseries.Series) error

	// Fitted reports whether Fit has completed successfully.
	Fitted() bool

	// Predict forecasts the given number of future periods. The returned
	// result has exactly horizon points with lower <= forecast <= upper.
	Predict(horizon int) (*models.ForecastResult, error)

	// ConfidenceIntervals extracts the per-period bounds of a forecast.
	ConfidenceIntervals(result *models.ForecastResult) (lower, upper []float64, err error)

	// Evaluate scores the model's last forecast against held-out actuals.
	Evaluate(actual []float64) (*models.EvaluationRecord, error)

	// Info returns configuration and fit status for reporting.
	Info() models.ModelInfo
}

// base carries the state and behaviour shared by all variants: identity,
// fit status, the last produced forecast and the common Evaluate and
// ConfidenceIntervals implementations.
type base struct {
	name         string
	fitted       bool
	lastForecast *models.ForecastResult
}

func (b *base) Name() string { return b.name }

func (b *base) Fitted() bool { return b.fitted }

func (b *base) ConfidenceIntervals(result *models.ForecastResult) (lower, upper []float64, err error) {
	if !b.fitted {
		return nil, nil, ErrNotFitted
	}
	if result == nil || len(result.Points) == 0 {
		return nil, nil, fmt.Errorf("%w: forecast result is empty", ErrInvalidArgument)
	}
	lower, upper = result.Bounds()
	return lower, upper, nil
}

func (b *base) Evaluate(actual []float64) (*models.EvaluationRecord, error) {
	if !b.fitted {
		return nil, ErrNotFitted
	}
	if b.lastForecast == nil {
		return nil, fmt.Errorf("%w: no forecast to evaluate", ErrNoPredictions)
	}
	if len(actual) != b.lastForecast.Horizon() {
		return nil, fmt.Errorf("%w: actual series has %d periods, forecast has %d",
			ErrInvalidArgument, len(actual), b.lastForecast.Horizon())
	}
	lower, upper := b.lastForecast.Bounds()
	record, err := evaluation.EvaluateWithBounds(actual, b.lastForecast.PointForecasts(), lower, upper)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	record.ModelName = b.name
	return record, nil
}

// checkHorizon validates a requested prediction horizon.
func checkHorizon(horizon int) error {
	if horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidArgument, horizon)
	}
	return nil
}

// futureTimestamps continues a series' cadence past its last observation.
// Series stepping by whole calendar months keep stepping by months (the
// default demand cadence); anything else continues with the last observed
// fixed interval.
func futureTimestamps(s *timeseries.Series, horizon int) []time.Time {
	out := make([]time.Time, horizon)
	last := s.LastTimestamp()
	n := len(s.Timestamps)

	monthly := true
	if n >= 2 {
		prev := s.Timestamps[n-2]
		monthly = prev.AddDate(0, 1, 0).Equal(last)
	}

	if monthly {
		for i := 0; i < horizon; i++ {
			out[i] = last.AddDate(0, i+1, 0)
		}
		return out
	}

	step := s.Timestamps[n-1].Sub(s.Timestamps[n-2])
	for i := 0; i < horizon; i++ {
		out[i] = last.Add(time.Duration(i+1) * step)
	}
	return out
}

// newResult assembles a ForecastResult from parallel slices, clamping any
// interval that crosses its point forecast so lower <= point <= upper holds
// for every period.
func newResult(name string, timestamps []time.Time, points, lower, upper []float64) *models.ForecastResult {
	result := &models.ForecastResult{
		ModelName: name,
		Points:    make([]models.ForecastPoint, len(points)),
		CreatedAt: time.Now().UTC(),
	}
	for i := range points {
		lo, hi := lower[i], upper[i]
		if lo > points[i] {
			lo = points[i]
		}
		if hi < points[i] {
			hi = points[i]
		}
		result.Points[i] = models.ForecastPoint{
			Timestamp: timestamps[i],
			Forecast:  points[i],
			Lower:     lo,
			Upper:     hi,
		}
	}
	return result
}
