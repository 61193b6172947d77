package forecast

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seidrlabs/demandcast/internal/models"
	"github.com/seidrlabs/demandcast/internal/timeseries"
)

// demandSeries generates a deterministic monthly demand curve: base 1000,
// linear growth, yearly sine seasonality and a little seeded noise.
func demandSeries(n int) *timeseries.Series {
	rng := rand.New(rand.NewSource(42))
	values := make([]float64, n)
	for i := range values {
		values[i] = 1000 +
			10*float64(i) +
			50*math.Sin(2*math.Pi*float64(i)/12) +
			rng.NormFloat64()*5
	}
	return timeseries.FromValues(values, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
}

// assertResultShape checks the invariants every forecast result must hold:
// one point per horizon period, strictly increasing timestamps, finite
// values and lower <= forecast <= upper.
func assertResultShape(t *testing.T, result *models.ForecastResult, horizon int) {
	t.Helper()
	require.NotNil(t, result)
	require.Equal(t, horizon, result.Horizon())

	for i, p := range result.Points {
		assert.False(t, math.IsNaN(p.Forecast), "point %d forecast is NaN", i)
		assert.False(t, math.IsInf(p.Forecast, 0), "point %d forecast is infinite", i)
		assert.LessOrEqual(t, p.Lower, p.Forecast, "point %d lower above forecast", i)
		assert.GreaterOrEqual(t, p.Upper, p.Forecast, "point %d upper below forecast", i)
		if i > 0 {
			assert.True(t, p.Timestamp.After(result.Points[i-1].Timestamp),
				"timestamps not strictly increasing at point %d", i)
		}
	}
}

// stubModel is a controllable Model implementation for coordinator and
// ensemble plumbing tests.
type stubModel struct {
	name    string
	fitted  bool
	fitErr  error
	predErr error
	level   float64
	series  *timeseries.Series
	last    *models.ForecastResult
}

func (s *stubModel) Name() string { return s.name }

func (s *stubModel) Fit(series *timeseries.Series) error {
	if s.fitErr != nil {
		return s.fitErr
	}
	s.series = series
	s.fitted = true
	return nil
}

func (s *stubModel) Fitted() bool { return s.fitted }

func (s *stubModel) Predict(horizon int) (*models.ForecastResult, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	if s.predErr != nil {
		return nil, s.predErr
	}
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	timestamps := futureTimestamps(s.series, horizon)
	points := make([]float64, horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for i := range points {
		points[i] = s.level
		lower[i] = s.level - 1
		upper[i] = s.level + 1
	}
	s.last = newResult(s.name, timestamps, points, lower, upper)
	return s.last, nil
}

func (s *stubModel) ConfidenceIntervals(result *models.ForecastResult) ([]float64, []float64, error) {
	if result == nil {
		return nil, nil, ErrNoPredictions
	}
	lo, hi := result.Bounds()
	return lo, hi, nil
}

func (s *stubModel) Evaluate(actual []float64) (*models.EvaluationRecord, error) {
	if s.last == nil {
		return nil, ErrNoPredictions
	}
	return &models.EvaluationRecord{ModelName: s.name}, nil
}

func (s *stubModel) Info() models.ModelInfo {
	return models.ModelInfo{Name: s.name, Type: "stub", Fitted: s.fitted}
}
