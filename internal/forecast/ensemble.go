package forecast

import (
	"fmt"
	"sort"
	"time"

	"github.com/seidrlabs/demandcast/internal/models"
	"github.com/seidrlabs/demandcast/internal/timeseries"
)

// Combiner methods accepted by ensemble aggregation.
const (
	CombineMean   = "mean"
	CombineMedian = "median"
)

// EnsembleModel is a model variant whose output is a deterministic
// combination of its sub-models' outputs. Fit delegates to every sub-model;
// Predict combines per-period point forecasts with the configured combiner.
// Bounds are combined member-wise, the combiner applied to the sub-models'
// lower bounds and separately to their upper bounds, which keeps the
// ensemble interval conservative when members disagree.
type EnsembleModel struct {
	base
	method    string
	subModels []Model
}

// NewEnsembleModel creates an ensemble over the given sub-models. Method is
// "mean" or "median"; construction does not validate it so the error can
// surface through Fit like every other configuration mistake.
func NewEnsembleModel(name, method string, subModels ...Model) *EnsembleModel {
	if name == "" {
		name = "Ensemble"
	}
	return &EnsembleModel{
		base:      base{name: name},
		method:    method,
		subModels: subModels,
	}
}

// Fit fits every sub-model on the same series. Any sub-model failure fails
// the ensemble.
func (m *EnsembleModel) Fit(series *timeseries.Series) error {
	if err := validateCombiner(m.method); err != nil {
		return err
	}
	if len(m.subModels) == 0 {
		return fmt.Errorf("%w: ensemble has no sub-models", ErrInvalidArgument)
	}
	for _, sub := range m.subModels {
		if err := sub.Fit(series); err != nil {
			return fmt.Errorf("sub-model %s: %w", sub.Name(), err)
		}
	}
	m.fitted = true
	return nil
}

// Predict obtains each sub-model's forecast for the same horizon and
// combines them period by period.
func (m *EnsembleModel) Predict(horizon int) (*models.ForecastResult, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}

	results := make([]*models.ForecastResult, len(m.subModels))
	for i, sub := range m.subModels {
		r, err := sub.Predict(horizon)
		if err != nil {
			return nil, fmt.Errorf("sub-model %s: %w", sub.Name(), err)
		}
		results[i] = r
	}

	result, err := CombineResults(m.name, m.method, results)
	if err != nil {
		return nil, err
	}
	m.lastForecast = result
	return result, nil
}

// Info reports the combiner and the sub-model composition.
func (m *EnsembleModel) Info() models.ModelInfo {
	subs := make([]string, len(m.subModels))
	for i, sub := range m.subModels {
		subs[i] = sub.Name()
	}
	return models.ModelInfo{
		Name:   m.name,
		Type:   "ensemble",
		Fitted: m.fitted,
		Parameters: map[string]any{
			"method":     m.method,
			"sub_models": subs,
		},
	}
}

// CombineResults merges forecast results period by period: the combiner on
// the point forecasts, and independently on the lower and upper bounds.
// All results must share the same horizon.
func CombineResults(name, method string, results []*models.ForecastResult) (*models.ForecastResult, error) {
	if err := validateCombiner(method); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no forecasts to combine", ErrInvalidArgument)
	}
	horizon := results[0].Horizon()
	for _, r := range results[1:] {
		if r.Horizon() != horizon {
			return nil, fmt.Errorf("%w: forecast horizons differ (%d vs %d)", ErrInvalidArgument, horizon, r.Horizon())
		}
	}

	combine := meanOf
	if method == CombineMedian {
		combine = medianOf
	}

	timestamps := make([]time.Time, horizon)
	points := make([]float64, horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	buf := make([]float64, len(results))

	for h := 0; h < horizon; h++ {
		timestamps[h] = results[0].Points[h].Timestamp
		for i, r := range results {
			buf[i] = r.Points[h].Forecast
		}
		points[h] = combine(buf)
		for i, r := range results {
			buf[i] = r.Points[h].Lower
		}
		lower[h] = combine(buf)
		for i, r := range results {
			buf[i] = r.Points[h].Upper
		}
		upper[h] = combine(buf)
	}

	return newResult(name, timestamps, points, lower, upper), nil
}

func validateCombiner(method string) error {
	if method != CombineMean && method != CombineMedian {
		return fmt.Errorf("%w: unknown ensemble method %q", ErrInvalidArgument, method)
	}
	return nil
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// medianOf returns the middle value; for an even count, the arithmetic mean
// of the two central values.
func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
