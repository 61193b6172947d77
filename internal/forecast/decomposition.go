package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/seidrlabs/demandcast/internal/models"
	"github.com/seidrlabs/demandcast/internal/timeseries"
)

// SeasonalityConfig switches individual seasonal components on or off.
// Yearly seasonality is resolved per calendar month, weekly per weekday and
// daily per hour, so the model works for monthly, daily and hourly cadences
// alike. Components whose cadence the data cannot express simply learn a
// flat profile.
type SeasonalityConfig struct {
	Yearly bool `json:"yearly" mapstructure:"yearly"`
	Weekly bool `json:"weekly" mapstructure:"weekly"`
	Daily  bool `json:"daily" mapstructure:"daily"`
}

// DecompositionModel is the trend/seasonality variant: it decomposes the
// series into a linear trend plus centered seasonal profiles and optional
// event effects, then extrapolates the trend and recomposes the seasonal
// terms for future periods. Missing (NaN) observations are tolerated.
type DecompositionModel struct {
	base
	seasonality SeasonalityConfig
	events      []time.Time
	confidence  float64

	// Fitted state.
	slope        float64
	level        float64
	tMin, tScale float64
	monthProfile [13]float64
	dayProfile   [7]float64
	hourProfile  [24]float64
	eventEffect  float64
	sigma        float64
	series       *timeseries.Series
}

// NewDecompositionModel creates an unfit decomposition model. Events are
// optional dates (matched by calendar day) that receive a learned additive
// effect on top of trend and seasonality.
func NewDecompositionModel(name string, seasonality SeasonalityConfig, events ...time.Time) *DecompositionModel {
	if name == "" {
		name = "Decomposition"
	}
	return &DecompositionModel{
		base:        base{name: name},
		seasonality: seasonality,
		events:      events,
		confidence:  0.95,
	}
}

// Fit decomposes the series into trend, seasonal and event components.
// The only hard precondition is a floor of two non-missing observations.
func (m *DecompositionModel) Fit(series *timeseries.Series) error {
	if err := series.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrFit, err)
	}

	var ts []time.Time
	var ys []float64
	for i, v := range series.Values {
		if math.IsNaN(v) {
			continue
		}
		ts = append(ts, series.Timestamps[i])
		ys = append(ys, v)
	}
	if len(ys) < 2 {
		return fmt.Errorf("%w: need at least 2 non-missing observations, got %d", ErrFit, len(ys))
	}

	m.tMin = float64(ts[0].Unix())
	m.tScale = float64(ts[len(ts)-1].Unix()) - m.tMin
	if m.tScale == 0 {
		m.tScale = 1
	}

	// Linear trend by least squares on normalised time.
	var sumT, sumY, sumTY, sumT2 float64
	for i, y := range ys {
		t := m.normTime(ts[i])
		sumT += t
		sumY += y
		sumTY += t * y
		sumT2 += t * t
	}
	nf := float64(len(ys))
	denom := nf*sumT2 - sumT*sumT
	if denom == 0 {
		m.slope = 0
		m.level = sumY / nf
	} else {
		m.slope = (nf*sumTY - sumT*sumY) / denom
		m.level = (sumY - m.slope*sumT) / nf
	}

	detrended := make([]float64, len(ys))
	for i, y := range ys {
		detrended[i] = y - m.trendAt(ts[i])
	}

	if m.seasonality.Yearly {
		m.monthProfile = bucketProfile13(ts, detrended, func(t time.Time) int { return int(t.Month()) })
	}
	if m.seasonality.Weekly {
		m.dayProfile = bucketProfile7(ts, detrended, func(t time.Time) int { return int(t.Weekday()) })
	}
	if m.seasonality.Daily {
		m.hourProfile = bucketProfile24(ts, detrended, func(t time.Time) int { return t.Hour() })
	}

	// Event effect: mean leftover on event days after trend and seasonality.
	if len(m.events) > 0 {
		sum, count := 0.0, 0
		for i := range ts {
			if m.isEvent(ts[i]) {
				sum += detrended[i] - m.seasonalAt(ts[i])
				count++
			}
		}
		if count > 0 {
			m.eventEffect = sum / float64(count)
		}
	}

	// Residual sigma drives the prediction intervals.
	var ss float64
	for i := range ts {
		r := ys[i] - m.componentsAt(ts[i])
		ss += r * r
	}
	if len(ys) > 2 {
		m.sigma = math.Sqrt(ss / float64(len(ys)-2))
	} else {
		m.sigma = math.Sqrt(ss / float64(len(ys)))
	}

	m.series = series.Clone()
	m.fitted = true
	return nil
}

// Predict extrapolates the trend and recomposes the seasonal and event
// terms for horizon future periods. Intervals widen with sqrt(h+1) of the
// residual sigma, mirroring simulated trend variation growth.
func (m *DecompositionModel) Predict(horizon int) (*models.ForecastResult, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}

	timestamps := futureTimestamps(m.series, horizon)
	points := make([]float64, horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	z := timeseries.NormalQuantile((1 + m.confidence) / 2)

	for h, t := range timestamps {
		points[h] = m.componentsAt(t)
		se := m.sigma * math.Sqrt(float64(h+1))
		lower[h] = points[h] - z*se
		upper[h] = points[h] + z*se
	}

	result := newResult(m.name, timestamps, points, lower, upper)
	m.lastForecast = result
	return result, nil
}

// Info reports the seasonality configuration and fit status.
func (m *DecompositionModel) Info() models.ModelInfo {
	info := models.ModelInfo{
		Name:   m.name,
		Type:   "decomposition",
		Fitted: m.fitted,
		Parameters: map[string]any{
			"yearly_seasonality": m.seasonality.Yearly,
			"weekly_seasonality": m.seasonality.Weekly,
			"daily_seasonality":  m.seasonality.Daily,
			"events":             len(m.events),
			"confidence":         m.confidence,
		},
	}
	if m.fitted {
		info.Parameters["trend_slope"] = m.slope
		info.Parameters["residual_sigma"] = m.sigma
	}
	return info
}

func (m *DecompositionModel) normTime(t time.Time) float64 {
	return (float64(t.Unix()) - m.tMin) / m.tScale
}

func (m *DecompositionModel) trendAt(t time.Time) float64 {
	return m.level + m.slope*m.normTime(t)
}

func (m *DecompositionModel) seasonalAt(t time.Time) float64 {
	s := 0.0
	if m.seasonality.Yearly {
		s += m.monthProfile[int(t.Month())]
	}
	if m.seasonality.Weekly {
		s += m.dayProfile[int(t.Weekday())]
	}
	if m.seasonality.Daily {
		s += m.hourProfile[t.Hour()]
	}
	return s
}

func (m *DecompositionModel) componentsAt(t time.Time) float64 {
	v := m.trendAt(t) + m.seasonalAt(t)
	if m.isEvent(t) {
		v += m.eventEffect
	}
	return v
}

func (m *DecompositionModel) isEvent(t time.Time) bool {
	for _, e := range m.events {
		if e.Year() == t.Year() && e.YearDay() == t.YearDay() {
			return true
		}
	}
	return false
}

// bucketProfile13 averages detrended values per bucket and centers the
// profile so the seasonal component sums to zero over observed buckets.
func bucketProfile13(ts []time.Time, detrended []float64, bucket func(time.Time) int) [13]float64 {
	var sums [13]float64
	var counts [13]int
	for i, t := range ts {
		b := bucket(t)
		sums[b] += detrended[i]
		counts[b]++
	}
	return centerProfile13(sums, counts)
}

func bucketProfile7(ts []time.Time, detrended []float64, bucket func(time.Time) int) [7]float64 {
	var sums [7]float64
	var counts [7]int
	for i, t := range ts {
		b := bucket(t)
		sums[b] += detrended[i]
		counts[b]++
	}
	var out [7]float64
	center(sums[:], counts[:], out[:])
	return out
}

func bucketProfile24(ts []time.Time, detrended []float64, bucket func(time.Time) int) [24]float64 {
	var sums [24]float64
	var counts [24]int
	for i, t := range ts {
		b := bucket(t)
		sums[b] += detrended[i]
		counts[b]++
	}
	var out [24]float64
	center(sums[:], counts[:], out[:])
	return out
}

func centerProfile13(sums [13]float64, counts [13]int) [13]float64 {
	var out [13]float64
	center(sums[:], counts[:], out[:])
	return out
}

func center(sums []float64, counts []int, out []float64) {
	total, observed := 0.0, 0
	for i := range sums {
		if counts[i] > 0 {
			out[i] = sums[i] / float64(counts[i])
			total += out[i]
			observed++
		}
	}
	if observed == 0 {
		return
	}
	mean := total / float64(observed)
	for i := range out {
		if counts[i] > 0 {
			out[i] -= mean
		}
	}
}
