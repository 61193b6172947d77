package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"

	"github.com/seidrlabs/demandcast/internal/models"
	"github.com/seidrlabs/demandcast/internal/timeseries"
)

// Estimator names accepted by the regression variant.
const (
	EstimatorLinear = "linear"
	EstimatorRidge  = "ridge"
)

// Candidate lag features; lags that do not fit the series length are
// dropped at fit time.
var regressionLags = []int{1, 2, 3, 6, 12}

// RegressionConfig configures the regression variant.
type RegressionConfig struct {
	// Estimator is "linear" (ordinary least squares) or "ridge".
	Estimator string `json:"estimator" mapstructure:"estimator"`
	// Lambda is the ridge penalty; ignored for the linear estimator.
	Lambda float64 `json:"lambda" mapstructure:"lambda"`
}

// RegressionModel is the ML variant: it converts the series into a
// supervised problem with lag, rolling-statistic and calendar features,
// trains a regularised linear estimator on standardised features, and
// forecasts multiple steps recursively, feeding each forecast back into the
// next step's lag features.
//
// The estimator has no native uncertainty, so intervals are a symmetric
// band of point +/- z * sigma of the training residuals.
type RegressionModel struct {
	base
	config     RegressionConfig
	confidence float64

	// Fitted state.
	usableLags []int
	startIdx   int
	coeffs     []float64
	featMean   []float64
	featStd    []float64
	yMean      float64
	sigma      float64
	series     *timeseries.Series
}

// NewRegressionModel creates an unfit regression model. An empty estimator
// defaults to ridge with a small penalty.
func NewRegressionModel(name string, config RegressionConfig) *RegressionModel {
	if name == "" {
		name = "Regression"
	}
	if config.Estimator == "" {
		config.Estimator = EstimatorRidge
	}
	if config.Estimator == EstimatorRidge && config.Lambda <= 0 {
		config.Lambda = 1.0
	}
	return &RegressionModel{
		base:       base{name: name},
		config:     config,
		confidence: 0.95,
	}
}

// Fit engineers the feature matrix from the raw series and trains the
// estimator on it.
func (m *RegressionModel) Fit(series *timeseries.Series) error {
	if m.config.Estimator != EstimatorLinear && m.config.Estimator != EstimatorRidge {
		return fmt.Errorf("%w: unknown estimator %q", ErrInvalidArgument, m.config.Estimator)
	}
	if err := series.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrFit, err)
	}

	n := series.Len()
	m.usableLags = nil
	for _, lag := range regressionLags {
		if lag <= n-4 {
			m.usableLags = append(m.usableLags, lag)
		}
	}
	if len(m.usableLags) == 0 {
		return fmt.Errorf("%w: series has %d periods, too short for lag features", ErrFit, n)
	}

	maxLag := m.usableLags[len(m.usableLags)-1]
	// Rows need every lag plus a full trailing window for the rolling
	// statistics of the preceding period.
	m.startIdx = maxInt(maxLag, rollingLongWindow)
	rows := n - m.startIdx
	if rows < 6 {
		return fmt.Errorf("%w: series has %d periods, only %d usable training rows (need at least 6)",
			ErrFit, n, rows)
	}

	rollMean3 := rollingMean(series.Values, rollingShortWindow)
	rollMean6 := rollingMean(series.Values, rollingLongWindow)
	rollStd3 := rollingStd(series.Values, rollingShortWindow)

	x := make([][]float64, rows)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		i := m.startIdx + r
		x[r] = m.featureRow(series.Timestamps[i], series.Values, i, rollMean3, rollMean6, rollStd3)
		y[r] = series.Values[i]
	}

	if err := m.train(x, y); err != nil {
		return fmt.Errorf("%w: %v", ErrFit, err)
	}

	m.series = series.Clone()
	m.fitted = true
	return nil
}

// Predict forecasts recursively: each period's forecast is appended to the
// value buffer so later periods see it through their lag and rolling
// features. The accumulation is explicit and deterministic for identical
// fitted parameters.
func (m *RegressionModel) Predict(horizon int) (*models.ForecastResult, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}

	timestamps := futureTimestamps(m.series, horizon)
	buffer := make([]float64, m.series.Len(), m.series.Len()+horizon)
	copy(buffer, m.series.Values)

	points := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		rollMean3 := rollingMean(buffer, rollingShortWindow)
		rollMean6 := rollingMean(buffer, rollingLongWindow)
		rollStd3 := rollingStd(buffer, rollingShortWindow)

		row := m.featureRow(timestamps[h], buffer, len(buffer), rollMean3, rollMean6, rollStd3)
		points[h] = m.predictRow(row)
		buffer = append(buffer, points[h])
	}

	z := timeseries.NormalQuantile((1 + m.confidence) / 2)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for h := range points {
		lower[h] = points[h] - z*m.sigma
		upper[h] = points[h] + z*m.sigma
	}

	result := newResult(m.name, timestamps, points, lower, upper)
	m.lastForecast = result
	return result, nil
}

// Info reports the estimator configuration and fit status.
func (m *RegressionModel) Info() models.ModelInfo {
	info := models.ModelInfo{
		Name:   m.name,
		Type:   "regression",
		Fitted: m.fitted,
		Parameters: map[string]any{
			"estimator":  m.config.Estimator,
			"lambda":     m.config.Lambda,
			"confidence": m.confidence,
		},
	}
	if m.fitted {
		info.Parameters["lags"] = m.usableLags
		info.Parameters["residual_sigma"] = m.sigma
	}
	return info
}

const (
	rollingShortWindow = 3
	rollingLongWindow  = 6
)

// featureRow builds the feature vector for predicting index i of values.
// For i == len(values) the row describes the next (future) period; rolling
// statistics then cover the final full window of the buffer.
func (m *RegressionModel) featureRow(t time.Time, values []float64, i int, rollMean3, rollMean6, rollStd3 []float64) []float64 {
	row := make([]float64, 0, 7+len(m.usableLags))
	row = append(row,
		float64(t.Year()),
		float64(t.Month()),
		float64((int(t.Month())-1)/3+1),
		float64(t.YearDay()),
	)
	for _, lag := range m.usableLags {
		row = append(row, values[i-lag])
	}
	// Rolling stats of the periods preceding i.
	row = append(row, rollMean3[i-1], rollMean6[i-1], rollStd3[i-1])
	return row
}

// train standardises the features, centers the target and solves the
// (optionally ridge-penalised) normal equations.
func (m *RegressionModel) train(x [][]float64, y []float64) error {
	rows := len(x)
	k := len(x[0])

	m.featMean = make([]float64, k)
	m.featStd = make([]float64, k)
	for j := 0; j < k; j++ {
		sum := 0.0
		for r := 0; r < rows; r++ {
			sum += x[r][j]
		}
		m.featMean[j] = sum / float64(rows)
		ss := 0.0
		for r := 0; r < rows; r++ {
			d := x[r][j] - m.featMean[j]
			ss += d * d
		}
		m.featStd[j] = math.Sqrt(ss / float64(rows))
		if m.featStd[j] == 0 {
			m.featStd[j] = 1
		}
	}

	m.yMean = 0
	for _, v := range y {
		m.yMean += v
	}
	m.yMean /= float64(rows)

	xs := make([][]float64, rows)
	ys := make([]float64, rows)
	for r := 0; r < rows; r++ {
		xs[r] = make([]float64, k)
		for j := 0; j < k; j++ {
			xs[r][j] = (x[r][j] - m.featMean[j]) / m.featStd[j]
		}
		ys[r] = y[r] - m.yMean
	}

	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)
	for r := 0; r < rows; r++ {
		for i := 0; i < k; i++ {
			xty[i] += xs[r][i] * ys[r]
			for j := 0; j < k; j++ {
				xtx[i][j] += xs[r][i] * xs[r][j]
			}
		}
	}
	lambda := 0.0
	if m.config.Estimator == EstimatorRidge {
		lambda = m.config.Lambda
	}
	for i := 0; i < k; i++ {
		xtx[i][i] += lambda
	}

	inv := timeseries.InvertMatrix(xtx)
	if inv == nil {
		return fmt.Errorf("singular feature matrix (estimator %s)", m.config.Estimator)
	}
	m.coeffs = make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			m.coeffs[i] += inv[i][j] * xty[j]
		}
	}

	var ss float64
	for r := 0; r < rows; r++ {
		pred := m.yMean
		for j := 0; j < k; j++ {
			pred += m.coeffs[j] * xs[r][j]
		}
		res := y[r] - pred
		ss += res * res
	}
	dof := rows - k
	if dof < 1 {
		dof = rows
	}
	m.sigma = math.Sqrt(ss / float64(dof))
	return nil
}

func (m *RegressionModel) predictRow(row []float64) float64 {
	pred := m.yMean
	for j := range row {
		pred += m.coeffs[j] * (row[j] - m.featMean[j]) / m.featStd[j]
	}
	return pred
}

// rollingMean computes a trailing moving average via cinar/indicator. The
// first window-1 entries are NaN padded so output aligns with the input.
func rollingMean(values []float64, window int) []float64 {
	sma := trend.NewSmaWithPeriod[float64](window)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	return padLeft(out, len(values))
}

// rollingStd computes a trailing moving standard deviation via
// cinar/indicator, aligned like rollingMean.
func rollingStd(values []float64, window int) []float64 {
	std := volatility.NewMovingStdWithPeriod[float64](window)
	out := helper.ChanToSlice(std.Compute(helper.SliceToChan(values)))
	return padLeft(out, len(values))
}

func padLeft(out []float64, n int) []float64 {
	pad := n - len(out)
	if pad <= 0 {
		return out
	}
	padded := make([]float64, n)
	for i := 0; i < pad; i++ {
		padded[i] = math.NaN()
	}
	copy(padded[pad:], out)
	return padded
}
