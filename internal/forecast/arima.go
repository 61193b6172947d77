package forecast

import (
	"fmt"
	"math"

	"github.com/seidrlabs/demandcast/internal/models"
	"github.com/seidrlabs/demandcast/internal/timeseries"
)

// ARIMAOrder is the (p, d, q) order configuration of an ARIMA model.
type ARIMAOrder struct {
	P int `json:"p" mapstructure:"p"`
	D int `json:"d" mapstructure:"d"`
	Q int `json:"q" mapstructure:"q"`
}

// ARIMAModel is the statistical variant: an autoregressive integrated
// moving average model estimated by conditional sum of squares, with
// Yule-Walker initialisation of the AR terms and forecast-error-variance
// prediction intervals that widen with horizon distance.
type ARIMAModel struct {
	base
	order      ARIMAOrder
	confidence float64

	// Fitted state, owned exclusively by this model.
	arCoeffs  []float64
	maCoeffs  []float64
	intercept float64
	variance  float64
	series    *timeseries.Series
	diffData  *timeseries.Series
	diffTails []float64
	residuals []float64
}

// NewARIMAModel creates an unfit ARIMA model with the given identity and
// order. 95% prediction intervals by default.
func NewARIMAModel(name string, order ARIMAOrder) *ARIMAModel {
	if name == "" {
		name = "ARIMA"
	}
	return &ARIMAModel{
		base:       base{name: name},
		order:      order,
		confidence: 0.95,
	}
}

// Fit estimates the AR, MA and differencing parameters from the series.
// It fails when the series is shorter than p+d+q+1 periods, when there is
// not enough history left for CSS estimation after differencing, or when
// the differenced series fails the ADF stationarity precondition.
func (m *ARIMAModel) Fit(series *timeseries.Series) error {
	if err := series.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrFit, err)
	}
	p, d, q := m.order.P, m.order.D, m.order.Q
	if p < 0 || d < 0 || q < 0 {
		return fmt.Errorf("%w: order (%d,%d,%d) has negative terms", ErrInvalidArgument, p, d, q)
	}
	n := series.Len()
	if n < p+d+q+1 {
		return fmt.Errorf("%w: series has %d periods, order (%d,%d,%d) needs at least %d",
			ErrFit, n, p, d, q, p+d+q+1)
	}
	if n-d < maxInt(p, q)+10 {
		return fmt.Errorf("%w: series has %d periods after differencing, CSS estimation needs at least %d",
			ErrFit, n-d, maxInt(p, q)+10)
	}

	// tails[i] holds the last value of the i-times-differenced series;
	// integrate walks them back level by level when undoing the differencing.
	diff := series
	tails := make([]float64, 0, d)
	for i := 0; i < d; i++ {
		tails = append(tails, diff.Values[diff.Len()-1])
		diff = diff.Diff()
		if diff.Len() == 0 {
			return fmt.Errorf("%w: differencing produced an empty series", ErrFit)
		}
	}

	// Stationarity precondition. A nil result means the test could not run
	// on this sample size and stationarity is undetermined; only a clear
	// rejection fails the fit.
	if adf := timeseries.ADF(diff, 0); adf != nil && !adf.IsStationary {
		return fmt.Errorf("%w: series is not stationary after %d difference(s) (ADF p=%.3f)",
			ErrFit, d, adf.PValue)
	}

	m.series = series.Clone()
	m.diffData = diff
	m.diffTails = tails
	m.arCoeffs = make([]float64, p)
	m.maCoeffs = make([]float64, q)

	if err := m.fitCSS(); err != nil {
		return fmt.Errorf("%w: %v", ErrFit, err)
	}

	m.fitted = true
	return nil
}

// fitCSS estimates parameters by conditional sum of squares with a simple
// gradient refinement, starting from Yule-Walker AR estimates.
func (m *ARIMAModel) fitCSS() error {
	y := m.diffData.Values
	n := len(y)
	p, q := m.order.P, m.order.Q

	if p == 0 && q == 0 {
		mean := 0.0
		for _, v := range y {
			mean += v
		}
		m.intercept = mean / float64(n)
		m.residuals = make([]float64, n)
		ss := 0.0
		for i, v := range y {
			m.residuals[i] = v - m.intercept
			ss += m.residuals[i] * m.residuals[i]
		}
		if n > 1 {
			m.variance = ss / float64(n-1)
		}
		return nil
	}

	if p > 0 {
		if acf := timeseries.ACF(m.diffData, p); acf != nil {
			if phi := timeseries.YuleWalker(acf, p); phi != nil {
				copy(m.arCoeffs, phi)
			}
		}
	}
	for i := range m.maCoeffs {
		m.maCoeffs[i] = 0.1
	}

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	m.intercept = mean / float64(n)

	const (
		maxIter      = 100
		tolerance    = 1e-6
		learningRate = 0.01
	)
	startIdx := maxInt(p, q)

	for iter := 0; iter < maxIter; iter++ {
		residuals := make([]float64, n)
		prevSSE := 0.0
		for t := startIdx; t < n; t++ {
			pred := m.predictOne(y, residuals, t, n)
			residuals[t] = y[t] - pred
			prevSSE += residuals[t] * residuals[t]
		}

		arGrad := make([]float64, p)
		maGrad := make([]float64, q)
		for t := startIdx; t < n; t++ {
			for i := 0; i < p && t-i-1 >= 0; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.intercept)
			}
			for i := 0; i < q && t-i-1 >= 0; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
		}

		for i := 0; i < p; i++ {
			m.arCoeffs[i] -= learningRate * arGrad[i] / float64(n)
			m.arCoeffs[i] = clamp(m.arCoeffs[i], -0.99, 0.99) // stationarity bound
		}
		for i := 0; i < q; i++ {
			m.maCoeffs[i] -= learningRate * maGrad[i] / float64(n)
			m.maCoeffs[i] = clamp(m.maCoeffs[i], -0.99, 0.99) // invertibility bound
		}

		newSSE := 0.0
		for t := startIdx; t < n; t++ {
			pred := m.predictOne(y, residuals, t, n)
			residuals[t] = y[t] - pred
			newSSE += residuals[t] * residuals[t]
		}
		if math.Abs(prevSSE-newSSE) < tolerance {
			break
		}
	}

	m.residuals = make([]float64, n)
	for t := 0; t < n; t++ {
		if t < startIdx {
			m.residuals[t] = y[t] - m.intercept
			continue
		}
		pred := m.predictOne(y, m.residuals, t, n)
		m.residuals[t] = y[t] - pred
	}

	sse, count := 0.0, 0
	for t := startIdx; t < n; t++ {
		sse += m.residuals[t] * m.residuals[t]
		count++
	}
	if count > p+q+1 {
		m.variance = sse / float64(count-p-q-1)
	} else if count > 0 {
		m.variance = sse / float64(count)
	}
	return nil
}

// predictOne computes the one-step prediction at index t on the differenced
// scale. Residuals at t >= histLen are treated as zero (future periods).
func (m *ARIMAModel) predictOne(y, residuals []float64, t, histLen int) float64 {
	pred := m.intercept
	for i := 0; i < m.order.P && t-i-1 >= 0; i++ {
		pred += m.arCoeffs[i] * (y[t-i-1] - m.intercept)
	}
	for i := 0; i < m.order.Q && t-i-1 >= 0 && t-i-1 < histLen; i++ {
		pred += m.maCoeffs[i] * residuals[t-i-1]
	}
	return pred
}

// Predict generates horizon point forecasts with prediction intervals. The
// interval half-width at step h is z * sigma * sqrt(sum of squared psi
// weights up to h), scaled further for integrated series, so uncertainty is
// non-decreasing in the horizon.
func (m *ARIMAModel) Predict(horizon int) (*models.ForecastResult, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}

	y := m.diffData.Values
	n := len(y)

	extY := make([]float64, n+horizon)
	copy(extY, y)
	extResiduals := make([]float64, n+horizon)
	copy(extResiduals, m.residuals)

	for h := 0; h < horizon; h++ {
		t := n + h
		extY[t] = m.predictOne(extY, extResiduals, t, n)
		extResiduals[t] = 0
	}

	points := make([]float64, horizon)
	copy(points, extY[n:])
	if m.order.D > 0 {
		points = m.integrate(points)
	}

	z := timeseries.NormalQuantile((1 + m.confidence) / 2)
	psi := m.psiWeights(horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	cumPsi2 := 0.0
	for h := 0; h < horizon; h++ {
		cumPsi2 += psi[h] * psi[h]
		se := math.Sqrt(m.variance * cumPsi2)
		if m.order.D > 0 {
			se *= math.Sqrt(float64(h + 1))
		}
		lower[h] = points[h] - z*se
		upper[h] = points[h] + z*se
	}

	result := newResult(m.name, futureTimestamps(m.series, horizon), points, lower, upper)
	m.lastForecast = result
	return result, nil
}

// psiWeights expands the ARMA model into its MA(inf) representation:
// psi_0 = 1, psi_j = theta_j + sum_i phi_i * psi_{j-i}.
func (m *ARIMAModel) psiWeights(steps int) []float64 {
	psi := make([]float64, steps)
	if steps == 0 {
		return psi
	}
	psi[0] = 1
	for j := 1; j < steps; j++ {
		if j <= m.order.Q {
			psi[j] = m.maCoeffs[j-1]
		}
		for i := 1; i <= m.order.P && i <= j; i++ {
			psi[j] += m.arCoeffs[i-1] * psi[j-i]
		}
	}
	return psi
}

// integrate undoes d rounds of differencing to bring forecasts back to the
// original scale. Each round is a cumulative sum seeded with the last value
// of the next-less-differenced series captured during Fit.
func (m *ARIMAModel) integrate(forecasts []float64) []float64 {
	result := make([]float64, len(forecasts))
	copy(result, forecasts)

	for level := m.order.D - 1; level >= 0; level-- {
		prev := m.diffTails[level]
		for j := range result {
			result[j] += prev
			prev = result[j]
		}
	}
	return result
}

// Info reports the order configuration and fit status.
func (m *ARIMAModel) Info() models.ModelInfo {
	info := models.ModelInfo{
		Name:   m.name,
		Type:   "arima",
		Fitted: m.fitted,
		Parameters: map[string]any{
			"p":          m.order.P,
			"d":          m.order.D,
			"q":          m.order.Q,
			"confidence": m.confidence,
		},
	}
	if m.fitted {
		info.Parameters["intercept"] = m.intercept
		info.Parameters["residual_variance"] = m.variance
	}
	return info
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
