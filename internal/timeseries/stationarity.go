package timeseries

import "math"

// ADFResult holds the outcome of an Augmented Dickey-Fuller unit root test.
type ADFResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	NObs         int
	IsStationary bool
}

// ADF runs the Augmented Dickey-Fuller test with a constant term. The null
// hypothesis is that the series has a unit root; p < 0.05 rejects the null.
// Returns nil when the series is too short to run the regression, in which
// case callers should treat stationarity as undetermined.
func ADF(s *Series, maxLag int) *ADFResult {
	n := s.Len()
	if n < 10 {
		return nil
	}

	if maxLag <= 0 {
		maxLag = int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	}
	if maxLag >= n-1 {
		maxLag = n - 2
	}

	diff := s.Diff()

	// Regression: delta_y_t = alpha + beta*y_{t-1} + sum(gamma_i*delta_y_{t-i})
	// Testing beta = 0 (unit root) against beta < 0 (stationary).
	nObs := n - maxLag - 1
	if nObs < 10 {
		return nil
	}

	y := make([]float64, nObs)
	x := make([][]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + maxLag
		y[i] = diff.Values[t]
		x[i] = make([]float64, 2+maxLag)
		x[i][0] = 1
		x[i][1] = s.Values[t]
		for j := 1; j <= maxLag; j++ {
			x[i][1+j] = diff.Values[t-j]
		}
	}

	coeffs, se := OLS(x, y)
	if coeffs == nil || se == nil || len(coeffs) < 2 || len(se) < 2 || se[1] == 0 {
		return nil
	}

	tStat := coeffs[1] / se[1]
	pValue := mackinnonPValue(tStat)

	return &ADFResult{
		Statistic:    tStat,
		PValue:       pValue,
		Lags:         maxLag,
		NObs:         nObs,
		IsStationary: pValue < 0.05,
	}
}

// mackinnonPValue approximates the ADF p-value for the constant-only
// regression after MacKinnon (1994).
func mackinnonPValue(stat float64) float64 {
	switch {
	case stat < -3.96:
		return 0.001
	case stat < -3.43:
		return 0.01
	case stat < -2.86:
		return 0.05
	case stat < -2.57:
		return 0.10
	case stat < -1.94:
		return 0.25
	case stat < -1.62:
		return 0.50
	default:
		return math.Min(0.5+(stat+1.62)*0.25, 0.99)
	}
}
