package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestACFLagZeroIsOne(t *testing.T) {
	s := FromValues([]float64{1, 3, 2, 5, 4, 6, 5, 8}, monthlyStart())
	acf := ACF(s, 3)

	require.Len(t, acf, 4)
	assert.InDelta(t, 1.0, acf[0], 1e-9)
	for _, v := range acf[1:] {
		assert.LessOrEqual(t, math.Abs(v), 1.0)
	}
}

func TestACFConstantSeries(t *testing.T) {
	s := FromValues([]float64{5, 5, 5, 5}, monthlyStart())
	assert.Nil(t, ACF(s, 2))
}

func TestYuleWalkerAR1(t *testing.T) {
	// An AR(1) process phi=0.7: theoretical ACF is phi^k.
	acf := []float64{1, 0.7, 0.49, 0.343}
	phi := YuleWalker(acf, 1)

	require.Len(t, phi, 1)
	assert.InDelta(t, 0.7, phi[0], 1e-9)
}

func TestYuleWalkerAR2ConsistentWithACF(t *testing.T) {
	// For the ACF of a pure AR(1), fitting AR(2) should give a near-zero
	// second coefficient.
	acf := []float64{1, 0.5, 0.25, 0.125}
	phi := YuleWalker(acf, 2)

	require.Len(t, phi, 2)
	assert.InDelta(t, 0.5, phi[0], 1e-6)
	assert.InDelta(t, 0.0, phi[1], 1e-6)
}

func TestOLSRecoversLine(t *testing.T) {
	// y = 2 + 3x with an intercept column.
	var x [][]float64
	var y []float64
	for i := 0; i < 10; i++ {
		xi := float64(i)
		x = append(x, []float64{1, xi})
		y = append(y, 2+3*xi)
	}

	coeffs, stdErrs := OLS(x, y)
	require.Len(t, coeffs, 2)
	assert.InDelta(t, 2.0, coeffs[0], 1e-8)
	assert.InDelta(t, 3.0, coeffs[1], 1e-8)
	require.Len(t, stdErrs, 2)
	assert.InDelta(t, 0.0, stdErrs[0], 1e-6)
}

func TestOLSSingular(t *testing.T) {
	// Two identical columns make X'X singular.
	x := [][]float64{{1, 1}, {2, 2}, {3, 3}}
	y := []float64{1, 2, 3}

	coeffs, _ := OLS(x, y)
	assert.Nil(t, coeffs)
}

func TestInvertMatrixIdentity(t *testing.T) {
	m := [][]float64{{4, 7}, {2, 6}}
	inv := InvertMatrix(m)
	require.NotNil(t, inv)

	// m * inv should be the identity.
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			sum := 0.0
			for k := 0; k < 2; k++ {
				sum += m[i][k] * inv[k][j]
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, sum, 1e-9)
		}
	}
}

func TestInvertMatrixSingular(t *testing.T) {
	m := [][]float64{{1, 2}, {2, 4}}
	assert.Nil(t, InvertMatrix(m))
}

func TestNormalQuantile(t *testing.T) {
	assert.InDelta(t, 1.96, NormalQuantile(0.975), 0.01)
	assert.InDelta(t, 1.645, NormalQuantile(0.95), 0.01)
	assert.InDelta(t, -1.96, NormalQuantile(0.025), 0.01)
	assert.Equal(t, 0.0, NormalQuantile(0))
	assert.Equal(t, 0.0, NormalQuantile(1))
}

func TestADFTrendedVsStationary(t *testing.T) {
	// A strongly trended series should not look stationary.
	trended := make([]float64, 60)
	for i := range trended {
		trended[i] = float64(i) * 10
	}
	resTrend := ADF(FromValues(trended, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), 0)
	if resTrend != nil {
		assert.False(t, resTrend.IsStationary)
	}

	// White noise around a constant mean should be stationary.
	noise := []float64{
		0.49, -0.41, 1.22, 0.31, -0.9, 0.44, -0.22, 0.11, -1.31, 0.72,
		0.87, -0.55, 0.05, -0.12, 1.01, -0.77, 0.33, -0.44, 0.91, -1.02,
		0.15, 0.64, -0.38, 0.27, -0.81, 0.52, -0.19, 1.11, -0.63, 0.08,
		-0.95, 0.41, 0.77, -0.29, 0.18, -1.15, 0.59, 0.02, -0.48, 0.84,
	}
	resNoise := ADF(FromValues(noise, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), 0)
	require.NotNil(t, resNoise)
	assert.True(t, resNoise.IsStationary)
	assert.Less(t, resNoise.PValue, 0.05)
}
