package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatePerfectForecast(t *testing.T) {
	record, err := Evaluate([]float64{10, 20, 30}, []float64{10, 20, 30})
	require.NoError(t, err)

	assert.Equal(t, 0.0, record.MAE)
	assert.Equal(t, 0.0, record.MSE)
	assert.Equal(t, 0.0, record.RMSE)
	assert.Equal(t, 0.0, record.MAPE)
	assert.Equal(t, 0, record.MAPEExcluded)
	assert.Equal(t, 0.0, record.Bias)
	assert.Equal(t, 1.0, record.R2)
	assert.True(t, math.IsNaN(record.Coverage))
}

func TestEvaluateMAPEExcludesZeroActuals(t *testing.T) {
	record, err := Evaluate([]float64{0, 10}, []float64{5, 15})
	require.NoError(t, err)

	// Only the second period counts: |10-15|/10 = 50%.
	assert.InDelta(t, 50.0, record.MAPE, 1e-9)
	assert.Equal(t, 1, record.MAPEExcluded)
}

func TestEvaluateAllZeroActuals(t *testing.T) {
	record, err := Evaluate([]float64{0, 0}, []float64{1, 2})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(record.MAPE))
	assert.Equal(t, 2, record.MAPEExcluded)
}

func TestEvaluateConstantActualsR2NaN(t *testing.T) {
	record, err := Evaluate([]float64{5, 5, 5}, []float64{4, 5, 6})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(record.R2))
}

func TestEvaluateBias(t *testing.T) {
	record, err := Evaluate([]float64{10, 10}, []float64{12, 14})
	require.NoError(t, err)

	// Positive bias means over-forecasting.
	assert.InDelta(t, 3.0, record.Bias, 1e-9)
	assert.InDelta(t, 3.0, record.MAE, 1e-9)
	assert.InDelta(t, 10.0, record.MSE, 1e-9)
	assert.InDelta(t, math.Sqrt(10.0), record.RMSE, 1e-9)
}

func TestEvaluateLengthMismatch(t *testing.T) {
	_, err := Evaluate([]float64{1, 2, 3}, []float64{1, 2})
	assert.Error(t, err)

	_, err = Evaluate(nil, nil)
	assert.Error(t, err)
}

func TestEvaluateWithBoundsCoverage(t *testing.T) {
	actual := []float64{10, 20, 30, 40}
	predicted := []float64{11, 19, 31, 39}
	lower := []float64{5, 15, 32, 35}
	upper := []float64{15, 25, 35, 45}

	record, err := EvaluateWithBounds(actual, predicted, lower, upper)
	require.NoError(t, err)

	// 30 falls below its lower bound of 32; the rest are inside.
	assert.InDelta(t, 0.75, record.Coverage, 1e-9)
}

func TestCoverageBoundaryInclusive(t *testing.T) {
	cov, err := Coverage([]float64{10}, []float64{10}, []float64{10})
	require.NoError(t, err)
	assert.Equal(t, 1.0, cov)
}

func TestCoverageMismatch(t *testing.T) {
	_, err := Coverage([]float64{1, 2}, []float64{0}, []float64{3, 4})
	assert.Error(t, err)
}

func TestSMAPESkipsZeroDenominators(t *testing.T) {
	record, err := Evaluate([]float64{0, 10}, []float64{0, 10})
	require.NoError(t, err)

	// First period has a zero denominator and is skipped; the second is exact.
	assert.InDelta(t, 0.0, record.SMAPE, 1e-9)
}

func TestCompareModelsPreservesOrder(t *testing.T) {
	actual := []float64{10, 20, 30}
	records, err := CompareModels(actual, []NamedSeries{
		{Name: "zeta", Predicted: []float64{11, 21, 31}},
		{Name: "alpha", Predicted: []float64{10, 20, 30}},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "zeta", records[0].ModelName)
	assert.Equal(t, "alpha", records[1].ModelName)
	assert.InDelta(t, 1.0, records[0].MAE, 1e-9)
	assert.Equal(t, 0.0, records[1].MAE)
}

func TestCompareModelsPropagatesMismatch(t *testing.T) {
	_, err := CompareModels([]float64{1, 2}, []NamedSeries{
		{Name: "bad", Predicted: []float64{1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}
