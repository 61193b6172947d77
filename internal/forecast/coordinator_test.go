package forecast

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestCoordinatorAddModelDuplicate(t *testing.T) {
	c := NewCoordinator(quietLogger())
	original := &stubModel{name: "m", level: 1}
	require.NoError(t, c.AddModel(original))

	err := c.AddModel(&stubModel{name: "m", level: 99})
	assert.ErrorIs(t, err, ErrDuplicateModel)

	// The original registration is untouched.
	assert.Equal(t, []string{"m"}, c.ModelNames())
	require.NoError(t, original.Fit(demandSeries(12)))
	result, err := c.models["m"].Predict(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Points[0].Forecast)
}

func TestCoordinatorAddModelValidation(t *testing.T) {
	c := NewCoordinator(quietLogger())
	assert.ErrorIs(t, c.AddModel(nil), ErrInvalidArgument)
	assert.ErrorIs(t, c.AddModel(&stubModel{name: ""}), ErrInvalidArgument)
}

func TestCoordinatorFitAllContinuesOnFailure(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(&stubModel{name: "good1", level: 10}))
	require.NoError(t, c.AddModel(&stubModel{name: "bad", fitErr: ErrFit}))
	require.NoError(t, c.AddModel(&stubModel{name: "good2", level: 20}))

	failures := c.FitAll(demandSeries(24))
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].ModelName)
	assert.ErrorIs(t, failures[0].Err, ErrFit)

	statuses := c.Status()
	require.Len(t, statuses, 3)
	assert.True(t, statuses[0].Fitted)
	assert.False(t, statuses[1].Fitted)
	assert.NotEmpty(t, statuses[1].FitError)
	assert.True(t, statuses[2].Fitted)
}

func TestCoordinatorPredictAllSkipsUnfitted(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(&stubModel{name: "fitted", level: 10}))
	require.NoError(t, c.AddModel(&stubModel{name: "broken", fitErr: ErrFit}))

	c.FitAll(demandSeries(24))
	predictions, failures := c.PredictAll(4)

	assert.Empty(t, failures)
	require.Len(t, predictions, 1)
	assert.Contains(t, predictions, "fitted")
	assert.Equal(t, 4, predictions["fitted"].Horizon())
}

func TestCoordinatorPredictAllRecordsFailures(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(&stubModel{name: "ok", level: 10}))
	require.NoError(t, c.AddModel(&stubModel{name: "flaky", level: 10, predErr: ErrNoPredictions}))

	c.FitAll(demandSeries(24))
	predictions, failures := c.PredictAll(3)

	require.Len(t, predictions, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, "flaky", failures[0].ModelName)

	statuses := c.Status()
	assert.True(t, statuses[0].Predicted)
	assert.False(t, statuses[1].Predicted)
	assert.NotEmpty(t, statuses[1].PredictErr)
}

func TestCoordinatorPredictAllInvalidHorizon(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(&stubModel{name: "m", level: 1}))
	c.FitAll(demandSeries(24))

	_, failures := c.PredictAll(0)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, ErrInvalidArgument)
}

func TestCoordinatorEnsemblePredictions(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(&stubModel{name: "low", level: 100}))
	require.NoError(t, c.AddModel(&stubModel{name: "high", level: 300}))

	c.FitAll(demandSeries(24))

	_, err := c.EnsemblePredictions(CombineMean)
	assert.ErrorIs(t, err, ErrNoPredictions)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, failures := c.PredictAll(3)
	require.Empty(t, failures)

	combined, err := c.EnsemblePredictions(CombineMean)
	require.NoError(t, err)
	assert.Equal(t, "ensemble_mean", combined.ModelName)
	for _, p := range combined.Points {
		assert.InDelta(t, 200.0, p.Forecast, 1e-9)
	}

	_, err = c.EnsemblePredictions("mode")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCoordinatorModelComparisonOrder(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(&stubModel{name: "zeta", level: 10}))
	require.NoError(t, c.AddModel(&stubModel{name: "alpha", level: 11}))

	c.FitAll(demandSeries(24))
	_, failures := c.PredictAll(3)
	require.Empty(t, failures)

	records, err := c.ModelComparison([]float64{10, 10, 10})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "zeta", records[0].ModelName)
	assert.Equal(t, "alpha", records[1].ModelName)
	assert.Equal(t, 0.0, records[0].MAE)
	assert.InDelta(t, 1.0, records[1].MAE, 1e-9)
}

func TestCoordinatorModelComparisonLengthMismatch(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(&stubModel{name: "m", level: 10}))
	c.FitAll(demandSeries(24))
	c.PredictAll(3)

	_, err := c.ModelComparison([]float64{10})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCoordinatorRemoveModel(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(&stubModel{name: "a", level: 1}))
	require.NoError(t, c.AddModel(&stubModel{name: "b", level: 2}))

	c.FitAll(demandSeries(24))
	c.PredictAll(2)

	c.RemoveModel("a")
	assert.Equal(t, []string{"b"}, c.ModelNames())
	assert.NotContains(t, c.Predictions(), "a")

	// Removing an unknown name is a no-op.
	c.RemoveModel("unknown")
	assert.Equal(t, []string{"b"}, c.ModelNames())
}

func TestCoordinatorSummary(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(&stubModel{name: "ok", level: 1}))
	require.NoError(t, c.AddModel(&stubModel{name: "bad", fitErr: ErrFit}))

	c.FitAll(demandSeries(24))
	c.PredictAll(2)

	summary := c.Summary()
	assert.Equal(t, 2, summary["total_models"])
	assert.Equal(t, 1, summary["fitted_models"])
	assert.Equal(t, 1, summary["models_with_predictions"])
}

func TestCoordinatorFullPipeline(t *testing.T) {
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(NewARIMAModel("arima", ARIMAOrder{P: 1, D: 1, Q: 1})))
	require.NoError(t, c.AddModel(NewDecompositionModel("decomposition", SeasonalityConfig{Yearly: true})))
	require.NoError(t, c.AddModel(NewRegressionModel("regression", RegressionConfig{})))

	series := demandSeries(48)
	failures := c.FitAll(series)
	assert.Empty(t, failures)

	predictions, predictFailures := c.PredictAll(12)
	assert.Empty(t, predictFailures)
	require.Len(t, predictions, 3)
	for name, result := range predictions {
		assert.Equal(t, name, result.ModelName)
		assertResultShape(t, result, 12)
	}

	combined, err := c.EnsemblePredictions(CombineMedian)
	require.NoError(t, err)
	assertResultShape(t, combined, 12)
}

func TestCoordinatorFitAllWithShortSeries(t *testing.T) {
	// The decomposition model fits a 4-point series; ARIMA and regression
	// cannot. The batch records their failures and carries on.
	c := NewCoordinator(quietLogger())
	require.NoError(t, c.AddModel(NewARIMAModel("arima", ARIMAOrder{P: 1, D: 1, Q: 1})))
	require.NoError(t, c.AddModel(NewDecompositionModel("decomposition", SeasonalityConfig{Yearly: true})))
	require.NoError(t, c.AddModel(NewRegressionModel("regression", RegressionConfig{})))

	failures := c.FitAll(demandSeries(4))
	require.Len(t, failures, 2)
	for _, f := range failures {
		assert.ErrorIs(t, f.Err, ErrFit)
	}

	predictions, _ := c.PredictAll(3)
	require.Len(t, predictions, 1)
	assert.Contains(t, predictions, "decomposition")
}
