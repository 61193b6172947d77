package forecast

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seidrlabs/demandcast/internal/evaluation"
	"github.com/seidrlabs/demandcast/internal/models"
	"github.com/seidrlabs/demandcast/internal/timeseries"
)

// ModelStatus is the queryable per-model outcome of the last batch
// operations. The coordinator never suppresses a model's failure silently:
// fit and predict errors are recorded here so callers can decide whether to
// exclude the model from ensembling.
type ModelStatus struct {
	Name       string `json:"name"`
	Fitted     bool   `json:"fitted"`
	FitError   string `json:"fit_error,omitempty"`
	Predicted  bool   `json:"predicted"`
	PredictErr string `json:"predict_error,omitempty"`
}

// BatchError attaches a model identity to an error raised during a batch
// operation.
type BatchError struct {
	ModelName string
	Err       error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("model %s: %v", e.ModelName, e.Err)
}

func (e BatchError) Unwrap() error { return e.Err }

// Coordinator owns an insertion-ordered registry of forecasting models and
// drives batch fit, batch predict and ensemble aggregation across them. It
// depends only on the Model interface, never on concrete variants.
//
// The registry is single-writer: AddModel and RemoveModel must not run
// concurrently with FitAll or PredictAll. Each Coordinator owns its
// registry; separate Coordinators share nothing.
type Coordinator struct {
	order       []string
	models      map[string]Model
	predictions map[string]*models.ForecastResult
	status      map[string]*ModelStatus
	logger      *logrus.Logger
}

// NewCoordinator creates an empty coordinator. A nil logger is replaced
// with the logrus standard logger.
func NewCoordinator(logger *logrus.Logger) *Coordinator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Coordinator{
		models:      make(map[string]Model),
		predictions: make(map[string]*models.ForecastResult),
		status:      make(map[string]*ModelStatus),
		logger:      logger,
	}
}

// AddModel registers a model under its identity. Registering a name twice
// fails with ErrDuplicateModel and leaves the original untouched.
func (c *Coordinator) AddModel(m Model) error {
	if m == nil {
		return fmt.Errorf("%w: model is nil", ErrInvalidArgument)
	}
	name := m.Name()
	if name == "" {
		return fmt.Errorf("%w: model has empty name", ErrInvalidArgument)
	}
	if _, exists := c.models[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, name)
	}
	c.models[name] = m
	c.order = append(c.order, name)
	c.status[name] = &ModelStatus{Name: name}
	return nil
}

// RemoveModel drops a model, its stored prediction and its status. Removing
// an unknown name is a no-op.
func (c *Coordinator) RemoveModel(name string) {
	if _, exists := c.models[name]; !exists {
		return
	}
	delete(c.models, name)
	delete(c.predictions, name)
	delete(c.status, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// ModelNames returns the registered identities in registration order.
func (c *Coordinator) ModelNames() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Status returns the per-model status records in registration order.
func (c *Coordinator) Status() []ModelStatus {
	out := make([]ModelStatus, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, *c.status[name])
	}
	return out
}

// FitAll fits every registered model on the series in registration order.
// A model's fit failure is recorded against its identity and the batch
// continues: one bad configuration must not block the others. The returned
// errors carry the failing models' identities.
func (c *Coordinator) FitAll(series *timeseries.Series) []BatchError {
	var failures []BatchError
	for _, name := range c.order {
		m := c.models[name]
		start := time.Now()
		err := m.Fit(series)
		st := c.status[name]
		st.Predicted = false
		st.PredictErr = ""
		delete(c.predictions, name)
		if err != nil {
			st.Fitted = false
			st.FitError = err.Error()
			failures = append(failures, BatchError{ModelName: name, Err: err})
			c.logger.WithFields(logrus.Fields{
				"model": name,
				"error": err,
			}).Warn("Model fit failed")
			continue
		}
		st.Fitted = true
		st.FitError = ""
		c.logger.WithFields(logrus.Fields{
			"model":       name,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Model fitted")
	}
	return failures
}

// PredictAll generates forecasts from every successfully fitted model in
// registration order, skipping models that failed to fit. Prediction
// failures go to the side-channel error list instead of aborting the batch.
// The returned map is keyed by model identity; iterate with ModelNames for
// deterministic order.
func (c *Coordinator) PredictAll(horizon int) (map[string]*models.ForecastResult, []BatchError) {
	if err := checkHorizon(horizon); err != nil {
		return nil, []BatchError{{Err: err}}
	}

	c.predictions = make(map[string]*models.ForecastResult)
	var failures []BatchError
	for _, name := range c.order {
		m := c.models[name]
		st := c.status[name]
		if !m.Fitted() {
			st.Predicted = false
			c.logger.WithField("model", name).Debug("Skipping unfitted model")
			continue
		}
		result, err := m.Predict(horizon)
		if err != nil {
			st.Predicted = false
			st.PredictErr = err.Error()
			failures = append(failures, BatchError{ModelName: name, Err: err})
			c.logger.WithFields(logrus.Fields{
				"model": name,
				"error": err,
			}).Warn("Model predict failed")
			continue
		}
		st.Predicted = true
		st.PredictErr = ""
		c.predictions[name] = result
	}

	out := make(map[string]*models.ForecastResult, len(c.predictions))
	for k, v := range c.predictions {
		out[k] = v
	}
	return out, failures
}

// Predictions returns the stored forecasts from the last PredictAll run.
func (c *Coordinator) Predictions() map[string]*models.ForecastResult {
	out := make(map[string]*models.ForecastResult, len(c.predictions))
	for k, v := range c.predictions {
		out[k] = v
	}
	return out
}

// EnsemblePredictions combines the stored forecasts with the given method
// ("mean" or "median"), applying the combiner to points, lower bounds and
// upper bounds independently. Fails with an argument error when no model
// has a stored result or the method is unknown.
func (c *Coordinator) EnsemblePredictions(method string) (*models.ForecastResult, error) {
	if err := validateCombiner(method); err != nil {
		return nil, err
	}
	if len(c.predictions) == 0 {
		return nil, fmt.Errorf("%w: run PredictAll first", ErrNoPredictions)
	}

	results := make([]*models.ForecastResult, 0, len(c.predictions))
	for _, name := range c.order {
		if r, ok := c.predictions[name]; ok {
			results = append(results, r)
		}
	}
	return CombineResults("ensemble_"+method, method, results)
}

// ModelComparison evaluates every stored forecast against the supplied
// actuals, one record per model in registration order.
func (c *Coordinator) ModelComparison(actual []float64) ([]*models.EvaluationRecord, error) {
	if len(c.predictions) == 0 {
		return nil, fmt.Errorf("%w: run PredictAll first", ErrNoPredictions)
	}

	named := make([]evaluation.NamedSeries, 0, len(c.predictions))
	for _, name := range c.order {
		if r, ok := c.predictions[name]; ok {
			named = append(named, evaluation.NamedSeries{Name: name, Predicted: r.PointForecasts()})
		}
	}
	records, err := evaluation.CompareModels(actual, named)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return records, nil
}

// Summary reports aggregate registry state for dashboards.
func (c *Coordinator) Summary() map[string]any {
	fitted := 0
	for _, name := range c.order {
		if c.models[name].Fitted() {
			fitted++
		}
	}
	return map[string]any{
		"total_models":            len(c.order),
		"fitted_models":           fitted,
		"models_with_predictions": len(c.predictions),
		"model_names":             c.ModelNames(),
	}
}

// Infos returns every registered model's metadata in registration order.
func (c *Coordinator) Infos() []models.ModelInfo {
	out := make([]models.ModelInfo, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.models[name].Info())
	}
	return out
}
