package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/seidrlabs/demandcast/internal/cache"
	"github.com/seidrlabs/demandcast/internal/config"
	"github.com/seidrlabs/demandcast/internal/database"
	"github.com/seidrlabs/demandcast/internal/dataloader"
	"github.com/seidrlabs/demandcast/internal/exporter"
	"github.com/seidrlabs/demandcast/internal/forecast"
	"github.com/seidrlabs/demandcast/internal/models"
	"github.com/seidrlabs/demandcast/internal/monitor"
	"github.com/seidrlabs/demandcast/internal/timeseries"
)

// ForecastHandler runs the full forecasting pipeline over HTTP. It keeps
// the coordinator of the most recent run in memory so follow-up calls
// (model status, export, comparison against actuals) work without
// refitting.
type ForecastHandler struct {
	cfg    *config.Config
	repo   *database.ForecastRepository
	cache  *cache.RedisForecastCache
	perf   *monitor.PerformanceMonitor
	logger *logrus.Logger

	mu          sync.RWMutex
	coordinator *forecast.Coordinator
	lastRun     *models.ForecastRun
	predictions map[string]*models.ForecastResult
	ensemble    *models.ForecastResult
}

// NewForecastHandler creates the handler. repo and resultCache may be nil
// when the corresponding store is disabled.
func NewForecastHandler(cfg *config.Config, repo *database.ForecastRepository, resultCache *cache.RedisForecastCache, perf *monitor.PerformanceMonitor, logger *logrus.Logger) *ForecastHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if perf == nil {
		perf = monitor.NewPerformanceMonitor(0, logger)
	}
	return &ForecastHandler{
		cfg:    cfg,
		repo:   repo,
		cache:  resultCache,
		perf:   perf,
		logger: logger,
	}
}

type SeriesPointRequest struct {
	Date  string  `json:"date" binding:"required"`
	Value float64 `json:"value"`
}

type RunForecastRequest struct {
	Series         []SeriesPointRequest `json:"series"`
	UseSample      bool                 `json:"use_sample"`
	Horizon        int                  `json:"horizon"`
	Models         []string             `json:"models"`
	EnsembleMethod string               `json:"ensemble_method"`
	ProductID      string               `json:"product_id"`
	ClientID       string               `json:"client_id"`
}

type RunForecastResponse struct {
	RunID         string                            `json:"run_id"`
	Horizon       int                               `json:"horizon"`
	Predictions   map[string]*models.ForecastResult `json:"predictions"`
	Ensemble      *models.ForecastResult            `json:"ensemble,omitempty"`
	Statuses      []forecast.ModelStatus            `json:"statuses"`
	FitErrors     []string                          `json:"fit_errors,omitempty"`
	PredictErrors []string                          `json:"predict_errors,omitempty"`
}

// RunForecast fits every requested model on the submitted series and
// forecasts the requested horizon. Individual model failures are reported
// in the response, not treated as request failures.
func (h *ForecastHandler) RunForecast(c *gin.Context) {
	var req RunForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	series, err := h.buildSeries(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	horizon := req.Horizon
	if horizon == 0 {
		horizon = h.cfg.Forecast.DefaultHorizon
	}
	if horizon <= 0 || horizon > h.cfg.Forecast.MaxHorizon {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("horizon must be between 1 and %d", h.cfg.Forecast.MaxHorizon),
		})
		return
	}

	coordinator, err := h.buildCoordinator(req.Models, req.EnsembleMethod)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var fitErrs []forecast.BatchError
	_ = h.perf.Track(ctx, "fit_all", func() error {
		fitErrs = coordinator.FitAll(series)
		return nil
	})

	var (
		predictions map[string]*models.ForecastResult
		predictErrs []forecast.BatchError
	)
	_ = h.perf.Track(ctx, "predict_all", func() error {
		predictions, predictErrs = coordinator.PredictAll(horizon)
		return nil
	})

	if len(predictions) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "no model produced a forecast",
			"fit_errors": batchErrorStrings(fitErrs),
		})
		return
	}

	run := &models.ForecastRun{
		ID:          uuid.New().String(),
		ProductID:   req.ProductID,
		ClientID:    req.ClientID,
		Horizon:     horizon,
		SeriesStart: series.Timestamps[0],
		SeriesEnd:   series.LastTimestamp(),
		SeriesLen:   series.Len(),
		CreatedAt:   time.Now(),
	}

	if h.repo != nil {
		saved, err := h.repo.CreateRun(ctx, run)
		if err != nil {
			h.logger.WithError(err).Warn("failed to persist forecast run")
		} else {
			run = saved
			for _, result := range predictions {
				if err := h.repo.SaveForecast(ctx, run.ID, result); err != nil {
					h.logger.WithError(err).WithField("model", result.ModelName).Warn("failed to persist forecast")
				}
			}
		}
	}
	if h.cache != nil {
		for _, result := range predictions {
			h.cache.Set(ctx, run.ID, result)
		}
	}

	var ensembleResult *models.ForecastResult
	if combined, err := coordinator.EnsemblePredictions(h.ensembleMethod(req.EnsembleMethod)); err == nil {
		ensembleResult = combined
	}

	h.mu.Lock()
	h.coordinator = coordinator
	h.lastRun = run
	h.predictions = predictions
	h.ensemble = ensembleResult
	h.mu.Unlock()

	c.JSON(http.StatusOK, RunForecastResponse{
		RunID:         run.ID,
		Horizon:       horizon,
		Predictions:   predictions,
		Ensemble:      ensembleResult,
		Statuses:      coordinator.Status(),
		FitErrors:     batchErrorStrings(fitErrs),
		PredictErrors: batchErrorStrings(predictErrs),
	})
}

type CompareRequest struct {
	Series         []SeriesPointRequest `json:"series"`
	UseSample      bool                 `json:"use_sample"`
	Holdout        int                  `json:"holdout"`
	Models         []string             `json:"models"`
	EnsembleMethod string               `json:"ensemble_method"`
}

type CompareResponse struct {
	Holdout     int                        `json:"holdout"`
	Records     []*models.EvaluationRecord `json:"records"`
	Summary     string                     `json:"summary"`
	FitErrors   []string                   `json:"fit_errors,omitempty"`
	TrainLength int                        `json:"train_length"`
}

// CompareModels holds out the final periods of the series, fits on the
// rest, forecasts the holdout and scores every model against the held-out
// actuals.
func (h *ForecastHandler) CompareModels(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	series, err := h.buildSeries(RunForecastRequest{Series: req.Series, UseSample: req.UseSample})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	holdout := req.Holdout
	if holdout == 0 {
		holdout = 6
	}
	if holdout <= 0 || holdout >= series.Len() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("holdout must be between 1 and %d", series.Len()-1),
		})
		return
	}

	trainLen := series.Len() - holdout
	train, err := timeseries.New(series.Timestamps[:trainLen], series.Values[:trainLen])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	train.Name = series.Name
	actual := series.Values[trainLen:]

	coordinator, err := h.buildCoordinator(req.Models, req.EnsembleMethod)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fitErrs := coordinator.FitAll(train)
	if _, predictErrs := coordinator.PredictAll(holdout); len(predictErrs) > 0 {
		for _, e := range predictErrs {
			h.logger.WithError(e.Err).WithField("model", e.ModelName).Warn("holdout prediction failed")
		}
	}

	records, err := coordinator.ModelComparison(actual)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, forecast.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error(), "fit_errors": batchErrorStrings(fitErrs)})
		return
	}

	c.JSON(http.StatusOK, CompareResponse{
		Holdout:     holdout,
		Records:     records,
		Summary:     exporter.Summary(records),
		FitErrors:   batchErrorStrings(fitErrs),
		TrainLength: trainLen,
	})
}

// GetModels returns status and configuration of the models from the most
// recent run.
func (h *ForecastHandler) GetModels(c *gin.Context) {
	h.mu.RLock()
	coordinator := h.coordinator
	h.mu.RUnlock()

	if coordinator == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no forecast has been run yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"statuses": coordinator.Status(),
		"models":   coordinator.Infos(),
		"summary":  coordinator.Summary(),
	})
}

// ExportForecast streams the last run's forecast for one model (or the
// side-by-side comparison of all models) as CSV or JSON.
func (h *ForecastHandler) ExportForecast(c *gin.Context) {
	modelName := c.DefaultQuery("model", "comparison")
	format := c.DefaultQuery("format", "csv")

	h.mu.RLock()
	coordinator := h.coordinator
	predictions := h.predictions
	ensembleResult := h.ensemble
	h.mu.RUnlock()

	if predictions == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no forecast has been run yet"})
		return
	}

	if modelName == "comparison" {
		if format != "csv" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "comparison export supports csv only"})
			return
		}
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="forecast_comparison.csv"`)
		if err := exporter.WriteComparisonCSV(c.Writer, coordinator.ModelNames(), predictions); err != nil {
			h.logger.WithError(err).Error("comparison export failed")
		}
		return
	}

	result, ok := predictions[modelName]
	if !ok && ensembleResult != nil && modelName == ensembleResult.ModelName {
		result, ok = ensembleResult, true
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no forecast for model %q", modelName)})
		return
	}

	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", modelName+"_forecast.csv"))
		if err := exporter.WriteForecastCSV(c.Writer, result); err != nil {
			h.logger.WithError(err).Error("forecast export failed")
		}
	case "json":
		c.JSON(http.StatusOK, result)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or json"})
	}
}

// ListRuns returns persisted forecast runs, newest first.
func (h *ForecastHandler) ListRuns(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run persistence is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list forecast runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun returns one persisted run together with a model's stored
// forecast when ?model= is given. Cached forecasts are served without
// touching Postgres.
func (h *ForecastHandler) GetRun(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run persistence is disabled"})
		return
	}

	runID := c.Param("id")
	ctx := c.Request.Context()

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("forecast run %s not found", runID)})
		return
	}

	response := gin.H{"run": run}
	if modelName := c.Query("model"); modelName != "" {
		var result *models.ForecastResult
		if h.cache != nil {
			if cached, ok := h.cache.Get(ctx, runID, modelName); ok {
				result = cached
			}
		}
		if result == nil {
			result, err = h.repo.GetForecast(ctx, runID, modelName)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			if h.cache != nil {
				h.cache.Set(ctx, runID, result)
			}
		}
		response["forecast"] = result
	}

	c.JSON(http.StatusOK, response)
}

var requestDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01"}

func (h *ForecastHandler) buildSeries(req RunForecastRequest) (*timeseries.Series, error) {
	var records []models.DemandRecord

	switch {
	case req.UseSample:
		records = dataloader.GenerateSample(dataloader.DefaultSampleConfig())
	case len(req.Series) > 0:
		records = make([]models.DemandRecord, 0, len(req.Series))
		for _, p := range req.Series {
			date, err := parseRequestDate(p.Date)
			if err != nil {
				return nil, err
			}
			records = append(records, models.DemandRecord{
				Date:      date,
				Quantity:  decimal.NewFromFloat(p.Value),
				ProductID: req.ProductID,
				ClientID:  req.ClientID,
			})
		}
	default:
		return nil, fmt.Errorf("either series or use_sample must be provided")
	}

	if err := dataloader.Validate(records); err != nil {
		return nil, err
	}
	records = dataloader.AggregateMonthly(records)

	series, err := dataloader.BuildSeries(records)
	if err != nil {
		return nil, err
	}
	if series.Len() < h.cfg.Forecast.MinSeriesLength {
		return nil, fmt.Errorf("series too short: need at least %d periods, got %d",
			h.cfg.Forecast.MinSeriesLength, series.Len())
	}
	return series, nil
}

var knownModels = []string{"arima", "decomposition", "regression"}

func (h *ForecastHandler) buildCoordinator(names []string, ensembleMethod string) (*forecast.Coordinator, error) {
	if len(names) == 0 {
		names = append(append([]string{}, knownModels...), "ensemble")
	}

	coordinator := forecast.NewCoordinator(h.logger)
	for _, name := range names {
		model, err := h.buildModel(name, ensembleMethod)
		if err != nil {
			return nil, err
		}
		if err := coordinator.AddModel(model); err != nil {
			return nil, err
		}
	}
	return coordinator, nil
}

func (h *ForecastHandler) buildModel(name, ensembleMethod string) (forecast.Model, error) {
	fc := h.cfg.Forecast
	switch name {
	case "arima":
		order := forecast.ARIMAOrder{P: 1, D: 1, Q: 1}
		if len(fc.ARIMAOrder) == 3 {
			order = forecast.ARIMAOrder{P: fc.ARIMAOrder[0], D: fc.ARIMAOrder[1], Q: fc.ARIMAOrder[2]}
		}
		return forecast.NewARIMAModel("arima", order), nil
	case "decomposition":
		return forecast.NewDecompositionModel("decomposition", forecast.SeasonalityConfig{
			Yearly: fc.YearlySeasonal,
			Weekly: fc.WeeklySeasonal,
			Daily:  fc.DailySeasonal,
		}), nil
	case "regression":
		return forecast.NewRegressionModel("regression", forecast.RegressionConfig{
			Estimator: forecast.EstimatorRidge,
			Lambda:    fc.RidgeLambda,
		}), nil
	case "ensemble":
		sub := make([]forecast.Model, 0, len(knownModels))
		for _, n := range knownModels {
			m, err := h.buildModel(n, ensembleMethod)
			if err != nil {
				return nil, err
			}
			sub = append(sub, m)
		}
		return forecast.NewEnsembleModel("ensemble", h.ensembleMethod(ensembleMethod), sub...), nil
	default:
		return nil, fmt.Errorf("unknown model %q (known: arima, decomposition, regression, ensemble)", name)
	}
}

func (h *ForecastHandler) ensembleMethod(requested string) string {
	if requested != "" {
		return requested
	}
	return h.cfg.Forecast.EnsembleMethod
}

func parseRequestDate(s string) (time.Time, error) {
	for _, layout := range requestDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func batchErrorStrings(errs []forecast.BatchError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
