package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DemandRecord represents one observed demand value at the loading boundary.
// Quantities are parsed as decimals to survive round-tripping through CSV;
// the forecasting core works on float64.
type DemandRecord struct {
	Date      time.Time       `json:"date" db:"date"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	ProductID string          `json:"product_id,omitempty" db:"product_id"`
	ClientID  string          `json:"client_id,omitempty" db:"client_id"`
}

// ForecastPoint is a single forecasted period.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Forecast  float64   `json:"forecast"`
	Lower     float64   `json:"lower_bound"`
	Upper     float64   `json:"upper_bound"`
}

// ForecastResult is the fixed-shape output of every model: one point per
// requested horizon period, with lower <= forecast <= upper throughout.
type ForecastResult struct {
	ModelName string          `json:"model_name"`
	Points    []ForecastPoint `json:"points"`
	CreatedAt time.Time       `json:"created_at"`
}

// Horizon returns the number of forecasted periods.
func (r *ForecastResult) Horizon() int {
	return len(r.Points)
}

// PointForecasts returns the point forecasts as a slice.
func (r *ForecastResult) PointForecasts() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Forecast
	}
	return out
}

// Bounds returns the lower and upper bounds as slices.
func (r *ForecastResult) Bounds() (lower, upper []float64) {
	lower = make([]float64, len(r.Points))
	upper = make([]float64, len(r.Points))
	for i, p := range r.Points {
		lower[i] = p.Lower
		upper[i] = p.Upper
	}
	return lower, upper
}

// EvaluationRecord holds the accuracy metrics for one model's forecast
// against held-out actuals. Records are produced fresh per evaluation call
// and never mutated afterwards.
type EvaluationRecord struct {
	ModelName string  `json:"model_name"`
	MAE       float64 `json:"mae"`
	MSE       float64 `json:"mse"`
	RMSE      float64 `json:"rmse"`
	// MAPE is a percentage; periods with actual == 0 are excluded from the
	// average and counted in MAPEExcluded.
	MAPE         float64 `json:"mape"`
	MAPEExcluded int     `json:"mape_excluded_periods"`
	SMAPE        float64 `json:"smape"`
	// R2 is NaN when the actual series has zero variance.
	R2   float64 `json:"r2"`
	Bias float64 `json:"bias"`
	// Coverage is the fraction of actuals inside [lower, upper]; NaN when no
	// bounds were supplied.
	Coverage float64 `json:"coverage"`
}

// ModelInfo describes a model's configuration and fit status for reporting.
type ModelInfo struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Fitted     bool           `json:"fitted"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ForecastRun captures one coordinator run for persistence and reporting.
type ForecastRun struct {
	ID          string    `json:"id" db:"id"`
	ProductID   string    `json:"product_id,omitempty" db:"product_id"`
	ClientID    string    `json:"client_id,omitempty" db:"client_id"`
	Horizon     int       `json:"horizon" db:"horizon"`
	SeriesStart time.Time `json:"series_start" db:"series_start"`
	SeriesEnd   time.Time `json:"series_end" db:"series_end"`
	SeriesLen   int       `json:"series_len" db:"series_len"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
