package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/seidrlabs/demandcast/internal/models"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// ForecastRepository persists forecast runs, their per-period points and the
// evaluation metrics computed against held-out actuals.
type ForecastRepository struct {
	pool DatabasePool
}

// NewForecastRepository creates a new forecast repository.
func NewForecastRepository(pool DatabasePool) *ForecastRepository {
	return &ForecastRepository{
		pool: pool,
	}
}

// CreateRun inserts a new forecast run and returns it with the generated ID.
func (r *ForecastRepository) CreateRun(ctx context.Context, run *models.ForecastRun) (*models.ForecastRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO forecast_runs (id, product_id, client_id, horizon, series_start, series_end, series_len)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, product_id, client_id, horizon, series_start, series_end, series_len, created_at
	`

	var saved models.ForecastRun
	err := r.pool.QueryRow(ctx, query,
		run.ID, run.ProductID, run.ClientID, run.Horizon,
		run.SeriesStart, run.SeriesEnd, run.SeriesLen,
	).Scan(
		&saved.ID,
		&saved.ProductID,
		&saved.ClientID,
		&saved.Horizon,
		&saved.SeriesStart,
		&saved.SeriesEnd,
		&saved.SeriesLen,
		&saved.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create forecast run: %w", err)
	}

	return &saved, nil
}

// SaveForecast stores every point of a model's forecast result under a run.
func (r *ForecastRepository) SaveForecast(ctx context.Context, runID string, result *models.ForecastResult) error {
	query := `
		INSERT INTO forecast_points (run_id, model_name, period, period_start, forecast, lower_bound, upper_bound)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i, p := range result.Points {
		_, err := r.pool.Exec(ctx, query,
			runID, result.ModelName, i+1, p.Timestamp, p.Forecast, p.Lower, p.Upper,
		)
		if err != nil {
			return fmt.Errorf("failed to save forecast point %d for %s: %w", i+1, result.ModelName, err)
		}
	}

	return nil
}

// SaveEvaluation stores a model's accuracy metrics for a run. NaN metrics
// are stored as NULL.
func (r *ForecastRepository) SaveEvaluation(ctx context.Context, runID string, record *models.EvaluationRecord) error {
	query := `
		INSERT INTO model_evaluations (run_id, model_name, mae, mse, rmse, mape, mape_excluded, smape, r2, bias, coverage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		runID, record.ModelName,
		record.MAE, record.MSE, record.RMSE,
		nullableMetric(record.MAPE), record.MAPEExcluded,
		nullableMetric(record.SMAPE), nullableMetric(record.R2),
		record.Bias, nullableMetric(record.Coverage),
	)
	if err != nil {
		return fmt.Errorf("failed to save evaluation for %s: %w", record.ModelName, err)
	}

	return nil
}

// GetRun fetches a single forecast run by ID.
func (r *ForecastRepository) GetRun(ctx context.Context, runID string) (*models.ForecastRun, error) {
	query := `
		SELECT id, product_id, client_id, horizon, series_start, series_end, series_len, created_at
		FROM forecast_runs
		WHERE id = $1
	`

	var run models.ForecastRun
	err := r.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID,
		&run.ProductID,
		&run.ClientID,
		&run.Horizon,
		&run.SeriesStart,
		&run.SeriesEnd,
		&run.SeriesLen,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast run %s: %w", runID, err)
	}

	return &run, nil
}

// ListRuns returns the most recent forecast runs, newest first.
func (r *ForecastRepository) ListRuns(ctx context.Context, limit int) ([]models.ForecastRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, product_id, client_id, horizon, series_start, series_end, series_len, created_at
		FROM forecast_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list forecast runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ForecastRun
	for rows.Next() {
		var run models.ForecastRun
		if err := rows.Scan(
			&run.ID,
			&run.ProductID,
			&run.ClientID,
			&run.Horizon,
			&run.SeriesStart,
			&run.SeriesEnd,
			&run.SeriesLen,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan forecast run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate forecast runs: %w", err)
	}

	return runs, nil
}

// GetForecast reconstructs a model's stored forecast for a run, points in
// period order.
func (r *ForecastRepository) GetForecast(ctx context.Context, runID, modelName string) (*models.ForecastResult, error) {
	query := `
		SELECT period_start, forecast, lower_bound, upper_bound, created_at
		FROM forecast_points
		WHERE run_id = $1 AND model_name = $2
		ORDER BY period
	`

	rows, err := r.pool.Query(ctx, query, runID, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast points: %w", err)
	}
	defer rows.Close()

	result := &models.ForecastResult{ModelName: modelName}
	var createdAt time.Time
	for rows.Next() {
		var p models.ForecastPoint
		if err := rows.Scan(&p.Timestamp, &p.Forecast, &p.Lower, &p.Upper, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan forecast point: %w", err)
		}
		result.Points = append(result.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate forecast points: %w", err)
	}
	if len(result.Points) == 0 {
		return nil, fmt.Errorf("no forecast stored for run %s model %s", runID, modelName)
	}
	result.CreatedAt = createdAt

	return result, nil
}

func nullableMetric(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
