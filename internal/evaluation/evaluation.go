// Package evaluation computes forecast accuracy metrics. All functions are
// pure: they take (actual, predicted[, bounds]) slices and return a fresh
// record, retaining no state between calls.
package evaluation

import (
	"errors"
	"fmt"
	"math"

	"github.com/seidrlabs/demandcast/internal/models"
)

// NamedSeries pairs a model name with its predicted series, preserving the
// order models were supplied in so downstream ranking stays deterministic.
type NamedSeries struct {
	Name      string
	Predicted []float64
}

// Evaluate scores predictions against actuals without interval coverage.
func Evaluate(actual, predicted []float64) (*models.EvaluationRecord, error) {
	return EvaluateWithBounds(actual, predicted, nil, nil)
}

// EvaluateWithBounds scores predictions against actuals. When lower and
// upper are non-nil they must align with actual, and interval coverage is
// reported; otherwise Coverage is NaN.
//
// Undefined-metric conditions are not errors: periods with actual == 0 are
// excluded from MAPE (the exclusion count is reported), zero denominators
// are excluded from sMAPE, and R2 is NaN for a constant actual series.
func EvaluateWithBounds(actual, predicted, lower, upper []float64) (*models.EvaluationRecord, error) {
	n := len(actual)
	if n == 0 {
		return nil, errors.New("actual series is empty")
	}
	if len(predicted) != n {
		return nil, fmt.Errorf("length mismatch: actual has %d periods, predicted has %d", n, len(predicted))
	}
	hasBounds := lower != nil && upper != nil
	if hasBounds && (len(lower) != n || len(upper) != n) {
		return nil, fmt.Errorf("length mismatch: bounds have %d/%d periods, actual has %d", len(lower), len(upper), n)
	}

	var sumAbs, sumSq, sumSigned float64
	for i := 0; i < n; i++ {
		diff := predicted[i] - actual[i]
		sumAbs += math.Abs(diff)
		sumSq += diff * diff
		sumSigned += diff
	}
	nf := float64(n)

	record := &models.EvaluationRecord{
		MAE:      sumAbs / nf,
		MSE:      sumSq / nf,
		Bias:     sumSigned / nf,
		Coverage: math.NaN(),
	}
	record.RMSE = math.Sqrt(record.MSE)
	record.MAPE, record.MAPEExcluded = mape(actual, predicted)
	record.SMAPE = smape(actual, predicted)
	record.R2 = rSquared(actual, predicted)

	if hasBounds {
		covered := 0
		for i := 0; i < n; i++ {
			if actual[i] >= lower[i] && actual[i] <= upper[i] {
				covered++
			}
		}
		record.Coverage = float64(covered) / nf
	}

	return record, nil
}

// CompareModels evaluates every named prediction series against the same
// actuals, returning one record per series in the supplied order.
func CompareModels(actual []float64, predictions []NamedSeries) ([]*models.EvaluationRecord, error) {
	records := make([]*models.EvaluationRecord, 0, len(predictions))
	for _, p := range predictions {
		record, err := Evaluate(actual, p.Predicted)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", p.Name, err)
		}
		record.ModelName = p.Name
		records = append(records, record)
	}
	return records, nil
}

// Coverage returns the fraction of actuals inside [lower, upper].
func Coverage(actual, lower, upper []float64) (float64, error) {
	n := len(actual)
	if n == 0 {
		return 0, errors.New("actual series is empty")
	}
	if len(lower) != n || len(upper) != n {
		return 0, fmt.Errorf("length mismatch: bounds have %d/%d periods, actual has %d", len(lower), len(upper), n)
	}
	covered := 0
	for i := 0; i < n; i++ {
		if actual[i] >= lower[i] && actual[i] <= upper[i] {
			covered++
		}
	}
	return float64(covered) / float64(n), nil
}

// mape returns the mean absolute percentage error over periods where the
// actual is non-zero, plus the number of excluded periods. The exclusion is
// a divide-by-zero guard, not silent data loss: callers see the count.
func mape(actual, predicted []float64) (float64, int) {
	sum, used := 0.0, 0
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		used++
	}
	if used == 0 {
		return math.NaN(), len(actual)
	}
	return sum / float64(used) * 100, len(actual) - used
}

func smape(actual, predicted []float64) float64 {
	sum, used := 0.0, 0
	for i := range actual {
		denom := (math.Abs(actual[i]) + math.Abs(predicted[i])) / 2
		if denom == 0 {
			continue
		}
		sum += math.Abs(actual[i]-predicted[i]) / denom
		used++
	}
	if used == 0 {
		return math.NaN()
	}
	return sum / float64(used) * 100
}

func rSquared(actual, predicted []float64) float64 {
	mean := 0.0
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	var ssRes, ssTot float64
	for i := range actual {
		r := actual[i] - predicted[i]
		ssRes += r * r
		d := actual[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}
