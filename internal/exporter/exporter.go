// Package exporter renders forecasting output for downstream consumers:
// CSV and JSON files per model or side-by-side, and a plain-text summary of
// a model comparison.
package exporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/seidrlabs/demandcast/internal/models"
)

const dateLayout = "2006-01-02"

// WriteForecastCSV writes one model's forecast as CSV.
func WriteForecastCSV(w io.Writer, result *models.ForecastResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "forecast", "lower_bound", "upper_bound"}); err != nil {
		return err
	}
	for _, p := range result.Points {
		row := []string{
			p.Timestamp.Format(dateLayout),
			formatValue(p.Forecast),
			formatValue(p.Lower),
			formatValue(p.Upper),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteComparisonCSV writes multiple forecasts side by side, one column
// triple per model, in the order supplied. All results must share one
// horizon.
func WriteComparisonCSV(w io.Writer, names []string, results map[string]*models.ForecastResult) error {
	if len(names) == 0 {
		return fmt.Errorf("no forecasts to export")
	}
	first, ok := results[names[0]]
	if !ok {
		return fmt.Errorf("missing forecast for model %s", names[0])
	}
	horizon := first.Horizon()

	header := []string{"date"}
	for _, name := range names {
		r, ok := results[name]
		if !ok {
			return fmt.Errorf("missing forecast for model %s", name)
		}
		if r.Horizon() != horizon {
			return fmt.Errorf("model %s horizon %d does not match %d", name, r.Horizon(), horizon)
		}
		header = append(header, name+"_forecast", name+"_lower", name+"_upper")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i := 0; i < horizon; i++ {
		row := []string{first.Points[i].Timestamp.Format(dateLayout)}
		for _, name := range names {
			p := results[name].Points[i]
			row = append(row, formatValue(p.Forecast), formatValue(p.Lower), formatValue(p.Upper))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteEvaluationCSV writes evaluation records as CSV, one row per model.
func WriteEvaluationCSV(w io.Writer, records []*models.EvaluationRecord) error {
	writer := csv.NewWriter(w)
	header := []string{"model", "mae", "mse", "rmse", "mape", "mape_excluded", "smape", "r2", "bias", "coverage"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ModelName,
			formatValue(r.MAE),
			formatValue(r.MSE),
			formatValue(r.RMSE),
			formatValue(r.MAPE),
			strconv.Itoa(r.MAPEExcluded),
			formatValue(r.SMAPE),
			formatValue(r.R2),
			formatValue(r.Bias),
			formatValue(r.Coverage),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteJSON writes any export payload as indented JSON.
func WriteJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// ExportFile writes a forecast to a file, choosing the format from the
// extension (.csv or .json).
func ExportFile(path string, result *models.ForecastResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(path, ".json"):
		return WriteJSON(f, result)
	case strings.HasSuffix(path, ".csv"):
		return WriteForecastCSV(f, result)
	default:
		return fmt.Errorf("unsupported export format for %s (want .csv or .json)", path)
	}
}

// Summary renders a readable model comparison table with locale-aware
// number formatting, for logs and CLI output.
func Summary(records []*models.EvaluationRecord) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%-20s %12s %12s %10s %8s %10s\n", "model", "mae", "rmse", "mape", "r2", "coverage"))
	for _, r := range records {
		b.WriteString(p.Sprintf("%-20s %12.2f %12.2f %9.2f%% %8.3f %10s\n",
			r.ModelName, r.MAE, r.RMSE, r.MAPE, r.R2, coverageCell(r.Coverage)))
	}
	return b.String()
}

func coverageCell(coverage float64) string {
	if math.IsNaN(coverage) {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", coverage*100)
}

// formatValue renders a float for CSV with stable precision; NaN becomes an
// empty cell.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return decimal.NewFromFloat(v).Round(4).String()
}
