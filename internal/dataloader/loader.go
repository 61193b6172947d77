// Package dataloader brings demand history into the forecasting core: CSV
// parsing, validation, product/client filtering, monthly aggregation and
// gap filling. Everything the core's series invariants require (strictly
// increasing timestamps, no missing periods) is enforced here.
package dataloader

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seidrlabs/demandcast/internal/models"
	"github.com/seidrlabs/demandcast/internal/timeseries"
)

// Column names recognised in demand CSV files.
const (
	ColumnDate    = "date"
	ColumnDemand  = "demand"
	ColumnProduct = "product_id"
	ColumnClient  = "client_id"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01", "01/02/2006"}

// LoadCSV reads demand records from a CSV file with a header row. The date
// and demand columns are required; product and client columns are optional.
func LoadCSV(path string) ([]models.DemandRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses demand records from CSV content.
func ReadCSV(r io.Reader) ([]models.DemandRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	dateIdx, ok := cols[ColumnDate]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", ColumnDate)
	}
	demandIdx, ok := cols[ColumnDemand]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", ColumnDemand)
	}
	productIdx, hasProduct := cols[ColumnProduct]
	clientIdx, hasClient := cols[ColumnClient]

	var records []models.DemandRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
		}
		line++

		date, err := parseDate(row[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		qty, err := decimal.NewFromString(row[demandIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid demand value %q: %w", line, row[demandIdx], err)
		}

		record := models.DemandRecord{Date: date, Quantity: qty}
		if hasProduct {
			record.ProductID = row[productIdx]
		}
		if hasClient {
			record.ClientID = row[clientIdx]
		}
		records = append(records, record)
	}
	return records, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

// Validate checks records before they are turned into a series: non-empty,
// parseable dates and non-negative quantities (the demand domain does not
// allow negative demand; the core itself does not re-check this).
func Validate(records []models.DemandRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("no demand records")
	}
	for i, r := range records {
		if r.Date.IsZero() {
			return fmt.Errorf("record %d: missing date", i)
		}
		if r.Quantity.IsNegative() {
			return fmt.Errorf("record %d: negative demand %s on %s", i, r.Quantity, r.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Filter returns records matching the given product and/or client identity.
// Empty criteria match everything.
func Filter(records []models.DemandRecord, productID, clientID string) []models.DemandRecord {
	out := make([]models.DemandRecord, 0, len(records))
	for _, r := range records {
		if productID != "" && r.ProductID != productID {
			continue
		}
		if clientID != "" && r.ClientID != clientID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// AggregateMonthly sums demand per calendar month and returns one record
// per month, sorted by date. Month timestamps are normalised to the first
// day of the month, UTC.
func AggregateMonthly(records []models.DemandRecord) []models.DemandRecord {
	byMonth := make(map[time.Time]decimal.Decimal)
	for _, r := range records {
		key := time.Date(r.Date.Year(), r.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		byMonth[key] = byMonth[key].Add(r.Quantity)
	}

	out := make([]models.DemandRecord, 0, len(byMonth))
	for month, qty := range byMonth {
		out = append(out, models.DemandRecord{Date: month, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// BuildSeries converts monthly records into a validated series, filling any
// missing months by linear interpolation so the core's no-gaps invariant
// holds. Records must be unique per month.
func BuildSeries(records []models.DemandRecord) (*timeseries.Series, error) {
	if err := Validate(records); err != nil {
		return nil, err
	}

	sorted := make([]models.DemandRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i := 1; i < len(sorted); i++ {
		if sameMonth(sorted[i].Date, sorted[i-1].Date) {
			return nil, fmt.Errorf("duplicate period %s; aggregate before building a series",
				sorted[i].Date.Format("2006-01"))
		}
	}

	var timestamps []time.Time
	var values []float64
	for i, r := range sorted {
		t := time.Date(r.Date.Year(), r.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		v := r.Quantity.InexactFloat64()

		if i > 0 {
			prev := timestamps[len(timestamps)-1]
			gap := monthsBetween(prev, t)
			if gap > 1 {
				prevVal := values[len(values)-1]
				step := (v - prevVal) / float64(gap)
				for g := 1; g < gap; g++ {
					timestamps = append(timestamps, prev.AddDate(0, g, 0))
					values = append(values, prevVal+step*float64(g))
				}
			}
		}
		timestamps = append(timestamps, t)
		values = append(values, v)
	}

	series, err := timeseries.New(timestamps, values)
	if err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// SeriesFromTable builds a series from generic tabular rows with designated
// time and target fields, for callers that do not use DemandRecord.
func SeriesFromTable(rows []map[string]any, targetField, timeField string) (*timeseries.Series, error) {
	records := make([]models.DemandRecord, 0, len(rows))
	for i, row := range rows {
		rawTime, ok := row[timeField]
		if !ok {
			return nil, fmt.Errorf("row %d: missing time field %q", i, timeField)
		}
		rawTarget, ok := row[targetField]
		if !ok {
			return nil, fmt.Errorf("row %d: missing target field %q", i, targetField)
		}

		var date time.Time
		switch v := rawTime.(type) {
		case time.Time:
			date = v
		case string:
			parsed, err := parseDate(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			date = parsed
		default:
			return nil, fmt.Errorf("row %d: unsupported time value %T", i, rawTime)
		}

		var qty decimal.Decimal
		switch v := rawTarget.(type) {
		case float64:
			if math.IsNaN(v) {
				return nil, fmt.Errorf("row %d: target is NaN", i)
			}
			qty = decimal.NewFromFloat(v)
		case int:
			qty = decimal.NewFromInt(int64(v))
		case decimal.Decimal:
			qty = v
		case string:
			parsed, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid target %q: %w", i, v, err)
			}
			qty = parsed
		default:
			return nil, fmt.Errorf("row %d: unsupported target value %T", i, rawTarget)
		}

		records = append(records, models.DemandRecord{Date: date, Quantity: qty})
	}
	return BuildSeries(records)
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
