package dataloader

import (
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seidrlabs/demandcast/internal/models"
)

// SampleConfig controls synthetic demand generation for demos and tests.
type SampleConfig struct {
	Periods              int
	Trend                float64
	SeasonalityAmplitude float64
	NoiseLevel           float64
	StartDate            time.Time
	ProductID            string
	ClientID             string
	Seed                 int64
}

// DefaultSampleConfig mirrors the canonical demo dataset: three years of
// monthly demand around a base of 1000 with yearly seasonality.
func DefaultSampleConfig() SampleConfig {
	return SampleConfig{
		Periods:              36,
		Trend:                10.0,
		SeasonalityAmplitude: 50.0,
		NoiseLevel:           10.0,
		StartDate:            time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
		ProductID:            "PROD_001",
		ClientID:             "CLIENT_001",
		Seed:                 42,
	}
}

// GenerateSample produces deterministic synthetic monthly demand: base
// level plus linear trend plus a yearly sine seasonality plus seeded
// Gaussian noise, floored at zero.
func GenerateSample(cfg SampleConfig) []models.DemandRecord {
	rng := rand.New(rand.NewSource(cfg.Seed))
	const baseValue = 1000.0

	records := make([]models.DemandRecord, cfg.Periods)
	for i := 0; i < cfg.Periods; i++ {
		demand := baseValue +
			float64(i)*cfg.Trend +
			cfg.SeasonalityAmplitude*math.Sin(2*math.Pi*float64(i)/12) +
			rng.NormFloat64()*cfg.NoiseLevel
		if demand < 0 {
			demand = 0
		}
		records[i] = models.DemandRecord{
			Date:      cfg.StartDate.AddDate(0, i, 0),
			Quantity:  decimal.NewFromFloat(demand).Round(3),
			ProductID: cfg.ProductID,
			ClientID:  cfg.ClientID,
		}
	}
	return records
}
