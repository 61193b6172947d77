package dataloader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSampleDeterministic(t *testing.T) {
	cfg := DefaultSampleConfig()
	a := GenerateSample(cfg)
	b := GenerateSample(cfg)

	require.Len(t, a, 36)
	for i := range a {
		assert.True(t, a[i].Quantity.Equal(b[i].Quantity), "period %d differs", i)
		assert.Equal(t, a[i].Date, b[i].Date)
	}
}

func TestGenerateSampleShape(t *testing.T) {
	cfg := DefaultSampleConfig()
	records := GenerateSample(cfg)

	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), records[35].Date)
	assert.Equal(t, "PROD_001", records[0].ProductID)
	assert.Equal(t, "CLIENT_001", records[0].ClientID)

	// Demand stays positive and roughly around the configured base level.
	for _, r := range records {
		v := r.Quantity.InexactFloat64()
		assert.Greater(t, v, 800.0)
		assert.Less(t, v, 1600.0)
	}
}

func TestGenerateSampleTrend(t *testing.T) {
	cfg := DefaultSampleConfig()
	cfg.SeasonalityAmplitude = 0
	cfg.NoiseLevel = 0
	records := GenerateSample(cfg)

	// Pure trend: each month adds exactly the trend increment.
	first := records[0].Quantity.InexactFloat64()
	last := records[35].Quantity.InexactFloat64()
	assert.InDelta(t, 35*cfg.Trend, last-first, 1e-6)
}

func TestGenerateSampleBuildsValidSeries(t *testing.T) {
	records := GenerateSample(DefaultSampleConfig())
	series, err := BuildSeries(records)
	require.NoError(t, err)
	assert.Equal(t, 36, series.Len())
	assert.NoError(t, series.Validate())
}

func TestGenerateSampleDifferentSeeds(t *testing.T) {
	cfg := DefaultSampleConfig()
	a := GenerateSample(cfg)
	cfg.Seed = 7
	b := GenerateSample(cfg)

	different := false
	for i := range a {
		if !a[i].Quantity.Equal(b[i].Quantity) {
			different = true
			break
		}
	}
	assert.True(t, different)
}
