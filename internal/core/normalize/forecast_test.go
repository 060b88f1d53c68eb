package normalize

import (
	"fmt"
	"testing"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)

func TestSolcastForecast(t *testing.T) {

	assert := assert.New(t)

	payload := []byte(`{
		"DetailedForecast": [
			{"period_start": "2026-08-24T10:00:00Z", "pv_estimate": 1200},
			{"period_start": "2026-08-24T10:30:00Z", "pv_estimate": 1400},
			{"period_start": "2026-08-24T11:00:00Z", "pv_estimate": 2000},
			{"period_start": "2026-08-24T09:00:00Z", "pv_estimate": 900}
		]
	}`)

	points, err := PVForecast(PVVendorSolcast, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 2)

	// half-hour periods accumulate into the hour bucket, past periods dropped
	assert.Equal(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), points[0].PeriodStart)
	assert.InDelta(2600, points[0].EnergyWh, 0.001)
	assert.Equal(time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC), points[1].PeriodStart)
	assert.InDelta(2000, points[1].EnergyWh, 0.001)
}

func TestSolcastForecastFallbackEstimate(t *testing.T) {

	assert := assert.New(t)

	payload := []byte(`{
		"detailedHourly": [
			{"period_start": "2026-08-24T12:00:00Z", "pv_estimate50": 1500}
		]
	}`)

	points, err := PVForecast(PVVendorSolcast, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(1500, points[0].EnergyWh, 0.001)
}

func TestGenericForecastKeyFallbacks(t *testing.T) {

	assert := assert.New(t)

	payload := []byte(`{
		"forecast": [
			{"datetime": "2026-08-24T12:00:00Z", "power": 800},
			{"time": "2026-08-24T11:00:00+00:00", "value": 650}
		]
	}`)

	points, err := PVForecast(PVVendorForecastSolar, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 2)

	// ordered regardless of input order
	assert.True(points[0].PeriodStart.Before(points[1].PeriodStart))
	assert.InDelta(650, points[0].EnergyWh, 0.001)
	assert.InDelta(800, points[1].EnergyWh, 0.001)
}

func TestWattHoursForecast(t *testing.T) {

	assert := assert.New(t)

	payload := []byte(`{
		"watt_hours": {
			"2026-08-24T11:00:00Z": 500,
			"2026-08-24T13:00:00Z": 1200
		}
	}`)

	points, err := PVForecast(PVVendorWattHours, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(500, points[0].EnergyWh, 0.001)
	assert.InDelta(1200, points[1].EnergyWh, 0.001)
}

func TestForecastDuplicateTimestampKeepsFirst(t *testing.T) {

	assert := assert.New(t)

	payload := []byte(`{
		"forecast": [
			{"period_start": "2026-08-24T12:00:00Z", "value": 700},
			{"period_start": "2026-08-24T12:00:00Z", "value": 9999}
		]
	}`)

	points, err := PVForecast(PVVendorForecastSolar, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(700, points[0].EnergyWh, 0.001)
}

func TestForecastBeyondHorizonDropped(t *testing.T) {

	beyond := testNow.Add(time.Duration(HorizonHours+2) * time.Hour)
	payload := []byte(fmt.Sprintf(`{
		"forecast": [
			{"period_start": "%s", "value": 700}
		]
	}`, beyond.Format(time.RFC3339)))

	points, err := PVForecast(PVVendorForecastSolar, payload, testNow)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestForecastUnknownVendor(t *testing.T) {

	_, err := PVForecast("acme_solar", []byte(`{}`), testNow)
	require.Error(t, err)

	var unsupported *domain.UnsupportedSourceError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "acme_solar", unsupported.Vendor)
}

func TestForecastMissingAttribute(t *testing.T) {

	_, err := PVForecast(PVVendorSolcast, []byte(`{"something_else": []}`), testNow)
	require.Error(t, err)

	var nerr *domain.NormalizationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "DetailedForecast", nerr.Attribute)
}
