package normalize

import (
	"testing"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTibberPrices(t *testing.T) {

	assert := assert.New(t)

	payload := []byte(`{
		"prices": [
			{"startsAt": "2026-08-24T10:00:00Z", "total": 0.28},
			{"startsAt": "2026-08-24T11:00:00Z", "total": 0.32},
			{"startsAt": "2026-08-24T12:00:00Z", "total": 0.25}
		]
	}`)

	points, err := Prices(PriceVendorTibber, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), points[0].PeriodStart)
	assert.InDelta(0.28, points[0].PriceKWh, 0.0001)
	assert.InDelta(0.32, points[1].PriceKWh, 0.0001)
	assert.InDelta(0.25, points[2].PriceKWh, 0.0001)
}

func TestTibberQuarterHourlyAveraged(t *testing.T) {

	payload := []byte(`{
		"prices": [
			{"from": "2026-08-24T11:00:00Z", "price": 0.20},
			{"from": "2026-08-24T11:15:00Z", "price": 0.30},
			{"from": "2026-08-24T11:30:00Z", "price": 0.40},
			{"from": "2026-08-24T11:45:00Z", "price": 0.50}
		]
	}`)

	points, err := Prices(PriceVendorTibber, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 0.35, points[0].PriceKWh, 0.0001)
}

// A Tibber payload and a Nordpool payload carrying the same hourly data must
// normalize to the same canonical series.
func TestTibberNordpoolEquivalence(t *testing.T) {

	tibber := []byte(`{
		"prices": [
			{"startsAt": "2026-08-24T10:00:00Z", "total": 0.28},
			{"startsAt": "2026-08-24T11:00:00Z", "total": 0.32}
		]
	}`)
	nordpool := []byte(`{
		"raw_today": [
			{"start": "2026-08-24T10:00:00Z", "value": 0.28},
			{"start": "2026-08-24T11:00:00Z", "value": 0.32}
		]
	}`)

	fromTibber, err := Prices(PriceVendorTibber, tibber, testNow)
	require.NoError(t, err)
	fromNordpool, err := Prices(PriceVendorNordpool, nordpool, testNow)
	require.NoError(t, err)

	assert.Equal(t, fromTibber, fromNordpool)
}

func TestNordpoolPlainArraysPositionedFromMidnight(t *testing.T) {

	assert := assert.New(t)

	// 24 hourly prices for today, current hour is 10
	payload := []byte(`{
		"prices_today": [0.10, 0.10, 0.10, 0.10, 0.10, 0.10, 0.10, 0.10, 0.10, 0.10,
			0.21, 0.22, 0.23, 0.24, 0.25, 0.26, 0.27, 0.28, 0.29, 0.30, 0.31, 0.32, 0.33, 0.34],
		"prices_tomorrow": [0.41, 0.42]
	}`)

	points, err := Prices(PriceVendorNordpool, payload, testNow)
	require.NoError(t, err)

	// hours before the current one are dropped: 14 left today + 2 tomorrow
	require.Len(t, points, 16)
	assert.Equal(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), points[0].PeriodStart)
	assert.InDelta(0.21, points[0].PriceKWh, 0.0001)
	assert.Equal(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), points[14].PeriodStart)
	assert.InDelta(0.41, points[14].PriceKWh, 0.0001)
	assert.InDelta(0.42, points[15].PriceKWh, 0.0001)
}

func TestNordpoolTodayWinsOnCollision(t *testing.T) {

	payload := []byte(`{
		"raw_today": [
			{"start": "2026-08-24T23:00:00Z", "value": 0.19}
		],
		"raw_tomorrow": [
			{"start": "2026-08-24T23:00:00Z", "value": 0.99}
		]
	}`)

	points, err := Prices(PriceVendorNordpool, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 0.19, points[0].PriceKWh, 0.0001)
}

func TestENTSOEPerMWhConversion(t *testing.T) {

	payload := []byte(`{
		"data": [
			{"time": "2026-08-24T10:00:00Z", "price": 300},
			{"time": "2026-08-24T11:00:00Z", "price": 0.25}
		]
	}`)

	points, err := Prices(PriceVendorENTSOE, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 2)

	// 300 EUR/MWh becomes 0.30 EUR/kWh; values already per kWh pass through
	assert.InDelta(t, 0.30, points[0].PriceKWh, 0.0001)
	assert.InDelta(t, 0.25, points[1].PriceKWh, 0.0001)
}

func TestPricesOrderedAndDeduplicated(t *testing.T) {

	assert := assert.New(t)

	payload := []byte(`{
		"data": [
			{"time": "2026-08-24T13:00:00Z", "price": 0.33},
			{"time": "2026-08-24T11:00:00Z", "price": 0.31},
			{"time": "2026-08-24T11:00:00Z", "price": 0.99},
			{"time": "2026-08-24T12:00:00Z", "price": 0.32}
		]
	}`)

	points, err := Prices(PriceVendorENTSOE, payload, testNow)
	require.NoError(t, err)
	require.Len(t, points, 3)

	for i := 1; i < len(points); i++ {
		assert.True(points[i-1].PeriodStart.Before(points[i].PeriodStart))
	}
	assert.InDelta(0.31, points[0].PriceKWh, 0.0001)
}

func TestFixedPrices(t *testing.T) {

	points := FixedPrices(0.30, testNow)
	require.Len(t, points, HorizonHours)
	assert.Equal(t, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), points[0].PeriodStart)
	assert.InDelta(t, 0.30, points[47].PriceKWh, 0.0001)
}

func TestPricesUnknownVendor(t *testing.T) {

	_, err := Prices("acme_energy", []byte(`{}`), testNow)
	require.Error(t, err)

	var unsupported *domain.UnsupportedSourceError
	assert.ErrorAs(t, err, &unsupported)
}

func TestPricesMissingAttribute(t *testing.T) {

	_, err := Prices(PriceVendorTibber, []byte(`{"nothing": true}`), testNow)
	require.Error(t, err)

	var nerr *domain.NormalizationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "prices", nerr.Attribute)
}
