package eos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testStart = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func testRequest() domain.OptimizationRequest {
	return domain.OptimizationRequest{
		Battery: domain.BatteryState{
			SOCPercent:          55,
			CapacityWh:          10000,
			MinSOCPercent:       10,
			MaxSOCPercent:       95,
			MaxChargePowerW:     5000,
			ChargeEfficiency:    0.95,
			DischargeEfficiency: 0.95,
		},
		PVForecast: []domain.ForecastPoint{
			{PeriodStart: testStart, EnergyWh: 0},
			{PeriodStart: testStart.Add(1 * time.Hour), EnergyWh: 1200},
			{PeriodStart: testStart.Add(2 * time.Hour), EnergyWh: 2400},
		},
		Prices: []domain.PricePoint{
			{PeriodStart: testStart, PriceKWh: 0.30},
			{PeriodStart: testStart.Add(1 * time.Hour), PriceKWh: 0.25},
		},
		LoadForecastW: []float64{400},
		FeedInKWh:     0.08,
		StartHour:     10,
		PeriodStart:   testStart,
	}
}

func testClientFor(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return NewClient(u.Hostname(), uint(port), 5*time.Second, zap.NewNop())
}

func TestOptimizeParsesResponse(t *testing.T) {

	assert := assert.New(t)

	var gotDoc optimizeRequestDoc
	var gotStartHour string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStartHour = r.URL.Query().Get("start_hour")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotDoc))
		resp := optimizeResponseDoc{
			ACCharge:         []float64{0.5, 0, 0},
			DCCharge:         []float64{1, 1, 0.5},
			DischargeAllowed: []int{0, 1, 1},
			Result: optimizeResultDoc{
				SOCPerHour:   []float64{55, 60, 58},
				TotalCostEUR: 1.23,
				TotalLosses:  150,
				GridImportWh: []float64{500, 0, 0},
				GridExportWh: []float64{0, 0, 200},
				LoadWh:       []float64{400, 400, 400},
			},
			StartSolution: []float64{1, 2, 3},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := testClientFor(t, server)
	result, err := client.Optimize(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal("10", gotStartHour)
	assert.Equal([]float64{0.5, 0, 0}, result.ACCharge)
	assert.Equal([]bool{false, true, true}, result.DischargeAllowed)
	assert.Equal(1.23, result.TotalCostEUR)
	assert.Equal([]float64{1, 2, 3}, result.StartSolution)
	assert.False(result.FetchedAt.IsZero())

	// request doc is padded to the full horizon
	assert.Len(gotDoc.EMS.PVForecastWh, HorizonSlots)
	assert.Len(gotDoc.EMS.GridPriceEURPerWh, HorizonSlots)
	assert.Len(gotDoc.EMS.TotalLoadWh, HorizonSlots)
	assert.Equal(1200.0, gotDoc.EMS.PVForecastWh[1])
	assert.Equal(0.0, gotDoc.EMS.PVForecastWh[3])
	// EUR/kWh converted to EUR/Wh, last price carried forward
	assert.InDelta(0.0003, gotDoc.EMS.GridPriceEURPerWh[0], 1e-9)
	assert.InDelta(0.00025, gotDoc.EMS.GridPriceEURPerWh[47], 1e-9)
	assert.Equal(400.0, gotDoc.EMS.TotalLoadWh[47])
	assert.Equal(55.0, gotDoc.Battery.InitialSOCPercentage)
}

func TestBuildRequestDocSlotAlignment(t *testing.T) {

	assert := assert.New(t)

	client := NewClient("localhost", 1, time.Second, zap.NewNop())

	// daylight-only PV series with a gapped price feed: values must land in
	// the slot their timestamp names, not get compacted leftward
	request := testRequest()
	request.PVForecast = []domain.ForecastPoint{
		{PeriodStart: testStart.Add(5 * time.Hour), EnergyWh: 2400},
		{PeriodStart: testStart.Add(6 * time.Hour), EnergyWh: 3100},
		{PeriodStart: testStart.Add(29 * time.Hour), EnergyWh: 1800},
	}
	request.Prices = []domain.PricePoint{
		{PeriodStart: testStart, PriceKWh: 0.30},
		{PeriodStart: testStart.Add(4 * time.Hour), PriceKWh: 0.20},
	}

	doc := client.buildRequestDoc(request)

	assert.Equal(0.0, doc.EMS.PVForecastWh[0])
	assert.Equal(0.0, doc.EMS.PVForecastWh[1])
	assert.Equal(2400.0, doc.EMS.PVForecastWh[5])
	assert.Equal(3100.0, doc.EMS.PVForecastWh[6])
	assert.Equal(1800.0, doc.EMS.PVForecastWh[29])

	// the gap between known prices carries the earlier price forward
	assert.InDelta(0.0003, doc.EMS.GridPriceEURPerWh[0], 1e-9)
	assert.InDelta(0.0003, doc.EMS.GridPriceEURPerWh[3], 1e-9)
	assert.InDelta(0.0002, doc.EMS.GridPriceEURPerWh[4], 1e-9)
	assert.InDelta(0.0002, doc.EMS.GridPriceEURPerWh[47], 1e-9)

	// points before the anchor or past the horizon are dropped
	request.PVForecast = append(request.PVForecast,
		domain.ForecastPoint{PeriodStart: testStart.Add(-1 * time.Hour), EnergyWh: 999},
		domain.ForecastPoint{PeriodStart: testStart.Add(HorizonSlots * time.Hour), EnergyWh: 999},
	)
	doc = client.buildRequestDoc(request)
	assert.Equal(0.0, doc.EMS.PVForecastWh[0])
	assert.Equal(0.0, doc.EMS.PVForecastWh[HorizonSlots-1])
}

func TestOptimizeEmptyInput(t *testing.T) {

	assert := assert.New(t)

	client := NewClient("localhost", 1, time.Second, zap.NewNop())
	request := testRequest()
	request.Prices = nil

	_, err := client.Optimize(context.Background(), request)
	var insufficient *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal([]string{"prices"}, insufficient.Missing)
}

func TestOptimizeServerError(t *testing.T) {

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClientFor(t, server)
	_, err := client.Optimize(context.Background(), testRequest())
	var unavailable *domain.OptimizerUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestOptimizeUnreachable(t *testing.T) {

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := testClientFor(t, server)
	server.Close()

	_, err := client.Optimize(context.Background(), testRequest())
	var unavailable *domain.OptimizerUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestOptimizeInvalidResponse(t *testing.T) {

	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := optimizeResponseDoc{
			ACCharge:         []float64{1.5},
			DCCharge:         []float64{1},
			DischargeAllowed: []int{1},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := testClientFor(t, server)
	_, err := client.Optimize(context.Background(), testRequest())
	var invalid *domain.InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.Equal("ac_charge", invalid.Field)
}

func TestOptimizeMissingArrays(t *testing.T) {

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": {}}`))
	}))
	defer server.Close()

	client := testClientFor(t, server)
	_, err := client.Optimize(context.Background(), testRequest())
	var invalid *domain.InvalidResponseError
	require.ErrorAs(t, err, &invalid)
}

func TestHealthCheck(t *testing.T) {

	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status": "alive", "version": "0.0.2"}`))
	}))
	defer server.Close()

	client := testClientFor(t, server)
	version, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal("0.0.2", version)

	// device ids appear in the request doc once the version is known
	doc := client.buildRequestDoc(testRequest())
	assert.Equal("battery1", doc.Battery.DeviceId)
	assert.Equal("battery1", doc.Inverter.BatteryId)
}

func TestHealthCheckLegacyFallback(t *testing.T) {

	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status": "alive", "version": "0.0.1"}`))
	}))
	defer server.Close()

	client := testClientFor(t, server)
	version, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal("0.0.1", version)

	// pre-0.0.2 servers get no device ids
	doc := client.buildRequestDoc(testRequest())
	assert.Equal("", doc.Battery.DeviceId)
}

func TestIsVersionAtLeast(t *testing.T) {

	assert := assert.New(t)

	assert.True(isVersionAtLeast("0.0.2", "0.0.2"))
	assert.True(isVersionAtLeast("0.1.0", "0.0.2"))
	assert.True(isVersionAtLeast("1.0", "0.0.2"))
	assert.False(isVersionAtLeast("0.0.1", "0.0.2"))
	assert.False(isVersionAtLeast("", "0.0.2"))
	assert.False(isVersionAtLeast("snapshot", "0.0.2"))
}
