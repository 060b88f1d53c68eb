package eos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"go.uber.org/zap"
)

const (
	// planning horizon of the optimizer, in hourly slots
	HorizonSlots = 48

	batteryDeviceId  = "battery1"
	inverterDeviceId = "inverter1"
)

// Client talks to an EOS optimization server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	// version reported by the last successful health check
	version string
}

func NewClient(host string, port uint, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("eos"),
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthCheck probes the server and returns its reported version. Older
// servers only expose /health, so that path is tried as a fallback.
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	version, err := c.healthCheckPath(ctx, "/v1/health")
	if err == nil {
		c.version = version
		return version, nil
	}
	version, err = c.healthCheckPath(ctx, "/health")
	if err != nil {
		return "", err
	}
	c.version = version
	return version, nil
}

func (c *Client) healthCheckPath(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", &domain.OptimizerUnavailableError{Cause: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.OptimizerUnavailableError{Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.OptimizerUnavailableError{
			Cause: fmt.Errorf("health check returned status %d", resp.StatusCode),
		}
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "", &domain.OptimizerUnavailableError{Cause: err}
	}
	return health.Version, nil
}

type emsDoc struct {
	PVForecastWh      []float64 `json:"pv_prognose_wh"`
	GridPriceEURPerWh []float64 `json:"strompreis_euro_pro_wh"`
	FeedInEURPerWh    []float64 `json:"einspeiseverguetung_euro_pro_wh"`
	TotalLoadWh       []float64 `json:"gesamtlast"`
}

type batteryDoc struct {
	DeviceId              string  `json:"device_id,omitempty"`
	CapacityWh            float64 `json:"capacity_wh"`
	InitialSOCPercentage  float64 `json:"initial_soc_percentage"`
	MinSOCPercentage      float64 `json:"min_soc_percentage"`
	MaxSOCPercentage      float64 `json:"max_soc_percentage"`
	MaxChargePowerW       float64 `json:"max_charge_power_w"`
	ChargingEfficiency    float64 `json:"charging_efficiency"`
	DischargingEfficiency float64 `json:"discharging_efficiency"`
}

type inverterDoc struct {
	DeviceId   string  `json:"device_id,omitempty"`
	MaxPowerWh float64 `json:"max_power_wh"`
	BatteryId  string  `json:"battery_id,omitempty"`
}

type optimizeRequestDoc struct {
	EMS           emsDoc      `json:"ems"`
	Battery       batteryDoc  `json:"pv_akku"`
	Inverter      inverterDoc `json:"inverter"`
	TemperatureC  []float64   `json:"temperature_forecast,omitempty"`
	StartSolution []float64   `json:"start_solution,omitempty"`
}

type optimizeResultDoc struct {
	SOCPerHour   []float64 `json:"akku_soc_pro_stunde"`
	TotalCostEUR float64   `json:"Gesamtkosten_Euro"`
	TotalLosses  float64   `json:"Gesamt_Verluste"`
	GridImportWh []float64 `json:"Netzbezug_Wh_pro_Stunde"`
	GridExportWh []float64 `json:"Netzeinspeisung_Wh_pro_Stunde"`
	LoadWh       []float64 `json:"Last_Wh_pro_Stunde"`
}

type optimizeResponseDoc struct {
	ACCharge         []float64         `json:"ac_charge"`
	DCCharge         []float64         `json:"dc_charge"`
	DischargeAllowed []int             `json:"discharge_allowed"`
	Result           optimizeResultDoc `json:"result"`
	StartSolution    []float64         `json:"start_solution"`
	ApplianceStart   *int              `json:"washingstart"`
}

// Optimize submits a full optimization request and returns the parsed plan.
// Input series must cover at least the current hour; they are padded or cut
// to the server's 48 slot horizon.
func (c *Client) Optimize(ctx context.Context, request domain.OptimizationRequest) (*domain.OptimizationResult, error) {
	if missing := missingInputs(request); len(missing) > 0 {
		return nil, &domain.InsufficientDataError{Missing: missing}
	}

	doc := c.buildRequestDoc(request)
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, &domain.OptimizerUnavailableError{Cause: err}
	}

	url := fmt.Sprintf("%s/optimize?start_hour=%d", c.baseURL, request.StartHour)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.OptimizerUnavailableError{Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("optimize request", zap.Int("start_hour", request.StartHour),
		zap.Float64("soc", request.Battery.SOCPercent))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.OptimizerUnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.OptimizerUnavailableError{
			Cause: fmt.Errorf("optimize returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))),
		}
	}

	var respDoc optimizeResponseDoc
	if err := json.NewDecoder(resp.Body).Decode(&respDoc); err != nil {
		return nil, &domain.InvalidResponseError{Field: "body", Reason: err.Error()}
	}

	result, err := parseResponseDoc(&respDoc)
	if err != nil {
		return nil, err
	}
	result.FetchedAt = time.Now()

	c.logger.Info("optimization finished", zap.Duration("took", time.Since(start)),
		zap.Float64("total_cost_eur", result.TotalCostEUR))

	return result, nil
}

func missingInputs(request domain.OptimizationRequest) []string {
	var missing []string
	if len(request.PVForecast) == 0 {
		missing = append(missing, "pv_forecast")
	}
	if len(request.Prices) == 0 {
		missing = append(missing, "prices")
	}
	return missing
}

func (c *Client) buildRequestDoc(request domain.OptimizationRequest) optimizeRequestDoc {
	start := request.PeriodStart
	if start.IsZero() {
		start = time.Now()
	}
	start = start.Truncate(time.Hour)

	// series can be sparse (daylight-only PV, gapped price feeds), so each
	// point is placed by its hour offset, not by slice position
	pv := make([]float64, HorizonSlots)
	for _, p := range request.PVForecast {
		slot := int(p.PeriodStart.Sub(start).Hours())
		if slot < 0 || slot >= HorizonSlots {
			continue
		}
		pv[slot] += p.EnergyWh
	}

	// grid prices arrive in EUR/kWh, the server wants EUR/Wh;
	// gaps and the tail are filled with the last known price
	prices := make([]float64, HorizonSlots)
	known := make([]bool, HorizonSlots)
	for _, p := range request.Prices {
		slot := int(p.PeriodStart.Sub(start).Hours())
		if slot < 0 || slot >= HorizonSlots {
			continue
		}
		prices[slot] = p.PriceKWh / 1000
		known[slot] = true
	}
	lastPrice := 0.0
	for i := 0; i < HorizonSlots; i++ {
		if known[i] {
			lastPrice = prices[i]
		}
		prices[i] = lastPrice
	}

	feedIn := make([]float64, HorizonSlots)
	for i := range feedIn {
		feedIn[i] = request.FeedInKWh / 1000
	}

	// pad the load forecast with the last known value
	load := make([]float64, HorizonSlots)
	lastLoad := 0.0
	for i := 0; i < HorizonSlots; i++ {
		if i < len(request.LoadForecastW) {
			lastLoad = request.LoadForecastW[i]
		}
		load[i] = lastLoad
	}

	battery := batteryDoc{
		CapacityWh:            request.Battery.CapacityWh,
		InitialSOCPercentage:  request.Battery.SOCPercent,
		MinSOCPercentage:      request.Battery.MinSOCPercent,
		MaxSOCPercentage:      request.Battery.MaxSOCPercent,
		MaxChargePowerW:       request.Battery.MaxChargePowerW,
		ChargingEfficiency:    request.Battery.ChargeEfficiency,
		DischargingEfficiency: request.Battery.DischargeEfficiency,
	}
	inverter := inverterDoc{
		MaxPowerWh: request.Battery.MaxChargePowerW,
	}
	// device ids were introduced with server 0.0.2
	if isVersionAtLeast(c.version, "0.0.2") {
		battery.DeviceId = batteryDeviceId
		inverter.DeviceId = inverterDeviceId
		inverter.BatteryId = batteryDeviceId
	}

	return optimizeRequestDoc{
		EMS: emsDoc{
			PVForecastWh:      pv,
			GridPriceEURPerWh: prices,
			FeedInEURPerWh:    feedIn,
			TotalLoadWh:       load,
		},
		Battery:       battery,
		Inverter:      inverter,
		StartSolution: request.StartSolution,
	}
}

func parseResponseDoc(doc *optimizeResponseDoc) (*domain.OptimizationResult, error) {
	if len(doc.ACCharge) == 0 {
		return nil, &domain.InvalidResponseError{Field: "ac_charge", Reason: "missing or empty"}
	}
	if len(doc.DCCharge) == 0 {
		return nil, &domain.InvalidResponseError{Field: "dc_charge", Reason: "missing or empty"}
	}
	if len(doc.DischargeAllowed) == 0 {
		return nil, &domain.InvalidResponseError{Field: "discharge_allowed", Reason: "missing or empty"}
	}
	for _, v := range doc.ACCharge {
		if v < 0 || v > 1 {
			return nil, &domain.InvalidResponseError{Field: "ac_charge", Reason: "factor out of range [0, 1]"}
		}
	}
	for _, v := range doc.DCCharge {
		if v < 0 || v > 1 {
			return nil, &domain.InvalidResponseError{Field: "dc_charge", Reason: "factor out of range [0, 1]"}
		}
	}
	for _, v := range doc.Result.SOCPerHour {
		if v < 0 || v > 100 {
			return nil, &domain.InvalidResponseError{Field: "akku_soc_pro_stunde", Reason: "soc out of range [0, 100]"}
		}
	}

	discharge := make([]bool, len(doc.DischargeAllowed))
	for i, v := range doc.DischargeAllowed {
		discharge[i] = v != 0
	}

	return &domain.OptimizationResult{
		ACCharge:         doc.ACCharge,
		DCCharge:         doc.DCCharge,
		DischargeAllowed: discharge,
		SOCPerHour:       doc.Result.SOCPerHour,
		GridImportWh:     doc.Result.GridImportWh,
		GridExportWh:     doc.Result.GridExportWh,
		LoadWh:           doc.Result.LoadWh,
		TotalCostEUR:     doc.Result.TotalCostEUR,
		TotalLossesWh:    doc.Result.TotalLosses,
		StartSolution:    doc.StartSolution,
		ApplianceStart:   doc.ApplianceStart,
	}, nil
}

// isVersionAtLeast compares dotted numeric versions, e.g. "0.0.2" >= "0.0.2".
// Unknown or unparsable versions compare as older.
func isVersionAtLeast(version, minimum string) bool {
	if version == "" {
		return false
	}
	vParts := strings.Split(version, ".")
	mParts := strings.Split(minimum, ".")
	for i := 0; i < len(mParts); i++ {
		mv, err := strconv.Atoi(mParts[i])
		if err != nil {
			return false
		}
		var vv int
		if i < len(vParts) {
			vv, err = strconv.Atoi(strings.TrimSpace(vParts[i]))
			if err != nil {
				return false
			}
		}
		if vv != mv {
			return vv > mv
		}
	}
	return true
}
