package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"
)

// HorizonHours is the target optimization horizon. Normalizers never fabricate
// points to reach it; shorter series are padded by the request builder.
const HorizonHours = 48

const (
	PVVendorSolcast       = "solcast"
	PVVendorForecastSolar = "forecast_solar"
	PVVendorWattHours     = "watt_hours"
)

// PVForecast converts a raw vendor payload into an hourly PV energy series
// starting at the current hour. The output is strictly ordered by period start
// and deduplicated: the first value seen for a timestamp wins.
func PVForecast(vendor string, payload []byte, now time.Time) ([]domain.ForecastPoint, error) {
	switch vendor {
	case PVVendorSolcast:
		return solcastForecast(payload, now)
	case PVVendorForecastSolar:
		return genericForecast(payload, now)
	case PVVendorWattHours:
		return wattHoursForecast(payload, now)
	default:
		return nil, &domain.UnsupportedSourceError{Vendor: vendor}
	}
}

type solcastPeriod struct {
	PeriodStart  string   `json:"period_start"`
	PVEstimate   *float64 `json:"pv_estimate"`
	PVEstimate50 *float64 `json:"pv_estimate50"`
}

func solcastForecast(payload []byte, now time.Time) ([]domain.ForecastPoint, error) {
	var doc struct {
		DetailedForecast []solcastPeriod `json:"DetailedForecast"`
		DetailedHourly   []solcastPeriod `json:"detailedHourly"`
		DetailedSnake    []solcastPeriod `json:"detailed_forecast"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &domain.NormalizationError{Vendor: PVVendorSolcast, Attribute: "payload", Reason: "not a JSON document"}
	}
	periods := doc.DetailedForecast
	if len(periods) == 0 {
		periods = doc.DetailedHourly
	}
	if len(periods) == 0 {
		periods = doc.DetailedSnake
	}
	if len(periods) == 0 {
		return nil, &domain.NormalizationError{Vendor: PVVendorSolcast, Attribute: "DetailedForecast", Reason: "attribute missing or empty"}
	}

	acc := newHourlyAccumulator(now)
	for _, p := range periods {
		if p.PeriodStart == "" {
			continue
		}
		ts, err := parseTimestamp(p.PeriodStart)
		if err != nil {
			continue
		}
		value := 0.0
		if p.PVEstimate != nil && *p.PVEstimate != 0 {
			value = *p.PVEstimate
		} else if p.PVEstimate50 != nil {
			value = *p.PVEstimate50
		}
		acc.addSum(ts, value)
	}
	return acc.forecastPoints(), nil
}

func genericForecast(payload []byte, now time.Time) ([]domain.ForecastPoint, error) {
	var doc struct {
		Forecast []map[string]any `json:"forecast"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &domain.NormalizationError{Vendor: PVVendorForecastSolar, Attribute: "payload", Reason: "not a JSON document"}
	}
	if len(doc.Forecast) == 0 {
		return nil, &domain.NormalizationError{Vendor: PVVendorForecastSolar, Attribute: "forecast", Reason: "attribute missing or empty"}
	}

	acc := newHourlyAccumulator(now)
	for _, period := range doc.Forecast {
		tsStr, ok := firstString(period, "period_start", "datetime", "start", "time")
		if !ok {
			continue
		}
		ts, err := parseTimestamp(tsStr)
		if err != nil {
			continue
		}
		value, _ := firstNumber(period, "pv_estimate", "power", "watt_hours", "value")
		acc.addSum(ts, value)
	}
	return acc.forecastPoints(), nil
}

func wattHoursForecast(payload []byte, now time.Time) ([]domain.ForecastPoint, error) {
	var doc struct {
		WattHours map[string]float64 `json:"watt_hours"`
		Watts     map[string]float64 `json:"watts"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &domain.NormalizationError{Vendor: PVVendorWattHours, Attribute: "payload", Reason: "not a JSON document"}
	}
	entries := doc.WattHours
	if len(entries) == 0 {
		entries = doc.Watts
	}
	if len(entries) == 0 {
		return nil, &domain.NormalizationError{Vendor: PVVendorWattHours, Attribute: "watt_hours", Reason: "attribute missing or empty"}
	}

	acc := newHourlyAccumulator(now)
	for tsStr, value := range entries {
		ts, err := parseTimestamp(tsStr)
		if err != nil {
			continue
		}
		acc.addSum(ts, value)
	}
	return acc.forecastPoints(), nil
}

// hourlyAccumulator buckets samples into hour slots relative to the hour
// containing now. Exact-duplicate timestamps are dropped (first wins).
type hourlyAccumulator struct {
	start  time.Time
	sums   map[int]float64
	counts map[int]int
	seen   map[int64]bool
}

func newHourlyAccumulator(now time.Time) *hourlyAccumulator {
	return &hourlyAccumulator{
		start:  now.Truncate(time.Hour),
		sums:   make(map[int]float64),
		counts: make(map[int]int),
		seen:   make(map[int64]bool),
	}
}

func (a *hourlyAccumulator) slot(ts time.Time) (int, bool) {
	idx := int(ts.Sub(a.start) / time.Hour)
	if ts.Before(a.start) || idx >= HorizonHours {
		return 0, false
	}
	if a.seen[ts.Unix()] {
		return 0, false
	}
	a.seen[ts.Unix()] = true
	return idx, true
}

func (a *hourlyAccumulator) addSum(ts time.Time, value float64) {
	if idx, ok := a.slot(ts); ok {
		a.sums[idx] += value
		a.counts[idx]++
	}
}

func (a *hourlyAccumulator) orderedSlots() []int {
	slots := make([]int, 0, len(a.sums))
	for idx := range a.sums {
		slots = append(slots, idx)
	}
	sort.Ints(slots)
	return slots
}

func (a *hourlyAccumulator) forecastPoints() []domain.ForecastPoint {
	var points []domain.ForecastPoint
	for _, idx := range a.orderedSlots() {
		points = append(points, domain.ForecastPoint{
			PeriodStart: a.start.Add(time.Duration(idx) * time.Hour),
			EnergyWh:    a.sums[idx],
		})
	}
	return points
}

func (a *hourlyAccumulator) pricePoints() []domain.PricePoint {
	var points []domain.PricePoint
	for _, idx := range a.orderedSlots() {
		points = append(points, domain.PricePoint{
			PeriodStart: a.start.Add(time.Duration(idx) * time.Hour),
			PriceKWh:    a.sums[idx] / float64(a.counts[idx]),
		})
	}
	return points
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func firstString(entry map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := entry[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func firstNumber(entry map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := entry[key].(type) {
		case float64:
			return v, true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
