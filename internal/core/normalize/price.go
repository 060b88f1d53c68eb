package normalize

import (
	"encoding/json"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"
)

const (
	PriceVendorTibber   = "tibber"
	PriceVendorNordpool = "nordpool"
	PriceVendorENTSOE   = "entsoe"
	PriceVendorFixed    = "fixed"
)

// Prices converts a raw vendor payload into an hourly EUR/kWh series starting
// at the current hour. Sub-hourly samples (Tibber/EPEX 15-minute slots) are
// averaged per hour; duplicate timestamps keep the first value seen.
func Prices(vendor string, payload []byte, now time.Time) ([]domain.PricePoint, error) {
	switch vendor {
	case PriceVendorTibber:
		return tibberPrices(payload, now)
	case PriceVendorNordpool:
		return nordpoolPrices(payload, now)
	case PriceVendorENTSOE:
		return entsoePrices(payload, now)
	default:
		return nil, &domain.UnsupportedSourceError{Vendor: vendor}
	}
}

// FixedPrices builds a flat series over the full horizon. Used when the price
// source is configured as "fixed" instead of a live sensor.
func FixedPrices(priceKWh float64, now time.Time) []domain.PricePoint {
	start := now.Truncate(time.Hour)
	points := make([]domain.PricePoint, HorizonHours)
	for i := range points {
		points[i] = domain.PricePoint{
			PeriodStart: start.Add(time.Duration(i) * time.Hour),
			PriceKWh:    priceKWh,
		}
	}
	return points
}

func tibberPrices(payload []byte, now time.Time) ([]domain.PricePoint, error) {
	var doc struct {
		Prices []map[string]any `json:"prices"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &domain.NormalizationError{Vendor: PriceVendorTibber, Attribute: "payload", Reason: "not a JSON document"}
	}
	if len(doc.Prices) == 0 {
		return nil, &domain.NormalizationError{Vendor: PriceVendorTibber, Attribute: "prices", Reason: "attribute missing or empty"}
	}

	acc := newHourlyAccumulator(now)
	for _, entry := range doc.Prices {
		tsStr, ok := firstString(entry, "from", "startsAt")
		if !ok {
			continue
		}
		ts, err := parseTimestamp(tsStr)
		if err != nil {
			continue
		}
		price, ok := firstNumber(entry, "price", "total")
		if !ok {
			continue
		}
		acc.addSum(ts, price)
	}
	return acc.pricePoints(), nil
}

func nordpoolPrices(payload []byte, now time.Time) ([]domain.PricePoint, error) {
	var doc struct {
		RawToday       []json.RawMessage `json:"raw_today"`
		RawTomorrow    []json.RawMessage `json:"raw_tomorrow"`
		PricesToday    []json.RawMessage `json:"prices_today"`
		PricesTomorrow []json.RawMessage `json:"prices_tomorrow"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &domain.NormalizationError{Vendor: PriceVendorNordpool, Attribute: "payload", Reason: "not a JSON document"}
	}
	today := doc.PricesToday
	if len(today) == 0 {
		today = doc.RawToday
	}
	tomorrow := doc.PricesTomorrow
	if len(tomorrow) == 0 {
		tomorrow = doc.RawTomorrow
	}
	if len(today) == 0 && len(tomorrow) == 0 {
		return nil, &domain.NormalizationError{Vendor: PriceVendorNordpool, Attribute: "raw_today", Reason: "attribute missing or empty"}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// today before tomorrow, so today wins on overlapping hours
	acc := newHourlyAccumulator(now)
	addNordpoolDay(acc, today, midnight)
	addNordpoolDay(acc, tomorrow, midnight.Add(24*time.Hour))
	return acc.pricePoints(), nil
}

// addNordpoolDay accepts both dict entries ({start, value}) and plain numeric
// arrays positioned from the day's midnight.
func addNordpoolDay(acc *hourlyAccumulator, entries []json.RawMessage, dayStart time.Time) {
	for i, raw := range entries {
		var entry map[string]any
		if err := json.Unmarshal(raw, &entry); err == nil {
			ts := dayStart.Add(time.Duration(i) * time.Hour)
			if tsStr, ok := firstString(entry, "start", "time", "datetime"); ok {
				if parsed, err := parseTimestamp(tsStr); err == nil {
					ts = parsed
				}
			}
			if price, ok := firstNumber(entry, "value", "price"); ok {
				acc.addSum(ts, price)
			}
			continue
		}
		var price float64
		if err := json.Unmarshal(raw, &price); err == nil {
			acc.addSum(dayStart.Add(time.Duration(i)*time.Hour), price)
		}
	}
}

func entsoePrices(payload []byte, now time.Time) ([]domain.PricePoint, error) {
	var doc struct {
		Data   []map[string]any `json:"data"`
		Prices []map[string]any `json:"prices"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &domain.NormalizationError{Vendor: PriceVendorENTSOE, Attribute: "payload", Reason: "not a JSON document"}
	}
	entries := doc.Data
	if len(entries) == 0 {
		entries = doc.Prices
	}
	if len(entries) == 0 {
		return nil, &domain.NormalizationError{Vendor: PriceVendorENTSOE, Attribute: "data", Reason: "attribute missing or empty"}
	}

	acc := newHourlyAccumulator(now)
	for _, entry := range entries {
		tsStr, ok := firstString(entry, "time", "start", "datetime")
		if !ok {
			continue
		}
		ts, err := parseTimestamp(tsStr)
		if err != nil {
			continue
		}
		price, ok := firstNumber(entry, "price", "value")
		if !ok {
			continue
		}
		// day-ahead feeds quote EUR/MWh; anything above 1 cannot plausibly
		// be a EUR/kWh household price
		if price > 1 || price < -1 {
			price = price / 1000
		}
		acc.addSum(ts, price)
	}
	return acc.pricePoints(), nil
}
