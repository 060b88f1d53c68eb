package service

import (
	"math"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"go.uber.org/zap"
)

// SavingsSnapshot is the accumulated bookkeeping. It is what gets persisted
// and what the sensors expose.
type SavingsSnapshot struct {
	TotalSavingsEUR     float64 `json:"total_savings_eur"`
	TotalGridCostEUR    float64 `json:"total_grid_cost_eur"`
	TotalChargedKWh     float64 `json:"total_charged_kwh"`
	TotalDischargedKWh  float64 `json:"total_discharged_kwh"`
	TotalPVChargedKWh   float64 `json:"total_pv_charged_kwh"`
	TotalGridChargedKWh float64 `json:"total_grid_charged_kwh"`
	AvgChargePriceKWh   float64 `json:"avg_charge_price_kwh"`
	TodaySavingsEUR     float64 `json:"today_savings_eur"`
	TodayGridCostEUR    float64 `json:"today_grid_cost_eur"`
	TodayPVChargedKWh   float64 `json:"today_pv_charged_kwh"`
	TodayGridChargedKWh float64 `json:"today_grid_charged_kwh"`
	TodayDate           string  `json:"today_date"`
}

// SavingsTracker attributes battery SOC deltas to grid charging, PV charging
// or discharging, and values them against the current price. Charged energy
// carries a volume-weighted average price; discharge savings are the spread
// between the current grid price and that average.
type SavingsTracker struct {
	snap           SavingsSnapshot
	lastSOC        *float64
	capacityWh     float64
	feedInPriceKWh float64
	logger         *zap.Logger
}

func NewSavingsTracker(capacityWh, feedInPriceKWh float64, logger *zap.Logger) *SavingsTracker {
	return &SavingsTracker{
		capacityWh:     capacityWh,
		feedInPriceKWh: feedInPriceKWh,
		logger:         logger.Named("savings"),
	}
}

// Restore seeds the tracker from a persisted snapshot.
func (t *SavingsTracker) Restore(snap SavingsSnapshot) {
	t.snap = snap
}

func (t *SavingsTracker) Snapshot() SavingsSnapshot {
	return t.snap
}

// Observe records one tick. mode is the control mode that was active while
// the SOC moved, priceKWh the current grid price.
func (t *SavingsTracker) Observe(now time.Time, socPercent, priceKWh float64, mode domain.InverterMode) {
	today := now.Format("2006-01-02")
	if t.snap.TodayDate != today {
		t.snap.TodayDate = today
		t.snap.TodaySavingsEUR = 0
		t.snap.TodayGridCostEUR = 0
		t.snap.TodayPVChargedKWh = 0
		t.snap.TodayGridChargedKWh = 0
	}

	if t.lastSOC == nil {
		soc := socPercent
		t.lastSOC = &soc
		return
	}

	energyKWh := (socPercent - *t.lastSOC) / 100 * t.capacityWh / 1000
	if math.Abs(energyKWh) < 0.01 {
		*t.lastSOC = socPercent
		return
	}

	if energyKWh > 0 {
		t.observeCharge(energyKWh, priceKWh, mode)
	} else {
		t.observeDischarge(-energyKWh, priceKWh)
	}
	*t.lastSOC = socPercent
}

func (t *SavingsTracker) observeCharge(energyKWh, priceKWh float64, mode domain.InverterMode) {
	var chargePrice float64
	if mode == domain.InverterModeChargeFromGrid {
		chargePrice = priceKWh
		t.snap.TotalGridCostEUR += energyKWh * priceKWh
		t.snap.TodayGridCostEUR += energyKWh * priceKWh
		t.snap.TotalGridChargedKWh += energyKWh
		t.snap.TodayGridChargedKWh += energyKWh
	} else {
		// PV charging: the feed-in tariff is the opportunity cost
		chargePrice = t.feedInPriceKWh
		t.snap.TotalPVChargedKWh += energyKWh
		t.snap.TodayPVChargedKWh += energyKWh
	}

	prevTotal := t.snap.TotalChargedKWh
	t.snap.TotalChargedKWh += energyKWh
	if prevTotal > 0 {
		t.snap.AvgChargePriceKWh = (t.snap.AvgChargePriceKWh*prevTotal + chargePrice*energyKWh) / t.snap.TotalChargedKWh
	} else {
		t.snap.AvgChargePriceKWh = chargePrice
	}

	t.logger.Debug("battery charged",
		zap.Float64("energy_kwh", energyKWh),
		zap.Float64("charge_price", chargePrice),
		zap.Float64("avg_charge_price", t.snap.AvgChargePriceKWh))
}

func (t *SavingsTracker) observeDischarge(energyKWh, priceKWh float64) {
	t.snap.TotalDischargedKWh += energyKWh

	if t.snap.AvgChargePriceKWh > 0 {
		saved := (priceKWh - t.snap.AvgChargePriceKWh) * energyKWh
		t.snap.TotalSavingsEUR += saved
		t.snap.TodaySavingsEUR += saved

		t.logger.Debug("battery discharged",
			zap.Float64("energy_kwh", energyKWh),
			zap.Float64("price", priceKWh),
			zap.Float64("saved_eur", saved))
	}
}
