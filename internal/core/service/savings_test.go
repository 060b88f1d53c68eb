package service

import (
	"testing"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSavingsChargeAndDischarge(t *testing.T) {

	assert := assert.New(t)

	// 10 kWh battery, 8 ct feed-in
	tr := NewSavingsTracker(10000, 0.08, zap.NewNop())
	now := baseTime

	// first observation only seeds the SOC baseline
	tr.Observe(now, 50, 0.30, domain.InverterModeDischargeAllowed)
	assert.Equal(float64(0), tr.Snapshot().TotalChargedKWh)

	// +20% SOC while grid charging = 2 kWh at 0.10
	tr.Observe(now.Add(time.Hour), 70, 0.10, domain.InverterModeChargeFromGrid)
	snap := tr.Snapshot()
	assert.InDelta(2, snap.TotalChargedKWh, 0.001)
	assert.InDelta(2, snap.TotalGridChargedKWh, 0.001)
	assert.InDelta(0.2, snap.TotalGridCostEUR, 0.001)
	assert.InDelta(0.10, snap.AvgChargePriceKWh, 0.0001)

	// +20% SOC from PV: avg charge price blends with the feed-in tariff
	tr.Observe(now.Add(2*time.Hour), 90, 0.30, domain.InverterModeDischargeAllowed)
	snap = tr.Snapshot()
	assert.InDelta(4, snap.TotalChargedKWh, 0.001)
	assert.InDelta(2, snap.TotalPVChargedKWh, 0.001)
	assert.InDelta(0.09, snap.AvgChargePriceKWh, 0.0001)

	// -30% SOC discharging at 0.40: savings = (0.40-0.09) * 3 kWh
	tr.Observe(now.Add(3*time.Hour), 60, 0.40, domain.InverterModeDischargeAllowed)
	snap = tr.Snapshot()
	assert.InDelta(3, snap.TotalDischargedKWh, 0.001)
	assert.InDelta(0.93, snap.TotalSavingsEUR, 0.001)
}

func TestSavingsIgnoresTinyChanges(t *testing.T) {

	tr := NewSavingsTracker(10000, 0.08, zap.NewNop())

	tr.Observe(baseTime, 50, 0.30, domain.InverterModeDischargeAllowed)
	tr.Observe(baseTime.Add(time.Minute), 50.05, 0.30, domain.InverterModeChargeFromGrid)

	assert.Equal(t, float64(0), tr.Snapshot().TotalChargedKWh)
}

func TestSavingsDailyRollover(t *testing.T) {

	assert := assert.New(t)

	tr := NewSavingsTracker(10000, 0.08, zap.NewNop())
	day1 := baseTime

	tr.Observe(day1, 50, 0.10, domain.InverterModeChargeFromGrid)
	tr.Observe(day1.Add(time.Hour), 70, 0.10, domain.InverterModeChargeFromGrid)
	tr.Observe(day1.Add(2*time.Hour), 50, 0.40, domain.InverterModeDischargeAllowed)

	snap := tr.Snapshot()
	assert.True(snap.TodaySavingsEUR > 0)
	total := snap.TotalSavingsEUR

	// next day: today's counters reset, totals stay
	day2 := day1.Add(24 * time.Hour)
	tr.Observe(day2, 50, 0.30, domain.InverterModeDischargeAllowed)

	snap = tr.Snapshot()
	assert.Equal(float64(0), snap.TodaySavingsEUR)
	assert.InDelta(total, snap.TotalSavingsEUR, 0.0001)
	assert.Equal(day2.Format("2006-01-02"), snap.TodayDate)
}

func TestSavingsRestore(t *testing.T) {

	tr := NewSavingsTracker(10000, 0.08, zap.NewNop())
	tr.Restore(SavingsSnapshot{TotalSavingsEUR: 12.5, AvgChargePriceKWh: 0.11, TotalChargedKWh: 100})

	snap := tr.Snapshot()
	assert.InDelta(t, 12.5, snap.TotalSavingsEUR, 0.0001)
	assert.InDelta(t, 0.11, snap.AvgChargePriceKWh, 0.0001)
}
