package service

import (
	"testing"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testEngine() *DecisionEngine {
	return NewDecisionEngine(DecisionConfig{
		StalenessWindow:    2 * time.Hour,
		MaxGridChargeRateW: 5000,
		MaxPVChargeRateW:   4000,
	}, zap.NewNop())
}

func freshResult(now time.Time, ac, dc float64, discharge bool) *domain.OptimizationResult {
	return &domain.OptimizationResult{
		ACCharge:         []float64{ac, 0},
		DCCharge:         []float64{dc, 1},
		DischargeAllowed: []bool{discharge, true},
		FetchedAt:        now.Add(-5 * time.Minute),
	}
}

func TestDecisionFromOptimizerResult(t *testing.T) {

	assert := assert.New(t)
	e := testEngine()
	now := baseTime

	// ac charge factor drives grid charging
	dec := e.Evaluate(nil, freshResult(now, 0.5, 0, false), now)
	assert.Equal(domain.InverterModeChargeFromGrid, dec.Mode)
	assert.InDelta(2500, dec.ACChargeDemandW, 0.001)
	assert.Equal(domain.DecisionSourceOptimizer, dec.Source)
	assert.Equal(domain.CoordinatorStateNormal, dec.State)
	assert.False(dec.OverrideActive)

	// no ac charge, discharge blocked
	dec = e.Evaluate(nil, freshResult(now, 0, 1, false), now)
	assert.Equal(domain.InverterModeAvoidDischarge, dec.Mode)
	assert.InDelta(4000, dec.DCChargeDemandW, 0.001)
	assert.False(dec.DischargeAllowed)

	// no ac charge, discharge allowed
	dec = e.Evaluate(nil, freshResult(now, 0, 0.5, true), now)
	assert.Equal(domain.InverterModeDischargeAllowed, dec.Mode)
	assert.True(dec.DischargeAllowed)
}

func TestDecisionOverridePrecedence(t *testing.T) {

	assert := assert.New(t)
	e := testEngine()
	now := baseTime

	ov := &domain.Override{
		Mode:      domain.InverterModeAvoidDischarge,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	// the optimizer wants to discharge, the override wins
	dec := e.Evaluate(ov, freshResult(now, 0, 0, true), now)
	assert.Equal(domain.InverterModeAvoidDischarge, dec.Mode)
	assert.True(dec.OverrideActive)
	assert.Equal(domain.DecisionSourceOverride, dec.Source)
	assert.Equal(domain.CoordinatorStateOverridden, dec.State)
	assert.False(dec.DischargeAllowed)
	assert.Equal(float64(0), dec.ACChargeDemandW)
}

func TestDecisionOverrideChargePower(t *testing.T) {

	assert := assert.New(t)
	e := testEngine()
	now := baseTime

	ov := &domain.Override{
		Mode:         domain.InverterModeChargeFromGrid,
		ChargePowerW: 2200,
		ExpiresAt:    now.Add(time.Hour),
	}
	dec := e.Evaluate(ov, nil, now)
	assert.InDelta(2200, dec.ACChargeDemandW, 0.001)

	// without explicit power, fall back to the optimizer's demand if fresh
	ov.ChargePowerW = 0
	dec = e.Evaluate(ov, freshResult(now, 0.4, 0, false), now)
	assert.InDelta(2000, dec.ACChargeDemandW, 0.001)

	// and to the configured max when no result is usable
	dec = e.Evaluate(ov, nil, now)
	assert.InDelta(5000, dec.ACChargeDemandW, 0.001)
}

func TestDecisionStaleResultFallsBack(t *testing.T) {

	assert := assert.New(t)
	e := testEngine()
	now := baseTime

	stale := freshResult(now, 0, 0, true)
	stale.FetchedAt = now.Add(-3 * time.Hour)

	dec := e.Evaluate(nil, stale, now)
	assert.Equal(domain.InverterModeAvoidDischarge, dec.Mode)
	assert.Equal(float64(0), dec.ACChargeDemandW)
	assert.Equal(float64(0), dec.DCChargeDemandW)
	assert.False(dec.DischargeAllowed)
	assert.Equal(domain.DecisionSourceFallback, dec.Source)
	assert.Equal(domain.CoordinatorStateDegraded, dec.State)
}

func TestDecisionNoResultFallsBack(t *testing.T) {

	assert := assert.New(t)
	e := testEngine()

	dec := e.Evaluate(nil, nil, baseTime)
	assert.Equal(domain.CoordinatorStateDegraded, dec.State)
	assert.Equal(domain.DecisionSourceFallback, dec.Source)

	// empty arrays are treated the same as no result
	dec = e.Evaluate(nil, &domain.OptimizationResult{FetchedAt: baseTime}, baseTime)
	assert.Equal(domain.CoordinatorStateDegraded, dec.State)
}

func TestDecisionOverrideOutlivesStaleness(t *testing.T) {

	assert := assert.New(t)
	e := testEngine()
	now := baseTime

	// override active while the result went stale: still OVERRIDDEN, not DEGRADED
	ov := &domain.Override{
		Mode:      domain.InverterModeDischargeAllowed,
		ExpiresAt: now.Add(time.Hour),
	}
	stale := freshResult(now, 0, 0, false)
	stale.FetchedAt = now.Add(-5 * time.Hour)

	dec := e.Evaluate(ov, stale, now)
	assert.Equal(domain.CoordinatorStateOverridden, dec.State)
	assert.True(dec.DischargeAllowed)
}
