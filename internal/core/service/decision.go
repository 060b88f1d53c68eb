package service

import (
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"go.uber.org/zap"
)

type DecisionConfig struct {
	// StalenessWindow is how long an optimization result may be used for
	// control decisions after FetchedAt.
	StalenessWindow time.Duration
	// MaxGridChargeRateW scales the backend's 0..1 AC charge factor.
	MaxGridChargeRateW float64
	// MaxPVChargeRateW scales the backend's 0..1 DC charge factor.
	MaxPVChargeRateW float64
}

// DecisionEngine turns (override, optimization result, now) into a
// ControlDecision. It is a pure function of its inputs so the precedence and
// staleness rules can be tested without an actor system.
type DecisionEngine struct {
	cfg    DecisionConfig
	logger *zap.Logger
}

func NewDecisionEngine(cfg DecisionConfig, logger *zap.Logger) *DecisionEngine {
	return &DecisionEngine{
		cfg:    cfg,
		logger: logger.Named("decision"),
	}
}

// Evaluate applies the precedence order: active override, then a fresh
// optimization result, then the safe fallback (hold the battery, no grid
// charge, discharge disallowed).
func (e *DecisionEngine) Evaluate(ov *domain.Override, res *domain.OptimizationResult, now time.Time) domain.ControlDecision {
	if ov != nil {
		return e.overrideDecision(ov, res, now)
	}
	if res.Fresh(now, e.cfg.StalenessWindow) {
		return e.optimizerDecision(res, now)
	}
	return e.fallbackDecision(now)
}

func (e *DecisionEngine) overrideDecision(ov *domain.Override, res *domain.OptimizationResult, now time.Time) domain.ControlDecision {
	dec := domain.ControlDecision{
		Mode:           ov.Mode,
		OverrideActive: true,
		Source:         domain.DecisionSourceOverride,
		State:          domain.CoordinatorStateOverridden,
		ComputedAt:     now,
	}
	switch ov.Mode {
	case domain.InverterModeChargeFromGrid:
		if ov.ChargePowerW > 0 {
			dec.ACChargeDemandW = ov.ChargePowerW
		} else if res.Fresh(now, e.cfg.StalenessWindow) && res.ACCharge[0] > 0 {
			dec.ACChargeDemandW = res.ACCharge[0] * e.cfg.MaxGridChargeRateW
		} else {
			dec.ACChargeDemandW = e.cfg.MaxGridChargeRateW
		}
	case domain.InverterModeAvoidDischarge:
		// PV charging stays allowed while holding
		dec.DCChargeDemandW = e.cfg.MaxPVChargeRateW
	case domain.InverterModeDischargeAllowed:
		dec.DCChargeDemandW = e.cfg.MaxPVChargeRateW
		dec.DischargeAllowed = true
	}
	return dec
}

func (e *DecisionEngine) optimizerDecision(res *domain.OptimizationResult, now time.Time) domain.ControlDecision {
	dec := domain.ControlDecision{
		ACChargeDemandW:  res.ACCharge[0] * e.cfg.MaxGridChargeRateW,
		DCChargeDemandW:  res.DCCharge[0] * e.cfg.MaxPVChargeRateW,
		DischargeAllowed: res.DischargeAllowed[0],
		Source:           domain.DecisionSourceOptimizer,
		State:            domain.CoordinatorStateNormal,
		ComputedAt:       now,
	}
	switch {
	case dec.ACChargeDemandW > 0:
		dec.Mode = domain.InverterModeChargeFromGrid
	case !dec.DischargeAllowed:
		dec.Mode = domain.InverterModeAvoidDischarge
	default:
		dec.Mode = domain.InverterModeDischargeAllowed
	}
	return dec
}

func (e *DecisionEngine) fallbackDecision(now time.Time) domain.ControlDecision {
	e.logger.Debug("no fresh optimization result, using safe default")
	return domain.ControlDecision{
		Mode:             domain.InverterModeAvoidDischarge,
		ACChargeDemandW:  0,
		DCChargeDemandW:  0,
		DischargeAllowed: false,
		Source:           domain.DecisionSourceFallback,
		State:            domain.CoordinatorStateDegraded,
		ComputedAt:       now,
	}
}
