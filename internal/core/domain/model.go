package domain

import (
	"fmt"
	"time"
)

// InverterMode is the externally visible control mode. Numeric values are part
// of the MQTT/HTTP contract and must not be renumbered.
type InverterMode int

const (
	InverterModeAuto             InverterMode = -2
	InverterModeStartup          InverterMode = -1
	InverterModeChargeFromGrid   InverterMode = 0
	InverterModeAvoidDischarge   InverterMode = 1
	InverterModeDischargeAllowed InverterMode = 2
)

func (m InverterMode) String() string {
	switch m {
	case InverterModeAuto:
		return "Auto"
	case InverterModeStartup:
		return "Startup"
	case InverterModeChargeFromGrid:
		return "Charge from Grid"
	case InverterModeAvoidDischarge:
		return "Avoid Discharge"
	case InverterModeDischargeAllowed:
		return "Discharge Allowed"
	default:
		return fmt.Sprintf("InverterMode(%d)", int(m))
	}
}

// Key is the machine-readable id used on command topics and the HTTP API.
func (m InverterMode) Key() string {
	switch m {
	case InverterModeAuto:
		return "auto"
	case InverterModeStartup:
		return "startup"
	case InverterModeChargeFromGrid:
		return "charge_from_grid"
	case InverterModeAvoidDischarge:
		return "avoid_discharge"
	case InverterModeDischargeAllowed:
		return "discharge_allowed"
	default:
		return "unknown"
	}
}

func ParseInverterMode(s string) (InverterMode, error) {
	switch s {
	case "auto", "Auto":
		return InverterModeAuto, nil
	case "charge_from_grid", "Charge from Grid":
		return InverterModeChargeFromGrid, nil
	case "avoid_discharge", "Avoid Discharge":
		return InverterModeAvoidDischarge, nil
	case "discharge_allowed", "Discharge Allowed":
		return InverterModeDischargeAllowed, nil
	default:
		return InverterModeAuto, &ConfigurationError{Param: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

// OverrideModes lists the modes a manual override may force.
func OverrideModes() []InverterMode {
	return []InverterMode{InverterModeChargeFromGrid, InverterModeAvoidDischarge, InverterModeDischargeAllowed}
}

func IsOverrideMode(m InverterMode) bool {
	switch m {
	case InverterModeChargeFromGrid, InverterModeAvoidDischarge, InverterModeDischargeAllowed:
		return true
	}
	return false
}

// ForecastPoint is one hourly slot of expected PV production.
type ForecastPoint struct {
	PeriodStart time.Time
	EnergyWh    float64
}

// PricePoint is one hourly slot of grid energy price in EUR/kWh.
type PricePoint struct {
	PeriodStart time.Time
	PriceKWh    float64
}

type BatteryState struct {
	SOCPercent          float64
	CapacityWh          float64
	MinSOCPercent       float64
	MaxSOCPercent       float64
	MaxChargePowerW     float64
	ChargeEfficiency    float64
	DischargeEfficiency float64
}

// UsableEnergyWh is the energy currently stored above the configured floor.
func (b BatteryState) UsableEnergyWh() float64 {
	usable := (b.SOCPercent - b.MinSOCPercent) / 100 * b.CapacityWh
	if usable < 0 {
		return 0
	}
	return usable
}

type OptimizationRequest struct {
	Battery       BatteryState
	PVForecast    []ForecastPoint
	Prices        []PricePoint
	LoadForecastW []float64
	FeedInKWh     float64
	StartSolution []float64
	StartHour     int
	// PeriodStart anchors slot 0 of the horizon. Forecast and price points
	// are placed by their own PeriodStart relative to it, not by slice order.
	PeriodStart time.Time
}

// OptimizationResult is the parsed backend plan. Slices are indexed by hour
// starting at the hour the request was made. FetchedAt orders competing
// results: a result may only replace one with an older FetchedAt.
type OptimizationResult struct {
	ACCharge         []float64
	DCCharge         []float64
	DischargeAllowed []bool
	SOCPerHour       []float64
	GridImportWh     []float64
	GridExportWh     []float64
	LoadWh           []float64
	TotalCostEUR     float64
	TotalLossesWh    float64
	StartSolution    []float64
	ApplianceStart   *int
	FetchedAt        time.Time
}

// Fresh reports whether the result is still usable for control decisions.
func (r *OptimizationResult) Fresh(now time.Time, window time.Duration) bool {
	if r == nil || len(r.ACCharge) == 0 || len(r.DCCharge) == 0 || len(r.DischargeAllowed) == 0 {
		return false
	}
	return now.Sub(r.FetchedAt) <= window
}

// Override forces a mode for a bounded time. Expiry is evaluated lazily at
// read time; there is no timer attached to it.
type Override struct {
	Mode         InverterMode
	ChargePowerW float64
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

func (o Override) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

type DecisionSource string

const (
	DecisionSourceOptimizer DecisionSource = "optimizer"
	DecisionSourceOverride  DecisionSource = "override"
	DecisionSourceFallback  DecisionSource = "fallback"
)

// CoordinatorState is the mode state machine state.
type CoordinatorState string

const (
	CoordinatorStateNormal     CoordinatorState = "normal"
	CoordinatorStateOverridden CoordinatorState = "overridden"
	CoordinatorStateDegraded   CoordinatorState = "degraded"
)

// ControlDecision is the single output of the decision engine: what the
// inverter should do right now and where that instruction came from.
type ControlDecision struct {
	Mode             InverterMode
	ACChargeDemandW  float64
	DCChargeDemandW  float64
	DischargeAllowed bool
	OverrideActive   bool
	Source           DecisionSource
	State            CoordinatorState
	ComputedAt       time.Time
}

// Same compares the externally observable fields, ignoring ComputedAt.
func (d ControlDecision) Same(other ControlDecision) bool {
	return d.Mode == other.Mode &&
		d.ACChargeDemandW == other.ACChargeDemandW &&
		d.DCChargeDemandW == other.DCChargeDemandW &&
		d.DischargeAllowed == other.DischargeAllowed &&
		d.OverrideActive == other.OverrideActive &&
		d.Source == other.Source &&
		d.State == other.State
}
