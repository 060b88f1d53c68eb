package events

import (
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/service"
)

// ControlDecisionToUpdateEvents flattens a decision into sensor updates.
func ControlDecisionToUpdateEvents(dec domain.ControlDecision) []domain.SensorUpdateEvent {
	return []domain.SensorUpdateEvent{
		domain.TextSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_INVERTER_MODE},
			Value:                  dec.Mode.String(),
		},
		domain.SelectSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SELECT_ID_INVERTER_MODE},
			Value:                  selectValue(dec),
		},
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_AC_CHARGE_DEMAND},
			Value:                  dec.ACChargeDemandW,
			Decimals:               0,
		},
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_DC_CHARGE_DEMAND},
			Value:                  dec.DCChargeDemandW,
			Decimals:               0,
		},
		domain.BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.BINARY_SENSOR_ID_DISCHARGE_ALLOWED},
			Value:                  dec.DischargeAllowed,
		},
		domain.BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.BINARY_SENSOR_ID_OVERRIDE_ACTIVE},
			Value:                  dec.OverrideActive,
		},
		domain.SwitchSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SWITCH_ID_OVERRIDE},
			Value:                  dec.OverrideActive,
		},
		domain.TextSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_DECISION_SOURCE},
			Value:                  string(dec.Source),
		},
		domain.TextSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_COORDINATOR_STATE},
			Value:                  string(dec.State),
		},
	}
}

// The mode select mirrors user intent: it shows auto while the optimizer is
// in charge and only flips to a concrete mode when an override holds it.
func selectValue(dec domain.ControlDecision) string {
	if dec.OverrideActive {
		return dec.Mode.Key()
	}
	return domain.InverterModeAuto.Key()
}

// OptimizationResultToUpdateEvents flattens a plan into sensor updates.
// A nil result only reports backend health.
func OptimizationResultToUpdateEvents(res *domain.OptimizationResult, ok bool) []domain.SensorUpdateEvent {
	updates := []domain.SensorUpdateEvent{
		domain.BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.BINARY_SENSOR_ID_OPTIMIZATION_OK},
			Value:                  ok,
		},
	}
	if res == nil {
		return updates
	}
	updates = append(updates,
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_OPTIMIZATION_COST},
			Value:                  res.TotalCostEUR,
			Decimals:               2,
		},
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_OPTIMIZATION_LOSSES},
			Value:                  res.TotalLossesWh,
			Decimals:               0,
		},
		domain.TextSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_LAST_OPTIMIZATION},
			Value:                  res.FetchedAt.Format(time.RFC3339),
		},
	)
	if len(res.SOCPerHour) > 0 {
		updates = append(updates, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_SOC_FORECAST},
			Value:                  res.SOCPerHour[0],
			Decimals:               1,
		})
	}
	if len(res.GridImportWh) > 0 {
		updates = append(updates, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_GRID_IMPORT_NEXT},
			Value:                  res.GridImportWh[0],
			Decimals:               0,
		})
	}
	if len(res.GridExportWh) > 0 {
		updates = append(updates, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_GRID_EXPORT_NEXT},
			Value:                  res.GridExportWh[0],
			Decimals:               0,
		})
	}
	return updates
}

func SavingsToUpdateEvents(snap service.SavingsSnapshot) []domain.SensorUpdateEvent {
	return []domain.SensorUpdateEvent{
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_TOTAL_SAVINGS},
			Value:                  snap.TotalSavingsEUR,
			Decimals:               2,
		},
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_TODAY_SAVINGS},
			Value:                  snap.TodaySavingsEUR,
			Decimals:               2,
		},
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_AVG_CHARGE_PRICE},
			Value:                  snap.AvgChargePriceKWh,
			Decimals:               4,
		},
	}
}

func SOCLimitsToUpdateEvents(minSOC, maxSOC float64) []domain.SensorUpdateEvent {
	return []domain.SensorUpdateEvent{
		domain.InputNumberSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.INPUT_NUMBER_ID_MIN_SOC},
			Value:                  minSOC,
			Decimals:               0,
		},
		domain.InputNumberSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.INPUT_NUMBER_ID_MAX_SOC},
			Value:                  maxSOC,
			Decimals:               0,
		},
	}
}
