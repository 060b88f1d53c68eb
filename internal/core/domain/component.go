package domain

const (
	SENSOR_TYPE_SENSOR = "sensor"
	SENSOR_TYPE_BINARY = "binary_sensor"

	SENSOR_ID_BRIDGE_STATE        = "bridge"
	SENSOR_ID_INVERTER_MODE       = "inverter_mode"
	SENSOR_ID_AC_CHARGE_DEMAND    = "ac_charge_demand"
	SENSOR_ID_DC_CHARGE_DEMAND    = "dc_charge_demand"
	SENSOR_ID_DECISION_SOURCE     = "decision_source"
	SENSOR_ID_COORDINATOR_STATE   = "coordinator_state"
	SENSOR_ID_OPTIMIZATION_COST   = "optimization_cost"
	SENSOR_ID_OPTIMIZATION_LOSSES = "optimization_losses"
	SENSOR_ID_SOC_FORECAST        = "battery_soc_forecast"
	SENSOR_ID_GRID_IMPORT_NEXT    = "grid_import_next_hour"
	SENSOR_ID_GRID_EXPORT_NEXT    = "grid_export_next_hour"
	SENSOR_ID_LAST_OPTIMIZATION   = "last_optimization"
	SENSOR_ID_TOTAL_SAVINGS       = "total_savings"
	SENSOR_ID_TODAY_SAVINGS       = "today_savings"
	SENSOR_ID_AVG_CHARGE_PRICE    = "avg_charge_price"

	BINARY_SENSOR_ID_DISCHARGE_ALLOWED = "discharge_allowed"
	BINARY_SENSOR_ID_OVERRIDE_ACTIVE   = "override_active"
	BINARY_SENSOR_ID_OPTIMIZATION_OK   = "optimization_ok"

	SWITCH_ID_OVERRIDE = "override"

	SELECT_ID_INVERTER_MODE = "mode"

	INPUT_NUMBER_ID_MIN_SOC = "min_soc"
	INPUT_NUMBER_ID_MAX_SOC = "max_soc"
)

// SOCLimitKeepCurrent marks one side of a SetSOCLimitsRequest as unchanged,
// for command surfaces that can only carry a single number.
const SOCLimitKeepCurrent = -1

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, duration, total_increasing (for acc energy)
	DeviceClass       string // power, energy, monetary, battery
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

type GenericSwitch struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

type GenericSelect struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
	Options  []string
}

type GenericInputNumber struct {
	Device       Device
	Id           string
	Name         string
	UniqueId     string
	Icon         string
	Max          float64
	Min          float64
	Step         float64
	Mode         string
	InitialValue float64
}
