package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL            = "total"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_BATTERY         = "battery"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_MONETARY        = "monetary"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_TIMESTAMP       = "timestamp"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	ENTITY_CLASS_CONFIG          = "config"
	INPUT_NUMBER_MODE_BOX        = "box"
	INPUT_NUMBER_MODE_SLIDER     = "slider"
)

func CoordinatorDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("eoscoord_%s", md5HashShort(baseTopic)),
		Manufacturer: "eoscoord",
		Model:        "Energy Optimization Coordinator",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Eoscoord %s", md5HashShort(baseTopic)),
	}
}

func BridgeSensors(bridgeDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Bridge connection state
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             domain.SENSOR_ID_BRIDGE_STATE,
		SensorType:     domain.SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, domain.SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func ControlSensors(device domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Active inverter mode
	sensors = append(sensors, domain.GenericSensor{
		Device:     device,
		Id:         domain.SENSOR_ID_INVERTER_MODE,
		SensorType: domain.SENSOR_TYPE_SENSOR,
		Name:       "Inverter mode",
		Icon:       "mdi:battery-sync",
		UniqueId:   uniqueId(device.Id, domain.SENSOR_ID_INVERTER_MODE),
	})

	// AC charge demand
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_AC_CHARGE_DEMAND,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "AC charge demand",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_AC_CHARGE_DEMAND),
	})

	// DC charge demand
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_DC_CHARGE_DEMAND,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "DC charge demand",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_DC_CHARGE_DEMAND),
	})

	// Decision source
	sensors = append(sensors, domain.GenericSensor{
		Device:         device,
		Id:             domain.SENSOR_ID_DECISION_SOURCE,
		SensorType:     domain.SENSOR_TYPE_SENSOR,
		Name:           "Decision source",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, domain.SENSOR_ID_DECISION_SOURCE),
	})

	// Coordinator state
	sensors = append(sensors, domain.GenericSensor{
		Device:         device,
		Id:             domain.SENSOR_ID_COORDINATOR_STATE,
		SensorType:     domain.SENSOR_TYPE_SENSOR,
		Name:           "Coordinator state",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, domain.SENSOR_ID_COORDINATOR_STATE),
	})

	return sensors
}

func OptimizationSensors(device domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Plan total cost
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_OPTIMIZATION_COST,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "Optimization cost",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_MONETARY,
		UnitOfMeasurement: "EUR",
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_OPTIMIZATION_COST),
	})

	// Plan conversion losses
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_OPTIMIZATION_LOSSES,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "Optimization losses",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "Wh",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_OPTIMIZATION_LOSSES),
	})

	// Battery SoC forecast for the next hour
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_SOC_FORECAST,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC forecast",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_SOC_FORECAST),
	})

	// Grid import planned for the next hour
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_GRID_IMPORT_NEXT,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "Grid import next hour",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "Wh",
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_GRID_IMPORT_NEXT),
	})

	// Grid export planned for the next hour
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_GRID_EXPORT_NEXT,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "Grid export next hour",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "Wh",
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_GRID_EXPORT_NEXT),
	})

	// Last successful optimization
	sensors = append(sensors, domain.GenericSensor{
		Device:         device,
		Id:             domain.SENSOR_ID_LAST_OPTIMIZATION,
		SensorType:     domain.SENSOR_TYPE_SENSOR,
		Name:           "Last optimization",
		DeviceClass:    DEVICE_CLASS_TIMESTAMP,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, domain.SENSOR_ID_LAST_OPTIMIZATION),
	})

	return sensors
}

func SavingsSensors(device domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Accumulated savings
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_TOTAL_SAVINGS,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "Total savings",
		StateClass:        STATE_CLASS_TOTAL,
		DeviceClass:       DEVICE_CLASS_MONETARY,
		UnitOfMeasurement: "EUR",
		Icon:              "mdi:piggy-bank",
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_TOTAL_SAVINGS),
	})

	// Savings since midnight
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_TODAY_SAVINGS,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "Today savings",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_MONETARY,
		UnitOfMeasurement: "EUR",
		Icon:              "mdi:piggy-bank-outline",
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_TODAY_SAVINGS),
	})

	// Volume weighted average charge price
	sensors = append(sensors, domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_AVG_CHARGE_PRICE,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "Average charge price",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_MONETARY,
		UnitOfMeasurement: "EUR/kWh",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:          uniqueId(device.Id, domain.SENSOR_ID_AVG_CHARGE_PRICE),
	})

	return sensors
}

func ControlBinarySensors(device domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Discharge allowed
	sensors = append(sensors, domain.GenericSensor{
		Device:     device,
		Id:         domain.BINARY_SENSOR_ID_DISCHARGE_ALLOWED,
		SensorType: domain.SENSOR_TYPE_BINARY,
		Name:       "Discharge allowed",
		Icon:       "mdi:battery-arrow-down",
		UniqueId:   uniqueId(device.Id, domain.BINARY_SENSOR_ID_DISCHARGE_ALLOWED),
	})

	// Override active
	sensors = append(sensors, domain.GenericSensor{
		Device:     device,
		Id:         domain.BINARY_SENSOR_ID_OVERRIDE_ACTIVE,
		SensorType: domain.SENSOR_TYPE_BINARY,
		Name:       "Override active",
		Icon:       "mdi:hand-back-right",
		UniqueId:   uniqueId(device.Id, domain.BINARY_SENSOR_ID_OVERRIDE_ACTIVE),
	})

	// Optimization backend health
	sensors = append(sensors, domain.GenericSensor{
		Device:         device,
		Id:             domain.BINARY_SENSOR_ID_OPTIMIZATION_OK,
		SensorType:     domain.SENSOR_TYPE_BINARY,
		Name:           "Optimization ok",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, domain.BINARY_SENSOR_ID_OPTIMIZATION_OK),
	})

	return sensors
}

func ControlSwitches(device domain.Device) []domain.GenericSwitch {

	var switches []domain.GenericSwitch

	// Override switch. Turning it off clears the active override; turning it
	// on does nothing (an override needs a mode, set via the select or API).
	switches = append(switches, domain.GenericSwitch{
		Device:   device,
		Id:       domain.SWITCH_ID_OVERRIDE,
		Name:     "Override",
		UniqueId: uniqueId(device.Id, domain.SWITCH_ID_OVERRIDE),
		Icon:     "mdi:hand-back-right",
	})

	return switches
}

func ControlSelects(device domain.Device) []domain.GenericSelect {

	var selects []domain.GenericSelect

	// Mode select
	options := []string{domain.InverterModeAuto.Key()}
	for _, m := range domain.OverrideModes() {
		options = append(options, m.Key())
	}
	selects = append(selects, domain.GenericSelect{
		Device:   device,
		Id:       domain.SELECT_ID_INVERTER_MODE,
		Name:     "Inverter mode",
		UniqueId: uniqueId(device.Id, domain.SELECT_ID_INVERTER_MODE),
		Icon:     "mdi:battery-sync-outline",
		Options:  options,
	})

	return selects
}

func ControlInputNumbers(device domain.Device, minSOC, maxSOC float64) []domain.GenericInputNumber {

	var inputNumbers []domain.GenericInputNumber

	// Battery SoC floor
	inputNumbers = append(inputNumbers, domain.GenericInputNumber{
		Device:       device,
		Id:           domain.INPUT_NUMBER_ID_MIN_SOC,
		Name:         "Battery min SoC",
		UniqueId:     uniqueId(device.Id, domain.INPUT_NUMBER_ID_MIN_SOC),
		Icon:         "mdi:battery-low",
		Max:          100,
		Min:          0,
		Step:         1,
		Mode:         INPUT_NUMBER_MODE_BOX,
		InitialValue: minSOC,
	})

	// Battery SoC ceiling
	inputNumbers = append(inputNumbers, domain.GenericInputNumber{
		Device:       device,
		Id:           domain.INPUT_NUMBER_ID_MAX_SOC,
		Name:         "Battery max SoC",
		UniqueId:     uniqueId(device.Id, domain.INPUT_NUMBER_ID_MAX_SOC),
		Icon:         "mdi:battery-high",
		Max:          100,
		Min:          0,
		Step:         1,
		Mode:         INPUT_NUMBER_MODE_BOX,
		InitialValue: maxSOC,
	})

	return inputNumbers
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
