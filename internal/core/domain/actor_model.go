package domain

import "time"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_COORDINATOR  = "coordinator"
	ACTOR_ID_OPTIMIZER    = "optimizer"
	ACTOR_ID_EVCC         = "evcc"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// SourceKind tags raw sensor payloads flowing in from MQTT.
type SourceKind string

const (
	SourceKindPVForecast SourceKind = "pv_forecast"
	SourceKindPrices     SourceKind = "prices"
	SourceKindBatterySOC SourceKind = "battery_soc"
	SourceKindLoad       SourceKind = "load"
)

// SourceSnapshotUpdate carries the latest raw payload of one upstream sensor.
// Payloads are kept opaque here; the normalizers interpret them at cycle time.
type SourceSnapshotUpdate struct {
	Kind       SourceKind
	Payload    []byte
	ReceivedAt time.Time
}

// OptimizationCycleTrigger starts an optimization cycle. Sent by the quartz
// job on schedule and by the refresh operation on demand.
type OptimizationCycleTrigger struct {
	Forced bool
}

// IngestOptimizationResult delivers a finished backend plan to the
// coordinator. CurrentPriceKWh is the grid price of the slot the plan
// starts in, used for savings attribution.
type IngestOptimizationResult struct {
	Result          OptimizationResult
	CurrentPriceKWh float64
}

// OptimizationStatusUpdate reports the outcome of the latest cycle attempt.
type OptimizationStatusUpdate struct {
	OK                  bool
	Status              string
	ConsecutiveFailures uint32
}

type GetBatteryStateRequest struct {
	ActorRequestMixIn
}

type GetBatteryStateResponse struct {
	ActorResponseMixIn
	Battery       BatteryState
	StartSolution []float64
}

type GetControlStateRequest struct {
	ActorRequestMixIn
}

type GetControlStateResponse struct {
	ActorResponseMixIn
	Decision         ControlDecision
	Battery          BatteryState
	Override         *Override
	Result           *OptimizationResult
	OptimizationOK   bool
	LastOptimization time.Time
}

// SyncBatteryMode asks the external actuator to mirror a mode change.
type SyncBatteryMode struct {
	Mode InverterMode
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	Selects      []GenericSelect
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
