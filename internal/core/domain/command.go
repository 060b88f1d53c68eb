package domain

import "fmt"

// ControlRequest

type ControlRequest interface {
	ActorRequest
	ControlCommand() string
}

type ControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ControlRequestMixIn) ControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// ControlResponse

type ControlResponse interface {
	ActorResponse
	ControlResponse() string
}

type ControlResponseMixIn struct {
	ActorResponseMixIn
}

func (r ControlResponseMixIn) ControlResponse() string {
	return fmt.Sprintf("%T", r)
}

// Control commands

type SetModeRequest struct {
	ControlRequestMixIn
	Mode InverterMode
}

type SetModeResponse struct {
	ControlResponseMixIn
	Mode InverterMode
}

type SetOverrideRequest struct {
	ControlRequestMixIn
	Mode            InverterMode
	DurationMinutes uint
	ChargePowerW    float64
}

type SetOverrideResponse struct {
	ControlResponseMixIn
	Override Override
}

type ClearOverrideRequest struct {
	ControlRequestMixIn
}

type ClearOverrideResponse struct {
	ControlResponseMixIn
	Cleared bool
}

type SetSOCLimitsRequest struct {
	ControlRequestMixIn
	MinSOCPercent float64
	MaxSOCPercent float64
}

type SetSOCLimitsResponse struct {
	ControlResponseMixIn
	MinSOCPercent float64
	MaxSOCPercent float64
}

// ensure interface compliance
var _ ControlRequest = (*SetOverrideRequest)(nil)
