package actorutil

import (
	"errors"
	"testing"

	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsedMQTTCommandToCommand(t *testing.T) {

	assert := assert.New(t)

	// select mode
	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		Command: "select", DeviceId: domain.SELECT_ID_INVERTER_MODE, Payload: "charge_from_grid",
	})
	require.NoError(t, err)
	assert.Equal(domain.SetModeRequest{Mode: domain.InverterModeChargeFromGrid}, cmd)

	// override switch off clears
	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		Command: "switch", DeviceId: domain.SWITCH_ID_OVERRIDE, Payload: mqtt.MQTT_PAYLOAD_OFF,
	})
	require.NoError(t, err)
	assert.Equal(domain.ClearOverrideRequest{}, cmd)

	// SoC number
	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		Command: "number", DeviceId: domain.INPUT_NUMBER_ID_MIN_SOC, Payload: "20",
	})
	require.NoError(t, err)
	assert.Equal(domain.SetSOCLimitsRequest{
		MinSOCPercent: 20,
		MaxSOCPercent: domain.SOCLimitKeepCurrent,
	}, cmd)

	// unknown device is ignored without an error
	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		Command: "number", DeviceId: "something_else", Payload: "20",
	})
	require.NoError(t, err)
	assert.Nil(cmd)
}

func TestParsedMQTTCommandToCommandBadNumber(t *testing.T) {

	assert := assert.New(t)

	// out of range values are rejected, not silently dropped
	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		Command: "number", DeviceId: domain.INPUT_NUMBER_ID_MAX_SOC, Payload: "140",
	})
	assert.Nil(cmd)
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(domain.INPUT_NUMBER_ID_MAX_SOC, cfgErr.Param)

	// so is garbage
	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		Command: "number", DeviceId: domain.INPUT_NUMBER_ID_MAX_SOC, Payload: "high",
	})
	assert.Nil(cmd)
	require.True(t, errors.As(err, &cfgErr))
}
