package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBackendPort(t *testing.T) {

	assert := assert.New(t)

	port, err := DefaultBackendPort(BackendEOS)
	require.NoError(t, err)
	assert.Equal(uint(8503), port)

	port, err = DefaultBackendPort(BackendEVopt)
	require.NoError(t, err)
	assert.Equal(uint(8504), port)

	_, err = DefaultBackendPort("something")
	assert.Error(err)
}

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("EosCoord_1")
	require.NoError(t, err)
	assert.Equal("eoscoord_1", topic)

	_, err = CheckMQTTTopic("bad topic/with#chars")
	assert.Error(err)
}
