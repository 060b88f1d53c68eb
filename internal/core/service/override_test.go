package service

import (
	"testing"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

func TestOverrideSetAndCurrent(t *testing.T) {

	assert := assert.New(t)

	m := NewOverrideManager()

	ov, err := m.Set(domain.InverterModeChargeFromGrid, 60, 3000, baseTime)
	require.NoError(t, err)
	assert.Equal(baseTime.Add(60*time.Minute), ov.ExpiresAt)

	current := m.Current(baseTime.Add(30 * time.Minute))
	require.NotNil(t, current)
	assert.Equal(domain.InverterModeChargeFromGrid, current.Mode)
	assert.Equal(float64(3000), current.ChargePowerW)
}

func TestOverrideLazyExpiry(t *testing.T) {

	m := NewOverrideManager()

	_, err := m.Set(domain.InverterModeAvoidDischarge, 30, 0, baseTime)
	require.NoError(t, err)

	require.NotNil(t, m.Current(baseTime.Add(29*time.Minute)))

	// at the boundary the override is already gone
	assert.Nil(t, m.Current(baseTime.Add(30*time.Minute)))

	// and stays gone, even for an earlier read afterwards
	assert.Nil(t, m.Current(baseTime))
}

func TestOverrideReplaceIsAtomic(t *testing.T) {

	assert := assert.New(t)

	m := NewOverrideManager()

	_, err := m.Set(domain.InverterModeAvoidDischarge, 120, 0, baseTime)
	require.NoError(t, err)

	_, err = m.Set(domain.InverterModeDischargeAllowed, 15, 0, baseTime.Add(time.Minute))
	require.NoError(t, err)

	current := m.Current(baseTime.Add(2 * time.Minute))
	require.NotNil(t, current)
	assert.Equal(domain.InverterModeDischargeAllowed, current.Mode)
	assert.Equal(baseTime.Add(16*time.Minute), current.ExpiresAt)
}

func TestOverrideClearIdempotent(t *testing.T) {

	assert := assert.New(t)

	m := NewOverrideManager()

	_, err := m.Set(domain.InverterModeAvoidDischarge, 30, 0, baseTime)
	require.NoError(t, err)

	assert.True(m.Clear())
	assert.Nil(m.Current(baseTime))
	assert.False(m.Clear())
	assert.False(m.Clear())
}

func TestOverrideRejectsInvalidParams(t *testing.T) {

	m := NewOverrideManager()

	_, err := m.Set(domain.InverterModeAvoidDischarge, 0, 0, baseTime)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "duration_minutes", cfgErr.Param)

	_, err = m.Set(domain.InverterModeChargeFromGrid, 10, -100, baseTime)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "charge_power_w", cfgErr.Param)

	_, err = m.Set(domain.InverterModeAuto, 10, 0, baseTime)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "mode", cfgErr.Param)

	_, err = m.Set(domain.InverterModeAvoidDischarge, 10, 500, baseTime)
	require.ErrorAs(t, err, &cfgErr)

	// a rejected request never clobbers existing state
	_, err = m.Set(domain.InverterModeAvoidDischarge, 30, 0, baseTime)
	require.NoError(t, err)
	_, err = m.Set(domain.InverterModeDischargeAllowed, 0, 0, baseTime)
	require.Error(t, err)
	current := m.Current(baseTime)
	require.NotNil(t, current)
	assert.Equal(t, domain.InverterModeAvoidDischarge, current.Mode)
}
