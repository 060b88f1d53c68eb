package evcc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eoscoord/eoscoord/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBatteryModeMapping(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("charge", batteryMode(domain.InverterModeChargeFromGrid))
	assert.Equal("hold", batteryMode(domain.InverterModeAvoidDischarge))
	assert.Equal("normal", batteryMode(domain.InverterModeDischargeAllowed))
	assert.Equal("normal", batteryMode(domain.InverterModeAuto))
}

func TestSetBatteryMode(t *testing.T) {

	assert := assert.New(t)

	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	require.NoError(t, client.SetBatteryMode(context.Background(), domain.InverterModeAvoidDischarge))
	assert.Equal(http.MethodPost, gotMethod)
	assert.Equal("/api/batterymode/hold", gotPath)

	require.NoError(t, client.ResetBatteryMode(context.Background()))
	assert.Equal(http.MethodDelete, gotMethod)
	assert.Equal("/api/batterymode", gotPath)

	require.NoError(t, client.Probe(context.Background()))
	assert.Equal(http.MethodGet, gotMethod)
	assert.Equal("/api/state", gotPath)
}

func TestSetBatteryModeServerError(t *testing.T) {

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	err := client.SetBatteryMode(context.Background(), domain.InverterModeChargeFromGrid)
	require.Error(t, err)
}
