package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSavingsRoundTrip(t *testing.T) {

	assert := assert.New(t)

	s := testStore(t)

	// empty store has no snapshot
	snap, err := s.LoadSavings()
	require.NoError(t, err)
	assert.Nil(snap)

	saved := service.SavingsSnapshot{
		TotalSavingsEUR:   1.23,
		TotalChargedKWh:   4.5,
		AvgChargePriceKWh: 0.09,
		TodaySavingsEUR:   0.4,
		TodayDate:         "2026-08-24",
	}
	require.NoError(t, s.SaveSavings(saved))

	snap, err = s.LoadSavings()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(saved, *snap)

	// singleton row gets replaced, not appended
	saved.TotalSavingsEUR = 2.0
	require.NoError(t, s.SaveSavings(saved))
	snap, err = s.LoadSavings()
	require.NoError(t, err)
	assert.Equal(2.0, snap.TotalSavingsEUR)
}

func TestDecisionHistory(t *testing.T) {

	assert := assert.New(t)

	s := testStore(t)

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordDecision(domain.ControlDecision{
			Mode:             domain.InverterModeChargeFromGrid,
			ACChargeDemandW:  float64(1000 * (i + 1)),
			DischargeAllowed: false,
			OverrideActive:   i == 2,
			Source:           domain.DecisionSourceOptimizer,
			State:            domain.CoordinatorStateNormal,
			ComputedAt:       base.Add(time.Duration(i) * time.Minute),
		}))
	}

	decisions, err := s.RecentDecisions(2)
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	// newest first
	assert.Equal(3000.0, decisions[0].ACChargeDemandW)
	assert.True(decisions[0].OverrideActive)
	assert.Equal(2000.0, decisions[1].ACChargeDemandW)
	assert.Equal(domain.DecisionSourceOptimizer, decisions[0].Source)
	assert.Equal(domain.CoordinatorStateNormal, decisions[0].State)
	assert.True(decisions[0].ComputedAt.Equal(base.Add(2 * time.Minute)))
}
