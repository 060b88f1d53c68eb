package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"
)

// OverrideManager owns the single manual override slot. Setting a new
// override replaces the previous one atomically; expiry is evaluated lazily
// on read, there is no timer that could race a concurrent Set.
type OverrideManager struct {
	mu      sync.Mutex
	current *domain.Override
}

func NewOverrideManager() *OverrideManager {
	return &OverrideManager{}
}

// Set validates and installs a new override. An invalid request leaves any
// existing override untouched.
func (m *OverrideManager) Set(mode domain.InverterMode, durationMinutes uint, chargePowerW float64, now time.Time) (domain.Override, error) {
	if !domain.IsOverrideMode(mode) {
		return domain.Override{}, &domain.ConfigurationError{
			Param:  "mode",
			Reason: fmt.Sprintf("%s cannot be forced by an override", mode.Key()),
		}
	}
	if durationMinutes == 0 {
		return domain.Override{}, &domain.ConfigurationError{
			Param:  "duration_minutes",
			Reason: "must be > 0",
		}
	}
	if chargePowerW < 0 {
		return domain.Override{}, &domain.ConfigurationError{
			Param:  "charge_power_w",
			Reason: "must be >= 0",
		}
	}
	if chargePowerW > 0 && mode != domain.InverterModeChargeFromGrid {
		return domain.Override{}, &domain.ConfigurationError{
			Param:  "charge_power_w",
			Reason: "only meaningful for charge_from_grid",
		}
	}

	ov := domain.Override{
		Mode:         mode,
		ChargePowerW: chargePowerW,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(durationMinutes) * time.Minute),
	}

	m.mu.Lock()
	m.current = &ov
	m.mu.Unlock()
	return ov, nil
}

// Clear removes the override if one exists. Idempotent: clearing an absent
// override succeeds and reports false.
func (m *OverrideManager) Clear() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	had := m.current != nil
	m.current = nil
	return had
}

// Current returns a copy of the active override, expiring it in place if its
// end time has passed.
func (m *OverrideManager) Current(now time.Time) *domain.Override {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	if m.current.Expired(now) {
		m.current = nil
		return nil
	}
	ov := *m.current
	return &ov
}
