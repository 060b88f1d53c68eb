package port

import (
	"context"

	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/service"
)

// OptimizerService is the optimization backend boundary.
type OptimizerService interface {
	HealthCheck(ctx context.Context) (string, error)
	Optimize(ctx context.Context, req domain.OptimizationRequest) (*domain.OptimizationResult, error)
}

// BatteryModeService is an external actuator that mirrors the control mode.
type BatteryModeService interface {
	Probe(ctx context.Context) error
	SetBatteryMode(ctx context.Context, mode domain.InverterMode) error
	ResetBatteryMode(ctx context.Context) error
}

// DecisionStore persists savings bookkeeping and decision history. It never
// feeds control decisions; the process starts degraded regardless.
type DecisionStore interface {
	LoadSavings() (*service.SavingsSnapshot, error)
	SaveSavings(snap service.SavingsSnapshot) error
	RecordDecision(dec domain.ControlDecision) error
	RecentDecisions(limit int) ([]domain.ControlDecision, error)
	Close() error
}
