package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/eoscoord/eoscoord/internal/config"
	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/port"
	"github.com/eoscoord/eoscoord/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// EVCCActor mirrors mode changes to an external evcc instance. It only
// talks when the mode actually changes; a failed sync is retried on the
// next change.
type EVCCActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	service  port.BatteryModeService
	logger   *zap.Logger

	lastMode *domain.InverterMode
}

type probeResult struct {
	err error
}

type syncResult struct {
	mode domain.InverterMode
	err  error
}

func NewEVCCActor(config *config.Config, service port.BatteryModeService, logger *zap.Logger) *EVCCActor {
	act := &EVCCActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		service:  service,
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_EVCC, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *EVCCActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *EVCCActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("evcc@starting started")

		actorutil.NewBackgroundTask(ctx, func() (*probeResult, error) {
			tctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return &probeResult{err: state.service.Probe(tctx)}, nil
		}).WithTimeout(15 * time.Second).Recover(func(err error) probeResult {
			return probeResult{err: err}
		}).PipeTo(ctx.Self())
	case probeResult:
		if msg.err != nil {
			// let the supervisor back off and retry
			state.logger.Error("evcc@starting probe failed", zap.Error(msg.err))
			panic(msg.err)
		}
		state.logger.Info("evcc@starting reachable")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("evcc@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *EVCCActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("evcc@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_EVCC,
			Healthy: true,
			State:   "idle",
		})
	case domain.SyncBatteryMode:
		if state.lastMode != nil && *state.lastMode == msg.Mode {
			return
		}
		state.logger.Info("evcc@default sync mode", zap.String("mode", msg.Mode.String()))
		mode := msg.Mode
		actorutil.NewBackgroundTask(ctx, func() (*syncResult, error) {
			tctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return &syncResult{mode: mode, err: state.service.SetBatteryMode(tctx, mode)}, nil
		}).WithTimeout(15 * time.Second).Recover(func(err error) syncResult {
			return syncResult{mode: mode, err: err}
		}).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingSyncReceive)
	case *actor.Stopping:
		state.reset()
	default:
		state.logger.Debug("evcc@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *EVCCActor) WaitingSyncReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case syncResult:
		if msg.err != nil {
			// forget the last mode so the next decision retries the sync
			state.logger.Error("evcc@waitingSync sync failed", zap.Error(msg.err))
			state.lastMode = nil
		} else {
			mode := msg.mode
			state.lastMode = &mode
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.reset()
	default:
		state.logger.Debug("evcc@waitingSync stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// reset hands battery control back to evcc on shutdown, best effort.
func (state *EVCCActor) reset() {
	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := state.service.ResetBatteryMode(tctx); err != nil {
		state.logger.Warn("evcc: reset failed", zap.Error(err))
	}
}
