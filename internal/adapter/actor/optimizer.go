package actor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eoscoord/eoscoord/internal/config"
	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/normalize"
	"github.com/eoscoord/eoscoord/internal/core/port"
	"github.com/eoscoord/eoscoord/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// OptimizerActor owns the optimization cycle: it caches the latest raw
// source payloads, and on each trigger normalizes them, asks the coordinator
// for battery state, runs the backend and hands the plan back.
type OptimizerActor struct {
	config      *config.Config
	behavior    actor.Behavior
	stash       *actorutil.Stash
	service     port.OptimizerService
	coordinator *actor.PID
	scheduler   *scheduler.TimerScheduler
	logger      *zap.Logger

	snapshots           map[domain.SourceKind]domain.SourceSnapshotUpdate
	consecutiveFailures uint32
	cancelRetry         scheduler.CancelFunc
}

type healthProbeResult struct {
	version string
	err     error
}

type optimizeTaskResult struct {
	result          *domain.OptimizationResult
	currentPriceKWh float64
	err             error
}

func NewOptimizerActor(config *config.Config, service port.OptimizerService, coordinator *actor.PID, logger *zap.Logger) *OptimizerActor {
	act := &OptimizerActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		service:     service,
		coordinator: coordinator,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_OPTIMIZER, logger),
		snapshots:   map[domain.SourceKind]domain.SourceSnapshotUpdate{},
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *OptimizerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *OptimizerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("optimizer@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)

		// probe the backend before accepting triggers
		actorutil.NewBackgroundTask(ctx, func() (*healthProbeResult, error) {
			tctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			version, err := state.service.HealthCheck(tctx)
			return &healthProbeResult{version: version, err: err}, nil
		}).WithTimeout(15 * time.Second).Recover(func(err error) healthProbeResult {
			return healthProbeResult{err: err}
		}).PipeTo(ctx.Self())
	case healthProbeResult:
		if msg.err != nil {
			// let the supervisor back off and retry
			state.logger.Error("optimizer@starting health check failed", zap.Error(msg.err))
			panic(msg.err)
		}
		state.logger.Info("optimizer@starting backend healthy", zap.String("version", msg.version))
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("optimizer@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *OptimizerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("optimizer@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_OPTIMIZER,
			Healthy: state.consecutiveFailures < state.config.Optimizer.MaxConsecutiveFailures,
			State:   "idle",
		})
	case domain.SourceSnapshotUpdate:
		state.logger.Debug("optimizer@default sourceSnapshot", zap.String("kind", string(msg.Kind)))
		state.snapshots[msg.Kind] = msg
	case domain.OptimizationCycleTrigger:
		state.logger.Debug("optimizer@default cycleTrigger", zap.Bool("forced", msg.Forced))
		if state.cancelRetry != nil {
			state.cancelRetry()
			state.cancelRetry = nil
		}
		// battery state and start solution live in the coordinator
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.coordinator, domain.GetBatteryStateRequest{}, 2*time.Second), func(err error) any {
			return domain.GetBatteryStateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
		state.behavior.BecomeStacked(state.WaitingBatteryStateReceive)
	default:
		state.logger.Debug("optimizer@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *OptimizerActor) WaitingBatteryStateReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetBatteryStateResponse:
		if msg.HasResponseError() {
			state.logger.Error("optimizer@waitingBattery GetBatteryStateResponse error", zap.Error(msg.GetResponseError()))
			state.behavior.UnbecomeStacked()
			state.cycleFailed(ctx, msg.GetResponseError())
			state.stash.UnstashAll(ctx)
			return
		}
		req, err := state.buildRequest(msg.Battery, msg.StartSolution, time.Now())
		if err != nil {
			// missing or malformed inputs are not a backend failure; wait
			// for better data instead of burning retries
			state.logger.Warn("optimizer@waitingBattery cycle skipped", zap.Error(err))
			ctx.Send(state.coordinator, domain.OptimizationStatusUpdate{
				OK:                  state.consecutiveFailures == 0,
				Status:              err.Error(),
				ConsecutiveFailures: state.consecutiveFailures,
			})
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
			return
		}
		timeout := time.Duration(state.config.EOS.TimeoutSeconds) * time.Second
		currentPrice := req.Prices[0].PriceKWh
		actorutil.NewBackgroundTask(ctx, func() (*optimizeTaskResult, error) {
			tctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			result, err := state.service.Optimize(tctx, *req)
			return &optimizeTaskResult{result: result, currentPriceKWh: currentPrice, err: err}, nil
		}).WithTimeout(timeout + 5*time.Second).Recover(func(err error) optimizeTaskResult {
			return optimizeTaskResult{currentPriceKWh: currentPrice, err: err}
		}).PipeTo(ctx.Self())
		state.behavior.UnbecomeStacked()
		state.behavior.BecomeStacked(state.WaitingOptimizeReceive)
	default:
		state.logger.Debug("optimizer@waitingBattery stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *OptimizerActor) WaitingOptimizeReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case optimizeTaskResult:
		state.behavior.UnbecomeStacked()
		if msg.err != nil {
			state.cycleFailed(ctx, msg.err)
		} else {
			state.logger.Info("optimizer@waitingOptimize cycle finished",
				zap.Float64("total_cost_eur", msg.result.TotalCostEUR))
			state.consecutiveFailures = 0
			ctx.Send(state.coordinator, domain.IngestOptimizationResult{
				Result:          *msg.result,
				CurrentPriceKWh: msg.currentPriceKWh,
			})
			ctx.Send(state.coordinator, domain.OptimizationStatusUpdate{
				OK:     true,
				Status: "ok",
			})
		}
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("optimizer@waitingOptimize stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *OptimizerActor) cycleFailed(ctx actor.Context, err error) {
	state.consecutiveFailures++
	state.logger.Error("optimizer cycle failed", zap.Error(err),
		zap.Uint32("consecutive_failures", state.consecutiveFailures))
	ctx.Send(state.coordinator, domain.OptimizationStatusUpdate{
		OK:                  false,
		Status:              err.Error(),
		ConsecutiveFailures: state.consecutiveFailures,
	})
	if state.consecutiveFailures >= state.config.Optimizer.MaxConsecutiveFailures {
		state.logger.Error("optimizer giving up until next scheduled cycle")
		return
	}
	backoff := retryBackoff(state.config.Optimizer, state.consecutiveFailures)
	state.logger.Sugar().Infof("optimizer retrying in %s", backoff)
	state.cancelRetry = state.scheduler.RequestOnce(backoff, ctx.Self(), domain.OptimizationCycleTrigger{})
}

// retryBackoff doubles the base delay per consecutive failure, capped.
func retryBackoff(cfg config.OptimizerConfig, failures uint32) time.Duration {
	backoff := time.Duration(cfg.RetryBackoffSeconds) * time.Second
	for i := uint32(1); i < failures; i++ {
		backoff *= 2
	}
	max := time.Duration(cfg.MaxRetryBackoffSeconds) * time.Second
	if backoff > max {
		backoff = max
	}
	return backoff
}

func (state *OptimizerActor) buildRequest(battery domain.BatteryState, startSolution []float64, now time.Time) (*domain.OptimizationRequest, error) {
	pvSnap, havePV := state.snapshots[domain.SourceKindPVForecast]
	if !havePV {
		return nil, &domain.InsufficientDataError{Missing: []string{"pv_forecast"}}
	}
	pv, err := normalize.PVForecast(state.config.Sources.PVVendor, pvSnap.Payload, now)
	if err != nil {
		return nil, err
	}

	var prices []domain.PricePoint
	if state.config.Sources.PriceVendor == normalize.PriceVendorFixed {
		prices = normalize.FixedPrices(state.config.Sources.FixedPriceKWh, now)
	} else {
		priceSnap, havePrices := state.snapshots[domain.SourceKindPrices]
		if !havePrices {
			return nil, &domain.InsufficientDataError{Missing: []string{"prices"}}
		}
		prices, err = normalize.Prices(state.config.Sources.PriceVendor, priceSnap.Payload, now)
		if err != nil {
			return nil, err
		}
	}

	// all points in the past normalizes to an empty series
	if len(pv) == 0 {
		return nil, &domain.InsufficientDataError{Missing: []string{"pv_forecast"}}
	}
	if len(prices) == 0 {
		return nil, &domain.InsufficientDataError{Missing: []string{"prices"}}
	}

	loadW := state.config.Sources.DefaultLoadW
	if loadSnap, haveLoad := state.snapshots[domain.SourceKindLoad]; haveLoad {
		if v, perr := strconv.ParseFloat(strings.TrimSpace(string(loadSnap.Payload)), 64); perr == nil && v >= 0 {
			loadW = v
		}
	}

	return &domain.OptimizationRequest{
		Battery:       battery,
		PVForecast:    pv,
		Prices:        prices,
		LoadForecastW: []float64{loadW},
		FeedInKWh:     state.config.EOS.FeedInPriceKWh,
		StartSolution: startSolution,
		StartHour:     now.Hour(),
		PeriodStart:   now.Truncate(time.Hour),
	}, nil
}
