package actor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eoscoord/eoscoord/internal/config"
	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/events"
	"github.com/eoscoord/eoscoord/internal/core/port"
	"github.com/eoscoord/eoscoord/internal/core/service"
	"github.com/eoscoord/eoscoord/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// evaluation cadence; override expiry and result staleness are detected
// lazily, so this bounds how long an expired state can linger
const evaluateTickInterval = 30 * time.Second

// CoordinatorActor owns the control state: the latest optimization result,
// the manual override, the battery limits and the savings bookkeeping. Every
// control decision leaves through here.
type CoordinatorActor struct {
	config      *config.Config
	behavior    actor.Behavior
	stash       *actorutil.Stash
	eventStream *eventstream.EventStream
	scheduler   *scheduler.TimerScheduler
	store       port.DecisionStore
	overrides   *service.OverrideManager
	engine      *service.DecisionEngine
	savings     *service.SavingsTracker
	logger      *zap.Logger

	battery          domain.BatteryState
	result           *domain.OptimizationResult
	lastDecision     *domain.ControlDecision
	optimizationOK   bool
	lastOptimization time.Time
	currentPriceKWh  float64
	haveSOC          bool
	cancelTick       scheduler.CancelFunc
}

type evaluateTick struct {
}

func NewCoordinatorActor(cfg *config.Config, store port.DecisionStore, eventStream *eventstream.EventStream, logger *zap.Logger) *CoordinatorActor {
	actorLogger := actorutil.ActorLogger(domain.ACTOR_ID_COORDINATOR, logger)
	act := &CoordinatorActor{
		config:      cfg,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		store:       store,
		overrides:   service.NewOverrideManager(),
		engine: service.NewDecisionEngine(service.DecisionConfig{
			StalenessWindow:    time.Duration(cfg.Optimizer.StalenessWindowMinutes) * time.Minute,
			MaxGridChargeRateW: cfg.Battery.MaxGridChargeRateW,
			MaxPVChargeRateW:   cfg.Battery.MaxPVChargeRateW,
		}, logger),
		savings: service.NewSavingsTracker(cfg.Battery.CapacityWh, cfg.EOS.FeedInPriceKWh, logger),
		logger:  actorLogger,
		battery: domain.BatteryState{
			CapacityWh:          cfg.Battery.CapacityWh,
			MinSOCPercent:       cfg.Battery.MinSOCPercent,
			MaxSOCPercent:       cfg.Battery.MaxSOCPercent,
			MaxChargePowerW:     cfg.Battery.MaxChargePowerW,
			ChargeEfficiency:    cfg.Battery.ChargeEfficiency,
			DischargeEfficiency: cfg.Battery.DischargeEfficiency,
		},
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *CoordinatorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CoordinatorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("coordinator@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.restoreSavings()
		state.cancelTick = state.scheduler.RequestRepeatedly(evaluateTickInterval, evaluateTickInterval, ctx.Self(), evaluateTick{})
		// the process starts degraded until the first plan arrives
		state.evaluate(ctx)
	case *actor.Stopping:
		if state.cancelTick != nil {
			state.cancelTick()
		}
	case evaluateTick:
		state.evaluate(ctx)
	case domain.ActorHealthRequest:
		state.logger.Debug("coordinator@default ActorHealthRequest")
		healthState := "degraded"
		if state.lastDecision != nil {
			healthState = string(state.lastDecision.State)
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_COORDINATOR,
			Healthy: true,
			State:   healthState,
		})
	case domain.SourceSnapshotUpdate:
		if msg.Kind == domain.SourceKindBatterySOC {
			state.handleSOCUpdate(ctx, msg)
		}
	case domain.IngestOptimizationResult:
		state.handleResult(ctx, msg)
	case domain.OptimizationStatusUpdate:
		state.handleStatus(msg)
	case domain.GetBatteryStateRequest:
		var startSolution []float64
		if state.result != nil {
			startSolution = state.result.StartSolution
		}
		ctx.Respond(domain.GetBatteryStateResponse{
			Battery:       state.battery,
			StartSolution: startSolution,
		})
	case domain.GetControlStateRequest:
		state.evaluate(ctx)
		ctx.Respond(domain.GetControlStateResponse{
			Decision:         *state.lastDecision,
			Battery:          state.battery,
			Override:         state.overrides.Current(time.Now()),
			Result:           state.result,
			OptimizationOK:   state.optimizationOK,
			LastOptimization: state.lastOptimization,
		})
	case domain.ControlRequest:
		state.handleControlRequest(ctx, msg)
	default:
		state.logger.Debug("coordinator@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CoordinatorActor) handleSOCUpdate(ctx actor.Context, msg domain.SourceSnapshotUpdate) {
	soc, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload)), 64)
	if err != nil || soc < 0 || soc > 100 {
		state.logger.Warn("coordinator: invalid SoC payload", zap.String("payload", string(msg.Payload)))
		return
	}
	state.battery.SOCPercent = soc
	state.haveSOC = true

	mode := domain.InverterModeAuto
	if state.lastDecision != nil {
		mode = state.lastDecision.Mode
	}
	state.savings.Observe(time.Now(), soc, state.currentPriceKWh, mode)
	state.publishSavings()
	state.persistSavings()

	state.evaluate(ctx)
}

func (state *CoordinatorActor) handleResult(ctx actor.Context, msg domain.IngestOptimizationResult) {
	// a plan can only replace a newer one; late responses from slow
	// cycles are dropped
	if state.result != nil && !msg.Result.FetchedAt.After(state.result.FetchedAt) {
		state.logger.Warn("coordinator: dropping stale optimization result",
			zap.Time("fetched_at", msg.Result.FetchedAt),
			zap.Time("current", state.result.FetchedAt))
		return
	}
	result := msg.Result
	state.result = &result
	state.lastOptimization = result.FetchedAt
	state.currentPriceKWh = msg.CurrentPriceKWh
	state.optimizationOK = true
	state.publishEvents(events.OptimizationResultToUpdateEvents(state.result, true))
	state.evaluate(ctx)
}

func (state *CoordinatorActor) handleStatus(msg domain.OptimizationStatusUpdate) {
	if state.optimizationOK != msg.OK {
		state.publishEvents(events.OptimizationResultToUpdateEvents(nil, msg.OK))
	}
	state.optimizationOK = msg.OK
	if !msg.OK {
		state.logger.Warn("coordinator: optimization unhealthy",
			zap.String("status", msg.Status),
			zap.Uint32("consecutive_failures", msg.ConsecutiveFailures))
	}
}

func (state *CoordinatorActor) handleControlRequest(ctx actor.Context, msg domain.ControlRequest) {
	now := time.Now()
	switch cmd := msg.(type) {
	case domain.SetModeRequest:
		state.logger.Info("coordinator: set mode", zap.String("mode", cmd.Mode.String()))
		if cmd.Mode == domain.InverterModeAuto {
			state.overrides.Clear()
		} else {
			// a plain mode set is a short override: it holds until the
			// next plan would have been fetched anyway
			_, err := state.overrides.Set(cmd.Mode, uint(state.config.Optimizer.RefreshIntervalMinutes), 0, now)
			if err != nil {
				state.respond(ctx, domain.SetModeResponse{
					ControlResponseMixIn: controlError(err),
				})
				return
			}
		}
		state.respond(ctx, domain.SetModeResponse{Mode: cmd.Mode})
		state.evaluate(ctx)
	case domain.SetOverrideRequest:
		state.logger.Info("coordinator: set override", zap.String("mode", cmd.Mode.String()),
			zap.Uint("duration_minutes", cmd.DurationMinutes), zap.Float64("charge_power_w", cmd.ChargePowerW))
		override, err := state.overrides.Set(cmd.Mode, cmd.DurationMinutes, cmd.ChargePowerW, now)
		if err != nil {
			state.respond(ctx, domain.SetOverrideResponse{
				ControlResponseMixIn: controlError(err),
			})
			return
		}
		state.respond(ctx, domain.SetOverrideResponse{Override: override})
		state.evaluate(ctx)
	case domain.ClearOverrideRequest:
		cleared := state.overrides.Clear()
		state.logger.Info("coordinator: clear override", zap.Bool("cleared", cleared))
		state.respond(ctx, domain.ClearOverrideResponse{Cleared: cleared})
		state.evaluate(ctx)
	case domain.SetSOCLimitsRequest:
		state.handleSetSOCLimits(ctx, cmd)
	default:
		state.logger.Warn("coordinator: unknown control request", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CoordinatorActor) handleSetSOCLimits(ctx actor.Context, cmd domain.SetSOCLimitsRequest) {
	minSOC := cmd.MinSOCPercent
	maxSOC := cmd.MaxSOCPercent
	// single-number command surfaces mark the untouched side
	if minSOC == domain.SOCLimitKeepCurrent {
		minSOC = state.battery.MinSOCPercent
	}
	if maxSOC == domain.SOCLimitKeepCurrent {
		maxSOC = state.battery.MaxSOCPercent
	}
	if minSOC < 0 || minSOC > 100 || maxSOC < 0 || maxSOC > 100 {
		state.respond(ctx, domain.SetSOCLimitsResponse{
			ControlResponseMixIn: controlError(&domain.ConfigurationError{Param: "soc_limits", Reason: "limits must be within [0, 100]"}),
		})
		return
	}
	if minSOC > maxSOC {
		state.respond(ctx, domain.SetSOCLimitsResponse{
			ControlResponseMixIn: controlError(&domain.ConfigurationError{Param: "soc_limits", Reason: "min_soc must not exceed max_soc"}),
		})
		return
	}
	state.logger.Info("coordinator: set SoC limits", zap.Float64("min_soc", minSOC), zap.Float64("max_soc", maxSOC))
	state.battery.MinSOCPercent = minSOC
	state.battery.MaxSOCPercent = maxSOC
	state.publishEvents(events.SOCLimitsToUpdateEvents(minSOC, maxSOC))
	state.respond(ctx, domain.SetSOCLimitsResponse{MinSOCPercent: minSOC, MaxSOCPercent: maxSOC})
}

// evaluate recomputes the control decision and, when it changed, publishes
// it and notifies the battery mode mirror through the parent.
func (state *CoordinatorActor) evaluate(ctx actor.Context) {
	now := time.Now()
	override := state.overrides.Current(now)
	decision := state.engine.Evaluate(override, state.result, now)

	if state.config.Battery.ChargingCurve && decision.ACChargeDemandW > 0 && state.haveSOC {
		decision.ACChargeDemandW = decision.ACChargeDemandW * chargeCurveFactor(state.battery.SOCPercent)
	}

	if state.lastDecision != nil && decision.Same(*state.lastDecision) {
		state.lastDecision = &decision
		return
	}
	state.logger.Info("coordinator: decision changed",
		zap.String("mode", decision.Mode.String()),
		zap.Float64("ac_charge_demand_w", decision.ACChargeDemandW),
		zap.Float64("dc_charge_demand_w", decision.DCChargeDemandW),
		zap.Bool("discharge_allowed", decision.DischargeAllowed),
		zap.String("source", string(decision.Source)),
		zap.String("state", string(decision.State)))
	state.lastDecision = &decision

	state.eventStream.Publish(domain.ControlUpdateEvent{Decision: decision})
	state.publishEvents(events.ControlDecisionToUpdateEvents(decision))
	if ctx.Parent() != nil {
		ctx.Send(ctx.Parent(), domain.SyncBatteryMode{Mode: decision.Mode})
	}
	if state.store != nil {
		if err := state.store.RecordDecision(decision); err != nil {
			state.logger.Warn("coordinator: could not record decision", zap.Error(err))
		}
	}
}

// chargeCurveFactor tapers grid charge power as the battery fills, the way
// battery BMS derating would anyway.
func chargeCurveFactor(socPercent float64) float64 {
	switch {
	case socPercent < 80:
		return 1.0
	case socPercent < 90:
		return 0.7
	case socPercent < 95:
		return 0.5
	default:
		return 0.3
	}
}

func (state *CoordinatorActor) publishEvents(updates []domain.SensorUpdateEvent) {
	for _, event := range updates {
		state.eventStream.Publish(event)
	}
}

func (state *CoordinatorActor) publishSavings() {
	state.publishEvents(events.SavingsToUpdateEvents(state.savings.Snapshot()))
}

func (state *CoordinatorActor) restoreSavings() {
	if state.store == nil {
		return
	}
	snap, err := state.store.LoadSavings()
	if err != nil {
		state.logger.Warn("coordinator: could not load savings", zap.Error(err))
		return
	}
	if snap != nil {
		state.savings.Restore(*snap)
		state.logger.Info("coordinator: savings restored",
			zap.Float64("total_savings_eur", snap.TotalSavingsEUR))
	}
}

func (state *CoordinatorActor) persistSavings() {
	if state.store == nil {
		return
	}
	if err := state.store.SaveSavings(state.savings.Snapshot()); err != nil {
		state.logger.Warn("coordinator: could not save savings", zap.Error(err))
	}
}

func (state *CoordinatorActor) respond(ctx actor.Context, resp domain.ControlResponse) {
	if ctx.Sender() != nil {
		ctx.Respond(resp)
	}
}

func controlError(err error) domain.ControlResponseMixIn {
	return domain.ControlResponseMixIn{
		ActorResponseMixIn: domain.ActorResponseMixIn{
			ResponseError: err,
		},
	}
}
