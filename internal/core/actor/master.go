package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/eoscoord/eoscoord/internal/adapter/actor"
	"github.com/eoscoord/eoscoord/internal/config"
	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/port"
	. "github.com/eoscoord/eoscoord/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type OptimizerActorProvider func(coordinator *actor.PID) *adactor.OptimizerActor

type EVCCActorProvider func() *adactor.EVCCActor

// MasterOfPuppetsActor spawns and supervises the actor tree and routes
// messages between the children: commands and source payloads in from MQTT,
// mode syncs out to evcc, control requests from the HTTP server down to the
// coordinator.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck     healthCheckResult
	eventStream            *eventstream.EventStream
	store                  port.DecisionStore
	mqttActor              *actor.PID
	coordinatorActor       *actor.PID
	optimizerActor         *actor.PID
	evccActor              *actor.PID
	mqttActorProvider      MQTTActorProvider
	optimizerActorProvider OptimizerActorProvider
	evccActorProvider      EVCCActorProvider
	logger                 *zap.Logger
}

type healthCheckResult struct {
	mqttActorHealthy        bool
	coordinatorActorHealthy bool
	optimizerActorHealthy   bool
	coordinatorState        string
	checksReceived          int
	respondTo               *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, store port.DecisionStore, mqttActorProvider MQTTActorProvider,
	optimizerActorProvider OptimizerActorProvider, evccActorProvider EVCCActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                 config,
		behavior:               actor.NewBehavior(),
		stash:                  &Stash{},
		logger:                 ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:            &eventstream.EventStream{},
		store:                  store,
		mqttActorProvider:      mqttActorProvider,
		optimizerActorProvider: optimizerActorProvider,
		evccActorProvider:      evccActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start Coordinator child
		coordinatorActorPID, err := state.startCoordinatorActor(ctx)
		if err != nil {
			panic(err)
		}
		state.coordinatorActor = coordinatorActorPID

		// start Optimizer child
		optimizerActorPID, err := state.startOptimizerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.optimizerActor = optimizerActorPID

		// start EVCC child
		if state.config.EVCC.Enabled {
			evccActorPID, err := state.startEVCCActor(ctx)
			if err != nil {
				panic(err)
			}
			state.evccActor = evccActorPID
		}

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// MQTT Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// Coordinator Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.coordinatorActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_COORDINATOR,
				Healthy: false,
			}
		})
		// Optimizer Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.optimizerActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_OPTIMIZER,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to the coordinator
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default bad command", zap.Error(err))
				return
			}
			if cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.ControlRequest:
					ctx.Send(state.coordinatorActor, pcmd)
				}
			}
		}
	case domain.SourceSnapshotUpdate:
		// SoC belongs to the coordinator, everything else to the optimizer
		if msg.Kind == domain.SourceKindBatterySOC {
			ctx.Send(state.coordinatorActor, msg)
		} else {
			ctx.Send(state.optimizerActor, msg)
		}
	case domain.SyncBatteryMode:
		if state.evccActor != nil {
			ctx.Send(state.evccActor, msg)
		}
	case domain.OptimizationCycleTrigger:
		ctx.Send(state.optimizerActor, msg)
	case domain.GetControlStateRequest:
		ctx.RequestWithCustomSender(state.coordinatorActor, msg, ctx.Sender())
	case domain.ControlRequest:
		ctx.RequestWithCustomSender(state.coordinatorActor, msg, ctx.Sender())
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MQTT) {
			state.logger.Error("master@default mqtt error")
			panic(errors.New("mqtt terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			if msg.Id == domain.ACTOR_ID_MQTT {
				state.currentHealthCheck.mqttActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_COORDINATOR {
				state.currentHealthCheck.coordinatorActorHealthy = true
				state.currentHealthCheck.coordinatorState = msg.State
			} else if msg.Id == domain.ACTOR_ID_OPTIMIZER {
				state.currentHealthCheck.optimizerActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startCoordinatorActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	coordinatorProps := actor.PropsFromProducer(func() actor.Actor {
		return NewCoordinatorActor(&state.config, state.store, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	coordinatorActorPID, err := ctx.SpawnNamed(coordinatorProps, domain.ACTOR_ID_COORDINATOR)
	if err != nil {
		return nil, err
	}

	return coordinatorActorPID, nil
}

func (state *MasterOfPuppetsActor) startOptimizerActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	optimizerProps := actor.PropsFromProducer(func() actor.Actor {
		return state.optimizerActorProvider(state.coordinatorActor)
	}, actor.WithSupervisor(supervisor))
	optimizerActorPID, err := ctx.SpawnNamed(optimizerProps, domain.ACTOR_ID_OPTIMIZER)
	if err != nil {
		return nil, err
	}

	return optimizerActorPID, nil
}

func (state *MasterOfPuppetsActor) startEVCCActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	evccProps := actor.PropsFromProducer(func() actor.Actor {
		return state.evccActorProvider()
	}, actor.WithSupervisor(supervisor))
	evccActorPID, err := ctx.SpawnNamed(evccProps, domain.ACTOR_ID_EVCC)
	if err != nil {
		return nil, err
	}

	return evccActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.coordinatorActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset() {
	state.mqttActorHealthy = false
	state.coordinatorActorHealthy = false
	state.optimizerActorHealthy = false
	state.coordinatorState = ""
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 3
}

func (state *healthCheckResult) allHealthy() bool {
	return state.mqttActorHealthy && state.coordinatorActorHealthy && state.optimizerActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.coordinatorState,
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
