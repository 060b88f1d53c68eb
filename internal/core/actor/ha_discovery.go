package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/eoscoord/eoscoord/internal/config"
	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/events"
	"github.com/eoscoord/eoscoord/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor announces every sensor, select and input number to Home
// Assistant once the MQTT and coordinator actors are up, then goes quiet.
type HADiscoveryActor struct {
	config                  *config.Config
	behavior                actor.Behavior
	stash                   *actorutil.Stash
	coordinatorActor        *actor.PID
	mqttActor               *actor.PID
	coordinatorActorHealthy bool
	mqttActorHealthy        bool
	healthyRecv             int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, coordinatorActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:           config,
		coordinatorActor: coordinatorActor,
		mqttActor:        mqttActor,
		behavior:         actor.NewBehavior(),
		stash:            &actorutil.Stash{},
		logger:           actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check Coordinator and MQTT actor healthy
		state.healthyRecv = 0
		state.coordinatorActorHealthy = false
		state.mqttActorHealthy = false
		// Coordinator Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.coordinatorActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_COORDINATOR,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_COORDINATOR:
				state.coordinatorActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.coordinatorActorHealthy && state.mqttActorHealthy {
				// Ask Coordinator for battery limits to seed the input numbers
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.coordinatorActor, domain.GetBatteryStateRequest{}, 2*time.Second), func(err error) any {
					return domain.GetBatteryStateResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: err,
						},
					}
				})
				state.behavior.Become(state.WaitingBatteryReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Coordinator Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

func (state *HADiscoveryActor) WaitingBatteryReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetBatteryStateResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@battery: GetBatteryStateResponse", zap.Any("response", msg))

		var sensors []domain.GenericSensor

		device := events.CoordinatorDevice(state.config.MQTT.BaseTopic)
		sensors = append(sensors, events.BridgeSensors(device)...)
		sensors = append(sensors, events.ControlSensors(device)...)
		sensors = append(sensors, events.OptimizationSensors(device)...)
		sensors = append(sensors, events.SavingsSensors(device)...)
		sensors = append(sensors, events.ControlBinarySensors(device)...)

		switches := events.ControlSwitches(device)
		selects := events.ControlSelects(device)
		inputNumbers := events.ControlInputNumbers(device, msg.Battery.MinSOCPercent, msg.Battery.MaxSOCPercent)

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors:      sensors,
			Switches:     switches,
			Selects:      selects,
			InputNumbers: inputNumbers,
		})
		state.behavior.Become(state.Done)

	default:
		state.logger.Debug("hadiscovery@battery: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
