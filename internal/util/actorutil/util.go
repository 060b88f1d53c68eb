package actorutil

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an incoming MQTT command to a control
// request, or nil when the command addresses nothing we manage.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch cmd.Command {
	case "switch":
		// the override switch only clears; an override is set with a mode
		if cmd.DeviceId == domain.SWITCH_ID_OVERRIDE && cmd.Payload == mqtt.MQTT_PAYLOAD_OFF {
			return domain.ClearOverrideRequest{}, nil
		}
	case "select":
		if cmd.DeviceId == domain.SELECT_ID_INVERTER_MODE {
			mode, err := domain.ParseInverterMode(cmd.Payload)
			if err != nil {
				return nil, err
			}
			return domain.SetModeRequest{Mode: mode}, nil
		}
	case "number":
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, &domain.ConfigurationError{Param: cmd.DeviceId, Reason: fmt.Sprintf("not a number: %q", cmd.Payload)}
		}
		if value < 0 || value > 100 {
			return nil, &domain.ConfigurationError{Param: cmd.DeviceId, Reason: fmt.Sprintf("value %s out of range [0, 100]", cmd.Payload)}
		}
		switch cmd.DeviceId {
		case domain.INPUT_NUMBER_ID_MIN_SOC:
			return domain.SetSOCLimitsRequest{
				MinSOCPercent: value,
				MaxSOCPercent: domain.SOCLimitKeepCurrent,
			}, nil
		case domain.INPUT_NUMBER_ID_MAX_SOC:
			return domain.SetSOCLimitsRequest{
				MinSOCPercent: domain.SOCLimitKeepCurrent,
				MaxSOCPercent: value,
			}, nil
		}
	}
	return nil, nil
}
