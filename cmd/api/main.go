package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/eoscoord/eoscoord/internal/adapter/actor"
	"github.com/eoscoord/eoscoord/internal/adapter/eos"
	"github.com/eoscoord/eoscoord/internal/adapter/evcc"
	"github.com/eoscoord/eoscoord/internal/config"
	"github.com/eoscoord/eoscoord/internal/core/actor"
	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/port"
	"github.com/eoscoord/eoscoord/internal/server"
	"github.com/eoscoord/eoscoord/internal/store"
	"github.com/eoscoord/eoscoord/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// decision store
	var decisionStore port.DecisionStore
	if cfg.Store.Enabled {
		st, err := store.NewStore(cfg.Store.Path)
		if err != nil {
			panic(err)
		}
		defer st.Close()
		decisionStore = st
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, decisionStore,
			mqttActorProvider(cfg, logger),
			optimizerActorProvider(cfg, logger),
			evccActorProvider(cfg, logger),
			logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	// periodic optimization cycle
	sched, err := startOptimizationSchedule(cfg, ctx, pid)
	if err != nil {
		panic(err)
	}
	defer sched.Stop()

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func startOptimizationSchedule(cfg *config.Config, ctx *pactor.RootContext, master *pactor.PID) (quartz.Scheduler, error) {
	sched := quartz.NewStdScheduler()
	sched.Start(context.Background())

	cycleJob := job.NewFunctionJob(func(context.Context) (int, error) {
		ctx.Send(master, domain.OptimizationCycleTrigger{})
		return 0, nil
	})
	interval := time.Duration(cfg.Optimizer.RefreshIntervalMinutes) * time.Minute
	detail := quartz.NewJobDetail(cycleJob, quartz.NewJobKey("optimization_cycle"))
	if err := sched.ScheduleJob(detail, quartz.NewSimpleTrigger(interval)); err != nil {
		return nil, err
	}

	// first cycle as soon as the sources have had a moment to arrive
	go func() {
		time.Sleep(15 * time.Second)
		ctx.Send(master, domain.OptimizationCycleTrigger{})
	}()

	return sched, nil
}

func initConfig() (*config.Config, error) {

	// alias PORT => EOSCOORD_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("EOSCOORD_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("eoscoord")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// backend-dependent port default
	if cfg.EOS.Port == 0 {
		port, err := config.DefaultBackendPort(cfg.EOS.Backend)
		if err != nil {
			return nil, err
		}
		cfg.EOS.Port = port
	}

	// check bounds
	if cfg.Battery.CapacityWh <= 0 {
		return nil, errors.New("config param battery.capacity_wh should be > 0")
	}
	if cfg.Battery.MinSOCPercent < 0 || cfg.Battery.MaxSOCPercent > 100 ||
		cfg.Battery.MinSOCPercent > cfg.Battery.MaxSOCPercent {
		return nil, errors.New("config params battery.min_soc/battery.max_soc must satisfy 0 <= min <= max <= 100")
	}
	if cfg.Optimizer.RefreshIntervalMinutes < 5 {
		return nil, errors.New("config param optimizer.refresh_interval_minutes should be >= 5")
	}
	if cfg.Optimizer.StalenessWindowMinutes < cfg.Optimizer.RefreshIntervalMinutes {
		return nil, errors.New("config param optimizer.staleness_window_minutes should be >= optimizer.refresh_interval_minutes")
	}
	if cfg.EVCC.Enabled && cfg.EVCC.URL == "" {
		return nil, errors.New("config param evcc.url is required when evcc.enabled is set")
	}
	if cfg.Store.Enabled && cfg.Store.Path == "" {
		return nil, errors.New("config param store.path is required when store.enabled is set")
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func optimizerActorProvider(cfg *config.Config, logger *zap.Logger) actor.OptimizerActorProvider {
	return func(coordinator *pactor.PID) *adactor.OptimizerActor {
		client := eos.NewClient(cfg.EOS.Host, cfg.EOS.Port,
			time.Duration(cfg.EOS.TimeoutSeconds)*time.Second, logger)
		return adactor.NewOptimizerActor(cfg, client, coordinator, logger)
	}
}

func evccActorProvider(cfg *config.Config, logger *zap.Logger) actor.EVCCActorProvider {
	return func() *adactor.EVCCActor {
		client := evcc.NewClient(cfg.EVCC.URL, logger)
		return adactor.NewEVCCActor(cfg, client, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "eoscoord")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("eos.backend", config.BackendEOS)
	viper.SetDefault("eos.timeout_seconds", 180)
	viper.SetDefault("eos.feed_in_price", 0)
	viper.SetDefault("battery.capacity_wh", 10000)
	viper.SetDefault("battery.charge_efficiency", 0.95)
	viper.SetDefault("battery.discharge_efficiency", 0.95)
	viper.SetDefault("battery.max_charge_power_w", 5000)
	viper.SetDefault("battery.max_grid_charge_rate_w", 3000)
	viper.SetDefault("battery.max_pv_charge_rate_w", 5000)
	viper.SetDefault("battery.min_soc", 5)
	viper.SetDefault("battery.max_soc", 95)
	viper.SetDefault("battery.charging_curve", false)
	viper.SetDefault("sources.pv_vendor", "forecast_solar")
	viper.SetDefault("sources.price_vendor", "fixed")
	viper.SetDefault("sources.fixed_price", 0.30)
	viper.SetDefault("sources.default_load_w", 400)
	viper.SetDefault("optimizer.refresh_interval_minutes", 60)
	viper.SetDefault("optimizer.staleness_window_minutes", 120)
	viper.SetDefault("optimizer.max_consecutive_failures", 3)
	viper.SetDefault("optimizer.retry_backoff_seconds", 30)
	viper.SetDefault("optimizer.max_retry_backoff_seconds", 600)
	viper.SetDefault("store.enabled", false)
	viper.SetDefault("store.path", "eoscoord.db")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
