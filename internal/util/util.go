package util

import (
	"github.com/eoscoord/eoscoord/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		EOS: config.EOSConfig{
			Host:           "localhost",
			Port:           8503,
			TimeoutSeconds: 10,
			FeedInPriceKWh: 0.08,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "eoscoord",
		},
		Battery: config.BatteryConfig{
			CapacityWh:          10000,
			ChargeEfficiency:    0.95,
			DischargeEfficiency: 0.95,
			MaxChargePowerW:     5000,
			MaxGridChargeRateW:  3000,
			MaxPVChargeRateW:    5000,
			MinSOCPercent:       5,
			MaxSOCPercent:       95,
		},
		Sources: config.SourcesConfig{
			PVVendor:     "forecast_solar",
			PriceVendor:  "fixed",
			DefaultLoadW: 400,
		},
		Optimizer: config.OptimizerConfig{
			RefreshIntervalMinutes: 60,
			StalenessWindowMinutes: 120,
			MaxConsecutiveFailures: 3,
			RetryBackoffSeconds:    30,
			MaxRetryBackoffSeconds: 600,
		},
		Port: 8080,
	}
}
