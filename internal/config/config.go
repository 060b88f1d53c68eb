package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel  zapcore.Level
	EOS       EOSConfig       `mapstructure:"eos"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Battery   BatteryConfig   `mapstructure:"battery"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	EVCC      EVCCConfig      `mapstructure:"evcc"`
	Store     StoreConfig     `mapstructure:"store"`
	Port      uint            `mapstructure:"port"`
	HttpLog   bool            `mapstructure:"http_log"`
}

const (
	BackendEOS   = "eos"
	BackendEVopt = "evopt"
)

type EOSConfig struct {
	Host           string
	Backend        string
	Port           uint
	TimeoutSeconds uint32  `mapstructure:"timeout_seconds"`
	FeedInPriceKWh float64 `mapstructure:"feed_in_price"`
}

// DefaultBackendPort returns the conventional port when eos.port is not set:
// 8503 for an EOS server, 8504 for EVopt.
func DefaultBackendPort(backend string) (uint, error) {
	switch backend {
	case BackendEOS:
		return 8503, nil
	case BackendEVopt:
		return 8504, nil
	default:
		return 0, fmt.Errorf("unknown backend %q, expected %q or %q", backend, BackendEOS, BackendEVopt)
	}
}

type OptimizerConfig struct {
	RefreshIntervalMinutes uint32 `mapstructure:"refresh_interval_minutes"`
	StalenessWindowMinutes uint32 `mapstructure:"staleness_window_minutes"`
	MaxConsecutiveFailures uint32 `mapstructure:"max_consecutive_failures"`
	RetryBackoffSeconds    uint32 `mapstructure:"retry_backoff_seconds"`
	MaxRetryBackoffSeconds uint32 `mapstructure:"max_retry_backoff_seconds"`
}

type BatteryConfig struct {
	CapacityWh          float64 `mapstructure:"capacity_wh"`
	ChargeEfficiency    float64 `mapstructure:"charge_efficiency"`
	DischargeEfficiency float64 `mapstructure:"discharge_efficiency"`
	MaxChargePowerW     float64 `mapstructure:"max_charge_power_w"`
	MaxGridChargeRateW  float64 `mapstructure:"max_grid_charge_rate_w"`
	MaxPVChargeRateW    float64 `mapstructure:"max_pv_charge_rate_w"`
	MinSOCPercent       float64 `mapstructure:"min_soc"`
	MaxSOCPercent       float64 `mapstructure:"max_soc"`
	ChargingCurve       bool    `mapstructure:"charging_curve"`
}

type SourcesConfig struct {
	PVVendor      string  `mapstructure:"pv_vendor"`
	PVTopic       string  `mapstructure:"pv_topic"`
	PriceVendor   string  `mapstructure:"price_vendor"`
	PriceTopic    string  `mapstructure:"price_topic"`
	SOCTopic      string  `mapstructure:"soc_topic"`
	LoadTopic     string  `mapstructure:"load_topic"`
	FixedPriceKWh float64 `mapstructure:"fixed_price"`
	DefaultLoadW  float64 `mapstructure:"default_load_w"`
}

type EVCCConfig struct {
	Enabled bool
	URL     string `mapstructure:"url"`
}

type StoreConfig struct {
	Enabled bool
	Path    string
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
