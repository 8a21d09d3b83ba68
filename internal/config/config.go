package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ScanConfig holds the candidate search tunables.
type ScanConfig struct {
	StepSize         float64  `json:"stepSize" mapstructure:"stepSize"`
	MinDistance      float64  `json:"minDistance" mapstructure:"minDistance"`
	MaxDistance      float64  `json:"maxDistance" mapstructure:"maxDistance"`
	SearchRadius     float64  `json:"searchRadius" mapstructure:"searchRadius"`
	HeadingThreshold float64  `json:"headingThreshold" mapstructure:"headingThreshold"`
	LightKinds       []string `json:"lightKinds" mapstructure:"lightKinds"`
}

// GateConfig holds the rescan hysteresis tunables.
type GateConfig struct {
	MinScanInterval time.Duration
	RescanDistance  float64
	RescanHeading   float64
}

// ControlConfig holds the controller loop cadence tunables.
type ControlConfig struct {
	PollInterval  time.Duration
	IdleInterval  time.Duration
	RefreshMargin time.Duration
}

// LeaseConfig holds the override lease tunables.
type LeaseConfig struct {
	GreenDuration time.Duration
	SweepInterval time.Duration
}

// BroadcastConfig holds the signal-event broadcast settings.
type BroadcastConfig struct {
	Enabled bool
	URL     string
	Secret  string
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// defaultLightKinds are the signal prop models the search recognizes.
var defaultLightKinds = []string{
	"prop_traffic_01a",
	"prop_traffic_01b",
	"prop_traffic_01d",
	"prop_traffic_02a",
	"prop_traffic_02b",
	"prop_traffic_03a",
	"prop_traffic_03b",
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Values are read
// once at startup; there is no runtime reconfiguration.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./opticomlogs")

	viper.SetDefault("scan.stepSize", 5.0)
	viper.SetDefault("scan.minDistance", 10.0)
	viper.SetDefault("scan.maxDistance", 60.0)
	viper.SetDefault("scan.searchRadius", 10.0)
	viper.SetDefault("scan.headingThreshold", 45.0)
	viper.SetDefault("scan.lightKinds", defaultLightKinds)

	viper.SetDefault("gate.minScanIntervalMs", 100)
	viper.SetDefault("gate.rescanDistance", 7.5)
	viper.SetDefault("gate.rescanHeading", 30.0)

	viper.SetDefault("control.pollIntervalMs", 50)
	viper.SetDefault("control.idleIntervalMs", 500)
	viper.SetDefault("control.refreshMarginMs", 1000)

	viper.SetDefault("lease.greenDurationMs", 5000)
	viper.SetDefault("lease.sweepIntervalMs", 250)

	viper.SetDefault("notify.cooldownMs", 5000)

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5001")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("broadcast.enabled", false)
	viper.SetDefault("broadcast.url", "ws://localhost:5001/ingest")
	viper.SetDefault("broadcast.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "opticom")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "opticom-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "az-opticom")
	viper.SetDefault("otel.batchTimeoutMs", 5000)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	viper.SetConfigName("opticom.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetScanConfig returns the candidate search configuration.
func GetScanConfig() ScanConfig {
	return ScanConfig{
		StepSize:         viper.GetFloat64("scan.stepSize"),
		MinDistance:      viper.GetFloat64("scan.minDistance"),
		MaxDistance:      viper.GetFloat64("scan.maxDistance"),
		SearchRadius:     viper.GetFloat64("scan.searchRadius"),
		HeadingThreshold: viper.GetFloat64("scan.headingThreshold"),
		LightKinds:       viper.GetStringSlice("scan.lightKinds"),
	}
}

// GetGateConfig returns the rescan hysteresis configuration.
func GetGateConfig() GateConfig {
	return GateConfig{
		MinScanInterval: time.Duration(viper.GetInt("gate.minScanIntervalMs")) * time.Millisecond,
		RescanDistance:  viper.GetFloat64("gate.rescanDistance"),
		RescanHeading:   viper.GetFloat64("gate.rescanHeading"),
	}
}

// GetControlConfig returns the controller cadence configuration.
func GetControlConfig() ControlConfig {
	return ControlConfig{
		PollInterval:  time.Duration(viper.GetInt("control.pollIntervalMs")) * time.Millisecond,
		IdleInterval:  time.Duration(viper.GetInt("control.idleIntervalMs")) * time.Millisecond,
		RefreshMargin: time.Duration(viper.GetInt("control.refreshMarginMs")) * time.Millisecond,
	}
}

// GetLeaseConfig returns the override lease configuration.
func GetLeaseConfig() LeaseConfig {
	return LeaseConfig{
		GreenDuration: time.Duration(viper.GetInt("lease.greenDurationMs")) * time.Millisecond,
		SweepInterval: time.Duration(viper.GetInt("lease.sweepIntervalMs")) * time.Millisecond,
	}
}

// GetBroadcastConfig returns the broadcast configuration.
func GetBroadcastConfig() BroadcastConfig {
	return BroadcastConfig{
		Enabled: viper.GetBool("broadcast.enabled"),
		URL:     viper.GetString("broadcast.url"),
		Secret:  viper.GetString("broadcast.secret"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: time.Duration(viper.GetInt("otel.batchTimeoutMs")) * time.Millisecond,
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetNotifyCooldown returns the driver notification rate-limit window.
func GetNotifyCooldown() time.Duration {
	return time.Duration(viper.GetInt("notify.cooldownMs")) * time.Millisecond
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
