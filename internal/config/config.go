// Package config loads harness configuration through viper and exposes
// typed section getters. Vehicle tuning presets are separate files, see
// preset.go.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SimConfig holds the simulation run settings.
type SimConfig struct {
	Preset         string
	PresetsDir     string
	Scenarios      []string
	MaxTicks       uint64 // safety cap per run
	StatusPath     string
	StatusInterval time.Duration
}

// InfluxConfig holds the telemetry time-series settings.
type InfluxConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Protocol  string
	Token     string
	Org       string
	BackupDir string
}

// StreamConfig holds the live telemetry websocket settings.
type StreamConfig struct {
	Enabled          bool
	URL              string
	Secret           string
	BufferSize       int
	HandshakeTimeout time.Duration
}

// ArchiveConfig holds the run archive settings.
type ArchiveConfig struct {
	Backend string // none, memory, sqlite or postgres
	Dir     string // sqlite database directory
	DSN     string // postgres connection string
}

// OTelConfig holds the OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	BatchTimeout   time.Duration
	Endpoint       string
	Insecure       bool
}

// Load reads configuration from a YAML file and sets default values.
// configDir is the directory containing vdynsim.cfg.yaml.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("sim.preset", "street")
	viper.SetDefault("sim.presetsDir", "./configs/presets")
	viper.SetDefault("sim.scenarios", []string{"full_throttle"})
	viper.SetDefault("sim.maxTicks", 108000) // 30 minutes at 60 Hz
	viper.SetDefault("sim.statusPath", "./vdynsim.status.json")
	viper.SetDefault("sim.statusInterval", "1s")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "vdyn-metrics")
	viper.SetDefault("influx.backupDir", "./influx_backup")

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:9300/ingest")
	viper.SetDefault("stream.secret", "")
	viper.SetDefault("stream.bufferSize", 256)
	viper.SetDefault("stream.handshakeTimeout", "5s")

	viper.SetDefault("archive.backend", "sqlite")
	viper.SetDefault("archive.dir", "./archive")
	viper.SetDefault("archive.dsn", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "vdynsim")
	viper.SetDefault("otel.serviceVersion", "dev")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("vdynsim.cfg.yaml")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("yaml")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
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

// GetSimConfig returns the sim section.
func GetSimConfig() SimConfig {
	return SimConfig{
		Preset:         viper.GetString("sim.preset"),
		PresetsDir:     viper.GetString("sim.presetsDir"),
		Scenarios:      viper.GetStringSlice("sim.scenarios"),
		MaxTicks:       viper.GetUint64("sim.maxTicks"),
		StatusPath:     viper.GetString("sim.statusPath"),
		StatusInterval: viper.GetDuration("sim.statusInterval"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetStreamConfig returns the stream section.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled:          viper.GetBool("stream.enabled"),
		URL:              viper.GetString("stream.url"),
		Secret:           viper.GetString("stream.secret"),
		BufferSize:       viper.GetInt("stream.bufferSize"),
		HandshakeTimeout: viper.GetDuration("stream.handshakeTimeout"),
	}
}

// GetArchiveConfig returns the archive section.
func GetArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Backend: viper.GetString("archive.backend"),
		Dir:     viper.GetString("archive.dir"),
		DSN:     viper.GetString("archive.dsn"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ServiceVersion: viper.GetString("otel.serviceVersion"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}
