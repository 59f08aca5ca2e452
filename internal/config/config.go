// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config holds the monitor's file-backed configuration and the
// feature toggles exposed on the command line.
package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/blackjk83/netmon-tui/internal/errors"
)

// Config is the monitor's effective configuration.
type Config struct {
	Capture  CaptureConfig
	UI       UIConfig
	Monitor  MonitorConfig
	Firewall FirewallConfig
	Metrics  MetricsConfig
	GeoIP    GeoIPConfig
	Log      LogConfig
}

// fileConfig is the HCL decode target. Blocks are pointers so every block is
// optional; absent blocks keep their defaults.
type fileConfig struct {
	Capture  *CaptureConfig  `hcl:"capture,block"`
	UI       *UIConfig       `hcl:"ui,block"`
	Monitor  *MonitorConfig  `hcl:"monitor,block"`
	Firewall *FirewallConfig `hcl:"firewall,block"`
	Metrics  *MetricsConfig  `hcl:"metrics,block"`
	GeoIP    *GeoIPConfig    `hcl:"geoip,block"`
	Log      *LogConfig      `hcl:"log,block"`
}

// CaptureConfig controls the live packet source.
type CaptureConfig struct {
	Interface   string `hcl:"interface,optional"`
	BufferSize  int    `hcl:"buffer_size,optional"`
	TimeoutMs   int    `hcl:"timeout_ms,optional"`
	Promiscuous bool   `hcl:"promiscuous,optional"`
}

// UIConfig controls the terminal UI refresh behavior.
type UIConfig struct {
	RefreshRateMs int    `hcl:"refresh_rate_ms,optional"`
	DefaultView   string `hcl:"default_view,optional"`
	ColorScheme   string `hcl:"color_scheme,optional"`
}

// MonitorConfig tunes the trackers and analyzers.
type MonitorConfig struct {
	ConnectionTimeoutS    int      `hcl:"connection_timeout_s,optional"`
	MaxConnections        int      `hcl:"max_connections,optional"`
	FlowTimeoutS          int      `hcl:"flow_timeout_s,optional"`
	BandwidthThresholdBps int      `hcl:"bandwidth_threshold_bps,optional"`
	LocalNetworks         []string `hcl:"local_networks,optional"`
}

// FirewallConfig controls the observational firewall engine.
type FirewallConfig struct {
	Enabled   bool   `hcl:"enabled,optional"`
	RulesFile string `hcl:"rules_file,optional"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `hcl:"enabled,optional"`
	Listen  string `hcl:"listen,optional"`
}

// GeoIPConfig points at an optional MaxMind database for the analyzer's
// geographic extension point.
type GeoIPConfig struct {
	Database string `hcl:"database,optional"`
}

// LogConfig controls the default logger.
type LogConfig struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
	File   string `hcl:"file,optional"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			BufferSize:  65536,
			TimeoutMs:   1000,
			Promiscuous: false,
		},
		UI: UIConfig{
			RefreshRateMs: 1000,
			DefaultView:   "dashboard",
			ColorScheme:   "dark",
		},
		Monitor: MonitorConfig{
			ConnectionTimeoutS:    300,
			MaxConnections:        1000,
			FlowTimeoutS:          300,
			BandwidthThresholdBps: 1_000_000,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9155",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads an HCL config file and applies defaults for anything unset.
// A missing file is not an error; it yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, errors.KindValidation, "reading config %s", path)
	}

	var parsed fileConfig
	if err := hclsimple.Decode(path, data, nil, &parsed); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "parsing config %s", path)
	}

	if parsed.Capture != nil {
		cfg.Capture = *parsed.Capture
	}
	if parsed.UI != nil {
		cfg.UI = *parsed.UI
	}
	if parsed.Monitor != nil {
		cfg.Monitor = *parsed.Monitor
	}
	if parsed.Firewall != nil {
		cfg.Firewall = *parsed.Firewall
	}
	if parsed.Metrics != nil {
		cfg.Metrics = *parsed.Metrics
	}
	if parsed.GeoIP != nil {
		cfg.GeoIP = *parsed.GeoIP
	}
	if parsed.Log != nil {
		cfg.Log = *parsed.Log
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Capture.BufferSize == 0 {
		cfg.Capture.BufferSize = def.Capture.BufferSize
	}
	if cfg.Capture.TimeoutMs == 0 {
		cfg.Capture.TimeoutMs = def.Capture.TimeoutMs
	}
	if cfg.UI.RefreshRateMs == 0 {
		cfg.UI.RefreshRateMs = def.UI.RefreshRateMs
	}
	if cfg.UI.DefaultView == "" {
		cfg.UI.DefaultView = def.UI.DefaultView
	}
	if cfg.UI.ColorScheme == "" {
		cfg.UI.ColorScheme = def.UI.ColorScheme
	}
	if cfg.Monitor.ConnectionTimeoutS == 0 {
		cfg.Monitor.ConnectionTimeoutS = def.Monitor.ConnectionTimeoutS
	}
	if cfg.Monitor.MaxConnections == 0 {
		cfg.Monitor.MaxConnections = def.Monitor.MaxConnections
	}
	if cfg.Monitor.FlowTimeoutS == 0 {
		cfg.Monitor.FlowTimeoutS = def.Monitor.FlowTimeoutS
	}
	if cfg.Monitor.BandwidthThresholdBps == 0 {
		cfg.Monitor.BandwidthThresholdBps = def.Monitor.BandwidthThresholdBps
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = def.Metrics.Listen
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}
