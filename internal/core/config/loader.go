package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every option at its default value.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *AppConfig) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Monitor.ListenAddr == "" {
		cfg.Monitor.ListenAddr = ":9000"
	}
	if cfg.Monitor.HeartbeatTimeoutMs == 0 {
		cfg.Monitor.HeartbeatTimeoutMs = 3000
	}
	if cfg.Monitor.CPUThreshold == 0 {
		cfg.Monitor.CPUThreshold = 80
	}
	if cfg.Monitor.MemThreshold == 0 {
		cfg.Monitor.MemThreshold = 85
	}
	if cfg.Monitor.ErrorThreshold == 0 {
		cfg.Monitor.ErrorThreshold = 5
	}
	if cfg.Monitor.StatsEveryN == 0 {
		cfg.Monitor.StatsEveryN = 30
	}
	if cfg.Monitor.StatusReportIntervalMs == 0 {
		cfg.Monitor.StatusReportIntervalMs = 15000
	}
	if cfg.Emitter.Target == "" {
		cfg.Emitter.Target = "localhost:9000"
	}
	if cfg.Emitter.ReportingIntervalMs == 0 {
		cfg.Emitter.ReportingIntervalMs = 1000
	}
	if cfg.Emitter.ReconnectBackoffMs == 0 {
		cfg.Emitter.ReconnectBackoffMs = 2000
	}
}
