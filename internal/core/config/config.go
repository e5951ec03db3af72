package config

import "time"

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Monitor MonitorConfig `yaml:"monitor"`
	Emitter EmitterConfig `yaml:"emitter"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings for the health/metrics endpoints.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MonitorConfig holds settings for the heartbeat monitor.
type MonitorConfig struct {
	ListenAddr             string  `yaml:"listen_addr"`
	HeartbeatTimeoutMs     int     `yaml:"heartbeat_timeout_ms"`
	CPUThreshold           float64 `yaml:"cpu_threshold"`
	MemThreshold           float64 `yaml:"mem_threshold"`
	ErrorThreshold         int     `yaml:"error_threshold"`
	StatsEveryN            int     `yaml:"stats_every_n"`
	StatusReportIntervalMs int     `yaml:"status_report_interval_ms"`
}

// HeartbeatTimeout returns the configured silence threshold.
func (c MonitorConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutMs) * time.Millisecond
}

// StatusReportInterval returns the period between status report log lines.
func (c MonitorConfig) StatusReportInterval() time.Duration {
	return time.Duration(c.StatusReportIntervalMs) * time.Millisecond
}

// EmitterConfig holds settings for the heartbeat emitter.
type EmitterConfig struct {
	Target              string `yaml:"target"`
	ReportingIntervalMs int    `yaml:"reporting_interval_ms"`
	ReconnectBackoffMs  int    `yaml:"reconnect_backoff_ms"`
}

// ReportingInterval returns the period between heartbeat sends.
func (c EmitterConfig) ReportingInterval() time.Duration {
	return time.Duration(c.ReportingIntervalMs) * time.Millisecond
}

// ReconnectBackoff returns the initial wait before a reconnect attempt.
func (c EmitterConfig) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffMs) * time.Millisecond
}
