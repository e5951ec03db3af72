package heartbeat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/domain"
	"github.com/saisandeepramavath/LaneChangeDecision/internal/fallback"
	"github.com/saisandeepramavath/LaneChangeDecision/internal/metrics"
)

// Common lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
)

// criticalTimeouts is the consecutive-timeout count that raises a critical
// failure and activates the fallback handler; emergencyTimeouts additionally
// routes through the emergency protocol path.
const (
	criticalTimeouts  = 2
	emergencyTimeouts = 5
)

// MonitorConfig configures a heartbeat monitor.
type MonitorConfig struct {
	// ListenAddr is the TCP address heartbeat connections arrive on.
	ListenAddr string

	// HeartbeatTimeout is the silence threshold evaluated by the watchdog.
	// Default: 3 seconds.
	HeartbeatTimeout time.Duration

	// Health thresholds; a component at or below all three is healthy.
	CPUThreshold   float64
	MemThreshold   float64
	ErrorThreshold int

	// StatsEveryN emits a reliability statistic every Nth heartbeat.
	// Default: 30.
	StatsEveryN int64
}

func (c *MonitorConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9000"
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 3 * time.Second
	}
	if c.CPUThreshold == 0 {
		c.CPUThreshold = 80
	}
	if c.MemThreshold == 0 {
		c.MemThreshold = 85
	}
	if c.ErrorThreshold == 0 {
		c.ErrorThreshold = 5
	}
	if c.StatsEveryN == 0 {
		c.StatsEveryN = 30
	}
}

// Stats is a snapshot of the monitor's running totals.
type Stats struct {
	TotalHeartbeats     int64 `json:"total_heartbeats"`
	MissedHeartbeats    int64 `json:"missed_heartbeats"`
	ConsecutiveTimeouts int   `json:"consecutive_timeouts"`
	CriticalFailure     bool  `json:"critical_failure"`
}

// Reliability returns the percentage of expected heartbeats that arrived.
func (s Stats) Reliability() float64 {
	if s.TotalHeartbeats == 0 {
		return 0
	}
	return float64(s.TotalHeartbeats-s.MissedHeartbeats) / float64(s.TotalHeartbeats) * 100
}

// ComponentStatus pairs a component's latest sample with its health verdict.
type ComponentStatus struct {
	Sample  domain.HealthSample `json:"sample"`
	Healthy bool                `json:"healthy"`
}

// Monitor accepts heartbeat connections, maintains per-component health
// state and runs a watchdog that detects silence independently of message
// arrival. It exclusively owns the health table and watchdog state for its
// lifetime; failure evidence is signaled only through the fallback handler.
type Monitor struct {
	cfg      MonitorConfig
	fallback *fallback.Handler
	table    *Table
	log      *slog.Logger

	// Thresholds and timeout are adjustable at runtime.
	thresholdMu      sync.RWMutex
	cpuThreshold     float64
	memThreshold     float64
	errorThreshold   int
	heartbeatTimeout atomic.Int64 // nanoseconds

	// Watchdog state. The reader path resets consecutiveTimeouts with a
	// plain store and the watchdog increments atomically; a timeout counted
	// in the same instant a heartbeat lands is tolerated.
	lastHeartbeat       atomic.Int64 // unix nanoseconds
	consecutiveTimeouts atomic.Int32
	criticalFailure     atomic.Bool
	totalHeartbeats     atomic.Int64
	missedHeartbeats    atomic.Int64

	// watchdogInterval is the watchdog tick period. Fixed at one second in
	// production; tests compress it.
	watchdogInterval time.Duration

	running  atomic.Bool
	listener net.Listener
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// Live connections, closed on Stop to unblock idle readers.
	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewMonitor creates a monitor that reports failure evidence to fb.
func NewMonitor(cfg MonitorConfig, fb *fallback.Handler, log *slog.Logger) *Monitor {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}

	m := &Monitor{
		cfg:              cfg,
		fallback:         fb,
		table:            NewTable(),
		log:              log,
		cpuThreshold:     cfg.CPUThreshold,
		memThreshold:     cfg.MemThreshold,
		errorThreshold:   cfg.ErrorThreshold,
		watchdogInterval: time.Second,
	}
	m.heartbeatTimeout.Store(int64(cfg.HeartbeatTimeout))
	return m
}

// Start begins accepting connections and spawns the watchdog.
func (m *Monitor) Start(ctx context.Context) error {
	if m.running.Swap(true) {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		m.running.Store(false)
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.ListenAddr, err)
	}
	m.listener = ln
	m.stopCh = make(chan struct{})
	m.connMu.Lock()
	m.conns = make(map[net.Conn]struct{})
	m.connMu.Unlock()
	m.lastHeartbeat.Store(time.Now().UnixNano())

	m.log.Info("Heartbeat monitoring started", "addr", ln.Addr().String())

	m.wg.Add(2)
	go m.acceptLoop(ctx)
	go m.watchdog(ctx)
	return nil
}

// Stop halts the accept loop and the watchdog and closes the listener.
func (m *Monitor) Stop() error {
	if !m.running.Swap(false) {
		return ErrNotStarted
	}
	close(m.stopCh)
	if m.listener != nil {
		_ = m.listener.Close()
	}

	// Readers block in Scan until the peer writes or hangs up; close every
	// live connection so they return.
	m.connMu.Lock()
	for conn := range m.conns {
		_ = conn.Close()
	}
	m.connMu.Unlock()

	m.wg.Wait()
	m.log.Info("Monitoring stopped")
	return nil
}

// Addr returns the listener address (useful when listening on port 0).
func (m *Monitor) Addr() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// SetHeartbeatTimeout configures the silence threshold.
func (m *Monitor) SetHeartbeatTimeout(d time.Duration) {
	m.heartbeatTimeout.Store(int64(d))
	m.log.Info("Heartbeat timeout set", "timeout", d)
}

// SetHealthThresholds configures the analyzer thresholds.
func (m *Monitor) SetHealthThresholds(cpu, mem float64, errorCount int) {
	m.thresholdMu.Lock()
	m.cpuThreshold = cpu
	m.memThreshold = mem
	m.errorThreshold = errorCount
	m.thresholdMu.Unlock()
	m.log.Info("Health thresholds updated", "cpu", cpu, "mem", mem, "errors", errorCount)
}

func (m *Monitor) thresholds() (float64, float64, int) {
	m.thresholdMu.RLock()
	defer m.thresholdMu.RUnlock()
	return m.cpuThreshold, m.memThreshold, m.errorThreshold
}

// IsComponentHealthy reports whether a sample exists for the named
// component and all three metrics are at or below their thresholds.
func (m *Monitor) IsComponentHealthy(name string) bool {
	sample, ok := m.table.Get(name)
	if !ok {
		return false
	}
	cpu, mem, errCount := m.thresholds()
	return !sample.Breaches(cpu, mem, errCount)
}

// GetStats returns a snapshot of the running totals.
func (m *Monitor) GetStats() Stats {
	return Stats{
		TotalHeartbeats:     m.totalHeartbeats.Load(),
		MissedHeartbeats:    m.missedHeartbeats.Load(),
		ConsecutiveTimeouts: int(m.consecutiveTimeouts.Load()),
		CriticalFailure:     m.criticalFailure.Load(),
	}
}

// Report returns the current per-component health verdicts.
func (m *Monitor) Report() map[string]ComponentStatus {
	cpu, mem, errCount := m.thresholds()
	report := make(map[string]ComponentStatus)
	for _, sample := range m.table.Snapshot() {
		report[sample.Component] = ComponentStatus{
			Sample:  sample,
			Healthy: !sample.Breaches(cpu, mem, errCount),
		}
	}
	return report
}

func (m *Monitor) acceptLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		conn, err := m.listener.Accept()
		if err != nil {
			if !m.running.Load() || ctx.Err() != nil {
				return
			}
			m.log.Warn("Accept error", "error", err)
			continue
		}

		connID := uuid.NewString()[:8]
		m.log.Info("Connection established", "conn", connID, "remote", conn.RemoteAddr().String())

		m.trackConn(conn)
		m.wg.Add(1)
		go m.handleConn(conn, connID)
	}
}

// handleConn reads newline-delimited messages until the connection closes
// or the monitor stops. The connection is closed on every exit path.
func (m *Monitor) trackConn(conn net.Conn) {
	m.connMu.Lock()
	m.conns[conn] = struct{}{}
	m.connMu.Unlock()

	// A connection accepted while Stop is draining would miss its close
	// pass; closing here keeps the reader from outliving Stop.
	if !m.running.Load() {
		_ = conn.Close()
	}
}

func (m *Monitor) untrackConn(conn net.Conn) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	delete(m.conns, conn)
}

func (m *Monitor) handleConn(conn net.Conn, connID string) {
	defer m.wg.Done()
	defer m.untrackConn(conn)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if !m.running.Load() {
			return
		}
		m.processMessage(scanner.Text())
	}

	if err := scanner.Err(); err != nil && m.running.Load() {
		m.log.Warn("Connection error", "conn", connID, "error", err)
		m.missedHeartbeats.Add(1)
	}
	m.log.Info("Connection closed", "conn", connID)
}

// processMessage handles one framed line. A valid HEARTBEAT-tagged message
// refreshes liveness and resets the timeout counter before parsing; a line
// that fails to parse entirely counts as a missed heartbeat instead.
func (m *Monitor) processMessage(line string) {
	if !strings.HasPrefix(line, Tag) {
		return
	}

	msg, skipped, err := ParseMessage(line)
	if err != nil {
		m.missedHeartbeats.Add(1)
		metrics.HeartbeatsMissed.Inc()
		metrics.ParseErrors.Inc()
		m.log.Warn("Unparseable heartbeat message", "error", err)
		return
	}

	m.lastHeartbeat.Store(time.Now().UnixNano())
	m.totalHeartbeats.Add(1)
	m.consecutiveTimeouts.Store(0)
	metrics.HeartbeatsReceived.Inc()

	if skipped > 0 {
		metrics.ParseErrors.Add(float64(skipped))
		m.log.Warn("Heartbeat contained malformed segments", "skipped", skipped)
	}

	m.updateTable(msg)
	breached := m.analyze()

	_, _, errorThreshold := m.thresholds()
	if !msg.Healthy || msg.Failures >= errorThreshold {
		breached = true
		m.criticalFailure.Store(true)
		m.log.Warn("System health failure reported by emitter",
			"healthy", msg.Healthy, "failures", msg.Failures)
	}

	// The critical flag is sticky; only this explicit system-healthy
	// condition clears it and stands the fallback down.
	if !breached && m.consecutiveTimeouts.Load() < criticalTimeouts {
		m.criticalFailure.Store(false)
		m.fallback.Deactivate()
	}
}

func (m *Monitor) updateTable(msg *Message) {
	system := domain.HealthSample{
		Component: domain.SystemComponent,
		CPU:       msg.CPU,
		Mem:       msg.Mem,
		Errors:    msg.Failures,
	}
	m.table.Put(system)
	m.observe(system)

	for _, sample := range msg.Components {
		m.table.Put(sample)
		m.observe(sample)
	}
}

func (m *Monitor) observe(s domain.HealthSample) {
	metrics.ComponentCPU.WithLabelValues(s.Component).Set(s.CPU)
	metrics.ComponentMem.WithLabelValues(s.Component).Set(s.Mem)
	metrics.ComponentErrors.WithLabelValues(s.Component).Set(float64(s.Errors))
}

// analyze scans every table entry against the thresholds. Any breach is
// logged and raises the sticky critical-failure flag.
func (m *Monitor) analyze() bool {
	cpu, mem, errCount := m.thresholds()
	breached := false

	for _, sample := range m.table.Snapshot() {
		if sample.Breaches(cpu, mem, errCount) {
			breached = true
			m.log.Warn("Component exceeds health thresholds",
				"component", sample.Component,
				"cpu", sample.CPU, "mem", sample.Mem, "errors", sample.Errors)
		}
	}

	if breached {
		m.criticalFailure.Store(true)
	}
	return breached
}

// watchdog runs on a fixed period independent of the reader goroutines and
// can escalate even when no input arrives at all.
func (m *Monitor) watchdog(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.watchdogTick()
		}
	}
}

func (m *Monitor) watchdogTick() {
	elapsed := time.Duration(time.Now().UnixNano() - m.lastHeartbeat.Load())
	timeout := time.Duration(m.heartbeatTimeout.Load())

	if elapsed > timeout {
		n := m.consecutiveTimeouts.Add(1)
		m.missedHeartbeats.Add(1)
		metrics.WatchdogTimeouts.Inc()
		metrics.HeartbeatsMissed.Inc()

		m.log.Error("Heartbeat timeout", "count", n, "since_last", elapsed)

		if n >= criticalTimeouts {
			m.criticalFailure.Store(true)
			m.fallback.Activate("heartbeat timeout")
		}
		if n >= emergencyTimeouts {
			m.log.Error("Complete system failure detected, engaging emergency protocol")
			m.fallback.Activate("complete system failure")
		}
	}

	if total := m.totalHeartbeats.Load(); total > 0 && total%m.cfg.StatsEveryN == 0 {
		stats := m.GetStats()
		m.log.Info("Monitoring stats",
			"total", stats.TotalHeartbeats,
			"missed", stats.MissedHeartbeats,
			"reliability", fmt.Sprintf("%.2f%%", stats.Reliability()))
	}
}
