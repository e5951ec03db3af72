package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/domain"
	"github.com/saisandeepramavath/LaneChangeDecision/internal/metrics"
)

// Soft thresholds a locally reported sample must stay under for the emitter
// to consider itself healthy.
const (
	softCPULimit   = 80.0
	softMemLimit   = 85.0
	softErrorLimit = 5
)

// Send-failure escalation points: at unhealthyFailures the emitter marks
// itself unhealthy, at reconnectFailures it tears down and redials.
const (
	unhealthyFailures = 3
	reconnectFailures = 5
)

// Dialer opens the connection to the monitor. Injectable for tests.
type Dialer func(ctx context.Context) (net.Conn, error)

// SystemMetricsFunc supplies the live system-level CPU and memory
// percentages embedded in every heartbeat. Injectable for tests.
type SystemMetricsFunc func() (cpuPercent, memPercent float64)

// EmitterConfig configures a heartbeat emitter.
type EmitterConfig struct {
	// Target is the monitor address, host:port.
	Target string

	// Interval between heartbeat sends. Default: 1 second.
	Interval time.Duration

	// ReconnectBackoff is the initial wait before redialing after repeated
	// send failures. Default: 2 seconds.
	ReconnectBackoff time.Duration
}

func (c *EmitterConfig) applyDefaults() {
	if c.Target == "" {
		c.Target = "localhost:9000"
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = 2 * time.Second
	}
}

// Emitter owns a connection to the monitor and serializes the latest
// component health samples into heartbeat messages once per interval.
// Delivery is best-effort at-most-once-per-interval: there is no
// acknowledgment, and missed sends are only detected by the monitor's
// watchdog.
type Emitter struct {
	cfg     EmitterConfig
	dial    Dialer
	sysInfo SystemMetricsFunc
	table   *Table
	log     *slog.Logger
	backoff *backoff.ExponentialBackOff

	connMu sync.Mutex
	conn   net.Conn

	consecutiveFailures atomic.Int32

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewEmitter creates an emitter targeting cfg.Target over TCP.
func NewEmitter(cfg EmitterConfig, log *slog.Logger) *Emitter {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.ReconnectBackoff
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry for the life of the emitter

	e := &Emitter{
		cfg:     cfg,
		table:   NewTable(),
		log:     log,
		backoff: bo,
		sysInfo: systemMetrics,
	}
	e.dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", e.cfg.Target)
	}
	return e
}

// SetDialer overrides the connection factory. Must be called before Start.
func (e *Emitter) SetDialer(d Dialer) { e.dial = d }

// SetSystemMetrics overrides the system metrics source. Must be called
// before Start.
func (e *Emitter) SetSystemMetrics(fn SystemMetricsFunc) { e.sysInfo = fn }

// Start connects to the monitor and begins the asynchronous send loop.
// The initial dial is best-effort: on failure the send loop's failure
// counting drives reconnection.
func (e *Emitter) Start(ctx context.Context) error {
	if e.running.Swap(true) {
		return ErrAlreadyStarted
	}

	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})

	conn, err := e.dial(ctx)
	if err != nil {
		e.log.Error("Initial connection failed", "target", e.cfg.Target, "error", err)
	} else {
		e.setConn(conn)
		e.log.Info("Connected to monitor", "target", e.cfg.Target)
	}

	go e.run(ctx)
	return nil
}

// Stop halts the send loop and releases the connection.
func (e *Emitter) Stop() error {
	if !e.running.Swap(false) {
		return ErrNotStarted
	}
	close(e.stopCh)
	<-e.doneCh
	e.closeConn()
	e.log.Info("Emitter stopped")
	return nil
}

// ReportHealth records the latest sample for a named component. The sample
// is embedded in every subsequent heartbeat until replaced.
func (e *Emitter) ReportHealth(name string, cpuPct, memPct float64, errorCount int) {
	sample := domain.HealthSample{Component: name, CPU: cpuPct, Mem: memPct, Errors: errorCount}
	e.table.Put(sample)

	if sample.CPU >= softCPULimit || sample.Mem >= softMemLimit || sample.Errors >= softErrorLimit {
		e.log.Warn("Component health degraded",
			"component", name, "cpu", cpuPct, "mem", memPct, "errors", errorCount)
	}
}

// IsHealthy reports true only if fewer than three consecutive sends have
// failed and no locally tracked sample breaches the soft thresholds.
func (e *Emitter) IsHealthy() bool {
	if e.consecutiveFailures.Load() >= unhealthyFailures {
		return false
	}
	for _, s := range e.table.Snapshot() {
		if s.CPU >= softCPULimit || s.Mem >= softMemLimit || s.Errors >= softErrorLimit {
			return false
		}
	}
	return true
}

func (e *Emitter) run(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Emitter) tick(ctx context.Context) {
	msg := e.buildMessage()
	if err := e.writeLine(msg.Encode()); err != nil {
		failures := e.consecutiveFailures.Add(1)
		metrics.SendFailures.Inc()
		e.log.Error("Heartbeat send failure", "count", failures, "error", err)

		if failures >= unhealthyFailures {
			e.log.Error("Multiple consecutive heartbeat failures")
		}
		if failures >= reconnectFailures {
			e.reconnect(ctx)
		}
		return
	}

	e.consecutiveFailures.Store(0)
	e.log.Debug("Heartbeat sent", "components", e.table.Len())
}

// buildMessage assembles the heartbeat: live system metrics, the current
// consecutive-failure count, overall health and every tracked sample.
func (e *Emitter) buildMessage() *Message {
	cpuPct, memPct := e.sysInfo()
	return &Message{
		CPU:        cpuPct,
		Mem:        memPct,
		Failures:   int(e.consecutiveFailures.Load()),
		Healthy:    e.IsHealthy(),
		Components: e.table.Snapshot(),
	}
}

func (e *Emitter) writeLine(line string) error {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if e.conn == nil {
		return fmt.Errorf("no connection to %s", e.cfg.Target)
	}
	_, err := fmt.Fprintf(e.conn, "%s\n", line)
	return err
}

// reconnect closes the current connection, waits out the backoff and
// redials once. A failed attempt is logged and retried the next time the
// failure counter crosses the reconnect threshold, never in a tight loop.
func (e *Emitter) reconnect(ctx context.Context) {
	e.closeConn()

	wait := e.backoff.NextBackOff()
	select {
	case <-ctx.Done():
		return
	case <-e.stopCh:
		return
	case <-time.After(wait):
	}

	conn, err := e.dial(ctx)
	if err != nil {
		metrics.Reconnects.WithLabelValues("failure").Inc()
		e.log.Error("Reconnection failed", "target", e.cfg.Target, "error", err)
		return
	}

	e.setConn(conn)
	e.backoff.Reset()
	metrics.Reconnects.WithLabelValues("success").Inc()
	e.log.Info("Reconnected to monitor", "target", e.cfg.Target)
}

func (e *Emitter) setConn(conn net.Conn) {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	e.conn = conn
}

func (e *Emitter) closeConn() {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
}

// systemMetrics reads live CPU and memory usage via gopsutil. Errors
// degrade to zero values; a heartbeat with empty metrics still asserts
// liveness.
func systemMetrics() (float64, float64) {
	var cpuPct, memPct float64
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	}
	return cpuPct, memPct
}
