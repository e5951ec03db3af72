package domain

// SystemComponent is the synthetic table entry holding the system-level
// metrics carried at the top of every heartbeat.
const SystemComponent = "SYSTEM"

// HealthSample is the latest reported health metrics for a named component.
// Samples are immutable once constructed; a newer sample for the same
// component replaces the previous one.
type HealthSample struct {
	Component string  `json:"component"`
	CPU       float64 `json:"cpu_percent"`
	Mem       float64 `json:"mem_percent"`
	Errors    int     `json:"error_count"`
}

// Breaches reports whether any metric exceeds the given thresholds.
func (s HealthSample) Breaches(cpuLimit, memLimit float64, errorLimit int) bool {
	return s.CPU > cpuLimit || s.Mem > memLimit || s.Errors > errorLimit
}
