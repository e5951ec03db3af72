package heartbeat

import (
	"sort"
	"sync"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/domain"
)

// Table maps component names to their latest health sample. It is shared
// between the connection-reader path and the analyzer/status path; writes
// are last-write-wins per key and readers never observe partial entries.
type Table struct {
	mu      sync.RWMutex
	entries map[string]domain.HealthSample
}

// NewTable creates an empty health table.
func NewTable() *Table {
	return &Table{entries: make(map[string]domain.HealthSample)}
}

// Put records the latest sample for its component, replacing any previous one.
func (t *Table) Put(s domain.HealthSample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[s.Component] = s
}

// Get returns the latest sample for a component, if one exists.
func (t *Table) Get(name string) (domain.HealthSample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[name]
	return s, ok
}

// Snapshot returns a copy of all entries, sorted by component name so
// callers (encoding, analysis, reports) iterate deterministically.
func (t *Table) Snapshot() []domain.HealthSample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.HealthSample, 0, len(t.entries))
	for _, s := range t.entries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// Len returns the number of tracked components.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
