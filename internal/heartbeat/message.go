// Package heartbeat implements the heartbeat wire protocol, the emitter that
// sends periodic health reports and the monitor that detects their absence.
package heartbeat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/domain"
)

// Tag is the required leading token of every heartbeat line.
const Tag = "HEARTBEAT"

// ErrNotHeartbeat is returned for a line whose leading token is not the
// heartbeat tag. Such a message counts as missed for statistics.
var ErrNotHeartbeat = errors.New("not a heartbeat message")

// Message is one decoded heartbeat: system-level metrics plus zero or more
// named component samples. It exists only on the wire; the monitor folds it
// into the component health table.
type Message struct {
	CPU        float64
	Mem        float64
	Failures   int
	Healthy    bool
	Components []domain.HealthSample
}

// Encode serializes the message into the pipe-delimited wire format:
//
//	HEARTBEAT|CPU:<float>|MEM:<float>|FAILURES:<int>|HEALTHY:<bool>[|COMP:<name>:<cpu>:<mem>:<errors>]*
func (m *Message) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|CPU:%.2f|MEM:%.2f|FAILURES:%d|HEALTHY:%t",
		Tag, m.CPU, m.Mem, m.Failures, m.Healthy)
	for _, c := range m.Components {
		fmt.Fprintf(&b, "|COMP:%s:%.2f:%.2f:%d", c.Component, c.CPU, c.Mem, c.Errors)
	}
	return b.String()
}

// ParseMessage decodes a heartbeat line. Fields may appear in any order
// after the leading tag. Unparseable fields and malformed component
// segments are skipped rather than aborting the message; the number of
// skipped segments is returned so the caller can log them. A line without
// the leading tag fails entirely with ErrNotHeartbeat.
func ParseMessage(line string) (*Message, int, error) {
	parts := strings.Split(strings.TrimSpace(line), "|")
	if parts[0] != Tag {
		return nil, 0, ErrNotHeartbeat
	}

	msg := &Message{Healthy: true}
	skipped := 0

	for _, part := range parts[1:] {
		switch {
		case strings.HasPrefix(part, "CPU:"):
			v, err := strconv.ParseFloat(part[len("CPU:"):], 64)
			if err != nil {
				skipped++
				continue
			}
			msg.CPU = v
		case strings.HasPrefix(part, "MEM:"):
			v, err := strconv.ParseFloat(part[len("MEM:"):], 64)
			if err != nil {
				skipped++
				continue
			}
			msg.Mem = v
		case strings.HasPrefix(part, "FAILURES:"):
			v, err := strconv.Atoi(part[len("FAILURES:"):])
			if err != nil {
				skipped++
				continue
			}
			msg.Failures = v
		case strings.HasPrefix(part, "HEALTHY:"):
			v, err := strconv.ParseBool(part[len("HEALTHY:"):])
			if err != nil {
				skipped++
				continue
			}
			msg.Healthy = v
		case strings.HasPrefix(part, "COMP:"):
			sample, ok := parseComponent(part[len("COMP:"):])
			if !ok {
				skipped++
				continue
			}
			msg.Components = append(msg.Components, sample)
		default:
			skipped++
		}
	}

	return msg, skipped, nil
}

// parseComponent decodes a COMP segment body: <name>:<cpu>:<mem>:<errors>.
// There is no escaping of ':' inside the name.
func parseComponent(seg string) (domain.HealthSample, bool) {
	fields := strings.Split(seg, ":")
	if len(fields) < 4 || fields[0] == "" {
		return domain.HealthSample{}, false
	}

	cpu, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return domain.HealthSample{}, false
	}
	mem, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return domain.HealthSample{}, false
	}
	errCount, err := strconv.Atoi(fields[3])
	if err != nil {
		return domain.HealthSample{}, false
	}

	return domain.HealthSample{
		Component: fields[0],
		CPU:       cpu,
		Mem:       mem,
		Errors:    errCount,
	}, true
}
