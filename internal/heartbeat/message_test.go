package heartbeat

import (
	"errors"
	"testing"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/domain"
)

func TestMessage_EncodeParseRoundTrip(t *testing.T) {
	msg := &Message{
		CPU:      42.5,
		Mem:      61.25,
		Failures: 2,
		Healthy:  false,
		Components: []domain.HealthSample{
			{Component: "LaneChangeModule", CPU: 30.5, Mem: 48.75, Errors: 1},
			{Component: "SensorFusion", CPU: 12, Mem: 20, Errors: 0},
		},
	}

	decoded, skipped, err := ParseMessage(msg.Encode())
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if skipped != 0 {
		t.Errorf("Expected no skipped segments, got %d", skipped)
	}

	if decoded.CPU != 42.5 || decoded.Mem != 61.25 || decoded.Failures != 2 || decoded.Healthy {
		t.Errorf("System fields not recovered: %+v", decoded)
	}
	if len(decoded.Components) != 2 {
		t.Fatalf("Expected 2 components, got %d", len(decoded.Components))
	}
	if decoded.Components[0] != (domain.HealthSample{Component: "LaneChangeModule", CPU: 30.5, Mem: 48.75, Errors: 1}) {
		t.Errorf("Component not recovered: %+v", decoded.Components[0])
	}
}

func TestParseMessage_OrderIndependent(t *testing.T) {
	line := "HEARTBEAT|HEALTHY:true|FAILURES:3|MEM:50.00|CPU:10.00"

	msg, skipped, err := ParseMessage(line)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if skipped != 0 {
		t.Errorf("Expected no skipped segments, got %d", skipped)
	}
	if msg.CPU != 10 || msg.Mem != 50 || msg.Failures != 3 || !msg.Healthy {
		t.Errorf("Fields not recovered from reordered message: %+v", msg)
	}
}

func TestParseMessage_MalformedFieldSkipped(t *testing.T) {
	line := "HEARTBEAT|CPU:not-a-number|MEM:50.00|FAILURES:1|HEALTHY:true"

	msg, skipped, err := ParseMessage(line)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if skipped != 1 {
		t.Errorf("Expected 1 skipped segment, got %d", skipped)
	}
	if msg.CPU != 0 {
		t.Errorf("Malformed CPU field should be skipped, got %v", msg.CPU)
	}
	if msg.Mem != 50 {
		t.Errorf("Valid MEM field should survive, got %v", msg.Mem)
	}
}

func TestParseMessage_MalformedComponentSkipped(t *testing.T) {
	line := "HEARTBEAT|CPU:10.00|MEM:20.00|FAILURES:0|HEALTHY:true" +
		"|COMP:Broken:1.0|COMP:Mod:95.00:50.00:1|COMP::1:2:3|COMP:Bad:x:y:z"

	msg, skipped, err := ParseMessage(line)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if skipped != 3 {
		t.Errorf("Expected 3 skipped segments, got %d", skipped)
	}
	if len(msg.Components) != 1 {
		t.Fatalf("Expected 1 surviving component, got %d", len(msg.Components))
	}
	if msg.Components[0].Component != "Mod" || msg.Components[0].CPU != 95 {
		t.Errorf("Unexpected surviving component: %+v", msg.Components[0])
	}
}

func TestParseMessage_UnknownFieldSkipped(t *testing.T) {
	line := "HEARTBEAT|CPU:10.00|MEM:20.00|FAILURES:0|HEALTHY:true|WHAT:1"

	_, skipped, err := ParseMessage(line)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if skipped != 1 {
		t.Errorf("Expected 1 skipped segment, got %d", skipped)
	}
}

func TestParseMessage_NotHeartbeat(t *testing.T) {
	for _, line := range []string{"", "PING", "HEARTBEATX|CPU:1.00"} {
		if _, _, err := ParseMessage(line); !errors.Is(err, ErrNotHeartbeat) {
			t.Errorf("ParseMessage(%q) expected ErrNotHeartbeat, got %v", line, err)
		}
	}
}

func TestParseMessage_ComponentExtraFieldsTolerated(t *testing.T) {
	// No escaping of ':' on the wire; extra trailing fields are ignored.
	line := "HEARTBEAT|CPU:1.00|MEM:2.00|FAILURES:0|HEALTHY:true|COMP:Mod:10.00:20.00:3:extra"

	msg, _, err := ParseMessage(line)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if len(msg.Components) != 1 || msg.Components[0].Errors != 3 {
		t.Errorf("Expected component with first four fields, got %+v", msg.Components)
	}
}
