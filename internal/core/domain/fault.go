package domain

import "fmt"

// FaultKind classifies a processing fault that is unrecoverable at the
// producing layer. The owning loop stops itself on any of these instead of
// crashing the process; the resulting silence is what the watchdog detects.
type FaultKind string

const (
	FaultDataCorruption    FaultKind = "data_corruption"
	FaultArithmeticInvalid FaultKind = "arithmetic_invalid"
)

// ProcessingFault is the tagged failure outcome of an evaluation step.
type ProcessingFault struct {
	Kind   FaultKind
	Detail string
}

func (f *ProcessingFault) Error() string {
	return fmt.Sprintf("processing fault (%s): %s", f.Kind, f.Detail)
}
