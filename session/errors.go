// Package session connects to a pipeline simulator and turns its
// per-cycle packets into validated snapshots.
package session

import (
	"errors"
	"fmt"
)

// ErrNoSuchCycle is returned when a step or back request crosses a
// simulation boundary: cycle 0 has no predecessor, and a finished or
// fully replayed run has no successor. It is recoverable; the caller
// stays at its current cycle.
var ErrNoSuchCycle = errors.New("no such cycle")

// Wire error codes sent in a packet's "error" field.
const (
	codeNoSuchCycle = "no_such_cycle"
)

// SimulatorError is an error reported by the simulator in an error packet.
type SimulatorError struct {
	Message string
}

func (e *SimulatorError) Error() string {
	return fmt.Sprintf("simulator error: %s", e.Message)
}

func errorFromCode(code string) error {
	if code == codeNoSuchCycle {
		return ErrNoSuchCycle
	}
	return &SimulatorError{Message: code}
}
