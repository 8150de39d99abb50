package pipeline

import (
	"errors"
	"fmt"

	"github.com/sarchlab/pipetrace/insts"
)

// ErrMalformedSnapshot is matched by every MalformedSnapshotError.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// MalformedSnapshotError reports a structural violation in a snapshot
// supplied by the simulator. It indicates an integration bug and is never
// patched over.
type MalformedSnapshotError struct {
	Cycle  uint64
	Reason string
}

func (e *MalformedSnapshotError) Error() string {
	return fmt.Sprintf("malformed snapshot at cycle %d: %s", e.Cycle, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedSnapshot) succeed.
func (e *MalformedSnapshotError) Is(target error) bool {
	return target == ErrMalformedSnapshot
}

func malformed(cycle uint64, format string, args ...any) error {
	return &MalformedSnapshotError{Cycle: cycle, Reason: fmt.Sprintf(format, args...)}
}

// Raw is the loosely shaped per-cycle input from the simulator. Stages
// may arrive in any order and the register file as a plain slice; New
// checks both.
type Raw struct {
	Cycle          uint64
	Stages         []StageSnapshot // Decoded is ignored and recomputed
	RegisterFile   []uint32
	DecodeOperands DecodeOperands
	Execute        ExecuteResult
	Memory         MemoryAccess
	Writeback      WritebackResult
	Hazard         HazardSignals
	Forward        ForwardingSignals
}

// CycleSnapshot is the validated state of the pipeline for one clock
// cycle. Build it with New.
type CycleSnapshot struct {
	// Cycle counts clock edges from 0.
	Cycle uint64

	// Stages holds one slot per stage, indexed by Stage.
	Stages [NumStages]StageSnapshot

	// RegisterFile holds x0-x31; RegisterFile[0] is always 0.
	RegisterFile RegisterFile

	DecodeOperands DecodeOperands
	Execute        ExecuteResult
	Memory         MemoryAccess
	Writeback      WritebackResult
	Hazard         HazardSignals
	Forward        ForwardingSignals
}

// New validates raw and builds a CycleSnapshot, decoding every stage's
// instruction word. It fails with *MalformedSnapshotError when the
// register file does not hold exactly 32 values, when a stage is missing,
// duplicated or unknown, or when x0 is non-zero.
func New(raw Raw) (*CycleSnapshot, error) {
	if len(raw.RegisterFile) != NumRegisters {
		return nil, malformed(raw.Cycle,
			"register file has %d entries, want %d", len(raw.RegisterFile), NumRegisters)
	}

	s := &CycleSnapshot{
		Cycle:          raw.Cycle,
		DecodeOperands: raw.DecodeOperands,
		Execute:        raw.Execute,
		Memory:         raw.Memory,
		Writeback:      raw.Writeback,
		Hazard:         raw.Hazard,
		Forward:        raw.Forward,
	}
	copy(s.RegisterFile[:], raw.RegisterFile)

	var seen [NumStages]bool
	for _, st := range raw.Stages {
		if !st.Stage.Valid() {
			return nil, malformed(raw.Cycle, "unknown stage %d", st.Stage)
		}
		if seen[st.Stage] {
			return nil, malformed(raw.Cycle, "duplicate stage %s", st.Stage)
		}
		seen[st.Stage] = true

		s.Stages[st.Stage] = StageSnapshot{
			Stage:           st.Stage,
			PC:              st.PC,
			InstructionWord: st.InstructionWord,
			Decoded:         insts.Decode(st.InstructionWord),
		}
	}
	for _, st := range Stages {
		if !seen[st] {
			return nil, malformed(raw.Cycle, "missing stage %s", st)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the snapshot invariants. Snapshots built by New always
// pass; it exists for consumers handed a CycleSnapshot from elsewhere.
func (s *CycleSnapshot) Validate() error {
	for i, st := range s.Stages {
		if st.Stage != Stage(i) {
			return malformed(s.Cycle, "slot %d holds stage %s", i, st.Stage)
		}
		if st.Decoded.Raw != st.InstructionWord {
			return malformed(s.Cycle, "stage %s decoded %#08x, word is %#08x",
				st.Stage, st.Decoded.Raw, st.InstructionWord)
		}
	}

	if s.RegisterFile[0] != 0 {
		return malformed(s.Cycle, "x0 holds %#x", s.RegisterFile[0])
	}

	ops := s.DecodeOperands
	for _, r := range []uint8{ops.Rs1, ops.Rs2, ops.Rd} {
		if r >= NumRegisters {
			return malformed(s.Cycle, "register index %d out of range", r)
		}
	}
	// The writeback port is only meaningful while write enable is high.
	if s.Writeback.WriteEnable && s.Writeback.DestRegister >= NumRegisters {
		return malformed(s.Cycle, "register index %d out of range", s.Writeback.DestRegister)
	}

	if !s.Forward.OperandASource.Valid() {
		return malformed(s.Cycle, "operand A forward source %d", s.Forward.OperandASource)
	}
	if !s.Forward.OperandBSource.Valid() {
		return malformed(s.Cycle, "operand B forward source %d", s.Forward.OperandBSource)
	}

	return nil
}

// Stage returns the slot of the given stage.
func (s *CycleSnapshot) Stage(st Stage) *StageSnapshot {
	return &s.Stages[st]
}
