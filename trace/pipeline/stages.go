// Package pipeline provides the per-cycle snapshot model of a 5-stage
// in-order RV32I pipeline.
package pipeline

import (
	"strings"

	"github.com/sarchlab/pipetrace/insts"
)

// Stage identifies one of the five pipeline stages.
type Stage uint8

// Pipeline stages in program order.
const (
	StageIF Stage = iota
	StageID
	StageEX
	StageMEM
	StageWB
)

// NumStages is the depth of the pipeline.
const NumStages = 5

var stageNames = [NumStages]string{"IF", "ID", "EX", "MEM", "WB"}

// Stages lists every stage in program order.
var Stages = [NumStages]Stage{StageIF, StageID, StageEX, StageMEM, StageWB}

// String returns the short stage name.
func (s Stage) String() string {
	if s.Valid() {
		return stageNames[s]
	}
	return "?"
}

// Valid returns true if s names a pipeline stage.
func (s Stage) Valid() bool {
	return s < NumStages
}

// ParseStage maps a stage name (any case) to a Stage.
func ParseStage(name string) (Stage, bool) {
	for i, n := range stageNames {
		if strings.EqualFold(n, name) {
			return Stage(i), true
		}
	}
	return 0, false
}

// StageSnapshot holds what one stage contains in a cycle.
type StageSnapshot struct {
	// Stage is the stage this slot belongs to.
	Stage Stage

	// PC is the program counter of the resident instruction.
	PC uint32

	// InstructionWord is the raw 32-bit instruction word.
	InstructionWord uint32

	// Decoded is the decoded form of InstructionWord.
	Decoded insts.Instruction
}
