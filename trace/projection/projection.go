// Package projection derives the display model of a pipeline cycle.
//
// The engine is a pure function of one validated snapshot: it holds no
// state between cycles, so the same snapshot always projects to the same
// DisplayModel. Cross-cycle diffing and animation belong to the renderer.
package projection

import (
	"fmt"

	"github.com/sarchlab/pipetrace/insts"
	"github.com/sarchlab/pipetrace/trace/pipeline"
)

// FlushedMnemonic replaces the IF and ID mnemonics while a flush is asserted.
const FlushedMnemonic = "(flushed)"

// Hazard messages, emitted in this order.
const (
	FetchStallMessage  = "IF stall: fetch holds the current PC"
	DecodeStallMessage = "ID stall: decode holds its instruction, bubble sent to EX"
	FlushMessage       = "Flush: IF and ID squashed by a taken branch"
)

// Highlight marks how a register is used this cycle.
type Highlight uint8

// Register highlights.
const (
	HighlightNone Highlight = iota
	HighlightRead
	HighlightWrite
)

func (h Highlight) String() string {
	switch h {
	case HighlightRead:
		return "read"
	case HighlightWrite:
		return "write"
	default:
		return "none"
	}
}

// StageStatus summarizes a stage slot for display.
type StageStatus uint8

// Stage statuses.
const (
	StatusOK StageStatus = iota
	StatusBubble
	StatusStalled
	StatusFlushed
)

func (s StageStatus) String() string {
	switch s {
	case StatusBubble:
		return "BUBBLE"
	case StatusStalled:
		return "STALL"
	case StatusFlushed:
		return "FLUSH"
	default:
		return "OK"
	}
}

// StageView is the display data of one stage.
type StageView struct {
	Stage       pipeline.Stage
	PC          uint32
	Mnemonic    string
	Disassembly string
	Status      StageStatus
}

// ForwardingStatus reports the forwarding muxes.
type ForwardingStatus struct {
	AActive bool
	BActive bool
	Sources pipeline.ForwardingSignals
}

// Any returns true if either operand is forwarded.
func (f ForwardingStatus) Any() bool {
	return f.AActive || f.BActive
}

// BranchStatus reports the EX redirect. Target is 0 unless Taken.
type BranchStatus struct {
	Taken  bool
	Target uint32
}

// WritebackStatus reports the register-file write wire.
type WritebackStatus struct {
	Active   bool
	Register uint8
	Data     uint32
}

// MemoryStatus reports the data-memory write port.
type MemoryStatus struct {
	Write   bool
	Address uint32
	Data    uint32
}

// DisplayModel is everything a renderer needs to draw one cycle.
type DisplayModel struct {
	Cycle              uint64
	RegisterHighlights [pipeline.NumRegisters]Highlight
	StageMnemonics     [pipeline.NumStages]string
	HazardMessages     []string
	Forwarding         ForwardingStatus
	Branch             BranchStatus

	Stages    [pipeline.NumStages]StageView
	Writeback WritebackStatus
	Memory    MemoryStatus
}

// NoHazards returns true when no hazard message applies. Renderers show
// this as an explicit "no hazards" state.
func (m *DisplayModel) NoHazards() bool {
	return len(m.HazardMessages) == 0
}

// Engine projects snapshots into display models.
type Engine struct{}

// NewEngine creates a new projection engine.
func NewEngine() *Engine {
	return &Engine{}
}

var defaultEngine Engine

// Project projects a snapshot with the default engine.
func Project(s *pipeline.CycleSnapshot) DisplayModel {
	return defaultEngine.Project(s)
}

// Project derives the display model of a validated snapshot. A snapshot
// that fails Validate is a programming error and panics.
func (e *Engine) Project(s *pipeline.CycleSnapshot) DisplayModel {
	if err := s.Validate(); err != nil {
		panic(fmt.Sprintf("projection: %v", err))
	}

	m := DisplayModel{Cycle: s.Cycle}

	e.projectStages(s, &m)
	m.RegisterHighlights = e.registerHighlights(s)
	m.HazardMessages = e.hazardMessages(s.Hazard)
	m.Forwarding = ForwardingStatus{
		AActive: s.Forward.OperandASource != pipeline.ForwardNone,
		BActive: s.Forward.OperandBSource != pipeline.ForwardNone,
		Sources: s.Forward,
	}

	if s.Execute.BranchTaken {
		m.Branch = BranchStatus{Taken: true, Target: s.Execute.BranchTarget}
	}

	if s.Writeback.Committed() {
		m.Writeback = WritebackStatus{
			Active:   true,
			Register: s.Writeback.DestRegister,
			Data:     s.Writeback.WriteData,
		}
	}

	if s.Memory.WriteEnable {
		m.Memory = MemoryStatus{
			Write:   true,
			Address: s.Memory.Address,
			Data:    s.Memory.WriteData,
		}
	}

	return m
}

func (e *Engine) projectStages(s *pipeline.CycleSnapshot, m *DisplayModel) {
	for i := range s.Stages {
		slot := &s.Stages[i]
		view := StageView{
			Stage:       slot.Stage,
			PC:          slot.PC,
			Mnemonic:    slot.Decoded.Mnemonic(),
			Disassembly: slot.Decoded.String(),
			Status:      stageStatus(slot, s.Hazard),
		}

		if view.Status == StatusFlushed {
			view.Mnemonic = FlushedMnemonic
			view.Disassembly = FlushedMnemonic
		}

		m.Stages[i] = view
		m.StageMnemonics[i] = view.Mnemonic
	}
}

func stageStatus(slot *pipeline.StageSnapshot, h pipeline.HazardSignals) StageStatus {
	early := slot.Stage == pipeline.StageIF || slot.Stage == pipeline.StageID

	switch {
	case h.Flush && early:
		return StatusFlushed
	case h.FetchStall && slot.Stage == pipeline.StageIF:
		return StatusStalled
	case h.DecodeStall && slot.Stage == pipeline.StageID:
		return StatusStalled
	case slot.Decoded.IsBubble():
		return StatusBubble
	default:
		return StatusOK
	}
}

// registerHighlights marks the committed write and the reads of the ID
// instruction. A read only counts when the ID instruction actually
// consumes that operand role; a flushed ID slot reads nothing. Write
// takes precedence and x0 is never highlighted.
func (e *Engine) registerHighlights(s *pipeline.CycleSnapshot) [pipeline.NumRegisters]Highlight {
	var hl [pipeline.NumRegisters]Highlight

	if !s.Hazard.Flush {
		ctrl := insts.Classify(s.Stage(pipeline.StageID).InstructionWord)
		ops := s.DecodeOperands

		if ctrl.UsesRs1 && ops.Rs1 != 0 {
			hl[ops.Rs1] = HighlightRead
		}
		if ctrl.UsesRs2 && ops.Rs2 != 0 {
			hl[ops.Rs2] = HighlightRead
		}
	}

	if s.Writeback.Committed() {
		hl[s.Writeback.DestRegister] = HighlightWrite
	}

	return hl
}

func (e *Engine) hazardMessages(h pipeline.HazardSignals) []string {
	msgs := make([]string, 0, 3)
	if h.FetchStall {
		msgs = append(msgs, FetchStallMessage)
	}
	if h.DecodeStall {
		msgs = append(msgs, DecodeStallMessage)
	}
	if h.Flush {
		msgs = append(msgs, FlushMessage)
	}
	return msgs
}
