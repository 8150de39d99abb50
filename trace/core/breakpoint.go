package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/pipetrace/trace/pipeline"
)

// BreakpointKind selects the snapshot field a breakpoint watches.
type BreakpointKind uint8

// Breakpoint kinds.
const (
	BreakIFPC    BreakpointKind = iota // PC of the IF slot
	BreakIDPC                          // PC of the ID slot
	BreakEXPC                          // PC of the EX slot
	BreakMEMPC                         // PC of the MEM slot
	BreakWBPC                          // PC of the WB slot
	BreakWBRd                          // Writeback destination register
	BreakMemAddr                       // MEM stage address
	BreakWBWE                          // Writeback enable, 0 or 1
)

var breakpointNames = [...]string{
	BreakIFPC:    "if_pc",
	BreakIDPC:    "id_pc",
	BreakEXPC:    "ex_pc",
	BreakMEMPC:   "mem_pc",
	BreakWBPC:    "wb_pc",
	BreakWBRd:    "wb_rd",
	BreakMemAddr: "mem_addr",
	BreakWBWE:    "wb_we",
}

func (k BreakpointKind) String() string {
	if int(k) < len(breakpointNames) {
		return breakpointNames[k]
	}
	return fmt.Sprintf("BreakpointKind(%d)", k)
}

// Breakpoint stops a run when a watched field equals Value.
type Breakpoint struct {
	Kind  BreakpointKind
	Value uint32
}

func (b Breakpoint) String() string {
	return fmt.Sprintf("%s=%#x", b.Kind, b.Value)
}

// ParseBreakpoint parses "kind=value" or "kind value". The value may be
// decimal or 0x-prefixed hex.
func ParseBreakpoint(text string) (Breakpoint, error) {
	kindText, valueText, ok := strings.Cut(strings.TrimSpace(text), "=")
	if !ok {
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return Breakpoint{}, fmt.Errorf("breakpoint %q: want kind=value", text)
		}
		kindText, valueText = fields[0], fields[1]
	}

	kind, ok := parseKind(strings.TrimSpace(kindText))
	if !ok {
		return Breakpoint{}, fmt.Errorf("breakpoint %q: unknown kind %q", text, kindText)
	}

	value, err := strconv.ParseUint(strings.TrimSpace(valueText), 0, 32)
	if err != nil {
		return Breakpoint{}, fmt.Errorf("breakpoint %q: %w", text, err)
	}

	if kind == BreakWBRd && value >= pipeline.NumRegisters {
		return Breakpoint{}, fmt.Errorf("breakpoint %q: register out of range", text)
	}
	if kind == BreakWBWE && value > 1 {
		return Breakpoint{}, fmt.Errorf("breakpoint %q: write enable must be 0 or 1", text)
	}

	return Breakpoint{Kind: kind, Value: uint32(value)}, nil
}

func parseKind(name string) (BreakpointKind, bool) {
	for k, n := range breakpointNames {
		if strings.EqualFold(n, name) {
			return BreakpointKind(k), true
		}
	}
	return 0, false
}

// Matches returns true if the snapshot satisfies the breakpoint.
func (b Breakpoint) Matches(s *pipeline.CycleSnapshot) bool {
	switch b.Kind {
	case BreakIFPC, BreakIDPC, BreakEXPC, BreakMEMPC, BreakWBPC:
		st := pipeline.StageIF + pipeline.Stage(b.Kind-BreakIFPC)
		return s.Stage(st).PC == b.Value
	case BreakWBRd:
		return uint32(s.Writeback.DestRegister) == b.Value
	case BreakMemAddr:
		return s.Memory.Address == b.Value
	case BreakWBWE:
		return s.Writeback.WriteEnable == (b.Value != 0)
	default:
		return false
	}
}
