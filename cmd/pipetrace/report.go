package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/pipetrace/trace/pipeline"
	"github.com/sarchlab/pipetrace/trace/projection"
)

// printModel writes a text rendering of one cycle. With verbose set it
// also dumps the register file, marking reads with '<' and the write
// with '*'.
func printModel(w io.Writer, m projection.DisplayModel, s *pipeline.CycleSnapshot, verbose bool) {
	fmt.Fprintf(w, "Cycle %d\n", m.Cycle)

	for _, v := range m.Stages {
		fmt.Fprintf(w, "  %-4s 0x%08X  %-24s %s", v.Stage, v.PC, v.Disassembly, v.Status)
		if s != nil && v.Status == projection.StatusOK {
			if target, ok := s.Stage(v.Stage).Decoded.Target(v.PC); ok {
				fmt.Fprintf(w, "  -> 0x%08X", target)
			}
		}
		fmt.Fprintln(w)
	}

	if m.NoHazards() {
		fmt.Fprintf(w, "Hazards: none\n")
	} else {
		for _, msg := range m.HazardMessages {
			fmt.Fprintf(w, "Hazard: %s\n", msg)
		}
	}

	if m.Forwarding.Any() {
		fmt.Fprintf(w, "Forwarding: A <- %s, B <- %s\n",
			m.Forwarding.Sources.OperandASource, m.Forwarding.Sources.OperandBSource)
	}
	if m.Branch.Taken {
		fmt.Fprintf(w, "Branch: taken -> 0x%08X\n", m.Branch.Target)
	}
	if m.Memory.Write {
		fmt.Fprintf(w, "MEM: [0x%08X] <- 0x%08X\n", m.Memory.Address, m.Memory.Data)
	}
	if m.Writeback.Active {
		fmt.Fprintf(w, "WB: %s <- 0x%08X\n", pipeline.RegisterName(m.Writeback.Register), m.Writeback.Data)
	}

	if verbose && s != nil {
		printRegisters(w, m, s)
	}
}

func printRegisters(w io.Writer, m projection.DisplayModel, s *pipeline.CycleSnapshot) {
	for r := 0; r < pipeline.NumRegisters; r++ {
		mark := ' '
		switch m.RegisterHighlights[r] {
		case projection.HighlightRead:
			mark = '<'
		case projection.HighlightWrite:
			mark = '*'
		}

		fmt.Fprintf(w, "  %-3s%c 0x%08X", pipeline.RegisterName(uint8(r)), mark, s.RegisterFile.ReadReg(uint8(r)))
		if r%4 == 3 {
			fmt.Fprintln(w)
		}
	}
}

// printTimeline writes the pipeline diagram, one instruction per row.
// A stalled slot is marked with '*'.
func printTimeline(w io.Writer, t projection.Timeline) {
	if len(t.Rows) == 0 {
		fmt.Fprintf(w, "No instructions in range\n")
		return
	}

	fmt.Fprintf(w, "%-10s  %-24s", "PC", "Instruction")
	for _, c := range t.Cycles {
		fmt.Fprintf(w, " %5d", c)
	}
	fmt.Fprintln(w)

	for _, row := range t.Rows {
		var b strings.Builder
		fmt.Fprintf(&b, "0x%08X  %-24s", row.PC, row.Disassembly)
		for _, cell := range row.Cells {
			label := ""
			if cell.Present {
				label = cell.Stage.String()
				if cell.Stalled {
					label += "*"
				}
			}
			fmt.Fprintf(&b, " %5s", label)
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}
