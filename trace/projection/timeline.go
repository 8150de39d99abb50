package projection

import (
	"github.com/sarchlab/pipetrace/trace/pipeline"
)

// TimelineCell is where one instruction sits in one cycle.
type TimelineCell struct {
	Present bool
	Stage   pipeline.Stage
	Stalled bool
}

// TimelineRow follows one instruction, keyed by its PC, through the run.
type TimelineRow struct {
	PC          uint32
	Disassembly string
	// Cells is indexed like Timeline.Cycles.
	Cells []TimelineCell
}

// Timeline is the classic pipeline diagram: one row per instruction, one
// column per cycle.
type Timeline struct {
	Cycles []uint64
	Rows   []TimelineRow
}

// BuildTimeline lays snapshots out as a pipeline diagram. Rows appear in
// the order their PC is first seen. Bubbles and flushed slots occupy no
// cell. When a PC is in two stages of the same cycle, the later stage
// wins.
func BuildTimeline(snaps []*pipeline.CycleSnapshot) Timeline {
	t := Timeline{Cycles: make([]uint64, len(snaps))}
	rowOf := make(map[uint32]int)

	for col, s := range snaps {
		t.Cycles[col] = s.Cycle
		m := Project(s)

		for _, v := range m.Stages {
			if v.Status == StatusBubble || v.Status == StatusFlushed {
				continue
			}

			i, ok := rowOf[v.PC]
			if !ok {
				i = len(t.Rows)
				rowOf[v.PC] = i
				t.Rows = append(t.Rows, TimelineRow{
					PC:          v.PC,
					Disassembly: v.Disassembly,
					Cells:       make([]TimelineCell, len(snaps)),
				})
			}

			t.Rows[i].Cells[col] = TimelineCell{
				Present: true,
				Stage:   v.Stage,
				Stalled: v.Status == StatusStalled,
			}
		}
	}

	return t
}
