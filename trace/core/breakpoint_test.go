package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipetrace/trace/core"
	"github.com/sarchlab/pipetrace/trace/pipeline"
)

var _ = Describe("Breakpoint", func() {
	DescribeTable("ParseBreakpoint",
		func(text string, want core.Breakpoint) {
			bp, err := core.ParseBreakpoint(text)
			Expect(err).NotTo(HaveOccurred())
			Expect(bp).To(Equal(want))
		},
		Entry("hex pc", "if_pc=0x100", core.Breakpoint{Kind: core.BreakIFPC, Value: 0x100}),
		Entry("decimal register", "wb_rd=5", core.Breakpoint{Kind: core.BreakWBRd, Value: 5}),
		Entry("space separated", "mem_addr 4096", core.Breakpoint{Kind: core.BreakMemAddr, Value: 4096}),
		Entry("upper-case kind", "EX_PC=8", core.Breakpoint{Kind: core.BreakEXPC, Value: 8}),
		Entry("write enable", "wb_we=1", core.Breakpoint{Kind: core.BreakWBWE, Value: 1}),
	)

	DescribeTable("ParseBreakpoint errors",
		func(text string) {
			_, err := core.ParseBreakpoint(text)
			Expect(err).To(HaveOccurred())
		},
		Entry("no value", "if_pc"),
		Entry("unknown kind", "pc=4"),
		Entry("bad number", "if_pc=zz"),
		Entry("value too wide", "if_pc=0x100000000"),
		Entry("register out of range", "wb_rd=32"),
		Entry("write enable not a bit", "wb_we=2"),
	)

	It("should format as kind=value", func() {
		Expect(core.Breakpoint{Kind: core.BreakMEMPC, Value: 16}.String()).To(Equal("mem_pc=0x10"))
	})

	Describe("Matches", func() {
		var s *pipeline.CycleSnapshot

		BeforeEach(func() {
			raw := pipeline.Raw{
				Cycle:        9,
				RegisterFile: make([]uint32, pipeline.NumRegisters),
				Memory:       pipeline.MemoryAccess{Address: 0x2000},
				Writeback:    pipeline.WritebackResult{WriteEnable: true, DestRegister: 7},
			}
			for _, st := range pipeline.Stages {
				raw.Stages = append(raw.Stages, pipeline.StageSnapshot{
					Stage: st,
					PC:    0x100 - uint32(st)*4,
				})
			}

			var err error
			s, err = pipeline.New(raw)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("each kind",
			func(bp core.Breakpoint, want bool) {
				Expect(bp.Matches(s)).To(Equal(want))
			},
			Entry("if_pc hit", core.Breakpoint{Kind: core.BreakIFPC, Value: 0x100}, true),
			Entry("id_pc hit", core.Breakpoint{Kind: core.BreakIDPC, Value: 0xFC}, true),
			Entry("ex_pc hit", core.Breakpoint{Kind: core.BreakEXPC, Value: 0xF8}, true),
			Entry("mem_pc hit", core.Breakpoint{Kind: core.BreakMEMPC, Value: 0xF4}, true),
			Entry("wb_pc hit", core.Breakpoint{Kind: core.BreakWBPC, Value: 0xF0}, true),
			Entry("wb_pc miss", core.Breakpoint{Kind: core.BreakWBPC, Value: 0x100}, false),
			Entry("wb_rd hit", core.Breakpoint{Kind: core.BreakWBRd, Value: 7}, true),
			Entry("mem_addr hit", core.Breakpoint{Kind: core.BreakMemAddr, Value: 0x2000}, true),
			Entry("wb_we hit", core.Breakpoint{Kind: core.BreakWBWE, Value: 1}, true),
			Entry("wb_we miss", core.Breakpoint{Kind: core.BreakWBWE, Value: 0}, false),
		)
	})
})
