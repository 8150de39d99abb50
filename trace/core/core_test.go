package core_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipetrace/session"
	"github.com/sarchlab/pipetrace/trace/core"
	"github.com/sarchlab/pipetrace/trace/pipeline"
	"github.com/sarchlab/pipetrace/trace/projection"
)

// straightLine builds n cycles of a program fetching from 0 in steps of 4.
// Cycle 2 stalls decode and cycle 3 flushes.
func straightLine(n int) []*pipeline.CycleSnapshot {
	var out []*pipeline.CycleSnapshot
	for c := 0; c < n; c++ {
		raw := pipeline.Raw{
			Cycle:        uint64(c),
			RegisterFile: make([]uint32, pipeline.NumRegisters),
		}
		for _, st := range pipeline.Stages {
			pc := uint32(0)
			if c >= int(st) {
				pc = uint32(c-int(st)) * 4
			}
			raw.Stages = append(raw.Stages, pipeline.StageSnapshot{
				Stage:           st,
				PC:              pc,
				InstructionWord: 0x003100B3, // add x1, x2, x3
			})
		}
		raw.Writeback = pipeline.WritebackResult{WriteEnable: c >= 4, DestRegister: 1, WriteData: uint32(c)}
		raw.Hazard = pipeline.HazardSignals{DecodeStall: c == 2, FetchStall: c == 2, Flush: c == 3}

		s, err := pipeline.New(raw)
		Expect(err).NotTo(HaveOccurred())
		out = append(out, s)
	}
	return out
}

var _ = Describe("Core", func() {
	var (
		ctx context.Context
		c   *core.Core
	)

	BeforeEach(func() {
		ctx = context.Background()
		c = core.NewCore(session.NewReplay(straightLine(8)))
	})

	It("should have no model before the first step", func() {
		_, ok := c.Model()
		Expect(ok).To(BeFalse())
		Expect(c.Current()).To(BeNil())
	})

	It("should project every cycle it reaches", func() {
		m, err := c.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Cycle).To(BeZero())

		m, err = c.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Cycle).To(Equal(uint64(1)))
		Expect(m.StageMnemonics[pipeline.StageIF]).To(Equal("add"))

		current, ok := c.Model()
		Expect(ok).To(BeTrue())
		Expect(current).To(Equal(projection.Project(c.Current())))
	})

	It("should stay put when stepping back past the start", func() {
		_, _ = c.Step(ctx)

		m, err := c.Back(ctx)
		Expect(err).To(MatchError(session.ErrNoSuchCycle))
		Expect(m.Cycle).To(BeZero())
		Expect(c.Current().Cycle).To(BeZero())
	})

	It("should stay put when stepping past the end", func() {
		_, err := c.RunCycles(ctx, 8)
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Step(ctx)
		Expect(err).To(MatchError(session.ErrNoSuchCycle))
		Expect(c.Current().Cycle).To(Equal(uint64(7)))
	})

	It("should count moves and hazards", func() {
		_, _ = c.RunCycles(ctx, 4)
		_, _ = c.Back(ctx)

		stats := c.Stats()
		Expect(stats.Steps).To(Equal(uint64(4)))
		Expect(stats.Backs).To(Equal(uint64(1)))
		Expect(stats.Stalls).To(Equal(uint64(2)))
		Expect(stats.Flushes).To(Equal(uint64(1)))
	})

	Describe("RunUntil", func() {
		It("should stop on the first cycle matching the breakpoint", func() {
			bp := core.Breakpoint{Kind: core.BreakWBPC, Value: 8}

			m, hit, err := c.RunUntil(ctx, bp, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
			Expect(m.Cycle).To(Equal(uint64(6)))
		})

		It("should give up after the cycle limit", func() {
			bp := core.Breakpoint{Kind: core.BreakIFPC, Value: 0x1000}

			m, hit, err := c.RunUntil(ctx, bp, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
			Expect(m.Cycle).To(Equal(uint64(2)))
		})

		It("should report the end of the run", func() {
			bp := core.Breakpoint{Kind: core.BreakIFPC, Value: 0x1000}

			m, hit, err := c.RunUntil(ctx, bp, 100)
			Expect(err).To(MatchError(session.ErrNoSuchCycle))
			Expect(hit).To(BeFalse())
			Expect(m.Cycle).To(Equal(uint64(7)))
		})
	})

	It("should report every cycle reached to the observer", func() {
		var seen []uint64
		c.Observe(func(s *pipeline.CycleSnapshot) {
			seen = append(seen, s.Cycle)
		})

		_, _ = c.RunCycles(ctx, 3)
		_, _ = c.Back(ctx)
		Expect(seen).To(Equal([]uint64{0, 1, 2, 1}))

		c.Observe(nil)
		_, _ = c.Step(ctx)
		Expect(seen).To(HaveLen(4))
	})

	It("should show an out-of-band snapshot", func() {
		snaps := straightLine(3)

		m := c.Show(snaps[2])
		Expect(m.Cycle).To(Equal(uint64(2)))
		Expect(c.Current()).To(BeIdenticalTo(snaps[2]))
	})
})
