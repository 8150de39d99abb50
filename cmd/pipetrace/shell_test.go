package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipetrace/loader"
	"github.com/sarchlab/pipetrace/session"
	"github.com/sarchlab/pipetrace/trace/core"
	"github.com/sarchlab/pipetrace/trace/pipeline"
	"github.com/sarchlab/pipetrace/trace/projection"
)

func cycles(n int) []*pipeline.CycleSnapshot {
	var out []*pipeline.CycleSnapshot
	for c := 0; c < n; c++ {
		raw := pipeline.Raw{
			Cycle:          uint64(c),
			RegisterFile:   make([]uint32, pipeline.NumRegisters),
			DecodeOperands: pipeline.DecodeOperands{Rs1: 2, Rs2: 3, Rd: 1},
		}
		raw.RegisterFile[5] = 42
		for _, st := range pipeline.Stages {
			raw.Stages = append(raw.Stages, pipeline.StageSnapshot{
				Stage:           st,
				PC:              uint32(c) * 4,
				InstructionWord: 0x003100B3, // add x1, x2, x3
			})
		}
		if c == 2 {
			raw.Writeback = pipeline.WritebackResult{WriteEnable: true, DestRegister: 5, WriteData: 42}
			raw.Memory = pipeline.MemoryAccess{WriteEnable: true, Address: 0x100, WriteData: 7}
			raw.Execute = pipeline.ExecuteResult{BranchTaken: true, BranchTarget: 0x40}
			raw.Forward = pipeline.ForwardingSignals{OperandASource: pipeline.ForwardFromMemory}
			raw.Hazard = pipeline.HazardSignals{Flush: true}
		}

		s, err := pipeline.New(raw)
		Expect(err).NotTo(HaveOccurred())
		out = append(out, s)
	}
	return out
}

var _ = Describe("Report", func() {
	It("should print the stages and a no-hazards line", func() {
		s := cycles(1)[0]
		var buf bytes.Buffer

		printModel(&buf, projection.Project(s), s, false)

		Expect(buf.String()).To(HavePrefix("Cycle 0\n"))
		Expect(buf.String()).To(ContainSubstring("IF   0x00000000  add x1, x2, x3"))
		Expect(buf.String()).To(ContainSubstring("Hazards: none"))
		Expect(buf.String()).NotTo(ContainSubstring("WB:"))
	})

	It("should print every active signal", func() {
		s := cycles(3)[2]
		var buf bytes.Buffer

		printModel(&buf, projection.Project(s), s, true)

		out := buf.String()
		Expect(out).To(ContainSubstring("(flushed)"))
		Expect(out).To(ContainSubstring("Hazard: " + projection.FlushMessage))
		Expect(out).To(ContainSubstring("Forwarding: A <- EX/MEM, B <- none"))
		Expect(out).To(ContainSubstring("Branch: taken -> 0x00000040"))
		Expect(out).To(ContainSubstring("MEM: [0x00000100] <- 0x00000007"))
		Expect(out).To(ContainSubstring("WB: x5 <- 0x0000002A"))
		Expect(out).To(ContainSubstring("x5 * 0x0000002A"))
	})

	It("should resolve branch and jump targets from the stage PC", func() {
		raw := pipeline.Raw{Cycle: 9, RegisterFile: make([]uint32, pipeline.NumRegisters)}
		for _, st := range pipeline.Stages {
			raw.Stages = append(raw.Stages, pipeline.StageSnapshot{Stage: st, PC: 0x100})
		}
		raw.Stages[pipeline.StageID].InstructionWord = 0x00208463 // beq x1, x2, 8
		raw.Stages[pipeline.StageEX].InstructionWord = 0x0100006F // jal x0, 16
		s, err := pipeline.New(raw)
		Expect(err).NotTo(HaveOccurred())
		var buf bytes.Buffer

		printModel(&buf, projection.Project(s), s, false)

		Expect(buf.String()).To(ContainSubstring("OK  -> 0x00000108"))
		Expect(buf.String()).To(ContainSubstring("OK  -> 0x00000110"))
		Expect(strings.Count(buf.String(), "->")).To(Equal(2))
	})

	It("should mark registers read by the ID instruction", func() {
		s := cycles(1)[0]
		var buf bytes.Buffer

		printModel(&buf, projection.Project(s), s, true)

		Expect(buf.String()).To(ContainSubstring("x2 < 0x00000000"))
		Expect(buf.String()).To(ContainSubstring("x3 < 0x00000000"))
	})
})

var _ = Describe("Shell", func() {
	var (
		ctx context.Context
		out *bytes.Buffer
		sh  *shell
	)

	BeforeEach(func() {
		ctx = context.Background()
		out = &bytes.Buffer{}
		sh = newShell(core.NewCore(session.NewReplay(cycles(4))), out, 100)
	})

	It("should step and rewind", func() {
		Expect(sh.handle(ctx, "n")).To(BeFalse())
		Expect(sh.handle(ctx, "step")).To(BeFalse())
		Expect(sh.core.Current().Cycle).To(Equal(uint64(1)))

		sh.handle(ctx, "back")
		Expect(sh.core.Current().Cycle).To(BeZero())
		Expect(out.String()).To(ContainSubstring("Cycle 1"))
	})

	It("should report the start of the run without moving", func() {
		sh.handle(ctx, "n")
		sh.handle(ctx, "b")

		Expect(out.String()).To(ContainSubstring("No such cycle"))
		Expect(sh.core.Current().Cycle).To(BeZero())
	})

	It("should run to a breakpoint", func() {
		sh.handle(ctx, "bp wb_we=1")
		sh.handle(ctx, "go")

		Expect(out.String()).To(ContainSubstring("Breakpoint set: wb_we=0x1"))
		Expect(out.String()).To(ContainSubstring("Breakpoint wb_we=0x1 hit"))
		Expect(sh.core.Current().Cycle).To(Equal(uint64(2)))
	})

	It("should refuse to go without a breakpoint", func() {
		sh.handle(ctx, "g")
		Expect(out.String()).To(ContainSubstring("No breakpoint set"))
		Expect(sh.core.Current()).To(BeNil())
	})

	It("should reject a bad breakpoint", func() {
		sh.handle(ctx, "bp nope=1")
		Expect(out.String()).To(ContainSubstring("Error: "))
		Expect(sh.bp).To(BeNil())
	})

	It("should not reset a replay", func() {
		sh.handle(ctx, "r")
		Expect(out.String()).To(ContainSubstring("not available"))
	})

	It("should reset through the configured function", func() {
		first := cycles(1)[0]
		sh.reset = func(context.Context) (*pipeline.CycleSnapshot, error) {
			return first, nil
		}
		sh.handle(ctx, "n")
		sh.handle(ctx, "n")

		sh.handle(ctx, "reset")
		Expect(sh.core.Current()).To(BeIdenticalTo(first))
	})

	It("should run a number of cycles", func() {
		sh.handle(ctx, "run 3")
		Expect(sh.core.Current().Cycle).To(Equal(uint64(2)))

		sh.handle(ctx, "run 0")
		Expect(out.String()).To(ContainSubstring("Usage: run N"))
	})

	It("should report the end of the run during a run", func() {
		sh.handle(ctx, "run 10")

		Expect(out.String()).To(ContainSubstring("No such cycle"))
		Expect(sh.core.Current().Cycle).To(Equal(uint64(3)))
	})

	It("should jump through the configured function", func() {
		replay := session.NewReplay(cycles(4))
		sh = newShell(core.NewCore(replay), out, 100)
		sh.jump = func(_ context.Context, cycle uint64) (*pipeline.CycleSnapshot, error) {
			return replay.Seek(cycle)
		}

		sh.handle(ctx, "j 2")
		Expect(sh.core.Current().Cycle).To(Equal(uint64(2)))
		Expect(out.String()).To(ContainSubstring("Cycle 2"))

		sh.handle(ctx, "n")
		Expect(sh.core.Current().Cycle).To(Equal(uint64(3)))

		sh.handle(ctx, "jump 0x1")
		Expect(sh.core.Current().Cycle).To(Equal(uint64(1)))
	})

	It("should reject a jump it cannot make", func() {
		sh.handle(ctx, "j 2")
		Expect(out.String()).To(ContainSubstring("Jump is not available"))

		sh.jump = func(context.Context, uint64) (*pipeline.CycleSnapshot, error) {
			return nil, session.ErrNoSuchCycle
		}
		sh.handle(ctx, "j x")
		Expect(out.String()).To(ContainSubstring(`invalid cycle "x"`))

		sh.handle(ctx, "j 99")
		Expect(out.String()).To(ContainSubstring("No such cycle"))
		Expect(sh.core.Current()).To(BeNil())
	})

	It("should record visited cycles to a file that loads back", func() {
		path := filepath.Join(GinkgoT().TempDir(), "session.ndjson")

		sh.handle(ctx, "n")
		sh.handle(ctx, "record on "+path)
		sh.handle(ctx, "run 2")
		sh.handle(ctx, "b")
		sh.handle(ctx, "record off")

		Expect(out.String()).To(ContainSubstring("Recording to " + path))
		Expect(out.String()).To(ContainSubstring("Recorded 4 cycles to " + path))

		t, err := loader.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Snapshots).To(HaveLen(3))
		Expect(t.Snapshots[2].Cycle).To(Equal(uint64(2)))

		sh.handle(ctx, "n")
		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Count(string(data), "\n")).To(Equal(4))
	})

	It("should explain record misuse", func() {
		sh.handle(ctx, "record off")
		Expect(out.String()).To(ContainSubstring("Not recording"))

		sh.handle(ctx, "record")
		Expect(out.String()).To(ContainSubstring("Usage: record on FILE"))
	})

	It("should print the timeline of a replay", func() {
		sh.trace = cycles(4)

		sh.handle(ctx, "timeline")
		Expect(out.String()).To(ContainSubstring("PC          Instruction"))
		Expect(out.String()).To(ContainSubstring("0x00000008  add x1, x2, x3"))

		out.Reset()
		sh.handle(ctx, "t 1 1")
		Expect(out.String()).To(ContainSubstring("    1\n"))
		Expect(out.String()).NotTo(ContainSubstring("0x00000008"))
	})

	It("should refuse a timeline without a trace", func() {
		sh.handle(ctx, "timeline")
		Expect(out.String()).To(ContainSubstring("only available when replaying"))
	})

	It("should quit", func() {
		Expect(sh.handle(ctx, "q")).To(BeTrue())
		Expect(sh.handle(ctx, "")).To(BeFalse())
	})

	It("should run line commands until quit", func() {
		err := sh.runLines(ctx, strings.NewReader("n\nn\nq\nn\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(sh.core.Current().Cycle).To(Equal(uint64(1)))
	})

	It("should map keys to commands", func() {
		err := sh.runKeys(ctx, strings.NewReader("n bx"))

		Expect(err).NotTo(HaveOccurred())
		Expect(sh.core.Current().Cycle).To(Equal(uint64(0)))
	})
})

var _ = Describe("Timeline report", func() {
	It("should print one row per instruction with stalls marked", func() {
		t := projection.Timeline{
			Cycles: []uint64{4, 5},
			Rows: []projection.TimelineRow{{
				PC:          0x10,
				Disassembly: "add x1, x2, x3",
				Cells: []projection.TimelineCell{
					{Present: true, Stage: pipeline.StageID, Stalled: true},
					{Present: true, Stage: pipeline.StageEX},
				},
			}},
		}
		var buf bytes.Buffer

		printTimeline(&buf, t)

		lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(HaveSuffix("    4     5"))
		Expect(lines[1]).To(Equal("0x00000010  add x1, x2, x3             ID*    EX"))
	})

	It("should say when there is nothing to draw", func() {
		var buf bytes.Buffer
		printTimeline(&buf, projection.Timeline{})
		Expect(buf.String()).To(Equal("No instructions in range\n"))
	})
})

var _ = Describe("crlfWriter", func() {
	It("should expand line feeds", func() {
		var buf bytes.Buffer
		w := &crlfWriter{w: &buf}

		n, err := w.Write([]byte("a\nb\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(4))
		Expect(buf.String()).To(Equal("a\r\nb\r\n"))
	})
})
