package loader_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipetrace/loader"
	"github.com/sarchlab/pipetrace/session"
	"github.com/sarchlab/pipetrace/trace/pipeline"
)

func snapshotAt(cycle uint64) *pipeline.CycleSnapshot {
	raw := pipeline.Raw{
		Cycle:        cycle,
		RegisterFile: make([]uint32, pipeline.NumRegisters),
	}
	for _, st := range pipeline.Stages {
		raw.Stages = append(raw.Stages, pipeline.StageSnapshot{Stage: st})
	}
	s, err := pipeline.New(raw)
	Expect(err).NotTo(HaveOccurred())
	return s
}

// record writes the given cycles in order, as a session would.
func record(cycles ...uint64) *bytes.Buffer {
	var buf bytes.Buffer
	rec := session.NewRecorder(&buf)
	for _, c := range cycles {
		Expect(rec.RecordSnapshot(snapshotAt(c))).To(Succeed())
	}
	return &buf
}

func cyclesOf(t *loader.Trace) []uint64 {
	var out []uint64
	for _, s := range t.Snapshots {
		out = append(out, s.Cycle)
	}
	return out
}

var _ = Describe("Trace Loader", func() {
	Describe("Read", func() {
		It("should read every recorded snapshot", func() {
			t, err := loader.Read(record(0, 1, 2))

			Expect(err).NotTo(HaveOccurred())
			Expect(cyclesOf(t)).To(Equal([]uint64{0, 1, 2}))
			Expect(t.Skipped).To(BeZero())
		})

		It("should order cycles and drop repeats from stepping back", func() {
			t, err := loader.Read(record(0, 1, 2, 1, 0, 1, 2, 3))

			Expect(err).NotTo(HaveOccurred())
			Expect(cyclesOf(t)).To(Equal([]uint64{0, 1, 2, 3}))
		})

		It("should skip chatter and error packets", func() {
			buf := record(0, 1)
			input := "[info] compiling\n\n" + buf.String() + `{"error":"no_such_cycle"}` + "\n"

			t, err := loader.Read(strings.NewReader(input))

			Expect(err).NotTo(HaveOccurred())
			Expect(cyclesOf(t)).To(Equal([]uint64{0, 1}))
			Expect(t.Skipped).To(Equal(3))
		})

		It("should report the line of a malformed snapshot", func() {
			input := record(0).String() + `{"cycle":1,"pc":{},"instr":{},"registers":[]}` + "\n"

			_, err := loader.Read(strings.NewReader(input))

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(HavePrefix("line 2: "))
			Expect(errors.Is(err, pipeline.ErrMalformedSnapshot)).To(BeTrue())
		})

		It("should reject a line that is not valid JSON", func() {
			_, err := loader.Read(strings.NewReader("{not json\n"))

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(HavePrefix("line 1: "))
		})

		It("should return an empty trace for empty input", func() {
			t, err := loader.Read(strings.NewReader(""))

			Expect(err).NotTo(HaveOccurred())
			Expect(t.Snapshots).To(BeEmpty())
		})
	})

	Describe("Load", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "trace-loader-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should load a trace file and replay it", func() {
			path := filepath.Join(tempDir, "run.ndjson")
			Expect(os.WriteFile(path, record(0, 1, 2).Bytes(), 0644)).To(Succeed())

			t, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())

			Expect(t.Snapshots).To(HaveLen(3))
			s, err := t.Replay().RequestStep(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Cycle).To(BeZero())
		})

		It("should fail for a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.ndjson"))

			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})
	})
})
