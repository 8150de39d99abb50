// Validate decoder and projection allocations per cycle
package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sarchlab/pipetrace/insts"
	"github.com/sarchlab/pipetrace/trace/pipeline"
	"github.com/sarchlab/pipetrace/trace/projection"
)

var words = [...]uint32{
	0x003100B3, // add x1, x2, x3
	0xFFF00293, // addi x5, x0, -1
	0x00012083, // lw x1, 0(x2)
	0x00322023, // sw x3, 0(x4)
	0x00208063, // beq x1, x2, .
}

func main() {
	raw := pipeline.Raw{RegisterFile: make([]uint32, pipeline.NumRegisters)}
	for i, st := range pipeline.Stages {
		raw.Stages = append(raw.Stages, pipeline.StageSnapshot{
			Stage:           st,
			PC:              0x1000 + uint32(i)*4,
			InstructionWord: words[i],
		})
	}
	snapshot, err := pipeline.New(raw)
	if err != nil {
		panic(err)
	}

	engine := projection.NewEngine()

	// Warm up
	for i := 0; i < 1000; i++ {
		_ = insts.Decode(words[i%len(words)])
		_ = engine.Project(snapshot)
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000

	// One cycle decodes five words and projects once.
	for i := 0; i < iterations; i++ {
		for _, w := range words {
			_ = insts.Decode(w)
			_ = insts.Classify(w)
		}
		_ = engine.Project(snapshot)
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Cycles: %d\n", iterations)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Cycles per second: %.0f\n", float64(iterations)/elapsed.Seconds())
	fmt.Printf("Allocations per cycle: %.3f\n", float64(allocations)/float64(iterations))
	fmt.Printf("Bytes per cycle: %.1f\n", float64(allocatedBytes)/float64(iterations))

	// Projection allocates the hazard message slice, decode allocates nothing.
	if float64(allocations)/float64(iterations) <= 1.1 {
		fmt.Printf("\nOK: at most one allocation per cycle\n")
	} else {
		fmt.Printf("\nWARNING: high allocation rate detected\n")
	}
}
