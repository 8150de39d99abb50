// Package main provides a profiling wrapper that replays a recorded trace
// through the projection engine to find performance bottlenecks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/pipetrace/loader"
	"github.com/sarchlab/pipetrace/session"
	"github.com/sarchlab/pipetrace/trace/core"
)

var (
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	passes     = flag.Int("passes", 100, "number of forward and backward passes over the trace")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <trace.ndjson>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	tracePath := flag.Arg(0)

	t, err := loader.Load(tracePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trace: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", tracePath)
	fmt.Printf("Cycles: %d\n", len(t.Snapshots))

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	moves, err := replayPasses(ctx, t, *passes)
	elapsed := time.Since(start)

	if errors.Is(err, context.DeadlineExceeded) {
		fmt.Printf("\nTimeout reached after %v - stopping\n", *duration)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "Error replaying trace: %v\n", err)
		os.Exit(1)
	}

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Cycles projected: %d\n", moves)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if moves > 0 {
		fmt.Printf("Cycles/second: %.0f\n", float64(moves)/elapsed.Seconds())
	}
}

// replayPasses walks the trace to its end and back n times, projecting
// every cycle. It returns the number of cycles projected.
func replayPasses(ctx context.Context, t *loader.Trace, n int) (uint64, error) {
	c := core.NewCore(t.Replay())

	for pass := 0; pass < n; pass++ {
		for {
			if _, err := c.Step(ctx); err != nil {
				if errors.Is(err, session.ErrNoSuchCycle) {
					break
				}
				return c.Stats().Steps + c.Stats().Backs, err
			}
		}
		for {
			if _, err := c.Back(ctx); err != nil {
				if errors.Is(err, session.ErrNoSuchCycle) {
					break
				}
				return c.Stats().Steps + c.Stats().Backs, err
			}
		}
	}

	stats := c.Stats()
	return stats.Steps + stats.Backs, nil
}
