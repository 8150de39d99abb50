// Package main provides the pipetrace command.
// pipetrace connects to an RV32I pipeline simulator, or replays a recorded
// trace, and prints the decoded state of every cycle it visits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sarchlab/pipetrace/loader"
	"github.com/sarchlab/pipetrace/session"
	"github.com/sarchlab/pipetrace/trace/config"
	"github.com/sarchlab/pipetrace/trace/core"
	"github.com/sarchlab/pipetrace/trace/history"
	"github.com/sarchlab/pipetrace/trace/pipeline"
	"github.com/sarchlab/pipetrace/trace/projection"
)

var (
	configPath   = flag.String("config", "", "Path to configuration JSON file")
	addr         = flag.String("addr", "", "Simulator address, overrides the config file")
	replayPath   = flag.String("replay", "", "Replay a recorded trace instead of connecting")
	recordPath   = flag.String("record", "", "Record received snapshots to this file")
	steps        = flag.Int("steps", 1, "Number of cycles to step in batch mode")
	until        = flag.String("until", "", "Run until a breakpoint, e.g. wb_pc=0x40")
	greeting     = flag.Bool("greeting", false, "Read the state the simulator sends on connect")
	showTimeline = flag.Bool("timeline", false, "Print the pipeline diagram of the replayed trace and exit")
	saveConfig   = flag.String("save-config", "", "Write the effective configuration to this file and exit")
	interactive  = flag.Bool("i", false, "Interactive mode")
	verbose      = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *saveConfig != "" {
		if err := cfg.SaveConfig(*saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}

	if *addr != "" {
		cfg.Addr = *addr
	}
	if *recordPath != "" {
		cfg.RecordPath = *recordPath
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	var (
		c     *core.Core
		reset resetFunc
		jump  jumpFunc
		trace []*pipeline.CycleSnapshot
	)

	if *showTimeline && *replayPath == "" {
		return errors.New("-timeline needs -replay")
	}

	if *replayPath != "" {
		t, err := loader.Load(*replayPath)
		if err != nil {
			return err
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded %d cycles from %s (%d lines skipped)\n",
				len(t.Snapshots), *replayPath, t.Skipped)
		}
		if *showTimeline {
			printTimeline(out, projection.BuildTimeline(t.Snapshots))
			return nil
		}

		replay := t.Replay()
		c = core.NewCore(replay)
		jump = func(_ context.Context, cycle uint64) (*pipeline.CycleSnapshot, error) {
			return replay.Seek(cycle)
		}
		trace = t.Snapshots
	} else {
		cache := history.New(cfg.History())
		client, closeFn, err := connect(ctx, cfg, cache)
		if err != nil {
			return err
		}
		defer closeFn()
		if *verbose {
			defer printHistoryStats(cache)
		}

		c = core.NewCore(client)
		reset = client.Reset
		jump = client.Seek

		if *greeting {
			s, err := client.Receive(ctx)
			if err != nil {
				return fmt.Errorf("failed to read initial state: %w", err)
			}
			c.Show(s)
		}
	}

	sh := newShell(c, out, int(cfg.MaxRunCycles))
	sh.verbose = *verbose
	sh.reset = reset
	sh.jump = jump
	sh.trace = trace
	defer sh.stopRecording()

	if *interactive {
		sh.show()
		return sh.runInteractive(ctx)
	}
	return runBatch(ctx, sh)
}

// connect dials the simulator with the given history and the configured
// recorder. The returned function closes both.
func connect(ctx context.Context, cfg *config.Config, cache *history.Cache) (*session.Client, func(), error) {
	opts := []session.ClientOption{
		session.WithHistory(cache),
		session.WithRequestTimeout(cfg.RequestTimeout()),
	}

	var recordFile *os.File
	if cfg.RecordPath != "" {
		f, err := os.Create(cfg.RecordPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create record file: %w", err)
		}
		recordFile = f
		opts = append(opts, session.WithRecorder(session.NewRecorder(f)))
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout())
	defer cancel()

	client, err := session.Dial(dialCtx, cfg.Addr, opts...)
	if err != nil {
		if recordFile != nil {
			_ = recordFile.Close()
		}
		return nil, nil, err
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Connected to %s\n", cfg.Addr)
	}

	return client, func() {
		_ = client.Close()
		if recordFile != nil {
			_ = recordFile.Close()
		}
	}, nil
}

// runBatch steps or runs to the -until breakpoint and prints the result.
func runBatch(ctx context.Context, sh *shell) error {
	if *until != "" {
		bp, err := core.ParseBreakpoint(*until)
		if err != nil {
			return err
		}
		sh.bp = &bp
		sh.runToBreakpoint(ctx)
		return nil
	}

	for i := 0; i < *steps; i++ {
		_, err := sh.core.Step(ctx)
		if errors.Is(err, session.ErrNoSuchCycle) {
			fmt.Fprintf(sh.out, "End of run\n")
			return nil
		}
		if err != nil {
			return err
		}
		sh.show()
	}

	if *verbose {
		stats := sh.core.Stats()
		fmt.Fprintf(os.Stderr, "Steps: %d  Stalls: %d  Flushes: %d\n",
			stats.Steps, stats.Stalls, stats.Flushes)
	}
	return nil
}

func printHistoryStats(cache *history.Cache) {
	stats := cache.Stats()
	fmt.Fprintf(os.Stderr, "History: %d cycles resident, %d hits, %d misses, %d evictions\n",
		cache.Len(), stats.Hits, stats.Misses, stats.Evictions)
}
