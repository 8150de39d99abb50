package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/sarchlab/pipetrace/session"
	"github.com/sarchlab/pipetrace/trace/core"
	"github.com/sarchlab/pipetrace/trace/pipeline"
	"github.com/sarchlab/pipetrace/trace/projection"
)

const helpText = `Commands:
  n, step         advance one cycle
  b, back         rewind one cycle
  g, go           run until the breakpoint (or the cycle limit)
  run N           advance N cycles
  j, jump CYCLE   jump to a cycle
  r, reset        restart the simulation (live sessions only)
  bp kind=value   set the breakpoint (if_pc id_pc ex_pc mem_pc wb_pc wb_rd mem_addr wb_we)
  clearbp         clear the breakpoint
  record on FILE  record every cycle visited to FILE
  record off      stop recording
  t, timeline [FROM TO]
                  print the pipeline diagram (replays only)
  v               toggle the register dump
  q, quit         exit
`

// resetFunc restarts the snapshot source and returns its first snapshot.
type resetFunc func(ctx context.Context) (*pipeline.CycleSnapshot, error)

// jumpFunc moves the snapshot source to a cycle.
type jumpFunc func(ctx context.Context, cycle uint64) (*pipeline.CycleSnapshot, error)

// shell drives a Core from user commands.
type shell struct {
	core    *core.Core
	out     io.Writer
	bp      *core.Breakpoint
	maxRun  int
	verbose bool
	reset   resetFunc
	jump    jumpFunc

	// trace is the whole run when replaying, for the timeline.
	trace []*pipeline.CycleSnapshot

	rec     *session.Recorder
	recFile *os.File
}

func newShell(c *core.Core, out io.Writer, maxRun int) *shell {
	return &shell{core: c, out: out, maxRun: maxRun}
}

// handle executes one command. It returns true when the user quits.
func (sh *shell) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "q", "quit", "exit":
		return true
	case "h", "?", "help":
		fmt.Fprint(sh.out, helpText)
	case "n", "s", "step":
		_, err := sh.core.Step(ctx)
		sh.report(err)
	case "b", "back":
		_, err := sh.core.Back(ctx)
		sh.report(err)
	case "g", "go":
		sh.runToBreakpoint(ctx)
	case "run":
		sh.runCycles(ctx, fields[1:])
	case "j", "jump":
		sh.jumpTo(ctx, fields[1:])
	case "r", "reset":
		sh.doReset(ctx)
	case "record":
		sh.record(fields[1:])
	case "t", "timeline":
		sh.timeline(fields[1:])
	case "bp":
		sh.setBreakpoint(strings.Join(fields[1:], " "))
	case "clearbp":
		sh.bp = nil
		fmt.Fprintf(sh.out, "Breakpoint cleared\n")
	case "v":
		sh.verbose = !sh.verbose
		sh.show()
	default:
		fmt.Fprintf(sh.out, "Unknown command %q, type h for help\n", fields[0])
	}
	return false
}

func (sh *shell) setBreakpoint(text string) {
	bp, err := core.ParseBreakpoint(text)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	sh.bp = &bp
	fmt.Fprintf(sh.out, "Breakpoint set: %s\n", bp)
}

func (sh *shell) runToBreakpoint(ctx context.Context) {
	if sh.bp == nil {
		fmt.Fprintf(sh.out, "No breakpoint set, use: bp kind=value\n")
		return
	}

	_, hit, err := sh.core.RunUntil(ctx, *sh.bp, sh.maxRun)
	if err == nil && !hit {
		fmt.Fprintf(sh.out, "Breakpoint %s not hit within %d cycles\n", sh.bp, sh.maxRun)
	}
	if hit {
		fmt.Fprintf(sh.out, "Breakpoint %s hit\n", sh.bp)
	}
	sh.report(err)
}

func (sh *shell) runCycles(ctx context.Context, args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			fmt.Fprintf(sh.out, "Usage: run N, with N > 0\n")
			return
		}
		n = v
	}

	_, err := sh.core.RunCycles(ctx, n)
	sh.report(err)
}

func (sh *shell) jumpTo(ctx context.Context, args []string) {
	if sh.jump == nil {
		fmt.Fprintf(sh.out, "Jump is not available\n")
		return
	}
	if len(args) != 1 {
		fmt.Fprintf(sh.out, "Usage: j CYCLE\n")
		return
	}

	cycle, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: invalid cycle %q\n", args[0])
		return
	}

	s, err := sh.jump(ctx, cycle)
	if err != nil {
		sh.report(err)
		return
	}
	sh.core.Show(s)
	sh.show()
}

func (sh *shell) record(args []string) {
	switch {
	case len(args) == 2 && args[0] == "on":
		sh.startRecording(args[1])
	case len(args) == 1 && args[0] == "off":
		if sh.rec == nil {
			fmt.Fprintf(sh.out, "Not recording\n")
			return
		}
		sh.stopRecording()
	default:
		fmt.Fprintf(sh.out, "Usage: record on FILE | record off\n")
	}
}

// startRecording writes the current cycle and every cycle visited after
// it to path. Revisited cycles are written again; the loader keeps the
// first copy of each.
func (sh *shell) startRecording(path string) {
	if sh.rec != nil {
		fmt.Fprintf(sh.out, "Already recording to %s\n", sh.recFile.Name())
		return
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: failed to create record file: %v\n", err)
		return
	}
	sh.recFile = f
	sh.rec = session.NewRecorder(f)

	if s := sh.core.Current(); s != nil {
		sh.recordSnapshot(s)
	}
	sh.core.Observe(sh.recordSnapshot)
	fmt.Fprintf(sh.out, "Recording to %s\n", path)
}

func (sh *shell) recordSnapshot(s *pipeline.CycleSnapshot) {
	if err := sh.rec.RecordSnapshot(s); err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
	}
}

// stopRecording closes the record file, if any.
func (sh *shell) stopRecording() {
	if sh.rec == nil {
		return
	}
	sh.core.Observe(nil)

	name := sh.recFile.Name()
	if err := sh.recFile.Close(); err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
	}
	fmt.Fprintf(sh.out, "Recorded %d cycles to %s\n", sh.rec.Count(), name)
	sh.rec, sh.recFile = nil, nil
}

// timeline prints the pipeline diagram of the replayed run, optionally
// limited to cycles FROM through TO.
func (sh *shell) timeline(args []string) {
	if sh.trace == nil {
		fmt.Fprintf(sh.out, "Timeline is only available when replaying\n")
		return
	}

	snaps := sh.trace
	if len(args) > 0 {
		if len(args) != 2 {
			fmt.Fprintf(sh.out, "Usage: timeline [FROM TO]\n")
			return
		}
		from, err1 := strconv.ParseUint(args[0], 0, 64)
		to, err2 := strconv.ParseUint(args[1], 0, 64)
		if err1 != nil || err2 != nil || from > to {
			fmt.Fprintf(sh.out, "Error: invalid cycle range %s..%s\n", args[0], args[1])
			return
		}
		snaps = cycleRange(snaps, from, to)
	}

	printTimeline(sh.out, projection.BuildTimeline(snaps))
}

// cycleRange returns the snapshots of cycles from through to. snaps must
// be ordered by cycle.
func cycleRange(snaps []*pipeline.CycleSnapshot, from, to uint64) []*pipeline.CycleSnapshot {
	var out []*pipeline.CycleSnapshot
	for _, s := range snaps {
		if s.Cycle >= from && s.Cycle <= to {
			out = append(out, s)
		}
	}
	return out
}

func (sh *shell) doReset(ctx context.Context) {
	if sh.reset == nil {
		fmt.Fprintf(sh.out, "Reset is not available when replaying\n")
		return
	}

	s, err := sh.reset(ctx)
	if err != nil {
		sh.report(err)
		return
	}
	sh.core.Show(s)
	sh.show()
}

// report prints the current cycle, or explains why the move failed.
// Reaching either end of the run is not an error.
func (sh *shell) report(err error) {
	switch {
	case errors.Is(err, session.ErrNoSuchCycle):
		fmt.Fprintf(sh.out, "No such cycle, staying at the current one\n")
	case err != nil:
		fmt.Fprintf(sh.out, "Error: %v\n", err)
	default:
		sh.show()
	}
}

func (sh *shell) show() {
	m, ok := sh.core.Model()
	if !ok {
		fmt.Fprintf(sh.out, "No cycle yet\n")
		return
	}
	printModel(sh.out, m, sh.core.Current(), sh.verbose)
}

// keyCommands maps raw-mode keys to commands.
var keyCommands = map[byte]string{
	'n': "n", ' ': "n", 'l': "n",
	'b': "b", 'h': "b",
	'g': "g",
	'r': "r",
	't': "t",
	'v': "v",
	'?': "help",
	'q': "q", 3: "q", 4: "q", // Ctrl-C, Ctrl-D
}

// runLines reads one command per line until quit or end of input.
func (sh *shell) runLines(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(sh.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if sh.handle(ctx, scanner.Text()) {
			return nil
		}
	}
}

// runKeys reads single keystrokes until quit or end of input.
func (sh *shell) runKeys(ctx context.Context, in io.Reader) error {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if cmd, ok := keyCommands[buf[0]]; ok && sh.handle(ctx, cmd) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// runInteractive puts the terminal in raw mode when stdin is a terminal
// and falls back to line commands otherwise.
func (sh *shell) runInteractive(ctx context.Context) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return sh.runLines(ctx, os.Stdin)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipetrace: failed to set raw mode: %v\n", err)
		return sh.runLines(ctx, os.Stdin)
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	out := sh.out
	sh.out = &crlfWriter{w: out}
	defer func() { sh.out = out }()

	fmt.Fprintf(sh.out, "Keys: n/space step, b back, g go, r reset, t timeline, v registers, q quit\n")
	return sh.runKeys(ctx, os.Stdin)
}

// crlfWriter turns "\n" into "\r\n" for a terminal in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write([]byte(strings.ReplaceAll(string(p), "\n", "\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
