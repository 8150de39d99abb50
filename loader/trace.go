// Package loader reads recorded pipeline traces.
//
// A trace file holds one simulator packet per line, the same
// newline-delimited JSON a live simulator streams. Lines that are not
// JSON objects, such as build output captured alongside the packets, are
// skipped.
package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/sarchlab/pipetrace/session"
	"github.com/sarchlab/pipetrace/trace/pipeline"
)

// maxLineSize bounds a single packet line.
const maxLineSize = 1 << 20

// Trace is a recorded run.
type Trace struct {
	// Snapshots are ordered by cycle with duplicates removed. A recording
	// that stepped back and forth holds each cycle once; the first
	// occurrence wins.
	Snapshots []*pipeline.CycleSnapshot

	// Skipped counts lines that carried no snapshot: chatter and error
	// packets.
	Skipped int
}

// Load reads a trace file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Read parses a trace stream. A malformed snapshot fails the whole read.
func Read(r io.Reader) (*Trace, error) {
	t := &Trace{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			t.Skipped++
			continue
		}

		p := &session.Packet{}
		if err := json.Unmarshal(line, p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if p.Error != "" {
			t.Skipped++
			continue
		}

		s, err := p.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		t.Snapshots = append(t.Snapshots, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	slices.SortStableFunc(t.Snapshots, func(a, b *pipeline.CycleSnapshot) int {
		switch {
		case a.Cycle < b.Cycle:
			return -1
		case a.Cycle > b.Cycle:
			return 1
		}
		return 0
	})
	t.Snapshots = slices.CompactFunc(t.Snapshots, func(a, b *pipeline.CycleSnapshot) bool {
		return a.Cycle == b.Cycle
	})

	return t, nil
}

// Replay returns a replay source over the trace.
func (t *Trace) Replay() *session.Replay {
	return session.NewReplay(t.Snapshots)
}
