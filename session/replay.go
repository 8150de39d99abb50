package session

import (
	"context"

	"github.com/sarchlab/pipetrace/trace/pipeline"
)

// Replay steps through a recorded run. It offers the same step and back
// requests as Client without a simulator behind it.
type Replay struct {
	snapshots []*pipeline.CycleSnapshot
	pos       int
}

// NewReplay creates a replay positioned before the first snapshot.
func NewReplay(snapshots []*pipeline.CycleSnapshot) *Replay {
	return &Replay{snapshots: snapshots, pos: -1}
}

// RequestStep moves to the next recorded snapshot.
func (r *Replay) RequestStep(ctx context.Context) (*pipeline.CycleSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pos+1 >= len(r.snapshots) {
		return nil, ErrNoSuchCycle
	}
	r.pos++
	return r.snapshots[r.pos], nil
}

// RequestBack moves to the previous recorded snapshot.
func (r *Replay) RequestBack(ctx context.Context) (*pipeline.CycleSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pos <= 0 {
		return nil, ErrNoSuchCycle
	}
	r.pos--
	return r.snapshots[r.pos], nil
}

// Seek moves to the snapshot whose cycle is closest to cycle. Ties go to
// the earlier one. It returns ErrNoSuchCycle for an empty recording.
func (r *Replay) Seek(cycle uint64) (*pipeline.CycleSnapshot, error) {
	if len(r.snapshots) == 0 {
		return nil, ErrNoSuchCycle
	}

	best := 0
	for i, s := range r.snapshots {
		if distance(s.Cycle, cycle) < distance(r.snapshots[best].Cycle, cycle) {
			best = i
		}
	}

	r.pos = best
	return r.snapshots[best], nil
}

func distance(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
