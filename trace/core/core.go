// Package core ties a snapshot source to the projection engine. It is
// the front end's single entry point: step, rewind, and run to a
// breakpoint, always holding the model of the current cycle.
package core

import (
	"context"

	"github.com/sarchlab/pipetrace/trace/pipeline"
	"github.com/sarchlab/pipetrace/trace/projection"
)

// Source delivers snapshots one cycle at a time. A live simulator client
// and a recorded replay both satisfy it. Crossing either end of the run
// returns session.ErrNoSuchCycle.
type Source interface {
	RequestStep(ctx context.Context) (*pipeline.CycleSnapshot, error)
	RequestBack(ctx context.Context) (*pipeline.CycleSnapshot, error)
}

// Stats counts the moves made through the core.
type Stats struct {
	// Steps is the number of successful forward moves.
	Steps uint64
	// Backs is the number of successful backward moves.
	Backs uint64
	// Stalls is the number of stalled cycles reached.
	Stalls uint64
	// Flushes is the number of flush cycles reached.
	Flushes uint64
}

// Core holds the current cycle and its display model.
type Core struct {
	source Source
	engine *projection.Engine

	current  *pipeline.CycleSnapshot
	model    projection.DisplayModel
	stats    Stats
	observer func(*pipeline.CycleSnapshot)
}

// NewCore creates a Core reading from source.
func NewCore(source Source) *Core {
	return &Core{
		source: source,
		engine: projection.NewEngine(),
	}
}

// Current returns the current snapshot, or nil before the first move.
func (c *Core) Current() *pipeline.CycleSnapshot {
	return c.current
}

// Observe calls fn with every snapshot the core moves to, including the
// intermediate cycles of a run. A nil fn stops observing.
func (c *Core) Observe(fn func(*pipeline.CycleSnapshot)) {
	c.observer = fn
}

// Model returns the display model of the current snapshot. The second
// result is false before the first move.
func (c *Core) Model() (projection.DisplayModel, bool) {
	return c.model, c.current != nil
}

// Stats returns the move counters.
func (c *Core) Stats() Stats {
	return c.stats
}

// Step advances one cycle. On error the core stays where it was.
func (c *Core) Step(ctx context.Context) (projection.DisplayModel, error) {
	s, err := c.source.RequestStep(ctx)
	if err != nil {
		return c.model, err
	}
	c.stats.Steps++
	c.show(s)
	return c.model, nil
}

// Back rewinds one cycle. On error the core stays where it was.
func (c *Core) Back(ctx context.Context) (projection.DisplayModel, error) {
	s, err := c.source.RequestBack(ctx)
	if err != nil {
		return c.model, err
	}
	c.stats.Backs++
	c.show(s)
	return c.model, nil
}

// Show makes s the current snapshot without moving the source, for
// snapshots obtained out of band such as a greeting or a seek.
func (c *Core) Show(s *pipeline.CycleSnapshot) projection.DisplayModel {
	c.show(s)
	return c.model
}

func (c *Core) show(s *pipeline.CycleSnapshot) {
	c.current = s
	c.model = c.engine.Project(s)

	if s.Hazard.FetchStall || s.Hazard.DecodeStall {
		c.stats.Stalls++
	}
	if s.Hazard.Flush {
		c.stats.Flushes++
	}
	if c.observer != nil {
		c.observer(s)
	}
}

// RunUntil steps until a reached snapshot matches bp or maxCycles steps
// have been taken. It returns true when the breakpoint was hit. An error
// from the source, including the end of the run, stops the run and is
// returned with the model of the last cycle reached.
func (c *Core) RunUntil(
	ctx context.Context,
	bp Breakpoint,
	maxCycles int,
) (projection.DisplayModel, bool, error) {
	for i := 0; i < maxCycles; i++ {
		m, err := c.Step(ctx)
		if err != nil {
			return m, false, err
		}
		if bp.Matches(c.current) {
			return m, true, nil
		}
	}
	return c.model, false, nil
}

// RunCycles steps n times, stopping early on error.
func (c *Core) RunCycles(ctx context.Context, n int) (projection.DisplayModel, error) {
	for i := 0; i < n; i++ {
		if _, err := c.Step(ctx); err != nil {
			return c.model, err
		}
	}
	return c.model, nil
}
