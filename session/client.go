package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sarchlab/pipetrace/trace/history"
	"github.com/sarchlab/pipetrace/trace/pipeline"
)

// Commands understood by the simulator. Each is sent as one line.
const (
	cmdStep  = "step"
	cmdBack  = "back"
	cmdReset = "reset"
)

// aLongTimeAgo is a deadline in the past used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Client talks to a live simulator over a newline-delimited JSON stream.
// Requests are serialized; a Client is safe for concurrent use.
//
// When a history cache is attached, cycles that were already received are
// served from it and the simulator is only contacted for cycles it has
// not produced yet or that were evicted.
type Client struct {
	mu sync.Mutex

	conn   net.Conn
	reader *bufio.Reader

	history  *history.Cache
	recorder *Recorder
	timeout  time.Duration

	// current is the snapshot handed to the caller last.
	current *pipeline.CycleSnapshot
	// sim is the snapshot the simulator produced last; it is where the
	// simulator's own cursor sits.
	sim *pipeline.CycleSnapshot

	// pending counts commands whose reply has not been read yet. A
	// request that times out after sending leaves its reply in flight;
	// it is drained before the next command so replies stay paired.
	pending int
	// partial holds the start of a line cut off by a deadline.
	partial []byte
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHistory attaches a scrollback cache.
func WithHistory(h *history.Cache) ClientOption {
	return func(c *Client) {
		c.history = h
	}
}

// WithRecorder records every snapshot received from the simulator.
func WithRecorder(r *Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithRequestTimeout bounds every round trip. Zero disables the bound.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts ...ClientOption) *Client {
	c := &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the simulator at addr.
func Dial(ctx context.Context, addr string, opts ...ClientOption) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial simulator %s: %w", addr, err)
	}
	return NewClient(conn, opts...), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Receive reads one snapshot the simulator sends without being asked,
// such as the cycle 0 state pushed on connect.
func (c *Client) Receive(ctx context.Context) (*pipeline.CycleSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.exchange(ctx, "")
	if err != nil {
		return nil, err
	}
	c.current = s
	return s, nil
}

// RequestStep advances one cycle and returns the new snapshot. At the end
// of a finished run it returns ErrNoSuchCycle and the position is
// unchanged.
func (c *Client) RequestStep(ctx context.Context) (*pipeline.CycleSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return c.advance(ctx, cmdStep)
	}
	return c.seek(ctx, c.current.Cycle+1)
}

// RequestBack rewinds one cycle. At cycle 0 it returns ErrNoSuchCycle
// without contacting the simulator.
func (c *Client) RequestBack(ctx context.Context) (*pipeline.CycleSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.Cycle == 0 {
		return nil, ErrNoSuchCycle
	}
	return c.seek(ctx, c.current.Cycle-1)
}

// Reset restarts the simulation and drops the scrollback.
func (c *Client) Reset(ctx context.Context) (*pipeline.CycleSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.drain(ctx); err != nil {
		return nil, err
	}

	if c.history != nil {
		c.history.Reset()
	}
	c.current = nil
	c.sim = nil

	return c.advance(ctx, cmdReset)
}

// Seek moves to cycle, stepping the simulator as far as needed. Past the
// end of a finished run it returns ErrNoSuchCycle and the position is
// unchanged.
func (c *Client) Seek(ctx context.Context, cycle uint64) (*pipeline.CycleSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.seek(ctx, cycle)
}

// seek moves to target, from the cache when possible, otherwise by driving
// the simulator's cursor there one cycle at a time.
func (c *Client) seek(ctx context.Context, target uint64) (*pipeline.CycleSnapshot, error) {
	if c.history != nil {
		if s, ok := c.history.Get(target); ok {
			c.current = s
			return s, nil
		}
	}

	// A late reply may already have moved the simulator cursor.
	if err := c.drain(ctx); err != nil {
		return nil, err
	}

	for c.sim == nil || c.sim.Cycle != target {
		cmd := cmdStep
		if c.sim != nil && target < c.sim.Cycle {
			cmd = cmdBack
		}

		before := c.sim
		s, err := c.exchange(ctx, cmd)
		if err != nil {
			return nil, err
		}
		if before != nil && !moved(cmd, before.Cycle, s.Cycle) {
			return nil, fmt.Errorf("simulator answered %s at cycle %d with cycle %d",
				cmd, before.Cycle, s.Cycle)
		}
	}

	c.current = c.sim
	return c.current, nil
}

func (c *Client) advance(ctx context.Context, cmd string) (*pipeline.CycleSnapshot, error) {
	s, err := c.exchange(ctx, cmd)
	if err != nil {
		return nil, err
	}
	c.current = s
	return s, nil
}

func moved(cmd string, from, to uint64) bool {
	if cmd == cmdBack {
		return to < from
	}
	return to > from
}

// exchange sends cmd (nothing when empty) and reads the answering packet.
// Replies still owed for earlier timed-out commands are consumed first.
func (c *Client) exchange(ctx context.Context, cmd string) (*pipeline.CycleSnapshot, error) {
	var s *pipeline.CycleSnapshot
	err := c.withDeadline(ctx, func() error {
		if err := c.drainPending(); err != nil {
			return err
		}

		var err error
		s, err = c.roundTrip(cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// drain consumes replies owed for earlier timed-out commands.
func (c *Client) drain(ctx context.Context) error {
	if c.pending == 0 {
		return nil
	}
	return c.withDeadline(ctx, c.drainPending)
}

// withDeadline runs fn with the connection deadline taken from ctx and the
// request timeout. Cancelling ctx unblocks pending I/O.
func (c *Client) withDeadline(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.setDeadline(ctx)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	if err := fn(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (c *Client) setDeadline(ctx context.Context) {
	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if c.timeout > 0 {
		t := time.Now().Add(c.timeout)
		if deadline.IsZero() || t.Before(deadline) {
			deadline = t
		}
	}
	_ = c.conn.SetDeadline(deadline)
}

// drainPending reads the replies of commands that timed out. A late
// snapshot still moved the simulator, so it updates the simulator cursor
// and the scrollback but not the caller's position.
func (c *Client) drainPending() error {
	for c.pending > 0 {
		s, err := c.readReply()
		if errors.Is(err, ErrNoSuchCycle) {
			continue
		}
		var simErr *SimulatorError
		if errors.As(err, &simErr) {
			continue
		}
		if err != nil {
			return err
		}
		c.accept(s)
	}
	return nil
}

func (c *Client) roundTrip(cmd string) (*pipeline.CycleSnapshot, error) {
	if cmd != "" {
		if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
			return nil, fmt.Errorf("failed to send %s: %w", cmd, err)
		}
		c.pending++
	}

	s, err := c.readReply()
	if err != nil {
		return nil, err
	}
	c.accept(s)
	return s, nil
}

// readReply reads one packet and settles one outstanding command.
func (c *Client) readReply() (*pipeline.CycleSnapshot, error) {
	p, err := c.readPacket()
	if err != nil {
		return nil, err
	}
	if c.pending > 0 {
		c.pending--
	}

	if p.Error != "" {
		return nil, errorFromCode(p.Error)
	}

	s, err := p.Snapshot()
	if err != nil {
		return nil, err
	}

	if c.recorder != nil {
		if err := c.recorder.Record(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// accept moves the simulator cursor to s.
func (c *Client) accept(s *pipeline.CycleSnapshot) {
	c.sim = s
	if c.history != nil {
		c.history.Put(s)
	}
}

// readPacket reads lines until one holds a JSON object. Simulator chatter
// on the same stream, such as build output, is skipped. A line cut off by
// a deadline is kept and completed by the next read.
func (c *Client) readPacket() (*Packet, error) {
	for {
		chunk, err := c.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			c.partial = append(c.partial, chunk...)
			if errors.Is(err, net.ErrClosed) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to read packet: %w", err)
		}

		line := chunk
		if len(c.partial) > 0 {
			line = append(c.partial, chunk...)
			c.partial = nil
		}
		line = bytes.TrimSpace(line)

		if len(line) > 0 && line[0] == '{' {
			p := &Packet{}
			if jsonErr := json.Unmarshal(line, p); jsonErr != nil {
				return nil, fmt.Errorf("failed to parse packet: %w", jsonErr)
			}
			return p, nil
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read packet: %w", err)
		}
	}
}
