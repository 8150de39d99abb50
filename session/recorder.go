package session

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/sarchlab/pipetrace/trace/pipeline"
)

// Recorder writes packets as newline-delimited JSON. The output can be
// read back with the loader package.
type Recorder struct {
	mu    sync.Mutex
	enc   *json.Encoder
	count int
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: json.NewEncoder(w)}
}

// Record writes one packet.
func (r *Recorder) Record(p *Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enc.Encode(p); err != nil {
		return fmt.Errorf("failed to record cycle %d: %w", p.Cycle, err)
	}
	r.count++
	return nil
}

// RecordSnapshot writes a snapshot in wire form.
func (r *Recorder) RecordSnapshot(s *pipeline.CycleSnapshot) error {
	return r.Record(FromSnapshot(s))
}

// Count returns the number of packets written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
