// Package store persists decision cycles as parquet files.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/brensch/tetrisbot/session"
)

// Config holds recorder configuration
type Config struct {
	Dir       string // output directory; files land here, in-progress writes in Dir/tmp
	FlushRows int    // rows buffered before a file is written
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Dir:       "data/decisions",
		FlushRows: 1000,
	}
}

// Recorder buffers cycle records from any number of sessions and writes them
// out in batches. It implements session.Recorder.
type Recorder struct {
	config Config

	mu     sync.Mutex
	rows   []DecisionRow
	seq    int
	files  []string
	closed bool
}

// NewRecorder creates a recorder. Nothing is written until the first flush.
func NewRecorder(config Config) (*Recorder, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("output dir is required")
	}
	if config.FlushRows <= 0 {
		config.FlushRows = DefaultConfig().FlushRows
	}
	return &Recorder{config: config}, nil
}

// Record buffers one cycle and writes a file once FlushRows are pending.
func (r *Recorder) Record(rec session.CycleRecord) error {
	row := RowFromRecord(rec)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder is closed")
	}
	r.rows = append(r.rows, row)
	if len(r.rows) < r.config.FlushRows {
		return nil
	}
	return r.flushLocked()
}

// Flush writes any pending rows.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

// Close flushes and rejects further records.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.flushLocked()
}

// Files lists the files written so far, oldest first.
func (r *Recorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

func (r *Recorder) flushLocked() error {
	if len(r.rows) == 0 {
		return nil
	}
	r.seq++
	name := fmt.Sprintf("decisions_%d_%04d.parquet", time.Now().UnixNano(), r.seq)
	path, err := WriteBatchParquetAtomic(r.config.Dir, name, r.rows)
	if err != nil {
		// Rows stay buffered and go out with the next flush.
		return err
	}
	r.files = append(r.files, path)
	r.rows = r.rows[:0]
	return nil
}
