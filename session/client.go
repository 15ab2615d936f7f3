package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/strategy"
)

// ErrTransport matches every transport failure: network errors, timeouts,
// non-2xx responses and undecodable bodies.
var ErrTransport = errors.New("transport failure")

// TransportError wraps a failed call to the game server.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// CommandRejected is a command the server received but refused (success=false).
type CommandRejected struct {
	Command strategy.Command
	Message string
}

func (e *CommandRejected) Error() string {
	return fmt.Sprintf("command %s rejected: %s", e.Command, e.Message)
}

// Status is the server's view of a session.
type Status struct {
	State       State
	LastUpdated time.Time
}

// CommandResult is the server's answer to a command.
type CommandResult struct {
	Success bool
	Message string
}

// GameClient is the transport the loop polls and commands through.
// Implementations return errors matching ErrTransport for transport failures
// and report rejections through CommandResult, not as errors.
type GameClient interface {
	GetStatus(ctx context.Context, sessionID string) (Status, error)
	GetBoard(ctx context.Context, sessionID string) ([]board.RawRow, error)
	SendCommand(ctx context.Context, sessionID string, cmd strategy.Command) (CommandResult, error)
}

// ProbeResult is one URL checked while diagnosing a broken connection.
type ProbeResult struct {
	URL         string
	StatusCode  int
	ContentType string
	// Summary is the page title for HTML responses, otherwise a truncated body.
	Summary string
	Err     error
}

// Prober is implemented by clients that can diagnose their own connection.
type Prober interface {
	Probe(ctx context.Context, sessionID string) []ProbeResult
}

// CycleRecord describes one decision cycle for recording.
type CycleRecord struct {
	SessionID string
	Cycle     int64
	Time      time.Time
	State     State
	Board     board.Board
	Piece     []board.Coord
	Decision  strategy.Decision
	// Dispatched is false when the command never reached the server.
	Dispatched bool
	// Accepted is false when the server rejected the command.
	Accepted bool
}

// Recorder persists cycle records. Implementations must be safe for concurrent sessions.
type Recorder interface {
	Record(rec CycleRecord) error
}
