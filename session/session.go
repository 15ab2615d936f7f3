// Package session runs the observe, decide, dispatch loop for one game session.
//
// A Session owns all of its mutable state (previous board, failure counters,
// cooldowns), so any number of sessions can run side by side without sharing
// anything but the transport.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/strategy"
	"github.com/brensch/tetrisbot/tracker"
)

// Config is the loop configuration. It is consumed as-is; parsing happens in cmd.
type Config struct {
	SessionID string

	// Board dimensions. The server omits empty rows, so they cannot be inferred.
	Width  int
	Height int

	PollInterval   time.Duration // suspension between healthy cycles
	RequestTimeout time.Duration // bound on every server call

	FailureThreshold int           // consecutive transport failures before ERROR
	BackoffBase      time.Duration // first backoff after a failed cycle
	BackoffMax       time.Duration // backoff ceiling

	ResumeCooldown  time.Duration // minimum gap between RESUME commands
	RestartCooldown time.Duration // minimum gap between RESTART commands

	// RestartOnGameOver restarts finished games. Off means the loop idles on GAME_OVER.
	RestartOnGameOver bool
	// MaxRestarts caps restarts over the session lifetime (0 = unlimited).
	MaxRestarts int
	// RestartOnStart sends one RESTART before the first cycle.
	RestartOnStart bool

	// RejectionThreshold is how many consecutive rejected commands trip ERROR (0 = never).
	RejectionThreshold int

	// Seed for the rotation tie-breaker. 0 picks a time-based seed.
	Seed int64

	Tracker  tracker.Config
	Strategy strategy.Config
}

// DefaultConfig returns sensible defaults
func DefaultConfig(sessionID string) Config {
	return Config{
		SessionID:          sessionID,
		Width:              10,
		Height:             20,
		PollInterval:       100 * time.Millisecond,
		RequestTimeout:     3 * time.Second,
		FailureThreshold:   3,
		BackoffBase:        1 * time.Second,
		BackoffMax:         10 * time.Second,
		ResumeCooldown:     3 * time.Second,
		RestartCooldown:    2 * time.Second,
		RestartOnGameOver:  true,
		RejectionThreshold: 5,
		Tracker:            tracker.DefaultConfig(),
		Strategy:           strategy.DefaultConfig(),
	}
}

// Stats is a point-in-time view of a session, safe to read from other goroutines.
type Stats struct {
	SessionID         string
	State             State
	Cycles            int64
	Commands          int64
	Rejections        int64
	TransportFailures int64
	MalformedBoards   int64
	Restarts          int64
	LastCommand       strategy.Command
	LastStage         strategy.Stage
	LastScore         float64
	Backoff           time.Duration
}

// Session is one isolated game loop.
type Session struct {
	config   Config
	client   GameClient
	engine   *strategy.Engine
	rng      strategy.Rand
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)

	state       State
	lastKnown   State
	failures    int
	rejections  int
	backoff     time.Duration
	previous    *board.Board
	prevCommand strategy.Command
	lastResume  time.Time
	lastRestart time.Time
	restarts    int
	cycle       int64

	statsMu sync.Mutex
	stats   Stats
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the logger. The session id is added to every record.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRecorder records every decision cycle.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithRand replaces the seeded rotation source.
func WithRand(r strategy.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// WithClock replaces time.Now for cooldown bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithSleep replaces the inter-cycle suspension used by Run.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(s *Session) { s.sleep = sleep }
}

// New creates a session in the UNKNOWN state.
func New(config Config, client GameClient, opts ...Option) *Session {
	s := &Session{
		config: config,
		client: client,
		engine: strategy.NewEngine(config.Strategy),
		logger: slog.Default(),
		now:    time.Now,
		sleep:  sleepContext,
		state:  Unknown,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := config.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		s.rng = rand.New(rand.NewSource(seed))
	}
	s.logger = s.logger.With("session", config.SessionID)
	s.stats = Stats{SessionID: config.SessionID, State: Unknown}
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats.State
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Session) updateStats(fn func(st *Stats)) {
	s.statsMu.Lock()
	fn(&s.stats)
	s.statsMu.Unlock()
}

// Run cycles until ctx is cancelled. Cancellation is only observed between
// cycles: a call already sent to the server always completes (or times out).
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session starting",
		"poll", s.config.PollInterval,
		"failure_threshold", s.config.FailureThreshold,
		"restart_on_game_over", s.config.RestartOnGameOver)

	if s.config.RestartOnStart {
		s.lastRestart = s.now()
		s.restarts++
		s.updateStats(func(st *Stats) { st.Restarts++ })
		if _, _, err := s.send(ctx, strategy.Restart); err != nil {
			s.logger.Warn("initial restart failed", "err", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			st := s.Stats()
			s.logger.Info("session stopped", "cycles", st.Cycles, "commands", st.Commands, "state", st.State)
			return context.Cause(ctx)
		default:
		}

		delay := s.Cycle(ctx)
		s.sleep(ctx, delay)
	}
}

// Cycle runs one observe, decide, dispatch pass and returns how long to wait
// before the next one.
func (s *Session) Cycle(ctx context.Context) time.Duration {
	s.cycle++
	s.updateStats(func(st *Stats) { st.Cycles++ })
	startState := s.state

	status, err := s.getStatus(ctx)
	if err != nil {
		return s.transportFailure(ctx, "status", err)
	}

	remote := status.State
	if remote == Error {
		remote = Unknown
	}
	if startState == Error {
		s.logger.Info("transport recovered", "resuming_state", remote, "last_known", s.lastKnown)
	}
	s.setState(remote)

	// The first healthy cycle after ERROR only confirms the server is back.
	if startState == Error {
		return s.healthy()
	}

	switch s.state {
	case Playing:
		return s.play(ctx)
	case Paused:
		return s.resume(ctx)
	case GameOver:
		return s.restart(ctx)
	default:
		return s.healthy()
	}
}

func (s *Session) play(ctx context.Context) time.Duration {
	rows, err := s.getBoard(ctx)
	if err != nil {
		return s.transportFailure(ctx, "board", err)
	}

	cur, err := board.Parse(rows, s.config.Width, s.config.Height)
	if err != nil {
		var mbe *board.MalformedBoardError
		if errors.As(err, &mbe) {
			s.updateStats(func(st *Stats) { st.MalformedBoards++ })
		}
		s.logger.Warn("discarding board", "err", err)
		return s.healthy()
	}

	piece := tracker.Identify(s.previous, cur, s.config.Tracker)
	decision := s.engine.Decide(cur, piece, s.prevCommand, s.rng)
	s.logger.Debug("decision",
		"command", decision.Command,
		"stage", decision.Stage,
		"target", decision.Target,
		"piece_cells", len(piece),
		"score", decision.Score,
		"why", decision.Rationale)

	delay, accepted, err := s.dispatch(ctx, decision.Command)
	dispatched := err == nil || !errors.Is(err, ErrTransport)
	if dispatched {
		s.previous = &cur
		s.prevCommand = decision.Command
	}
	s.updateStats(func(st *Stats) {
		st.LastStage = decision.Stage
		st.LastScore = decision.Score
	})

	if s.recorder != nil {
		rec := CycleRecord{
			SessionID:  s.config.SessionID,
			Cycle:      s.cycle,
			Time:       s.now(),
			State:      s.state,
			Board:      cur,
			Piece:      piece,
			Decision:   decision,
			Dispatched: dispatched,
			Accepted:   accepted,
		}
		if err := s.recorder.Record(rec); err != nil {
			s.logger.Warn("record failed", "err", err)
		}
	}
	return delay
}

func (s *Session) resume(ctx context.Context) time.Duration {
	now := s.now()
	if !s.lastResume.IsZero() && now.Sub(s.lastResume) < s.config.ResumeCooldown {
		return s.healthy()
	}
	s.lastResume = now
	s.logger.Info("game paused; resuming")
	delay, _, _ := s.dispatch(ctx, strategy.Resume)
	return delay
}

func (s *Session) restart(ctx context.Context) time.Duration {
	// The next game starts from a fresh board.
	s.previous = nil
	s.prevCommand = strategy.None

	if !s.config.RestartOnGameOver {
		return s.healthy()
	}
	if s.config.MaxRestarts > 0 && s.restarts >= s.config.MaxRestarts {
		s.logger.Debug("restart limit reached", "restarts", s.restarts)
		return s.healthy()
	}
	now := s.now()
	if !s.lastRestart.IsZero() && now.Sub(s.lastRestart) < s.config.RestartCooldown {
		return s.healthy()
	}
	s.lastRestart = now
	s.restarts++
	s.updateStats(func(st *Stats) { st.Restarts++ })
	s.logger.Info("game over; restarting", "restarts", s.restarts)
	delay, _, _ := s.dispatch(ctx, strategy.Restart)
	return delay
}

// dispatch sends cmd and folds the outcome into the failure counters. The
// returned error is a transport error or a *CommandRejected.
func (s *Session) dispatch(ctx context.Context, cmd strategy.Command) (time.Duration, bool, error) {
	res, delay, err := s.send(ctx, cmd)
	if err != nil {
		return delay, false, err
	}
	if !res.Success {
		rej := &CommandRejected{Command: cmd, Message: res.Message}
		s.rejections++
		s.updateStats(func(st *Stats) { st.Rejections++ })
		s.logger.Warn("command rejected", "err", rej, "consecutive", s.rejections)
		if s.config.RejectionThreshold > 0 && s.rejections >= s.config.RejectionThreshold {
			s.enterError(ctx, rej)
			return s.nextBackoff(), false, rej
		}
		return s.healthy(), false, rej
	}

	s.rejections = 0
	s.updateStats(func(st *Stats) {
		st.Commands++
		st.LastCommand = cmd
	})
	return s.healthy(), true, nil
}

// send performs the raw command call.
func (s *Session) send(ctx context.Context, cmd strategy.Command) (CommandResult, time.Duration, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	res, err := s.client.SendCommand(callCtx, s.config.SessionID, cmd)
	if err != nil {
		return CommandResult{}, s.transportFailure(ctx, "command "+cmd.String(), err), err
	}
	return res, 0, nil
}

func (s *Session) getStatus(ctx context.Context) (Status, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.client.GetStatus(callCtx, s.config.SessionID)
}

func (s *Session) getBoard(ctx context.Context) ([]board.RawRow, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.client.GetBoard(callCtx, s.config.SessionID)
}

// callContext bounds a server call by RequestTimeout but detaches it from ctx
// cancellation so a stop request never tears down a call in flight.
func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (s *Session) transportFailure(ctx context.Context, op string, err error) time.Duration {
	s.failures++
	s.updateStats(func(st *Stats) { st.TransportFailures++ })
	s.logger.Warn("transport failure", "op", op, "err", err, "consecutive", s.failures)

	if s.state != Error && s.config.FailureThreshold > 0 && s.failures >= s.config.FailureThreshold {
		s.enterError(ctx, err)
	}
	return s.nextBackoff()
}

func (s *Session) enterError(ctx context.Context, cause error) {
	if s.state == Error {
		return
	}
	s.lastKnown = s.state
	s.rejections = 0
	s.setState(Error)
	s.logger.Error("entering error state", "cause", cause, "last_known", s.lastKnown)

	prober, ok := s.client.(Prober)
	if !ok {
		return
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	for _, r := range prober.Probe(callCtx, s.config.SessionID) {
		if r.Err != nil {
			s.logger.Warn("probe", "url", r.URL, "err", r.Err)
			continue
		}
		s.logger.Info("probe", "url", r.URL, "status", r.StatusCode, "content_type", r.ContentType, "summary", r.Summary)
	}
}

func (s *Session) setState(next State) {
	if next == s.state {
		return
	}
	s.logger.Info("state change", "from", s.state, "to", next)
	s.state = next
	s.updateStats(func(st *Stats) { st.State = next })
}

// nextBackoff doubles the failure suspension up to BackoffMax.
func (s *Session) nextBackoff() time.Duration {
	if s.backoff <= 0 {
		s.backoff = s.config.BackoffBase
	} else {
		s.backoff *= 2
	}
	if s.config.BackoffMax > 0 && s.backoff > s.config.BackoffMax {
		s.backoff = s.config.BackoffMax
	}
	b := s.backoff
	s.updateStats(func(st *Stats) { st.Backoff = b })
	return b
}

// healthy ends a cycle without transport trouble: the failure streak and the
// backoff reset and the next cycle runs after the base poll interval.
func (s *Session) healthy() time.Duration {
	s.failures = 0
	s.backoff = 0
	s.updateStats(func(st *Stats) { st.Backoff = 0 })
	return s.config.PollInterval
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
