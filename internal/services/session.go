package services

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"go.uber.org/zap"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/instructions"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/progress"
)

// EventKind identifies session events
type EventKind int

const (
	SessionStarted EventKind = iota
	SessionProgress
	SessionArrived
	SessionStopped
)

func (k EventKind) String() string {
	switch k {
	case SessionStarted:
		return "started"
	case SessionProgress:
		return "progress"
	case SessionArrived:
		return "arrived"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SessionEvent is delivered to callbacks and the events channel. Step is the
// discrete instruction index, Snapshot the continuous progress at that step.
type SessionEvent struct {
	SessionID   string            `json:"session_id"`
	Kind        EventKind         `json:"kind"`
	Step        int               `json:"step"`
	Steps       int               `json:"steps"`
	Instruction string            `json:"instruction"`
	Snapshot    progress.Snapshot `json:"snapshot"`
	At          time.Time         `json:"at"`
}

// Session is one playback of a route. The session goroutine is the only
// writer of the tracker and the instruction index; callers observe it
// through events.
type Session struct {
	id        string
	logger    *zap.Logger
	interval  time.Duration
	tracker   *progress.Tracker
	cues      []instructions.Cue
	callbacks []func(SessionEvent)
	buffer    int
	events    chan SessionEvent
	onDone    func(*Session)

	step int

	mu        sync.Mutex // serializes delivery against Cancel
	state     progress.State
	cancelled bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// SessionOption configures a session
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	interval  time.Duration
	callbacks []func(SessionEvent)
	steps     []instructions.Step
	synth     instructions.Synthesizer
	buffer    int
}

// WithCallback registers a function called on the session goroutine for
// every event. Callbacks must not call Cancel synchronously.
func WithCallback(fn func(SessionEvent)) SessionOption {
	return func(o *sessionOptions) {
		if fn != nil {
			o.callbacks = append(o.callbacks, fn)
		}
	}
}

// WithInterval overrides the tick interval
func WithInterval(d time.Duration) SessionOption {
	return func(o *sessionOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithSteps supplies real maneuver steps. They replace the synthetic script
// and take precedence in snapshot instructions.
func WithSteps(steps []instructions.Step) SessionOption {
	return func(o *sessionOptions) { o.steps = steps }
}

// WithSynthesizer replaces the snapshot instruction synthesizer
func WithSynthesizer(s instructions.Synthesizer) SessionOption {
	return func(o *sessionOptions) { o.synth = s }
}

// WithEventBuffer sets the events channel capacity. Events that would
// overflow the buffer are dropped; the terminal stopped event always fits.
func WithEventBuffer(n int) SessionOption {
	return func(o *sessionOptions) {
		if n >= 0 {
			o.buffer = n
		}
	}
}

func newSession(id string, route []geo.Point, logger *zap.Logger, o sessionOptions) (*Session, error) {
	synth := o.synth
	if synth == nil {
		synth = instructions.NewTemplateSynthesizer()
	}
	if len(o.steps) > 0 {
		synth = instructions.NewStepSynthesizer(o.steps, synth)
	}

	tracker := progress.NewTracker(progress.WithLogger(logger), progress.WithSynthesizer(synth))
	if err := tracker.Initialize(route); err != nil {
		return nil, err
	}

	cues := instructions.BuildScript(tracker.PointCount(), tracker.Total())
	if len(o.steps) > 0 {
		cues = instructions.ScriptFromSteps(o.steps, tracker.Total())
	}

	return &Session{
		id:        id,
		logger:    logger,
		interval:  o.interval,
		tracker:   tracker,
		cues:      cues,
		callbacks: o.callbacks,
		buffer:    o.buffer,
		// one extra slot is reserved for the terminal event
		events: make(chan SessionEvent, o.buffer+1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Events returns the event channel. It is closed when the session ends.
func (s *Session) Events() <-chan SessionEvent { return s.events }

// Done is closed when the session goroutine has exited
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends
func (s *Session) Wait() { <-s.done }

// Cues returns the playback script
func (s *Session) Cues() []instructions.Cue {
	cues := make([]instructions.Cue, len(s.cues))
	copy(cues, s.cues)
	return cues
}

// Interval returns the tick interval
func (s *Session) Interval() time.Duration { return s.interval }

// State reports whether the session is still active
func (s *Session) State() progress.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel ends the session. Once Cancel returns no further events are
// delivered; an in-flight delivery completes before Cancel returns. Cancel
// is idempotent.
func (s *Session) Cancel() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	s.cancelled = true
	s.state = progress.StateIdle
	s.mu.Unlock()
}

func (s *Session) start(ctx context.Context) error {
	if err := s.tracker.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = progress.StateActive
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// run is the single driver of the session. It delivers the opening cue,
// then one cue per tick, and stops one interval after arrival.
func (s *Session) run(ctx context.Context) {
	defer s.finish()
	defer func() {
		if r := recover(); r != nil {
			s.logPanic("Simulation: recovered from panic, stopping session", r, zap.Int("step", s.step))
		}
	}()

	s.logger.Info("Simulation started",
		zap.String("session_id", s.id),
		zap.Int("points", s.tracker.PointCount()),
		zap.Int("cues", len(s.cues)),
		zap.Duration("interval", s.interval))

	s.deliver(s.event(SessionStarted))

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Simulation stopping due to context cancellation", zap.String("session_id", s.id))
			return
		case <-s.stopCh:
			s.logger.Info("Simulation stopping due to cancel", zap.String("session_id", s.id))
			return
		case <-timer.C:
		}

		if s.tick() {
			break
		}
		timer.Reset(s.interval)
	}

	// arrival: hold the final cue for one more interval, then stop
	timer.Reset(s.interval)
	select {
	case <-ctx.Done():
		return
	case <-s.stopCh:
		return
	case <-timer.C:
	}

	s.deliver(s.event(SessionStopped))
	s.logger.Info("Simulation completed", zap.String("session_id", s.id))
}

// tick advances the instruction index and delivers the matching event. A
// panic is logged and the tick skipped. It reports whether the final cue
// has been reached.
func (s *Session) tick() (arrived bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logPanic("Simulation tick: recovered from panic", r, zap.Int("step", s.step))
			arrived = s.step >= len(s.cues)-1
		}
	}()

	if s.step < len(s.cues)-1 {
		s.step++
	}
	s.tracker.SeekDistance(s.cues[s.step].Ratio * s.tracker.Total())

	kind := SessionProgress
	if s.step == len(s.cues)-1 {
		kind = SessionArrived
	}
	s.deliver(s.event(kind))

	return kind == SessionArrived
}

func (s *Session) logPanic(msg string, r interface{}, extra ...zap.Field) {
	fields := append([]zap.Field{zap.String("session_id", s.id), zap.Any("error", r)}, extra...)
	if stack, err := errors.ParseStack(debug.Stack()); err == nil {
		fields = append(fields, zap.Any("error.stack_trace", stack.MinimalStack(3, 5)))
	}
	s.logger.Error(msg, fields...)
}

func (s *Session) event(kind EventKind) SessionEvent {
	snapshot := s.tracker.CurrentProgress()
	instruction := ""
	if s.step < len(s.cues) {
		instruction = s.cues[s.step].Text
	}
	if kind == SessionStopped {
		instruction = instructions.StoppedText
	}

	return SessionEvent{
		SessionID:   s.id,
		Kind:        kind,
		Step:        s.step,
		Steps:       len(s.cues),
		Instruction: instruction,
		Snapshot:    snapshot,
		At:          time.Now(),
	}
}

// deliver hands the event to callbacks and the channel unless the session
// has been cancelled. The lock is held for the whole delivery so Cancel
// waits for an in-flight delivery.
func (s *Session) deliver(ev SessionEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return false
	}

	for _, cb := range s.callbacks {
		s.invoke(cb, ev)
	}

	// the run goroutine is the only sender, so len is stable against other sends
	if ev.Kind == SessionStopped || len(s.events) < s.buffer {
		s.events <- ev
	} else {
		s.logger.Warn("Simulation event dropped, channel full",
			zap.String("session_id", s.id),
			zap.Stringer("kind", ev.Kind),
			zap.Int("step", ev.Step))
	}

	if ev.Kind == SessionStopped {
		s.cancelled = true
		s.state = progress.StateIdle
	}
	return true
}

// invoke runs one callback. A panicking callback is logged and does not
// keep the event from the remaining callbacks or the channel.
func (s *Session) invoke(cb func(SessionEvent), ev SessionEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logPanic("Simulation callback: recovered from panic", r,
				zap.Stringer("kind", ev.Kind), zap.Int("step", ev.Step))
		}
	}()
	cb(ev)
}

func (s *Session) finish() {
	s.tracker.Stop()

	s.mu.Lock()
	s.cancelled = true
	s.state = progress.StateIdle
	s.mu.Unlock()

	close(s.events)
	if s.onDone != nil {
		s.onDone(s)
	}
	close(s.done)
}
