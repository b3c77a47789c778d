package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dpup/info.ersn.net/routesim/internal/config"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
)

var (
	// ErrSessionNotFound is returned when a session ID is unknown or has ended
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when max_sessions active sessions exist
	ErrTooManySessions = errors.New("too many active sessions")
)

// SimulationService schedules route playback sessions. Each session runs on
// its own goroutine and unregisters itself when it ends.
type SimulationService struct {
	config config.SimulationConfig
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSimulationService creates a new simulation service
func NewSimulationService(cfg config.SimulationConfig, logger *zap.Logger) *SimulationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationService{
		config:   cfg,
		logger:   logger.Named("simulation"),
		sessions: make(map[string]*Session),
	}
}

// Start begins playback of route. The returned session is already running;
// a route with fewer than two points fails before any timer is scheduled.
func (s *SimulationService) Start(ctx context.Context, route []geo.Point, opts ...SessionOption) (*Session, error) {
	o := sessionOptions{
		interval: s.config.TickInterval,
		buffer:   s.config.EventBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval <= 0 {
		return nil, fmt.Errorf("invalid tick interval %v", o.interval)
	}

	id := uuid.NewString()
	session, err := newSession(id, route, s.logger, o)
	if err != nil {
		return nil, fmt.Errorf("failed to start simulation: %w", err)
	}
	session.onDone = s.remove

	s.mu.Lock()
	if s.config.MaxSessions > 0 && len(s.sessions) >= s.config.MaxSessions {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s.sessions[id] = session
	s.mu.Unlock()

	if err := session.start(ctx); err != nil {
		s.remove(session)
		return nil, fmt.Errorf("failed to start simulation: %w", err)
	}
	return session, nil
}

// StartEncoded decodes an encoded polyline and starts playback of it
func (s *SimulationService) StartEncoded(ctx context.Context, encoded string, opts ...SessionOption) (*Session, error) {
	points, err := geo.DecodePolyline(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to start simulation: %w", err)
	}
	return s.Start(ctx, points, opts...)
}

// Session returns an active session by ID
func (s *SimulationService) Session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Cancel cancels an active session by ID
func (s *SimulationService) Cancel(id string) error {
	session, err := s.Session(id)
	if err != nil {
		return err
	}
	session.Cancel()
	return nil
}

// ActiveSessions returns the IDs of running sessions, sorted
func (s *SimulationService) ActiveSessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll cancels every active session and waits for them to exit, or for
// timeout to elapse
func (s *SimulationService) StopAll(timeout time.Duration) {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		session.Cancel()
	}

	deadline := time.After(timeout)
	for _, session := range sessions {
		select {
		case <-session.Done():
		case <-deadline:
			s.logger.Warn("Timed out waiting for simulations to stop", zap.Int("sessions", len(sessions)))
			return
		}
	}
	s.logger.Info("Stopped all simulations", zap.Int("sessions", len(sessions)))
}

func (s *SimulationService) remove(session *Session) {
	s.mu.Lock()
	delete(s.sessions, session.ID())
	s.mu.Unlock()
}
