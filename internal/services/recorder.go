package services

import (
	"sync"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/export"
)

// Recorder collects the positions a session passes through. Register
// Recorder.Record with WithCallback.
type Recorder struct {
	mu    sync.Mutex
	trace []export.TracePoint
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends the event position. Stopped events repeat the arrival
// position and are skipped.
func (r *Recorder) Record(ev SessionEvent) {
	if ev.Kind == SessionStopped {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = append(r.trace, export.TracePoint{
		Point:       ev.Snapshot.Position,
		Time:        ev.At,
		Percentage:  ev.Snapshot.Percentage,
		Bearing:     ev.Snapshot.BearingDegrees,
		Instruction: ev.Instruction,
	})
}

// Trace returns a copy of the recorded positions
func (r *Recorder) Trace() []export.TracePoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	trace := make([]export.TracePoint, len(r.trace))
	copy(trace, r.trace)
	return trace
}

// Len returns the number of recorded positions
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trace)
}
