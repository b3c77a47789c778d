// Package instructions produces guidance text for route playback.
//
// The text is synthetic: it is derived from progress along the route, not
// from maneuver data. Callers that have real per-step maneuvers should wrap
// the default synthesizer in a StepSynthesizer.
package instructions

import (
	"fmt"
	"sort"
)

const (
	StartingText = "Starting navigation"
	ReadyText    = "Ready to start navigation"
	HeadingText  = "Head towards your destination"
	ArrivedText  = "You have arrived at your destination"
	StoppedText  = "Navigation stopped"
	ApproachText = "Approaching destination area"
)

// Ratio bounds for the start and arrival phrases.
const (
	StartRatio   = 0.01
	ArrivalRatio = 0.99
)

// DefaultTemplates are the generic maneuver phrases cycled through by
// segment index.
var DefaultTemplates = []string{
	"Continue straight",
	"Turn slight right",
	"Turn right",
	"Turn left",
	"Turn slight left",
	"Continue on current road",
	"Keep right",
	"Keep left",
	"Follow the road",
}

// Context is the progress information a synthesizer works from.
type Context struct {
	Ratio           float64
	SegmentIndex    int
	TraveledMeters  float64
	RemainingMeters float64
}

// Synthesizer turns progress into guidance text.
type Synthesizer interface {
	Instruction(ctx Context) string
}

// SynthesizerFunc adapts a function to the Synthesizer interface.
type SynthesizerFunc func(ctx Context) string

func (f SynthesizerFunc) Instruction(ctx Context) string {
	return f(ctx)
}

// TemplateSynthesizer cycles through a fixed set of phrases keyed by
// segment index, citing the remaining distance.
type TemplateSynthesizer struct {
	Templates []string
}

// NewTemplateSynthesizer returns a synthesizer using DefaultTemplates.
func NewTemplateSynthesizer() *TemplateSynthesizer {
	return &TemplateSynthesizer{Templates: DefaultTemplates}
}

// Instruction implements Synthesizer.
func (s *TemplateSynthesizer) Instruction(ctx Context) string {
	switch {
	case ctx.Ratio < StartRatio:
		return ReadyText
	case ctx.Ratio >= ArrivalRatio:
		return ArrivedText
	}

	return fmt.Sprintf("%s • %s remaining", s.phrase(ctx.SegmentIndex), FormatDistance(ctx.RemainingMeters))
}

func (s *TemplateSynthesizer) phrase(segment int) string {
	templates := s.Templates
	if len(templates) == 0 {
		templates = DefaultTemplates
	}
	if segment < 0 {
		segment = -segment
	}
	return templates[segment%len(templates)]
}

// Step is a real maneuver taken from a routing response. AtMeters is the
// distance along the route at which the step becomes current.
type Step struct {
	Text     string  `json:"text"`
	AtMeters float64 `json:"at_meters"`
}

// StepSynthesizer reports the most recent step reached, deferring to
// Fallback before the first step and at the start/arrival boundaries.
type StepSynthesizer struct {
	steps    []Step
	Fallback Synthesizer
}

// NewStepSynthesizer sorts steps by distance. A nil fallback uses the
// template synthesizer.
func NewStepSynthesizer(steps []Step, fallback Synthesizer) *StepSynthesizer {
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AtMeters < sorted[j].AtMeters })

	if fallback == nil {
		fallback = NewTemplateSynthesizer()
	}
	return &StepSynthesizer{steps: sorted, Fallback: fallback}
}

// Instruction implements Synthesizer.
func (s *StepSynthesizer) Instruction(ctx Context) string {
	if ctx.Ratio >= ArrivalRatio || len(s.steps) == 0 {
		return s.Fallback.Instruction(ctx)
	}

	i := sort.Search(len(s.steps), func(i int) bool { return s.steps[i].AtMeters > ctx.TraveledMeters })
	if i == 0 || s.steps[i-1].Text == "" {
		return s.Fallback.Instruction(ctx)
	}
	return s.steps[i-1].Text
}

// FormatDistance renders meters the way guidance is displayed: kilometers
// with one decimal from 1000 m, whole meters below.
func FormatDistance(meters float64) string {
	if meters < 0 {
		meters = 0
	}
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", meters)
}
