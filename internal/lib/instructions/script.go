package instructions

import (
	"fmt"
	"math"
)

// Cue is one discrete playback instruction. Ratio is the fraction of the
// route (by distance) at which the cue is delivered.
type Cue struct {
	Text  string  `json:"text"`
	Ratio float64 `json:"ratio"`
}

// BuildScript produces the synthetic playback script for a route of
// pointCount points and totalMeters length: two opening cues, one cue per
// interior segment chosen by progress band, two approach cues and the
// arrival. Routes with fewer than two points produce no cues. Cues are
// evenly spaced except the approach cues, which are placed 200 m and 50 m
// before the end on routes longer than 200 m.
//
// Distances quoted in the band phrases are the mean segment length of the
// route, so the same route always yields the same script.
func BuildScript(pointCount int, totalMeters float64) []Cue {
	if pointCount < 2 {
		return nil
	}

	segments := pointCount - 1
	meanSegment := totalMeters / float64(segments)

	texts := []string{StartingText, HeadingText}
	for i := 1; i < segments; i++ {
		ratio := float64(i) / float64(segments)
		var text string
		switch {
		case ratio < 0.2:
			text = fmt.Sprintf("Continue straight for %s", FormatDistance(meanSegment))
		case ratio < 0.4:
			text = DefaultTemplates[i%len(DefaultTemplates)]
		case ratio < 0.6:
			text = fmt.Sprintf("Continue on current road for %s", FormatDistance(meanSegment))
		case ratio < 0.8:
			text = DefaultTemplates[(i+2)%len(DefaultTemplates)]
		default:
			text = ApproachText
		}
		texts = append(texts, text)
	}
	texts = append(texts,
		"In 200m, you will reach your destination",
		"In 50m, you will reach your destination",
		ArrivedText,
	)

	cues := make([]Cue, len(texts))
	last := float64(len(texts) - 1)
	for i, text := range texts {
		cues[i] = Cue{Text: text, Ratio: float64(i) / last}
	}

	// approach cues sit at their quoted distance from the end when the
	// route is long enough to hold them
	if n := len(cues); totalMeters > 200 {
		cues[n-3].Ratio = math.Max(cues[n-4].Ratio, (totalMeters-200)/totalMeters)
		cues[n-2].Ratio = math.Max(cues[n-3].Ratio, (totalMeters-50)/totalMeters)
	}
	return cues
}

// ScriptFromSteps builds a playback script from real maneuver steps. Step
// positions are converted to ratios of totalMeters and clamped to [0, 1].
// The script always opens with StartingText and closes with ArrivedText.
func ScriptFromSteps(steps []Step, totalMeters float64) []Cue {
	cues := []Cue{{Text: StartingText, Ratio: 0}}

	sorted := NewStepSynthesizer(steps, nil).steps
	for _, step := range sorted {
		if step.Text == "" {
			continue
		}
		ratio := 0.0
		if totalMeters > 0 {
			ratio = math.Max(0, math.Min(1, step.AtMeters/totalMeters))
		}
		cues = append(cues, Cue{Text: step.Text, Ratio: ratio})
	}

	return append(cues, Cue{Text: ArrivedText, Ratio: 1})
}
