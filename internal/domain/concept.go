package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SceneScript is the ordered list of narrative beats, one per scene. The last
// beat is the call to action.
type SceneScript struct {
	Beats []string
}

// Len returns the number of beats.
func (s SceneScript) Len() int { return len(s.Beats) }

// Beat returns the beat at index i, or "" when out of range.
func (s SceneScript) Beat(i int) string {
	if i < 0 || i >= len(s.Beats) {
		return ""
	}
	return s.Beats[i]
}

// Last returns the closing beat.
func (s SceneScript) Last() string { return s.Beat(len(s.Beats) - 1) }

// Matches reports whether the script has exactly one non-empty beat per scene
// of the duration class.
func (s SceneScript) Matches(d Duration) bool {
	want := d.SceneCount()
	if want == 0 || len(s.Beats) != want {
		return false
	}
	for _, beat := range s.Beats {
		if strings.TrimSpace(beat) == "" {
			return false
		}
	}
	return true
}

// SceneKey is the wire name of beat i ("scene1", "scene2", ...).
func SceneKey(i int) string { return "scene" + strconv.Itoa(i+1) }

// MarshalJSON encodes the beats as {"scene1": ..., "sceneN": ...}.
func (s SceneScript) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(s.Beats))
	for i, beat := range s.Beats {
		out[SceneKey(i)] = beat
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes contiguous sceneN keys starting from scene1. Keys
// after the first gap are ignored.
func (s *SceneScript) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode scene script: %w", err)
	}
	s.Beats = s.Beats[:0]
	for i := 0; ; i++ {
		beat, ok := raw[SceneKey(i)]
		if !ok {
			break
		}
		s.Beats = append(s.Beats, strings.TrimSpace(beat))
	}
	return nil
}

// Concept is a candidate creative direction with its key-frame pair.
type Concept struct {
	ID          string
	Description string
	Script      SceneScript
	StartFrame  Artifact
	EndFrame    Artifact
}

// Viable reports whether both key frames were produced.
func (c Concept) Viable() bool {
	return !c.StartFrame.Empty() && !c.EndFrame.Empty()
}

// OutcomeKind tags how a video request ended.
type OutcomeKind string

const (
	OutcomeReal     OutcomeKind = "real"
	OutcomeDegraded OutcomeKind = "degraded"
	OutcomeFailed   OutcomeKind = "failed"
)

// VideoOutcome is the result of a video request. Degraded outcomes carry a
// placeholder video and the reason it was substituted.
type VideoOutcome struct {
	Kind        OutcomeKind
	Video       Artifact
	AspectRatio string
	Scenes      int
	Reason      string
	Err         error
}
