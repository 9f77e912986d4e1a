// Package planner turns a free-text edit request into weighted semantic
// intents using an ordered table of keyword rules.
package planner

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type IntentOp string

const (
	OpSplit        IntentOp = "split"
	OpTrim         IntentOp = "trim"
	OpReorder      IntentOp = "reorder"
	OpCaptionStyle IntentOp = "caption_style"
	OpZoom         IntentOp = "zoom"
	OpAudioDuck    IntentOp = "audio_duck"
	OpGeneric      IntentOp = "generic"
)

// Targets name the part of the document an intent is aimed at.
const (
	TargetPrimaryVideoClip = "primary_video_clip"
	TargetCaptionTrack     = "caption_track"
	TargetAudioTrack       = "audio_track"
	TargetTracks           = "tracks"
	TargetTimeline         = "timeline"
)

const (
	// MinConfidence is the lowest average confidence an accepted plan may have.
	MinConfidence = 0.68
	// MaxOps bounds the number of intents in one plan.
	MaxOps = 8

	genericConfidence = 0.55
)

type Intent struct {
	Op         IntentOp `json:"op"`
	Target     string   `json:"target"`
	Confidence float64  `json:"confidence"`
	Phrase     string   `json:"phrase,omitempty"`
}

type Plan struct {
	Prompt            string   `json:"prompt"`
	Intents           []Intent `json:"intents"`
	AverageConfidence float64  `json:"averageConfidence"`
	LowConfidence     bool     `json:"lowConfidence"`
}

type rule struct {
	op         IntentOp
	target     string
	confidence float64
	phrases    []string
}

var rules = []rule{
	{op: OpSplit, target: TargetPrimaryVideoClip, confidence: 0.81, phrases: []string{"split", "cut in half", "cut it at", "break into"}},
	{op: OpTrim, target: TargetPrimaryVideoClip, confidence: 0.79, phrases: []string{"trim", "shorten", "tighten", "cut the end"}},
	{op: OpCaptionStyle, target: TargetCaptionTrack, confidence: 0.77, phrases: []string{"caption", "subtitle"}},
	{op: OpZoom, target: TargetPrimaryVideoClip, confidence: 0.75, phrases: []string{"zoom", "punch in", "push in"}},
	{op: OpReorder, target: TargetTracks, confidence: 0.73, phrases: []string{"reorder", "rearrange", "swap tracks", "move track"}},
	{op: OpAudioDuck, target: TargetAudioTrack, confidence: 0.71, phrases: []string{"duck", "lower the music", "quieter music", "background music"}},
}

var lower = cases.Lower(language.Und)

// Normalize lower-cases the prompt and collapses runs of whitespace.
func Normalize(prompt string) string {
	return strings.Join(strings.Fields(lower.String(prompt)), " ")
}

// Build classifies prompt. Each rule contributes at most one intent; a prompt
// no rule matches yields a single generic intent.
func Build(prompt string) Plan {
	text := Normalize(prompt)

	var intents []Intent
	for _, r := range rules {
		for _, phrase := range r.phrases {
			if strings.Contains(text, phrase) {
				intents = append(intents, Intent{Op: r.op, Target: r.target, Confidence: r.confidence, Phrase: phrase})
				break
			}
		}
	}
	if len(intents) == 0 {
		intents = []Intent{{Op: OpGeneric, Target: TargetTimeline, Confidence: genericConfidence}}
	}

	avg := AverageConfidence(intents)
	return Plan{
		Prompt:            prompt,
		Intents:           intents,
		AverageConfidence: avg,
		LowConfidence:     avg < MinConfidence,
	}
}

// AverageConfidence is the mean intent confidence rounded to four places, or
// zero for an empty set.
func AverageConfidence(intents []Intent) float64 {
	if len(intents) == 0 {
		return 0
	}
	var sum float64
	for _, in := range intents {
		sum += in.Confidence
	}
	return round(sum/float64(len(intents)), 4)
}

// Supported reports whether op is one of the intent kinds the compiler knows.
func Supported(op IntentOp) bool {
	switch op {
	case OpSplit, OpTrim, OpReorder, OpCaptionStyle, OpZoom, OpAudioDuck, OpGeneric:
		return true
	default:
		return false
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
