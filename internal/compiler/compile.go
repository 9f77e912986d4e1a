// Package compiler maps planner intents onto concrete timeline operations
// against the current document.
package compiler

import (
	"fmt"

	"github.com/heimdex/heimdex-editor/internal/planner"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

const (
	// DuckVolume is the ceiling applied to the audio track by audio_duck.
	DuckVolume = 0.35
	// ZoomScale is the transform scale applied by zoom.
	ZoomScale = 1.2

	trimFraction = 10
)

// Skipped records an intent that produced no operations.
type Skipped struct {
	Op     planner.IntentOp `json:"op"`
	Reason string           `json:"reason"`
}

type Compiled struct {
	Operations []timeline.Operation `json:"-"`
	Skipped    []Skipped            `json:"skipped"`
}

// Compile turns intents into operations. Each intent is compiled against the
// state left by the intents before it, so a split followed by a trim targets
// the left half of the split. The input state is not modified.
func Compile(state *timeline.State, intents []planner.Intent) Compiled {
	out := Compiled{Skipped: []Skipped{}}
	if state == nil {
		for _, in := range intents {
			out.Skipped = append(out.Skipped, Skipped{Op: in.Op, Reason: "no timeline"})
		}
		return out
	}

	scratch := state.Clone()
	for _, in := range intents {
		ops, reason := compileIntent(scratch, in)
		if len(ops) == 0 {
			out.Skipped = append(out.Skipped, Skipped{Op: in.Op, Reason: reason})
			continue
		}
		res, err := timeline.Apply(scratch, ops)
		if err != nil {
			out.Skipped = append(out.Skipped, Skipped{Op: in.Op, Reason: err.Error()})
			continue
		}
		scratch = res.State
		out.Operations = append(out.Operations, ops...)
	}
	return out
}

func compileIntent(s *timeline.State, in planner.Intent) ([]timeline.Operation, string) {
	switch in.Op {
	case planner.OpSplit:
		track, clip := primaryClip(s)
		if clip == nil {
			return nil, "no video clip"
		}
		if clip.DurationMs() < 2 {
			return nil, "clip too short to split"
		}
		at := clip.TimelineInMs + clip.DurationMs()/2
		return []timeline.Operation{timeline.SplitClip{
			TrackID:   track.ID,
			ClipID:    clip.ID,
			AtMs:      at,
			NewClipID: fmt.Sprintf("%s-split-%d", clip.ID, at),
		}}, ""

	case planner.OpTrim:
		track, clip := primaryClip(s)
		if clip == nil {
			return nil, "no video clip"
		}
		cut := clip.DurationMs() / trimFraction
		if cut <= 0 {
			return nil, "clip too short to trim"
		}
		out := clip.TimelineOutMs - cut
		return []timeline.Operation{timeline.TrimClip{TrackID: track.ID, ClipID: clip.ID, TimelineOutMs: &out}}, ""

	case planner.OpCaptionStyle:
		track := s.FirstTrackOfKind(timeline.TrackCaption)
		if track == nil {
			return nil, "no caption track"
		}
		if len(track.Clips) == 0 {
			return nil, "caption track has no clips"
		}
		ops := make([]timeline.Operation, 0, len(track.Clips))
		for _, c := range track.Clips {
			ops = append(ops, timeline.UpsertEffect{
				TrackID:    track.ID,
				ClipID:     c.ID,
				EffectType: "caption_style",
				Config:     map[string]any{"preset": "clean", "position": "bottom"},
			})
		}
		return ops, ""

	case planner.OpZoom:
		track, clip := primaryClip(s)
		if clip == nil {
			return nil, "no video clip"
		}
		return []timeline.Operation{timeline.UpsertEffect{
			TrackID:    track.ID,
			ClipID:     clip.ID,
			EffectType: "transform",
			Config:     map[string]any{"scale": ZoomScale, "anchor": "center"},
		}}, ""

	case planner.OpAudioDuck:
		track := s.FirstTrackOfKind(timeline.TrackAudio)
		if track == nil {
			return nil, "no audio track"
		}
		vol := track.Volume
		if vol > DuckVolume {
			vol = DuckVolume
		}
		return []timeline.Operation{timeline.SetTrackAudio{TrackID: track.ID, Volume: &vol}}, ""

	case planner.OpReorder:
		ordered := s.OrderedTracks()
		if len(ordered) < 2 {
			return nil, "fewer than two tracks"
		}
		last := ordered[len(ordered)-1]
		return []timeline.Operation{timeline.ReorderTrack{TrackID: last.ID, Order: 0}}, ""

	case planner.OpGeneric:
		return nil, "generic intent has no timeline target"

	default:
		return nil, fmt.Sprintf("unsupported intent %q", in.Op)
	}
}

// primaryClip is the first clip of the primary video track.
func primaryClip(s *timeline.State) (*timeline.Track, *timeline.Clip) {
	t := s.PrimaryVideoTrack()
	if t == nil || len(t.Clips) == 0 {
		return nil, nil
	}
	return t, &t.Clips[0]
}
