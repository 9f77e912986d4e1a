package export

import (
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

const clipNameMaxLen = 160

// FromTimeline resolves the clips of the primary video track into EDL events.
// Clips whose asset is not in assets are still exported, without a media
// path, and their ids are reported as unresolved.
func FromTimeline(state *timeline.State, assets []timeline.Asset) ([]ResolvedClip, []string) {
	unresolved := []string{}
	track := state.PrimaryVideoTrack()
	if track == nil {
		return []ResolvedClip{}, unresolved
	}

	byID := make(map[string]timeline.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}

	clips := make([]ResolvedClip, 0, len(track.Clips))
	for _, c := range track.Clips {
		name := SanitizeName(c.Label, clipNameMaxLen)
		if name == "" {
			name = c.ID
		}
		rc := ResolvedClip{
			ClipName:    name,
			Reel:        SanitizeReel(c.AssetID),
			SourceInMs:  c.SourceInMs,
			SourceOutMs: c.SourceInMs + c.DurationMs(),
			RecordInMs:  c.TimelineInMs,
		}
		if c.Transition != nil {
			rc.TransitionType = c.Transition.Type
			rc.TransitionMs = c.Transition.DurationMs
		}
		if a, ok := byID[c.AssetID]; ok {
			rc.MediaPath = a.Path
		} else {
			unresolved = append(unresolved, c.ID)
		}
		clips = append(clips, rc)
	}
	return clips, unresolved
}
