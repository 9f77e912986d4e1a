package transcript

import (
	"fmt"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// DefaultMinConfidence is the ripple threshold used when neither the
// operation nor the caller supplies one.
const DefaultMinConfidence = 0.86

// rippleGate checks every segment overlapping [start,end). It returns the
// issue that blocks the ripple, or nil when it is safe.
func rippleGate(segments []Segment, start, end int64, threshold float64) *Issue {
	var weak []string
	covered := false
	for _, s := range segments {
		if s.StartMs >= end || s.EndMs <= start {
			continue
		}
		covered = true
		if s.ConfidenceAvg == nil || *s.ConfidenceAvg < threshold {
			weak = append(weak, s.ID)
		}
	}
	if !covered {
		return &Issue{
			Code:    IssueRippleNoCoverage,
			Message: fmt.Sprintf("no transcript segment covers [%d,%d)", start, end),
		}
	}
	if len(weak) > 0 {
		return &Issue{
			Code:       IssueRippleLowConfidence,
			Message:    fmt.Sprintf("%d segment(s) below confidence %.2f or unverified", len(weak), threshold),
			SegmentIDs: weak,
		}
	}
	return nil
}

// rippleOps builds the operations that remove [start,end) from the primary
// video track. Clips outside the window are left alone and later clips keep
// their position.
func rippleOps(s *timeline.State, start, end int64) []timeline.Operation {
	track := s.PrimaryVideoTrack()
	if track == nil {
		return nil
	}
	var ops []timeline.Operation
	for _, c := range track.Clips {
		if c.TimelineInMs >= end || c.TimelineOutMs <= start {
			continue
		}
		coversHead := start <= c.TimelineInMs
		coversTail := end >= c.TimelineOutMs
		switch {
		case coversHead && coversTail:
			ops = append(ops, timeline.RemoveClip{TrackID: track.ID, ClipID: c.ID})
		case coversHead:
			in := end
			ops = append(ops, timeline.TrimClip{TrackID: track.ID, ClipID: c.ID, TimelineInMs: &in})
		case coversTail:
			out := start
			ops = append(ops, timeline.TrimClip{TrackID: track.ID, ClipID: c.ID, TimelineOutMs: &out})
		default:
			rightID := fmt.Sprintf("%s-ripple-%d", c.ID, start)
			in := end
			ops = append(ops,
				timeline.SplitClip{TrackID: track.ID, ClipID: c.ID, AtMs: start, NewClipID: rightID},
				timeline.TrimClip{TrackID: track.ID, ClipID: rightID, TimelineInMs: &in},
			)
		}
	}
	return ops
}
