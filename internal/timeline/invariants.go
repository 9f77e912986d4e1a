package timeline

import "fmt"

const (
	IssueClipTimelineOutInvalid = "CLIP_TIMELINE_OUT_INVALID"
	IssueClipTimelineInNegative = "CLIP_TIMELINE_IN_NEGATIVE"
	IssueClipSourceRangeInvalid = "CLIP_SOURCE_RANGE_INVALID"
	IssueTrackVolumeInvalid     = "TRACK_VOLUME_INVALID"
	IssueTrackKindInvalid       = "TRACK_KIND_INVALID"
	IssueDuplicateTrackID       = "DUPLICATE_TRACK_ID"
	IssueDuplicateClipID        = "DUPLICATE_CLIP_ID"
	IssueStateFPSInvalid        = "STATE_FPS_INVALID"
	IssueApplyFailed            = "APPLY_FAILED"
)

// Issue is one finding of the invariant validator.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TrackID string `json:"trackId,omitempty"`
	ClipID  string `json:"clipId,omitempty"`
}

// ValidateInvariants runs the structural checks every committed state must
// pass. It never mutates s.
func ValidateInvariants(s *State) []Issue {
	var issues []Issue
	if s.FPS <= 0 {
		issues = append(issues, Issue{Code: IssueStateFPSInvalid, Message: fmt.Sprintf("fps must be positive, got %v", s.FPS)})
	}

	trackIDs := make(map[string]bool, len(s.Tracks))
	clipIDs := map[string]bool{}
	for _, t := range s.Tracks {
		if trackIDs[t.ID] {
			issues = append(issues, Issue{Code: IssueDuplicateTrackID, Message: "duplicate track id", TrackID: t.ID})
		}
		trackIDs[t.ID] = true

		if !t.Kind.Valid() {
			issues = append(issues, Issue{Code: IssueTrackKindInvalid, Message: fmt.Sprintf("unknown track kind %q", t.Kind), TrackID: t.ID})
		}
		if t.Volume < MinVolume || t.Volume > MaxVolume {
			issues = append(issues, Issue{Code: IssueTrackVolumeInvalid, Message: fmt.Sprintf("volume %v outside [%v,%v]", t.Volume, MinVolume, MaxVolume), TrackID: t.ID})
		}

		for _, c := range t.Clips {
			if clipIDs[c.ID] {
				issues = append(issues, Issue{Code: IssueDuplicateClipID, Message: "duplicate clip id", TrackID: t.ID, ClipID: c.ID})
			}
			clipIDs[c.ID] = true

			if c.TimelineOutMs <= c.TimelineInMs {
				issues = append(issues, Issue{
					Code:    IssueClipTimelineOutInvalid,
					Message: fmt.Sprintf("timelineOutMs %d must be greater than timelineInMs %d", c.TimelineOutMs, c.TimelineInMs),
					TrackID: t.ID,
					ClipID:  c.ID,
				})
			}
			if c.TimelineInMs < 0 {
				issues = append(issues, Issue{Code: IssueClipTimelineInNegative, Message: "timelineInMs is negative", TrackID: t.ID, ClipID: c.ID})
			}
			if c.SourceInMs < 0 || c.SourceOutMs < c.SourceInMs {
				issues = append(issues, Issue{
					Code:    IssueClipSourceRangeInvalid,
					Message: fmt.Sprintf("source range [%d,%d) is invalid", c.SourceInMs, c.SourceOutMs),
					TrackID: t.ID,
					ClipID:  c.ID,
				})
			}
		}
	}
	return issues
}
