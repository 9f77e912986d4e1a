package transcript

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

const (
	IssueRippleLowConfidence = "RIPPLE_LOW_CONFIDENCE"
	IssueRippleNoCoverage    = "RIPPLE_NO_TRANSCRIPT_COVERAGE"
	IssueRippleApplyFailed   = "RIPPLE_APPLY_FAILED"
	IssueTimingDrift         = "TIMING_DRIFT"
	IssueSegmentNotFound     = "SEGMENT_NOT_FOUND"
	IssueInvalidRange        = "INVALID_RANGE"
	IssueUnsupportedOp       = "UNSUPPORTED_OPERATION"
)

type Issue struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	OpIndex    int      `json:"opIndex"`
	SegmentID  string   `json:"segmentId,omitempty"`
	SegmentIDs []string `json:"segmentIds,omitempty"`
}

type Options struct {
	// MinConfidenceForRipple applies to delete_range operations that carry no
	// threshold of their own. Zero means DefaultMinConfidence.
	MinConfidenceForRipple float64
	NewID                  func() string
}

type PatchResult struct {
	Transcript         Transcript             `json:"transcript"`
	TimelineOperations timeline.OperationList `json:"timelineOperations"`
	SuggestionsOnly    bool                   `json:"suggestionsOnly"`
	Issues             []Issue                `json:"issues"`
	Suggestions        []string               `json:"suggestions"`
	WordRanges         []WordRange            `json:"wordRanges"`
}

// ApplyPatch applies ops to a copy of tr. Text edits always apply. A
// delete_range removes transcript content only when every delete_range in the
// patch passed the ripple gate; otherwise no deletion touches the transcript
// or the timeline and the patch degrades to suggestions. state may be nil
// when there is no timeline. Problems are reported as issues, never as errors.
func ApplyPatch(state *timeline.State, tr Transcript, ops []PatchOp, opts Options) PatchResult {
	p := runPatch(state, tr, ops, opts, false)
	if p.unsafe && p.cut {
		// Replay without cuts so verified deletions earlier in the patch do
		// not leave the transcript out of step with the untouched timeline.
		p = runPatch(state, tr, ops, opts, true)
		p.unsafe = true
	}

	res := PatchResult{
		Transcript:         p.tr,
		TimelineOperations: timeline.OperationList{},
		SuggestionsOnly:    p.unsafe,
		Issues:             p.issues,
		Suggestions:        []string{},
	}
	if p.unsafe {
		res.Suggestions = p.suggestions
	} else if len(p.timelineOps) > 0 {
		res.TimelineOperations = p.timelineOps
	}

	res.WordRanges = MapWords(p.tr.Segments, p.tr.Words)
	for _, wr := range res.WordRanges {
		if !wr.Unmapped {
			continue
		}
		idx := p.tr.segmentIndex(wr.SegmentID)
		if idx < 0 || strings.TrimSpace(p.tr.Segments[idx].Text) == "" {
			continue
		}
		res.Issues = append(res.Issues, Issue{
			Code:      IssueTimingDrift,
			Message:   "segment has text but no words inside its time range",
			OpIndex:   -1,
			SegmentID: wr.SegmentID,
		})
	}
	return res
}

func runPatch(state *timeline.State, tr Transcript, ops []PatchOp, opts Options, holdCuts bool) *patcher {
	p := &patcher{
		tr:        tr.Clone(),
		threshold: opts.MinConfidenceForRipple,
		newID:     opts.NewID,
		issues:    []Issue{},
		holdCuts:  holdCuts,
	}
	if p.threshold <= 0 {
		p.threshold = DefaultMinConfidence
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	if state != nil {
		p.scratch = state.Clone()
	}
	p.tr.sort()

	for i, op := range ops {
		p.apply(i, op)
	}
	return p
}

type patcher struct {
	tr          Transcript
	scratch     *timeline.State
	threshold   float64
	newID       func() string
	issues      []Issue
	timelineOps timeline.OperationList
	suggestions []string
	unsafe      bool
	// cut records that a deletion changed the transcript; holdCuts
	// suppresses deletions entirely.
	cut      bool
	holdCuts bool
}

func (p *patcher) issue(i int, code, segID, format string, args ...any) {
	p.issues = append(p.issues, Issue{Code: code, Message: fmt.Sprintf(format, args...), OpIndex: i, SegmentID: segID})
}

func (p *patcher) segment(i int, id string) int {
	idx := p.tr.segmentIndex(id)
	if idx < 0 {
		p.issue(i, IssueSegmentNotFound, id, "segment %q not found", id)
	}
	return idx
}

func (p *patcher) apply(i int, op PatchOp) {
	switch o := op.(type) {
	case ReplaceText:
		if idx := p.segment(i, o.SegmentID); idx >= 0 {
			p.tr.Segments[idx].Text = o.Text
		}
	case SplitSegment:
		p.splitSegment(i, o)
	case MergeSegments:
		p.mergeSegments(i, o)
	case DeleteRange:
		p.deleteRange(i, o)
	case SetSpeaker:
		if idx := p.segment(i, o.SegmentID); idx >= 0 {
			p.tr.Segments[idx].SpeakerLabel = o.SpeakerLabel
		}
	case NormalizePunctuation:
		if o.SegmentID == "" {
			for si := range p.tr.Segments {
				p.tr.Segments[si].Text = NormalizeText(p.tr.Segments[si].Text)
			}
			return
		}
		if idx := p.segment(i, o.SegmentID); idx >= 0 {
			p.tr.Segments[idx].Text = NormalizeText(p.tr.Segments[idx].Text)
		}
	case nil:
		p.issue(i, IssueUnsupportedOp, "", "nil operation")
	default:
		p.issue(i, IssueUnsupportedOp, "", "unsupported operation %q", op.Type())
	}
}

func (p *patcher) splitSegment(i int, o SplitSegment) {
	idx := p.segment(i, o.SegmentID)
	if idx < 0 {
		return
	}
	seg := p.tr.Segments[idx]
	if o.AtMs <= seg.StartMs || o.AtMs >= seg.EndMs {
		p.issue(i, IssueInvalidRange, seg.ID, "split point %d outside segment [%d,%d)", o.AtMs, seg.StartMs, seg.EndMs)
		return
	}

	leftText, rightText := splitText(seg, p.tr.wordsIn(seg.StartMs, o.AtMs), p.tr.wordsIn(o.AtMs, seg.EndMs), o.AtMs)
	newID := o.NewSegmentID
	if newID == "" {
		newID = p.newID()
	}

	right := seg
	right.ID = newID
	right.StartMs = o.AtMs
	right.Text = rightText
	right.ConfidenceAvg = cloneFloat(seg.ConfidenceAvg)

	p.tr.Segments[idx].EndMs = o.AtMs
	p.tr.Segments[idx].Text = leftText
	p.tr.Segments = append(p.tr.Segments[:idx+1], append([]Segment{right}, p.tr.Segments[idx+1:]...)...)
}

// splitText divides a segment's text at the split point. Word timings decide
// when available; otherwise the text is cut proportionally on a word boundary.
func splitText(seg Segment, left, right []Word, at int64) (string, string) {
	if len(left)+len(right) > 0 {
		return joinWords(left), joinWords(right)
	}
	fields := strings.Fields(seg.Text)
	ratio := float64(at-seg.StartMs) / float64(seg.EndMs-seg.StartMs)
	k := int(math.Round(ratio * float64(len(fields))))
	return strings.Join(fields[:k], " "), strings.Join(fields[k:], " ")
}

func joinWords(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

func (p *patcher) mergeSegments(i int, o MergeSegments) {
	idx := p.segment(i, o.SegmentID)
	if idx < 0 {
		return
	}
	if idx == len(p.tr.Segments)-1 {
		p.issue(i, IssueSegmentNotFound, o.SegmentID, "segment %q has no next segment", o.SegmentID)
		return
	}
	seg := &p.tr.Segments[idx]
	next := p.tr.Segments[idx+1]

	seg.Text = strings.TrimSpace(seg.Text + " " + next.Text)
	seg.EndMs = next.EndMs
	switch {
	case seg.ConfidenceAvg == nil || next.ConfidenceAvg == nil:
		seg.ConfidenceAvg = nil
	case *next.ConfidenceAvg < *seg.ConfidenceAvg:
		seg.ConfidenceAvg = cloneFloat(next.ConfidenceAvg)
	}
	p.tr.Segments = append(p.tr.Segments[:idx+1], p.tr.Segments[idx+2:]...)
}

func (p *patcher) deleteRange(i int, o DeleteRange) {
	if o.EndMs <= o.StartMs || o.StartMs < 0 {
		p.issue(i, IssueInvalidRange, "", "invalid range [%d,%d)", o.StartMs, o.EndMs)
		return
	}

	threshold := p.threshold
	if o.MinConfidenceForRipple != nil {
		threshold = *o.MinConfidenceForRipple
	}
	if blocked := rippleGate(p.tr.Segments, o.StartMs, o.EndMs, threshold); blocked != nil {
		blocked.OpIndex = i
		p.issues = append(p.issues, *blocked)
		p.unsafe = true
		p.suggestions = append(p.suggestions, rippleSuggestion(blocked, o))
		return
	}
	if p.scratch != nil && !p.ripple(i, o) {
		return
	}
	if p.holdCuts {
		return
	}
	p.cutTranscript(o.StartMs, o.EndMs)
	p.cut = true
}

// ripple reports whether the timeline side of the deletion succeeded.
func (p *patcher) ripple(i int, o DeleteRange) bool {
	ops := rippleOps(p.scratch, o.StartMs, o.EndMs)
	if len(ops) == 0 {
		return true
	}
	res, err := timeline.Apply(p.scratch, ops)
	if err != nil {
		p.issue(i, IssueRippleApplyFailed, "", "%v", err)
		p.unsafe = true
		p.suggestions = append(p.suggestions, fmt.Sprintf("Remove %d-%dms from the timeline manually", o.StartMs, o.EndMs))
		return false
	}
	p.scratch = res.State
	p.timelineOps = append(p.timelineOps, ops...)
	return true
}

func rippleSuggestion(blocked *Issue, o DeleteRange) string {
	if blocked.Code == IssueRippleNoCoverage {
		return fmt.Sprintf("No transcript covers %d-%dms; trim the footage manually", o.StartMs, o.EndMs)
	}
	return fmt.Sprintf("Review segments %s before removing %d-%dms from the timeline",
		strings.Join(blocked.SegmentIDs, ", "), o.StartMs, o.EndMs)
}

// cutTranscript removes [start,end) from the transcript. Words and segments
// fully inside are dropped. A segment that straddles one edge keeps the part
// outside the window; a segment that contains the whole window is split into
// a left part and a right part with a fresh id.
func (p *patcher) cutTranscript(start, end int64) {
	segs := make([]Segment, 0, len(p.tr.Segments)+1)
	for _, s := range p.tr.Segments {
		switch {
		case s.EndMs <= start || s.StartMs >= end:
			segs = append(segs, s)
		case s.StartMs >= start && s.EndMs <= end:
		case s.StartMs < start && s.EndMs > end:
			left, right := s, s
			left.EndMs = start
			left.Text = p.textWithin(s, s.StartMs, start)
			right.ID = p.newID()
			right.StartMs = end
			right.Text = p.textWithin(s, end, s.EndMs)
			right.ConfidenceAvg = cloneFloat(s.ConfidenceAvg)
			segs = append(segs, left, right)
		case s.StartMs >= start:
			s.Text = p.textWithin(s, end, s.EndMs)
			s.StartMs = end
			segs = append(segs, s)
		default:
			s.Text = p.textWithin(s, s.StartMs, start)
			s.EndMs = start
			segs = append(segs, s)
		}
	}
	p.tr.Segments = segs

	words := p.tr.Words[:0]
	for _, w := range p.tr.Words {
		if w.StartMs >= start && w.EndMs <= end {
			continue
		}
		words = append(words, w)
	}
	p.tr.Words = words
}

// textWithin returns the part of seg's text spoken in [from,to). Word timings
// decide when the segment has any; otherwise the text is sliced
// proportionally on word boundaries.
func (p *patcher) textWithin(seg Segment, from, to int64) string {
	if len(p.tr.wordsIn(seg.StartMs, seg.EndMs)) > 0 {
		return joinWords(p.tr.wordsIn(from, to))
	}
	fields := strings.Fields(seg.Text)
	span := float64(seg.EndMs - seg.StartMs)
	lo := int(math.Round(float64(from-seg.StartMs) / span * float64(len(fields))))
	hi := int(math.Round(float64(to-seg.StartMs) / span * float64(len(fields))))
	return strings.Join(fields[lo:hi], " ")
}
