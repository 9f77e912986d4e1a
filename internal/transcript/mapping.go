package transcript

import "sort"

// WordRange is the half-open index range [StartWord, EndWord) of the words,
// sorted by start time, that belong to a segment.
type WordRange struct {
	SegmentID string `json:"segmentId"`
	StartWord int    `json:"startWord"`
	EndWord   int    `json:"endWord"`
	Unmapped  bool   `json:"unmapped"`
}

// MapWords assigns each word to the segment containing its midpoint with a
// single two-pointer pass. A segment that receives no words is returned with
// Unmapped set instead of being dropped.
func MapWords(segments []Segment, words []Word) []WordRange {
	segs := append([]Segment(nil), segments...)
	ws := append([]Word(nil), words...)
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].StartMs < segs[j].StartMs })
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].StartMs < ws[j].StartMs })

	out := make([]WordRange, 0, len(segs))
	j := 0
	for _, s := range segs {
		for j < len(ws) && ws[j].midpoint() < s.StartMs {
			j++
		}
		start := j
		for j < len(ws) && ws[j].midpoint() < s.EndMs {
			j++
		}
		out = append(out, WordRange{
			SegmentID: s.ID,
			StartWord: start,
			EndWord:   j,
			Unmapped:  start == j,
		})
	}
	return out
}
