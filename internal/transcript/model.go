// Package transcript edits transcript segments and converts safe deletions
// into timeline operations.
//
// Confidence values are pointers throughout: nil means the speech-to-text
// provider did not report one, and an unreported confidence is never treated
// as good enough to delete footage.
package transcript

import "sort"

type Segment struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	StartMs       int64    `json:"startMs"`
	EndMs         int64    `json:"endMs"`
	ConfidenceAvg *float64 `json:"confidenceAvg,omitempty"`
	SpeakerLabel  string   `json:"speakerLabel,omitempty"`
}

type Word struct {
	ID         string   `json:"id,omitempty"`
	Text       string   `json:"text"`
	StartMs    int64    `json:"startMs"`
	EndMs      int64    `json:"endMs"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (w Word) midpoint() int64 {
	return w.StartMs + (w.EndMs-w.StartMs)/2
}

type Transcript struct {
	Segments []Segment `json:"segments"`
	Words    []Word    `json:"words"`
}

// Clone copies segments, words and confidence values.
func (t Transcript) Clone() Transcript {
	out := Transcript{
		Segments: make([]Segment, len(t.Segments)),
		Words:    make([]Word, len(t.Words)),
	}
	for i, s := range t.Segments {
		s.ConfidenceAvg = cloneFloat(s.ConfidenceAvg)
		out.Segments[i] = s
	}
	for i, w := range t.Words {
		w.Confidence = cloneFloat(w.Confidence)
		out.Words[i] = w
	}
	return out
}

func (t *Transcript) sort() {
	sort.SliceStable(t.Segments, func(i, j int) bool { return t.Segments[i].StartMs < t.Segments[j].StartMs })
	sort.SliceStable(t.Words, func(i, j int) bool { return t.Words[i].StartMs < t.Words[j].StartMs })
}

func (t *Transcript) segmentIndex(id string) int {
	for i := range t.Segments {
		if t.Segments[i].ID == id {
			return i
		}
	}
	return -1
}

// wordsIn returns the words whose midpoint lies in [start,end).
func (t *Transcript) wordsIn(start, end int64) []Word {
	var out []Word
	for _, w := range t.Words {
		if m := w.midpoint(); m >= start && m < end {
			out = append(out, w)
		}
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
