package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnsupportedPatchOp = errors.New("unsupported transcript operation")

type PatchOpType string

const (
	OpReplaceText          PatchOpType = "replace_text"
	OpSplitSegment         PatchOpType = "split_segment"
	OpMergeSegments        PatchOpType = "merge_segments"
	OpDeleteRange          PatchOpType = "delete_range"
	OpSetSpeaker           PatchOpType = "set_speaker"
	OpNormalizePunctuation PatchOpType = "normalize_punctuation"
)

// PatchOp is the closed set of transcript edits.
type PatchOp interface {
	Type() PatchOpType
	isPatchOp()
}

type ReplaceText struct {
	SegmentID string `json:"segmentId"`
	Text      string `json:"text"`
}

type SplitSegment struct {
	SegmentID    string `json:"segmentId"`
	AtMs         int64  `json:"atMs"`
	NewSegmentID string `json:"newSegmentId,omitempty"`
}

// MergeSegments joins a segment with the one after it.
type MergeSegments struct {
	SegmentID string `json:"segmentId"`
}

type DeleteRange struct {
	StartMs                int64    `json:"startMs"`
	EndMs                  int64    `json:"endMs"`
	MinConfidenceForRipple *float64 `json:"minConfidenceForRipple,omitempty"`
}

type SetSpeaker struct {
	SegmentID    string `json:"segmentId"`
	SpeakerLabel string `json:"speakerLabel"`
}

// NormalizePunctuation applies to one segment, or to all when SegmentID is empty.
type NormalizePunctuation struct {
	SegmentID string `json:"segmentId,omitempty"`
}

func (ReplaceText) Type() PatchOpType          { return OpReplaceText }
func (SplitSegment) Type() PatchOpType         { return OpSplitSegment }
func (MergeSegments) Type() PatchOpType        { return OpMergeSegments }
func (DeleteRange) Type() PatchOpType          { return OpDeleteRange }
func (SetSpeaker) Type() PatchOpType           { return OpSetSpeaker }
func (NormalizePunctuation) Type() PatchOpType { return OpNormalizePunctuation }

func (ReplaceText) isPatchOp()          {}
func (SplitSegment) isPatchOp()         {}
func (MergeSegments) isPatchOp()        {}
func (DeleteRange) isPatchOp()          {}
func (SetSpeaker) isPatchOp()           {}
func (NormalizePunctuation) isPatchOp() {}

// DecodePatchOp parses one tagged transcript operation.
func DecodePatchOp(raw []byte) (PatchOp, error) {
	var env struct {
		Type PatchOpType `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode transcript operation: %w", err)
	}

	var op PatchOp
	var err error
	switch env.Type {
	case OpReplaceText:
		op, err = decodeAs[ReplaceText](raw)
	case OpSplitSegment:
		op, err = decodeAs[SplitSegment](raw)
	case OpMergeSegments:
		op, err = decodeAs[MergeSegments](raw)
	case OpDeleteRange:
		op, err = decodeAs[DeleteRange](raw)
	case OpSetSpeaker:
		op, err = decodeAs[SetSpeaker](raw)
	case OpNormalizePunctuation:
		op, err = decodeAs[NormalizePunctuation](raw)
	default:
		return nil, fmt.Errorf("decode transcript operation: %w: %q", ErrUnsupportedPatchOp, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return op, nil
}

func decodeAs[T PatchOp](raw []byte) (PatchOp, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// PatchOpList is the JSON form of a transcript patch.
type PatchOpList []PatchOp

func (l *PatchOpList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	ops := make(PatchOpList, 0, len(raws))
	for i, raw := range raws {
		op, err := DecodePatchOp(raw)
		if err != nil {
			return fmt.Errorf("transcript operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	*l = ops
	return nil
}
