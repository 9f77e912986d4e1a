package timeline

import (
	"encoding/json"
	"fmt"
)

type OpType string

const (
	OpCreateTrack       OpType = "create_track"
	OpAddClip           OpType = "add_clip"
	OpSplitClip         OpType = "split_clip"
	OpTrimClip          OpType = "trim_clip"
	OpReorderTrack      OpType = "reorder_track"
	OpRemoveClip        OpType = "remove_clip"
	OpMoveClip          OpType = "move_clip"
	OpSetClipTiming     OpType = "set_clip_timing"
	OpMergeClipWithNext OpType = "merge_clip_with_next"
	OpSetClipLabel      OpType = "set_clip_label"
	OpSetTrackAudio     OpType = "set_track_audio"
	OpAddEffect         OpType = "add_effect"
	OpUpsertEffect      OpType = "upsert_effect"
	OpSetTransition     OpType = "set_transition"
	OpSetKeyframe       OpType = "set_keyframe"
	OpSetExportPreset   OpType = "set_export_preset"
)

// Operation is the closed set of timeline edits. Only types in this package
// implement it.
type Operation interface {
	Type() OpType
	isOperation()
}

type CreateTrack struct {
	TrackID string    `json:"trackId,omitempty"`
	Kind    TrackKind `json:"kind"`
	Name    string    `json:"name,omitempty"`
	Order   *int      `json:"order,omitempty"`
}

type AddClip struct {
	TrackID       string `json:"trackId"`
	ClipID        string `json:"clipId,omitempty"`
	AssetID       string `json:"assetId,omitempty"`
	SlotKey       string `json:"slotKey,omitempty"`
	Label         string `json:"label,omitempty"`
	TimelineInMs  int64  `json:"timelineInMs"`
	TimelineOutMs int64  `json:"timelineOutMs"`
	SourceInMs    *int64 `json:"sourceInMs,omitempty"`
	SourceOutMs   *int64 `json:"sourceOutMs,omitempty"`
}

type SplitClip struct {
	TrackID   string `json:"trackId"`
	ClipID    string `json:"clipId"`
	AtMs      int64  `json:"atMs"`
	NewClipID string `json:"newClipId,omitempty"`
}

type TrimClip struct {
	TrackID       string `json:"trackId"`
	ClipID        string `json:"clipId"`
	TimelineInMs  *int64 `json:"timelineInMs,omitempty"`
	TimelineOutMs *int64 `json:"timelineOutMs,omitempty"`
}

type ReorderTrack struct {
	TrackID string `json:"trackId"`
	Order   int    `json:"order"`
}

type RemoveClip struct {
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
}

type MoveClip struct {
	TrackID      string `json:"trackId"`
	ClipID       string `json:"clipId"`
	TimelineInMs int64  `json:"timelineInMs"`
	ToTrackID    string `json:"toTrackId,omitempty"`
}

type SetClipTiming struct {
	TrackID       string `json:"trackId"`
	ClipID        string `json:"clipId"`
	TimelineInMs  int64  `json:"timelineInMs"`
	TimelineOutMs int64  `json:"timelineOutMs"`
}

type MergeClipWithNext struct {
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
}

type SetClipLabel struct {
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
	Label   string `json:"label"`
}

type SetTrackAudio struct {
	TrackID string   `json:"trackId"`
	Muted   *bool    `json:"muted,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
}

type AddEffect struct {
	TrackID    string         `json:"trackId"`
	ClipID     string         `json:"clipId"`
	EffectID   string         `json:"effectId,omitempty"`
	EffectType string         `json:"effectType"`
	Config     map[string]any `json:"config,omitempty"`
}

type UpsertEffect struct {
	TrackID    string         `json:"trackId"`
	ClipID     string         `json:"clipId"`
	EffectID   string         `json:"effectId,omitempty"`
	EffectType string         `json:"effectType"`
	Config     map[string]any `json:"config,omitempty"`
}

type SetTransition struct {
	TrackID    string      `json:"trackId"`
	ClipID     string      `json:"clipId"`
	Transition *Transition `json:"transition"`
}

type SetKeyframe struct {
	TrackID  string  `json:"trackId"`
	ClipID   string  `json:"clipId"`
	EffectID string  `json:"effectId"`
	Property string  `json:"property"`
	AtMs     int64   `json:"atMs"`
	Value    float64 `json:"value"`
}

type SetExportPreset struct {
	Preset string `json:"preset"`
}

func (CreateTrack) Type() OpType       { return OpCreateTrack }
func (AddClip) Type() OpType           { return OpAddClip }
func (SplitClip) Type() OpType         { return OpSplitClip }
func (TrimClip) Type() OpType          { return OpTrimClip }
func (ReorderTrack) Type() OpType      { return OpReorderTrack }
func (RemoveClip) Type() OpType        { return OpRemoveClip }
func (MoveClip) Type() OpType          { return OpMoveClip }
func (SetClipTiming) Type() OpType     { return OpSetClipTiming }
func (MergeClipWithNext) Type() OpType { return OpMergeClipWithNext }
func (SetClipLabel) Type() OpType      { return OpSetClipLabel }
func (SetTrackAudio) Type() OpType     { return OpSetTrackAudio }
func (AddEffect) Type() OpType         { return OpAddEffect }
func (UpsertEffect) Type() OpType      { return OpUpsertEffect }
func (SetTransition) Type() OpType     { return OpSetTransition }
func (SetKeyframe) Type() OpType       { return OpSetKeyframe }
func (SetExportPreset) Type() OpType   { return OpSetExportPreset }

func (CreateTrack) isOperation()       {}
func (AddClip) isOperation()           {}
func (SplitClip) isOperation()         {}
func (TrimClip) isOperation()          {}
func (ReorderTrack) isOperation()      {}
func (RemoveClip) isOperation()        {}
func (MoveClip) isOperation()          {}
func (SetClipTiming) isOperation()     {}
func (MergeClipWithNext) isOperation() {}
func (SetClipLabel) isOperation()      {}
func (SetTrackAudio) isOperation()     {}
func (AddEffect) isOperation()         {}
func (UpsertEffect) isOperation()      {}
func (SetTransition) isOperation()     {}
func (SetKeyframe) isOperation()       {}
func (SetExportPreset) isOperation()   {}

type opEnvelope struct {
	Type OpType `json:"type"`
}

// DecodeOperation parses one tagged operation object.
func DecodeOperation(raw []byte) (Operation, error) {
	var env opEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}

	var op Operation
	var err error
	switch env.Type {
	case OpCreateTrack:
		op, err = decodeAs[CreateTrack](raw)
	case OpAddClip:
		op, err = decodeAs[AddClip](raw)
	case OpSplitClip:
		op, err = decodeAs[SplitClip](raw)
	case OpTrimClip:
		op, err = decodeAs[TrimClip](raw)
	case OpReorderTrack:
		op, err = decodeAs[ReorderTrack](raw)
	case OpRemoveClip:
		op, err = decodeAs[RemoveClip](raw)
	case OpMoveClip:
		op, err = decodeAs[MoveClip](raw)
	case OpSetClipTiming:
		op, err = decodeAs[SetClipTiming](raw)
	case OpMergeClipWithNext:
		op, err = decodeAs[MergeClipWithNext](raw)
	case OpSetClipLabel:
		op, err = decodeAs[SetClipLabel](raw)
	case OpSetTrackAudio:
		op, err = decodeAs[SetTrackAudio](raw)
	case OpAddEffect:
		op, err = decodeAs[AddEffect](raw)
	case OpUpsertEffect:
		op, err = decodeAs[UpsertEffect](raw)
	case OpSetTransition:
		op, err = decodeAs[SetTransition](raw)
	case OpSetKeyframe:
		op, err = decodeAs[SetKeyframe](raw)
	case OpSetExportPreset:
		op, err = decodeAs[SetExportPreset](raw)
	case "":
		return nil, fmt.Errorf("decode operation: missing type")
	default:
		return nil, fmt.Errorf("decode operation: %w: %q", ErrUnsupportedOperation, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return op, nil
}

func decodeAs[T Operation](raw []byte) (Operation, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeOperation renders op with its "type" tag.
func EncodeOperation(op Operation) (json.RawMessage, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(op.Type())
	fields["type"] = tag
	return json.Marshal(fields)
}

// OperationList is the JSON form of an operation batch.
type OperationList []Operation

func (l OperationList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, op := range l {
		raw, err := EncodeOperation(op)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (l *OperationList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	ops := make(OperationList, 0, len(raws))
	for i, raw := range raws {
		op, err := DecodeOperation(raw)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	*l = ops
	return nil
}
