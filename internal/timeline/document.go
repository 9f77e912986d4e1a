package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StateField is the blob field that carries the canonical state JSON.
const StateField = "timelineStateJson"

const defaultStillDurationMs = 5000

type AssetKind string

const (
	AssetVideo   AssetKind = "video"
	AssetAudio   AssetKind = "audio"
	AssetImage   AssetKind = "image"
	AssetCaption AssetKind = "caption"
)

// Asset is the media reference list that accompanies a document.
type Asset struct {
	ID         string    `json:"id"`
	Kind       AssetKind `json:"kind"`
	Label      string    `json:"label,omitempty"`
	DurationMs int64     `json:"durationMs"`
	SlotKey    string    `json:"slotKey,omitempty"`
	Path       string    `json:"path,omitempty"`
}

// Document is the persisted blob. Only StateField is interpreted; every other
// field is kept verbatim and written back unchanged.
type Document struct {
	StateJSON string
	fields    map[string]json.RawMessage
}

// ParseDocument decodes a blob. Blank input yields an empty document.
func ParseDocument(raw []byte) (*Document, error) {
	doc := &Document{fields: map[string]json.RawMessage{}}
	if len(bytes.TrimSpace(raw)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc.fields); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc.fields == nil {
		doc.fields = map[string]json.RawMessage{}
	}
	if rawState, ok := doc.fields[StateField]; ok {
		delete(doc.fields, StateField)
		if string(rawState) != "null" {
			if err := json.Unmarshal(rawState, &doc.StateJSON); err != nil {
				return nil, fmt.Errorf("parse document %s: %w", StateField, err)
			}
		}
	}
	return doc, nil
}

// Encode renders the blob with the state field and every pass-through field.
func (d *Document) Encode() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.fields)+1)
	for k, v := range d.fields {
		out[k] = v
	}
	if d.StateJSON != "" {
		raw, err := json.Marshal(d.StateJSON)
		if err != nil {
			return nil, err
		}
		out[StateField] = raw
	}
	return json.Marshal(out)
}

// Field returns a pass-through field, or nil.
func (d *Document) Field(name string) json.RawMessage {
	return d.fields[name]
}

// SetField stores v as a pass-through field; a nil v removes it.
func (d *Document) SetField(name string, v any) error {
	if v == nil {
		delete(d.fields, name)
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document field %s: %w", name, err)
	}
	if d.fields == nil {
		d.fields = map[string]json.RawMessage{}
	}
	d.fields[name] = raw
	return nil
}

// SetState stores the canonical serialization of s in the document.
func (d *Document) SetState(s *State) error {
	raw, err := MarshalState(s)
	if err != nil {
		return err
	}
	d.StateJSON = raw
	return nil
}

// Hydrate builds the working state for a request. A document without a
// stored state gets a default layout built from assets.
func Hydrate(d *Document, assets []Asset) (*State, error) {
	if d == nil || strings.TrimSpace(d.StateJSON) == "" {
		return DefaultState(assets), nil
	}
	return UnmarshalState(d.StateJSON)
}

// MarshalState renders s as canonical JSON.
func MarshalState(s *State) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode timeline state: %w", err)
	}
	return string(data), nil
}

// UnmarshalState parses canonical JSON produced by MarshalState.
func UnmarshalState(raw string) (*State, error) {
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode timeline state: %w", err)
	}
	if s.Tracks == nil {
		s.Tracks = []Track{}
	}
	if s.Revisions == nil {
		s.Revisions = []Revision{}
	}
	if s.Version <= 0 {
		s.Version = InitialVersion
	}
	return &s, nil
}

// DefaultState lays assets out back to back: visual assets on a video track,
// audio assets on an audio track, plus an empty caption track.
func DefaultState(assets []Asset) *State {
	s := NewState()
	video := Track{ID: "track-video-1", Kind: TrackVideo, Name: "Video 1", Order: 0, Volume: 1, Clips: []Clip{}}
	audio := Track{ID: "track-audio-1", Kind: TrackAudio, Name: "Audio 1", Order: 1, Volume: 1, Clips: []Clip{}}
	captions := Track{ID: "track-captions-1", Kind: TrackCaption, Name: "Captions 1", Order: 2, Volume: 1, Clips: []Clip{}}

	var videoCursor, audioCursor int64
	for _, a := range assets {
		duration := a.DurationMs
		if duration <= 0 && a.Kind == AssetImage {
			duration = defaultStillDurationMs
		}
		if duration <= 0 {
			continue
		}
		label := a.Label
		if label == "" {
			label = a.ID
		}
		clip := Clip{
			ID:          "clip-" + a.ID,
			AssetID:     a.ID,
			SlotKey:     a.SlotKey,
			Label:       label,
			SourceInMs:  0,
			SourceOutMs: duration,
			Effects:     []Effect{},
		}
		switch a.Kind {
		case AssetVideo, AssetImage:
			clip.TimelineInMs = videoCursor
			clip.TimelineOutMs = videoCursor + duration
			videoCursor += duration
			video.Clips = append(video.Clips, clip)
		case AssetAudio:
			clip.TimelineInMs = audioCursor
			clip.TimelineOutMs = audioCursor + duration
			audioCursor += duration
			audio.Clips = append(audio.Clips, clip)
		}
	}

	s.Tracks = []Track{video, audio, captions}
	return s
}
