package timeline

import (
	"sort"
	"time"
)

type TrackKind string

const (
	TrackVideo   TrackKind = "VIDEO"
	TrackAudio   TrackKind = "AUDIO"
	TrackCaption TrackKind = "CAPTION"
)

// Valid reports whether k is one of the known track kinds.
func (k TrackKind) Valid() bool {
	switch k {
	case TrackVideo, TrackAudio, TrackCaption:
		return true
	default:
		return false
	}
}

const (
	DefaultFPS          = 30.0
	DefaultWidth        = 1920
	DefaultHeight       = 1080
	DefaultExportPreset = "1080p_h264"
	InitialVersion      = 1
)

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type State struct {
	Version      int        `json:"version"`
	FPS          float64    `json:"fps"`
	Resolution   Resolution `json:"resolution"`
	ExportPreset string     `json:"exportPreset"`
	Tracks       []Track    `json:"tracks"`
	Revisions    []Revision `json:"revisions"`
}

type Track struct {
	ID     string    `json:"id"`
	Kind   TrackKind `json:"kind"`
	Name   string    `json:"name"`
	Order  int       `json:"order"`
	Muted  bool      `json:"muted"`
	Volume float64   `json:"volume"`
	Clips  []Clip    `json:"clips"`
}

type Clip struct {
	ID            string      `json:"id"`
	AssetID       string      `json:"assetId,omitempty"`
	SlotKey       string      `json:"slotKey,omitempty"`
	Label         string      `json:"label"`
	TimelineInMs  int64       `json:"timelineInMs"`
	TimelineOutMs int64       `json:"timelineOutMs"`
	SourceInMs    int64       `json:"sourceInMs"`
	SourceOutMs   int64       `json:"sourceOutMs"`
	Effects       []Effect    `json:"effects"`
	Transition    *Transition `json:"transition,omitempty"`
}

// DurationMs is the clip's extent on the timeline.
func (c Clip) DurationMs() int64 {
	return c.TimelineOutMs - c.TimelineInMs
}

type Effect struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

type Transition struct {
	Type       string `json:"type"`
	DurationMs int64  `json:"durationMs"`
}

type Revision struct {
	ID           string        `json:"id"`
	Revision     int           `json:"revision"`
	TimelineHash string        `json:"timelineHash"`
	CreatedAt    time.Time     `json:"createdAt"`
	Operations   OperationList `json:"operations"`
	Note         string        `json:"note,omitempty"`
}

// NewState returns an empty document at InitialVersion with default output settings.
func NewState() *State {
	return &State{
		Version:      InitialVersion,
		FPS:          DefaultFPS,
		Resolution:   Resolution{Width: DefaultWidth, Height: DefaultHeight},
		ExportPreset: DefaultExportPreset,
		Tracks:       []Track{},
		Revisions:    []Revision{},
	}
}

// Clone returns a deep copy. Effect configs are copied recursively so a
// scratch apply can never reach back into the caller's maps.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	if s.Tracks != nil {
		out.Tracks = make([]Track, len(s.Tracks))
		for i, t := range s.Tracks {
			out.Tracks[i] = t.clone()
		}
	}
	if s.Revisions != nil {
		out.Revisions = make([]Revision, len(s.Revisions))
		for i, r := range s.Revisions {
			r.Operations = append(OperationList(nil), r.Operations...)
			out.Revisions[i] = r
		}
	}
	return &out
}

func (t Track) clone() Track {
	out := t
	if t.Clips == nil {
		return out
	}
	out.Clips = make([]Clip, len(t.Clips))
	for i, c := range t.Clips {
		out.Clips[i] = c.clone()
	}
	return out
}

func (c Clip) clone() Clip {
	out := c
	if c.Effects != nil {
		out.Effects = make([]Effect, len(c.Effects))
		for i, e := range c.Effects {
			out.Effects[i] = Effect{ID: e.ID, Type: e.Type, Config: cloneConfig(e.Config)}
		}
	}
	if c.Transition != nil {
		tr := *c.Transition
		out.Transition = &tr
	}
	return out
}

func cloneConfig(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneConfig(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// TrackByID returns a pointer into s.Tracks, or nil.
func (s *State) TrackByID(id string) *Track {
	for i := range s.Tracks {
		if s.Tracks[i].ID == id {
			return &s.Tracks[i]
		}
	}
	return nil
}

// ClipByID returns a pointer into t.Clips and its index, or (nil, -1).
func (t *Track) ClipByID(id string) (*Clip, int) {
	for i := range t.Clips {
		if t.Clips[i].ID == id {
			return &t.Clips[i], i
		}
	}
	return nil, -1
}

// OrderedTracks returns the tracks sorted by Order, ties broken by slice position.
func (s *State) OrderedTracks() []*Track {
	out := make([]*Track, len(s.Tracks))
	for i := range s.Tracks {
		out[i] = &s.Tracks[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// PrimaryVideoTrack is the lowest-order VIDEO track that carries clips,
// falling back to the lowest-order VIDEO track.
func (s *State) PrimaryVideoTrack() *Track {
	var fallback *Track
	for _, t := range s.OrderedTracks() {
		if t.Kind != TrackVideo {
			continue
		}
		if len(t.Clips) > 0 {
			return t
		}
		if fallback == nil {
			fallback = t
		}
	}
	return fallback
}

// FirstTrackOfKind returns the lowest-order track of kind k, or nil.
func (s *State) FirstTrackOfKind(k TrackKind) *Track {
	for _, t := range s.OrderedTracks() {
		if t.Kind == k {
			return t
		}
	}
	return nil
}

func (t *Track) sortClips() {
	sort.SliceStable(t.Clips, func(i, j int) bool {
		return t.Clips[i].TimelineInMs < t.Clips[j].TimelineInMs
	})
}

// DurationMs is the end of the last clip across all tracks.
func (s *State) DurationMs() int64 {
	var end int64
	for _, t := range s.Tracks {
		for _, c := range t.Clips {
			if c.TimelineOutMs > end {
				end = c.TimelineOutMs
			}
		}
	}
	return end
}
