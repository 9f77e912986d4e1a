package timeline

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinVolume = 0.0
	MaxVolume = 2.0
)

// Engine applies operation batches. The zero value generates ids with uuid and
// timestamps with time.Now; tests inject both for reproducible output.
type Engine struct {
	NewID func() string
	Now   func() time.Time
}

// Result is the committed outcome of one batch.
type Result struct {
	State        *State `json:"state"`
	Revision     int    `json:"revision"`
	TimelineHash string `json:"timelineHash"`
}

var defaultEngine Engine

// Apply runs ops against state with the default engine.
func Apply(state *State, ops []Operation) (*Result, error) {
	return defaultEngine.Apply(state, ops)
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Apply validates every reference in the batch, applies it to a deep copy and
// checks invariants on the result. On any error state is left exactly as it
// was and no revision is recorded.
func (e Engine) Apply(state *State, ops []Operation) (*Result, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidOperation)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: empty operation batch", ErrInvalidOperation)
	}
	if err := resolveReferences(state, ops); err != nil {
		return nil, err
	}

	next := state.Clone()
	for i, op := range ops {
		if err := e.applyOne(next, i, op); err != nil {
			return nil, err
		}
	}

	if issues := ValidateInvariants(next); len(issues) > 0 {
		return nil, &InvariantError{Issues: issues}
	}

	return e.commit(next, append(OperationList(nil), ops...), "")
}

// Restore commits the content of snapshot on top of current as a new
// revision. Version keeps counting up from current.
func (e Engine) Restore(current, snapshot *State, note string) (*Result, error) {
	if current == nil || snapshot == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidOperation)
	}
	next := snapshot.Clone()
	next.Version = current.Version
	next.Revisions = current.Clone().Revisions
	if issues := ValidateInvariants(next); len(issues) > 0 {
		return nil, &InvariantError{Issues: issues}
	}
	return e.commit(next, OperationList{}, note)
}

// Restore commits snapshot with the default engine.
func Restore(current, snapshot *State, note string) (*Result, error) {
	return defaultEngine.Restore(current, snapshot, note)
}

func (e Engine) commit(next *State, ops OperationList, note string) (*Result, error) {
	next.Version++
	hash, err := Hash(next)
	if err != nil {
		return nil, fmt.Errorf("hash timeline: %w", err)
	}
	next.Revisions = append(next.Revisions, Revision{
		ID:           e.newID(),
		Revision:     next.Version,
		TimelineHash: hash,
		CreatedAt:    e.now(),
		Operations:   ops,
		Note:         note,
	})
	return &Result{State: next, Revision: next.Version, TimelineHash: hash}, nil
}

func (e Engine) applyOne(s *State, i int, op Operation) error {
	switch o := op.(type) {
	case CreateTrack:
		return e.createTrack(s, i, o)
	case AddClip:
		return e.addClip(s, i, o)
	case SplitClip:
		return e.splitClip(s, i, o)
	case TrimClip:
		return trimClip(s, i, o)
	case ReorderTrack:
		t, err := findTrack(s, i, op, o.TrackID)
		if err != nil {
			return err
		}
		moveTrackTo(s, t.ID, o.Order)
		return nil
	case RemoveClip:
		t, _, idx, err := findClip(s, i, op, o.TrackID, o.ClipID)
		if err != nil {
			return err
		}
		t.Clips = append(t.Clips[:idx], t.Clips[idx+1:]...)
		return nil
	case MoveClip:
		return moveClip(s, i, o)
	case SetClipTiming:
		t, c, _, err := findClip(s, i, op, o.TrackID, o.ClipID)
		if err != nil {
			return err
		}
		c.TimelineInMs = o.TimelineInMs
		c.TimelineOutMs = o.TimelineOutMs
		c.SourceOutMs = c.SourceInMs + (o.TimelineOutMs - o.TimelineInMs)
		t.sortClips()
		return nil
	case MergeClipWithNext:
		return mergeClipWithNext(s, i, o)
	case SetClipLabel:
		_, c, _, err := findClip(s, i, op, o.TrackID, o.ClipID)
		if err != nil {
			return err
		}
		c.Label = o.Label
		return nil
	case SetTrackAudio:
		t, err := findTrack(s, i, op, o.TrackID)
		if err != nil {
			return err
		}
		if o.Muted == nil && o.Volume == nil {
			return &OperationError{Index: i, Op: op.Type(), Reason: "muted or volume is required"}
		}
		if o.Muted != nil {
			t.Muted = *o.Muted
		}
		if o.Volume != nil {
			t.Volume = *o.Volume
		}
		return nil
	case AddEffect:
		_, c, _, err := findClip(s, i, op, o.TrackID, o.ClipID)
		if err != nil {
			return err
		}
		return e.addEffect(c, i, op, o.EffectID, o.EffectType, o.Config)
	case UpsertEffect:
		_, c, _, err := findClip(s, i, op, o.TrackID, o.ClipID)
		if err != nil {
			return err
		}
		return e.upsertEffect(c, i, o)
	case SetTransition:
		_, c, _, err := findClip(s, i, op, o.TrackID, o.ClipID)
		if err != nil {
			return err
		}
		if o.Transition == nil {
			c.Transition = nil
			return nil
		}
		if o.Transition.DurationMs < 0 || o.Transition.DurationMs > c.DurationMs() {
			return &OperationError{Index: i, Op: op.Type(), Reason: "transition duration outside clip"}
		}
		tr := *o.Transition
		c.Transition = &tr
		return nil
	case SetKeyframe:
		return setKeyframe(s, i, o)
	case SetExportPreset:
		if strings.TrimSpace(o.Preset) == "" {
			return &OperationError{Index: i, Op: op.Type(), Reason: "preset is required"}
		}
		s.ExportPreset = o.Preset
		return nil
	case nil:
		return &OperationError{Index: i, Reason: "nil operation"}
	default:
		return &OperationError{Index: i, Op: op.Type(), Reason: ErrUnsupportedOperation.Error()}
	}
}

func findTrack(s *State, i int, op Operation, trackID string) (*Track, error) {
	t := s.TrackByID(trackID)
	if t == nil {
		return nil, &ReferenceError{Index: i, Op: op.Type(), Message: MsgTrackNotFound, ID: trackID}
	}
	return t, nil
}

func findClip(s *State, i int, op Operation, trackID, clipID string) (*Track, *Clip, int, error) {
	t, err := findTrack(s, i, op, trackID)
	if err != nil {
		return nil, nil, -1, err
	}
	c, idx := t.ClipByID(clipID)
	if c == nil {
		return nil, nil, -1, &ReferenceError{Index: i, Op: op.Type(), Message: MsgClipNotFound, ID: clipID}
	}
	return t, c, idx, nil
}

func clipIDTaken(s *State, id string) bool {
	for ti := range s.Tracks {
		if c, _ := s.Tracks[ti].ClipByID(id); c != nil {
			return true
		}
	}
	return false
}

func (e Engine) createTrack(s *State, i int, o CreateTrack) error {
	if !o.Kind.Valid() {
		return &OperationError{Index: i, Op: o.Type(), Reason: fmt.Sprintf("invalid track kind %q", o.Kind)}
	}
	id := o.TrackID
	if id == "" {
		id = e.newID()
	}
	if s.TrackByID(id) != nil {
		return &OperationError{Index: i, Op: o.Type(), Reason: "track id already exists: " + id}
	}

	sameKind := 0
	maxOrder := -1
	for _, t := range s.Tracks {
		if t.Kind == o.Kind {
			sameKind++
		}
		if t.Order > maxOrder {
			maxOrder = t.Order
		}
	}
	name := o.Name
	if name == "" {
		name = fmt.Sprintf("%s %d", kindLabel(o.Kind), sameKind+1)
	}

	s.Tracks = append(s.Tracks, Track{
		ID:     id,
		Kind:   o.Kind,
		Name:   name,
		Order:  maxOrder + 1,
		Volume: 1,
		Clips:  []Clip{},
	})
	if o.Order != nil {
		moveTrackTo(s, id, *o.Order)
	}
	return nil
}

func kindLabel(k TrackKind) string {
	switch k {
	case TrackVideo:
		return "Video"
	case TrackAudio:
		return "Audio"
	default:
		return "Captions"
	}
}

func (e Engine) addClip(s *State, i int, o AddClip) error {
	t, err := findTrack(s, i, o, o.TrackID)
	if err != nil {
		return err
	}
	id := o.ClipID
	if id == "" {
		id = e.newID()
	}
	if clipIDTaken(s, id) {
		return &OperationError{Index: i, Op: o.Type(), Reason: "clip id already exists: " + id}
	}

	var sourceIn int64
	if o.SourceInMs != nil {
		sourceIn = *o.SourceInMs
	}
	sourceOut := sourceIn + (o.TimelineOutMs - o.TimelineInMs)
	if o.SourceOutMs != nil {
		sourceOut = *o.SourceOutMs
	}

	t.Clips = append(t.Clips, Clip{
		ID:            id,
		AssetID:       o.AssetID,
		SlotKey:       o.SlotKey,
		Label:         o.Label,
		TimelineInMs:  o.TimelineInMs,
		TimelineOutMs: o.TimelineOutMs,
		SourceInMs:    sourceIn,
		SourceOutMs:   sourceOut,
		Effects:       []Effect{},
	})
	t.sortClips()
	return nil
}

// splitClip cuts a clip at AtMs. The source split point is derived
// proportionally so both halves keep their share of the source range.
func (e Engine) splitClip(s *State, i int, o SplitClip) error {
	t, c, idx, err := findClip(s, i, o, o.TrackID, o.ClipID)
	if err != nil {
		return err
	}
	if o.AtMs <= c.TimelineInMs || o.AtMs >= c.TimelineOutMs {
		return &OperationError{Index: i, Op: o.Type(), Reason: fmt.Sprintf("split point %d outside clip [%d,%d)", o.AtMs, c.TimelineInMs, c.TimelineOutMs)}
	}
	newID := o.NewClipID
	if newID == "" {
		newID = e.newID()
	}
	if clipIDTaken(s, newID) {
		return &OperationError{Index: i, Op: o.Type(), Reason: "clip id already exists: " + newID}
	}

	ratio := float64(o.AtMs-c.TimelineInMs) / float64(c.DurationMs())
	sourceSplit := c.SourceInMs + int64(math.Round(ratio*float64(c.SourceOutMs-c.SourceInMs)))

	right := c.clone()
	right.ID = newID
	right.TimelineInMs = o.AtMs
	right.SourceInMs = sourceSplit
	right.Transition = nil
	for ei := range right.Effects {
		right.Effects[ei].ID = e.newID()
	}
	if right.Effects == nil {
		right.Effects = []Effect{}
	}

	c.TimelineOutMs = o.AtMs
	c.SourceOutMs = sourceSplit

	t.Clips = append(t.Clips, Clip{})
	copy(t.Clips[idx+2:], t.Clips[idx+1:])
	t.Clips[idx+1] = right
	return nil
}

func trimClip(s *State, i int, o TrimClip) error {
	t, c, _, err := findClip(s, i, o, o.TrackID, o.ClipID)
	if err != nil {
		return err
	}
	if o.TimelineInMs == nil && o.TimelineOutMs == nil {
		return &OperationError{Index: i, Op: o.Type(), Reason: "timelineInMs or timelineOutMs is required"}
	}
	if o.TimelineInMs != nil {
		delta := *o.TimelineInMs - c.TimelineInMs
		c.TimelineInMs = *o.TimelineInMs
		c.SourceInMs += delta
	}
	if o.TimelineOutMs != nil {
		delta := *o.TimelineOutMs - c.TimelineOutMs
		c.TimelineOutMs = *o.TimelineOutMs
		c.SourceOutMs += delta
	}
	t.sortClips()
	return nil
}

// moveTrackTo places the track at position order and renumbers every track
// to a dense 0..n-1 sequence.
func moveTrackTo(s *State, trackID string, order int) {
	ordered := s.OrderedTracks()
	ids := make([]string, 0, len(ordered))
	for _, t := range ordered {
		if t.ID != trackID {
			ids = append(ids, t.ID)
		}
	}
	if order < 0 {
		order = 0
	}
	if order > len(ids) {
		order = len(ids)
	}
	ids = append(ids[:order], append([]string{trackID}, ids[order:]...)...)
	for pos, id := range ids {
		s.TrackByID(id).Order = pos
	}
}

func moveClip(s *State, i int, o MoveClip) error {
	src, c, idx, err := findClip(s, i, o, o.TrackID, o.ClipID)
	if err != nil {
		return err
	}
	dst := src
	if o.ToTrackID != "" && o.ToTrackID != o.TrackID {
		dst, err = findTrack(s, i, o, o.ToTrackID)
		if err != nil {
			return err
		}
	}

	moved := *c
	duration := moved.DurationMs()
	moved.TimelineInMs = o.TimelineInMs
	moved.TimelineOutMs = o.TimelineInMs + duration

	if dst == src {
		*c = moved
		src.sortClips()
		return nil
	}
	src.Clips = append(src.Clips[:idx], src.Clips[idx+1:]...)
	dst.Clips = append(dst.Clips, moved)
	dst.sortClips()
	return nil
}

// mergeClipWithNext joins a clip with the clip that starts exactly at its out
// point. The left clip keeps its id, label, effects and transition.
func mergeClipWithNext(s *State, i int, o MergeClipWithNext) error {
	t, _, _, err := findClip(s, i, o, o.TrackID, o.ClipID)
	if err != nil {
		return err
	}
	t.sortClips()
	c, idx := t.ClipByID(o.ClipID)
	if idx == len(t.Clips)-1 {
		return &OperationError{Index: i, Op: o.Type(), Reason: "clip has no next clip"}
	}
	next := t.Clips[idx+1]
	if next.TimelineInMs != c.TimelineOutMs {
		return &OperationError{Index: i, Op: o.Type(), Reason: fmt.Sprintf("next clip starts at %d, not adjacent to %d", next.TimelineInMs, c.TimelineOutMs)}
	}

	c.TimelineOutMs = next.TimelineOutMs
	c.SourceOutMs += next.SourceOutMs - next.SourceInMs
	t.Clips = append(t.Clips[:idx+1], t.Clips[idx+2:]...)
	return nil
}

func (e Engine) addEffect(c *Clip, i int, op Operation, effectID, effectType string, config map[string]any) error {
	if strings.TrimSpace(effectType) == "" {
		return &OperationError{Index: i, Op: op.Type(), Reason: "effectType is required"}
	}
	if effectID == "" {
		effectID = e.newID()
	}
	for _, existing := range c.Effects {
		if existing.ID == effectID {
			return &OperationError{Index: i, Op: op.Type(), Reason: "effect id already exists: " + effectID}
		}
	}
	cfg := cloneConfig(config)
	if cfg == nil {
		cfg = map[string]any{}
	}
	c.Effects = append(c.Effects, Effect{ID: effectID, Type: effectType, Config: cfg})
	return nil
}

func (e Engine) upsertEffect(c *Clip, i int, o UpsertEffect) error {
	target := -1
	for ei, existing := range c.Effects {
		if o.EffectID != "" && existing.ID == o.EffectID {
			target = ei
			break
		}
		if o.EffectID == "" && existing.Type == o.EffectType && target < 0 {
			target = ei
		}
	}
	if target < 0 {
		return e.addEffect(c, i, o, o.EffectID, o.EffectType, o.Config)
	}

	eff := &c.Effects[target]
	if eff.Config == nil {
		eff.Config = map[string]any{}
	}
	for k, v := range o.Config {
		eff.Config[k] = cloneValue(v)
	}
	if o.EffectType != "" {
		eff.Type = o.EffectType
	}
	return nil
}

func setKeyframe(s *State, i int, o SetKeyframe) error {
	_, c, _, err := findClip(s, i, o, o.TrackID, o.ClipID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(o.Property) == "" {
		return &OperationError{Index: i, Op: o.Type(), Reason: "property is required"}
	}
	var eff *Effect
	for ei := range c.Effects {
		if c.Effects[ei].ID == o.EffectID {
			eff = &c.Effects[ei]
			break
		}
	}
	if eff == nil {
		return &ReferenceError{Index: i, Op: o.Type(), Message: MsgEffectNotFound, ID: o.EffectID}
	}

	if eff.Config == nil {
		eff.Config = map[string]any{}
	}
	frames, _ := eff.Config["keyframes"].(map[string]any)
	if frames == nil {
		frames = map[string]any{}
	}
	list, _ := frames[o.Property].([]any)

	entry := map[string]any{"atMs": o.AtMs, "value": o.Value}
	replaced := false
	for ki, raw := range list {
		kf, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if at, ok := toInt64(kf["atMs"]); ok && at == o.AtMs {
			list[ki] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, entry)
	}
	sort.SliceStable(list, func(a, b int) bool {
		return keyframeAt(list[a]) < keyframeAt(list[b])
	})

	frames[o.Property] = list
	eff.Config["keyframes"] = frames
	return nil
}

func keyframeAt(raw any) int64 {
	kf, ok := raw.(map[string]any)
	if !ok {
		return math.MaxInt64
	}
	at, ok := toInt64(kf["atMs"])
	if !ok {
		return math.MaxInt64
	}
	return at
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
