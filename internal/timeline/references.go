package timeline

// refIndex tracks which ids exist while walking a batch, so an operation may
// reference a track or clip created earlier in the same batch.
type refIndex struct {
	tracks  map[string]map[string]bool
	effects map[string]map[string]bool
}

func newRefIndex(s *State) *refIndex {
	idx := &refIndex{
		tracks:  make(map[string]map[string]bool, len(s.Tracks)),
		effects: map[string]map[string]bool{},
	}
	for _, t := range s.Tracks {
		clips := make(map[string]bool, len(t.Clips))
		for _, c := range t.Clips {
			clips[c.ID] = true
			effs := make(map[string]bool, len(c.Effects))
			for _, e := range c.Effects {
				effs[e.ID] = true
			}
			idx.effects[c.ID] = effs
		}
		idx.tracks[t.ID] = clips
	}
	return idx
}

func (r *refIndex) track(i int, op Operation, trackID string) error {
	if _, ok := r.tracks[trackID]; !ok {
		return &ReferenceError{Index: i, Op: op.Type(), Message: MsgTrackNotFound, ID: trackID}
	}
	return nil
}

func (r *refIndex) clip(i int, op Operation, trackID, clipID string) error {
	if err := r.track(i, op, trackID); err != nil {
		return err
	}
	if !r.tracks[trackID][clipID] {
		return &ReferenceError{Index: i, Op: op.Type(), Message: MsgClipNotFound, ID: clipID}
	}
	return nil
}

func (r *refIndex) addClip(trackID, clipID string) {
	if clipID == "" {
		return
	}
	r.tracks[trackID][clipID] = true
	if r.effects[clipID] == nil {
		r.effects[clipID] = map[string]bool{}
	}
}

func (r *refIndex) addEffect(clipID, effectID string) {
	if effectID == "" {
		return
	}
	if r.effects[clipID] == nil {
		r.effects[clipID] = map[string]bool{}
	}
	r.effects[clipID][effectID] = true
}

// resolveReferences checks every id a batch refers to before anything is
// mutated.
func resolveReferences(s *State, ops []Operation) error {
	r := newRefIndex(s)
	for i, op := range ops {
		var err error
		switch o := op.(type) {
		case CreateTrack:
			if o.TrackID != "" {
				if _, exists := r.tracks[o.TrackID]; !exists {
					r.tracks[o.TrackID] = map[string]bool{}
				}
			}
		case AddClip:
			if err = r.track(i, op, o.TrackID); err == nil {
				r.addClip(o.TrackID, o.ClipID)
			}
		case SplitClip:
			if err = r.clip(i, op, o.TrackID, o.ClipID); err == nil {
				r.addClip(o.TrackID, o.NewClipID)
			}
		case TrimClip:
			err = r.clip(i, op, o.TrackID, o.ClipID)
		case ReorderTrack:
			err = r.track(i, op, o.TrackID)
		case RemoveClip:
			if err = r.clip(i, op, o.TrackID, o.ClipID); err == nil {
				delete(r.tracks[o.TrackID], o.ClipID)
			}
		case MoveClip:
			err = r.clip(i, op, o.TrackID, o.ClipID)
			if err == nil && o.ToTrackID != "" && o.ToTrackID != o.TrackID {
				if err = r.track(i, op, o.ToTrackID); err == nil {
					delete(r.tracks[o.TrackID], o.ClipID)
					r.tracks[o.ToTrackID][o.ClipID] = true
				}
			}
		case SetClipTiming:
			err = r.clip(i, op, o.TrackID, o.ClipID)
		case MergeClipWithNext:
			err = r.clip(i, op, o.TrackID, o.ClipID)
		case SetClipLabel:
			err = r.clip(i, op, o.TrackID, o.ClipID)
		case SetTrackAudio:
			err = r.track(i, op, o.TrackID)
		case AddEffect:
			if err = r.clip(i, op, o.TrackID, o.ClipID); err == nil {
				r.addEffect(o.ClipID, o.EffectID)
			}
		case UpsertEffect:
			if err = r.clip(i, op, o.TrackID, o.ClipID); err == nil {
				r.addEffect(o.ClipID, o.EffectID)
			}
		case SetTransition:
			err = r.clip(i, op, o.TrackID, o.ClipID)
		case SetKeyframe:
			if err = r.clip(i, op, o.TrackID, o.ClipID); err == nil && !r.effects[o.ClipID][o.EffectID] {
				err = &ReferenceError{Index: i, Op: op.Type(), Message: MsgEffectNotFound, ID: o.EffectID}
			}
		case SetExportPreset:
		case nil:
			err = &OperationError{Index: i, Reason: "nil operation"}
		default:
			err = &OperationError{Index: i, Op: op.Type(), Reason: ErrUnsupportedOperation.Error()}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
