package timeline

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDocument_PassThroughFieldsSurvive(t *testing.T) {
	raw := []byte(`{"title":"Launch cut","brandKit":{"primary":"#ff0044"},"timelineStateJson":""}`)
	doc, err := ParseDocument(raw)
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}

	state, err := Hydrate(doc, []Asset{{ID: "a1", Kind: AssetVideo, DurationMs: 4000}})
	if err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	res, err := Apply(state, []Operation{SetClipLabel{TrackID: "track-video-1", ClipID: "clip-a1", Label: "Opening"}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := doc.SetState(res.State); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("unmarshal encoded document: %v", err)
	}
	if string(fields["title"]) != `"Launch cut"` {
		t.Errorf("title = %s, want unchanged", fields["title"])
	}
	if string(fields["brandKit"]) != `{"primary":"#ff0044"}` {
		t.Errorf("brandKit = %s, want unchanged", fields["brandKit"])
	}

	reparsed, err := ParseDocument(out)
	if err != nil {
		t.Fatalf("ParseDocument(encoded) error = %v", err)
	}
	again, err := Hydrate(reparsed, nil)
	if err != nil {
		t.Fatalf("Hydrate(encoded) error = %v", err)
	}
	c, _ := again.TrackByID("track-video-1").ClipByID("clip-a1")
	if c == nil || c.Label != "Opening" {
		t.Fatalf("stored clip = %+v, want label Opening", c)
	}
	if again.Version != res.Revision {
		t.Errorf("version = %d, want %d", again.Version, res.Revision)
	}
}

func TestDocument_SetFieldNilRemoves(t *testing.T) {
	doc, err := ParseDocument(nil)
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	if err := doc.SetField("undoLedger", map[string]int{"n": 1}); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if doc.Field("undoLedger") == nil {
		t.Fatal("field missing after SetField")
	}
	_ = doc.SetField("undoLedger", nil)
	if doc.Field("undoLedger") != nil {
		t.Fatal("field present after SetField(nil)")
	}
}

func TestParseDocument_Invalid(t *testing.T) {
	if _, err := ParseDocument([]byte(`[1,2]`)); err == nil {
		t.Fatal("expected error for non-object blob")
	}
	if _, err := ParseDocument([]byte(`{"timelineStateJson":42}`)); err == nil {
		t.Fatal("expected error for non-string state field")
	}
}

func TestDefaultState_LaysOutAssets(t *testing.T) {
	s := DefaultState([]Asset{
		{ID: "v1", Kind: AssetVideo, DurationMs: 2000, Label: "Interview"},
		{ID: "img", Kind: AssetImage},
		{ID: "music", Kind: AssetAudio, DurationMs: 9000},
		{ID: "broken", Kind: AssetVideo},
	})

	if len(s.Tracks) != 3 {
		t.Fatalf("tracks = %d, want 3", len(s.Tracks))
	}
	video := s.TrackByID("track-video-1")
	if len(video.Clips) != 2 {
		t.Fatalf("video clips = %d, want 2", len(video.Clips))
	}
	if video.Clips[1].TimelineInMs != 2000 || video.Clips[1].TimelineOutMs != 7000 {
		t.Errorf("still clip = [%d,%d), want [2000,7000)", video.Clips[1].TimelineInMs, video.Clips[1].TimelineOutMs)
	}
	if video.Clips[0].Label != "Interview" || video.Clips[1].Label != "img" {
		t.Errorf("labels = %q/%q", video.Clips[0].Label, video.Clips[1].Label)
	}
	if got := len(s.TrackByID("track-audio-1").Clips); got != 1 {
		t.Errorf("audio clips = %d, want 1", got)
	}
	if issues := ValidateInvariants(s); len(issues) != 0 {
		t.Errorf("default state issues = %+v", issues)
	}
	if s.PrimaryVideoTrack().ID != "track-video-1" {
		t.Errorf("primary video track = %s", s.PrimaryVideoTrack().ID)
	}
}

func TestOperationList_JSON(t *testing.T) {
	raw := `[
		{"type":"split_clip","trackId":"v1","clipId":"c1","atMs":1000},
		{"type":"set_track_audio","trackId":"a1","muted":true},
		{"type":"set_transition","trackId":"v1","clipId":"c1","transition":{"type":"fade","durationMs":200}}
	]`
	var ops OperationList
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("ops = %d, want 3", len(ops))
	}
	split, ok := ops[0].(SplitClip)
	if !ok || split.AtMs != 1000 {
		t.Fatalf("ops[0] = %#v, want SplitClip at 1000", ops[0])
	}
	audio := ops[1].(SetTrackAudio)
	if audio.Muted == nil || !*audio.Muted || audio.Volume != nil {
		t.Errorf("ops[1] = %#v, want muted only", audio)
	}

	encoded, err := json.Marshal(ops)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(encoded), `"type":"split_clip"`) {
		t.Errorf("encoded ops missing type tag: %s", encoded)
	}
}

func TestDecodeOperation_Errors(t *testing.T) {
	_, err := DecodeOperation([]byte(`{"type":"explode_clip"}`))
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("unknown type error = %v, want ErrUnsupportedOperation", err)
	}
	if _, err := DecodeOperation([]byte(`{"trackId":"v1"}`)); err == nil {
		t.Error("expected error for missing type")
	}
	if _, err := DecodeOperation([]byte(`{"type":"split_clip","atMs":"soon"}`)); err == nil {
		t.Error("expected error for mistyped payload")
	}
}

func TestPreview(t *testing.T) {
	eng := newTestEngine()
	s := singleClipState(t, eng)
	before := mustMarshal(t, s)

	tests := []struct {
		name      string
		ops       []Operation
		wantValid bool
		wantCode  string
	}{
		{name: "valid", ops: []Operation{SetClipLabel{TrackID: "v1", ClipID: "c1", Label: "x"}}, wantValid: true},
		{name: "missing track", ops: []Operation{RemoveClip{TrackID: "zz", ClipID: "c1"}}, wantCode: IssueApplyFailed},
		{name: "invariant", ops: []Operation{TrimClip{TrackID: "v1", ClipID: "c1", TimelineOutMs: ptr[int64](0)}}, wantCode: IssueClipTimelineOutInvalid},
		{name: "empty", ops: nil, wantCode: IssueApplyFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := eng.Preview(s, tc.ops)
			if got.Valid != tc.wantValid {
				t.Fatalf("Valid = %v, want %v (issues %+v)", got.Valid, tc.wantValid, got.Issues)
			}
			if tc.wantValid {
				if got.NextState == nil || got.Revision != s.Version+1 || got.TimelineHash == "" {
					t.Fatalf("valid preview = %+v", got)
				}
				return
			}
			if got.NextState != nil {
				t.Error("invalid preview returned a next state")
			}
			if len(got.Issues) == 0 || got.Issues[0].Code != tc.wantCode {
				t.Fatalf("issues = %+v, want first code %s", got.Issues, tc.wantCode)
			}
			if got.Issues[0].Message == "" {
				t.Error("issue has no message")
			}
		})
	}
	if mustMarshal(t, s) != before {
		t.Fatal("Preview mutated input state")
	}
}
