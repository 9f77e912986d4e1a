package export

import (
	"strings"
	"testing"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

func TestGenerateEDL_SingleClip(t *testing.T) {
	clips := []ResolvedClip{{
		ClipName:    "Intro",
		MediaPath:   "/media/intro.mp4",
		SourceInMs:  0,
		SourceOutMs: 2000,
		RecordInMs:  0,
	}}

	edl := GenerateEDL(clips, "Project One", 30.0)

	if !strings.Contains(edl, "TITLE: Project One") {
		t.Fatalf("missing title in EDL: %q", edl)
	}
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing non-drop-frame FCM: %q", edl)
	}
	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("missing event line: %q", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  Intro") {
		t.Fatalf("missing clip name comment: %q", edl)
	}
	if !strings.Contains(edl, "* MEDIA PATH:  /media/intro.mp4") {
		t.Fatalf("missing media path comment: %q", edl)
	}
}

func TestGenerateEDL_GapPreserved(t *testing.T) {
	clips := []ResolvedClip{
		{ClipName: "Clip A", Reel: "A001", SourceInMs: 0, SourceOutMs: 1000, RecordInMs: 0},
		{ClipName: "Clip B", Reel: "B002", SourceInMs: 4000, SourceOutMs: 5500, RecordInMs: 2000},
	}

	edl := GenerateEDL(clips, "Multi", 30.0)

	if !strings.Contains(edl, "001  A001     V     C        00:00:00:00 00:00:01:00 00:00:00:00 00:00:01:00") {
		t.Fatalf("first event line mismatch: %q", edl)
	}
	if !strings.Contains(edl, "002  B002     V     C        00:00:04:00 00:00:05:15 00:00:02:00 00:00:03:15") {
		t.Fatalf("second event line mismatch or bad record offset: %q", edl)
	}
}

func TestGenerateEDL_NoMediaPathLine(t *testing.T) {
	clips := []ResolvedClip{{ClipName: "Orphan", SourceOutMs: 1000}}
	edl := GenerateEDL(clips, "T", 30.0)
	if strings.Contains(edl, "MEDIA PATH") {
		t.Fatalf("unexpected media path line: %q", edl)
	}
}

func TestGenerateEDL_Dissolve(t *testing.T) {
	clips := []ResolvedClip{
		{ClipName: "A", SourceOutMs: 1000},
		{ClipName: "B", SourceOutMs: 1000, RecordInMs: 1000, TransitionType: "crossfade", TransitionMs: 500},
	}
	edl := GenerateEDL(clips, "Fade", 30.0)
	if !strings.Contains(edl, "002  AX       V     D 015    00:00:00:00 00:00:01:00 00:00:01:00 00:00:02:00") {
		t.Fatalf("missing dissolve event: %q", edl)
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	clips := []ResolvedClip{{ClipName: "Clip", MediaPath: "/x.mp4", SourceOutMs: 1000}}
	edl := GenerateEDL(clips, "Drop", 29.97)

	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", edl)
	}
	if !strings.Contains(edl, "00:00:00;00 00:00:01;00") {
		t.Errorf("expected drop frame timecodes, got: %q", edl)
	}
}

func TestMsToDropFrameTimecode(t *testing.T) {
	tests := []struct {
		ms        int64
		frameRate float64
		fps       int
		want      string
	}{
		{ms: 0, frameRate: 29.97, fps: 30, want: "00:00:00;00"},
		{ms: 1000, frameRate: 29.97, fps: 30, want: "00:00:01;00"},
		{ms: 60000, frameRate: 29.97, fps: 30, want: "00:00:59;28"},
		{ms: 60060, frameRate: 29.97, fps: 30, want: "00:01:00;02"},
		{ms: 600000, frameRate: 29.97, fps: 30, want: "00:10:00;00"},
		{ms: 3600000, frameRate: 29.97, fps: 30, want: "01:00:00;00"},
		{ms: 600000, frameRate: 59.94, fps: 60, want: "00:10:00;00"},
		{ms: 60060, frameRate: 59.94, fps: 60, want: "00:01:00;04"},
	}

	for _, tc := range tests {
		if got := msToDropFrameTimecode(tc.ms, tc.frameRate, tc.fps); got != tc.want {
			t.Errorf("msToDropFrameTimecode(%d, %v) = %q, want %q", tc.ms, tc.frameRate, got, tc.want)
		}
	}
}

func TestEditType(t *testing.T) {
	tests := []struct {
		name string
		clip ResolvedClip
		want string
	}{
		{name: "no transition", clip: ResolvedClip{}, want: "C"},
		{name: "dissolve", clip: ResolvedClip{TransitionType: "dissolve", TransitionMs: 1000}, want: "D 030"},
		{name: "upper case fade", clip: ResolvedClip{TransitionType: "FADE", TransitionMs: 100}, want: "D 003"},
		{name: "zero length", clip: ResolvedClip{TransitionType: "dissolve"}, want: "C"},
		{name: "wipe unsupported", clip: ResolvedClip{TransitionType: "wipe", TransitionMs: 500}, want: "C"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := editType(tc.clip, 30); got != tc.want {
				t.Fatalf("editType() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMsToTimecode(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		fps  int
		want string
	}{
		{name: "zero", ms: 0, fps: 30, want: "00:00:00:00"},
		{name: "one second", ms: 1000, fps: 30, want: "00:00:01:00"},
		{name: "fractional second", ms: 500, fps: 30, want: "00:00:00:15"},
		{name: "one minute", ms: 60000, fps: 30, want: "00:01:00:00"},
		{name: "one hour", ms: 3600000, fps: 30, want: "01:00:00:00"},
		{name: "25 fps", ms: 1040, fps: 25, want: "00:00:01:01"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := msToTimecode(tc.ms, tc.fps)
			if got != tc.want {
				t.Fatalf("msToTimecode(%d, %d) = %q, want %q", tc.ms, tc.fps, got, tc.want)
			}
		})
	}
}

func TestFromTimeline(t *testing.T) {
	state := timeline.NewState()
	state.Tracks = []timeline.Track{
		{ID: "a1", Kind: timeline.TrackAudio, Order: 0, Volume: 1, Clips: []timeline.Clip{
			{ID: "music", AssetID: "song", TimelineOutMs: 9000, SourceOutMs: 9000},
		}},
		{ID: "v1", Kind: timeline.TrackVideo, Order: 1, Volume: 1, Clips: []timeline.Clip{
			{ID: "c1", AssetID: "asset-01", Label: "Intro", TimelineInMs: 0, TimelineOutMs: 1000, SourceInMs: 500, SourceOutMs: 1500},
			{ID: "c2", AssetID: "missing", Label: "", TimelineInMs: 2000, TimelineOutMs: 3000, SourceInMs: 0, SourceOutMs: 1000,
				Transition: &timeline.Transition{Type: "dissolve", DurationMs: 200}},
		}},
	}
	assets := []timeline.Asset{{ID: "asset-01", Kind: "video", Label: "Intro", Path: "/media/intro.mov"}}

	clips, unresolved := FromTimeline(state, assets)
	if len(clips) != 2 {
		t.Fatalf("len(clips) = %d, want 2", len(clips))
	}
	if clips[0].MediaPath != "/media/intro.mov" || clips[0].Reel != "ASSET01" {
		t.Fatalf("clips[0] = %+v", clips[0])
	}
	if clips[0].SourceInMs != 500 || clips[0].SourceOutMs != 1500 || clips[0].RecordInMs != 0 {
		t.Fatalf("clips[0] times = %+v", clips[0])
	}
	if clips[1].ClipName != "c2" || clips[1].MediaPath != "" || clips[1].TransitionType != "dissolve" {
		t.Fatalf("clips[1] = %+v", clips[1])
	}
	if len(unresolved) != 1 || unresolved[0] != "c2" {
		t.Fatalf("unresolved = %v, want [c2]", unresolved)
	}
}

func TestFromTimeline_NoVideoTrack(t *testing.T) {
	clips, unresolved := FromTimeline(timeline.NewState(), nil)
	if len(clips) != 0 || len(unresolved) != 0 {
		t.Fatalf("FromTimeline(empty) = %v, %v", clips, unresolved)
	}
}
