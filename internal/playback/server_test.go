package playback

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

func writeMedia(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{'x'}, size), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}

func TestServeAsset_Full(t *testing.T) {
	path := writeMedia(t, "intro.rawclip", 1000)
	s := NewServer(nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	if err := s.ServeAsset(rr, req, timeline.Asset{ID: "a1", Kind: timeline.AssetVideo, Path: path}); err != nil {
		t.Fatalf("ServeAsset() error = %v", err)
	}

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.Len() != 1000 {
		t.Errorf("body length = %d, want 1000", rr.Body.Len())
	}
	if got := rr.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want kind fallback video/mp4", got)
	}
	if got := rr.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
}

func TestServeAsset_Range(t *testing.T) {
	path := writeMedia(t, "intro.rawclip", 1000)
	s := NewServer(nil)

	tests := []struct {
		name         string
		header       string
		wantStatus   int
		wantLen      int
		contentRange string
	}{
		{name: "middle", header: "bytes=100-199", wantStatus: http.StatusPartialContent, wantLen: 100, contentRange: "bytes 100-199/1000"},
		{name: "open ended", header: "bytes=900-", wantStatus: http.StatusPartialContent, wantLen: 100, contentRange: "bytes 900-999/1000"},
		{name: "suffix", header: "bytes=-10", wantStatus: http.StatusPartialContent, wantLen: 10, contentRange: "bytes 990-999/1000"},
		{name: "unsatisfiable", header: "bytes=5000-", wantStatus: http.StatusRequestedRangeNotSatisfiable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/media", nil)
			req.Header.Set("Range", tc.header)
			if err := s.ServeAsset(rr, req, timeline.Asset{ID: "a1", Kind: timeline.AssetVideo, Path: path}); err != nil {
				t.Fatalf("ServeAsset() error = %v", err)
			}

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if tc.wantStatus != http.StatusPartialContent {
				return
			}
			if rr.Body.Len() != tc.wantLen {
				t.Errorf("body length = %d, want %d", rr.Body.Len(), tc.wantLen)
			}
			if got := rr.Header().Get("Content-Range"); got != tc.contentRange {
				t.Errorf("Content-Range = %q, want %q", got, tc.contentRange)
			}
		})
	}
}

func TestServeAsset_NoMedia(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(nil)

	tests := []struct {
		name  string
		asset timeline.Asset
	}{
		{name: "no path", asset: timeline.Asset{ID: "a1"}},
		{name: "relative path", asset: timeline.Asset{ID: "a1", Path: "media/a1.mov"}},
		{name: "missing file", asset: timeline.Asset{ID: "a1", Path: filepath.Join(dir, "gone.mov")}},
		{name: "directory", asset: timeline.Asset{ID: "a1", Path: dir}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			err := s.ServeAsset(rr, httptest.NewRequest(http.MethodGet, "/media", nil), tc.asset)
			if !errors.Is(err, ErrNoMedia) {
				t.Fatalf("error = %v, want ErrNoMedia", err)
			}
			if rr.Body.Len() != 0 {
				t.Errorf("response written on error: %q", rr.Body.String())
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		path string
		kind timeline.AssetKind
		want string
	}{
		{path: "/m/a.rawclip", kind: timeline.AssetAudio, want: "audio/mpeg"},
		{path: "/m/a.rawclip", kind: "", want: "application/octet-stream"},
		{path: "/m/a.png", kind: timeline.AssetVideo, want: "image/png"},
	}

	for _, tc := range tests {
		if got := contentType(tc.path, tc.kind); got != tc.want {
			t.Errorf("contentType(%q, %q) = %q, want %q", tc.path, tc.kind, got, tc.want)
		}
	}
}
