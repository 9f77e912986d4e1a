package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportEDL_Text(t *testing.T) {
	h := newTestRouter(t)
	id := createTestProject(t, h)

	rr := doJSON(t, h, http.MethodGet, "/projects/"+id+"/export.edl?title=Cut+One&frame_rate=25", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, `"Cut One.edl"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	edl := rr.Body.String()
	for _, want := range []string{
		"TITLE: Cut One",
		"FCM: NON-DROP FRAME",
		"001  A1       V     C        00:00:00:00 00:00:04:00 00:00:00:00 00:00:04:00",
		"* FROM CLIP NAME:  Intro",
		"* MEDIA PATH:  /media/a1.mov",
	} {
		if !strings.Contains(edl, want) {
			t.Errorf("edl missing %q:\n%s", want, edl)
		}
	}
}

func TestExportEDL_WritesFile(t *testing.T) {
	h := newTestRouter(t)
	id := createTestProject(t, h)
	outDir := t.TempDir()

	rr := doJSON(t, h, http.MethodGet, "/projects/"+id+"/export.edl?output_dir="+url.QueryEscape(outDir), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	wantPath := filepath.Join(outDir, "Launch video.edl")
	if body["output_path"] != wantPath || body["clip_count"] != float64(1) {
		t.Fatalf("response = %v", body)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("edl file not written: %v", err)
	}
}

func TestExportEDL_Errors(t *testing.T) {
	h := newTestRouter(t)
	id := createTestProject(t, h)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "bad frame rate", path: "/projects/" + id + "/export.edl?frame_rate=fast", wantStatus: http.StatusBadRequest},
		{name: "traversal", path: "/projects/" + id + "/export.edl?output_dir=" + url.QueryEscape("/tmp/../etc"), wantStatus: http.StatusBadRequest},
		{name: "unknown project", path: "/projects/nope/export.edl", wantStatus: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodGet, tc.path, nil)
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tc.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestExportEDL_RemoteRejected(t *testing.T) {
	h := newTestRouter(t)
	id := createTestProject(t, h)

	req := httptest.NewRequest(http.MethodGet, "/projects/"+id+"/export.edl", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.RemoteAddr = "203.0.113.9:5000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}
