package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/heimdex-editor/internal/db"
	"github.com/heimdex/heimdex-editor/internal/project"
)

const testToken = "test-token"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := project.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	return NewRouter(ServerConfig{
		Service:    project.NewService(repo, discardLogger(), project.Options{}),
		Repository: repo,
		Logger:     discardLogger(),
		StartTime:  time.Now().Add(-5 * time.Second),
		Version:    "test",
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("json.Marshal error: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v (%s)", err, rr.Body.String())
	}
	return body
}

func createTestProject(t *testing.T, h http.Handler) string {
	t.Helper()

	rr := doJSON(t, h, http.MethodPost, "/projects", `{
		"name": "Launch video",
		"assets": [{"id": "a1", "kind": "video", "label": "Intro", "durationMs": 4000, "path": "/media/a1.mov"}],
		"transcript": {
			"segments": [{"id": "s1", "text": "welcome back", "startMs": 1000, "endMs": 2000, "confidenceAvg": 0.97}],
			"words": [{"text": "welcome", "startMs": 1000, "endMs": 1500, "confidence": 0.97}]
		}
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create response has no id: %v", body)
	}
	return id
}

func TestHealthRoute(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("health = %v", body)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q", got)
	}
}

func TestProjectsRoute_RequiresAuth(t *testing.T) {
	h := newTestRouter(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/projects", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestProjectLifecycle(t *testing.T) {
	h := newTestRouter(t)
	id := createTestProject(t, h)

	rr := doJSON(t, h, http.MethodGet, "/projects", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), id) {
		t.Fatalf("list = %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/projects/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["revision"] != float64(1) {
		t.Errorf("revision = %v, want 1", body["revision"])
	}
	tl, _ := body["timeline"].(map[string]interface{})
	if tracks, _ := tl["tracks"].([]interface{}); len(tracks) != 3 {
		t.Fatalf("timeline tracks = %v", tl["tracks"])
	}

	rr = doJSON(t, h, http.MethodPost, "/projects/"+id+"/operations/preview", `{
		"operations": [{"type": "split_clip", "trackId": "track-video-1", "clipId": "clip-a1", "atMs": 2000}]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status = %d %s", rr.Code, rr.Body.String())
	}
	if body := decodeJSONBody(t, rr); body["valid"] != true || body["revision"] != float64(2) {
		t.Fatalf("preview = %v", body)
	}

	rr = doJSON(t, h, http.MethodPost, "/projects/"+id+"/operations", `{
		"expectedRevision": 1,
		"operations": [
			{"type": "split_clip", "trackId": "track-video-1", "clipId": "clip-a1", "atMs": 2000, "newClipId": "clip-a1-b"},
			{"type": "set_clip_label", "trackId": "track-video-1", "clipId": "clip-a1-b", "label": "Outro"}
		]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("apply status = %d %s", rr.Code, rr.Body.String())
	}
	if body := decodeJSONBody(t, rr); body["revision"] != float64(2) {
		t.Fatalf("apply = %v", body)
	}
}

func TestOperationsRoute_ErrorMapping(t *testing.T) {
	h := newTestRouter(t)
	id := createTestProject(t, h)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown project",
			path:       "/projects/nope/operations",
			body:       `{"operations": [{"type": "set_export_preset", "preset": "4k"}]}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "unknown clip",
			path:       "/projects/" + id + "/operations",
			body:       `{"operations": [{"type": "remove_clip", "trackId": "track-video-1", "clipId": "ghost"}]}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "split outside clip",
			path:       "/projects/" + id + "/operations",
			body:       `{"operations": [{"type": "split_clip", "trackId": "track-video-1", "clipId": "clip-a1", "atMs": 9000}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_OPERATION",
		},
		{
			name:       "unsupported type",
			path:       "/projects/" + id + "/operations",
			body:       `{"operations": [{"type": "explode"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_OPERATION",
		},
		{
			name:       "empty batch",
			path:       "/projects/" + id + "/operations",
			body:       `{"operations": []}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_OPERATION",
		},
		{
			name:       "stale revision",
			path:       "/projects/" + id + "/operations",
			body:       `{"expectedRevision": 7, "operations": [{"type": "set_export_preset", "preset": "4k"}]}`,
			wantStatus: http.StatusConflict,
			wantCode:   "REVISION_CONFLICT",
		},
		{
			name:       "malformed body",
			path:       "/projects/" + id + "/operations",
			body:       `{"operations":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, tc.path, tc.body)
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if body := decodeJSONBody(t, rr); body["code"] != tc.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tc.wantCode)
			}
		})
	}
}

func TestChatEditAndUndoRoutes(t *testing.T) {
	h := newTestRouter(t)
	id := createTestProject(t, h)

	rr := doJSON(t, h, http.MethodPost, "/projects/"+id+"/chat-edit", ChatEditRequest{Prompt: "split the intro"})
	if rr.Code != http.StatusOK {
		t.Fatalf("chat-edit status = %d %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["executionMode"] != "APPLIED" {
		t.Fatalf("chat-edit = %v", body)
	}
	token, _ := body["undoToken"].(string)
	if !strings.HasPrefix(token, "undo_") {
		t.Fatalf("undoToken = %q", token)
	}

	// A later edit moves the document past the entry's lineage.
	rr = doJSON(t, h, http.MethodPost, "/projects/"+id+"/operations", `{"operations": [{"type": "set_export_preset", "preset": "4k_h265"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("apply status = %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/projects/"+id+"/undo", UndoRequest{UndoToken: token})
	if rr.Code != http.StatusConflict {
		t.Fatalf("undo status = %d, want 409 (%s)", rr.Code, rr.Body.String())
	}
	if body := decodeJSONBody(t, rr); body["code"] != "LINEAGE_MISMATCH" {
		t.Errorf("code = %v, want LINEAGE_MISMATCH", body["code"])
	}

	relaxed := false
	rr = doJSON(t, h, http.MethodPost, "/projects/"+id+"/undo", UndoRequest{UndoToken: token, RequireLatest: &relaxed})
	if rr.Code != http.StatusOK {
		t.Fatalf("relaxed undo status = %d %s", rr.Code, rr.Body.String())
	}
	if body := decodeJSONBody(t, rr); body["revision"] != float64(4) {
		t.Errorf("undo revision = %v, want 4", body["revision"])
	}

	rr = doJSON(t, h, http.MethodPost, "/projects/"+id+"/undo", UndoRequest{UndoToken: token})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("reused token status = %d, want 404", rr.Code)
	}
}

func TestChatEditRoute_Validation(t *testing.T) {
	h := newTestRouter(t)
	id := createTestProject(t, h)

	tests := []struct {
		name string
		req  ChatEditRequest
	}{
		{name: "blank prompt", req: ChatEditRequest{Prompt: "  "}},
		{name: "bad mode", req: ChatEditRequest{Prompt: "split", Mode: "YOLO"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/projects/"+id+"/chat-edit", tc.req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
		})
	}

	rr := doJSON(t, h, http.MethodPost, "/projects/"+id+"/chat-edit", ChatEditRequest{Prompt: "split", Mode: "SUGGESTIONS_ONLY"})
	body := decodeJSONBody(t, rr)
	if body["executionMode"] != "SUGGESTIONS_ONLY" {
		t.Errorf("executionMode = %v", body["executionMode"])
	}
	if _, ok := body["undoToken"]; ok {
		t.Error("suggestions response carries an undo token")
	}
}

func TestTranscriptPatchRoute(t *testing.T) {
	h := newTestRouter(t)
	id := createTestProject(t, h)

	rr := doJSON(t, h, http.MethodPost, "/projects/"+id+"/transcript/patch", `{
		"operations": [{"type": "delete_range", "startMs": 1000, "endMs": 2000, "minConfidenceForRipple": 0.99}]
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["suggestionsOnly"] != true {
		t.Fatalf("suggestionsOnly = %v, want true", body["suggestionsOnly"])
	}
	if ops, _ := body["timelineOperations"].([]interface{}); len(ops) != 0 {
		t.Errorf("timelineOperations = %v, want none", ops)
	}

	rr = doJSON(t, h, http.MethodPost, "/projects/"+id+"/transcript/patch", `{"operations": [{"type": "shout"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown patch op status = %d, want 400", rr.Code)
	}
}
