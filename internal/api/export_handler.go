package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-editor/internal/export"
)

// exportEDLHandler returns the EDL as text. With output_dir set it writes the
// file on this machine and returns the export summary as JSON instead.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := export.ExportRequest{
			Title:     q.Get("title"),
			OutputDir: q.Get("output_dir"),
		}
		if fps := q.Get("frame_rate"); fps != "" {
			v, err := strconv.ParseFloat(fps, 64)
			if err != nil || v <= 0 {
				WriteError(w, http.StatusBadRequest, "frame_rate must be a positive number", "BAD_REQUEST")
				return
			}
			req.FrameRate = v
		}

		content, resp, err := cfg.Service.ExportEDL(r.Context(), chi.URLParam(r, "id"), req)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		if req.OutputDir != "" {
			WriteJSON(w, http.StatusOK, resp)
			return
		}

		name := export.SanitizeName(req.Title, 120)
		if name == "" {
			name = "timeline"
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".edl"))
		w.Header().Set("X-Unresolved-Clips", strconv.Itoa(len(resp.UnresolvedClips)))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(content))
	}
}
