package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/pipeline"
	"github.com/heimdex/heimdex-editor/internal/playback"
	"github.com/heimdex/heimdex-editor/internal/project"
	"github.com/heimdex/heimdex-editor/internal/timeline"
	"github.com/heimdex/heimdex-editor/internal/undo"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Playback == nil {
		cfg.Playback = playback.NewServer(cfg.Logger)
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects", createProjectHandler(cfg))
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", getProjectHandler(cfg))
			r.Get("/revisions", listRevisionsHandler(cfg))
			r.Get("/undo", listUndoHandler(cfg))
			r.Post("/operations", applyOperationsHandler(cfg))
			r.Post("/operations/preview", previewOperationsHandler(cfg))
			r.Post("/chat-edit", chatEditHandler(cfg))
			r.Post("/undo", undoHandler(cfg))
			r.Post("/transcript/patch", transcriptPatchHandler(cfg))
			r.With(LoopbackGuard()).Get("/export.edl", exportEDLHandler(cfg))
			r.With(LoopbackGuard()).Get("/assets/{assetId}/media", assetMediaHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: version,
			UptimeS: uptime,
		})
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Service.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectSummary, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToSummary(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req project.CreateParams
		if !decodeBody(w, r, &req) {
			return
		}

		p, err := cfg.Service.CreateProject(r.Context(), req)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		state, err := cfg.Service.State(r.Context(), p.ID)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusCreated, ProjectToResponse(p, state))
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		p, err := cfg.Service.GetProject(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		state, err := cfg.Service.State(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, ProjectToResponse(p, state))
	}
}

func listRevisionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		revs, err := cfg.Service.Revisions(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if revs == nil {
			revs = []*project.RevisionRecord{}
		}
		WriteJSON(w, http.StatusOK, RevisionsResponse{Revisions: revs})
	}
}

func listUndoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := cfg.Service.UndoEntries(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, EntriesToResponse(entries))
	}
}

func assetMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.Service.Asset(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "assetId"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if err := cfg.Playback.ServeAsset(w, r, *asset); err != nil {
			writeServiceError(w, cfg.Logger, err)
		}
	}
}

func applyOperationsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OperationsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := cfg.Service.ApplyOperations(r.Context(), chi.URLParam(r, "id"), req.Operations, req.ExpectedRevision)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, ResultToCommit(res))
	}
}

func previewOperationsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OperationsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		preview, err := cfg.Service.PreviewOperations(r.Context(), chi.URLParam(r, "id"), req.Operations)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, preview)
	}
}

func chatEditHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatEditRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if strings.TrimSpace(req.Prompt) == "" {
			WriteError(w, http.StatusBadRequest, "prompt is required", "BAD_REQUEST")
			return
		}
		switch req.Mode {
		case "", pipeline.ModeApplied, pipeline.ModeSuggestionsOnly:
		default:
			WriteError(w, http.StatusBadRequest, "mode must be APPLIED or SUGGESTIONS_ONLY", "BAD_REQUEST")
			return
		}

		res, err := cfg.Service.ChatEdit(r.Context(), chi.URLParam(r, "id"), req.Prompt, req.Mode)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, res)
	}
}

func undoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UndoRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.UndoToken == "" {
			WriteError(w, http.StatusBadRequest, "undoToken is required", "BAD_REQUEST")
			return
		}
		requireLatest := true
		if req.RequireLatest != nil {
			requireLatest = *req.RequireLatest
		}

		res, err := cfg.Service.Undo(r.Context(), chi.URLParam(r, "id"), req.UndoToken, requireLatest)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, ResultToCommit(res))
	}
}

func transcriptPatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TranscriptPatchRequest
		if !decodeBody(w, r, &req) {
			return
		}

		out, err := cfg.Service.PatchTranscript(r.Context(), chi.URLParam(r, "id"), req.Operations)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, out)
	}
}

// decodeBody writes the error response itself and reports whether the
// handler should continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, timeline.ErrUnsupportedOperation) || errors.Is(err, timeline.ErrInvalidOperation) {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_OPERATION")
			return false
		}
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

// writeServiceError maps project, timeline and undo errors onto HTTP status
// codes.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var invErr *timeline.InvariantError
	switch {
	case errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, project.ErrAssetNotFound),
		errors.Is(err, playback.ErrNoMedia),
		errors.Is(err, timeline.ErrStructuralReference),
		errors.Is(err, undo.ErrTokenNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, undo.ErrLineageMismatch):
		WriteError(w, http.StatusConflict, err.Error(), "LINEAGE_MISMATCH")
	case errors.Is(err, project.ErrRevisionConflict):
		WriteError(w, http.StatusConflict, err.Error(), "REVISION_CONFLICT")
	case errors.As(err, &invErr):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_OPERATION", Issues: invErr.Issues})
	case errors.Is(err, timeline.ErrInvalidOperation),
		errors.Is(err, timeline.ErrUnsupportedOperation):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_OPERATION")
	case errors.Is(err, export.ErrInvalidOutputDir):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}
