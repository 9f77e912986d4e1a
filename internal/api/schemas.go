package api

import (
	"time"

	"github.com/heimdex/heimdex-editor/internal/pipeline"
	"github.com/heimdex/heimdex-editor/internal/project"
	"github.com/heimdex/heimdex-editor/internal/timeline"
	"github.com/heimdex/heimdex-editor/internal/transcript"
	"github.com/heimdex/heimdex-editor/internal/undo"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type ErrorResponse struct {
	Error  string           `json:"error"`
	Code   string           `json:"code,omitempty"`
	Issues []timeline.Issue `json:"issues,omitempty"`
}

type OperationsRequest struct {
	Operations       timeline.OperationList `json:"operations"`
	ExpectedRevision *int                   `json:"expectedRevision,omitempty"`
}

type ChatEditRequest struct {
	Prompt string                 `json:"prompt"`
	Mode   pipeline.ExecutionMode `json:"mode,omitempty"`
}

type UndoRequest struct {
	UndoToken string `json:"undoToken"`
	// RequireLatest defaults to true.
	RequireLatest *bool `json:"requireLatest,omitempty"`
}

type TranscriptPatchRequest struct {
	Operations transcript.PatchOpList `json:"operations"`
}

type ProjectSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Revision     int    `json:"revision"`
	TimelineHash string `json:"timelineHash"`
	UpdatedAt    string `json:"updatedAt"`
}

type ProjectsResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

type ProjectResponse struct {
	ProjectSummary
	Assets     []timeline.Asset      `json:"assets"`
	Transcript transcript.Transcript `json:"transcript"`
	Timeline   *timeline.State       `json:"timeline"`
	CreatedAt  string                `json:"createdAt"`
}

type CommitResponse struct {
	Revision     int             `json:"revision"`
	TimelineHash string          `json:"timelineHash"`
	Timeline     *timeline.State `json:"timeline"`
}

type RevisionsResponse struct {
	Revisions []*project.RevisionRecord `json:"revisions"`
}

// UndoEntrySummary leaves out the stored snapshot.
type UndoEntrySummary struct {
	Token     string       `json:"undoToken"`
	Prompt    string       `json:"prompt"`
	Lineage   undo.Lineage `json:"lineage"`
	CreatedAt string       `json:"createdAt"`
}

type UndoEntriesResponse struct {
	Entries []UndoEntrySummary `json:"entries"`
}

func ProjectToSummary(p *project.Project) ProjectSummary {
	return ProjectSummary{
		ID:           p.ID,
		Name:         p.Name,
		Revision:     p.Revision,
		TimelineHash: p.TimelineHash,
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
	}
}

func ProjectToResponse(p *project.Project, state *timeline.State) ProjectResponse {
	return ProjectResponse{
		ProjectSummary: ProjectToSummary(p),
		Assets:         p.Assets,
		Transcript:     p.Transcript,
		Timeline:       state,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

func ResultToCommit(res *timeline.Result) CommitResponse {
	return CommitResponse{Revision: res.Revision, TimelineHash: res.TimelineHash, Timeline: res.State}
}

func EntriesToResponse(entries []undo.Entry) UndoEntriesResponse {
	resp := UndoEntriesResponse{Entries: make([]UndoEntrySummary, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = UndoEntrySummary{
			Token:     e.Token,
			Prompt:    e.Prompt,
			Lineage:   e.Lineage,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	return resp
}
