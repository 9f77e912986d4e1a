package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/pipeline"
	"github.com/heimdex/heimdex-editor/internal/timeline"
	"github.com/heimdex/heimdex-editor/internal/transcript"
	"github.com/heimdex/heimdex-editor/internal/undo"
)

// UndoLedgerField is the document field holding the undo window when no
// external undo store is configured.
const UndoLedgerField = "undoLedger"

const undoNote = "undo"

type Options struct {
	// UndoStore keeps undo entries outside the document. Nil stores them in
	// the document blob under UndoLedgerField.
	UndoStore           undo.Store
	UndoLimit           int
	RippleMinConfidence float64
	Engine              timeline.Engine
}

type CreateParams struct {
	Name       string                `json:"name"`
	Document   json.RawMessage       `json:"document,omitempty"`
	Assets     []timeline.Asset      `json:"assets"`
	Transcript transcript.Transcript `json:"transcript"`
}

type ChatEditResult struct {
	pipeline.Result
	UndoToken string `json:"undoToken,omitempty"`
}

type PatchOutcome struct {
	transcript.PatchResult
	Applied *timeline.Result `json:"applied,omitempty"`
}

type Service struct {
	repo   Repository
	logger *slog.Logger
	opts   Options
}

func NewService(repo Repository, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.UndoLimit <= 0 {
		opts.UndoLimit = undo.DefaultLimit
	}
	return &Service{repo: repo, logger: logging.WithComponent(logger, "project"), opts: opts}
}

func (s *Service) CreateProject(ctx context.Context, params CreateParams) (*Project, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", timeline.ErrInvalidOperation)
	}

	doc, err := timeline.ParseDocument(params.Document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", timeline.ErrInvalidOperation, err)
	}
	state, err := timeline.Hydrate(doc, params.Assets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", timeline.ErrInvalidOperation, err)
	}
	if issues := timeline.ValidateInvariants(state); len(issues) > 0 {
		return nil, &timeline.InvariantError{Issues: issues}
	}
	if err := doc.SetState(state); err != nil {
		return nil, err
	}
	raw, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	hash, err := timeline.Hash(state)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Project{
		ID:           NewID(),
		Name:         name,
		Document:     raw,
		Assets:       params.Assets,
		Transcript:   params.Transcript,
		Revision:     state.Version,
		TimelineHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	rec := &RevisionRecord{
		ProjectID:    p.ID,
		Revision:     p.Revision,
		TimelineHash: hash,
		Source:       SourceCreate,
		CreatedAt:    now,
	}
	if err := s.repo.CreateProject(ctx, p, rec); err != nil {
		return nil, err
	}

	s.logger.Info("project created", "project_id", p.ID, "revision", p.Revision, "timeline_hash", logging.ShortHash(hash))
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx)
}

// State returns the hydrated timeline of a project.
func (s *Service) State(ctx context.Context, id string) (*timeline.State, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	_, state, err := load(p)
	return state, err
}

func (s *Service) Asset(ctx context.Context, id, assetID string) (*timeline.Asset, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range p.Assets {
		if p.Assets[i].ID == assetID {
			a := p.Assets[i]
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
}

func (s *Service) Revisions(ctx context.Context, id string) ([]*RevisionRecord, error) {
	if _, err := s.GetProject(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListRevisions(ctx, id)
}

// ApplyOperations commits ops as one revision. A non-nil expectedRevision
// must match the stored revision.
func (s *Service) ApplyOperations(ctx context.Context, id string, ops []timeline.Operation, expectedRevision *int) (*timeline.Result, error) {
	var result *timeline.Result
	_, err := s.repo.UpdateProject(ctx, id, func(ctx context.Context, p *Project) (*RevisionRecord, error) {
		doc, state, err := load(p)
		if err != nil {
			return nil, err
		}
		if expectedRevision != nil && *expectedRevision != state.Version {
			return nil, &RevisionConflictError{Expected: *expectedRevision, Current: state.Version}
		}

		res, err := s.opts.Engine.Apply(state, ops)
		if err != nil {
			return nil, err
		}
		if err := save(p, doc, res); err != nil {
			return nil, err
		}
		result = res
		return &RevisionRecord{
			Revision:       res.Revision,
			TimelineHash:   res.TimelineHash,
			Source:         SourceOperations,
			OperationCount: len(ops),
		}, nil
	})
	if err != nil {
		s.logger.Warn("operations rejected", "project_id", id, "count", len(ops), "error", err)
		return nil, err
	}

	s.logger.Info("operations applied", "project_id", id, "count", len(ops),
		"revision", result.Revision, "timeline_hash", logging.ShortHash(result.TimelineHash))
	return result, nil
}

// PreviewOperations reports what ApplyOperations would produce without
// writing anything.
func (s *Service) PreviewOperations(ctx context.Context, id string, ops []timeline.Operation) (timeline.PreviewResult, error) {
	state, err := s.State(ctx, id)
	if err != nil {
		return timeline.PreviewResult{}, err
	}
	return s.opts.Engine.Preview(state, ops), nil
}

// ChatEdit runs prompt through the edit pipeline. An applied result is
// committed and recorded in the undo window; suggestions leave the project
// untouched.
func (s *Service) ChatEdit(ctx context.Context, id, prompt string, mode pipeline.ExecutionMode) (*ChatEditResult, error) {
	out := &ChatEditResult{}
	var entry undo.Entry

	_, err := s.repo.UpdateProject(ctx, id, func(ctx context.Context, p *Project) (*RevisionRecord, error) {
		doc, state, err := load(p)
		if err != nil {
			return nil, err
		}

		out.Result = pipeline.Run(state, prompt, pipeline.Options{Mode: mode, Engine: s.opts.Engine})
		if out.ExecutionMode != pipeline.ModeApplied {
			return nil, ErrNoChange
		}

		snapshot, err := timeline.MarshalState(state)
		if err != nil {
			return nil, err
		}
		entry = undo.Entry{
			Token:             undo.NewToken(),
			TimelineStateJSON: snapshot,
			Prompt:            prompt,
			Lineage: undo.Lineage{
				ProjectID:           p.ID,
				BaseRevision:        p.Revision,
				BaseTimelineHash:    p.TimelineHash,
				AppliedRevision:     out.NextRevision,
				AppliedTimelineHash: out.NextTimelineHash,
			},
			CreatedAt: time.Now().UTC(),
		}
		if s.opts.UndoStore == nil {
			ledger, err := s.blobLedger(doc)
			if err != nil {
				return nil, err
			}
			ledger.Push(entry)
			if err := doc.SetField(UndoLedgerField, ledger); err != nil {
				return nil, err
			}
		}

		res := &timeline.Result{State: out.NextState, Revision: out.NextRevision, TimelineHash: out.NextTimelineHash}
		if err := save(p, doc, res); err != nil {
			return nil, err
		}
		return &RevisionRecord{
			Revision:       res.Revision,
			TimelineHash:   res.TimelineHash,
			Source:         SourceChatEdit,
			OperationCount: len(out.AppliedTimelineOperations),
			Note:           prompt,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	logger := logging.WithProjectID(s.logger, id)
	if out.ExecutionMode != pipeline.ModeApplied {
		logger.Info("chat edit returned suggestions", "reason", out.FallbackReason,
			"confidence", out.PlanValidation.AverageConfidence)
		return out, nil
	}

	if s.opts.UndoStore != nil {
		if err := s.opts.UndoStore.Push(ctx, id, entry); err != nil {
			// The edit is committed; only the undo handle is lost.
			logger.Warn("failed to record undo entry", "error", err)
			return out, nil
		}
	}
	out.UndoToken = entry.Token
	logger.Info("chat edit applied", "revision", out.NextRevision,
		"operations", len(out.AppliedTimelineOperations), "undo_token", logging.SanitizeToken(entry.Token))
	return out, nil
}

// Undo restores the snapshot recorded under token as a new revision. With
// requireLatest the document must still be at the revision the edit produced.
func (s *Service) Undo(ctx context.Context, id, token string, requireLatest bool) (*timeline.Result, error) {
	var (
		result   *timeline.Result
		entry    undo.Entry
		consumed bool
	)
	_, err := s.repo.UpdateProject(ctx, id, func(ctx context.Context, p *Project) (*RevisionRecord, error) {
		doc, state, err := load(p)
		if err != nil {
			return nil, err
		}

		if s.opts.UndoStore != nil {
			entry, err = s.opts.UndoStore.Consume(ctx, id, token, p.Revision, p.TimelineHash, requireLatest)
			if err != nil {
				return nil, err
			}
			consumed = true
		} else {
			ledger, err := s.blobLedger(doc)
			if err != nil {
				return nil, err
			}
			entry, err = ledger.ConsumeWithLineage(token, p.Revision, p.TimelineHash, requireLatest)
			if err != nil {
				return nil, err
			}
			if err := doc.SetField(UndoLedgerField, ledger); err != nil {
				return nil, err
			}
		}

		snapshot, err := timeline.UnmarshalState(entry.TimelineStateJSON)
		if err != nil {
			return nil, err
		}
		res, err := s.opts.Engine.Restore(state, snapshot, undoNote)
		if err != nil {
			return nil, err
		}
		if err := save(p, doc, res); err != nil {
			return nil, err
		}
		result = res
		return &RevisionRecord{
			Revision:     res.Revision,
			TimelineHash: res.TimelineHash,
			Source:       SourceUndo,
			Note:         entry.Prompt,
		}, nil
	})
	if err != nil {
		if consumed {
			// The transaction rolled back; hand the entry back to the store.
			if perr := s.opts.UndoStore.Push(context.WithoutCancel(ctx), id, entry); perr != nil {
				s.logger.Error("failed to return undo entry", "project_id", id,
					"undo_token", logging.SanitizeToken(token), "error", perr)
			}
		}
		s.logger.Warn("undo rejected", "project_id", id, "undo_token", logging.SanitizeToken(token), "error", err)
		return nil, err
	}

	s.logger.Info("undo applied", "project_id", id, "revision", result.Revision)
	return result, nil
}

// UndoEntries lists the undo window, oldest first.
func (s *Service) UndoEntries(ctx context.Context, id string) ([]undo.Entry, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.opts.UndoStore != nil {
		return s.opts.UndoStore.List(ctx, id)
	}
	doc, _, err := load(p)
	if err != nil {
		return nil, err
	}
	ledger, err := s.blobLedger(doc)
	if err != nil {
		return nil, err
	}
	return ledger.Entries, nil
}

// PatchTranscript applies transcript edits and, when every deletion passed
// the ripple gate, commits the derived timeline operations as one revision.
func (s *Service) PatchTranscript(ctx context.Context, id string, ops []transcript.PatchOp) (*PatchOutcome, error) {
	out := &PatchOutcome{}
	_, err := s.repo.UpdateProject(ctx, id, func(ctx context.Context, p *Project) (*RevisionRecord, error) {
		doc, state, err := load(p)
		if err != nil {
			return nil, err
		}

		out.PatchResult = transcript.ApplyPatch(state, p.Transcript, ops, transcript.Options{
			MinConfidenceForRipple: s.opts.RippleMinConfidence,
		})
		p.Transcript = out.Transcript

		if len(out.TimelineOperations) == 0 {
			return nil, nil
		}
		res, err := s.opts.Engine.Apply(state, out.TimelineOperations)
		if err != nil {
			return nil, err
		}
		if err := save(p, doc, res); err != nil {
			return nil, err
		}
		out.Applied = res
		return &RevisionRecord{
			Revision:       res.Revision,
			TimelineHash:   res.TimelineHash,
			Source:         SourceTranscript,
			OperationCount: len(out.TimelineOperations),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	logger := logging.WithProjectID(s.logger, id)
	if out.SuggestionsOnly {
		logger.Info("transcript ripple withheld", "issues", len(out.Issues))
	} else {
		logger.Info("transcript patched", "ops", len(ops), "timeline_ops", len(out.TimelineOperations))
	}
	return out, nil
}

// ExportEDL renders the primary video track. With req.OutputDir set the EDL
// is also written to disk.
func (s *Service) ExportEDL(ctx context.Context, id string, req export.ExportRequest) (string, *export.ExportResponse, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return "", nil, err
	}
	_, state, err := load(p)
	if err != nil {
		return "", nil, err
	}

	title := req.Title
	if strings.TrimSpace(title) == "" {
		title = p.Name
	}
	fps := req.FrameRate
	if fps <= 0 {
		fps = state.FPS
	}

	clips, unresolved := export.FromTimeline(state, p.Assets)
	content := export.GenerateEDL(clips, export.SanitizeName(title, 120), fps)
	resp := &export.ExportResponse{
		Status:          "completed",
		Format:          "edl",
		ClipCount:       len(clips),
		UnresolvedClips: unresolved,
	}

	if req.OutputDir != "" {
		path, err := export.WriteEDL(req.OutputDir, title, content)
		if err != nil {
			return "", nil, err
		}
		resp.OutputPath = path
		s.logger.Info("edl written", "project_id", id, "path", logging.SanitizePath(path), "clips", len(clips))
	}
	return content, resp, nil
}

func (s *Service) blobLedger(doc *timeline.Document) (*undo.Ledger, error) {
	ledger := undo.NewLedger(s.opts.UndoLimit)
	raw := doc.Field(UndoLedgerField)
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return ledger, nil
	}
	if err := json.Unmarshal(raw, ledger); err != nil {
		return nil, fmt.Errorf("decode %s: %w", UndoLedgerField, err)
	}
	ledger.Limit = s.opts.UndoLimit
	if ledger.Entries == nil {
		ledger.Entries = []undo.Entry{}
	}
	return ledger, nil
}

func load(p *Project) (*timeline.Document, *timeline.State, error) {
	doc, err := timeline.ParseDocument(p.Document)
	if err != nil {
		return nil, nil, err
	}
	state, err := timeline.Hydrate(doc, p.Assets)
	if err != nil {
		return nil, nil, err
	}
	return doc, state, nil
}

func save(p *Project, doc *timeline.Document, res *timeline.Result) error {
	if err := doc.SetState(res.State); err != nil {
		return err
	}
	raw, err := doc.Encode()
	if err != nil {
		return err
	}
	p.Document = raw
	p.Revision = res.Revision
	p.TimelineHash = res.TimelineHash
	return nil
}
