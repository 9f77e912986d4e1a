package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/pipeline"
	"github.com/heimdex/heimdex-editor/internal/playback"
	"github.com/heimdex/heimdex-editor/internal/project"
	"github.com/heimdex/heimdex-editor/internal/timeline"
	"github.com/heimdex/heimdex-editor/internal/transcript"
	"github.com/heimdex/heimdex-editor/internal/undo"
)

// ProjectService is the project API the handlers call. *project.Service
// implements it.
type ProjectService interface {
	CreateProject(ctx context.Context, params project.CreateParams) (*project.Project, error)
	GetProject(ctx context.Context, id string) (*project.Project, error)
	ListProjects(ctx context.Context) ([]*project.Project, error)
	State(ctx context.Context, id string) (*timeline.State, error)
	Asset(ctx context.Context, id, assetID string) (*timeline.Asset, error)
	Revisions(ctx context.Context, id string) ([]*project.RevisionRecord, error)
	UndoEntries(ctx context.Context, id string) ([]undo.Entry, error)
	ApplyOperations(ctx context.Context, id string, ops []timeline.Operation, expectedRevision *int) (*timeline.Result, error)
	PreviewOperations(ctx context.Context, id string, ops []timeline.Operation) (timeline.PreviewResult, error)
	ChatEdit(ctx context.Context, id, prompt string, mode pipeline.ExecutionMode) (*project.ChatEditResult, error)
	Undo(ctx context.Context, id, token string, requireLatest bool) (*timeline.Result, error)
	PatchTranscript(ctx context.Context, id string, ops []transcript.PatchOp) (*project.PatchOutcome, error)
	ExportEDL(ctx context.Context, id string, req export.ExportRequest) (string, *export.ExportResponse, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Service    ProjectService
	Repository ConfigReader
	// Playback serves asset media. Nil uses a server built on Logger.
	Playback  *playback.Server
	Logger    *slog.Logger
	StartTime time.Time
	Version   string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
