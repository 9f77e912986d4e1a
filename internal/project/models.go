package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-editor/internal/timeline"
	"github.com/heimdex/heimdex-editor/internal/transcript"
)

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrRevisionConflict = errors.New("revision conflict")
	ErrAssetNotFound    = errors.New("asset not found")
	// ErrNoChange aborts an update without writing anything.
	ErrNoChange = errors.New("no change")
)

// Revision sources recorded in project_revisions.
const (
	SourceCreate     = "create"
	SourceOperations = "operations"
	SourceChatEdit   = "chat_edit"
	SourceUndo       = "undo"
	SourceTranscript = "transcript"
)

// Project is a stored document blob plus the media and transcript that
// accompany it. Revision and TimelineHash mirror the state inside Document.
type Project struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Document     json.RawMessage       `json:"document"`
	Assets       []timeline.Asset      `json:"assets"`
	Transcript   transcript.Transcript `json:"transcript"`
	Revision     int                   `json:"revision"`
	TimelineHash string                `json:"timelineHash"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

type RevisionRecord struct {
	ProjectID      string    `json:"projectId"`
	Revision       int       `json:"revision"`
	TimelineHash   string    `json:"timelineHash"`
	Source         string    `json:"source"`
	OperationCount int       `json:"operationCount"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RevisionConflictError is returned when a caller's expected revision is not
// the stored one.
type RevisionConflictError struct {
	Expected int
	Current  int
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("revision conflict: expected %d, document is at %d", e.Expected, e.Current)
}

func (e *RevisionConflictError) Unwrap() error { return ErrRevisionConflict }

func NewID() string {
	return uuid.NewString()
}
