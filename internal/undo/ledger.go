// Package undo keeps a bounded window of pre-edit snapshots, each tagged with
// the lineage of the edit it would reverse.
package undo

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is the number of entries kept per project.
const DefaultLimit = 20

var (
	ErrTokenNotFound   = errors.New("undo token not found")
	ErrLineageMismatch = errors.New("undo lineage mismatch")
)

// Lineage pins an entry to the document revision it was recorded against and
// the revision the edit produced.
type Lineage struct {
	ProjectID           string `json:"projectId"`
	BaseRevision        int    `json:"baseRevision"`
	BaseTimelineHash    string `json:"baseTimelineHash"`
	AppliedRevision     int    `json:"appliedRevision"`
	AppliedTimelineHash string `json:"appliedTimelineHash"`
}

type Entry struct {
	Token             string    `json:"token"`
	TimelineStateJSON string    `json:"timelineStateJson"`
	Prompt            string    `json:"prompt"`
	Lineage           Lineage   `json:"lineage"`
	CreatedAt         time.Time `json:"createdAt"`
}

// LineageMismatchError is returned when the document moved on since the
// entry was recorded. Nothing is consumed.
type LineageMismatchError struct {
	Token            string
	ExpectedRevision int
	ExpectedHash     string
	CurrentRevision  int
	CurrentHash      string
}

func (e *LineageMismatchError) Error() string {
	return fmt.Sprintf("undo %s: document is at revision %d (%s), entry expects revision %d (%s)",
		e.Token, e.CurrentRevision, shortHash(e.CurrentHash), e.ExpectedRevision, shortHash(e.ExpectedHash))
}

func (e *LineageMismatchError) Unwrap() error { return ErrLineageMismatch }

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// NewToken returns a fresh undo token.
func NewToken() string {
	return "undo_" + uuid.NewString()
}

// Ledger is the per-project undo window. Its zero value is usable and keeps
// DefaultLimit entries.
type Ledger struct {
	Entries []Entry `json:"entries"`
	Limit   int     `json:"limit,omitempty"`
}

func NewLedger(limit int) *Ledger {
	return &Ledger{Entries: []Entry{}, Limit: limit}
}

func (l *Ledger) limit() int {
	if l.Limit <= 0 {
		return DefaultLimit
	}
	return l.Limit
}

// Push appends e and drops the oldest entries beyond the window.
func (l *Ledger) Push(e Entry) {
	l.Entries = append(l.Entries, e)
	if over := len(l.Entries) - l.limit(); over > 0 {
		l.Entries = append([]Entry(nil), l.Entries[over:]...)
	}
}

// ConsumeWithLineage removes and returns the entry for token. With
// requireLatest the current revision and hash must equal the entry's applied
// lineage exactly; otherwise a *LineageMismatchError is returned and the
// ledger is unchanged.
func (l *Ledger) ConsumeWithLineage(token string, currentRevision int, currentHash string, requireLatest bool) (Entry, error) {
	idx := -1
	for i := range l.Entries {
		if l.Entries[i].Token == token {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrTokenNotFound, token)
	}

	e := l.Entries[idx]
	if requireLatest && (e.Lineage.AppliedRevision != currentRevision || e.Lineage.AppliedTimelineHash != currentHash) {
		return Entry{}, &LineageMismatchError{
			Token:            token,
			ExpectedRevision: e.Lineage.AppliedRevision,
			ExpectedHash:     e.Lineage.AppliedTimelineHash,
			CurrentRevision:  currentRevision,
			CurrentHash:      currentHash,
		}
	}

	l.Entries = append(l.Entries[:idx:idx], l.Entries[idx+1:]...)
	return e, nil
}

// Latest returns the most recently pushed entry.
func (l *Ledger) Latest() (Entry, bool) {
	if len(l.Entries) == 0 {
		return Entry{}, false
	}
	return l.Entries[len(l.Entries)-1], true
}
