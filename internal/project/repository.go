package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heimdex/heimdex-editor/internal/db"
	"github.com/heimdex/heimdex-editor/internal/timeline"
	"github.com/heimdex/heimdex-editor/internal/transcript"
)

// UpdateFunc mutates p inside a transaction. A non-nil record is appended to
// the revision history. Returning ErrNoChange rolls back without error.
type UpdateFunc func(ctx context.Context, p *Project) (*RevisionRecord, error)

type Repository interface {
	CreateProject(ctx context.Context, p *Project, rec *RevisionRecord) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, id string, fn UpdateFunc) (*Project, error)
	ListRevisions(ctx context.Context, projectID string) ([]*RevisionRecord, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const projectColumns = `id, name, document, assets, transcript, revision, timeline_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project, rec *RevisionRecord) error {
	assets, tr, err := encodeColumns(p)
	if err != nil {
		return err
	}

	return db.InTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projects (`+projectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Name, string(p.Document), assets, tr, p.Revision, p.TimelineHash,
			p.CreatedAt.Format(time.RFC3339Nano), p.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if rec == nil {
			return nil
		}
		return insertRevision(ctx, tx, rec)
	})
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject runs fn against the stored project and writes the result back
// in the same transaction.
func (r *SQLiteRepository) UpdateProject(ctx context.Context, id string, fn UpdateFunc) (*Project, error) {
	var out *Project
	err := db.InTx(ctx, r.db, func(tx *sql.Tx) error {
		p, err := scanProject(tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
		}
		out = p

		rec, err := fn(ctx, p)
		if err != nil {
			return err
		}

		assets, tr, err := encodeColumns(p)
		if err != nil {
			return err
		}
		p.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE projects
			SET name = ?, document = ?, assets = ?, transcript = ?, revision = ?, timeline_hash = ?, updated_at = ?
			WHERE id = ?
		`, p.Name, string(p.Document), assets, tr, p.Revision, p.TimelineHash, p.UpdatedAt.Format(time.RFC3339Nano), id); err != nil {
			return fmt.Errorf("update project: %w", err)
		}

		if rec != nil {
			rec.ProjectID = id
			if err := insertRevision(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrNoChange) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) ListRevisions(ctx context.Context, projectID string) ([]*RevisionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id, revision, timeline_hash, source, operation_count, note, created_at
		FROM project_revisions WHERE project_id = ? ORDER BY revision ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*RevisionRecord{}
	for rows.Next() {
		var rec RevisionRecord
		var createdAt string
		if err := rows.Scan(&rec.ProjectID, &rec.Revision, &rec.TimelineHash, &rec.Source, &rec.OperationCount, &rec.Note, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func insertRevision(ctx context.Context, tx *sql.Tx, rec *RevisionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO project_revisions (project_id, revision, timeline_hash, source, operation_count, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ProjectID, rec.Revision, rec.TimelineHash, rec.Source, rec.OperationCount, rec.Note, rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert revision %d: %w", rec.Revision, err)
	}
	return nil
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var document, assets, tr, createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &document, &assets, &tr, &p.Revision, &p.TimelineHash, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.Document = json.RawMessage(document)
	if err := json.Unmarshal([]byte(assets), &p.Assets); err != nil {
		return nil, fmt.Errorf("decode assets of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tr), &p.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript of %s: %w", p.ID, err)
	}
	if p.Assets == nil {
		p.Assets = []timeline.Asset{}
	}
	if p.Transcript.Segments == nil {
		p.Transcript.Segments = []transcript.Segment{}
	}
	if p.Transcript.Words == nil {
		p.Transcript.Words = []transcript.Word{}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &p, nil
}

func encodeColumns(p *Project) (string, string, error) {
	assets := p.Assets
	if assets == nil {
		assets = []timeline.Asset{}
	}
	a, err := json.Marshal(assets)
	if err != nil {
		return "", "", fmt.Errorf("encode assets: %w", err)
	}
	tr := p.Transcript
	if tr.Segments == nil {
		tr.Segments = []transcript.Segment{}
	}
	if tr.Words == nil {
		tr.Words = []transcript.Word{}
	}
	t, err := json.Marshal(tr)
	if err != nil {
		return "", "", fmt.Errorf("encode transcript: %w", err)
	}
	return string(a), string(t), nil
}
