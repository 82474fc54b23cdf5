package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/course-crawler/internal/storage"
	"github.com/jonathan/course-crawler/internal/types"
)

// Table names
const (
	TableCourseDocuments = "course_documents"
	TableRawArchives     = "raw_archives"
)

// StoredDocument is a row of course_documents.
type StoredDocument struct {
	Career      types.Career
	Label       string
	Content     []byte
	Pretty      string
	RecordCount int
	Stage       string
	RunID       uuid.UUID
	UpdatedAt   time.Time
}

// DocumentLocation describes where the document for career is stored.
func DocumentLocation(career types.Career) string {
	return fmt.Sprintf("postgres:%s/%s", TableCourseDocuments, career.Code())
}

// ArchiveLocation describes where the archive for career and tag is stored.
func ArchiveLocation(career types.Career, tag types.ArchiveTag) string {
	return fmt.Sprintf("postgres:%s/%s/%s", TableRawArchives, career.Code(), tag)
}

// SaveDocument upserts the document for its career in a single statement.
func (db *DB) SaveDocument(ctx context.Context, doc *storage.Document) (string, error) {
	if doc == nil || doc.Content == nil {
		return "", &storage.PersistError{Op: "render document", Cause: fmt.Errorf("document is empty")}
	}
	pretty, err := doc.Content.Indent()
	if err != nil {
		return "", &storage.PersistError{Career: doc.Career, Op: "render document", Cause: err}
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO course_documents (career, label, content, pretty, record_count, stage, run_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (career) DO UPDATE SET
		   label = EXCLUDED.label,
		   content = EXCLUDED.content,
		   pretty = EXCLUDED.pretty,
		   record_count = EXCLUDED.record_count,
		   stage = EXCLUDED.stage,
		   run_id = EXCLUDED.run_id,
		   updated_at = NOW()`,
		doc.Career.Code(), doc.Career.Label(), []byte(doc.Content.JSON), string(pretty),
		doc.Content.Len(), string(doc.Content.Stage), doc.RunID,
	)
	if err != nil {
		return "", &storage.PersistError{Career: doc.Career, Op: "upsert document", Cause: err}
	}
	return DocumentLocation(doc.Career), nil
}

// ArchiveRaw upserts the raw payload for its career and tag.
// The payload is stored as bytes since it may contain NUL characters.
func (db *DB) ArchiveRaw(ctx context.Context, raw *storage.RawArchive) (string, error) {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO raw_archives (career, tag, raw, run_id, archived_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (career, tag) DO UPDATE SET
		   raw = EXCLUDED.raw,
		   run_id = EXCLUDED.run_id,
		   archived_at = NOW()`,
		raw.Career.Code(), raw.Tag.String(), []byte(raw.Raw), raw.RunID,
	)
	if err != nil {
		return "", &storage.PersistError{Career: raw.Career, Op: "upsert archive", Cause: err}
	}
	return ArchiveLocation(raw.Career, raw.Tag), nil
}

// GetDocument retrieves the stored document for career, or nil when there is none.
func (db *DB) GetDocument(ctx context.Context, career types.Career) (*StoredDocument, error) {
	var (
		doc  StoredDocument
		code string
	)
	err := db.pool.QueryRow(ctx,
		`SELECT career, label, content, pretty, record_count, stage, run_id, updated_at
		 FROM course_documents WHERE career = $1`,
		career.Code(),
	).Scan(&code, &doc.Label, &doc.Content, &doc.Pretty, &doc.RecordCount, &doc.Stage, &doc.RunID, &doc.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document %s: %w", career, err)
	}
	doc.Career = types.Career(code)
	return &doc, nil
}

// GetArchive retrieves the archived raw payload for career and tag, or nil when there is none.
func (db *DB) GetArchive(ctx context.Context, career types.Career, tag types.ArchiveTag) ([]byte, error) {
	var raw []byte
	err := db.pool.QueryRow(ctx,
		`SELECT raw FROM raw_archives WHERE career = $1 AND tag = $2`,
		career.Code(), tag.String(),
	).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get archive %s/%s: %w", career, tag, err)
	}
	return raw, nil
}

var _ storage.Store = (*DB)(nil)
