package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/course-crawler/internal/types"
)

// FileStore keeps one file per career under a data directory.
// Documents are named {code}_{label}.json and archives raw_{code}_{tag}.txt.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed and returns a FileStore rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// DocumentPath returns the file holding the document for career.
func (s *FileStore) DocumentPath(career types.Career) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", career.Code(), career.Label()))
}

// ArchivePath returns the file holding the archived raw payload for career and tag.
func (s *FileStore) ArchivePath(career types.Career, tag types.ArchiveTag) string {
	return filepath.Join(s.dir, fmt.Sprintf("raw_%s_%s.txt", career.Code(), tag))
}

// SaveDocument writes the pretty-printed document, replacing any previous one.
func (s *FileStore) SaveDocument(_ context.Context, doc *Document) (string, error) {
	data, err := render(doc)
	if err != nil {
		return "", &PersistError{Career: careerOf(doc), Op: "render document", Cause: err}
	}
	path := s.DocumentPath(doc.Career)
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return "", &PersistError{Career: doc.Career, Op: "write document", Cause: err}
	}
	return path, nil
}

// ArchiveRaw writes the raw payload verbatim, replacing any previous archive for the same key.
func (s *FileStore) ArchiveRaw(_ context.Context, raw *RawArchive) (string, error) {
	path := s.ArchivePath(raw.Career, raw.Tag)
	if err := writeFileAtomic(path, []byte(raw.Raw), 0644); err != nil {
		return "", &PersistError{Career: raw.Career, Op: "write archive", Cause: err}
	}
	return path, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// writeFileAtomic writes data to a temp file next to path and renames it into place,
// so readers see either the old content or the new content, never a prefix.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}
	return nil
}

func careerOf(doc *Document) types.Career {
	if doc == nil {
		return ""
	}
	return doc.Career
}
