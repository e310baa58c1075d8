// -----------------------------------------------------------------------
// Filesystem blob store - artifact bytes under a per-issue namespace
// -----------------------------------------------------------------------

package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/interfaces"
)

// FilesystemStore implements interfaces.BlobStorage on the local
// filesystem. Uploads overwrite on conflict; content type follows the
// file extension.
type FilesystemStore struct {
	root   string
	logger arbor.ILogger
}

var _ interfaces.BlobStorage = (*FilesystemStore)(nil)

// NewFilesystemStore creates a blob store rooted at the given directory
func NewFilesystemStore(root string, logger arbor.ILogger) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FilesystemStore{root: root, logger: logger}, nil
}

// Upload writes data under the given slash-separated path, overwriting any
// existing blob.
func (s *FilesystemStore) Upload(ctx context.Context, path, contentType string, data []byte) error {
	clean, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(clean), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	// Write to a temp file first so a crash never leaves a partial artifact
	tmp := clean + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, clean); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize blob: %w", err)
	}

	s.logger.Debug().
		Str("path", path).
		Str("content_type", contentType).
		Int("size", len(data)).
		Msg("Blob uploaded")
	return nil
}

// Read returns the bytes stored under the given path
func (s *FilesystemStore) Read(ctx context.Context, path string) ([]byte, error) {
	clean, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(clean)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// resolve maps a blob path onto the filesystem, rejecting traversal
func (s *FilesystemStore) resolve(path string) (string, error) {
	if path == "" || strings.Contains(path, "..") {
		return "", fmt.Errorf("invalid blob path: %q", path)
	}
	return filepath.Join(s.root, filepath.FromSlash(path)), nil
}
