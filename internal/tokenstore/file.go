package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the refresh token in a single file.
//
// SECURITY: the file is created with 0600 permissions and its directory
// with 0700. Writes go to a temporary file in the same directory which is
// synced and renamed over the target, so readers see either the old or the
// new token and never a partial write.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file and its directory
// are created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Describe() string {
	return "file:" + s.path
}

// Save atomically replaces the stored token.
func (s *FileStore) Save(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if _, err := tmp.WriteString(token + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		slog.Warn("SECURITY_AUDIT: refresh token persist failed",
			"event", "refresh_token_store_failed",
			"path", s.path,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	syncDir(dir)

	slog.Info("SECURITY_AUDIT: refresh token stored",
		"event", "refresh_token_stored",
		"path", s.path,
	)
	return nil
}

// Load reads the stored token. Surrounding whitespace is trimmed, and an
// empty file counts as no token.
func (s *FileStore) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Clear removes the token file.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	if err == nil {
		syncDir(filepath.Dir(s.path))
		slog.Info("SECURITY_AUDIT: refresh token cleared",
			"event", "refresh_token_cleared",
			"path", s.path,
		)
	}
	return nil
}

// syncDir makes a rename or unlink durable. Some platforms cannot fsync
// directories; that is not treated as a failure.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
