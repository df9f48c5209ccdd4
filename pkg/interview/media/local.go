package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStore writes recordings under a base directory, one subdirectory per
// session token.
type LocalStore struct {
	base string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates the base directory if needed.
func NewLocalStore(base string) (*LocalStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &LocalStore{base: base}, nil
}

func (s *LocalStore) Put(_ context.Context, r io.Reader, info PutInfo) (*Locator, error) {
	dir := filepath.Join(s.base, info.SessionToken)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s%s",
		time.Now().UTC().Format("20060102_150405"),
		uuid.NewString(),
		safeExt(info.Filename))
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write recording: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close recording: %w", err)
	}
	return &Locator{Storage: StorageLocal, Path: path}, nil
}

func (s *LocalStore) DownloadFor(_ context.Context, loc Locator, _ time.Duration) (*Download, error) {
	if _, err := os.Stat(loc.Path); err != nil {
		return nil, fmt.Errorf("recording file: %w", err)
	}
	return &Download{Path: loc.Path}, nil
}

func (s *LocalStore) Delete(_ context.Context, loc Locator) error {
	return os.Remove(loc.Path)
}

// safeExt keeps the upload's extension but nothing else of its name.
func safeExt(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if strings.ContainsAny(ext, "/\\") || len(ext) > 10 {
		return ""
	}
	return ext
}
