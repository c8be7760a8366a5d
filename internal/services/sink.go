package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/payslipflow/internal/models"
)

// DirectorySink delivers documents into a local directory. It stands in for
// the remote store when uploads are disabled and documents are only wanted
// on disk.
type DirectorySink struct {
	dir string
}

func NewDirectorySink(dir string) (*DirectorySink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &models.FatalError{Err: fmt.Errorf("failed to create output directory %s: %w", dir, err)}
	}
	return &DirectorySink{dir: dir}, nil
}

func (s *DirectorySink) Put(_ context.Context, name string, data []byte) (string, error) {
	dest := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return dest, nil
}
