package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Brownie44l1/cvae-api/internal/log"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// Uploader persists a generated image and returns where it can be fetched.
type Uploader interface {
	Upload(context.Context, UploadParams) (string, error)
}

type FileUploader struct {
	Dir string
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) (string, error) {
	path := filepath.Join(u.Dir, params.Name)
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	log.Info("writing", "file", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, params.Data, 0o600); err != nil {
		return "", err
	}
	return "file://" + path, nil
}
