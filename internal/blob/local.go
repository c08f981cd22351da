package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Local keeps blobs as files under a base directory and serves them from
// baseURL/files/{ref}.
type Local struct {
	basePath string
	baseURL  string
}

func NewLocal(basePath, baseURL string) (*Local, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("local storage path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}
	log.Info().Str("path", basePath).Str("base_url", baseURL).Msg("local blob storage initialized")
	return &Local{basePath: basePath, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Path returns the filesystem path for ref.
func (l *Local) Path(ref string) (string, error) {
	if err := ValidateRef(ref); err != nil {
		return "", err
	}
	return filepath.Join(l.basePath, ref), nil
}

func (l *Local) Put(ctx context.Context, ref string, body io.Reader, size int64, contentType string) error {
	path, err := l.Path(ref)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, body)
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to write file: %w", err)
	}

	log.Debug().Str("ref", ref).Int64("bytes", written).Str("content_type", contentType).Msg("blob stored")
	return nil
}

func (l *Local) URL(ctx context.Context, ref string) (string, error) {
	path, err := l.Path(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return "", err
	}
	return fmt.Sprintf("%s/files/%s", l.baseURL, ref), nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	path, err := l.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
