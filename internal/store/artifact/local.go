package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"voiceeval/internal/models"
	"voiceeval/internal/store"
)

// LocalStore keeps artifacts on an afero filesystem. Used for development and tests.
type LocalStore struct {
	fs      afero.Fs
	baseURL string
}

var _ store.ArtifactStore = (*LocalStore)(nil)

// NewLocalDirStore stores artifacts below dir on the OS filesystem.
func NewLocalDirStore(dir, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	if publicBaseURL == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve artifact dir %s: %w", dir, err)
		}
		publicBaseURL = "file://" + filepath.ToSlash(abs)
	}
	return NewLocalStore(afero.NewBasePathFs(afero.NewOsFs(), dir), publicBaseURL), nil
}

func NewLocalStore(fs afero.Fs, publicBaseURL string) *LocalStore {
	return &LocalStore{fs: fs, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (s *LocalStore) Put(_ context.Context, key string, body []byte, _ string) error {
	name, err := cleanKey(key)
	if err != nil {
		return &models.UploadError{Err: err}
	}
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return &models.UploadError{Message: fmt.Sprintf("local upload error: %v", err), Err: err}
	}
	if err := afero.WriteFile(s.fs, name, body, 0o644); err != nil {
		return &models.UploadError{Message: fmt.Sprintf("local upload error: %v", err), Err: err}
	}
	return nil
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

func (s *LocalStore) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

func (s *LocalStore) Ping(_ context.Context) error {
	if _, err := s.fs.Stat("/"); err != nil {
		return fmt.Errorf("artifact root unavailable: %w", err)
	}
	return nil
}

func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty artifact key", models.ErrValidation)
	}
	cleaned := path.Clean("/" + key)
	if cleaned == "/" {
		return "", fmt.Errorf("%w: invalid artifact key %q", models.ErrValidation, key)
	}
	return cleaned, nil
}
