package store

import (
	"context"

	"github.com/hibiken/asynq"

	"voiceeval/internal/tasks"
)

// --- Artifact Store ---

// ArtifactStore is key-addressed blob storage for uploaded and synthesized artifacts.
type ArtifactStore interface {
	// Put writes body under key. Failures are *models.UploadError.
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// Get reads the blob stored under key. Missing keys wrap ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// PublicURL returns the externally reachable URL of key.
	PublicURL(key string) string
	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error
}

// --- Job Client ---

type JobClient interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueNaturalnessRun(ctx context.Context, payload tasks.RunPayload) error
	Close() error
}
