package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"voiceeval/internal/models"
)

// Defines constants for task types used in Asynq.

const (
	// TypeNaturalnessRun is the task type for one full naturalness pipeline run.
	TypeNaturalnessRun = "tts_naturalness:run"
)

// RunTimeout caps how long asynq lets a pipeline run hold a worker slot.
const RunTimeout = time.Hour

// RunPayload is everything the orchestrator needs to run one task.
type RunPayload struct {
	TaskName      string                 `json:"task_name"`
	Request       models.PipelineRequest `json:"request"`
	OriginalKey   string                 `json:"original_key"`
	TranslatedKey string                 `json:"translated_key,omitempty"` // empty when no audio was uploaded
}

// NewRunTask encodes payload as an asynq task. Failed runs are reported, never retried.
func NewRunTask(payload RunPayload) (*asynq.Task, error) {
	if payload.TaskName == "" {
		return nil, fmt.Errorf("%w: task name is required", models.ErrValidation)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode run payload: %w", err)
	}
	return asynq.NewTask(TypeNaturalnessRun, b, asynq.MaxRetry(0), asynq.Timeout(RunTimeout)), nil
}

// ParseRunPayload decodes the payload of a TypeNaturalnessRun task.
func ParseRunPayload(t *asynq.Task) (RunPayload, error) {
	var p RunPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode run payload: %w", err)
	}
	if p.TaskName == "" || p.OriginalKey == "" {
		return p, fmt.Errorf("%w: run payload missing task_name or original_key", models.ErrValidation)
	}
	return p, nil
}
