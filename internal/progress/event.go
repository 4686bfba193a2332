package progress

import (
	"context"

	"voiceeval/internal/models"
)

// Event is the JSON payload pushed to every progress subscriber.
type Event struct {
	TaskName string `json:"task_name"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// StatusFor derives the event status from a progress value.
func StatusFor(progress int) string {
	switch {
	case progress < 0:
		return models.TaskStatusFailed
	case progress < models.ProgressDone:
		return models.TaskStatusRunning
	default:
		return models.TaskStatusCompleted
	}
}

// NewEvent builds an event with its derived status. errMsg may be empty.
func NewEvent(taskName string, progress int, errMsg string) Event {
	return Event{
		TaskName: taskName,
		Progress: progress,
		Status:   StatusFor(progress),
		Error:    errMsg,
	}
}

// Publisher delivers progress events. Delivery is best-effort and never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}
