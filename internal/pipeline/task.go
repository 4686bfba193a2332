package pipeline

import (
	"voiceeval/internal/models"
	"voiceeval/internal/progress"
)

// Job is one unit of work handed to the orchestrator.
type Job struct {
	TaskName      string
	Request       models.PipelineRequest
	OriginalKey   string
	TranslatedKey string // empty when the submitter uploaded no translated audio
}

// Task is the mutable run state of one job. Only the orchestrator touches it.
type Task struct {
	Name       string
	StageIndex int
	Progress   int
	Err        error
}

// Status is derived from Progress alone.
func (t *Task) Status() string {
	return progress.StatusFor(t.Progress)
}

// Terminal reports whether the task has completed or failed.
func (t *Task) Terminal() bool {
	return t.Progress == models.ProgressDone || t.Progress == models.ProgressFailed
}

// complete records that the stage at index finished out of total stages and
// returns the new progress checkpoint.
func (t *Task) complete(index, total int) int {
	t.StageIndex = index
	t.Progress = (index + 1) * 100 / total
	return t.Progress
}

func (t *Task) fail(index int, err error) {
	t.StageIndex = index
	t.Progress = models.ProgressFailed
	t.Err = err
}
