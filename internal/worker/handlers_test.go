package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceeval/internal/models"
	"voiceeval/internal/pipeline"
	"voiceeval/internal/tasks"
)

type recordingRunner struct {
	jobs []pipeline.Job
}

func (r *recordingRunner) Run(_ context.Context, job pipeline.Job) {
	r.jobs = append(r.jobs, job)
}

func TestHandleNaturalnessRun_RunsPipeline(t *testing.T) {
	runner := &recordingRunner{}
	task, err := tasks.NewRunTask(tasks.RunPayload{
		TaskName:    "tts_naturalness_abc",
		OriginalKey: "tts_naturalness/tts_naturalness_abc/original.wav",
		Request: models.PipelineRequest{
			TranslatedText: "hola",
			TtsAPIType:     models.TtsTypeElevenLabs,
			TotalProjectID: 7,
		},
	})
	require.NoError(t, err)

	err = HandleNaturalnessRun(NaturalnessDeps{Runner: runner})(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, runner.jobs, 1)
	job := runner.jobs[0]
	assert.Equal(t, "tts_naturalness_abc", job.TaskName)
	assert.Equal(t, "tts_naturalness/tts_naturalness_abc/original.wav", job.OriginalKey)
	assert.Empty(t, job.TranslatedKey)
	assert.Equal(t, int64(7), job.Request.TotalProjectID)
}

func TestHandleNaturalnessRun_MalformedPayloadSkipsRetry(t *testing.T) {
	runner := &recordingRunner{}
	task := asynq.NewTask(tasks.TypeNaturalnessRun, []byte(`{"task_name":""}`))

	err := HandleNaturalnessRun(NaturalnessDeps{Runner: runner})(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Empty(t, runner.jobs)
}

func TestRegisterHandlers_RoutesRunTasks(t *testing.T) {
	runner := &recordingRunner{}
	mux := asynq.NewServeMux()
	RegisterHandlers(mux, NaturalnessDeps{Runner: runner})

	task, err := tasks.NewRunTask(tasks.RunPayload{TaskName: "tts_naturalness_x", OriginalKey: "k"})
	require.NoError(t, err)

	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Len(t, runner.jobs, 1)
}
