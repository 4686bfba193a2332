package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"voiceeval/internal/models"
	"voiceeval/internal/progress"
	"voiceeval/internal/services"
	"voiceeval/internal/store"
)

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Providers []services.SynthesisProvider
	Scorer    services.Scorer
	Artifacts store.ArtifactStore
	Publisher progress.Publisher
	Reporter  services.Reporter
}

// Orchestrator runs the synthesis, naturalness and similarity stages of a task in
// order, publishes progress after each one and reports exactly one result.
type Orchestrator struct {
	providers map[models.TtsType]services.SynthesisProvider
	scorer    services.Scorer
	artifacts store.ArtifactStore
	publisher progress.Publisher
	reporter  services.Reporter
	now       func() time.Time
}

func New(deps Deps) *Orchestrator {
	providers := make(map[models.TtsType]services.SynthesisProvider, len(deps.Providers))
	for _, p := range deps.Providers {
		providers[p.Name()] = p
	}
	return &Orchestrator{
		providers: providers,
		scorer:    deps.Scorer,
		artifacts: deps.Artifacts,
		publisher: deps.Publisher,
		reporter:  deps.Reporter,
		now:       time.Now,
	}
}

// Run executes job to completion. It never returns an error: every failure ends in
// a failed progress event and a FAILED result. Cancelling ctx does not stop a
// running task; each gateway bounds its own calls.
func (o *Orchestrator) Run(ctx context.Context, job Job) {
	ctx = context.WithoutCancel(ctx)
	logger := log.WithField("task_name", job.TaskName)
	logger.Info("Starting TTS naturalness task")

	task := &Task{Name: job.TaskName}
	start := o.now()
	o.publish(ctx, task, "")

	stages := o.stages(job)
	audioKey := job.TranslatedKey
	var mosScore, scScore float64

	for i, stage := range stages {
		out, err := runStage(ctx, stage, audioKey)
		if err != nil {
			task.fail(i, err)
			if stage.Kind() == StageSynthesis {
				audioKey = ""
			}
			o.fail(ctx, logger, job, task, stage.Kind(), audioKey)
			return
		}

		switch stage.Kind() {
		case StageSynthesis:
			audioKey = out.AudioKey
		case StageNaturalness:
			mosScore = out.Score
		case StageSimilarity:
			scScore = out.Score
		}

		task.complete(i, len(stages))
		o.publish(ctx, task, "")
	}

	inferenceTime := o.now().Sub(start).Seconds()
	result := o.buildResult(job, audioKey, mosScore, scScore, inferenceTime, models.ResultStatusSuccess)
	logger.WithFields(log.Fields{
		"mos_score":      mosScore,
		"sc_score":       scScore,
		"inference_time": inferenceTime,
	}).Info("TTS naturalness task completed")

	o.reporter.Deliver(ctx, result)
}

func (o *Orchestrator) stages(job Job) []Stage {
	return []Stage{
		&synthesisStage{
			taskName:  job.TaskName,
			request:   job.Request,
			providers: o.providers,
			artifacts: o.artifacts,
		},
		&naturalnessStage{scorer: o.scorer},
		&similarityStage{scorer: o.scorer, originalKey: job.OriginalKey},
	}
}

// fail publishes the failure and reports a FAILED result. audioKey is whatever
// audio exists at the point of failure.
func (o *Orchestrator) fail(ctx context.Context, logger *log.Entry, job Job, task *Task, kind StageKind, audioKey string) {
	logger = logger.WithField("stage", kind.String())

	var synthErr *models.SynthesisError
	var uploadErr *models.UploadError
	var evalErr *models.EvaluationError
	switch {
	case errors.As(task.Err, &synthErr), errors.As(task.Err, &uploadErr):
		logger.Errorf("%s stage failed (synthesis): %v", kind, task.Err)
	case errors.As(task.Err, &evalErr):
		logger.Errorf("%s stage failed (evaluation): %v", kind, task.Err)
	default:
		logger.Errorf("%s stage failed: %v", kind, task.Err)
	}

	o.publish(ctx, task, task.Err.Error())
	o.reporter.Deliver(ctx, o.buildResult(job, audioKey, 0, 0, 0, models.ResultStatusFailed))
}

func (o *Orchestrator) publish(ctx context.Context, task *Task, errMsg string) {
	o.publisher.Publish(ctx, progress.NewEvent(task.Name, task.Progress, errMsg))
}

func (o *Orchestrator) buildResult(job Job, audioKey string, mosScore, scScore, inferenceTime float64, status string) models.PipelineResult {
	req := job.Request
	return models.PipelineResult{
		TotalProjectID:           req.TotalProjectID,
		InputOriginalKey:         o.publicURL(job.OriginalKey),
		ResultTranslationTextKey: o.publicURL(req.TranslatedTextKey),
		OutputVoiceKey:           o.publicURL(audioKey),
		MOSScore:                 mosScore,
		SCScore:                  scScore,
		TtsAPIType:               req.TtsAPIType,
		InferenceTime:            inferenceTime,
		Status:                   status,
		TaskName:                 job.TaskName,
		Stability:                req.Stability,
		SimilarityBoost:          req.SimilarityBoost,
		Style:                    req.Style,
		UseSpeakerBoost:          req.UseSpeakerBoost,
		VoiceID:                  req.VoiceID,
	}
}

func (o *Orchestrator) publicURL(key string) string {
	if key == "" {
		return ""
	}
	return o.artifacts.PublicURL(key)
}

// runStage turns a panicking stage into an ordinary stage failure.
func runStage(ctx context.Context, stage Stage, audioKey string) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s stage panicked: %v", stage.Kind(), r)
		}
	}()
	return stage.Run(ctx, audioKey)
}
