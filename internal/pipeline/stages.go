package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"voiceeval/internal/models"
	"voiceeval/internal/services"
	"voiceeval/internal/store"
)

// StageKind enumerates the fixed pipeline stages in execution order.
type StageKind int

const (
	StageSynthesis StageKind = iota
	StageNaturalness
	StageSimilarity
)

func (k StageKind) String() string {
	switch k {
	case StageSynthesis:
		return "TTS API"
	case StageNaturalness:
		return "MOS"
	case StageSimilarity:
		return "SC"
	default:
		return fmt.Sprintf("stage(%d)", int(k))
	}
}

// Outcome is what a stage hands to the next one: the audio key to evaluate, and
// for scoring stages the score they produced.
type Outcome struct {
	AudioKey string
	Score    float64
}

// Stage is one step of the pipeline. Run receives the current audio key.
type Stage interface {
	Kind() StageKind
	Run(ctx context.Context, audioKey string) (Outcome, error)
}

// TaskNamePrefix starts every task name and every artifact key.
const TaskNamePrefix = "tts_naturalness"

// NewTaskName returns a fresh, unique task name.
func NewTaskName() string {
	return TaskNamePrefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ArtifactKey is the storage key of a file belonging to a task.
func ArtifactKey(taskName, filename string) string {
	return fmt.Sprintf("%s/%s/%s", TaskNamePrefix, taskName, filename)
}

// SynthesizedKey is the artifact key of the audio synthesized for a task.
func SynthesizedKey(taskName string) string {
	return ArtifactKey(taskName, "translated_video_"+taskName+".wav")
}

type synthesisStage struct {
	taskName  string
	request   models.PipelineRequest
	providers map[models.TtsType]services.SynthesisProvider
	artifacts store.ArtifactStore
}

func (s *synthesisStage) Kind() StageKind { return StageSynthesis }

// Run passes an already uploaded translation through; otherwise it synthesizes
// the translated text and stores the result.
func (s *synthesisStage) Run(ctx context.Context, audioKey string) (Outcome, error) {
	if audioKey != "" {
		return Outcome{AudioKey: audioKey}, nil
	}

	provider, ok := s.providers[s.request.TtsAPIType]
	if !ok {
		return Outcome{}, &models.SynthesisError{Message: fmt.Sprintf("no synthesis provider configured for %q", s.request.TtsAPIType)}
	}

	audio, err := provider.Synthesize(ctx, s.request.TranslatedText, s.request.VoiceSettings)
	if err != nil {
		return Outcome{}, err
	}

	key := SynthesizedKey(s.taskName)
	if err := s.artifacts.Put(ctx, key, audio, "audio/wav"); err != nil {
		return Outcome{}, err
	}
	return Outcome{AudioKey: key}, nil
}

type naturalnessStage struct {
	scorer services.Scorer
}

func (s *naturalnessStage) Kind() StageKind { return StageNaturalness }

func (s *naturalnessStage) Run(ctx context.Context, audioKey string) (Outcome, error) {
	score, err := s.scorer.ScoreNaturalness(ctx, audioKey)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{AudioKey: audioKey, Score: score}, nil
}

type similarityStage struct {
	scorer      services.Scorer
	originalKey string
}

func (s *similarityStage) Kind() StageKind { return StageSimilarity }

func (s *similarityStage) Run(ctx context.Context, audioKey string) (Outcome, error) {
	score, err := s.scorer.ScoreSimilarity(ctx, s.originalKey, audioKey)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{AudioKey: audioKey, Score: score}, nil
}
