package services

import (
	"context"

	"voiceeval/internal/models"
)

// SynthesisProvider turns text into speech. Implementations always return WAV audio.
type SynthesisProvider interface {
	Name() models.TtsType
	Synthesize(ctx context.Context, text string, voice models.VoiceSettings) ([]byte, error)
}

// Scorer computes naturalness and speaker-similarity scores for stored audio artifacts.
type Scorer interface {
	ScoreNaturalness(ctx context.Context, audioKey string) (float64, error)
	ScoreSimilarity(ctx context.Context, originalKey, audioKey string) (float64, error)
}

// Reporter delivers the terminal result of a task downstream. Delivery is
// fire-and-forget: failures are logged by the implementation and never returned.
type Reporter interface {
	Deliver(ctx context.Context, result models.PipelineResult)
}
