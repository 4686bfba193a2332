package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"voiceeval/internal/models"
)

const defaultElevenLabsModel = "eleven_multilingual_v2"

// ElevenLabsOptions configures the ElevenLabs text-to-speech client.
type ElevenLabsOptions struct {
	APIKey        string
	URL           string            // text-to-speech endpoint; the voice ID is appended as a path segment
	ModelID       string
	Voices        map[string]string // alias -> provider voice ID
	Timeout       time.Duration
	RatePerSecond float64 // 0 disables rate limiting
	Burst         int
}

// ElevenLabsProvider implements SynthesisProvider against the ElevenLabs REST API.
type ElevenLabsProvider struct {
	httpClient *http.Client
	opts       ElevenLabsOptions
	voices     map[string]string
	limiter    *rate.Limiter
}

var _ SynthesisProvider = (*ElevenLabsProvider)(nil)

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

func NewElevenLabsProvider(opts ElevenLabsOptions) *ElevenLabsProvider {
	if opts.APIKey == "" {
		log.Warn("ElevenLabs API key not provided. Synthesis requests will be rejected by the provider.")
	}
	if opts.ModelID == "" {
		opts.ModelID = defaultElevenLabsModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	// Config keys arrive lowercased from viper, so aliases match case-insensitively.
	voices := make(map[string]string, len(opts.Voices))
	for alias, id := range opts.Voices {
		voices[strings.ToLower(alias)] = id
	}

	return &ElevenLabsProvider{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		voices:     voices,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

func (p *ElevenLabsProvider) Name() models.TtsType { return models.TtsTypeElevenLabs }

// ResolveVoice maps a configured alias to its provider voice ID; unknown values are
// treated as raw voice IDs.
func (p *ElevenLabsProvider) ResolveVoice(voice string) string {
	if id, ok := p.voices[strings.ToLower(voice)]; ok && id != "" {
		return id
	}
	return voice
}

// Synthesize calls the provider and returns WAV audio.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, voice models.VoiceSettings) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &models.SynthesisError{Message: fmt.Sprintf("ElevenLabs API error: %v", err), Err: err}
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: p.opts.ModelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       voice.Stability,
			SimilarityBoost: voice.SimilarityBoost,
			Style:           voice.Style,
			UseSpeakerBoost: voice.UseSpeakerBoost,
			Speed:           1,
		},
	})
	if err != nil {
		return nil, &models.SynthesisError{Err: fmt.Errorf("encode ElevenLabs request: %w", err)}
	}

	url := strings.TrimRight(p.opts.URL, "/") + "/" + p.ResolveVoice(voice.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &models.SynthesisError{Err: fmt.Errorf("build ElevenLabs request: %w", err)}
	}
	req.Header.Set("xi-api-key", p.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Errorf("ElevenLabs API error: %v", err)
		return nil, &models.SynthesisError{Message: fmt.Sprintf("ElevenLabs API error: %v", err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		log.Errorf("Elevenlabs tts error: %d", resp.StatusCode)
		return nil, &models.SynthesisError{Message: fmt.Sprintf("Elevenlabs tts error: %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.SynthesisError{Message: fmt.Sprintf("ElevenLabs API error: read body: %v", err), Err: err}
	}

	wavData, err := NormalizeToWAV(raw)
	if err != nil {
		return nil, &models.SynthesisError{Message: fmt.Sprintf("ElevenLabs audio conversion failed: %v", err), Err: err}
	}
	return wavData, nil
}
