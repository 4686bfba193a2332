package models

import "fmt"

// TtsType selects the speech synthesis provider for a request.
type TtsType string

const (
	TtsTypeElevenLabs TtsType = "ELEVENLABS"
)

// ParseTtsType validates a provider name received at intake.
func ParseTtsType(s string) (TtsType, error) {
	switch TtsType(s) {
	case TtsTypeElevenLabs:
		return TtsTypeElevenLabs, nil
	default:
		return "", fmt.Errorf("%w: unsupported tts_api_type %q", ErrValidation, s)
	}
}

// VoiceSettings are the provider knobs forwarded to synthesis and echoed in results.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	VoiceID         string  `json:"voice_id"`
}

// PipelineRequest is the immutable input bundle built at intake.
type PipelineRequest struct {
	TranslatedText    string  `json:"translated_text"`
	TranslatedTextKey string  `json:"translated_text_key"`
	TtsAPIType        TtsType `json:"tts_api_type"`
	TotalProjectID    int64   `json:"total_project_id"`
	VoiceSettings
}

// PipelineResult is the terminal report sent downstream, exactly once per task.
type PipelineResult struct {
	TotalProjectID           int64   `json:"total_project_id"`
	InputOriginalKey         string  `json:"input_original_key"`
	ResultTranslationTextKey string  `json:"result_translation_text_key"`
	OutputVoiceKey           string  `json:"output_voice_key"`
	MOSScore                 float64 `json:"mos_score"`
	SCScore                  float64 `json:"sc_score"`
	TtsAPIType               TtsType `json:"tts_api_type"`
	InferenceTime            float64 `json:"inference_time"`
	Status                   string  `json:"status"`
	TaskName                 string  `json:"task_name"`
	Stability                float64 `json:"stability"`
	SimilarityBoost          float64 `json:"similarity_boost"`
	Style                    float64 `json:"style"`
	UseSpeakerBoost          bool    `json:"use_speaker_boost"`
	VoiceID                  string  `json:"voice_id"`
}

// SubmitResponse acknowledges an accepted task before the pipeline starts.
type SubmitResponse struct {
	TaskName string `json:"task_name"`
	Status   string `json:"status"`
}
