package apihandlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"voiceeval/internal/app"
	"voiceeval/internal/models"
	"voiceeval/internal/pipeline"
	"voiceeval/internal/store"
	"voiceeval/internal/tasks"
	"voiceeval/internal/util"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// SubmitForm holds the non-file fields of a naturalness submission. Pointers
// distinguish a missing field from a zero value.
type SubmitForm struct {
	TotalProjectID  *int64   `form:"total_project_id" binding:"required"`
	TtsAPIType      string   `form:"tts_api_type" binding:"required"`
	Stability       *float64 `form:"stability" binding:"required"`
	SimilarityBoost *float64 `form:"similarity_boost" binding:"required"`
	Style           *float64 `form:"style" binding:"required"`
	UseSpeakerBoost *bool    `form:"use_speaker_boost" binding:"required"`
	VoiceID         string   `form:"voice_id" binding:"required"`
}

// SubmitNaturalnessHandler accepts a translated text, the original speaker's voice and
// optionally an already translated voice, stores them and queues a pipeline run.
// It answers as soon as the run is queued.
func (h *APIHandler) SubmitNaturalnessHandler(c *gin.Context) {
	var form SubmitForm
	if err := c.ShouldBind(&form); err != nil {
		BadRequest(c, "Invalid form fields: "+err.Error())
		return
	}
	ttsType, err := models.ParseTtsType(strings.ToUpper(strings.TrimSpace(form.TtsAPIType)))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	textFile, err := c.FormFile("translated_text")
	if err != nil {
		BadRequest(c, "translated_text file is required")
		return
	}
	originalFile, err := c.FormFile("original_voice")
	if err != nil {
		BadRequest(c, "original_voice file is required")
		return
	}
	translatedFile, err := c.FormFile("translated_voice")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		BadRequest(c, "Invalid translated_voice file: "+err.Error())
		return
	}

	text, err := readFormFile(textFile)
	if err != nil {
		BadRequest(c, "Failed to read translated_text: "+err.Error())
		return
	}
	transcript, err := util.CleanTranscript(text, "translated_text")
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	taskName := pipeline.NewTaskName()
	logger := log.WithField("task_name", taskName)
	ctx := c.Request.Context()

	textKey := pipeline.ArtifactKey(taskName, uploadName(textFile, "translated_text.txt"))
	if err := h.App.Artifacts.Put(ctx, textKey, text, "text/plain; charset=utf-8"); err != nil {
		Internal(c, fmt.Sprintf("failed to upload translated_text: %v", err))
		return
	}
	originalKey, err := h.upload(c, taskName, originalFile, "original_voice.wav")
	if err != nil {
		Internal(c, fmt.Sprintf("failed to upload original_voice: %v", err))
		return
	}
	var translatedKey string
	if translatedFile != nil {
		if translatedKey, err = h.upload(c, taskName, translatedFile, "translated_voice.wav"); err != nil {
			Internal(c, fmt.Sprintf("failed to upload translated_voice: %v", err))
			return
		}
	}

	payload := tasks.RunPayload{
		TaskName: taskName,
		Request: models.PipelineRequest{
			TranslatedText:    transcript,
			TranslatedTextKey: textKey,
			TtsAPIType:        ttsType,
			TotalProjectID:    *form.TotalProjectID,
			VoiceSettings: models.VoiceSettings{
				Stability:       *form.Stability,
				SimilarityBoost: *form.SimilarityBoost,
				Style:           *form.Style,
				UseSpeakerBoost: *form.UseSpeakerBoost,
				VoiceID:         form.VoiceID,
			},
		},
		OriginalKey:   originalKey,
		TranslatedKey: translatedKey,
	}
	if err := h.App.JobClient.EnqueueNaturalnessRun(ctx, payload); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			Conflict(c, err.Error())
			return
		}
		Internal(c, fmt.Sprintf("failed to queue task: %v", err))
		return
	}

	logger.WithFields(log.Fields{
		"total_project_id": payload.Request.TotalProjectID,
		"tts_api_type":     ttsType,
		"presupplied":      translatedKey != "",
	}).Info("TTS naturalness task queued")

	c.JSON(http.StatusOK, models.SubmitResponse{TaskName: taskName, Status: models.SubmitStatusProcessing})
}

// HealthHandler reports liveness and the number of connected progress subscribers.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"subscribers": h.App.Broadcaster.Len(),
	})
}

func (h *APIHandler) upload(c *gin.Context, taskName string, fh *multipart.FileHeader, fallback string) (string, error) {
	body, err := readFormFile(fh)
	if err != nil {
		return "", err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := pipeline.ArtifactKey(taskName, uploadName(fh, fallback))
	if err := h.App.Artifacts.Put(c.Request.Context(), key, body, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// uploadName keeps only the base name of a client supplied filename.
func uploadName(fh *multipart.FileHeader, fallback string) string {
	name := path.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return fallback
	}
	return name
}
