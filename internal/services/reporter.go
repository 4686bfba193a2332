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

	"voiceeval/internal/models"
)

// ResultPath is where the downstream backend ingests naturalness results.
const ResultPath = "/api/tts-naturalness"

// HTTPReporter posts results to the downstream backend.
type HTTPReporter struct {
	url        string
	httpClient *http.Client
}

var _ Reporter = (*HTTPReporter)(nil)

func NewHTTPReporter(baseURL string, timeout time.Duration) *HTTPReporter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPReporter{
		url:        strings.TrimRight(baseURL, "/") + ResultPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Deliver makes a single attempt. Errors are logged and swallowed.
func (r *HTTPReporter) Deliver(ctx context.Context, result models.PipelineResult) {
	logger := log.WithField("task_name", result.TaskName)
	if err := r.post(ctx, result); err != nil {
		logger.Infof("Failed to send result to backend: %v", err)
		return
	}
	logger.Infof("Result delivered (status=%s)", result.Status)
}

func (r *HTTPReporter) post(ctx context.Context, result models.PipelineResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return nil
}

// LogReporter only logs results. Used when no downstream URL is configured.
type LogReporter struct{}

var _ Reporter = LogReporter{}

func (LogReporter) Deliver(_ context.Context, result models.PipelineResult) {
	log.WithFields(log.Fields{
		"task_name": result.TaskName,
		"status":    result.Status,
		"mos_score": result.MOSScore,
		"sc_score":  result.SCScore,
	}).Info("No reporter URL configured; result not delivered")
}
