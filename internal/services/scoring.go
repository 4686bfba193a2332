package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"voiceeval/internal/models"
	"voiceeval/internal/store"
)

// HTTPScorer calls the model-inference service that hosts the MOS and
// speaker-verification models. Audio is fetched from the artifact store and
// uploaded with each request.
type HTTPScorer struct {
	baseURL    string
	httpClient *http.Client
	artifacts  store.ArtifactStore
}

var _ Scorer = (*HTTPScorer)(nil)

type scoreResponse struct {
	Score *float64 `json:"score"`
}

func NewHTTPScorer(baseURL string, timeout time.Duration, artifacts store.ArtifactStore) *HTTPScorer {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPScorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		artifacts:  artifacts,
	}
}

// ScoreNaturalness predicts a MOS-style naturalness rating for the audio at audioKey.
func (s *HTTPScorer) ScoreNaturalness(ctx context.Context, audioKey string) (float64, error) {
	files, err := s.fetch(ctx, map[string]string{"audio": audioKey})
	if err != nil {
		return 0, err
	}
	score, err := s.post(ctx, "/v1/naturalness", files)
	if err != nil {
		log.Errorf("MOS evaluation error: %v", err)
		return 0, err
	}
	return score, nil
}

// ScoreSimilarity rates how close the speaker in audioKey is to the one in originalKey.
func (s *HTTPScorer) ScoreSimilarity(ctx context.Context, originalKey, audioKey string) (float64, error) {
	files, err := s.fetch(ctx, map[string]string{"reference": originalKey, "audio": audioKey})
	if err != nil {
		return 0, err
	}
	score, err := s.post(ctx, "/v1/similarity", files)
	if err != nil {
		log.Errorf("SC evaluation error: %v", err)
		return 0, err
	}
	return score, nil
}

type formFile struct {
	field string
	name  string
	data  []byte
}

func (s *HTTPScorer) fetch(ctx context.Context, keys map[string]string) ([]formFile, error) {
	// Fixed field order keeps request bodies deterministic.
	fields := []string{"reference", "audio"}
	var out []formFile
	for _, field := range fields {
		key, ok := keys[field]
		if !ok {
			continue
		}
		if key == "" {
			return nil, &models.EvaluationError{Message: fmt.Sprintf("no %s audio to evaluate", field)}
		}
		data, err := s.artifacts.Get(ctx, key)
		if err != nil {
			return nil, &models.EvaluationError{Message: fmt.Sprintf("download %s: %v", key, err), Err: err}
		}
		out = append(out, formFile{field: field, name: path.Base(key), data: data})
	}
	return out, nil
}

func (s *HTTPScorer) post(ctx context.Context, endpoint string, files []formFile) (float64, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			return 0, &models.EvaluationError{Err: fmt.Errorf("build form: %w", err)}
		}
		if _, err := part.Write(f.data); err != nil {
			return 0, &models.EvaluationError{Err: fmt.Errorf("build form: %w", err)}
		}
	}
	if err := mw.Close(); err != nil {
		return 0, &models.EvaluationError{Err: fmt.Errorf("build form: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, &body)
	if err != nil {
		return 0, &models.EvaluationError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, &models.EvaluationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, &models.EvaluationError{Message: fmt.Sprintf("scoring service %s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))}
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, &models.EvaluationError{Err: fmt.Errorf("decode %s response: %w", endpoint, err)}
	}
	if out.Score == nil {
		return 0, &models.EvaluationError{Message: fmt.Sprintf("scoring service %s returned no score", endpoint)}
	}
	return *out.Score, nil
}
