package apihandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hibiken/asynq"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceeval/internal/app"
	"voiceeval/internal/config"
	"voiceeval/internal/models"
	"voiceeval/internal/progress"
	"voiceeval/internal/store"
	"voiceeval/internal/store/artifact"
	"voiceeval/internal/tasks"
)

type fakeJobClient struct {
	mu       sync.Mutex
	payloads []tasks.RunPayload
	err      error
}

func (f *fakeJobClient) Enqueue(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

func (f *fakeJobClient) EnqueueNaturalnessRun(_ context.Context, p tasks.RunPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func (f *fakeJobClient) Close() error { return nil }

type testEnv struct {
	router *gin.Engine
	jobs   *fakeJobClient
	fs     afero.Fs
	app    *app.App
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}

	fs := afero.NewMemMapFs()
	jobs := &fakeJobClient{}
	a := &app.App{
		Config:      cfg,
		Artifacts:   artifact.NewLocalStore(fs, "https://cdn.example.com"),
		JobClient:   jobs,
		Broadcaster: progress.NewBroadcaster(progress.WithWriteTimeout(time.Second)),
	}
	t.Cleanup(a.Broadcaster.Close)

	router := gin.New()
	RegisterRoutes(router, NewAPIHandler(a))
	return &testEnv{router: router, jobs: jobs, fs: fs, app: a}
}

type part struct {
	field, filename string
	content         []byte
}

func multipartBody(t *testing.T, fields map[string]string, files []part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{
		"total_project_id":  "42",
		"tts_api_type":      "ELEVENLABS",
		"stability":         "0.5",
		"similarity_boost":  "0.75",
		"style":             "0",
		"use_speaker_boost": "true",
		"voice_id":          "rachel",
	}
}

func validFiles() []part {
	return []part{
		{field: "translated_text", filename: "script.txt", content: []byte("Bonjour à tous")},
		{field: "original_voice", filename: "speaker.wav", content: []byte("RIFF-original")},
	}
}

func (e *testEnv) submit(t *testing.T, fields map[string]string, files []part) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/agent/tts-naturalness", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitNaturalness_QueuesTask(t *testing.T) {
	env := newTestEnv(t)

	rec := env.submit(t, validFields(), validFiles())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.SubmitStatusProcessing, resp.Status)
	assert.True(t, strings.HasPrefix(resp.TaskName, "tts_naturalness_"))

	require.Len(t, env.jobs.payloads, 1)
	p := env.jobs.payloads[0]
	assert.Equal(t, resp.TaskName, p.TaskName)
	assert.Equal(t, "tts_naturalness/"+resp.TaskName+"/speaker.wav", p.OriginalKey)
	assert.Equal(t, "tts_naturalness/"+resp.TaskName+"/script.txt", p.Request.TranslatedTextKey)
	assert.Empty(t, p.TranslatedKey)
	assert.Equal(t, "Bonjour à tous", p.Request.TranslatedText)
	assert.Equal(t, models.TtsTypeElevenLabs, p.Request.TtsAPIType)
	assert.Equal(t, int64(42), p.Request.TotalProjectID)
	assert.Equal(t, 0.75, p.Request.SimilarityBoost)
	assert.True(t, p.Request.UseSpeakerBoost)
	assert.Equal(t, "rachel", p.Request.VoiceID)

	stored, err := afero.ReadFile(env.fs, "/"+p.OriginalKey)
	require.NoError(t, err)
	assert.Equal(t, "RIFF-original", string(stored))
}

func TestSubmitNaturalness_WithTranslatedVoice(t *testing.T) {
	env := newTestEnv(t)
	files := append(validFiles(), part{field: "translated_voice", filename: "dub.wav", content: []byte("RIFF-dub")})

	rec := env.submit(t, validFields(), files)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, env.jobs.payloads, 1)
	p := env.jobs.payloads[0]
	assert.Equal(t, "tts_naturalness/"+p.TaskName+"/dub.wav", p.TranslatedKey)
}

func TestSubmitNaturalness_ValidationErrors(t *testing.T) {
	missingField := validFields()
	delete(missingField, "stability")

	badType := validFields()
	badType["tts_api_type"] = "POLLY"

	tests := []struct {
		name   string
		fields map[string]string
		files  []part
	}{
		{name: "missing form field", fields: missingField, files: validFiles()},
		{name: "unsupported provider", fields: badType, files: validFiles()},
		{name: "missing original voice", fields: validFields(), files: validFiles()[:1]},
		{name: "missing translated text", fields: validFields(), files: validFiles()[1:]},
		{
			name:   "text not utf-8",
			fields: validFields(),
			files: []part{
				{field: "translated_text", filename: "t.txt", content: []byte{0xff, 0xfe, 0xfd}},
				{field: "original_voice", filename: "o.wav", content: []byte("RIFF")},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.submit(t, tc.fields, tc.files)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"code":"bad_request"`)
			assert.Empty(t, env.jobs.payloads)
		})
	}
}

func TestSubmitNaturalness_EnqueueFailure(t *testing.T) {
	env := newTestEnv(t)
	env.jobs.err = errors.New("redis down")

	rec := env.submit(t, validFields(), validFiles())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis down")
}

func TestSubmitNaturalness_DuplicateTask(t *testing.T) {
	env := newTestEnv(t)
	env.jobs.err = store.ErrDuplicate

	rec := env.submit(t, validFields(), validFiles())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","subscribers":0}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/agent/tts-naturalness", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProgressWebSocket_ReceivesEvents(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.app.Broadcaster.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.app.Broadcaster.Publish(context.Background(), progress.NewEvent("tts_naturalness_ws", 33, ""))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev progress.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "tts_naturalness_ws", ev.TaskName)
	assert.Equal(t, 33, ev.Progress)
	assert.Equal(t, models.TaskStatusRunning, ev.Status)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.app.Broadcaster.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestProgressWebSocket_RejectsUnknownOrigin(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
