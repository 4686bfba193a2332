package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFrom_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: local
  local_dir: /tmp/artifacts
scoring:
  url: http://scorer:9000
synthesis:
  elevenlabs:
    voices:
      Aria: voice-aria
`)

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/artifacts", cfg.Storage.LocalDir)
	assert.Equal(t, "http://scorer:9000", cfg.Scoring.URL)
	// viper lowercases map keys
	assert.Equal(t, "voice-aria", cfg.Synthesis.ElevenLabs.Voices["aria"])

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "us-east-1", cfg.Storage.DefaultRegion)
	assert.Equal(t, "eleven_multilingual_v2", cfg.Synthesis.ElevenLabs.ModelID)
	assert.Equal(t, 5*time.Second, cfg.Reporter.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Progress.WriteTimeout)
	assert.Equal(t, map[string]int{"naturalness": 1}, cfg.Worker.Queues)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFrom_EnvBindings(t *testing.T) {
	path := writeConfig(t, "scoring:\n  url: http://scorer\n")
	t.Setenv("ELEVENLABS_API_KEY", "xi-secret")
	t.Setenv("S3_BUCKET", "voices-bucket")
	t.Setenv("TTS_NATURALNESS_BE_URL", "http://backend:8080")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "xi-secret", cfg.Synthesis.ElevenLabs.APIKey)
	assert.Equal(t, "voices-bucket", cfg.Storage.Bucket)
	assert.Equal(t, "http://backend:8080", cfg.Reporter.URL)
}

func TestLoadConfigFrom_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
