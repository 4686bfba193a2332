package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceeval/internal/app"
)

func TestNeedsApp(t *testing.T) {
	assert.False(t, needsApp(rootCmd))
	assert.False(t, needsApp(watchCmd))
	assert.True(t, needsApp(serveCmd))
	assert.True(t, needsApp(workerCmd))
	assert.True(t, needsApp(doctorCmd))
	assert.True(t, needsApp(voicesCmd))
}

func TestGetAppFromContext(t *testing.T) {
	_, err := GetAppFromContext(context.Background())
	require.Error(t, err)

	want := &app.App{}
	got, err := GetAppFromContext(context.WithValue(context.Background(), appKey, want))
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "worker", "doctor", "watch", "voices"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
