package progress

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, "failed", StatusFor(-1))
	for p := 0; p <= 99; p++ {
		assert.Equal(t, "running", StatusFor(p), "progress %d", p)
	}
	assert.Equal(t, "completed", StatusFor(100))
}

func TestEventJSON(t *testing.T) {
	b, err := json.Marshal(NewEvent("tts_naturalness_abc", 33, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_name":"tts_naturalness_abc","progress":33,"status":"running"}`, string(b))

	b, err = json.Marshal(NewEvent("tts_naturalness_abc", -1, "timeout"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_name":"tts_naturalness_abc","progress":-1,"status":"failed","error":"timeout"}`, string(b))
}
