package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestNewJSONWithRun(t *testing.T) {
	var buf bytes.Buffer
	logger, runID := WithRun(New("info", FormatJSON, &buf))
	_, err := uuid.Parse(runID)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Int("retained", 4).Msg("done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "done", entry["message"])
	assert.Equal(t, runID, entry["run_id"])
	assert.EqualValues(t, 4, entry["retained"])
	assert.Contains(t, entry, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", FormatConsole, &buf)
	l.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}
