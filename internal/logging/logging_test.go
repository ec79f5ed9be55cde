package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter("prod", "api-server", &buf)

	logger.Info().Str("date", "2025-06-10").Msg("booked")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "api-server", entry["service"])
	assert.Equal(t, "2025-06-10", entry["date"])
	assert.Equal(t, "booked", entry["message"])
	assert.Contains(t, entry, "caller")
}

func TestNewWithWriter_ConsoleInDev(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter("dev", "seed", &buf)

	logger.Info().Msg("seed starting")

	assert.Contains(t, buf.String(), "seed starting")
	assert.False(t, json.Valid(buf.Bytes()))
}
