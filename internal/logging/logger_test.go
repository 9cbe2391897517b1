package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "scheduling-api", "prod", "debug")

	logger.Info().Str("slot", "09:00").Msg("booked")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scheduling-api", line["service"])
	assert.Equal(t, "09:00", line["slot"])
	assert.Equal(t, "booked", line["message"])
	assert.Contains(t, line, "caller")
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "svc", "prod", "chatty")

	logger.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestFromContext_UsesAttachedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "svc", "prod", "info")
	ctx := logger.WithContext(context.Background())

	FromContext(ctx).Info().Msg("from ctx")
	assert.Contains(t, buf.String(), "from ctx")
}
