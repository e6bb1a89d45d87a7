package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/abgdnv/gopos/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_AddsRequestAndSessionIDs(t *testing.T) {
	// given
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))
	ctx := web.WithRequestID(context.Background(), "req-1")
	ctx = web.WithSessionID(ctx, "sess-1")

	// when
	log.InfoContext(ctx, "hello")

	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "sess-1", record["session_id"])
	assert.NotContains(t, record, "trace_id")
}

func TestContextHandler_WithoutContextValues(t *testing.T) {
	// given
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("component", "test")

	// when
	log.InfoContext(context.Background(), "plain")

	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "test", record["component"])
	assert.NotContains(t, record, "request_id")
	assert.NotContains(t, record, "session_id")
}
