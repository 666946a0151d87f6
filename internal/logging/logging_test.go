package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"gotest.tools/v3/assert"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var out map[string]any
	assert.NilError(t, json.Unmarshal([]byte(line), &out), "line: %s", line)
	return out
}

func TestJSONLoggerWritesFieldsAndRunID(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := ContextWithRunID(context.Background(), "run-1")
	l.With(String("scenario", "relay")).Info(ctx, "episode finished",
		Int("steps", 4), Bool("complete", true), Err(errors.New("boom")))

	got := decodeLine(t, &buf)
	assert.Equal(t, got["message"], "episode finished")
	assert.Equal(t, got["level"], "info")
	assert.Equal(t, got["run_id"], "run-1")
	assert.Equal(t, got["scenario"], "relay")
	assert.Equal(t, got["steps"], float64(4))
	assert.Equal(t, got["complete"], true)
	assert.Equal(t, got["error"], "boom")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json", Output: &buf})

	l.Info(context.Background(), "dropped")
	assert.Equal(t, buf.Len(), 0)

	l.Warn(context.Background(), "kept")
	assert.Equal(t, decodeLine(t, &buf)["message"], "kept")
}

func TestEnsureRunIDIsStable(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	assert.Assert(t, id != "")

	again, id2 := EnsureRunID(ctx)
	assert.Equal(t, id, id2)
	assert.Equal(t, RunIDFromContext(again), id)
	assert.Equal(t, RunIDFromContext(context.Background()), "")
}

func TestLoggerContextRoundTrip(t *testing.T) {
	assert.Assert(t, LoggerFromContext(context.Background()) == nil)

	ctx := ContextWithLogger(context.Background(), nil)
	l := LoggerFromContext(ctx)
	assert.Assert(t, l != nil)
	l.Error(ctx, "noop loggers swallow everything")
}
