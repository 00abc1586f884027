package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithOrderID(ctx, "order-1")

	log.Error(ctx, "boom", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"order_id":"order-1"`)
	assert.Contains(t, out, `"stack"`)
	assert.Contains(t, out, `"service":"test"`)
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})
	quiet.Warn(context.Background(), "warny")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLoggerWithFieldsDoesNotLeakIntoParent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	parent := context.Background()
	child := log.WithFields(parent, map[string]any{"delivery_id": "d-1"})

	log.Info(parent, "parent")
	log.Info(child, "child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "delivery_id")
	assert.Contains(t, lines[1], `"delivery_id":"d-1"`)
}

func TestLoggerStackStartsAtCaller(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	log.Error(context.Background(), "fulfill.failed", errors.New("partition rolled back"))

	var line struct {
		Stack []string `json:"stack"`
		Error string   `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.NotEmpty(t, line.Stack)
	assert.Contains(t, line.Stack[0], "TestLoggerStackStartsAtCaller")
	assert.Equal(t, "partition rolled back", line.Error)
}

func TestLoggerConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Format: " Console ", Output: buf})
	log.Info(log.WithOrderID(context.Background(), "order-9"), "order.created")

	out := buf.String()
	assert.Contains(t, out, "order.created")
	assert.Contains(t, out, "order-9")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console output is not json")
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}
