package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, logrus.InfoLevel, ParseLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("chatty"))
}

func TestWithLevelSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithOutput(&buf, "info", false)

	base.Debug("hidden")
	assert.Empty(t, buf.String())

	verbose := WithLevel(base, logrus.DebugLevel)
	verbose.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, logrus.InfoLevel, base.GetLevel())
	assert.Same(t, base, WithLevel(base, logrus.InfoLevel))
}

func TestForAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithOutput(&buf, "info", true)

	ctx := ContextWithID(context.Background(), "req-1")
	For(ctx, base).Info("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Equal(t, "req-1", IDFrom(ctx))
	assert.Equal(t, "", IDFrom(context.Background()))
}

func TestFromContextPrefersInvocationEntry(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithOutput(&buf, "info", true)
	verbose := WithLevel(base, logrus.DebugLevel).WithField("action", "stock-search")

	ctx := NewContext(context.Background(), verbose)
	FromContext(ctx, base).Debug("from invocation")
	assert.Contains(t, buf.String(), `"action":"stock-search"`)

	buf.Reset()
	FromContext(context.Background(), base).Debug("dropped")
	assert.Empty(t, buf.String())
}

func TestTrack(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithOutput(&buf, "debug", true)

	done := Track(logrus.NewEntry(base), "stock search")
	done()

	assert.Contains(t, buf.String(), "stock search completed")
	assert.Contains(t, buf.String(), `"duration"`)
	assert.Contains(t, buf.String(), `"level":"debug"`)
}
