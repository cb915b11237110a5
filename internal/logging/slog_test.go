package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// captureStdout swaps the console writer for a pipe until the returned
// function is called, which yields what was written.
func captureStdout(t *testing.T) func() string {
	t.Helper()

	r, w, err := osPipe()
	require.NoError(t, err)

	prev := osStdout
	osStdout = w

	return func() string {
		w.Close()
		osStdout = prev
		var buf bytes.Buffer
		buf.ReadFrom(r)
		r.Close()
		return buf.String()
	}
}

func TestSetup_Destination(t *testing.T) {
	t.Run("file only", func(t *testing.T) {
		done := captureStdout(t)

		var file bytes.Buffer
		m := NewSlogManager()
		m.Setup(&file, "info", nil)
		m.Logger().Info("to the file")

		assert.Empty(t, done())
		assert.Contains(t, file.String(), "to the file")
	})

	t.Run("console without file", func(t *testing.T) {
		done := captureStdout(t)

		m := NewSlogManager()
		m.Setup(nil, "info", nil)
		m.Logger().Info("to the console")

		assert.Contains(t, done(), "to the console")
	})
}

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, tt.level, nil)

			m.Logger().Debug("slot waited")
			m.Logger().Info("slot filled")

			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("slot waited")))
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("slot filled")))
		})
	}
}

func TestSetup_SecondCallReplacesOutput(t *testing.T) {
	var before, after bytes.Buffer
	m := NewSlogManager()

	m.Setup(&before, "info", nil)
	m.Logger().Info("first session")
	m.Setup(&after, "info", nil)
	m.Logger().Info("second session")

	assert.Contains(t, before.String(), "first session")
	assert.NotContains(t, before.String(), "second session")
	assert.Contains(t, after.String(), "second session")
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	assert.Equal(t, slog.Default(), NewSlogManager().Logger())
}

func TestFlush(t *testing.T) {
	m := NewSlogManager()
	assert.NoError(t, m.Flush(context.Background()), "no provider")

	var buf bytes.Buffer
	m.Setup(&buf, "info", sdklog.NewLoggerProvider())
	m.Logger().Info("bridged")
	assert.Contains(t, buf.String(), "bridged")
	assert.NoError(t, m.Flush(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"Info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLevel(input), input)
	}
}

func TestSetup_ExtraWritersReceiveJSON(t *testing.T) {
	var fileBuf, gelfBuf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&fileBuf, "info", nil, &gelfBuf, nil)

	m.Component("worker").Info("handoff loops started", "count", 3)

	assert.Contains(t, fileBuf.String(), "component=worker")
	assert.Contains(t, gelfBuf.String(), `"msg":"handoff loops started"`)
	assert.Contains(t, gelfBuf.String(), `"component":"worker"`)
	assert.Contains(t, gelfBuf.String(), `"count":3`)
}

func TestSetup_ContextProvider(t *testing.T) {
	var buf bytes.Buffer
	produced := 0
	m := NewSlogManager()
	m.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.Int("produced", produced)}
	})
	m.Setup(&buf, "info", nil)

	produced = 7
	m.Logger().Info("status")

	assert.Contains(t, buf.String(), "msg=status produced=7")
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("sink down")
}

func TestMultiHandler(t *testing.T) {
	t.Run("fans out and skips nil", func(t *testing.T) {
		var a, b bytes.Buffer
		multi := NewMultiHandler(nil, slog.NewTextHandler(&a, nil), nil, slog.NewTextHandler(&b, nil))
		require.Len(t, multi.handlers, 2)

		slog.New(multi).Info("both")
		assert.Contains(t, a.String(), "both")
		assert.Contains(t, b.String(), "both")
	})

	t.Run("enabled if any handler is", func(t *testing.T) {
		info := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
		debug := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})
		ctx := context.Background()

		assert.False(t, NewMultiHandler().Enabled(ctx, slog.LevelInfo))
		assert.False(t, NewMultiHandler(info).Enabled(ctx, slog.LevelDebug))
		assert.True(t, NewMultiHandler(info, debug).Enabled(ctx, slog.LevelDebug))
	})

	t.Run("attrs and groups", func(t *testing.T) {
		var buf bytes.Buffer
		multi := NewMultiHandler(slog.NewTextHandler(&buf, nil))
		assert.Equal(t, multi, multi.WithGroup(""))

		logger := slog.New(multi.WithAttrs([]slog.Attr{slog.String("component", "exchange")}).WithGroup("slot"))
		logger.Info("grouped", "state", "full")

		assert.Contains(t, buf.String(), "component=exchange")
		assert.Contains(t, buf.String(), "slot.state=full")
	})

	t.Run("failing sink does not starve the rest", func(t *testing.T) {
		var buf bytes.Buffer
		multi := NewMultiHandler(failingHandler{}, slog.NewTextHandler(&buf, nil))

		slog.New(multi).Info("still delivered")
		assert.Contains(t, buf.String(), "still delivered")

		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "direct", 0)
		assert.EqualError(t, multi.Handle(context.Background(), rec), "sink down")
	})
}

func TestContextHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, nil)
	h := NewContextHandler(inner, func() []slog.Attr { return []slog.Attr{slog.String("run", "a")} })

	assert.Same(t, h, h.WithGroup(""))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "exchange")}))
	logger.Info("tagged")

	out := buf.String()
	assert.Contains(t, out, "component=exchange")
	assert.Contains(t, out, "run=a")
}
