package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, NoopHandler{}).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when no real handlers are supplied")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsChildLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	h := newFanoutHandler(
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled for debug")
	}
	logger := slog.New(h).With("job_id", "j1").WithGroup("chunk")
	logger.Debug("debug only", "index", 2)

	if infoBuf.Len() != 0 {
		t.Fatalf("info handler should drop debug records, got %q", infoBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "job_id=j1") || !strings.Contains(debugBuf.String(), "chunk.index=2") {
		t.Fatalf("expected attrs and groups to propagate, got %q", debugBuf.String())
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var buf bytes.Buffer
	logger := TeeLogger(nil, slog.NewTextHandler(&buf, nil))
	logger.Info("tee")
	if !strings.Contains(buf.String(), "tee") {
		t.Fatalf("expected output, got %q", buf.String())
	}
}
