package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestTeeHandlerCollapses(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)

	if _, ok := TeeHandler(nil, nil).(NoopHandler); !ok {
		t.Error("expected NoopHandler when every handler is nil")
	}
	if TeeHandler(nil, inner, nil) != inner {
		t.Error("expected the single non-nil handler to be returned unwrapped")
	}
}

func TestTeeHandlerRoutesByLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(TeeHandler(info, debug))

	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected tee to accept debug when one handler does")
	}

	logger.Debug("tap detail")
	if infoBuf.Len() != 0 {
		t.Error("info handler should not receive debug records")
	}
	if debugBuf.Len() == 0 {
		t.Error("debug handler should receive debug records")
	}

	logger.Info("source added", slog.String("source_key", "local-audio"))
	for name, buf := range map[string]*bytes.Buffer{"info": &infoBuf, "debug": &debugBuf} {
		if !bytes.Contains(buf.Bytes(), []byte(`"source_key":"local-audio"`)) {
			t.Errorf("%s handler missing attribute: %s", name, buf.String())
		}
	}
}

func TestTeeHandlerWithAttrsAndGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := TeeHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	slog.New(h).With("component", "hub").WithGroup("fetch").Info("served", slog.Int("events", 3))

	for _, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"component":"hub"`)) {
			t.Errorf("missing component attr: %s", buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"fetch":{"events":3}`)) {
			t.Errorf("missing grouped attr: %s", buf.String())
		}
	}
}
