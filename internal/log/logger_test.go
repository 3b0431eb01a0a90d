package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentWorker, Output: &buf})

	l.InfoContext(context.Background(), "hello", FieldOwner, "u1")
	l.WithComponent(ComponentSheets).Debug("exported")

	out := buf.String()
	if !strings.Contains(out, "component=worker") || !strings.Contains(out, "owner=u1") {
		t.Errorf("missing fields: %s", out)
	}
	if !strings.Contains(out, "component=sheets") {
		t.Errorf("component override missing: %s", out)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("dropped")
	l.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()).Component() != ComponentApp {
		t.Error("expected default component")
	}
	l := New(DefaultConfig()).WithComponent(ComponentHTTP)
	if FromContext(WithLogger(context.Background(), l)) != l {
		t.Error("expected logger from context")
	}
}

func TestStructuredLoggerHTTPLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, Output: &buf}))
	r := httptest.NewRequest("GET", "/api/tasks?x=1", nil)

	sl.LogHTTPEnd(context.Background(), r, "req-1", 404, 3)
	sl.LogHTTPEnd(context.Background(), r, "req-2", 500, 3)
	sl.LogError(context.Background(), "boom", errors.New("disk full"), ComponentStorage, OpUpdate, NewFields().WithOwner("u1"))

	out := buf.String()
	for _, want := range []string{"level=WARN", "level=ERROR", "request_id=req-1", "status_code=500", `error="disk full"`, "owner=u1", "component=storage"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	got := NewFields().WithOwner("u1").WithOperation(OpSync).WithComponent(ComponentTasks).ToSlice()
	want := []any{FieldComponent, ComponentTasks, FieldOperation, OpSync, FieldOwner, "u1"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}
