package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		entry := map[string]any{}
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestStartSpanNestsUnderParent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := WithLogger(context.Background(), logger)

	ctx, parent := StartSpan(ctx, "parent")
	traceID := TraceIDFromContext(ctx)
	parentID := SpanIDFromContext(ctx)
	if traceID == "" || parentID == "" {
		t.Fatal("expected trace and span identifiers on context")
	}

	childCtx, child := StartSpan(ctx, "child", slog.String("video_id", "v1"))
	if TraceIDFromContext(childCtx) != traceID {
		t.Fatal("child span should share the parent trace")
	}
	child.End()
	parent.End()

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries got %d", len(entries))
	}
	if entries[0]["parent_span_id"] != parentID {
		t.Fatalf("expected parent span id %q got %v", parentID, entries[0]["parent_span_id"])
	}
	if entries[0]["video_id"] != "v1" {
		t.Fatalf("expected span attribute to be logged, got %v", entries[0])
	}
}

func TestSpanFailLogsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	_, span := StartSpan(ctx, "consume")
	span.Fail(errors.New("boom"))
	span.End()

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected one entry got %d", len(entries))
	}
	if entries[0]["level"] != "WARN" || entries[0]["error"] != "boom" {
		t.Fatalf("unexpected failure entry: %v", entries[0])
	}
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *Span
	span.Fail(errors.New("ignored"))
	span.End()
	if span.Elapsed() != 0 {
		t.Fatal("nil span should report zero elapsed")
	}
}
