package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestWithCarriesTraceID(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := slog.Default()
	slog.SetDefault(New(buf, "debug", "json"))
	defer slog.SetDefault(prev)

	ctx := WithTrace(context.Background(), "run-1")
	With(ctx, "file_id", 7).Debug("extracted")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec["trace_id"] != "run-1" || rec["file_id"] != float64(7) || rec["msg"] != "extracted" {
		t.Fatalf("record=%v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("output=%q", buf.String())
	}
}
