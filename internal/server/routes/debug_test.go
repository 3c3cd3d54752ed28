package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pridiuksson/ninegrid/internal/debugbus"
)

func TestDebugLogsListAndClear(t *testing.T) {
	e, bus := newTestServer(t, &fakeStore{})
	bus.Info("upload started", map[string]any{"slot": 1})
	bus.Error("upload failed", nil)

	rec := doRequest(e, httptest.NewRequest(http.MethodGet, "/api/debug/logs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []debugbus.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "upload failed" {
		t.Fatalf("expected newest entry first, got %q", entries[0].Message)
	}

	if rec := doRequest(e, httptest.NewRequest(http.MethodDelete, "/api/debug/logs", nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for clear, got %d", rec.Code)
	}
	if entries := bus.Entries(); len(entries) != 0 {
		t.Fatalf("expected bus cleared, got %d entries", len(entries))
	}
}

func TestDebugLogsExportDisposition(t *testing.T) {
	e, bus := newTestServer(t, &fakeStore{})
	bus.Warning("slow listing", nil)

	rec := doRequest(e, httptest.NewRequest(http.MethodGet, "/api/debug/logs/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "debug-logs-") || !strings.Contains(disposition, ".json") {
		t.Fatalf("expected timestamped filename in %q", disposition)
	}

	var entries []debugbus.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != debugbus.LevelWarning {
		t.Fatalf("unexpected export %v", entries)
	}
}
