package debugbus

import (
	"testing"
	"time"
)

func TestPublishInsertsAtHead(t *testing.T) {
	bus := New(10)
	bus.Info("first", nil)
	bus.Warning("second", nil)
	bus.Error("third", nil)

	entries := bus.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "third" || entries[2].Message != "first" {
		t.Fatalf("expected newest-first ordering, got %q ... %q", entries[0].Message, entries[2].Message)
	}
	if entries[0].Type != LevelError {
		t.Fatalf("expected error level at head, got %q", entries[0].Type)
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Fatalf("expected unique non-empty ids")
	}
}

func TestBufferCapDropsOldest(t *testing.T) {
	bus := New(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		bus.Info(msg, nil)
	}

	entries := bus.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(entries))
	}
	if entries[0].Message != "e" || entries[2].Message != "c" {
		t.Fatalf("expected oldest entries dropped, got %q ... %q", entries[0].Message, entries[2].Message)
	}
}

func TestSubscribeReceivesPublishedEntries(t *testing.T) {
	bus := New(10)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Error("boom", map[string]any{"slot": 4})

	select {
	case entry := <-ch:
		if entry.Message != "boom" || entry.Type != LevelError {
			t.Fatalf("unexpected entry %+v", entry)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for entry")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := New(10)
	ch, cancel := bus.Subscribe()
	cancel()

	bus.Info("after cancel", nil)

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}
}

func TestClearEmptiesBuffer(t *testing.T) {
	bus := New(10)
	bus.Info("one", nil)
	bus.Clear()
	if entries := bus.Entries(); len(entries) != 0 {
		t.Fatalf("expected empty buffer after clear, got %d entries", len(entries))
	}
}

func TestExportIsJSONArray(t *testing.T) {
	bus := New(10)
	data, err := bus.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("expected empty array for empty bus, got %s", data)
	}
}

func TestExportFilenameEncodesTimestamp(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	name := ExportFilename(at)
	if name != "debug-logs-2026-02-03T04:05:06Z.json" {
		t.Fatalf("unexpected filename %q", name)
	}
}

func TestCloudEventEnvelope(t *testing.T) {
	bus := New(10)
	entry := bus.Warning("slow listing", map[string]any{"bucket": "grid-images"})

	event, err := entry.CloudEvent()
	if err != nil {
		t.Fatalf("cloud event: %v", err)
	}
	if event.ID() != entry.ID {
		t.Fatalf("expected event id %q, got %q", entry.ID, event.ID())
	}
	if event.Type() != "com.ninegrid.debug.warning" {
		t.Fatalf("unexpected event type %q", event.Type())
	}
	if event.Source() != "ninegrid/debugbus" {
		t.Fatalf("unexpected event source %q", event.Source())
	}
}
