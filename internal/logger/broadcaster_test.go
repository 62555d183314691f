package logger_test

import (
	"testing"

	"github.com/tgmanager/tgmanager/internal/logger"
	"github.com/tgmanager/tgmanager/internal/websocket"
)

// The hub is the production Broadcaster; it must satisfy the interface.
var _ logger.Broadcaster = (*websocket.Hub)(nil)

type recordingHub struct {
	types    []string
	payloads []interface{}
}

func (r *recordingHub) Broadcast(msgType string, payload interface{}) error {
	r.types = append(r.types, msgType)
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestLogBroadcaster_WritePushesEntry(t *testing.T) {
	hub := &recordingHub{}
	b := logger.NewLogBroadcaster(hub, 10)

	line := `{"time":"2026-08-27T10:00:00Z","level":"info","component":"transfer","message":"task started","taskId":"abc"}`
	n, err := b.Write([]byte(line))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len(line) {
		t.Errorf("Write() n = %d, want %d", n, len(line))
	}

	if len(hub.types) != 1 || hub.types[0] != "logs:entry" {
		t.Fatalf("broadcast types = %v, want [logs:entry]", hub.types)
	}
	entry, ok := hub.payloads[0].(logger.LogEntry)
	if !ok {
		t.Fatalf("payload type = %T, want logger.LogEntry", hub.payloads[0])
	}
	if entry.Level != "info" || entry.Component != "transfer" || entry.Message != "task started" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["taskId"] != "abc" {
		t.Errorf("Fields[taskId] = %v, want abc", entry.Fields["taskId"])
	}
}

func TestLogBroadcaster_MalformedLineIgnored(t *testing.T) {
	hub := &recordingHub{}
	b := logger.NewLogBroadcaster(hub, 10)

	n, err := b.Write([]byte("plain console line, not json\n"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n == 0 {
		t.Error("Write() should report the input consumed")
	}
	if len(hub.types) != 0 {
		t.Errorf("broadcasts = %v, want none", hub.types)
	}
	if got := b.GetRecentLogs(0); len(got) != 0 {
		t.Errorf("buffered entries = %d, want 0", len(got))
	}
}

func TestLogBroadcaster_SetHubLate(t *testing.T) {
	b := logger.NewLogBroadcaster(nil, 10)
	if _, err := b.Write([]byte(`{"level":"info","message":"before hub"}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	hub := &recordingHub{}
	b.SetHub(hub)
	if _, err := b.Write([]byte(`{"level":"info","message":"after hub"}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if len(hub.types) != 1 {
		t.Fatalf("broadcasts after SetHub = %d, want 1", len(hub.types))
	}
	if got := b.GetRecentLogs(0); len(got) != 2 {
		t.Errorf("buffered entries = %d, want 2", len(got))
	}
}

func TestLogBroadcaster_GetRecentLogsLimit(t *testing.T) {
	b := logger.NewLogBroadcaster(nil, 10)
	for _, msg := range []string{"one", "two", "three"} {
		if _, err := b.Write([]byte(`{"level":"info","message":"` + msg + `"}`)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	got := b.GetRecentLogs(2)
	if len(got) != 2 {
		t.Fatalf("GetRecentLogs(2) returned %d entries", len(got))
	}
	if got[0].Message != "two" || got[1].Message != "three" {
		t.Errorf("entries = %q, %q; want two, three", got[0].Message, got[1].Message)
	}
}
