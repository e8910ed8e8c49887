package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/gnss-jamming/internal/analysis"
	"github.com/yegors/gnss-jamming/internal/harvest"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

func connect(t *testing.T) (*Server, *websocket.Conn) {
	t.Helper()
	s := NewServer(logger.NewNop())
	go s.Run()

	srv := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestNotifierBroadcasts(t *testing.T) {
	s, conn := connect(t)
	n := NewNotifier(s)

	n.HarvestProgress(harvest.Progress{Date: "2024-01-01", File: "000000Z", Done: 1, Total: 2})
	msg := readMessage(t, conn)
	if msg.Type != MessageTypeHarvestProgress {
		t.Fatalf("type = %q, want %q", msg.Type, MessageTypeHarvestProgress)
	}
	progress, ok := msg.Data["progress"].(map[string]any)
	if !ok || progress["file"] != "000000Z" || progress["total"] != float64(2) {
		t.Errorf("unexpected progress payload %v", msg.Data)
	}

	n.HarvestComplete(harvest.Summary{Dates: []string{"2024-01-01"}, Snapshots: 2})
	if msg := readMessage(t, conn); msg.Type != MessageTypeHarvestComplete {
		t.Errorf("type = %q, want %q", msg.Type, MessageTypeHarvestComplete)
	}

	n.ReportReady(&analysis.Report{RunID: "run-1", RegionDescription: "the whole world"})
	msg = readMessage(t, conn)
	if msg.Type != MessageTypeReportReady || msg.Data["run_id"] != "run-1" || msg.Data["points"] != float64(0) {
		t.Errorf("unexpected report message %+v", msg)
	}
}

func TestPingPong(t *testing.T) {
	_, conn := connect(t)

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != MessageTypePong {
		t.Errorf("type = %q, want %q", msg.Type, MessageTypePong)
	}
}
