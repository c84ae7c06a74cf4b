// internal/handler/websocket_handler_test.go
package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"label-service/internal/model"
)

func dialWS(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial %s: %v", path, err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("handshake status = %d", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	var msg WebSocketMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestPrinterStreamSendsStatusThenEvents(t *testing.T) {
	ts := newTestServer(t, &ackDevice{})
	server := httptest.NewServer(ts.router)
	defer server.Close()

	conn := dialWS(t, server, "/ws/printers/desk")

	initial := readMessage(t, conn)
	if initial.Type != "initial_status" {
		t.Fatalf("first message = %q, want initial_status", initial.Type)
	}
	if data, ok := initial.Data.(map[string]interface{}); !ok || data["name"] != "desk" {
		t.Fatalf("initial data = %v", initial.Data)
	}

	if stats := ts.ws.GetConnectionStats(); stats.TotalConnections != 1 || stats.ByPrinter["desk"] != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	job := &model.PrintJob{PrinterName: "desk"}
	ts.ws.BroadcastPrintEvent(model.NewPrintEvent(model.EventJobStarted, job, model.JSONObject{"density": 3}))

	event := readMessage(t, conn)
	if event.Type != "print_event" {
		t.Fatalf("message type = %q, want print_event", event.Type)
	}
	data, _ := event.Data.(map[string]interface{})
	if data["event_type"] != string(model.EventJobStarted) || data["printer_name"] != "desk" {
		t.Fatalf("event data = %v", event.Data)
	}
}

func TestEventStreamPingAndSubscribe(t *testing.T) {
	ts := newTestServer(t, &ackDevice{})
	server := httptest.NewServer(ts.router)
	defer server.Close()

	conn := dialWS(t, server, "/ws/events")

	if err := conn.WriteJSON(WebSocketMessage{Type: "ping", RequestID: "r1"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if pong := readMessage(t, conn); pong.Type != "pong" || pong.RequestID != "r1" {
		t.Fatalf("reply = %+v, want pong r1", pong)
	}

	conn.WriteJSON(WebSocketMessage{Type: "subscribe", Data: map[string]string{"event_type": "job.failed"}})
	if ack := readMessage(t, conn); ack.Type != "subscribed" {
		t.Fatalf("reply = %+v, want subscribed", ack)
	}

	job := &model.PrintJob{PrinterName: "desk"}
	ts.ws.BroadcastPrintEvent(model.NewPrintEvent(model.EventJobState, job, nil))
	ts.ws.BroadcastPrintEvent(model.NewPrintEvent(model.EventJobFailed, job, nil))

	event := readMessage(t, conn)
	data, _ := event.Data.(map[string]interface{})
	if data["event_type"] != string(model.EventJobFailed) {
		t.Fatalf("first delivered event = %v, want job.failed only", data["event_type"])
	}

	conn.WriteJSON(WebSocketMessage{Type: "subscribe", Data: map[string]string{"event_type": "job.unknown"}})
	if reply := readMessage(t, conn); reply.Type != "error" {
		t.Fatalf("reply = %+v, want error", reply)
	}
}

func TestEventStreamUnknownPrinter(t *testing.T) {
	ts := newTestServer(t, &ackDevice{})

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/events?printer=nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://app.local"})

	req := httptest.NewRequest(http.MethodGet, "http://svc.local/ws/events", nil)
	req.Header.Set("Origin", "http://app.local")
	if !check(req) {
		t.Error("allowed origin rejected")
	}
	req.Header.Set("Origin", "http://evil.local")
	if check(req) {
		t.Error("foreign origin accepted")
	}
	req.Header.Set("Origin", "http://svc.local")
	if !check(req) {
		t.Error("same host origin rejected")
	}
	if !originChecker([]string{"*"})(req) {
		t.Error("wildcard rejected")
	}
}
