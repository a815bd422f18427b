package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newPumpServer(t *testing.T, events <-chan any) *httptest.Server {
	t.Helper()

	h := &Handler{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		h.pumpEvents(r, conn, "conversations", events)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func Test_PumpEvents_DeliversEventsThenCloses(t *testing.T) {
	events := make(chan any)
	srv := newPumpServer(t, events)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	const total = 50
	go func() {
		for i := range total {
			events <- map[string]int{"seq": i}
		}
		close(events)
	}()

	// client chatter keeps the server's read pump busy while events flow
	go func() {
		for range 10 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte("ack"))
			time.Sleep(time.Millisecond)
		}
	}()

	for i := range total {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var got map[string]int
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		if got["seq"] != i {
			t.Fatalf("seq = %d, want %d", got["seq"], i)
		}
	}

	// draining the source ends the connection cleanly
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("want normal closure, got %v", err)
	}
}

func Test_PumpEvents_NoGoroutineLeakAcrossConnections(t *testing.T) {
	events := make(chan any)
	srv := newPumpServer(t, events)
	defer srv.Close()

	baseline := runtime.NumGoroutine()

	for range 25 {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := conn.Close(); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if n := runtime.NumGoroutine(); n <= baseline+2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("goroutines did not settle: baseline %d, now %d", baseline, runtime.NumGoroutine())
		}
		time.Sleep(50 * time.Millisecond)
	}
}
