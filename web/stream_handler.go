package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nicolasparada/go-errs"

	"github.com/voxa-chat/voxa/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	heartbeatInterval = 30 * time.Second
)

// messageStream upgrades to a websocket and forwards the conversation's
// change events as JSON frames. The subscription ends when the client
// hangs up.
func (h *Handler) messageStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, loggedIn := auth.UserFromContext(ctx); !loggedIn {
		h.respondErr(w, errs.Unauthenticated)
		return
	}

	stream, err := h.Service.MessageStream(ctx, r.PathValue("conversationID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("websocket upgrade", "error", err)
		return
	}

	events := make(chan any)
	go func() {
		defer close(events)
		for ev := range stream {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	h.pumpEvents(r, conn, "messages", events)
}

// conversationStream is the inbox counterpart: the logged-in user's
// conversation list updates in one long-lived socket. Presence rides on
// this connection: the user counts as online while it stays open.
func (h *Handler) conversationStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		h.respondErr(w, errs.Unauthenticated)
		return
	}

	stream, err := h.Service.ConversationStream(ctx)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("websocket upgrade", "error", err)
		return
	}

	if err := h.Service.MarkUserConnected(ctx, user.ID); err != nil {
		h.Logger.Error("mark user connected", "error", err, "user", user.ID)
	}
	defer func() {
		// the request context is gone by now; give the presence
		// teardown its own deadline
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Service.MarkUserDisconnected(ctx, user.ID); err != nil {
			h.Logger.Error("mark user disconnected", "error", err, "user", user.ID)
		}
	}()

	go func() {
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()
		for {
			select {
			case <-heartbeat.C:
				if err := h.Service.HeartbeatUser(ctx, user.ID); err != nil {
					h.Logger.Error("presence heartbeat", "error", err, "user", user.ID)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	events := make(chan any)
	go func() {
		defer close(events)
		for ev := range stream {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	h.pumpEvents(r, conn, "conversations", events)
}

// pumpEvents runs the standard gorilla read/write pump pair around an
// event channel: the reader discards client frames but notices the
// hangup, while this goroutine stays the connection's only writer and
// interleaves events with pings.
func (h *Handler) pumpEvents(r *http.Request, conn *websocket.Conn, streamName string, events <-chan any) {
	defer conn.Close()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// source dried up; tell the client to hang up
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.Logger.Debug("websocket write", "error", err, "stream", streamName)
				}
				return
			}
			websocketEventsTotal.WithLabelValues(streamName).Inc()
		}
	}
}
