// Package web exposes the JSON API and the websocket realtime bridge.
package web

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/service"
)

type Handler struct {
	Service       *service.Service
	Authenticator *auth.Authenticator
	Logger        *slog.Logger

	handler http.Handler
	once    sync.Once
}

func (h *Handler) init() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/conversations/direct", h.createDirectConversation)
	mux.HandleFunc("POST /api/conversations/group", h.createGroupConversation)
	mux.HandleFunc("GET /api/conversations", h.conversations)
	mux.HandleFunc("GET /api/conversations/{conversationID}", h.conversation)
	mux.HandleFunc("POST /api/conversations/{conversationID}/participants", h.addParticipant)
	mux.HandleFunc("DELETE /api/conversations/{conversationID}/participants/{userID}", h.removeParticipant)
	mux.HandleFunc("GET /api/conversations/{conversationID}/messages", h.messages)
	mux.HandleFunc("POST /api/conversations/{conversationID}/messages", h.createMessage)
	mux.HandleFunc("GET /api/conversations/{conversationID}/stream", h.messageStream)
	mux.HandleFunc("POST /api/messages/{messageID}/read", h.markMessageAsRead)
	mux.HandleFunc("PUT /api/messages/{messageID}/reaction", h.reactToMessage)
	mux.HandleFunc("DELETE /api/messages/{messageID}", h.deleteMessage)
	mux.HandleFunc("GET /api/contacts", h.contacts)
	mux.HandleFunc("POST /api/contacts/{contactID}/block", h.blockContact)
	mux.HandleFunc("GET /api/contact-requests", h.contactRequests)
	mux.HandleFunc("POST /api/contact-requests", h.createContactRequest)
	mux.HandleFunc("POST /api/contact-requests/{requestID}/accept", h.acceptContactRequest)
	mux.HandleFunc("DELETE /api/contact-requests/{requestID}", h.rejectContactRequest)
	mux.HandleFunc("GET /api/users", h.users)
	mux.HandleFunc("GET /api/users/{userID}", h.user)
	mux.HandleFunc("GET /api/me", h.me)
	mux.HandleFunc("PATCH /api/me", h.updateMe)
	mux.HandleFunc("GET /api/stream", h.conversationStream)

	mux.HandleFunc("GET /healthz", h.health)
	mux.Handle("GET /metrics", promhttp.Handler())

	h.handler = h.withUser(mux)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(h.init)
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, map[string]string{"status": "ok"}, http.StatusOK)
}
