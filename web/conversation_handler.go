package web

import (
	"encoding/json"
	"net/http"

	"github.com/voxa-chat/voxa/types"
)

func (h *Handler) createDirectConversation(w http.ResponseWriter, r *http.Request) {
	var in types.CreateDirectConversation
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondErr(w, errBadJSON)
		return
	}

	out, err := h.Service.CreateDirectConversation(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) createGroupConversation(w http.ResponseWriter, r *http.Request) {
	var in types.CreateGroupConversation
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondErr(w, errBadJSON)
		return
	}

	out, err := h.Service.CreateGroupConversation(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Conversations(r.Context(), types.ListConversations{})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Conversation(r.Context(), types.RetrieveConversation{
		ConversationID: r.PathValue("conversationID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	var in types.AddParticipant
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondErr(w, errBadJSON)
		return
	}

	in.ConversationID = r.PathValue("conversationID")

	out, err := h.Service.AddParticipant(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) removeParticipant(w http.ResponseWriter, r *http.Request) {
	err := h.Service.RemoveParticipant(r.Context(), types.RemoveParticipant{
		ConversationID: r.PathValue("conversationID"),
		UserID:         r.PathValue("userID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
