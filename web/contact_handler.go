package web

import (
	"encoding/json"
	"net/http"

	"github.com/voxa-chat/voxa/types"
)

func (h *Handler) contacts(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Contacts(r.Context(), types.ListContacts{
		Status: types.ContactStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) contactRequests(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ContactRequests(r.Context(), types.ListContactRequests{})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) createContactRequest(w http.ResponseWriter, r *http.Request) {
	var in types.CreateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondErr(w, errBadJSON)
		return
	}

	out, err := h.Service.CreateContactRequest(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) acceptContactRequest(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.AcceptContactRequest(r.Context(), types.AcceptContactRequest{
		RequestID: r.PathValue("requestID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) rejectContactRequest(w http.ResponseWriter, r *http.Request) {
	err := h.Service.RejectContactRequest(r.Context(), types.RejectContactRequest{
		RequestID: r.PathValue("requestID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) blockContact(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.BlockContact(r.Context(), types.BlockContact{
		ContactID: r.PathValue("contactID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}
