package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nicolasparada/go-errs"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/types"
)

func (h *Handler) users(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in := types.ListUsers{Query: q.Get("q")}
	in.Limit, _ = strconv.Atoi(q.Get("limit"))

	out, err := h.Service.Users(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.User(r.Context(), types.RetrieveUser{
		UserID: r.PathValue("userID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, loggedIn := auth.UserFromContext(r.Context())
	if !loggedIn {
		h.respondErr(w, errs.Unauthenticated)
		return
	}

	h.respond(w, user, http.StatusOK)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var in types.UpdateUser
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondErr(w, errBadJSON)
		return
	}

	out, err := h.Service.UpdateUser(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}
