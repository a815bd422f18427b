package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/voxa-chat/voxa/types"
)

const storeInMemoryUntil = 10 * 1024 * 1024 // 10 MB

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in := types.ListMessages{
		ConversationID: r.PathValue("conversationID"),
	}
	in.Page, _ = strconv.Atoi(q.Get("page"))
	in.Limit, _ = strconv.Atoi(q.Get("limit"))

	out, err := h.Service.Messages(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

// createMessage accepts either a JSON body or a multipart form with an
// "attachments" file field.
func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	in := types.CreateMessage{
		ConversationID: r.PathValue("conversationID"),
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(storeInMemoryUntil); err != nil {
			h.respondErr(w, fmt.Errorf("parse multipart form: %w", err))
			return
		}

		defer r.MultipartForm.RemoveAll()

		in.Content = r.PostFormValue("content")

		for _, fileHeader := range r.MultipartForm.File["attachments"] {
			f, err := fileHeader.Open()
			if err != nil {
				h.respondErr(w, fmt.Errorf("open attachment file: %w", err))
				return
			}

			defer f.Close()

			attachment := types.Attachment{
				Path:        fileHeader.Filename,
				ContentType: fileHeader.Header.Get("Content-Type"),
				FileSize:    uint64(fileHeader.Size),
			}
			attachment.SetReader(f)
			in.Attachments = append(in.Attachments, attachment)
		}
	} else {
		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.respondErr(w, errBadJSON)
			return
		}
		in.Content = body.Content
	}

	out, err := h.Service.CreateMessage(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) markMessageAsRead(w http.ResponseWriter, r *http.Request) {
	err := h.Service.MarkMessageAsRead(r.Context(), types.MarkMessageAsRead{
		MessageID: r.PathValue("messageID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reactToMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reaction string `json:"reaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondErr(w, errBadJSON)
		return
	}

	out, err := h.Service.ReactToMessage(r.Context(), types.ReactToMessage{
		MessageID: r.PathValue("messageID"),
		Reaction:  body.Reaction,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.DeleteMessage(r.Context(), types.DeleteMessage{
		MessageID: r.PathValue("messageID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}
