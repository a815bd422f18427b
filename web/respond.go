package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nicolasparada/go-errs"
	"github.com/nicolasparada/go-errs/httperrs"

	"github.com/voxa-chat/voxa/validator"
)

const errBadJSON = errs.InvalidArgumentError("malformed json body")

func (h *Handler) respond(w http.ResponseWriter, v any, statusCode int) {
	b, err := json.Marshal(v)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(b)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	statusCode := err2code(err)

	if statusCode == http.StatusInternalServerError {
		if !errors.Is(err, context.Canceled) {
			h.Logger.Error("internal server error", "error", err)
		}
		http.Error(w, `{"error":"internal server error"}`, statusCode)
		return
	}

	var v *validator.Validator
	if errors.As(err, &v) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":  "invalid input",
			"fields": v.Errors,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func err2code(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var v *validator.Validator
	if errors.As(err, &v) {
		return http.StatusUnprocessableEntity
	}

	return httperrs.Code(err)
}
