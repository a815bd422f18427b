package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nicolasparada/go-errs"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/types"
)

// withUser resolves the bearer token into a user and stashes it in the
// request context. Requests without a token pass through anonymously;
// the service rejects them where auth is required. The profile row is
// upserted on every authenticated request so first-time callers need no
// signup step.
func (h *Handler) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := h.Authenticator.ValidateToken(token)
		if err != nil {
			h.respondErr(w, errs.Unauthenticated)
			return
		}

		ctx := r.Context()
		user, err := h.Service.EnsureUser(ctx, types.UpsertUser{
			UserID:      claims.UserID,
			Email:       claims.Email,
			DisplayName: claims.DisplayName,
		})
		if err != nil {
			h.respondErr(w, fmt.Errorf("ensure user: %w", err))
			return
		}

		ctx = auth.ContextWithUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter for websocket clients that cannot set
// headers.
func bearerToken(r *http.Request) string {
	if s := r.Header.Get("Authorization"); s != "" {
		if token, ok := strings.CutPrefix(s, "Bearer "); ok {
			return token
		}
		return ""
	}

	return r.URL.Query().Get("access_token")
}
