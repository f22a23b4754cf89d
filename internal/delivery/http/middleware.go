package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
)

type identityKey struct{}

func withIdentity(ctx context.Context, id entity.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFrom(ctx context.Context) entity.Identity {
	id, _ := ctx.Value(identityKey{}).(entity.Identity)
	return id
}

// authenticate verifies the bearer token and stores the caller's identity.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeMessage(w, http.StatusUnauthorized, "authorization header is missing")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			writeMessage(w, http.StatusUnauthorized, "invalid token format")
			return
		}

		id, err := h.tokens.ValidateJWT(token)
		if err != nil {
			h.logger.Debugw("Invalid token", "err", err)
			writeMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

func requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r.Context()).IsVerified {
			writeMessage(w, http.StatusForbidden, entity.ErrNotVerified.Msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r.Context()).IsAdmin() {
			writeMessage(w, http.StatusForbidden, entity.ErrForbidden.Msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}
