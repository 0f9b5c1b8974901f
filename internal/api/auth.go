package api

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"serotonyl.ru/reading-rewards/internal/auth"
)

func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.TokenFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "нет токена")
			return
		}
		id, err := a.Auth.ParseToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "срок токена истёк")
				return
			}
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "неверный токен")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// requireRole пропускает только токены с ролью role.
func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "нет токена")
				return
			}
			if id.Role != role {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "недостаточно прав")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
