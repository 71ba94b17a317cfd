package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/opsync/internal/server/handlers"
)

// AuthMiddleware создает middleware для проверки JWT токена.
// user_id из токена определяет область данных запроса.
func AuthMiddleware(logger *slog.Logger, jwtConfig handlers.JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "unauthorized: missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				logger.Warn("Invalid Authorization header format")
				writeError(w, http.StatusUnauthorized, "unauthorized: invalid token format")
				return
			}

			claims, err := handlers.ValidateAccessToken(jwtConfig, strings.TrimSpace(tokenString))
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized: invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), handlers.UserIDKey, claims.UserID)

			logger.Debug("User authenticated", "user_id", claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
