// Package middleware provides the HTTP middlewares shared across routes:
// request identification and bearer-token authentication.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	jwttoken "bunkhouse/internal/jwt_token"
	id "bunkhouse/pkg/domain"
	"bunkhouse/pkg/platform/httputil"
	"bunkhouse/pkg/requestcontext"
)

// RequestID assigns each request an id and pins the request time, so every
// write within the request shares one timestamp.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// RequireAuth validates the Authorization header and stores the caller's
// principal in the request context. Requests without a valid farm-scoped
// token never reach a handler.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			principal, err := principalFromClaims(claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed claims",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}

func principalFromClaims(claims *jwttoken.Claims) (requestcontext.PrincipalInfo, error) {
	principalID, err := id.ParsePrincipalID(claims.PrincipalID)
	if err != nil {
		return requestcontext.PrincipalInfo{}, err
	}
	farmID, err := id.ParseFarmID(claims.FarmID)
	if err != nil {
		return requestcontext.PrincipalInfo{}, err
	}
	return requestcontext.PrincipalInfo{
		ID:      principalID,
		FarmID:  farmID,
		Subject: claims.Subject,
		Role:    claims.Role,
	}, nil
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthorized",
		"error_description": description,
	})
}
