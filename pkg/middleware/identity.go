package middleware

import (
	"net/http"
	"strings"

	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequesterHeader carries the caller's user identity. It is trusted as
// given; authentication happens in front of this service.
const RequesterHeader = "X-Requester-ID"

// Requester puts the X-Requester-ID identity on the request context when the
// header is present. A malformed value is rejected with 400.
func Requester(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(RequesterHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil || id == uuid.Nil {
				logger.Warn("Malformed requester identity",
					zap.String("value", raw),
					zap.String("path", r.URL.Path))
				utils.ResponseBadRequest(w, "Invalid "+RequesterHeader+" header", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.SetRequesterContext(r.Context(), id)))
		})
	}
}

// RequireRequester rejects requests that reach it without an identity.
// Must run after Requester.
func RequireRequester(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := utils.GetRequesterIDFromContext(r.Context()); !ok {
				logger.Warn("Missing requester identity",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path))
				utils.ResponseUnauthorized(w, RequesterHeader+" header is required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
