package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// ctxKey is a private context key type for request-scoped values.
type ctxKey int

const userKey ctxKey = iota

// userFrom returns the authenticated user stored by the auth middleware.
// Handlers behind authenticated() can rely on it being present.
func userFrom(ctx context.Context) model.User {
	user, _ := ctx.Value(userKey).(model.User)
	return user
}

// bearerToken extracts the bearer token from the Authorization header, or
// from the token query parameter as a fallback for clients that cannot set
// headers (EventSource).
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// authenticated resolves the bearer token to a user and stores it in the
// request context, rejecting the request with a 401 otherwise.
func (h *Handler) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.resolveUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// resolveUser looks up the request's bearer token. It does not write a
// response, so the SSE handler can emit its own error framing.
func (h *Handler) resolveUser(r *http.Request) (model.User, bool) {
	token := bearerToken(r)
	if token == "" {
		return model.User{}, false
	}

	user, err := h.users.GetByAPIToken(r.Context(), token)
	if err != nil {
		h.logger.Error("token lookup failed", "error", err)
		return model.User{}, false
	}
	if user == nil {
		return model.User{}, false
	}
	return *user, true
}

// rateLimited enforces the sliding-window limit for one route class, keyed
// by the authenticated user. Must sit inside authenticated().
func (h *Handler) rateLimited(class string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())

		if err := h.limiter.Allow(r.Context(), class, strconv.FormatInt(user.ID, 10)); err != nil {
			if errors.Is(err, driven.ErrRateLimited) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			h.logger.Error("rate limiter failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the embedded writer.
func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// Flush delegates to the embedded writer so SSE responses stream through the
// middleware stack.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// recoveryMiddleware recovers from panics in HTTP handlers, logs the error,
// and returns a 500 response.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered",
					"panic", v,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
