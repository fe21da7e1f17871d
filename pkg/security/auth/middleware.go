package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/throttle/pkg/server/middleware"
	"mercator-hq/throttle/pkg/telemetry/logging"
	"mercator-hq/throttle/pkg/telemetry/tracing"
)

// Middleware rejects requests without a valid key and records the key
// name as the request's client.
func Middleware(v *Validator, sources []Source, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server.auth")
	if len(sources) == 0 {
		sources = DefaultSources
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, err := v.Validate(extract(r, sources))
			if err != nil {
				logger.Warn("authentication failed",
					"error", err,
					"client", name,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"request_id", middleware.GetRequestID(r),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="throttle"`)
				msg := "invalid or missing API key"
				if errors.Is(err, ErrKeyDisabled) {
					msg = "API key disabled"
				}
				middleware.WriteError(w, http.StatusUnauthorized, "authentication_error", msg)
				return
			}

			ctx := logging.WithClient(r.Context(), name)
			tracing.SetClient(ctx, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Client returns the authenticated client name for r, or "".
func Client(r *http.Request) string {
	return logging.GetClient(r.Context())
}

func extract(r *http.Request, sources []Source) string {
	for _, src := range sources {
		value := r.Header.Get(src.Header)
		if value == "" {
			continue
		}
		if src.Scheme == "" {
			return value
		}
		scheme, token, ok := strings.Cut(value, " ")
		if ok && strings.EqualFold(scheme, src.Scheme) {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
