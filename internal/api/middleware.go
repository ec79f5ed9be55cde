package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

// Identity headers set by the gateway in front of the engine.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
	HeaderCompanyID = "X-Company-ID"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs one line per request and puts a request-scoped
// logger in the context for handlers.
func LoggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With().Str("request_id", GetRequestID(r.Context())).Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(reqLog.WithContext(r.Context())))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			ev := reqLog.Info()
			if status >= http.StatusInternalServerError {
				ev = reqLog.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// ActorMiddleware reads the caller identity. Requests without a valid role
// are rejected.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := scheduling.Actor{
			ID:        r.Header.Get(HeaderActorID),
			Role:      scheduling.Role(r.Header.Get(HeaderActorRole)),
			CompanyID: r.Header.Get(HeaderCompanyID),
		}

		switch {
		case actor.ID == "":
			writeError(w, http.StatusUnauthorized, "unauthenticated", HeaderActorID+" header is required")
			return
		case actor.Role != scheduling.RoleClinic && actor.Role != scheduling.RoleCompany:
			writeError(w, http.StatusUnauthorized, "unauthenticated", HeaderActorRole+" must be clinic or company")
			return
		case actor.Role == scheduling.RoleCompany && actor.CompanyID == "":
			writeError(w, http.StatusUnauthorized, "unauthenticated", HeaderCompanyID+" header is required for company actors")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireClinic guards configuration and administrative routes.
func RequireClinic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r.Context()).IsClinic() {
			writeError(w, http.StatusForbidden, "forbidden", "clinic role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func actorFrom(ctx context.Context) scheduling.Actor {
	actor, _ := ctx.Value(actorKey).(scheduling.Actor)
	return actor
}
