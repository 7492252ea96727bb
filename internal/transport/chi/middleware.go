package chi

import (
	"net/http"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/logger"
)

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(base *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				base.Error("panic recovered",
					zap.String("request_id", chimw.GetReqID(r.Context())),
					zap.Any("panic", rvr),
					zap.Stack("stacktrace"),
				)
				logger.AddEventFields(r.Context(), zap.Any("panic", rvr))
				writeError(w, http.StatusInternalServerError, CodeInternalError, internalErrorMessage)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
// Handlers and usecases enrich the line through logger.AddEventFields.
func wideEventMiddleware(base *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chimw.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := base.With(zap.String("request_id", requestID))
			ctx := logger.ContextWithLogger(r.Context(), reqLogger)
			ctx, ev := logger.ContextWithEvent(ctx)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rctx := chirouter.RouteContext(ctx); rctx != nil {
				route = rctx.RoutePattern()
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			fields = append(fields, ev.Fields()...)

			switch {
			case status >= http.StatusInternalServerError:
				reqLogger.Error("http_request", fields...)
			case status >= http.StatusBadRequest:
				reqLogger.Warn("http_request", fields...)
			default:
				reqLogger.Info("http_request", fields...)
			}
		})
	}
}
