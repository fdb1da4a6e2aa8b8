package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/kelmah-platform/kelmah-payout-service/internal/monitor"
	"github.com/kelmah-platform/kelmah-payout-service/internal/serve/httperror"
	"github.com/kelmah-platform/kelmah-payout-service/internal/utils"
)

// RecoverHandler is a middleware that recovers from panics and logs the error.
func RecoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", r)
			}

			// No need to recover when the client has disconnected:
			if errors.Is(err, http.ErrAbortHandler) {
				panic(err)
			}

			ctx := req.Context()
			log.WithContext(ctx).WithError(err).Error("recovered from panic in http handler")
			httperror.InternalError(ctx, "", err, nil).Render(rw)
		}()

		next.ServeHTTP(rw, req)
	})
}

// MetricsRequestHandler is a middleware that monitors http requests, and exports the data to the metrics server.
func MetricsRequestHandler(monitorService monitor.MonitorServiceInterface) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			mw := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
			then := time.Now()
			next.ServeHTTP(mw, req)

			monitorService.MonitorHTTPRequest(req.Method, utils.GetRoutePattern(req), mw.Status(), time.Since(then))
		})
	}
}

// InternalAPIKeyMiddleware guards service-to-service endpoints with a shared key. An empty configured key disables the
// check, for local development.
func InternalAPIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(rw, req)
				return
			}

			provided := req.Header.Get("X-Internal-Api-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				httperror.Unauthorized("", nil, nil).Render(rw)
				return
			}
			next.ServeHTTP(rw, req)
		})
	}
}

// CorsMiddleware is a middleware that enables CORS for the given origins.
func CorsMiddleware(corsAllowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		cors := cors.New(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedHeaders: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		})
		return cors.Handler(next)
	}
}

// LoggingMiddleware logs every request with its status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mw := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
		then := time.Now()
		next.ServeHTTP(mw, req)

		log.WithContext(req.Context()).WithFields(log.Fields{
			"method":   req.Method,
			"path":     req.URL.Path,
			"status":   mw.Status(),
			"duration": time.Since(then).String(),
		}).Info("http request")
	})
}
