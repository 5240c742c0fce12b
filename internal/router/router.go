// Package router dispatches requests to the translate handler and applies CORS.
package router

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pricofy/translate-relay/internal/metrics"
)

// TranslatePath is the only routed path.
const TranslatePath = "/translate"

const (
	headerAllowOrigin  = "Access-Control-Allow-Origin"
	headerAllowMethods = "Access-Control-Allow-Methods"
	headerAllowHeaders = "Access-Control-Allow-Headers"

	allowOrigin  = "*"
	allowMethods = "POST, OPTIONS"
	allowHeaders = "Content-Type"

	notFoundBody = "Not Found"
)

// New builds the public router:
//
//	OPTIONS *          204 preflight
//	POST /translate    translate, plus Access-Control-Allow-Origin
//	anything else      404 "Not Found"
//
// Paths are matched verbatim on their escaped form, without cleaning or
// redirects, so /%74ranslate is not /translate.
func New(translate http.Handler, logger *zap.Logger, m *metrics.Metrics) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter().SkipClean(true).UseEncodedPath()

	r.Methods(http.MethodOptions).HandlerFunc(preflightHandler)
	r.Handle(TranslatePath, withCORS(translate)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	// A known path with the wrong method is still a 404 here.
	r.MethodNotAllowedHandler = http.HandlerFunc(notFoundHandler)

	return loggingMiddleware(logger.With(zap.String("component", "router")), m, r)
}

func preflightHandler(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set(headerAllowOrigin, allowOrigin)
	h.Set(headerAllowMethods, allowMethods)
	h.Set(headerAllowHeaders, allowHeaders)
	w.WriteHeader(http.StatusNoContent)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerAllowOrigin, allowOrigin)
		next.ServeHTTP(w, r)
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(notFoundBody))
}

func loggingMiddleware(logger *zap.Logger, m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		duration := time.Since(start)

		m.ObserveHTTPRequest(r.Method, lrw.statusCode, duration)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", duration))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(statusCode int) {
	lrw.statusCode = statusCode
	lrw.ResponseWriter.WriteHeader(statusCode)
}
