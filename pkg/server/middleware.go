package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"github.com/tunegate/tunegate-server/pkg/metrics"
)

const requestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

// requestID tags each request with an id, reusing a valid inbound one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, id)))
	})
}

// RequestIDFromContext returns the id assigned to the request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				s.log.WithFields(logrus.Fields{
					"request_id": RequestIDFromContext(r.Context()),
					"path":       r.URL.Path,
					"panic":      rec,
				}).Error("handler panicked")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// observe records request metrics by route pattern, and runs the request in
// a New Relic transaction when a metrics provider is configured.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		var txn *newrelic.Transaction
		if s.conf.MetricsProvider != nil {
			txn = s.conf.MetricsProvider.StartTransaction(r.Method + " " + r.URL.Path)
			defer txn.End()

			txn.SetWebRequestHTTP(r)
			txn.AddAttribute("request_id", RequestIDFromContext(r.Context()))
			ww = middleware.NewWrapResponseWriter(txn.SetWebResponse(w), r.ProtoMajor)

			r = newrelic.RequestWithTransactionContext(r, txn)
			r = r.WithContext(metrics.WithNewRelic(r.Context(), s.conf.MetricsProvider))
		}

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && len(rctx.RoutePattern()) > 0 {
			route = rctx.RoutePattern()
		}
		if txn != nil {
			txn.SetName(r.Method + " " + route)
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.Observe(route, r.Method, strconv.Itoa(status), time.Since(start))
	})
}
