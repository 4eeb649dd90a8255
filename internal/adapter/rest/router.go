// Package rest is the JSON HTTP API of the listing service.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

// NewRouter mounts the listing API. metrics may be nil.
func NewRouter(h *ListingHandler, metrics http.Handler, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", h.HandleCategories)
		r.Get("/listings", h.HandleSearch)
		r.Get("/listings/{permalink}", h.HandleGetListing)
		r.Put("/listings/{permalink}", h.HandleSaveListing)
		r.Delete("/listings/{permalink}", h.HandleDeleteListing)
		r.Post("/listings/{permalink}/publish", h.HandlePublishListing)
		r.Post("/photos", h.HandleNewPhotoUpload)
	})

	return otelhttp.NewHandler(r, "classifieds-service")
}

// RequestLogger logs one line per request with its status and duration.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"trace_id", traceID(r),
			)
		})
	}
}

func traceID(r *http.Request) string {
	sc := trace.SpanContextFromContext(r.Context())
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
