package service

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maloquacious/embedsvc/internal/greeting"
	"github.com/maloquacious/embedsvc/internal/logger"
	"github.com/maloquacious/embedsvc/internal/store"
)

// seedUserID is the row read by the database-backed greeting.
const seedUserID = 1

// NewRouter builds the chi router serving the embedded service routes.
//
// Routes:
//   - GET /      - liveness, always {"status":"running"}
//   - GET /hello - greeting for ?name=, optionally enriched from the store
//
// Every origin may call the service; it only listens on loopback.
func NewRouter(cfg Config, users store.UserLookup, log logger.Logger) http.Handler {
	h := &handlers{useStore: cfg.UseStore, users: users, log: log}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/", h.status)
	r.Get("/hello", h.hello)

	return r
}

type handlers struct {
	useStore bool
	users    store.UserLookup
	log      logger.Logger
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (h *handlers) hello(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("name") {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "missing required query parameter: name")
		return
	}
	name := q.Get("name")

	if !h.useStore {
		writeJSON(w, http.StatusOK, map[string]string{"message": greeting.Format(name)})
		return
	}
	if h.users == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "user store is not available")
		return
	}

	dbName, found, err := h.users.UserName(r.Context(), seedUserID)
	if err != nil {
		h.log.Error("hello: user lookup failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "user lookup failed")
		return
	}
	if !found {
		dbName = greeting.NoUser
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": greeting.FormatWithUser(name, dbName)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	// Names are echoed byte for byte, markup included.
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": msg,
	})
}

// requestLogger logs each request at DEBUG on start and INFO on completion.
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			log.Debug("request started id=%s method=%s path=%s remote=%s",
				requestID, r.Method, r.URL.Path, r.RemoteAddr)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info("request completed id=%s method=%s path=%s status=%d bytes=%d duration=%s",
				requestID, r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
		})
	}
}
