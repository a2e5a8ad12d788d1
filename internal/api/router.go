package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-intake/internal/api/handlers"
	"github.com/dvloznov/finance-intake/internal/api/middleware"
	"github.com/dvloznov/finance-intake/internal/auth"
)

// ProcessFilePath is the upload endpoint.
const ProcessFilePath = "/api/process-file"

// RouterConfig holds the HTTP-level settings.
type RouterConfig struct {
	AuthHeader     string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter builds the HTTP handler. Only the upload route requires an API key;
// the health check is public.
func NewRouter(upload *handlers.UploadHandler, validator auth.Validator, cfg RouterConfig, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", cfg.AuthHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         3600,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(middleware.MethodNotAllowed)

	r.Get("/health", handlers.HealthHandler(time.Now))

	r.With(
		middleware.APIKeyAuth(validator, cfg.AuthHeader),
		middleware.Deadline(cfg.RequestTimeout),
	).Post(ProcessFilePath, upload.ProcessFiles)

	return r
}
