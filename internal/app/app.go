package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-intake/internal/api"
	"github.com/dvloznov/finance-intake/internal/api/handlers"
	"github.com/dvloznov/finance-intake/internal/auth"
	"github.com/dvloznov/finance-intake/internal/config"
	"github.com/dvloznov/finance-intake/internal/extract"
	"github.com/dvloznov/finance-intake/internal/gemini"
	infraBQ "github.com/dvloznov/finance-intake/internal/infra/bigquery"
	"github.com/dvloznov/finance-intake/internal/infra/gcs"
	"github.com/dvloznov/finance-intake/internal/infra/minio"
	"github.com/dvloznov/finance-intake/internal/infra/postgres"
	"github.com/dvloznov/finance-intake/internal/ingest"
	"github.com/dvloznov/finance-intake/internal/pipeline"
	"github.com/dvloznov/finance-intake/internal/session"
	"github.com/dvloznov/finance-intake/internal/structuring"
)

// App holds the wired components of the service.
type App struct {
	Extractor extract.Extractor
	Store     session.Store
	Service   *ingest.Service
	Audit     *infraBQ.AuditRecorder

	cfg     config.Config
	log     zerolog.Logger
	closers []func() error
}

// Option overrides a dependency that New would otherwise build from configuration.
type Option func(*overrides)

type overrides struct {
	gemini gemini.Generator
	openai structuring.ChatCompleter
	store  session.Store
}

// WithGenerator supplies the Gemini client instead of creating one from ai.gemini_api_key.
func WithGenerator(gen gemini.Generator) Option {
	return func(o *overrides) { o.gemini = gen }
}

// WithChatCompleter supplies the OpenAI client instead of creating one from ai.openai_api_key.
func WithChatCompleter(c structuring.ChatCompleter) Option {
	return func(o *overrides) { o.openai = c }
}

// WithStore supplies the session store instead of the configured backend.
func WithStore(s session.Store) Option {
	return func(o *overrides) { o.store = s }
}

// New builds the object graph described by cfg. Close releases what it opened.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	var ov overrides
	for _, opt := range opts {
		opt(&ov)
	}

	a := &App{cfg: cfg, log: log}

	gen := ov.gemini
	if gen == nil && cfg.AI.GeminiAPIKey != "" {
		g, err := gemini.NewGenerator(ctx, cfg.AI.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		gen = g
	}
	chat := ov.openai
	if chat == nil && cfg.AI.OpenAIAPIKey != "" {
		chat = structuring.NewOpenAIClient(cfg.AI.OpenAIAPIKey)
	}

	var model extract.Extractor
	if gen != nil {
		model = extract.NewModelExtractor(gen, cfg.Extraction.Model)
	} else {
		log.Warn().Msg("No Gemini API key configured - PDF and image uploads will be rejected")
	}
	a.Extractor = extract.NewRouter(model)

	structurer, err := structuring.New(cfg.Structuring.Provider, cfg.Structuring.Model, structuring.Backends{
		Gemini: gen,
		OpenAI: chat,
	})
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	orchestrator := pipeline.NewOrchestrator(a.Extractor, structurer,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithLogger(log),
	)

	if ov.store != nil {
		a.Store = ov.store
	} else {
		store, closeStore, err := NewStore(ctx, cfg.Sessions)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, closeStore)
	}

	serviceOpts := []ingest.Option{
		ingest.WithLogger(log),
		ingest.WithMaxFiles(cfg.Upload.MaxFiles),
	}
	if cfg.Audit.Enabled {
		rec, err := infraBQ.NewAuditRecorder(ctx, cfg.Audit.ProjectID, cfg.Audit.Dataset, cfg.Audit.Table, cfg.Audit.CredentialsFile)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Audit = rec
		a.closers = append(a.closers, rec.Close)
		serviceOpts = append(serviceOpts, ingest.WithAuditRecorder(rec))
	}
	a.Service = ingest.NewService(orchestrator, a.Store, serviceOpts...)

	log.Info().
		Str("sessions_backend", cfg.Sessions.Backend).
		Str("structuring_provider", cfg.Structuring.Provider).
		Bool("audit", cfg.Audit.Enabled).
		Int("concurrency", cfg.Pipeline.Concurrency).
		Msg("Application initialized")

	return a, nil
}

// Handler returns the HTTP handler for the upload API.
func (a *App) Handler() (http.Handler, error) {
	keys, err := auth.NewStaticKeys(a.cfg.Auth.APIKeys...)
	if err != nil {
		return nil, fmt.Errorf("app.Handler: %w", err)
	}

	upload := handlers.NewUploadHandler(a.Service, handlers.Limits{
		MaxFiles:    a.cfg.Upload.MaxFiles,
		MaxFileSize: a.cfg.Upload.MaxFileSize,
	}, a.cfg.Upload.ScratchDir, a.log)

	return api.NewRouter(upload, keys, api.RouterConfig{
		AuthHeader:     a.cfg.Auth.Header,
		RequestTimeout: a.cfg.Upload.RequestTimeout,
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
	}, a.log), nil
}

// Close releases clients opened by New in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewStore opens the session store selected by cfg.Backend. The returned
// close func is never nil.
func NewStore(ctx context.Context, cfg config.SessionsConfig) (session.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendFile, "":
		return session.NewFileStore(cfg.Dir), noop, nil
	case config.BackendMemory:
		return session.NewMemoryStore(), noop, nil
	case config.BackendGCS:
		s, err := gcs.NewSessionStore(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix, cfg.GCS.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendMinIO:
		s, err := minio.NewSessionStore(minio.Options{
			Endpoint:  cfg.MinIO.Endpoint,
			Region:    cfg.MinIO.Region,
			Bucket:    cfg.MinIO.Bucket,
			Prefix:    cfg.MinIO.Prefix,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown sessions backend %q", cfg.Backend)
	}
}
