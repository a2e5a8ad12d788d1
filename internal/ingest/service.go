package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/logger"
	"github.com/dvloznov/finance-intake/internal/pipeline"
	"github.com/dvloznov/finance-intake/internal/session"
)

// DefaultMaxFiles is the largest number of files accepted in one request.
const DefaultMaxFiles = 10

// FileProcessor turns staged uploads into per-file results. *pipeline.Orchestrator implements it.
type FileProcessor interface {
	ProcessFiles(ctx context.Context, files []domain.UploadedFile, options domain.UploadOptions) ([]domain.FileResult, error)
}

// AuditRecorder records the per-file outcome of a request.
type AuditRecorder interface {
	Record(ctx context.Context, sessionID string, results []domain.FileResult, valid bool, processedAt time.Time) error
}

// ValidationError is returned when the combined dataset is not complete enough
// for analysis. Nothing is persisted in that case.
type ValidationError struct {
	Result   domain.ValidationResult
	Language string
}

// Error returns the localized, joined validation messages.
func (e *ValidationError) Error() string {
	return pipeline.IncompleteDataMessage(e.Result.Errors, e.Language)
}

// Result describes a stored analysis session.
type Result struct {
	SessionID      string
	FilesProcessed int
	Dataset        domain.CombinedFinancialDataset
	ProcessedAt    time.Time
}

// Service runs the ingestion flow: process files, combine, validate, store.
type Service struct {
	processor FileProcessor
	store     session.Store
	audit     AuditRecorder
	log       zerolog.Logger
	maxFiles  int
	now       func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithAuditRecorder records every request's file outcomes.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMaxFiles overrides DefaultMaxFiles.
func WithMaxFiles(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFiles = n
		}
	}
}

// WithClock overrides the time source used for processedAt and session IDs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(processor FileProcessor, store session.Store, opts ...Option) *Service {
	s := &Service{
		processor: processor,
		store:     store,
		audit:     nopAudit{},
		log:       zerolog.Nop(),
		maxFiles:  DefaultMaxFiles,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newID == nil {
		now := s.now
		s.newID = func() string { return session.NewID(now()) }
	}
	return s
}

// Ingest processes the staged files and stores the resulting session. Scratch
// files are consumed (removed) whatever the outcome.
func (s *Service) Ingest(ctx context.Context, files []domain.UploadedFile, options domain.UploadOptions) (*Result, error) {
	if len(files) == 0 {
		return nil, domain.ErrNoFiles
	}
	if len(files) > s.maxFiles {
		return nil, fmt.Errorf("%w: %d files, limit is %d", domain.ErrTooManyFiles, len(files), s.maxFiles)
	}
	options.ApplyDefaults()
	log := logger.WithFields(logger.FromContextOr(ctx, s.log), map[string]interface{}{
		"company":  options.CompanyName,
		"language": options.Language,
	})

	results, err := s.processor.ProcessFiles(ctx, files, options)
	if err != nil {
		return nil, fmt.Errorf("processing files: %w", err)
	}

	dataset := pipeline.Combine(results, options)
	validation := pipeline.Validate(dataset)
	processedAt := s.now()

	if !validation.IsValid {
		log.Info().
			Strs("errors", validation.Errors).
			Int("files", len(results)).
			Msg("Dataset failed validation")
		s.recordAudit(ctx, log, "", results, false, processedAt)
		return nil, &ValidationError{Result: validation, Language: options.Language}
	}

	id := s.newID()
	record := &domain.AnalysisSession{
		Dataset:     dataset,
		Options:     options,
		ProcessedAt: processedAt,
	}
	if err := s.store.Save(ctx, id, record); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	log.Info().
		Str("session_id", id).
		Int("files", len(results)).
		Ints("years", dataset.Metadata.YearsDetected).
		Msg("Session stored")
	s.recordAudit(ctx, log, id, results, true, processedAt)

	return &Result{
		SessionID:      id,
		FilesProcessed: len(results),
		Dataset:        dataset,
		ProcessedAt:    processedAt,
	}, nil
}

// recordAudit never fails the request.
func (s *Service) recordAudit(ctx context.Context, log zerolog.Logger, sessionID string, results []domain.FileResult, valid bool, processedAt time.Time) {
	if err := s.audit.Record(ctx, sessionID, results, valid, processedAt); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to record audit rows")
	}
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, string, []domain.FileResult, bool, time.Time) error {
	return nil
}
