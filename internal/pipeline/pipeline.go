package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/extract"
	"github.com/dvloznov/finance-intake/internal/logger"
	"github.com/dvloznov/finance-intake/internal/structuring"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrFilePanicked marks a file whose processing panicked.
var ErrFilePanicked = errors.New("file processing panicked")

// Orchestrator runs the per-file pipeline for every uploaded file of a request.
type Orchestrator struct {
	pipeline    *Pipeline
	storage     ScratchStorage
	concurrency int
	log         zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets how many files are processed at the same time.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithScratchStorage replaces the local filesystem scratch storage.
func WithScratchStorage(s ScratchStorage) Option {
	return func(o *Orchestrator) {
		o.storage = s
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(extractor extract.Extractor, structurer structuring.Structurer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		storage:     NewLocalScratch(),
		concurrency: DefaultConcurrency,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.pipeline = NewFileProcessingPipeline(o.storage, extractor, structurer)
	return o
}

// ProcessFiles runs every file through the pipeline and returns one result
// per file in input order. A failing file yields a result with Error set and
// does not affect its siblings. Each scratch file is removed once its
// processing ends, whatever the outcome. The returned error is non-nil only
// when ctx ended before all files completed.
func (o *Orchestrator) ProcessFiles(ctx context.Context, files []domain.UploadedFile, options domain.UploadOptions) ([]domain.FileResult, error) {
	results := make([]domain.FileResult, len(files))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, file := range files {
		g.Go(func() error {
			results[i] = o.processFile(ctx, file, options)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (o *Orchestrator) processFile(ctx context.Context, file domain.UploadedFile, options domain.UploadOptions) (result domain.FileResult) {
	log := logger.FromContextOr(ctx, o.log)
	defer o.cleanup(log, file)

	start := time.Now()
	result = domain.FileResult{
		Filename: file.Filename,
		Size:     file.Size,
		MIMEType: file.MIMEType,
	}

	// A panicking extractor or parser fails this file only.
	defer func() {
		if p := recover(); p != nil {
			result.Data = nil
			result.Error = fmt.Sprintf("%v: %v", ErrFilePanicked, p)
			log.Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Str("filename", file.Filename).
				Str("mime_type", file.MIMEType).
				Msg("Panic while processing file")
		}
	}()

	state := &PipelineState{File: file, Options: options}
	if err := o.pipeline.Execute(ctx, state); err != nil {
		result.Error = err.Error()
		log.Error().
			Err(err).
			Str("filename", file.Filename).
			Str("mime_type", file.MIMEType).
			Int64("size", file.Size).
			Dur("duration", time.Since(start)).
			Msg("File processing failed")
		return result
	}

	result.Data = state.Statement
	log.Info().
		Str("filename", file.Filename).
		Str("mime_type", file.MIMEType).
		Int64("size", file.Size).
		Str("statement_type", string(state.Statement.Type)).
		Dur("duration", time.Since(start)).
		Msg("File processed")
	return result
}

// cleanup removes the scratch file. Failures are logged only.
func (o *Orchestrator) cleanup(log zerolog.Logger, file domain.UploadedFile) {
	if file.Path == "" {
		return
	}
	if err := o.storage.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().
			Err(err).
			Str("filename", file.Filename).
			Str("path", file.Path).
			Msg("Failed to remove scratch file")
	}
}
