package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-intake/internal/app"
	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/extract"
	"github.com/dvloznov/finance-intake/internal/gemini"
	infraBQ "github.com/dvloznov/finance-intake/internal/infra/bigquery"
	"github.com/dvloznov/finance-intake/internal/ingest"
	"github.com/dvloznov/finance-intake/internal/logger"
)

type IngestCmd struct {
	g             *globals
	options       domain.UploadOptions
	analysisTypes []string
	budget        []string
	format        string
}

func newIngestCmd(g *globals) *cobra.Command {
	ic := &IngestCmd{g: g}
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Process local financial documents into a stored session",
		Args:  cobra.MinimumNArgs(1),
		RunE:  ic.run,
	}

	cmd.Flags().StringVar(&ic.options.CompanyName, "company", "", "Company name")
	cmd.Flags().StringVar(&ic.options.Sector, "sector", "", "Company sector")
	cmd.Flags().StringVar(&ic.options.Activity, "activity", "", "Company activity")
	cmd.Flags().StringVar(&ic.options.LegalEntity, "legal-entity", "", "Legal entity type")
	cmd.Flags().StringVar(&ic.options.ComparisonLevel, "comparison-level", "", "Comparison level (default local)")
	cmd.Flags().IntVar(&ic.options.YearsCount, "years-count", 0, "Number of years to analyze (default 1)")
	cmd.Flags().StringVar(&ic.options.Language, "language", "", "Response language, ar or en (default ar)")
	cmd.Flags().StringSliceVar(&ic.analysisTypes, "analysis-type", nil, "Requested analysis type (repeatable)")
	cmd.Flags().StringSliceVar(&ic.budget, "budget", nil, "Budget entry (repeatable)")
	cmd.Flags().StringVar(&ic.format, "format", formatJSON, "Output format: json or yaml")

	return cmd
}

func (ic *IngestCmd) run(cmd *cobra.Command, args []string) error {
	cfg, err := ic.g.load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Upload.RequestTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, *cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := os.MkdirAll(cfg.Upload.ScratchDir, 0o700); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	dir, err := os.MkdirTemp(cfg.Upload.ScratchDir, "cli-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	// The pipeline removes every file it is given, so it only sees copies.
	files := make([]domain.UploadedFile, 0, len(args))
	for i, path := range args {
		f, err := stageCopy(path, dir, i)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	options := ic.options
	options.AnalysisTypes = ic.analysisTypes
	options.Budget = ic.budget

	result, err := a.Service.Ingest(ctx, files, options)
	if err != nil {
		var vErr *ingest.ValidationError
		if errors.As(err, &vErr) {
			return errors.New(vErr.Error())
		}
		return fmt.Errorf("ingestion failed: %w", err)
	}

	log.Info().
		Str("session_id", result.SessionID).
		Int("files", result.FilesProcessed).
		Msg("Ingestion completed")

	return writeOutput(cmd.OutOrStdout(), ic.format, map[string]interface{}{
		"sessionId":      result.SessionID,
		"filesProcessed": result.FilesProcessed,
		"dataStructure":  result.Dataset.Structure,
		"processedAt":    domain.FormatTimestamp(result.ProcessedAt),
	})
}

// stageCopy copies src into dir under a positional name keeping its extension.
func stageCopy(src, dir string, index int) (domain.UploadedFile, error) {
	in, err := os.Open(src)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	filename := filepath.Base(src)
	dst := filepath.Join(dir, fmt.Sprintf("%02d%s", index+1, filepath.Ext(filename)))
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("failed to create scratch copy of %s: %w", src, err)
	}
	n, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return domain.UploadedFile{}, fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return domain.UploadedFile{
		Filename: filename,
		Path:     dst,
		Size:     n,
		MIMEType: extract.MIMETypeFor(filename),
	}, nil
}

type ExtractCmd struct {
	g      *globals
	format string
}

func newExtractCmd(g *globals) *cobra.Command {
	ec := &ExtractCmd{g: g}
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Print the raw content extracted from a document",
		Args:  cobra.ExactArgs(1),
		RunE:  ec.run,
	}
	cmd.Flags().StringVar(&ec.format, "format", formatJSON, "Output format: json, yaml or text")
	return cmd
}

func (ec *ExtractCmd) run(cmd *cobra.Command, args []string) error {
	cfg, err := ec.g.load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Upload.RequestTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var model extract.Extractor
	if cfg.AI.GeminiAPIKey != "" {
		gen, err := gemini.NewGenerator(ctx, cfg.AI.GeminiAPIKey)
		if err != nil {
			return err
		}
		model = extract.NewModelExtractor(gen, cfg.Extraction.Model)
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	filename := filepath.Base(path)
	raw, err := extract.NewRouter(model).Extract(ctx, data, extract.MIMETypeFor(filename), filename)
	if err != nil {
		return err
	}

	if ec.format == "text" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), raw.Content())
		return err
	}
	return writeOutput(cmd.OutOrStdout(), ec.format, raw)
}

type InspectCmd struct {
	g      *globals
	format string
}

func newInspectCmd(g *globals) *cobra.Command {
	ic := &InspectCmd{g: g}
	cmd := &cobra.Command{
		Use:   "inspect SESSION_ID",
		Short: "Print a stored analysis session",
		Args:  cobra.ExactArgs(1),
		RunE:  ic.run,
	}
	cmd.Flags().StringVar(&ic.format, "format", formatJSON, "Output format: json or yaml")
	return cmd
}

func (ic *InspectCmd) run(cmd *cobra.Command, args []string) error {
	cfg, err := ic.g.load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	store, closeStore, err := app.NewStore(ctx, cfg.Sessions)
	if err != nil {
		return err
	}
	defer closeStore()

	sess, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), ic.format, sess)
}

type AuditSetupCmd struct {
	g *globals
}

func newAuditSetupCmd(g *globals) *cobra.Command {
	ac := &AuditSetupCmd{g: g}
	return &cobra.Command{
		Use:   "audit-setup",
		Short: "Create the BigQuery ingestion audit table if it does not exist",
		Args:  cobra.NoArgs,
		RunE:  ac.run,
	}
}

func (ac *AuditSetupCmd) run(cmd *cobra.Command, args []string) error {
	cfg, err := ac.g.load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	if cfg.Audit.ProjectID == "" {
		return errors.New("audit.project_id is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	rec, err := infraBQ.NewAuditRecorder(ctx, cfg.Audit.ProjectID, cfg.Audit.Dataset, cfg.Audit.Table, cfg.Audit.CredentialsFile)
	if err != nil {
		return err
	}
	defer rec.Close()

	if err := rec.EnsureTable(ctx); err != nil {
		return err
	}

	log.Info().
		Str("project", cfg.Audit.ProjectID).
		Str("dataset", cfg.Audit.Dataset).
		Str("table", cfg.Audit.Table).
		Msg("Audit table ready")
	return nil
}
