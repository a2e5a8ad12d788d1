package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-intake/internal/api/middleware"
	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/extract"
	"github.com/dvloznov/finance-intake/internal/ingest"
	"github.com/dvloznov/finance-intake/internal/logger"
	"github.com/dvloznov/finance-intake/internal/pipeline"
)

const (
	maxFieldSize = 64 << 10

	msgProcessingFailedAR = "خطأ في معالجة الملفات"
	msgProcessingFailedEN = "Failed to process files"
	msgTimeout            = "Request timed out"
)

// Ingester runs the ingestion flow for staged uploads. *ingest.Service implements it.
type Ingester interface {
	Ingest(ctx context.Context, files []domain.UploadedFile, options domain.UploadOptions) (*ingest.Result, error)
}

// Limits bounds a single upload request.
type Limits struct {
	MaxFiles    int
	MaxFileSize int64
}

// ProcessResponse is the success body of POST /api/process-file.
type ProcessResponse struct {
	Success     bool        `json:"success"`
	Data        ProcessData `json:"data"`
	ProcessedAt string      `json:"processedAt"`
}

type ProcessData struct {
	SessionID        string               `json:"sessionId"`
	FilesProcessed   int                  `json:"filesProcessed"`
	DataStructure    domain.DataStructure `json:"dataStructure"`
	ReadyForAnalysis bool                 `json:"readyForAnalysis"`
}

// UploadHandler handles the multipart upload endpoint.
type UploadHandler struct {
	ingester   Ingester
	limits     Limits
	scratchDir string
	log        zerolog.Logger
}

// NewUploadHandler creates a new upload handler. Each request stages its files
// in a private directory under scratchDir.
func NewUploadHandler(ingester Ingester, limits Limits, scratchDir string, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		ingester:   ingester,
		limits:     limits,
		scratchDir: scratchDir,
		log:        log,
	}
}

// ProcessFiles handles POST /api/process-file
func (h *UploadHandler) ProcessFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContextOr(ctx, h.log)

	if err := os.MkdirAll(h.scratchDir, 0o700); err != nil {
		log.Error().Err(err).Msg("Failed to create scratch directory")
		middleware.WriteError(w, http.StatusInternalServerError, msgProcessingFailedAR)
		return
	}
	reqDir, err := os.MkdirTemp(h.scratchDir, "upload-*")
	if err != nil {
		log.Error().Err(err).Msg("Failed to create request scratch directory")
		middleware.WriteError(w, http.StatusInternalServerError, msgProcessingFailedAR)
		return
	}
	defer func() {
		if err := os.RemoveAll(reqDir); err != nil {
			log.Warn().Err(err).Str("dir", reqDir).Msg("Failed to remove request scratch directory")
		}
	}()

	files, options, err := h.readUpload(ctx, w, r, reqDir)
	if err != nil {
		h.writeFailure(ctx, w, log, err, options.Language)
		return
	}

	log.Info().
		Int("files", len(files)).
		Str("company", options.CompanyName).
		Msg("Upload received")

	result, err := h.ingester.Ingest(ctx, files, options)
	if err != nil {
		h.writeFailure(ctx, w, log, err, options.Language)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, ProcessResponse{
		Success: true,
		Data: ProcessData{
			SessionID:        result.SessionID,
			FilesProcessed:   result.FilesProcessed,
			DataStructure:    result.Dataset.Structure,
			ReadyForAnalysis: true,
		},
		ProcessedAt: domain.FormatTimestamp(result.ProcessedAt),
	})
}

// writeFailure maps request errors onto status codes and error envelopes.
func (h *UploadHandler) writeFailure(ctx context.Context, w http.ResponseWriter, log zerolog.Logger, err error, language string) {
	var vErr *ingest.ValidationError
	switch {
	case errors.As(err, &vErr):
		middleware.WriteError(w, http.StatusBadRequest, vErr.Error())
	case isTimeout(ctx, err):
		log.Error().Err(err).Msg("Upload processing timed out")
		middleware.WriteError(w, http.StatusGatewayTimeout, msgTimeout)
	case isRequestShapeError(err):
		log.Info().Err(err).Msg("Upload rejected")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("File processing error")
		msg := msgProcessingFailedEN
		if language == "" || strings.EqualFold(language, pipeline.LanguageArabic) {
			msg = msgProcessingFailedAR
		}
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}

// isTimeout reports whether err comes from the request deadline, either through
// the context or through an expired connection read deadline.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRequestShapeError(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.Is(err, domain.ErrNoFiles) ||
		errors.Is(err, domain.ErrTooManyFiles) ||
		errors.Is(err, domain.ErrFileTooLarge) ||
		errors.Is(err, domain.ErrInvalidOptions) ||
		errors.Is(err, http.ErrNotMultipart) ||
		errors.Is(err, http.ErrMissingBoundary) ||
		errors.As(err, &maxBytes)
}

// readUpload streams the multipart body, writing file parts to dir and
// collecting the option fields. Limits are enforced while reading, so an
// oversized request is rejected before any file is processed.
func (h *UploadHandler) readUpload(ctx context.Context, w http.ResponseWriter, r *http.Request, dir string) ([]domain.UploadedFile, domain.UploadOptions, error) {
	options := domain.UploadOptions{}

	// Closing the body unblocks a read stalled on a slow client once the
	// request deadline passes.
	body := r.Body
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	// Whole-body ceiling: every file at its limit plus room for the fields.
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.limits.MaxFiles+1)*h.limits.MaxFileSize+(1<<20))

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, options, fmt.Errorf("reading multipart body: %w", err)
	}

	var files []domain.UploadedFile
	for {
		if err := ctx.Err(); err != nil {
			return nil, options, err
		}

		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, options, fmt.Errorf("reading multipart part: %w", err)
		}

		name := part.FormName()
		if isFileField(name) && part.FileName() != "" {
			if len(files) >= h.limits.MaxFiles {
				part.Close()
				return nil, options, fmt.Errorf("%w: at most %d files per request", domain.ErrTooManyFiles, h.limits.MaxFiles)
			}
			f, err := h.stagePart(part, dir, len(files))
			part.Close()
			if err != nil {
				return nil, options, err
			}
			files = append(files, f)
			continue
		}

		value, err := readField(part)
		part.Close()
		if err != nil {
			return nil, options, err
		}
		if err := setOption(&options, name, value); err != nil {
			return nil, options, err
		}
	}

	if len(files) == 0 {
		return nil, options, domain.ErrNoFiles
	}
	options.ApplyDefaults()
	return files, options, nil
}

func isFileField(name string) bool {
	return name == "files" || name == "files[]"
}

// stagePart copies one file part into dir, keeping the original extension.
func (h *UploadHandler) stagePart(part *multipart.Part, dir string, index int) (domain.UploadedFile, error) {
	filename := part.FileName()
	ext := filepath.Ext(filename)
	path := filepath.Join(dir, fmt.Sprintf("%02d%s", index+1, ext))

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("creating scratch file: %w", err)
	}

	n, copyErr := io.Copy(out, io.LimitReader(part, h.limits.MaxFileSize+1))
	closeErr := out.Close()
	if copyErr != nil {
		return domain.UploadedFile{}, fmt.Errorf("writing scratch file %q: %w", filename, copyErr)
	}
	if closeErr != nil {
		return domain.UploadedFile{}, fmt.Errorf("closing scratch file %q: %w", filename, closeErr)
	}
	if n > h.limits.MaxFileSize {
		return domain.UploadedFile{}, fmt.Errorf("%w: %q is larger than %d bytes", domain.ErrFileTooLarge, filename, h.limits.MaxFileSize)
	}

	return domain.UploadedFile{
		Filename: filename,
		Path:     path,
		Size:     n,
		MIMEType: partMIMEType(part.Header.Get("Content-Type"), filename),
	}, nil
}

// partMIMEType prefers the declared content type and falls back to the extension.
func partMIMEType(declared, filename string) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	return extract.MIMETypeFor(filename)
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", fmt.Errorf("reading field %q: %w", part.FormName(), err)
	}
	if len(data) > maxFieldSize {
		return "", fmt.Errorf("%w: field %q is too long", domain.ErrInvalidOptions, part.FormName())
	}
	return strings.TrimSpace(string(data)), nil
}

// setOption assigns one form field. The first value wins for scalar fields;
// list fields accumulate. Unknown fields are ignored.
func setOption(o *domain.UploadOptions, name, value string) error {
	setOnce := func(dst *string) {
		if *dst == "" {
			*dst = value
		}
	}

	switch name {
	case "companyName":
		setOnce(&o.CompanyName)
	case "sector":
		setOnce(&o.Sector)
	case "activity":
		setOnce(&o.Activity)
	case "legalEntity":
		setOnce(&o.LegalEntity)
	case "comparisonLevel":
		setOnce(&o.ComparisonLevel)
	case "language":
		setOnce(&o.Language)
	case "yearsCount":
		if value == "" || o.YearsCount != 0 {
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: yearsCount must be a positive integer, got %q", domain.ErrInvalidOptions, value)
		}
		o.YearsCount = n
	case "analysisTypes", "analysisTypes[]":
		if value != "" {
			o.AnalysisTypes = append(o.AnalysisTypes, value)
		}
	case "budget", "budget[]":
		if value != "" {
			o.Budget = append(o.Budget, value)
		}
	}
	return nil
}

// HealthHandler handles GET /health
func HealthHandler(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   now().Format(time.RFC3339),
		})
	}
}
