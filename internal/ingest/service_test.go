package ingest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/logger"
	"github.com/dvloznov/finance-intake/internal/session"
)

// MockFileProcessor is a mock implementation of FileProcessor.
type MockFileProcessor struct {
	ProcessFilesFunc func(ctx context.Context, files []domain.UploadedFile, options domain.UploadOptions) ([]domain.FileResult, error)
	calls            int
}

func (m *MockFileProcessor) ProcessFiles(ctx context.Context, files []domain.UploadedFile, options domain.UploadOptions) ([]domain.FileResult, error) {
	m.calls++
	if m.ProcessFilesFunc != nil {
		return m.ProcessFilesFunc(ctx, files, options)
	}
	return nil, errors.New("not implemented")
}

// MockAuditRecorder is a mock implementation of AuditRecorder.
type MockAuditRecorder struct {
	RecordFunc func(ctx context.Context, sessionID string, results []domain.FileResult, valid bool, processedAt time.Time) error
	sessionIDs []string
	valid      []bool
}

func (m *MockAuditRecorder) Record(ctx context.Context, sessionID string, results []domain.FileResult, valid bool, processedAt time.Time) error {
	m.sessionIDs = append(m.sessionIDs, sessionID)
	m.valid = append(m.valid, valid)
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, sessionID, results, valid, processedAt)
	}
	return nil
}

// MockStore is a mock implementation of session.Store.
type MockStore struct {
	SaveFunc func(ctx context.Context, id string, s *domain.AnalysisSession) error
}

func (m *MockStore) Save(ctx context.Context, id string, s *domain.AnalysisSession) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, id, s)
	}
	return nil
}

func (m *MockStore) Load(ctx context.Context, id string) (*domain.AnalysisSession, error) {
	return nil, domain.ErrSessionNotFound
}

var fixedNow = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

// classifyAs returns a processor that gives each file the statement type at the same index.
func classifyAs(types ...domain.StatementType) *MockFileProcessor {
	return &MockFileProcessor{
		ProcessFilesFunc: func(ctx context.Context, files []domain.UploadedFile, options domain.UploadOptions) ([]domain.FileResult, error) {
			results := make([]domain.FileResult, len(files))
			for i, f := range files {
				results[i] = domain.FileResult{Filename: f.Filename, Size: f.Size, MIMEType: f.MIMEType}
				if types[i] == "" {
					results[i].Error = "extraction failed"
					continue
				}
				results[i].Data = &domain.ExtractedStatement{Type: types[i], Year: intPtr(2023), SourceFilename: f.Filename}
			}
			return results, nil
		},
	}
}

func files(names ...string) []domain.UploadedFile {
	out := make([]domain.UploadedFile, len(names))
	for i, n := range names {
		out[i] = domain.UploadedFile{Filename: n, Path: "/scratch/" + n, Size: 100, MIMEType: "application/pdf"}
	}
	return out
}

func acme() domain.UploadOptions {
	return domain.UploadOptions{CompanyName: "Acme", Sector: "Retail"}
}

func TestService_Ingest_SingleBalanceSheet(t *testing.T) {
	store := session.NewMemoryStore()
	audit := &MockAuditRecorder{}
	svc := NewService(classifyAs(domain.StatementBalanceSheet), store,
		WithClock(func() time.Time { return fixedNow }),
		WithAuditRecorder(audit),
	)

	res, err := svc.Ingest(context.Background(), files("bs.pdf"), acme())
	require.NoError(t, err)

	assert.True(t, session.ValidSessionID(res.SessionID), res.SessionID)
	assert.Contains(t, res.SessionID, "session_1709289000000_")
	assert.Equal(t, 1, res.FilesProcessed)
	assert.Len(t, res.Dataset.Structure.BalanceSheets, 1)
	assert.Equal(t, fixedNow, res.ProcessedAt)

	stored, err := store.Load(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", stored.Options.CompanyName)
	assert.Equal(t, "local", stored.Options.ComparisonLevel, "defaults applied before storing")
	assert.Equal(t, 1, stored.Options.YearsCount)
	assert.Equal(t, "ar", stored.Options.Language)
	assert.True(t, stored.ProcessedAt.Equal(fixedNow))

	assert.Equal(t, []string{res.SessionID}, audit.sessionIDs)
	assert.Equal(t, []bool{true}, audit.valid)
}

func TestService_Ingest_BudgetOnlyFailsValidation(t *testing.T) {
	store := session.NewMemoryStore()
	audit := &MockAuditRecorder{}
	svc := NewService(classifyAs(domain.StatementBudget), store, WithAuditRecorder(audit))

	res, err := svc.Ingest(context.Background(), files("budget.xlsx"), acme())
	assert.Nil(t, res)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.False(t, vErr.Result.IsValid)
	assert.Equal(t, []string{"no valid financial statements found"}, vErr.Result.Errors)
	assert.Equal(t, 0, store.Len(), "nothing persisted")

	assert.Equal(t, []string{""}, audit.sessionIDs)
	assert.Equal(t, []bool{false}, audit.valid)
}

func TestService_Ingest_ValidationMessageLocalized(t *testing.T) {
	svc := NewService(classifyAs(domain.StatementUnrecognized), session.NewMemoryStore())

	tests := []struct {
		name     string
		language string
		want     string
	}{
		{
			name:     "english",
			language: "en",
			want:     "incomplete data: no valid financial statements found, company name required, company sector required",
		},
		{
			name:     "arabic default",
			language: "",
			want:     "بيانات غير مكتملة: لم يتم العثور على قوائم مالية صالحة, اسم الشركة مطلوب, قطاع الشركة مطلوب",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), files("memo.pdf"), domain.UploadOptions{Language: tt.language})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestService_Ingest_FailedFileCountedAndKept(t *testing.T) {
	svc := NewService(classifyAs(domain.StatementIncome, ""), session.NewMemoryStore())

	res, err := svc.Ingest(context.Background(), files("is.pdf", "broken.pdf"), acme())
	require.NoError(t, err)

	assert.Equal(t, 2, res.FilesProcessed)
	assert.Len(t, res.Dataset.RawData, 2)
	assert.Equal(t, "extraction failed", res.Dataset.RawData[1].Error)
	assert.Len(t, res.Dataset.Structure.IncomeStatements, 1)
}

func TestService_Ingest_DuplicateYearsKept(t *testing.T) {
	svc := NewService(classifyAs(domain.StatementBalanceSheet, domain.StatementBalanceSheet), session.NewMemoryStore())

	res, err := svc.Ingest(context.Background(), files("a.pdf", "b.pdf"), acme())
	require.NoError(t, err)
	assert.Len(t, res.Dataset.Structure.BalanceSheets, 2)
	assert.Equal(t, []int{2023}, res.Dataset.Metadata.YearsDetected)
}

func TestService_Ingest_RequestShapeErrors(t *testing.T) {
	processor := classifyAs()
	svc := NewService(processor, session.NewMemoryStore())

	_, err := svc.Ingest(context.Background(), nil, acme())
	assert.ErrorIs(t, err, domain.ErrNoFiles)

	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = "f.pdf"
	}
	_, err = svc.Ingest(context.Background(), files(eleven...), acme())
	assert.ErrorIs(t, err, domain.ErrTooManyFiles)

	assert.Equal(t, 0, processor.calls, "no processing for rejected requests")
}

func TestService_Ingest_ProcessorError(t *testing.T) {
	processor := &MockFileProcessor{
		ProcessFilesFunc: func(ctx context.Context, files []domain.UploadedFile, options domain.UploadOptions) ([]domain.FileResult, error) {
			return make([]domain.FileResult, len(files)), context.DeadlineExceeded
		},
	}
	svc := NewService(processor, session.NewMemoryStore())

	_, err := svc.Ingest(context.Background(), files("a.pdf"), acme())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_Ingest_StoreError(t *testing.T) {
	store := &MockStore{SaveFunc: func(ctx context.Context, id string, s *domain.AnalysisSession) error {
		return errors.New("disk full")
	}}
	audit := &MockAuditRecorder{}
	svc := NewService(classifyAs(domain.StatementCashFlow), store, WithAuditRecorder(audit))

	_, err := svc.Ingest(context.Background(), files("cf.pdf"), acme())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, audit.sessionIDs)
}

func TestService_Ingest_AuditFailureLoggedOnly(t *testing.T) {
	var logBuf bytes.Buffer
	audit := &MockAuditRecorder{RecordFunc: func(ctx context.Context, sessionID string, results []domain.FileResult, valid bool, processedAt time.Time) error {
		return errors.New("bigquery unavailable")
	}}
	svc := NewService(classifyAs(domain.StatementTrialBalance), session.NewMemoryStore(),
		WithAuditRecorder(audit),
		WithLogger(logger.NewWithWriter(&logBuf)),
		WithIDGenerator(func() string { return "session_1_abcdefghi" }),
	)

	res, err := svc.Ingest(context.Background(), files("tb.pdf"), acme())
	require.NoError(t, err)
	assert.Equal(t, "session_1_abcdefghi", res.SessionID)
	assert.Contains(t, logBuf.String(), "bigquery unavailable")
}

func TestService_Ingest_LogsThroughRequestLogger(t *testing.T) {
	var ownBuf, reqBuf bytes.Buffer
	svc := NewService(classifyAs(domain.StatementBalanceSheet), session.NewMemoryStore(),
		WithLogger(logger.NewWithWriter(&ownBuf)),
	)

	reqLog := logger.NewWithWriter(&reqBuf).With().Str("request_id", "req-9").Logger()
	ctx := logger.WithContext(context.Background(), reqLog)

	_, err := svc.Ingest(ctx, files("bs.pdf"), acme())
	require.NoError(t, err)

	assert.Contains(t, reqBuf.String(), `"request_id":"req-9"`)
	assert.Contains(t, reqBuf.String(), "Session stored")
	assert.Empty(t, ownBuf.String())
}
