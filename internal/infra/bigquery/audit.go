package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dvloznov/finance-intake/internal/domain"
)

// Per-file processing outcomes.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// AuditRow is one processed file of one ingestion request.
type AuditRow struct {
	AuditID   string `bigquery:"audit_id"`   // REQUIRED
	SessionID string `bigquery:"session_id"` // NULLABLE, empty when the request failed validation

	Filename  string `bigquery:"filename"`   // REQUIRED
	MimeType  string `bigquery:"mime_type"`  // NULLABLE
	SizeBytes int64  `bigquery:"size_bytes"` // REQUIRED

	StatementType string             `bigquery:"statement_type"` // NULLABLE
	FiscalYear    bigquery.NullInt64 `bigquery:"fiscal_year"`    // NULLABLE

	Status       string `bigquery:"status"`        // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	Valid       bool      `bigquery:"valid"`        // REQUIRED, dataset validation outcome
	ProcessedTS time.Time `bigquery:"processed_ts"` // REQUIRED
}

// rowInserter is satisfied by *bigquery.Inserter.
type rowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// AuditRecorder streams per-file audit rows into a BigQuery table.
type AuditRecorder struct {
	client   *bigquery.Client
	table    *bigquery.Table
	inserter rowInserter
	newID    func() string
}

// NewAuditRecorder creates a BigQuery client for projectID. Credentials come from
// Application Default Credentials unless credentialsFile is set.
func NewAuditRecorder(ctx context.Context, projectID, datasetID, tableID, credentialsFile string) (*AuditRecorder, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewAuditRecorder: creating client: %w", err)
	}

	table := client.Dataset(datasetID).Table(tableID)
	return &AuditRecorder{
		client:   client,
		table:    table,
		inserter: table.Inserter(),
		newID:    uuid.NewString,
	}, nil
}

func newAuditRecorderWithInserter(ins rowInserter, newID func() string) *AuditRecorder {
	return &AuditRecorder{inserter: ins, newID: newID}
}

// Close closes the BigQuery client connection.
func (r *AuditRecorder) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureTable creates the audit table with a schema inferred from AuditRow if it
// does not exist yet.
func (r *AuditRecorder) EnsureTable(ctx context.Context) error {
	if r.table == nil {
		return errors.New("EnsureTable: recorder has no table handle")
	}

	schema, err := bigquery.InferSchema(AuditRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}

	err = r.table.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "processed_ts",
		},
	})
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	return nil
}

// Record inserts one row per file result.
func (r *AuditRecorder) Record(ctx context.Context, sessionID string, results []domain.FileResult, valid bool, processedAt time.Time) error {
	if len(results) == 0 {
		return nil
	}

	rows := BuildAuditRows(sessionID, results, valid, processedAt, r.newID)
	if err := r.inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("Record: inserting %d audit rows: %w", len(rows), err)
	}
	return nil
}

// BuildAuditRows maps file results to audit rows, preserving order.
func BuildAuditRows(sessionID string, results []domain.FileResult, valid bool, processedAt time.Time, newID func() string) []*AuditRow {
	rows := make([]*AuditRow, 0, len(results))
	for _, res := range results {
		row := &AuditRow{
			AuditID:     newID(),
			SessionID:   sessionID,
			Filename:    res.Filename,
			MimeType:    res.MIMEType,
			SizeBytes:   res.Size,
			Status:      StatusSuccess,
			Valid:       valid,
			ProcessedTS: processedAt.UTC(),
		}
		if !res.OK() {
			row.Status = StatusFailed
			row.ErrorMessage = res.Error
		}
		if res.Data != nil {
			row.StatementType = string(res.Data.Type)
			if res.Data.Year != nil {
				row.FiscalYear = bigquery.NullInt64{Int64: int64(*res.Data.Year), Valid: true}
			}
		}
		rows = append(rows, row)
	}
	return rows
}
