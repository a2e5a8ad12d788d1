package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/session"
)

var (
	createPattern = regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "analysis_sessions"`)
	upsertPattern = regexp.QuoteMeta(`INSERT INTO "analysis_sessions" (session_id, payload, processed_at, updated_at)`)
	selectPattern = regexp.QuoteMeta(`SELECT payload FROM "analysis_sessions" WHERE session_id = $1`)
)

func testSession() *domain.AnalysisSession {
	return &domain.AnalysisSession{
		Dataset: domain.CombinedFinancialDataset{
			Structure: domain.NewDataStructure(),
			Metadata:  domain.DatasetMetadata{CompanyName: "Acme", YearsDetected: []int{2021}},
			RawData:   []domain.FileResult{},
		},
		Options:     domain.DefaultUploadOptions(),
		ProcessedAt: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func newMockStore(t *testing.T) (*SessionStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSessionStore(db, "")
	store.now = func() time.Time { return time.Date(2024, 2, 3, 4, 5, 7, 0, time.UTC) }
	return store, mock
}

func TestSessionStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	id := session.NewID(time.Now())
	sess := testSession()

	mock.ExpectExec(createPattern).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(upsertPattern).
		WithArgs(id, sqlmock.AnyArg(), sess.ProcessedAt, time.Date(2024, 2, 3, 4, 5, 7, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsertPattern).
		WithArgs(id, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), id, sess))
	require.NoError(t, store.Save(context.Background(), id, sess), "schema is created only once")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_SaveSchemaFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(createPattern).WillReturnError(errors.New("permission denied"))

	err := store.Save(context.Background(), session.NewID(time.Now()), testSession())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_Load(t *testing.T) {
	store, mock := newMockStore(t)
	id := session.NewID(time.Now())

	payload, err := json.Marshal(testSession())
	require.NoError(t, err)

	mock.ExpectExec(createPattern).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectPattern).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	loaded, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", loaded.Dataset.Metadata.CompanyName)
	assert.True(t, loaded.ProcessedAt.Equal(testSession().ProcessedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_LoadNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := session.NewID(time.Now())

	mock.ExpectExec(createPattern).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectPattern).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err := store.Load(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_InvalidID(t *testing.T) {
	store, mock := newMockStore(t)

	assert.ErrorIs(t, store.Save(context.Background(), "'; DROP TABLE x; --", testSession()), domain.ErrInvalidSessionID)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidSessionID)
	assert.NoError(t, mock.ExpectationsWereMet(), "no queries for invalid ids")
}

func TestNewSessionStore_QuotesTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSessionStore(db, `weird"name`)
	assert.Equal(t, `"weird""name"`, store.table)
}
