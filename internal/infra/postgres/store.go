package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/session"
)

// DefaultTable holds one row per session.
const DefaultTable = "analysis_sessions"

// SessionStore keeps sessions as JSONB rows keyed by session ID.
type SessionStore struct {
	db    *sql.DB
	table string
	now   func() time.Time

	mu          sync.Mutex
	schemaReady bool
}

// Open connects through the pgx database/sql driver.
func Open(ctx context.Context, dsn, table string) (*SessionStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: connecting to database: %w", err)
	}
	return NewSessionStore(db, table), nil
}

func NewSessionStore(db *sql.DB, table string) *SessionStore {
	if table == "" {
		table = DefaultTable
	}
	return &SessionStore{db: db, table: pgx.Identifier{table}.Sanitize(), now: time.Now}
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

// ensureSchema creates the table on first use. A failed attempt is retried on the next call.
func (s *SessionStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schemaReady {
		return nil
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	session_id   TEXT PRIMARY KEY,
	payload      JSONB NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	s.schemaReady = true
	return nil
}

func (s *SessionStore) Save(ctx context.Context, id string, sess *domain.AnalysisSession) error {
	if !session.ValidSessionID(id) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, id)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("SessionStore.Save: %w", err)
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("SessionStore.Save: encoding session: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (session_id, payload, processed_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id) DO UPDATE SET
	payload = EXCLUDED.payload,
	processed_at = EXCLUDED.processed_at,
	updated_at = EXCLUDED.updated_at`, s.table)

	if _, err := s.db.ExecContext(ctx, query, id, string(payload), sess.ProcessedAt.UTC(), s.now().UTC()); err != nil {
		return fmt.Errorf("SessionStore.Save: upserting session: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (*domain.AnalysisSession, error) {
	if !session.ValidSessionID(id) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, id)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("SessionStore.Load: %w", err)
	}

	query := fmt.Sprintf(`SELECT payload FROM %s WHERE session_id = $1`, s.table)

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("SessionStore.Load: querying session: %w", err)
	}

	var sess domain.AnalysisSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("SessionStore.Load: decoding session: %w", err)
	}
	return &sess, nil
}
