package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dvloznov/finance-intake/internal/domain"
)

// MemoryStore keeps encoded sessions in process memory. Useful for tests and
// single-instance deployments that do not need durability.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

func (s *MemoryStore) Save(ctx context.Context, id string, sess *domain.AnalysisSession) error {
	if err := checkID(id); err != nil {
		return err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("MemoryStore.Save: encoding session: %w", err)
	}

	s.mu.Lock()
	s.sessions[id] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*domain.AnalysisSession, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	var sess domain.AnalysisSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("MemoryStore.Load: decoding session: %w", err)
	}
	return &sess, nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
