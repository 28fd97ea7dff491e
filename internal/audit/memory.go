package audit

import (
	"context"
	"sync"

	"github.com/carbonledger/emissions-cli/internal/model"
)

// MemoryStore is an in-process audit store. Appends are serialized by a
// mutex; listings return copies so callers cannot mutate the trail.
type MemoryStore struct {
	mu      sync.Mutex
	entries []model.CalculationAuditEntry
}

// NewMemory creates an empty in-memory audit store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, entry model.CalculationAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryStore) AppendBatch(ctx context.Context, entries []model.CalculationAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]model.CalculationAuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.CalculationAuditEntry
	for _, e := range s.entries {
		if filter.ActivityID != "" && e.ActivityID != filter.ActivityID {
			continue
		}
		if filter.Method != "" && e.Method != filter.Method {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
