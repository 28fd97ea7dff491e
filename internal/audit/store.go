// Package audit persists the append-only calculation audit trail. Entries
// are written once and never updated or deleted; the trail is read back by
// assurance tooling, not by the calculation path.
package audit

import (
	"context"

	"github.com/carbonledger/emissions-cli/internal/model"
)

// Filter narrows audit entry listings.
type Filter struct {
	ActivityID string `json:"activity_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Store is the persistence interface for calculation audit entries.
// Implementations must serialize appends so each entry is written
// atomically under concurrent calculation calls; no cross-entry ordering
// is required.
type Store interface {
	Append(ctx context.Context, entry model.CalculationAuditEntry) error
	AppendBatch(ctx context.Context, entries []model.CalculationAuditEntry) error
	List(ctx context.Context, filter Filter) ([]model.CalculationAuditEntry, error)
	Count(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
