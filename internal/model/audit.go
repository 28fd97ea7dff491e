package model

import "time"

// CalculationAuditEntry records the full inputs and outputs of one emission
// calculation. Entries are append-only and never mutated or deleted; the
// audit trail is the basis for external assurance review.
type CalculationAuditEntry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ActivityID    string    `json:"activity_id"`
	Method        string    `json:"method"`
	Region        string    `json:"region"`
	Quantity      float64   `json:"quantity"` // normalized quantity
	Unit          string    `json:"unit"`     // unit of the normalized quantity
	FactorID      string    `json:"factor_id"`
	FactorValue   float64   `json:"factor_value"`
	FactorSource  string    `json:"factor_source"`
	Confidence    float64   `json:"confidence"`
	IsFallback    bool      `json:"is_fallback"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
	CO2e          float64   `json:"co2e"`
	CO2eUnit      string    `json:"co2e_unit"`
}
