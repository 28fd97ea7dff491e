package model

// FactorRecord is an immutable emission factor entry loaded from a source
// dataset. Records are created once at load time and never mutated; a new
// dataset version supersedes them via a full index reload.
type FactorRecord struct {
	ActivityID    string  `json:"activity_id"`
	Region        string  `json:"region"` // ISO-like code, "GLOBAL", or "WORLD"
	Method        string  `json:"method"` // "quantity" | "spend" | "distance"
	Year          int     `json:"year,omitempty"`
	FactorValue   float64 `json:"factor_value"` // always >= 0, enforced at load
	Unit          string  `json:"unit"`         // e.g. "kgCO2e/kWh"
	Confidence    float64 `json:"confidence"`   // 0.0-1.0
	SourceDataset string  `json:"source_dataset"`
}

// ResolvedFactor is the outcome of a factor lookup, carrying the factor
// itself plus full provenance for downstream disclosure rendering.
type ResolvedFactor struct {
	ID              string  `json:"id"` // unique per resolution
	ActivityID      string  `json:"activity_id"`
	Region          string  `json:"region"` // region actually used to satisfy the request
	RequestedRegion string  `json:"requested_region"`
	Method          string  `json:"method"`
	Year            int     `json:"year,omitempty"`
	FactorValue     float64 `json:"factor_value"`
	Unit            string  `json:"unit"`
	Confidence      float64 `json:"confidence"`
	IsFallback      bool    `json:"is_fallback"`
	FallbackReason  string  `json:"fallback_reason,omitempty"`
	SourceDataset   string  `json:"source_dataset"`
}

// MethodCoverage describes which methods and regions have factors for a
// single activity. Used by operational tooling to find coverage gaps.
type MethodCoverage struct {
	Methods []string `json:"methods"`
	Regions []string `json:"regions"`
}
