// Package model defines the value types shared across the factor engine:
// factor records, activity records, resolution results, and audit entries.
package model

// ActivityRecord is one line of activity data as produced by the ingestion
// layer. Exactly one of Quantity, Spend, or Distance is meaningful for a
// given calculation, selected by the method.
type ActivityRecord struct {
	Activity string  `json:"activity"`
	Region   string  `json:"region"`
	Scope    int     `json:"scope,omitempty"` // GHG Protocol scope 1/2/3
	Quantity float64 `json:"quantity,omitempty"`
	Spend    float64 `json:"spend,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Unit     string  `json:"unit"`
}

// CO2eResult is the outcome of a single emission calculation.
type CO2eResult struct {
	CO2e           float64         `json:"co2e"`
	Unit           string          `json:"unit"` // e.g. "kgCO2e"
	Quantity       float64         `json:"quantity"`      // normalized quantity the factor was applied to
	QuantityUnit   string          `json:"quantity_unit"` // unit of the normalized quantity
	Factor         *ResolvedFactor `json:"factor,omitempty"`
	ZeroActivity   bool            `json:"zero_activity,omitempty"` // true when non-positive input was resolved to zero
}
