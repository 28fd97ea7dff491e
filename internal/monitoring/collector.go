// Package monitoring summarizes the calculation audit trail for operators:
// how much was calculated, how often fallback factors were used, and how
// trustworthy the underlying data was.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/carbonledger/emissions-cli/internal/audit"
)

// Snapshot holds a point-in-time view of calculation activity.
type Snapshot struct {
	// Calculation counts within the lookback window.
	Calculations int `json:"calculations"`
	Fallbacks    int `json:"fallbacks"`

	// FallbackRate is Fallbacks / Calculations. A creeping rate means the
	// factor datasets are losing regional coverage.
	FallbackRate float64 `json:"fallback_rate"`

	// TotalCO2eKg sums emissions across the window.
	TotalCO2eKg float64 `json:"total_co2e_kg"`

	// AvgConfidence averages factor confidence across the window.
	AvgConfidence float64 `json:"avg_confidence"`

	// ByMethod counts calculations per method.
	ByMethod map[string]int `json:"by_method"`

	// DistinctActivities counts unique activity IDs seen in the window.
	DistinctActivities int `json:"distinct_activities"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers snapshots from the audit store.
type Collector struct {
	store audit.Store
}

// NewCollector creates a collector over the given audit store.
func NewCollector(st audit.Store) *Collector {
	return &Collector{store: st}
}

const maxSnapshotEntries = 100000

// Collect summarizes audit entries recorded within the last lookbackHours.
// A lookback of 0 or less covers the whole trail.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	snap := &Snapshot{
		ByMethod:      make(map[string]int),
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	var cutoff time.Time
	if lookbackHours > 0 {
		cutoff = snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)
	}

	entries, err := c.store.List(ctx, audit.Filter{Limit: maxSnapshotEntries})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list audit entries")
	}

	var totalConfidence float64
	activities := make(map[string]bool)
	for _, e := range entries {
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		snap.Calculations++
		if e.IsFallback {
			snap.Fallbacks++
		}
		snap.TotalCO2eKg += e.CO2e
		totalConfidence += e.Confidence
		snap.ByMethod[e.Method]++
		activities[e.ActivityID] = true
	}

	snap.DistinctActivities = len(activities)
	if snap.Calculations > 0 {
		snap.FallbackRate = float64(snap.Fallbacks) / float64(snap.Calculations)
		snap.AvgConfidence = totalConfidence / float64(snap.Calculations)
	}

	return snap, nil
}
