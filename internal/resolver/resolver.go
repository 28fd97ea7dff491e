// Package resolver implements the deterministic emission-factor fallback
// chain: exact regional match, macro-region substitution, stored global
// average, computed global average. Every result carries provenance so a
// fallback is always distinguishable from a measured match downstream.
package resolver

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carbonledger/emissions-cli/internal/factorstore"
	"github.com/carbonledger/emissions-cli/internal/model"
	"github.com/carbonledger/emissions-cli/internal/regions"
)

// macroRegionConfidence is the fixed discount applied when a factor is
// substituted from a macro-region instead of the requested region.
const macroRegionConfidence = 0.8

// calculatedRegion marks a factor synthesized from the mean of all
// regional records for an activity/method.
const calculatedRegion = "GLOBAL_CALCULATED"

// NoFactorError is returned when no factor exists at any fallback tier.
// Callers must surface this as a missing-factor condition; it is never
// substituted with a zero factor, which would understate emissions.
type NoFactorError struct {
	Activity string
	Region   string
	Method   string
}

func (e *NoFactorError) Error() string {
	return fmt.Sprintf("resolver: no emission factor for activity %q method %q region %q at any fallback tier",
		e.Activity, e.Method, e.Region)
}

// Resolver resolves lookup requests against the live factor index.
type Resolver struct {
	store   *factorstore.Store
	regions *regions.Table
}

// New creates a Resolver over the given store and region alias table.
func New(store *factorstore.Store, tbl *regions.Table) *Resolver {
	return &Resolver{store: store, regions: tbl}
}

// Resolve executes the fallback chain for an activity, region, and method.
// It is a pure function over the current immutable index: identical
// arguments against identical store contents always produce the same
// factor value, fallback flag, and reason.
//
// Tie-break: when a tier matches multiple records, the first record in
// load order wins.
func (r *Resolver) Resolve(activity, region, method string) (*model.ResolvedFactor, error) {
	activity = strings.ToLower(strings.TrimSpace(activity))
	if activity == "" {
		return nil, eris.New("resolver: activity must not be empty")
	}
	region = strings.ToUpper(strings.TrimSpace(region))
	method = strings.ToLower(strings.TrimSpace(method))

	idx := r.store.Index()
	recs := idx.Records(activity, method)

	// Tier 1: exact regional match.
	for _, rec := range recs {
		if rec.Region == region {
			return r.result(rec, region, false, ""), nil
		}
	}

	// Tier 2: macro-region substitution.
	if aliases := r.regions.Aliases(region); len(aliases) > 0 {
		aliasSet := make(map[string]bool, len(aliases))
		for _, a := range aliases {
			aliasSet[a] = true
		}
		for _, rec := range recs {
			if aliasSet[rec.Region] {
				res := r.result(rec, region, true,
					fmt.Sprintf("Regional fallback from %s to %s", region, rec.Region))
				res.Confidence = macroRegionConfidence
				r.logFallback(res, "macro_region")
				return res, nil
			}
		}
	}

	// Tier 3: stored global average.
	if globals := idx.Globals(activity, method); len(globals) > 0 {
		res := r.result(globals[0], region, true,
			fmt.Sprintf("Global average fallback (original region: %s)", region))
		r.logFallback(res, "global_stored")
		return res, nil
	}

	// Tier 4: computed global average over whatever regional records exist.
	if len(recs) > 0 {
		res := r.computedAverage(recs, activity, method, region)
		r.logFallback(res, "global_calculated")
		return res, nil
	}

	return nil, &NoFactorError{Activity: activity, Region: region, Method: method}
}

func (r *Resolver) result(rec model.FactorRecord, requestedRegion string, fallback bool, reason string) *model.ResolvedFactor {
	return &model.ResolvedFactor{
		ID:              uuid.New().String(),
		ActivityID:      rec.ActivityID,
		Region:          rec.Region,
		RequestedRegion: requestedRegion,
		Method:          rec.Method,
		Year:            rec.Year,
		FactorValue:     rec.FactorValue,
		Unit:            rec.Unit,
		Confidence:      rec.Confidence,
		IsFallback:      fallback,
		FallbackReason:  reason,
		SourceDataset:   rec.SourceDataset,
	}
}

// computedAverage synthesizes a factor from the unweighted arithmetic mean
// of all regional factor values and confidences. The unweighted mean is
// kept for compatibility with existing published figures.
func (r *Resolver) computedAverage(recs []model.FactorRecord, activity, method, requestedRegion string) *model.ResolvedFactor {
	var sumFactor, sumConf float64
	for _, rec := range recs {
		sumFactor += rec.FactorValue
		sumConf += rec.Confidence
	}
	n := float64(len(recs))

	return &model.ResolvedFactor{
		ID:              uuid.New().String(),
		ActivityID:      activity,
		Region:          calculatedRegion,
		RequestedRegion: requestedRegion,
		Method:          method,
		FactorValue:     sumFactor / n,
		Unit:            recs[0].Unit,
		Confidence:      sumConf / n,
		IsFallback:      true,
		FallbackReason:  fmt.Sprintf("Global average fallback (original region: %s)", requestedRegion),
		SourceDataset:   recs[0].SourceDataset,
	}
}

func (r *Resolver) logFallback(res *model.ResolvedFactor, tier string) {
	zap.L().Info("resolver: fallback factor used",
		zap.String("activity", res.ActivityID),
		zap.String("method", res.Method),
		zap.String("requested_region", res.RequestedRegion),
		zap.String("region", res.Region),
		zap.String("tier", tier),
		zap.Float64("confidence", res.Confidence),
	)
}
