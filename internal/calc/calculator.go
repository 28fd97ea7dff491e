// Package calc applies resolved emission factors to normalized activity
// quantities and records every calculation in the append-only audit trail.
package calc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carbonledger/emissions-cli/internal/audit"
	"github.com/carbonledger/emissions-cli/internal/model"
	"github.com/carbonledger/emissions-cli/internal/resolver"
	"github.com/carbonledger/emissions-cli/internal/units"
)

// InputError is returned when the activity quantity selected by the method
// is zero or negative. Non-positive activity is either a data error or
// legitimately zero emissions; the caller decides, typically via
// ZeroResult, rather than the calculator proceeding as if the input were
// valid.
type InputError struct {
	Method   string
	Quantity float64
}

func (e *InputError) Error() string {
	return fmt.Sprintf("calc: non-positive %s value %v", e.Method, e.Quantity)
}

// Calculator combines factor resolution, unit normalization, and audit
// logging for a single emission calculation.
type Calculator struct {
	resolver *resolver.Resolver
	audit    audit.Store
}

// New creates a Calculator. The audit store is required: a calculation
// without an audit entry is not defensible in assurance review.
func New(r *resolver.Resolver, auditStore audit.Store) *Calculator {
	return &Calculator{resolver: r, audit: auditStore}
}

// Calculate resolves a factor for the activity record and multiplies it by
// the method-selected quantity, converted into the factor's denominator
// unit. Exactly one audit entry is appended per successful calculation.
//
// Error kinds propagated to the caller:
//   - *InputError for a zero or negative quantity
//   - *units.DimensionalityError when the activity unit cannot be
//     converted to the factor's denominator unit
//   - *resolver.NoFactorError when no factor exists at any fallback tier
func (c *Calculator) Calculate(ctx context.Context, item model.ActivityRecord, method string) (*model.CO2eResult, error) {
	result, entry, err := c.compute(item, method)
	if err != nil {
		return nil, err
	}

	if err := c.audit.Append(ctx, entry); err != nil {
		return nil, eris.Wrap(err, "calc: append audit entry")
	}

	logCalculation(entry)
	return result, nil
}

// CalculateAll processes a batch of activity records under one method.
// Rows with non-positive quantities resolve to zero results; any other
// error fails the batch with the offending row's position. Audit entries
// for the whole batch are written in a single atomic append, so a failed
// batch leaves no partial trail.
func (c *Calculator) CalculateAll(ctx context.Context, items []model.ActivityRecord, method string) ([]*model.CO2eResult, error) {
	results := make([]*model.CO2eResult, 0, len(items))
	entries := make([]model.CalculationAuditEntry, 0, len(items))

	for i, item := range items {
		result, entry, err := c.compute(item, method)
		if err != nil {
			var inputErr *InputError
			if errors.As(err, &inputErr) {
				results = append(results, ZeroResult(item, method))
				continue
			}
			return nil, eris.Wrapf(err, "calc: row %d (%s)", i+1, item.Activity)
		}
		results = append(results, result)
		entries = append(entries, entry)
	}

	if err := c.audit.AppendBatch(ctx, entries); err != nil {
		return nil, eris.Wrap(err, "calc: append audit batch")
	}

	for _, entry := range entries {
		logCalculation(entry)
	}
	return results, nil
}

func (c *Calculator) compute(item model.ActivityRecord, method string) (*model.CO2eResult, model.CalculationAuditEntry, error) {
	var none model.CalculationAuditEntry

	quantity, err := extractQuantity(item, method)
	if err != nil {
		return nil, none, err
	}

	factor, err := c.resolver.Resolve(item.Activity, item.Region, method)
	if err != nil {
		return nil, none, err
	}

	co2eUnit, denominator := units.SplitFactorUnit(factor.Unit)

	normalized := quantity
	normalizedUnit := units.Normalize(item.Unit)
	if denominator != "" {
		normalized, err = units.Convert(quantity, item.Unit, denominator)
		if err != nil {
			return nil, none, err
		}
		normalizedUnit = denominator
	}

	co2e := normalized * factor.FactorValue

	entry := model.CalculationAuditEntry{
		ID:             uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		ActivityID:     factor.ActivityID,
		Method:         factor.Method,
		Region:         factor.Region,
		Quantity:       normalized,
		Unit:           normalizedUnit,
		FactorID:       factor.ID,
		FactorValue:    factor.FactorValue,
		FactorSource:   factor.SourceDataset,
		Confidence:     factor.Confidence,
		IsFallback:     factor.IsFallback,
		FallbackReason: factor.FallbackReason,
		CO2e:           co2e,
		CO2eUnit:       co2eUnit,
	}

	result := &model.CO2eResult{
		CO2e:         co2e,
		Unit:         co2eUnit,
		Quantity:     normalized,
		QuantityUnit: normalizedUnit,
		Factor:       factor,
	}
	return result, entry, nil
}

func logCalculation(entry model.CalculationAuditEntry) {
	zap.L().Info("calc: emission calculated",
		zap.String("activity", entry.ActivityID),
		zap.String("method", entry.Method),
		zap.String("region", entry.Region),
		zap.Float64("quantity", entry.Quantity),
		zap.String("unit", entry.Unit),
		zap.Float64("co2e", entry.CO2e),
		zap.String("co2e_unit", entry.CO2eUnit),
		zap.Bool("is_fallback", entry.IsFallback),
	)
}

// ZeroResult is the caller-side resolution of an InputError: a zero
// emission result with a logged warning, for activity lines that are
// legitimately zero.
func ZeroResult(item model.ActivityRecord, method string) *model.CO2eResult {
	zap.L().Warn("calc: non-positive activity treated as zero emissions",
		zap.String("activity", item.Activity),
		zap.String("method", method),
		zap.String("region", item.Region),
	)
	return &model.CO2eResult{
		CO2e:         0,
		Unit:         "kgCO2e",
		QuantityUnit: units.Normalize(item.Unit),
		ZeroActivity: true,
	}
}

// extractQuantity pulls the raw quantity from the field matching the
// calculation method.
func extractQuantity(item model.ActivityRecord, method string) (float64, error) {
	var q float64
	switch method {
	case "quantity":
		q = item.Quantity
	case "spend":
		q = item.Spend
	case "distance":
		q = item.Distance
	default:
		return 0, eris.Errorf("calc: unknown method %q", method)
	}
	if q <= 0 {
		return 0, &InputError{Method: method, Quantity: q}
	}
	return q, nil
}
