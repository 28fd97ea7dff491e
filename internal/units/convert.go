package units

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DimensionalityError is returned when a conversion is attempted between
// incompatible physical dimensions, e.g. liters to kilograms without
// density data. Callers must either supply an explicit conversion or
// reject the activity record.
type DimensionalityError struct {
	From    string
	To      string
	FromDim Dimension
	ToDim   Dimension
}

func (e *DimensionalityError) Error() string {
	return fmt.Sprintf("units: cannot convert %q (%s) to %q (%s)",
		e.From, dimString(e.FromDim), e.To, dimString(e.ToDim))
}

func dimString(d Dimension) string {
	if d == "" {
		return "unknown dimension"
	}
	return string(d)
}

// Normalize lowercases a free-text unit string and resolves known aliases
// to a canonical spelling. Unknown strings pass through (lowercased, so
// that Normalize is idempotent).
func Normalize(unit string) string {
	key := strings.ToLower(strings.TrimSpace(unit))
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return key
}

// DimensionOf classifies a unit string into a physical dimension, or ""
// if the unit is unrecognized.
func DimensionOf(unit string) Dimension {
	if def, ok := defs[Normalize(unit)]; ok {
		return def.dim
	}
	return ""
}

// IsPassthrough reports whether a unit is flagged pass-through (currency,
// CO2e, composite transport units). Pass-through units bypass conversion.
func IsPassthrough(unit string) bool {
	def, ok := defs[Normalize(unit)]
	return ok && def.passthrough
}

// Convert converts a value between two units of the same dimension.
// Pass-through units (currency, CO2e) return the value unchanged with a
// logged warning. A cross-dimension conversion fails with a
// *DimensionalityError rather than silently returning a wrong number.
func Convert(value float64, from, to string) (float64, error) {
	fromN, toN := Normalize(from), Normalize(to)
	if fromN == toN {
		return value, nil
	}

	fromDef, fromOK := defs[fromN]
	toDef, toOK := defs[toN]

	if (fromOK && fromDef.passthrough) || (toOK && toDef.passthrough) {
		zap.L().Warn("units: pass-through unit, value returned unconverted",
			zap.String("from", fromN),
			zap.String("to", toN),
		)
		return value, nil
	}

	if !fromOK || !toOK {
		err := &DimensionalityError{From: fromN, To: toN}
		if fromOK {
			err.FromDim = fromDef.dim
		}
		if toOK {
			err.ToDim = toDef.dim
		}
		return 0, err
	}

	if fromDef.dim != toDef.dim {
		return 0, &DimensionalityError{From: fromN, To: toN, FromDim: fromDef.dim, ToDim: toDef.dim}
	}

	return value * fromDef.toCanonical / toDef.toCanonical, nil
}

// ToCanonical converts a value to the canonical unit of its dimension
// (energy→kWh, mass→kg, distance→km, volume→L, area→m2, time→hour).
// When the dimension cannot be inferred and no hint is given, the value
// passes through unchanged: the policy is to prefer passthrough over
// guessing. A hint only applies when the unit itself is unrecognized.
func ToCanonical(value float64, from string, hint Dimension) (float64, string) {
	fromN := Normalize(from)

	if def, ok := defs[fromN]; ok {
		if def.passthrough {
			return value, fromN
		}
		return value * def.toCanonical, canonicalUnits[def.dim]
	}

	if hint != "" {
		if canonical, ok := canonicalUnits[hint]; ok {
			zap.L().Debug("units: unrecognized unit assumed canonical for hinted dimension",
				zap.String("unit", fromN),
				zap.String("dimension", string(hint)),
			)
			return value, canonical
		}
	}

	return value, fromN
}

// SplitFactorUnit splits a compound factor unit like "kgCO2e/kWh" into its
// numerator (the emission unit) and denominator (the activity unit the
// quantity must be expressed in). A factor unit without a slash has no
// denominator and applies to the activity quantity as-is.
func SplitFactorUnit(unit string) (numerator, denominator string) {
	parts := strings.SplitN(strings.TrimSpace(unit), "/", 2)
	numerator = Normalize(parts[0])
	if len(parts) == 2 {
		denominator = Normalize(parts[1])
	}
	return numerator, denominator
}
