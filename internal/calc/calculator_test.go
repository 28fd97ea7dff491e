package calc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonledger/emissions-cli/internal/audit"
	"github.com/carbonledger/emissions-cli/internal/factorstore"
	"github.com/carbonledger/emissions-cli/internal/model"
	"github.com/carbonledger/emissions-cli/internal/regions"
	"github.com/carbonledger/emissions-cli/internal/resolver"
	"github.com/carbonledger/emissions-cli/internal/units"
)

func newCalculator(t *testing.T, recs ...model.FactorRecord) (*Calculator, *audit.MemoryStore) {
	t.Helper()
	b := factorstore.NewBuilder()
	for _, rec := range recs {
		b.Add(rec)
	}
	r := resolver.New(factorstore.NewStore(b.Build()), regions.NewTable())
	st := audit.NewMemory()
	return New(r, st), st
}

func dieselDE() model.FactorRecord {
	return model.FactorRecord{
		ActivityID:    "diesel",
		Region:        "DE",
		Method:        "quantity",
		FactorValue:   2.65,
		Unit:          "kgCO2e/liter",
		Confidence:    1.0,
		SourceDataset: "DEFRA_2024",
	}
}

func TestCalculate_Diesel(t *testing.T) {
	c, st := newCalculator(t, dieselDE())

	item := model.ActivityRecord{Activity: "diesel", Region: "DE", Quantity: 100, Unit: "liters"}
	res, err := c.Calculate(context.Background(), item, "quantity")
	require.NoError(t, err)

	assert.Equal(t, 265.0, res.CO2e)
	assert.Equal(t, "kgCO2e", res.Unit)
	assert.Equal(t, 100.0, res.Quantity)
	assert.Equal(t, "L", res.QuantityUnit)
	require.NotNil(t, res.Factor)
	assert.False(t, res.Factor.IsFallback)

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCalculate_UnitConversion(t *testing.T) {
	c, _ := newCalculator(t, model.FactorRecord{
		ActivityID: "electricity", Region: "FR", Method: "quantity",
		FactorValue: 0.056, Unit: "kgCO2e/kWh", Confidence: 1.0, SourceDataset: "EPA_2024",
	})

	// 2 MWh = 2000 kWh → 112 kgCO2e
	item := model.ActivityRecord{Activity: "electricity", Region: "FR", Quantity: 2, Unit: "MWh"}
	res, err := c.Calculate(context.Background(), item, "quantity")
	require.NoError(t, err)

	assert.InDelta(t, 112.0, res.CO2e, 1e-9)
	assert.Equal(t, 2000.0, res.Quantity)
	assert.Equal(t, "kWh", res.QuantityUnit)
}

func TestCalculate_DimensionMismatch(t *testing.T) {
	c, st := newCalculator(t, dieselDE())

	// Quantity stated in kg against a per-liter factor: no density data,
	// must fail rather than silently mis-convert.
	item := model.ActivityRecord{Activity: "diesel", Region: "DE", Quantity: 100, Unit: "kg"}
	_, err := c.Calculate(context.Background(), item, "quantity")
	require.Error(t, err)

	var dimErr *units.DimensionalityError
	assert.True(t, errors.As(err, &dimErr))

	// Failed calculations leave no audit entry.
	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCalculate_NonPositiveQuantity(t *testing.T) {
	c, st := newCalculator(t, dieselDE())

	for _, q := range []float64{0, -5} {
		item := model.ActivityRecord{Activity: "diesel", Region: "DE", Quantity: q, Unit: "liters"}
		_, err := c.Calculate(context.Background(), item, "quantity")
		require.Error(t, err)

		var inputErr *InputError
		require.True(t, errors.As(err, &inputErr))
		assert.Equal(t, "quantity", inputErr.Method)
		assert.Equal(t, q, inputErr.Quantity)
	}

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCalculate_MethodSelectsField(t *testing.T) {
	c, _ := newCalculator(t, model.FactorRecord{
		ActivityID: "road_freight", Region: "EU", Method: "distance",
		FactorValue: 0.1, Unit: "kgCO2e/km", Confidence: 0.9, SourceDataset: "DEFRA_2024",
	})

	item := model.ActivityRecord{
		Activity: "road_freight", Region: "EU",
		Quantity: 999, // ignored for distance method
		Distance: 250, Unit: "km",
	}
	res, err := c.Calculate(context.Background(), item, "distance")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, res.CO2e, 1e-9)
}

func TestCalculate_UnknownMethod(t *testing.T) {
	c, _ := newCalculator(t, dieselDE())

	item := model.ActivityRecord{Activity: "diesel", Region: "DE", Quantity: 10, Unit: "L"}
	_, err := c.Calculate(context.Background(), item, "weight")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown method")
}

func TestCalculate_NoFactor(t *testing.T) {
	c, _ := newCalculator(t)

	item := model.ActivityRecord{Activity: "unobtainium", Region: "XX", Quantity: 1, Unit: "kg"}
	_, err := c.Calculate(context.Background(), item, "quantity")
	require.Error(t, err)

	var nfe *resolver.NoFactorError
	assert.True(t, errors.As(err, &nfe))
}

func TestCalculate_AuditCompleteness(t *testing.T) {
	c, st := newCalculator(t, dieselDE())
	ctx := context.Background()

	before, err := st.Count(ctx)
	require.NoError(t, err)

	const n = 7
	for i := 0; i < n; i++ {
		item := model.ActivityRecord{Activity: "diesel", Region: "DE", Quantity: 10, Unit: "L"}
		_, err := c.Calculate(ctx, item, "quantity")
		require.NoError(t, err)
	}

	after, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+n, after)
}

func TestCalculate_AuditCarriesFallbackProvenance(t *testing.T) {
	c, st := newCalculator(t, model.FactorRecord{
		ActivityID: "electricity", Region: "EUROPE", Method: "quantity",
		FactorValue: 0.25, Unit: "kgCO2e/kWh", Confidence: 0.9, SourceDataset: "EXIOBASE_2020",
	})
	ctx := context.Background()

	item := model.ActivityRecord{Activity: "electricity", Region: "DE", Quantity: 100, Unit: "kWh"}
	res, err := c.Calculate(ctx, item, "quantity")
	require.NoError(t, err)
	require.True(t, res.Factor.IsFallback)

	entries, err := st.List(ctx, audit.Filter{ActivityID: "electricity"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.True(t, e.IsFallback)
	assert.Equal(t, "Regional fallback from DE to EUROPE", e.FallbackReason)
	assert.Equal(t, 0.8, e.Confidence)
	assert.Equal(t, res.Factor.ID, e.FactorID)
	assert.Equal(t, "EXIOBASE_2020", e.FactorSource)
}

func TestCalculateAll_Batch(t *testing.T) {
	c, st := newCalculator(t, dieselDE())
	ctx := context.Background()

	items := []model.ActivityRecord{
		{Activity: "diesel", Region: "DE", Quantity: 100, Unit: "liters"},
		{Activity: "diesel", Region: "DE", Quantity: 0, Unit: "liters"}, // zero row
		{Activity: "diesel", Region: "DE", Quantity: 50, Unit: "L"},
	}
	results, err := c.CalculateAll(ctx, items, "quantity")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 265.0, results[0].CO2e)
	assert.True(t, results[1].ZeroActivity)
	assert.Equal(t, 132.5, results[2].CO2e)
	assert.InDelta(t, 397.5, SumCO2e(results), 1e-9)

	// Zero rows are not audited; the two real calculations are.
	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCalculateAll_FailingRowAbortsBatch(t *testing.T) {
	c, st := newCalculator(t, dieselDE())
	ctx := context.Background()

	items := []model.ActivityRecord{
		{Activity: "diesel", Region: "DE", Quantity: 100, Unit: "liters"},
		{Activity: "diesel", Region: "DE", Quantity: 10, Unit: "kg"}, // wrong dimension
	}
	_, err := c.CalculateAll(ctx, items, "quantity")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")

	// Failed batches leave no audit entries at all.
	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestZeroResult(t *testing.T) {
	item := model.ActivityRecord{Activity: "diesel", Region: "DE", Unit: "liters"}
	res := ZeroResult(item, "quantity")

	assert.Equal(t, 0.0, res.CO2e)
	assert.True(t, res.ZeroActivity)
	assert.Equal(t, "L", res.QuantityUnit)
	assert.Nil(t, res.Factor)
}
