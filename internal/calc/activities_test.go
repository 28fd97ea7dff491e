package calc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonledger/emissions-cli/internal/model"
)

const sampleLedger = `activity,region,quantity,unit,scope
Diesel,de,100,liters,1
electricity,FR,350,kWh,2
`

func TestParseActivities(t *testing.T) {
	items, err := ParseActivities(strings.NewReader(sampleLedger))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "diesel", items[0].Activity)
	assert.Equal(t, "DE", items[0].Region)
	assert.Equal(t, 100.0, items[0].Quantity)
	assert.Equal(t, "liters", items[0].Unit)
	assert.Equal(t, 1, items[0].Scope)

	assert.Equal(t, "electricity", items[1].Activity)
	assert.Equal(t, 2, items[1].Scope)
}

func TestParseActivities_OptionalColumns(t *testing.T) {
	ledger := "activity,region,unit,spend,distance\nconsulting,US,EUR,1200,\nfreight,DE,tonne-km,,450\n"
	items, err := ParseActivities(strings.NewReader(ledger))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, 1200.0, items[0].Spend)
	assert.Equal(t, 450.0, items[1].Distance)
	assert.Zero(t, items[0].Scope)
}

func TestParseActivities_Errors(t *testing.T) {
	tests := []struct {
		name    string
		ledger  string
		wantMsg string
	}{
		{
			name:    "missing required column",
			ledger:  "activity,quantity,unit\ndiesel,100,L\n",
			wantMsg: `missing required column "region"`,
		},
		{
			name:    "empty activity",
			ledger:  "activity,region,unit\n,DE,L\n",
			wantMsg: "row 2: empty activity",
		},
		{
			name:    "non-numeric quantity",
			ledger:  "activity,region,quantity,unit\ndiesel,DE,lots,L\n",
			wantMsg: `non-numeric quantity "lots"`,
		},
		{
			name:    "invalid scope",
			ledger:  "activity,region,unit,scope\ndiesel,DE,L,9\n",
			wantMsg: `invalid scope "9"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseActivities(strings.NewReader(tt.ledger))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestReadActivities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleLedger), 0o644))

	items, err := ReadActivities(path)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestReadActivities_MissingFile(t *testing.T) {
	_, err := ReadActivities(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestSumCO2e(t *testing.T) {
	results := []*model.CO2eResult{
		{CO2e: 265},
		{CO2e: 112},
		{CO2e: 0, ZeroActivity: true},
	}
	assert.Equal(t, 377.0, SumCO2e(results))
}
