package calc

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/carbonledger/emissions-cli/internal/model"
)

// activityColumns that must be present in an activity ledger header.
var activityColumns = []string{"activity", "region", "unit"}

// ReadActivities parses an activity ledger CSV into records for batch
// calculation. Required columns: activity, region, unit. Optional columns:
// quantity, spend, distance, scope. Malformed rows fail the whole file; a
// partially processed ledger would silently understate totals.
func ReadActivities(path string) ([]model.ActivityRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "calc: open activity ledger")
	}
	defer f.Close()

	return ParseActivities(f)
}

// ParseActivities parses activity rows from r in file order.
func ParseActivities(r io.Reader) ([]model.ActivityRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "calc: read activity header")
	}

	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(col)), " ", "_")
		colIdx[name] = i
	}
	for _, col := range activityColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("calc: activity ledger missing required column %q", col)
		}
	}

	get := func(record []string, name string) string {
		idx, ok := colIdx[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var items []model.ActivityRecord
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Errorf("calc: activity ledger row %d: %v", row, err)
		}

		item := model.ActivityRecord{
			Activity: strings.ToLower(get(record, "activity")),
			Region:   strings.ToUpper(get(record, "region")),
			Unit:     get(record, "unit"),
		}
		if item.Activity == "" {
			return nil, eris.Errorf("calc: activity ledger row %d: empty activity", row)
		}
		if item.Region == "" {
			return nil, eris.Errorf("calc: activity ledger row %d: empty region", row)
		}
		if item.Unit == "" {
			return nil, eris.Errorf("calc: activity ledger row %d: empty unit", row)
		}

		for _, field := range []struct {
			name string
			dst  *float64
		}{
			{"quantity", &item.Quantity},
			{"spend", &item.Spend},
			{"distance", &item.Distance},
		} {
			s := get(record, field.name)
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, eris.Errorf("calc: activity ledger row %d: non-numeric %s %q", row, field.name, s)
			}
			*field.dst = v
		}

		if s := get(record, "scope"); s != "" {
			scope, err := strconv.Atoi(s)
			if err != nil || scope < 1 || scope > 3 {
				return nil, eris.Errorf("calc: activity ledger row %d: invalid scope %q", row, s)
			}
			item.Scope = scope
		}

		items = append(items, item)
	}

	return items, nil
}

// SumCO2e totals the emissions across batch results, in kgCO2e.
func SumCO2e(results []*model.CO2eResult) float64 {
	var total float64
	for _, r := range results {
		total += r.CO2e
	}
	return total
}
