package factorstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/carbonledger/emissions-cli/internal/model"
)

// validMethods are the calculation methods a factor row may declare.
var validMethods = map[string]bool{
	"quantity": true,
	"spend":    true,
	"distance": true,
}

// DatasetSpec describes one factor source file to load.
type DatasetSpec struct {
	Name    string `yaml:"name" mapstructure:"name"`       // e.g. "DEFRA_2024"
	Path    string `yaml:"path" mapstructure:"path"`       // .csv or .xlsx
	Charset string `yaml:"charset" mapstructure:"charset"` // optional, e.g. "latin1"
	Sheet   string `yaml:"sheet" mapstructure:"sheet"`     // optional XLSX sheet name
}

// LoadError is a fatal dataset load failure pinned to a specific row.
// The store never skips a malformed row silently: an incomplete factor
// table is a correctness risk for regulatory output, so the row number is
// surfaced for operator correction.
type LoadError struct {
	Dataset string
	Row     int // 1-based, counting the header
	Reason  string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("factorstore: %s row %d: %s", e.Dataset, e.Row, e.Reason)
}

// requiredColumns must all be present in a factor source header.
var requiredColumns = []string{"activity_id", "region", "method", "factor", "unit"}

// LoadAll parses every dataset file concurrently, then builds a single
// index with records inserted in spec order (and file order within each
// spec), keeping the resolver's first-wins tie-break deterministic across
// reloads.
func LoadAll(ctx context.Context, specs []DatasetSpec) (*Index, error) {
	results := make([][]model.FactorRecord, len(specs))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, spec := range specs {
		g.Go(func() error {
			recs, err := LoadFile(spec)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := NewBuilder()
	for i, spec := range specs {
		for _, rec := range results[i] {
			b.Add(rec)
		}
		b.AddDataset(spec.Name)
		zap.L().Info("factorstore: dataset loaded",
			zap.String("dataset", spec.Name),
			zap.String("path", spec.Path),
			zap.Int("rows", len(results[i])),
		)
	}
	return b.Build(), nil
}

// LoadFile loads one dataset file, choosing the parser by extension and
// wrapping the reader with a charset decoder when the spec names one.
func LoadFile(spec DatasetSpec) ([]model.FactorRecord, error) {
	if strings.EqualFold(filepath.Ext(spec.Path), ".xlsx") {
		return LoadXLSX(spec.Path, spec)
	}

	f, err := os.Open(spec.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "factorstore: %s: open", spec.Name)
	}
	defer f.Close()

	var r io.Reader = f
	if spec.Charset != "" {
		enc, err := htmlindex.Get(spec.Charset)
		if err != nil {
			return nil, eris.Wrapf(err, "factorstore: %s: unknown charset %q", spec.Name, spec.Charset)
		}
		r = enc.NewDecoder().Reader(f)
	}

	return LoadCSV(r, spec)
}

// LoadCSV parses factor rows from r in file order, failing fast with a
// *LoadError on the first malformed row.
func LoadCSV(r io.Reader, spec DatasetSpec) ([]model.FactorRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "factorstore: %s: read header", spec.Name)
	}

	colIdx, err := mapColumns(spec, header)
	if err != nil {
		return nil, err
	}

	var recs []model.FactorRecord
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{Dataset: spec.Name, Row: row, Reason: err.Error()}
		}

		rec, lerr := parseRow(spec, row, record, colIdx)
		if lerr != nil {
			return nil, lerr
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

// LoadXLSX parses factor rows from an XLSX workbook sheet. Sheet selection
// follows spec.Sheet, defaulting to the first sheet. Blank rows (common in
// published workbooks) are skipped; malformed rows still fail fast.
func LoadXLSX(path string, spec DatasetSpec) ([]model.FactorRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "factorstore: %s: open xlsx", spec.Name)
	}

	sheet, err := pickSheet(f, spec)
	if err != nil {
		return nil, err
	}

	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("factorstore: %s: empty sheet", spec.Name)
	}

	colIdx, err := mapColumns(spec, rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var recs []model.FactorRecord
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if isBlankRow(cells) {
			continue
		}
		rec, lerr := parseRow(spec, i+2, cells, colIdx)
		if lerr != nil {
			return nil, lerr
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

func pickSheet(f *xlsx.File, spec DatasetSpec) (*xlsx.Sheet, error) {
	if spec.Sheet != "" {
		sheet, ok := f.Sheet[spec.Sheet]
		if !ok {
			return nil, eris.Errorf("factorstore: %s: sheet %q not found", spec.Name, spec.Sheet)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("factorstore: %s: workbook has no sheets", spec.Name)
	}
	return f.Sheets[0], nil
}

func parseRow(spec DatasetSpec, row int, record []string, colIdx map[string]int) (model.FactorRecord, *LoadError) {
	fail := func(reason string) (model.FactorRecord, *LoadError) {
		return model.FactorRecord{}, &LoadError{Dataset: spec.Name, Row: row, Reason: reason}
	}

	activity := strings.ToLower(strings.TrimSpace(getCol(record, colIdx, "activity_id")))
	if activity == "" {
		return fail("empty activity_id")
	}

	region := strings.ToUpper(strings.TrimSpace(getCol(record, colIdx, "region")))
	if region == "" {
		return fail("empty region")
	}

	method := strings.ToLower(strings.TrimSpace(getCol(record, colIdx, "method")))
	if !validMethods[method] {
		return fail(fmt.Sprintf("invalid method %q", method))
	}

	factorStr := strings.TrimSpace(getCol(record, colIdx, "factor"))
	factor, err := strconv.ParseFloat(factorStr, 64)
	if err != nil {
		return fail(fmt.Sprintf("non-numeric factor %q", factorStr))
	}
	if factor < 0 {
		return fail(fmt.Sprintf("negative factor %v", factor))
	}

	unit := strings.TrimSpace(getCol(record, colIdx, "unit"))
	if unit == "" {
		return fail("empty unit")
	}

	confidence := 1.0
	if s := strings.TrimSpace(getCol(record, colIdx, "confidence")); s != "" {
		confidence, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return fail(fmt.Sprintf("non-numeric confidence %q", s))
		}
		if confidence < 0 || confidence > 1 {
			return fail(fmt.Sprintf("confidence %v outside [0,1]", confidence))
		}
	}

	year := 0
	if s := strings.TrimSpace(getCol(record, colIdx, "year")); s != "" {
		year, err = strconv.Atoi(s)
		if err != nil {
			return fail(fmt.Sprintf("non-numeric year %q", s))
		}
	}

	source := strings.TrimSpace(getCol(record, colIdx, "source_dataset"))
	if source == "" {
		source = spec.Name
	}

	return model.FactorRecord{
		ActivityID:    activity,
		Region:        region,
		Method:        method,
		Year:          year,
		FactorValue:   factor,
		Unit:          unit,
		Confidence:    confidence,
		SourceDataset: source,
	}, nil
}

// mapColumns builds a normalized column name → index map and verifies all
// required columns are present.
func mapColumns(spec DatasetSpec, header []string) (map[string]int, error) {
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[normalizeCol(col)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, &LoadError{Dataset: spec.Name, Row: 1, Reason: fmt.Sprintf("missing required column %q", col)}
		}
	}
	return colIdx, nil
}

// normalizeCol lowercases and squashes spaces for cross-format column
// matching: "Activity ID" → "activity_id".
func normalizeCol(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
