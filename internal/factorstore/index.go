// Package factorstore loads and indexes emission factor records from source
// datasets (DEFRA, EPA, EXIOBASE, CBAM) and exposes them for lookup. The
// index is built once per load and read-only afterwards; reload swaps in a
// fresh index atomically so in-flight lookups never see a partial table.
package factorstore

import (
	"sort"
	"sync/atomic"

	"github.com/carbonledger/emissions-cli/internal/model"
)

// globalRegions are the region codes that qualify a record for the
// global-average index.
var globalRegions = map[string]bool{
	"GLOBAL": true,
	"WORLD":  true,
}

// Index is an immutable in-memory factor index: activity → method →
// records in load order, plus a parallel global-averages index restricted
// to records with region GLOBAL/WORLD. Every record in globals also
// appears in records under the same key.
type Index struct {
	records  map[string]map[string][]model.FactorRecord
	globals  map[string]map[string][]model.FactorRecord
	datasets []string
	total    int
}

// Builder accumulates factor records in insertion order and produces an
// immutable Index.
type Builder struct {
	idx *Index
}

// NewBuilder returns an empty index builder.
func NewBuilder() *Builder {
	return &Builder{idx: &Index{
		records: make(map[string]map[string][]model.FactorRecord),
		globals: make(map[string]map[string][]model.FactorRecord),
	}}
}

// Add inserts a validated record. Insertion order is preserved per
// activity/method key; the resolver's tie-break depends on it.
func (b *Builder) Add(rec model.FactorRecord) {
	insert(b.idx.records, rec)
	if globalRegions[rec.Region] {
		insert(b.idx.globals, rec)
	}
	b.idx.total++
}

// AddDataset records the name of a loaded source dataset.
func (b *Builder) AddDataset(name string) {
	b.idx.datasets = append(b.idx.datasets, name)
}

// Build returns the accumulated Index. The builder must not be used after.
func (b *Builder) Build() *Index {
	idx := b.idx
	b.idx = nil
	return idx
}

func insert(m map[string]map[string][]model.FactorRecord, rec model.FactorRecord) {
	byMethod, ok := m[rec.ActivityID]
	if !ok {
		byMethod = make(map[string][]model.FactorRecord)
		m[rec.ActivityID] = byMethod
	}
	byMethod[rec.Method] = append(byMethod[rec.Method], rec)
}

// Records returns all records for an activity and method in load order.
// The returned slice is shared and must not be modified.
func (idx *Index) Records(activity, method string) []model.FactorRecord {
	if byMethod, ok := idx.records[activity]; ok {
		return byMethod[method]
	}
	return nil
}

// Globals returns the global-average records for an activity and method.
func (idx *Index) Globals(activity, method string) []model.FactorRecord {
	if byMethod, ok := idx.globals[activity]; ok {
		return byMethod[method]
	}
	return nil
}

// Len returns the total number of indexed records.
func (idx *Index) Len() int { return idx.total }

// Datasets returns the names of the datasets the index was built from.
func (idx *Index) Datasets() []string { return idx.datasets }

// Coverage reports, per activity, which methods and regions have at least
// one factor. Methods and regions are sorted for stable output.
func (idx *Index) Coverage() map[string]model.MethodCoverage {
	out := make(map[string]model.MethodCoverage, len(idx.records))
	for activity, byMethod := range idx.records {
		var methods []string
		regionSet := make(map[string]bool)
		for method, recs := range byMethod {
			methods = append(methods, method)
			for _, rec := range recs {
				regionSet[rec.Region] = true
			}
		}
		regions := make([]string, 0, len(regionSet))
		for r := range regionSet {
			regions = append(regions, r)
		}
		sort.Strings(methods)
		sort.Strings(regions)
		out[activity] = model.MethodCoverage{Methods: methods, Regions: regions}
	}
	return out
}

// Store holds the live factor index. Reload replaces the whole index with
// a single pointer swap, so concurrent readers always observe a fully
// consistent table and never need locking.
type Store struct {
	idx atomic.Pointer[Index]
}

// NewStore creates a Store serving the given index.
func NewStore(idx *Index) *Store {
	s := &Store{}
	s.idx.Store(idx)
	return s
}

// Index returns the current live index.
func (s *Store) Index() *Index {
	return s.idx.Load()
}

// Swap atomically replaces the live index and returns the previous one.
func (s *Store) Swap(idx *Index) *Index {
	return s.idx.Swap(idx)
}
