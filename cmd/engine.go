package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/carbonledger/emissions-cli/internal/audit"
	"github.com/carbonledger/emissions-cli/internal/calc"
	"github.com/carbonledger/emissions-cli/internal/factorstore"
	"github.com/carbonledger/emissions-cli/internal/regions"
	"github.com/carbonledger/emissions-cli/internal/resolver"
)

// extraDatasets holds --dataset name=path flags, appended to the datasets
// from the config file.
var extraDatasets []string

// engineEnv holds the initialized factor store, resolver, calculator, and
// audit store shared by the resolve/calculate/coverage/serve commands.
type engineEnv struct {
	Store      *factorstore.Store
	Resolver   *resolver.Resolver
	Calculator *calc.Calculator
	Audit      audit.Store
}

// Close releases resources held by the engine environment.
func (e *engineEnv) Close() {
	if e.Audit != nil {
		_ = e.Audit.Close()
	}
}

// initEngine loads all configured datasets into a fresh factor index and
// wires the resolver, calculator, and audit store. Callers should defer
// env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	specs, err := datasetSpecs()
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, eris.New("no datasets configured: set datasets in config.yaml or pass --dataset name=path")
	}

	idx, err := factorstore.LoadAll(ctx, specs)
	if err != nil {
		return nil, err
	}
	store := factorstore.NewStore(idx)

	tbl, err := regionTable()
	if err != nil {
		return nil, err
	}

	auditStore, err := initAudit(ctx)
	if err != nil {
		return nil, err
	}
	if err := auditStore.Migrate(ctx); err != nil {
		_ = auditStore.Close()
		return nil, eris.Wrap(err, "migrate audit store")
	}

	res := resolver.New(store, tbl)
	return &engineEnv{
		Store:      store,
		Resolver:   res,
		Calculator: calc.New(res, auditStore),
		Audit:      auditStore,
	}, nil
}

func datasetSpecs() ([]factorstore.DatasetSpec, error) {
	specs := append([]factorstore.DatasetSpec{}, cfg.Datasets...)
	for _, d := range extraDatasets {
		name, path, ok := strings.Cut(d, "=")
		if !ok || name == "" || path == "" {
			return nil, eris.Errorf("invalid --dataset %q, expected name=path", d)
		}
		specs = append(specs, factorstore.DatasetSpec{Name: name, Path: path})
	}
	return specs, nil
}

func regionTable() (*regions.Table, error) {
	if cfg.Regions.AliasFile == "" {
		return regions.NewTable(), nil
	}
	return regions.LoadTable(cfg.Regions.AliasFile)
}

func initAudit(ctx context.Context) (audit.Store, error) {
	switch cfg.Audit.Driver {
	case "postgres":
		return audit.NewPostgres(ctx, cfg.Audit.DatabaseURL)
	case "sqlite":
		return audit.NewSQLite(cfg.Audit.Path)
	case "memory", "":
		return audit.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown audit driver %q", cfg.Audit.Driver)
	}
}

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&extraDatasets, "dataset", nil, "additional factor dataset as name=path (repeatable)")
}
