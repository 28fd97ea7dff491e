package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonledger/emissions-cli/internal/audit"
	"github.com/carbonledger/emissions-cli/internal/calc"
	"github.com/carbonledger/emissions-cli/internal/config"
	"github.com/carbonledger/emissions-cli/internal/factorstore"
	"github.com/carbonledger/emissions-cli/internal/model"
	"github.com/carbonledger/emissions-cli/internal/monitoring"
	"github.com/carbonledger/emissions-cli/internal/regions"
	"github.com/carbonledger/emissions-cli/internal/resolver"
)

func testEnv(recs ...model.FactorRecord) *engineEnv {
	b := factorstore.NewBuilder()
	for _, rec := range recs {
		b.Add(rec)
	}
	store := factorstore.NewStore(b.Build())
	res := resolver.New(store, regions.NewTable())
	auditStore := audit.NewMemory()
	return &engineEnv{
		Store:      store,
		Resolver:   res,
		Calculator: calc.New(res, auditStore),
		Audit:      auditStore,
	}
}

func testServer(t *testing.T, env *engineEnv, specs []factorstore.DatasetSpec) *httptest.Server {
	t.Helper()
	a := newAPI(env, specs, config.ServerConfig{})
	srv := httptest.NewServer(a.routes())
	t.Cleanup(srv.Close)
	return srv
}

func dieselRecord() model.FactorRecord {
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

func TestAPI_Health(t *testing.T) {
	srv := testServer(t, testEnv(), nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Resolve(t *testing.T) {
	srv := testServer(t, testEnv(dieselRecord()), nil)

	resp, err := http.Get(srv.URL + "/v1/resolve?activity=diesel&region=DE&method=quantity")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res model.ResolvedFactor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 2.65, res.FactorValue)
	assert.False(t, res.IsFallback)
}

func TestAPI_Resolve_NotFound(t *testing.T) {
	srv := testServer(t, testEnv(dieselRecord()), nil)

	resp, err := http.Get(srv.URL + "/v1/resolve?activity=unobtainium&region=XX&method=quantity")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Resolve_MissingParams(t *testing.T) {
	srv := testServer(t, testEnv(dieselRecord()), nil)

	resp, err := http.Get(srv.URL + "/v1/resolve?activity=diesel")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Calculate(t *testing.T) {
	env := testEnv(dieselRecord())
	srv := testServer(t, env, nil)

	body := `{"activity":"diesel","region":"DE","method":"quantity","quantity":100,"unit":"liters"}`
	resp, err := http.Post(srv.URL+"/v1/calculate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res model.CO2eResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 265.0, res.CO2e)
	assert.Equal(t, "kgCO2e", res.Unit)
}

func TestAPI_Calculate_ZeroActivity(t *testing.T) {
	srv := testServer(t, testEnv(dieselRecord()), nil)

	body := `{"activity":"diesel","region":"DE","method":"quantity","quantity":0,"unit":"liters"}`
	resp, err := http.Post(srv.URL+"/v1/calculate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res model.CO2eResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 0.0, res.CO2e)
	assert.True(t, res.ZeroActivity)
}

func TestAPI_Calculate_DimensionMismatch(t *testing.T) {
	srv := testServer(t, testEnv(dieselRecord()), nil)

	body := `{"activity":"diesel","region":"DE","method":"quantity","quantity":100,"unit":"kg"}`
	resp, err := http.Post(srv.URL+"/v1/calculate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Calculate_NoFactor(t *testing.T) {
	srv := testServer(t, testEnv(), nil)

	body := `{"activity":"unobtainium","region":"XX","method":"quantity","quantity":10,"unit":"kg"}`
	resp, err := http.Post(srv.URL+"/v1/calculate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Coverage(t *testing.T) {
	srv := testServer(t, testEnv(dieselRecord()), nil)

	resp, err := http.Get(srv.URL + "/v1/coverage")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cov map[string]model.MethodCoverage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cov))
	require.Contains(t, cov, "diesel")
	assert.Equal(t, []string{"quantity"}, cov["diesel"].Methods)
}

func TestAPI_Stats(t *testing.T) {
	env := testEnv(dieselRecord())
	srv := testServer(t, env, nil)

	body := `{"activity":"diesel","region":"DE","method":"quantity","quantity":100,"unit":"liters"}`
	resp, err := http.Post(srv.URL+"/v1/calculate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap monitoring.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, 1, snap.Calculations)
	assert.InDelta(t, 265.0, snap.TotalCO2eKg, 1e-9)
}

func TestAPI_Stats_BadHours(t *testing.T) {
	srv := testServer(t, testEnv(), nil)

	resp, err := http.Get(srv.URL + "/v1/stats?hours=soon")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factors.csv")
	csvData := "activity_id,region,method,factor,unit\npetrol,GB,quantity,2.31,kgCO2e/liter\n"
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0o644))

	env := testEnv(dieselRecord())
	specs := []factorstore.DatasetSpec{{Name: "DEFRA_2025", Path: path}}
	srv := testServer(t, env, specs)

	resp, err := http.Post(srv.URL+"/v1/reload", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The swapped-in index replaces the old contents entirely.
	idx := env.Store.Index()
	assert.Empty(t, idx.Records("diesel", "quantity"))
	assert.Len(t, idx.Records("petrol", "quantity"), 1)
}

func TestAPI_Reload_BadDatasetKeepsIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	csvData := "activity_id,region,method,factor,unit\npetrol,GB,quantity,not-a-number,kgCO2e/liter\n"
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0o644))

	env := testEnv(dieselRecord())
	specs := []factorstore.DatasetSpec{{Name: "BAD", Path: path}}
	srv := testServer(t, env, specs)

	resp, err := http.Post(srv.URL+"/v1/reload", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Current index is untouched after a failed reload.
	assert.Len(t, env.Store.Index().Records("diesel", "quantity"), 1)
}

func TestAPI_RateLimit(t *testing.T) {
	env := testEnv(dieselRecord())
	a := newAPI(env, nil, config.ServerConfig{RateLimit: 0.001, RateBurst: 1})
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
