package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/carbonledger/emissions-cli/internal/calc"
	"github.com/carbonledger/emissions-cli/internal/config"
	"github.com/carbonledger/emissions-cli/internal/factorstore"
	"github.com/carbonledger/emissions-cli/internal/model"
	"github.com/carbonledger/emissions-cli/internal/monitoring"
	"github.com/carbonledger/emissions-cli/internal/resolver"
	"github.com/carbonledger/emissions-cli/internal/units"
)

// api exposes the engine's three public entry points plus reload over HTTP
// for operational tooling. Report generation itself lives elsewhere.
type api struct {
	env     *engineEnv
	specs   []factorstore.DatasetSpec
	limiter *rate.Limiter
}

func newAPI(env *engineEnv, specs []factorstore.DatasetSpec, cfg config.ServerConfig) *api {
	limit := rate.Limit(cfg.RateLimit)
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &api{env: env, specs: specs, limiter: rate.NewLimiter(limit, burst)}
}

func (a *api) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(a.rateLimit)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/resolve", a.handleResolve)
		r.Post("/calculate", a.handleCalculate)
		r.Get("/coverage", a.handleCoverage)
		r.Get("/stats", a.handleStats)
		r.Post("/reload", a.handleReload)
	})

	return r
}

func (a *api) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !a.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (a *api) handleResolve(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	activity, region, method := q.Get("activity"), q.Get("region"), q.Get("method")
	if activity == "" || region == "" || method == "" {
		writeError(w, http.StatusBadRequest, "activity, region, and method are required")
		return
	}

	res, err := a.env.Resolver.Resolve(activity, region, method)
	if err != nil {
		var nfe *resolver.NoFactorError
		if errors.As(err, &nfe) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleCalculate(w http.ResponseWriter, req *http.Request) {
	var body struct {
		model.ActivityRecord
		Method string `json:"method"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Method == "" {
		body.Method = "quantity"
	}

	res, err := a.env.Calculator.Calculate(req.Context(), body.ActivityRecord, body.Method)
	if err != nil {
		var inputErr *calc.InputError
		var dimErr *units.DimensionalityError
		var nfe *resolver.NoFactorError
		switch {
		case errors.As(err, &inputErr):
			// Non-positive activity resolves to a zero-emission result.
			writeJSON(w, http.StatusOK, calc.ZeroResult(body.ActivityRecord, body.Method))
		case errors.As(err, &dimErr):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &nfe):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			zap.L().Error("api: calculate failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "calculation failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleCoverage(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, a.env.Store.Index().Coverage())
}

func (a *api) handleStats(w http.ResponseWriter, req *http.Request) {
	hours := 0
	if s := req.URL.Query().Get("hours"); s != "" {
		h, err := strconv.Atoi(s)
		if err != nil || h < 0 {
			writeError(w, http.StatusBadRequest, "hours must be a non-negative integer")
			return
		}
		hours = h
	}

	snap, err := monitoring.NewCollector(a.env.Audit).Collect(req.Context(), hours)
	if err != nil {
		zap.L().Error("api: stats collection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stats collection failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleReload rebuilds the factor index from the configured datasets and
// swaps it in atomically. In-flight lookups keep the old index until the
// swap completes.
func (a *api) handleReload(w http.ResponseWriter, req *http.Request) {
	idx, err := factorstore.LoadAll(req.Context(), a.specs)
	if err != nil {
		zap.L().Error("api: reload failed, keeping current index", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	a.env.Store.Swap(idx)
	zap.L().Info("api: factor index reloaded",
		zap.Int("records", idx.Len()),
		zap.Strings("datasets", idx.Datasets()),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "reloaded",
		"records": idx.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
