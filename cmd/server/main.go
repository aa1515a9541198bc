// Command server runs the respgw OpenResponses-to-Chat-Completions gateway.
//
// Configuration can be provided via:
//   - YAML config file (--config flag, RESPGW_CONFIG env, ./config.yaml, /etc/respgw/config.yaml)
//   - Environment variables with the RESPGW_ prefix (override config file values)
//
// See the field comments in pkg/config (config.go) for the available settings
// and their defaults.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rhuss/respgw/pkg/auth"
	"github.com/rhuss/respgw/pkg/backend"
	"github.com/rhuss/respgw/pkg/breaker"
	"github.com/rhuss/respgw/pkg/catalog"
	"github.com/rhuss/respgw/pkg/config"
	"github.com/rhuss/respgw/pkg/debug"
	"github.com/rhuss/respgw/pkg/gateway"
	"github.com/rhuss/respgw/pkg/observability"
	transporthttp "github.com/rhuss/respgw/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init(os.Getenv("RESPGW_DEBUG"), cfg.LogLevel)

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout)
	client.SetConnectTimeout(cfg.Backend.ConnectTimeout)
	if cfg.Backend.DefaultModel != "" {
		client.ModelMapper = func(model string) string {
			if model == "" {
				return cfg.Backend.DefaultModel
			}
			return model
		}
	}

	var br *breaker.Breaker
	if cfg.Gateway.BreakerEnabled {
		br = breaker.New(cfg.Gateway.BreakerFailureThreshold, cfg.Gateway.BreakerOpenDuration)
		slog.Info("circuit breaker enabled",
			"failure_threshold", cfg.Gateway.BreakerFailureThreshold,
			"open_duration", cfg.Gateway.BreakerOpenDuration)
	}

	var cat *catalog.Catalog
	catalogCtx, cancelCatalog := context.WithCancel(context.Background())
	defer cancelCatalog()
	if cfg.Gateway.ModelCacheRefresh > 0 {
		cat = catalog.New(&modelLister{client}, cfg.Gateway.ModelCacheRefresh)
		cat.Start(catalogCtx)
		defer cat.Stop()
		slog.Info("model catalog enabled", "refresh", cfg.Gateway.ModelCacheRefresh)
	}

	orch := gateway.NewOrchestrator(client,
		gateway.WithBreaker(br),
		gateway.WithCatalog(cat),
		gateway.WithChannelCapacity(cfg.Gateway.ClientChannelCapacity),
	)
	client.MaxLineSize = cfg.Gateway.SSEBufferCap

	srv := transporthttp.NewServer(orch,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithShutdownTimeout(30*time.Second),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
	)

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.HandleFunc("GET /health", newHealthHandler(br, cat))

	if cfg.Observability.Metrics.Enabled {
		metricsPath := cfg.Observability.Metrics.Path
		mux.Handle("GET "+metricsPath, promhttp.Handler())
		slog.Info("metrics endpoint enabled", "path", metricsPath)
	}

	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	if cfg.Observability.Metrics.Enabled {
		handler = observability.MetricsMiddleware(handler)
	}
	srv.SetHandler(handler)

	slog.Info("server starting",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.URL,
		"auth_type", cfg.Auth.Type,
		"breaker_enabled", cfg.Gateway.BreakerEnabled)

	return srv.ListenAndServe()
}

// healthResponse mirrors the JSON shape the gateway's /health endpoint
// returns, reflecting circuit breaker and model catalog state.
type healthResponse struct {
	Status         string             `json:"status"`
	CircuitBreaker circuitBreakerInfo `json:"circuit_breaker"`
	UptimeSeconds  float64            `json:"uptime_seconds"`
	ModelCache     modelCacheInfo     `json:"model_cache"`
}

type circuitBreakerInfo struct {
	Enabled             bool `json:"enabled"`
	IsOpen              bool `json:"is_open"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
}

type modelCacheInfo struct {
	ModelsCount int  `json:"models_count"`
	Healthy     bool `json:"healthy"`
}

func newHealthHandler(br *breaker.Breaker, cat *catalog.Catalog) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:        "ok",
			UptimeSeconds: time.Since(started).Seconds(),
		}

		if br != nil {
			resp.CircuitBreaker.Enabled = true
			resp.CircuitBreaker.IsOpen = br.State() == breaker.Open
			resp.CircuitBreaker.ConsecutiveFailures = br.FailureCount()
		}

		if cat != nil {
			resp.ModelCache.ModelsCount = cat.Size()
			resp.ModelCache.Healthy = cat.Known()
		}

		status := http.StatusOK
		if resp.CircuitBreaker.IsOpen || (cat != nil && !resp.ModelCache.Healthy) {
			status = http.StatusServiceUnavailable
			resp.Status = "degraded"
		}

		observability.BreakerState.Set(float64(breakerStateValue(br)))
		observability.ModelCatalogSize.Set(float64(resp.ModelCache.ModelsCount))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}

func breakerStateValue(br *breaker.Breaker) int {
	if br == nil {
		return 0
	}
	switch br.State() {
	case breaker.Open:
		return 1
	case breaker.HalfOpen:
		return 2
	default:
		return 0
	}
}

// modelLister adapts backend.Client to catalog.Lister, converting
// backend.ModelInfo to catalog.ModelInfo to avoid an import cycle between
// the two packages.
type modelLister struct {
	client *backend.Client
}

func (m *modelLister) ListModels(ctx context.Context) ([]catalog.ModelInfo, error) {
	models, err := m.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.ModelInfo, 0, len(models))
	for _, mi := range models {
		out = append(out, catalog.ModelInfo{ID: mi.ID, Object: mi.Object, OwnedBy: mi.OwnedBy, SupportedFeatures: mi.SupportedFeatures})
	}
	return out, nil
}
