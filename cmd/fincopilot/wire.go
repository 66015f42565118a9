package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fincopilot/fincopilot/internal/agent"
	"github.com/fincopilot/fincopilot/internal/app"
	"github.com/fincopilot/fincopilot/internal/config"
	"github.com/fincopilot/fincopilot/internal/embeddings"
	"github.com/fincopilot/fincopilot/internal/llm/factory"
	"github.com/fincopilot/fincopilot/internal/memory"
	"github.com/fincopilot/fincopilot/internal/metrics"
	"github.com/fincopilot/fincopilot/internal/provider"
	"github.com/fincopilot/fincopilot/internal/provider/alphavantage"
	"github.com/fincopilot/fincopilot/internal/provider/finnhub"
	"github.com/fincopilot/fincopilot/internal/retriever"
	"github.com/fincopilot/fincopilot/internal/storage/session"
	"github.com/fincopilot/fincopilot/internal/storage/vector"
	"github.com/fincopilot/fincopilot/internal/tool"
	"github.com/fincopilot/fincopilot/internal/watchlist"
	"go.uber.org/zap"
)

// loadConfig reads and validates the configuration, falling back to
// defaults when no file is given.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// buildRetriever assembles the embedding provider and vector store.
func buildRetriever(ctx context.Context, cfg *config.Config, log *zap.Logger) (*retriever.Retriever, func(), error) {
	apiKey := cfg.Embeddings.APIKey
	if apiKey == "" {
		apiKey = cfg.LLM.OpenAI.APIKey
	}
	embedder, err := embeddings.NewOpenAI(apiKey, cfg.Embeddings.Model, cfg.Embeddings.Dimensions,
		embeddings.WithTimeout(cfg.Embeddings.Timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}

	var store vector.Store
	cleanup := func() {}
	switch cfg.Storage.Vectors.Type {
	case "postgres":
		pg, err := vector.NewPostgresStore(ctx, cfg.Storage.Vectors.DSN, embedder.Dimensions())
		if err != nil {
			return nil, nil, fmt.Errorf("connecting vector store: %w", err)
		}
		store = pg
		cleanup = func() { pg.Close() }
	default:
		store = vector.NewMemoryStore()
	}

	return retriever.New(embedder, store, cfg.Retriever.TopK, log), cleanup, nil
}

// serveMetrics exposes the registry for Prometheus scrapes when enabled.
// The returned func stops the listener.
func serveMetrics(cfg config.MetricsConfig, reg *metrics.Registry, log *zap.Logger) func() {
	if !cfg.Enabled {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, reg.Handler())
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Info("metrics endpoint listening",
			zap.String("addr", cfg.Addr),
			zap.String("path", cfg.Path),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics endpoint failed", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}

// buildApp wires every component into the orchestrator.
func buildApp(ctx context.Context, cfg *config.Config, reg *metrics.Registry, log *zap.Logger) (*app.App, func(), error) {
	httpClient := &http.Client{Timeout: cfg.Providers.Timeout}
	providers := make([]provider.Provider, 0, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		switch name {
		case "finnhub":
			p, err := finnhub.New(cfg.Providers.Finnhub.APIKey, finnhub.WithHTTPClient(httpClient))
			if err != nil {
				return nil, nil, fmt.Errorf("creating finnhub provider: %w", err)
			}
			providers = append(providers, p)
		case "alphavantage":
			p, err := alphavantage.New(cfg.Providers.AlphaVantage.APIKey, alphavantage.WithHTTPClient(httpClient))
			if err != nil {
				return nil, nil, fmt.Errorf("creating alphavantage provider: %w", err)
			}
			providers = append(providers, p)
		}
	}

	facade, err := provider.NewFacade(providers, reg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating provider facade: %w", err)
	}

	llmProvider, err := factory.New(cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("creating llm provider: %w", err)
	}

	ret, retCleanup, err := buildRetriever(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	var sessions session.Store
	sessCleanup := func() {}
	switch cfg.Storage.Sessions.Type {
	case "postgres":
		pg, err := session.NewPostgresStore(ctx, cfg.Storage.Sessions.DSN)
		if err != nil {
			retCleanup()
			return nil, nil, fmt.Errorf("connecting session store: %w", err)
		}
		sessions = pg
		sessCleanup = func() { pg.Close() }
	default:
		sessions = session.NewMemoryStore()
	}

	mem := memory.NewManager(sessions, memory.NewLLMSummarizer(llmProvider), memory.Options{
		TokenBudget:  cfg.Memory.TokenBudget,
		RetainTail:   cfg.Memory.RetainTail,
		MaxMessages:  cfg.Memory.MaxMessages,
		SummarizeMax: cfg.Memory.SummarizeMax,
	}, reg, log)

	registry := tool.NewRegistry(reg, log)
	tool.RegisterAll(registry, facade, watchlist.NewMemoryStore())

	executor := agent.New(llmProvider, registry, agent.Options{
		MaxIterations: cfg.Agent.MaxIterations,
		ToolTimeout:   cfg.Agent.ToolTimeout,
	}, reg, log)

	cleanup := func() {
		sessCleanup()
		retCleanup()
	}
	return app.New(executor, mem, ret, reg, log), cleanup, nil
}
