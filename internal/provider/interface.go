package provider

import (
	"context"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
)

// Provider is one upstream market-data source. Implementations classify
// their own failures into the core error taxonomy: rate limits and
// transport faults come back as core.ErrRateLimited / core.ErrProviderTransient
// so the façade can decide whether to fail over, while a structurally empty
// payload is core.ErrSymbolNotFound and is never a fallback trigger.
type Provider interface {
	Name() string

	GetQuote(ctx context.Context, symbol string) (*core.Quote, error)
	GetCandles(ctx context.Context, symbol string, resolution core.Resolution, from, to time.Time) ([]core.Candle, error)
	GetMetrics(ctx context.Context, symbol string) (*core.Metrics, error)
	// GetNews returns core.ErrNewsUnsupported when the provider has no
	// news endpoint; the façade skips such providers.
	GetNews(ctx context.Context, symbol string, days int) ([]core.NewsItem, error)
	SearchSymbols(ctx context.Context, query string, limit int) ([]core.SymbolMatch, error)
}
