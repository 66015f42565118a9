package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/metrics"
	"go.uber.org/zap"
)

// Facade hides the divergent provider APIs behind one normalized schema and
// applies the failover policy: providers are attempted in order, a
// rate-limited or transient failure advances to the next provider, and a
// NOT_FOUND is forwarded immediately since an unknown symbol on one provider
// is unknown on the other too. The façade holds no state and never caches.
type Facade struct {
	providers []Provider
	metrics   *metrics.Registry
	log       *zap.Logger
}

// NewFacade creates a façade over the ordered provider list. The first
// provider is the primary. metrics may be nil.
func NewFacade(providers []Provider, reg *metrics.Registry, log *zap.Logger) (*Facade, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Facade{providers: providers, metrics: reg, log: log}, nil
}

// failoverTrigger reports whether err should advance the fold to the next
// provider. Only rate limits and transport faults do; an empty result is
// a definitive answer.
func failoverTrigger(err error) bool {
	return errors.Is(err, core.ErrRateLimited) || errors.Is(err, core.ErrProviderTransient)
}

// fold attempts fn against each provider in order and returns the first
// success plus the index of the provider that produced it. Failures that
// are not failover triggers are forwarded as-is; when the whole chain
// fails the returned error is EXHAUSTED carrying every underlying message.
func fold[T any](f *Facade, ctx context.Context, op string, fn func(Provider) (T, error)) (T, int, error) {
	var zero T
	var failures []string

	for i, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return zero, -1, core.WrapError(core.ErrProviderTransient, err)
		}

		result, err := fn(p)
		if err == nil {
			f.record(p.Name(), op, "ok")
			if i > 0 {
				f.log.Debug("provider fallback succeeded",
					zap.String("op", op),
					zap.String("provider", p.Name()),
				)
			}
			return result, i, nil
		}

		f.record(p.Name(), op, "error")

		if !failoverTrigger(err) {
			return zero, -1, err
		}

		failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
		if i < len(f.providers)-1 {
			if f.metrics != nil {
				f.metrics.RecordProviderFallback(op)
			}
			f.log.Warn("provider failed, falling back",
				zap.String("op", op),
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
		}
	}

	return zero, -1, core.Wrapf(core.ErrProviderExhausted, "%s", strings.Join(failures, "; "))
}

func (f *Facade) record(provider, op, status string) {
	if f.metrics != nil {
		f.metrics.RecordProviderRequest(provider, op, status)
	}
}

// GetQuote fetches a live quote with failover.
func (f *Facade) GetQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	quote, _, err := fold(f, ctx, "quote", func(p Provider) (*core.Quote, error) {
		return p.GetQuote(ctx, symbol)
	})
	return quote, err
}

// GetCandles fetches historical bars with failover. Each provider
// translates the neutral resolution code itself.
func (f *Facade) GetCandles(ctx context.Context, symbol string, resolution core.Resolution, from, to time.Time) ([]core.Candle, error) {
	candles, _, err := fold(f, ctx, "candles", func(p Provider) ([]core.Candle, error) {
		return p.GetCandles(ctx, symbol, resolution, from, to)
	})
	return candles, err
}

// GetMetrics fetches fundamentals. When the answering provider covers
// fewer than half the core ratios, another provider's metrics fill the
// gaps; a merge failure keeps the first result.
func (f *Facade) GetMetrics(ctx context.Context, symbol string) (*core.Metrics, error) {
	primary, winner, err := fold(f, ctx, "metrics", func(p Provider) (*core.Metrics, error) {
		return p.GetMetrics(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}

	if primary.Completeness() >= 0.5 || len(f.providers) < 2 {
		return primary, nil
	}

	for i, p := range f.providers {
		if i == winner {
			continue
		}
		secondary, serr := p.GetMetrics(ctx, symbol)
		if serr != nil {
			f.record(p.Name(), "metrics", "error")
			continue
		}
		f.record(p.Name(), "metrics", "ok")
		merged := primary.Merge(*secondary)
		f.log.Debug("merged sparse metrics from secondary provider",
			zap.String("symbol", symbol),
			zap.String("provider", p.Name()),
		)
		return &merged, nil
	}
	return primary, nil
}

// GetNews fetches company news. Providers without a news endpoint are
// skipped; when no provider supports news the result is an empty list
// rather than an error.
func (f *Facade) GetNews(ctx context.Context, symbol string, days int) ([]core.NewsItem, error) {
	var failures []string
	supported := false

	for _, p := range f.providers {
		items, err := p.GetNews(ctx, symbol, days)
		if errors.Is(err, core.ErrNewsUnsupported) {
			continue
		}
		supported = true
		if err == nil {
			f.record(p.Name(), "news", "ok")
			return items, nil
		}
		f.record(p.Name(), "news", "error")
		if !failoverTrigger(err) {
			return nil, err
		}
		failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
	}

	if !supported {
		return []core.NewsItem{}, nil
	}
	return nil, core.Wrapf(core.ErrProviderExhausted, "%s", strings.Join(failures, "; "))
}

// SearchSymbols looks up symbols with failover.
func (f *Facade) SearchSymbols(ctx context.Context, query string, limit int) ([]core.SymbolMatch, error) {
	matches, _, err := fold(f, ctx, "search", func(p Provider) ([]core.SymbolMatch, error) {
		return p.SearchSymbols(ctx, query, limit)
	})
	return matches, err
}
