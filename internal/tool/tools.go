package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/watchlist"
)

// maxCandles bounds candle observations so one tool call cannot flood the
// reasoning context.
const maxCandles = 30

// MarketData is the façade surface the tools consume.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*core.Quote, error)
	GetCandles(ctx context.Context, symbol string, resolution core.Resolution, from, to time.Time) ([]core.Candle, error)
	GetMetrics(ctx context.Context, symbol string) (*core.Metrics, error)
	GetNews(ctx context.Context, symbol string, days int) ([]core.NewsItem, error)
	SearchSymbols(ctx context.Context, query string, limit int) ([]core.SymbolMatch, error)
}

type searchSymbolsArgs struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=20"`
}

type symbolArgs struct {
	Symbol string `json:"symbol" validate:"required"`
}

type newsArgs struct {
	Symbol string `json:"symbol" validate:"required"`
	Days   int    `json:"days" validate:"omitempty,min=1,max=30"`
}

type candlesArgs struct {
	Symbol     string `json:"symbol" validate:"required"`
	Resolution string `json:"resolution" validate:"omitempty,oneof=1 5 15 30 60 D W M"`
	Days       int    `json:"days" validate:"omitempty,min=1,max=365"`
}

type addWatchlistArgs struct {
	Symbol string `json:"symbol" validate:"required"`
	Name   string `json:"name"`
}

type compareArgs struct {
	Symbol1 string `json:"symbol1" validate:"required"`
	Symbol2 string `json:"symbol2" validate:"required"`
}

type watchlistEntry struct {
	Symbol string      `json:"symbol"`
	Name   string      `json:"name,omitempty"`
	Quote  *core.Quote `json:"quote,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type comparison struct {
	Symbol  string        `json:"symbol"`
	Quote   *core.Quote   `json:"quote,omitempty"`
	Metrics *core.Metrics `json:"metrics,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// RegisterAll wires the full tool set against the market-data façade and
// the watchlist store.
func RegisterAll(r *Registry, market MarketData, watch watchlist.Store) {
	r.Register(Tool{
		Name:        "search_symbols",
		Description: "Search for stock symbols by company name or ticker fragment.",
		ArgsExample: `{"query": "apple", "limit": 5}`,
		run: func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error) {
			var args searchSymbolsArgs
			if err := r.decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return market.SearchSymbols(ctx, args.Query, args.Limit)
		},
	})

	r.Register(Tool{
		Name:        "get_quote",
		Description: "Get the live quote for a stock symbol: price, change, day range.",
		ArgsExample: `{"symbol": "AAPL"}`,
		run: func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error) {
			var args symbolArgs
			if err := r.decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return market.GetQuote(ctx, normalizeSymbol(args.Symbol))
		},
	})

	r.Register(Tool{
		Name:        "get_metrics",
		Description: "Get fundamental ratios for a stock: P/E, EPS, market cap, margins.",
		ArgsExample: `{"symbol": "AAPL"}`,
		run: func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error) {
			var args symbolArgs
			if err := r.decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return market.GetMetrics(ctx, normalizeSymbol(args.Symbol))
		},
	})

	r.Register(Tool{
		Name:        "get_news",
		Description: "Get recent company news for a stock symbol.",
		ArgsExample: `{"symbol": "AAPL", "days": 7}`,
		run: func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error) {
			var args newsArgs
			if err := r.decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return market.GetNews(ctx, normalizeSymbol(args.Symbol), args.Days)
		},
	})

	r.Register(Tool{
		Name:        "get_candles",
		Description: "Get historical price candles for a stock. Resolution is one of 1/5/15/30/60 minutes, D, W, M.",
		ArgsExample: `{"symbol": "AAPL", "resolution": "D", "days": 30}`,
		run: func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error) {
			var args candlesArgs
			if err := r.decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Resolution == "" {
				args.Resolution = string(core.ResolutionDaily)
			}
			if args.Days <= 0 {
				args.Days = 30
			}

			now := time.Now()
			candles, err := market.GetCandles(ctx, normalizeSymbol(args.Symbol),
				core.Resolution(args.Resolution), now.AddDate(0, 0, -args.Days), now)
			if err != nil {
				return nil, err
			}
			if len(candles) > maxCandles {
				candles = candles[len(candles)-maxCandles:]
			}
			return candles, nil
		},
	})

	r.Register(Tool{
		Name:        "get_watchlist",
		Description: "List the user's watchlist with a fresh quote for each symbol.",
		ArgsExample: `{}`,
		run: func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error) {
			items, err := watch.List(ctx, ownerID)
			if err != nil {
				return nil, err
			}

			entries := make([]watchlistEntry, 0, len(items))
			for _, item := range items {
				entry := watchlistEntry{Symbol: item.Symbol, Name: item.Name}
				quote, qerr := market.GetQuote(ctx, item.Symbol)
				if qerr != nil {
					entry.Error = qerr.Error()
				} else {
					entry.Quote = quote
				}
				entries = append(entries, entry)
			}
			return entries, nil
		},
	})

	r.Register(Tool{
		Name:        "add_to_watchlist",
		Description: "Add a stock symbol to the user's watchlist.",
		ArgsExample: `{"symbol": "AAPL", "name": "Apple Inc"}`,
		Mutating:    true,
		run: func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error) {
			var args addWatchlistArgs
			if err := r.decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			symbol := normalizeSymbol(args.Symbol)
			if err := watch.Add(ctx, ownerID, symbol, args.Name); err != nil {
				return nil, err
			}
			return map[string]string{"status": "added", "symbol": symbol}, nil
		},
	})

	r.Register(Tool{
		Name:        "remove_from_watchlist",
		Description: "Remove a stock symbol from the user's watchlist.",
		ArgsExample: `{"symbol": "AAPL"}`,
		Mutating:    true,
		run: func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error) {
			var args symbolArgs
			if err := r.decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			symbol := normalizeSymbol(args.Symbol)
			if err := watch.Remove(ctx, ownerID, symbol); err != nil {
				return nil, err
			}
			return map[string]string{"status": "removed", "symbol": symbol}, nil
		},
	})

	r.Register(Tool{
		Name:        "compare_stocks",
		Description: "Compare two stocks side by side: quotes and fundamental ratios.",
		ArgsExample: `{"symbol1": "AAPL", "symbol2": "MSFT"}`,
		run: func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error) {
			var args compareArgs
			if err := r.decodeArgs(raw, &args); err != nil {
				return nil, err
			}

			// Per-symbol failures stay inside the comparison so one bad
			// symbol does not hide the other's data.
			out := make([]comparison, 0, 2)
			for _, sym := range []string{args.Symbol1, args.Symbol2} {
				sym = normalizeSymbol(sym)
				c := comparison{Symbol: sym}
				if quote, err := market.GetQuote(ctx, sym); err != nil {
					c.Error = err.Error()
				} else {
					c.Quote = quote
				}
				if metrics, err := market.GetMetrics(ctx, sym); err != nil {
					if c.Error == "" {
						c.Error = err.Error()
					}
				} else {
					c.Metrics = metrics
				}
				out = append(out, c)
			}
			return out, nil
		},
	})
}
