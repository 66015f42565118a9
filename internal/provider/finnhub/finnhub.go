package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// Client is the Finnhub market-data provider.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Finnhub client.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string {
	return "finnhub"
}

// classifyStatus maps an HTTP status to the core error taxonomy. All
// rate-limit detection for this provider lives here.
func classifyStatus(status int) *core.Error {
	switch {
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimited
	case status == http.StatusNotFound:
		return core.ErrSymbolNotFound
	case status >= 500:
		return core.ErrProviderTransient
	default:
		return core.ErrProviderTransient
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return core.WrapError(core.ErrProviderTransient, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return core.WrapError(core.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Wrapf(classifyStatus(resp.StatusCode), "finnhub %s: HTTP %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.Wrapf(core.ErrProviderTransient, "decoding finnhub %s response: %w", endpoint, err)
	}
	return nil
}

type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// GetQuote fetches a real-time quote.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	symbol = strings.ToUpper(symbol)

	var data quoteResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.get(ctx, "/quote", params, &data); err != nil {
		return nil, err
	}

	quote := &core.Quote{
		Symbol:        symbol,
		CurrentPrice:  data.Current,
		Change:        data.Change,
		ChangePercent: data.ChangePercent,
		Open:          data.Open,
		High:          data.High,
		Low:           data.Low,
		PreviousClose: data.PreviousClose,
		Timestamp:     data.Timestamp,
	}

	// Finnhub answers HTTP 200 with all-zero fields for unknown symbols.
	if !quote.IsValid() {
		return nil, core.Wrapf(core.ErrSymbolNotFound, "no quote data for %s", symbol)
	}
	return quote, nil
}

type candleResponse struct {
	Status     string    `json:"s"`
	Timestamps []int64   `json:"t"`
	Open       []float64 `json:"o"`
	High       []float64 `json:"h"`
	Low        []float64 `json:"l"`
	Close      []float64 `json:"c"`
	Volume     []int64   `json:"v"`
}

// GetCandles fetches historical bars. Finnhub takes the neutral resolution
// codes unchanged.
func (c *Client) GetCandles(ctx context.Context, symbol string, resolution core.Resolution, from, to time.Time) ([]core.Candle, error) {
	symbol = strings.ToUpper(symbol)

	params := url.Values{
		"symbol":     {symbol},
		"resolution": {string(resolution)},
		"from":       {fmt.Sprintf("%d", from.Unix())},
		"to":         {fmt.Sprintf("%d", to.Unix())},
	}

	var data candleResponse
	if err := c.get(ctx, "/stock/candle", params, &data); err != nil {
		return nil, err
	}

	if data.Status != "ok" {
		return nil, core.Wrapf(core.ErrSymbolNotFound, "no candle data for %s", symbol)
	}

	candles := make([]core.Candle, 0, len(data.Timestamps))
	var lastTS int64
	for i, ts := range data.Timestamps {
		if i > 0 && ts == lastTS {
			continue // drop duplicate timestamps
		}
		lastTS = ts
		candles = append(candles, core.Candle{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      data.Open[i],
			High:      data.High[i],
			Low:       data.Low[i],
			Close:     data.Close[i],
			Volume:    data.Volume[i],
		})
	}
	return candles, nil
}

type metricResponse struct {
	Metric map[string]*float64 `json:"metric"`
}

// GetMetrics fetches fundamental ratios. Absent fields stay nil.
func (c *Client) GetMetrics(ctx context.Context, symbol string) (*core.Metrics, error) {
	symbol = strings.ToUpper(symbol)

	params := url.Values{"symbol": {symbol}, "metric": {"all"}}
	var data metricResponse
	if err := c.get(ctx, "/stock/metric", params, &data); err != nil {
		return nil, err
	}

	if len(data.Metric) == 0 {
		return nil, core.Wrapf(core.ErrSymbolNotFound, "no metrics data for %s", symbol)
	}

	return &core.Metrics{
		Symbol:        symbol,
		PERatio:       data.Metric["peRatio"],
		EPS:           data.Metric["eps"],
		MarketCap:     data.Metric["marketCapitalization"],
		DividendYield: data.Metric["dividendYield"],
		ProfitMargin:  data.Metric["profitMargin"],
		RevenueGrowth: data.Metric["revenueGrowth"],
		PriceToBook:   data.Metric["priceToBookRatio"],
		DebtToEquity:  data.Metric["debtToEquityRatio"],
	}, nil
}

type newsItem struct {
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	Datetime int64  `json:"datetime"`
	Related  string `json:"related"`
}

// GetNews fetches company news for the trailing window. Finnhub wants
// yyyy-mm-dd date bounds.
func (c *Client) GetNews(ctx context.Context, symbol string, days int) ([]core.NewsItem, error) {
	symbol = strings.ToUpper(symbol)
	if days <= 0 {
		days = 7
	}

	now := time.Now()
	params := url.Values{
		"symbol": {symbol},
		"from":   {now.AddDate(0, 0, -days).Format("2006-01-02")},
		"to":     {now.Format("2006-01-02")},
	}

	var data []newsItem
	if err := c.get(ctx, "/company-news", params, &data); err != nil {
		return nil, err
	}

	items := make([]core.NewsItem, 0, len(data))
	for _, item := range data {
		if len(items) >= 10 {
			break
		}
		items = append(items, core.NewsItem{
			Title:          item.Headline,
			Source:         item.Source,
			URL:            item.URL,
			Summary:        item.Summary,
			PublishedAt:    item.Datetime,
			RelatedSymbols: []string{symbol},
		})
	}
	return items, nil
}

type searchResponse struct {
	Result []struct {
		Symbol        string `json:"symbol"`
		Description   string `json:"description"`
		Type          string `json:"type"`
		DisplaySymbol string `json:"displaySymbol"`
	} `json:"result"`
}

// SearchSymbols looks up symbols by free-text query.
func (c *Client) SearchSymbols(ctx context.Context, query string, limit int) ([]core.SymbolMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	var data searchResponse
	if err := c.get(ctx, "/search", url.Values{"q": {query}}, &data); err != nil {
		return nil, err
	}

	matches := make([]core.SymbolMatch, 0, limit)
	for _, r := range data.Result {
		if len(matches) >= limit {
			break
		}
		matches = append(matches, core.SymbolMatch{
			Symbol:      r.Symbol,
			Description: r.Description,
			Type:        r.Type,
		})
	}
	return matches, nil
}
