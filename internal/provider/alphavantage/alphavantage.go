package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// Client is the Alpha Vantage market-data provider. Alpha Vantage signals
// rate limiting inside a 200 response body, so classification happens on
// the payload rather than the status code.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates an Alpha Vantage client.
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
	return "alphavantage"
}

// classifyPayload inspects the decoded body for Alpha Vantage's in-band
// error envelopes. All message-pattern detection for this provider lives
// here so a phrasing change only touches one function.
func classifyPayload(raw map[string]json.RawMessage) *core.Error {
	if msg, ok := raw["Error Message"]; ok {
		return core.Wrapf(core.ErrSymbolNotFound, "alphavantage: %s", trimJSONString(msg))
	}
	if note, ok := raw["Note"]; ok {
		return core.Wrapf(core.ErrRateLimited, "alphavantage: %s", trimJSONString(note))
	}
	if info, ok := raw["Information"]; ok {
		text := trimJSONString(info)
		lower := strings.ToLower(text)
		if strings.Contains(lower, "rate limit") || strings.Contains(lower, "premium") || strings.Contains(lower, "call frequency") {
			return core.Wrapf(core.ErrRateLimited, "alphavantage: %s", text)
		}
		return core.Wrapf(core.ErrProviderTransient, "alphavantage: %s", text)
	}
	return nil
}

func trimJSONString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

func (c *Client) get(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderTransient, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, core.Wrapf(core.ErrRateLimited, "alphavantage: HTTP 429")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.Wrapf(core.ErrProviderTransient, "alphavantage: HTTP %d", resp.StatusCode)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, core.Wrapf(core.ErrProviderTransient, "decoding alphavantage response: %w", err)
	}

	if cerr := classifyPayload(raw); cerr != nil {
		return nil, cerr
	}
	return raw, nil
}

// parseFloat converts Alpha Vantage's string numbers; "None" and "-" mean
// absent.
func parseFloat(s string) *float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" || s == "None" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// GetQuote fetches a real-time quote via the GLOBAL_QUOTE endpoint.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	symbol = strings.ToUpper(symbol)

	raw, err := c.get(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Quote map[string]string `json:"Global Quote"`
	}
	buf, _ := json.Marshal(raw)
	if err := json.Unmarshal(buf, &envelope); err != nil || len(envelope.Quote) == 0 {
		return nil, core.Wrapf(core.ErrSymbolNotFound, "no quote data for %s", symbol)
	}

	q := envelope.Quote
	deref := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}

	quote := &core.Quote{
		Symbol:        symbol,
		CurrentPrice:  deref(parseFloat(q["05. price"])),
		Change:        deref(parseFloat(q["09. change"])),
		ChangePercent: deref(parseFloat(q["10. change percent"])),
		Open:          deref(parseFloat(q["02. open"])),
		High:          deref(parseFloat(q["03. high"])),
		Low:           deref(parseFloat(q["04. low"])),
		PreviousClose: deref(parseFloat(q["08. previous close"])),
		Timestamp:     time.Now().Unix(), // GLOBAL_QUOTE carries no timestamp
	}
	if v := parseFloat(q["06. volume"]); v != nil {
		quote.Volume = int64(*v)
	}

	if !quote.IsValid() {
		return nil, core.Wrapf(core.ErrSymbolNotFound, "no quote data for %s", symbol)
	}
	return quote, nil
}

// resolutionParams translates the neutral resolution codes into Alpha
// Vantage's function plus optional intraday interval.
func resolutionParams(resolution core.Resolution) (function, interval string) {
	switch resolution {
	case core.Resolution1Min:
		return "TIME_SERIES_INTRADAY", "1min"
	case core.Resolution5Min:
		return "TIME_SERIES_INTRADAY", "5min"
	case core.Resolution15Min:
		return "TIME_SERIES_INTRADAY", "15min"
	case core.Resolution30Min:
		return "TIME_SERIES_INTRADAY", "30min"
	case core.Resolution60Min:
		return "TIME_SERIES_INTRADAY", "60min"
	case core.ResolutionWeekly:
		return "TIME_SERIES_WEEKLY", ""
	case core.ResolutionMonth:
		return "TIME_SERIES_MONTHLY", ""
	default:
		return "TIME_SERIES_DAILY", ""
	}
}

// GetCandles fetches historical bars and filters them to [from, to].
func (c *Client) GetCandles(ctx context.Context, symbol string, resolution core.Resolution, from, to time.Time) ([]core.Candle, error) {
	symbol = strings.ToUpper(symbol)

	function, interval := resolutionParams(resolution)
	params := url.Values{
		"function":   {function},
		"symbol":     {symbol},
		"outputsize": {"compact"},
	}
	if to.Sub(from) > 100*24*time.Hour {
		params.Set("outputsize", "full")
	}
	if interval != "" {
		params.Set("interval", interval)
	}

	raw, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	// The time-series key varies by function ("Time Series (Daily)", ...).
	var series map[string]map[string]string
	for key, val := range raw {
		if strings.Contains(key, "Time Series") {
			if err := json.Unmarshal(val, &series); err != nil {
				return nil, core.Wrapf(core.ErrProviderTransient, "decoding time series: %w", err)
			}
			break
		}
	}
	if series == nil {
		return nil, core.Wrapf(core.ErrSymbolNotFound, "no time series data for %s", symbol)
	}

	candles := make([]core.Candle, 0, len(series))
	for dateStr, values := range series {
		ts, err := parseSeriesTime(dateStr)
		if err != nil {
			continue
		}
		if ts.Before(from) || ts.After(to) {
			continue
		}

		candle := core.Candle{Symbol: symbol, Timestamp: ts.Unix()}
		if v := parseFloat(values["1. open"]); v != nil {
			candle.Open = *v
		}
		if v := parseFloat(values["2. high"]); v != nil {
			candle.High = *v
		}
		if v := parseFloat(values["3. low"]); v != nil {
			candle.Low = *v
		}
		if v := parseFloat(values["4. close"]); v != nil {
			candle.Close = *v
		}
		if v := parseFloat(values["5. volume"]); v != nil {
			candle.Volume = int64(*v)
		}
		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, core.Wrapf(core.ErrSymbolNotFound, "no candle data for %s in range", symbol)
	}

	// Alpha Vantage returns newest first; callers expect ascending.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	return candles, nil
}

func parseSeriesTime(s string) (time.Time, error) {
	if strings.Contains(s, " ") {
		return time.Parse("2006-01-02 15:04:05", s)
	}
	return time.Parse("2006-01-02", s)
}

// GetMetrics fetches fundamentals via the OVERVIEW endpoint. Revenue growth
// and debt-to-equity are not part of OVERVIEW and stay nil.
func (c *Client) GetMetrics(ctx context.Context, symbol string) (*core.Metrics, error) {
	symbol = strings.ToUpper(symbol)

	raw, err := c.get(ctx, url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}

	if _, ok := raw["Symbol"]; !ok {
		return nil, core.Wrapf(core.ErrSymbolNotFound, "no metrics data for %s", symbol)
	}

	field := func(key string) *float64 {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		return parseFloat(trimJSONString(v))
	}

	return &core.Metrics{
		Symbol:        symbol,
		PERatio:       field("PERatio"),
		EPS:           field("EPS"),
		MarketCap:     field("MarketCapitalization"),
		DividendYield: field("DividendYield"),
		ProfitMargin:  field("ProfitMargin"),
		PriceToBook:   field("PriceToBookRatio"),
	}, nil
}

// GetNews is unsupported; Alpha Vantage has no company-news endpoint on
// the plan this client targets.
func (c *Client) GetNews(ctx context.Context, symbol string, days int) ([]core.NewsItem, error) {
	return nil, core.ErrNewsUnsupported
}

// SearchSymbols looks up symbols via SYMBOL_SEARCH.
func (c *Client) SearchSymbols(ctx context.Context, query string, limit int) ([]core.SymbolMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	raw, err := c.get(ctx, url.Values{
		"function": {"SYMBOL_SEARCH"},
		"keywords": {query},
	})
	if err != nil {
		return nil, err
	}

	var matches []map[string]string
	if best, ok := raw["bestMatches"]; ok {
		if err := json.Unmarshal(best, &matches); err != nil {
			return nil, core.Wrapf(core.ErrProviderTransient, "decoding search results: %w", err)
		}
	}

	results := make([]core.SymbolMatch, 0, limit)
	for _, m := range matches {
		if len(results) >= limit {
			break
		}
		results = append(results, core.SymbolMatch{
			Symbol:      m["1. symbol"],
			Description: m["2. name"],
			Type:        m["3. type"],
		})
	}
	return results, nil
}
