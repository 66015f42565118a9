package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/provider"
)

func TestClient_ImplementsProvider(t *testing.T) {
	var _ provider.Provider = (*Client)(nil)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New("test-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGetQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "AAPL" {
			t.Errorf("expected uppercased symbol, got %s", r.URL.Query().Get("symbol"))
		}
		if r.URL.Query().Get("token") != "test-key" {
			t.Error("expected API key in query")
		}
		w.Write([]byte(`{"c":190.5,"d":2.1,"dp":1.11,"h":191.2,"l":188.0,"o":188.4,"pc":188.4,"t":1700000000}`))
	})

	quote, err := c.GetQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Symbol != "AAPL" {
		t.Errorf("expected AAPL, got %s", quote.Symbol)
	}
	if quote.CurrentPrice != 190.5 {
		t.Errorf("expected price 190.5, got %f", quote.CurrentPrice)
	}
	if quote.PreviousClose != 188.4 {
		t.Errorf("expected previous close 188.4, got %f", quote.PreviousClose)
	}
}

func TestGetQuote_EmptyPayloadIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c":0,"d":0,"dp":0,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	})

	_, err := c.GetQuote(context.Background(), "NOPE")
	if !errors.Is(err, core.ErrSymbolNotFound) {
		t.Errorf("expected NOT_FOUND for empty payload, got %v", err)
	}
}

func TestGetQuote_RateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GetQuote(context.Background(), "AAPL")
	if !errors.Is(err, core.ErrRateLimited) {
		t.Errorf("expected RATE_LIMITED for HTTP 429, got %v", err)
	}
}

func TestGetQuote_ServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetQuote(context.Background(), "AAPL")
	if !errors.Is(err, core.ErrProviderTransient) {
		t.Errorf("expected TRANSIENT for HTTP 502, got %v", err)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   *core.Error
	}{
		{http.StatusTooManyRequests, core.ErrRateLimited},
		{http.StatusNotFound, core.ErrSymbolNotFound},
		{http.StatusInternalServerError, core.ErrProviderTransient},
		{http.StatusServiceUnavailable, core.ErrProviderTransient},
		{http.StatusForbidden, core.ErrProviderTransient},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestGetCandles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("resolution") != "D" {
			t.Errorf("expected resolution D, got %s", q.Get("resolution"))
		}
		w.Write([]byte(`{"s":"ok","t":[1700000000,1700086400],"o":[188.0,189.0],"h":[191.0,192.0],"l":[187.0,188.5],"c":[190.0,191.5],"v":[1000,1200]}`))
	})

	from := time.Now().AddDate(0, 0, -30)
	candles, err := c.GetCandles(context.Background(), "AAPL", core.ResolutionDaily, from, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Timestamp >= candles[1].Timestamp {
		t.Error("candles should be ordered by timestamp ascending")
	}
	if candles[1].Close != 191.5 {
		t.Errorf("expected close 191.5, got %f", candles[1].Close)
	}
}

func TestGetCandles_NoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"no_data"}`))
	})

	_, err := c.GetCandles(context.Background(), "NOPE", core.ResolutionDaily, time.Now().AddDate(0, 0, -7), time.Now())
	if !errors.Is(err, core.ErrSymbolNotFound) {
		t.Errorf("expected NOT_FOUND for no_data status, got %v", err)
	}
}

func TestGetMetrics_AbsentFieldsAreNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metric":{"peRatio":28.1,"eps":6.42}}`))
	})

	m, err := c.GetMetrics(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.PERatio == nil || *m.PERatio != 28.1 {
		t.Error("expected pe_ratio populated")
	}
	if m.DividendYield != nil {
		t.Error("absent dividend_yield should be nil, not zero")
	}
}

func TestGetNews_DateBoundsAndCap(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if _, err := time.Parse("2006-01-02", q.Get("from")); err != nil {
			t.Errorf("from is not yyyy-mm-dd: %s", q.Get("from"))
		}
		w.Write([]byte(`[
			{"headline":"a"},{"headline":"b"},{"headline":"c"},{"headline":"d"},
			{"headline":"e"},{"headline":"f"},{"headline":"g"},{"headline":"h"},
			{"headline":"i"},{"headline":"j"},{"headline":"k"},{"headline":"l"}
		]`))
	})

	items, err := c.GetNews(context.Background(), "AAPL", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 10 {
		t.Errorf("expected news capped at 10, got %d", len(items))
	}
}

func TestSearchSymbols(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "apple" {
			t.Errorf("expected query apple, got %s", r.URL.Query().Get("q"))
		}
		w.Write([]byte(`{"result":[{"symbol":"AAPL","description":"APPLE INC","type":"Common Stock"}]}`))
	})

	matches, err := c.SearchSymbols(context.Background(), "apple", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Symbol != "AAPL" {
		t.Errorf("unexpected matches: %+v", matches)
	}
}
