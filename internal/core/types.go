package core

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Resolution identifies the candle resolution in provider-neutral form.
// Values follow the Finnhub convention; each provider translates as needed.
type Resolution string

const (
	Resolution1Min   Resolution = "1"
	Resolution5Min   Resolution = "5"
	Resolution15Min  Resolution = "15"
	Resolution30Min  Resolution = "30"
	Resolution60Min  Resolution = "60"
	ResolutionDaily  Resolution = "D"
	ResolutionWeekly Resolution = "W"
	ResolutionMonth  Resolution = "M"
)

// Quote is a point-in-time price snapshot. Never cached; fetched fresh
// on every call.
type Quote struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"current_price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previous_close"`
	Volume        int64   `json:"volume"`
	Timestamp     int64   `json:"timestamp"` // epoch seconds
}

// IsValid reports whether the quote carries the fields a provider must
// populate. A structurally empty quote means the symbol is unknown.
func (q Quote) IsValid() bool {
	return q.Symbol != "" && q.CurrentPrice > 0
}

// Candle is one OHLCV bar. Candle sequences are ordered by timestamp
// ascending with no duplicate timestamps.
type Candle struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// Metrics holds fundamental ratios. Any pointer field may be nil when the
// provider does not supply it; absence is not an error.
type Metrics struct {
	Symbol        string   `json:"symbol"`
	PERatio       *float64 `json:"pe_ratio,omitempty"`
	EPS           *float64 `json:"eps,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`
	ProfitMargin  *float64 `json:"profit_margin,omitempty"`
	RevenueGrowth *float64 `json:"revenue_growth,omitempty"`
	PriceToBook   *float64 `json:"price_to_book,omitempty"`
	DebtToEquity  *float64 `json:"debt_to_equity,omitempty"`
}

// Completeness returns the ratio of populated core ratios, used to decide
// whether a secondary provider should fill the gaps.
func (m Metrics) Completeness() float64 {
	fields := []*float64{
		m.PERatio, m.EPS, m.MarketCap, m.DividendYield,
		m.ProfitMargin, m.RevenueGrowth, m.PriceToBook, m.DebtToEquity,
	}
	present := 0
	for _, f := range fields {
		if f != nil {
			present++
		}
	}
	return float64(present) / float64(len(fields))
}

// Merge fills nil fields from other, preferring values already present.
func (m Metrics) Merge(other Metrics) Metrics {
	out := m
	if out.Symbol == "" {
		out.Symbol = other.Symbol
	}
	fill := func(dst **float64, src *float64) {
		if *dst == nil && src != nil {
			*dst = src
		}
	}
	fill(&out.PERatio, other.PERatio)
	fill(&out.EPS, other.EPS)
	fill(&out.MarketCap, other.MarketCap)
	fill(&out.DividendYield, other.DividendYield)
	fill(&out.ProfitMargin, other.ProfitMargin)
	fill(&out.RevenueGrowth, other.RevenueGrowth)
	fill(&out.PriceToBook, other.PriceToBook)
	fill(&out.DebtToEquity, other.DebtToEquity)
	return out
}

// NewsItem is a single news article.
type NewsItem struct {
	Title          string   `json:"title"`
	Source         string   `json:"source"`
	URL            string   `json:"url"`
	Summary        string   `json:"summary"`
	PublishedAt    int64    `json:"published_at"` // epoch seconds
	RelatedSymbols []string `json:"related_symbols,omitempty"`
}

// SymbolMatch is a symbol-search result.
type SymbolMatch struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// ChatMessage is one append-only message in a session, ordered by CreatedAt.
type ChatMessage struct {
	SessionID string    `json:"session_id" db:"session_id"`
	Role      Role      `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChatSession is the persisted session envelope. Summary holds the rolling
// summary of messages already collapsed out of the raw tail.
type ChatSession struct {
	ID            string    `json:"id" db:"id"`
	OwnerID       string    `json:"owner_id" db:"owner_id"`
	Title         string    `json:"title" db:"title"`
	Summary       string    `json:"summary" db:"summary"`
	SummaryTokens int       `json:"summary_tokens" db:"summary_tokens"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// MemoryView is the per-turn, derived view of a session: the rolling summary
// plus the verbatim tail. It is never persisted.
type MemoryView struct {
	Summary  string
	Messages []ChatMessage
}

// WatchlistItem is one tracked symbol.
type WatchlistItem struct {
	Symbol  string    `json:"symbol"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_at"`
}

// Document is an ingested text with its embedding. The embedding is computed
// once at ingestion and immutable afterwards. OwnerID "" means public.
type Document struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredDocument pairs a document with its similarity score.
type ScoredDocument struct {
	Document Document
	Score    float64
}
