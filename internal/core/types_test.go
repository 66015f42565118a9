package core

import "testing"

func f64(v float64) *float64 { return &v }

func TestQuote_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		quote Quote
		want  bool
	}{
		{"valid", Quote{Symbol: "AAPL", CurrentPrice: 190.5}, true},
		{"empty symbol", Quote{CurrentPrice: 190.5}, false},
		{"zero price", Quote{Symbol: "AAPL"}, false},
		{"structurally empty", Quote{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.quote.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetrics_Completeness(t *testing.T) {
	empty := Metrics{Symbol: "AAPL"}
	if got := empty.Completeness(); got != 0 {
		t.Errorf("empty metrics completeness = %f, want 0", got)
	}

	half := Metrics{
		Symbol:    "AAPL",
		PERatio:   f64(28.1),
		EPS:       f64(6.42),
		MarketCap: f64(2.9e12),
		ProfitMargin: f64(0.25),
	}
	if got := half.Completeness(); got != 0.5 {
		t.Errorf("completeness = %f, want 0.5", got)
	}
}

func TestMetrics_Merge(t *testing.T) {
	primary := Metrics{Symbol: "AAPL", PERatio: f64(28.1)}
	secondary := Metrics{Symbol: "AAPL", PERatio: f64(99.9), EPS: f64(6.42)}

	merged := primary.Merge(secondary)

	if *merged.PERatio != 28.1 {
		t.Errorf("primary value should win, got %f", *merged.PERatio)
	}
	if merged.EPS == nil || *merged.EPS != 6.42 {
		t.Error("missing field should be filled from secondary")
	}
	if merged.DebtToEquity != nil {
		t.Error("field absent in both should stay nil")
	}
}
