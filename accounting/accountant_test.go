package accounting

import (
	"errors"
	"math"
	"testing"

	"github.com/richinex/reasonloop/model"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecordPricesPerMillion(t *testing.T) {
	a := New()
	pricing := model.Pricing{InputTokens: 1.0, CachedTokens: 0.5, OutputTokens: 2.0}
	usage := &model.Usage{InputTokens: 1_000_000, CachedTokens: 0, OutputTokens: 500_000}

	turn, totals, err := a.Record(usage, pricing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(turn, 2.0) {
		t.Errorf("expected turn cost 2.0, got %f", turn)
	}
	if totals.InputTokens != 1_000_000 || totals.OutputTokens != 500_000 {
		t.Errorf("unexpected token totals: %+v", totals)
	}

	turn, totals, err = a.Record(&model.Usage{CachedTokens: 1_000_000}, pricing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(turn, 0.5) {
		t.Errorf("expected turn cost 0.5, got %f", turn)
	}
	if !almostEqual(totals.CostUSD, 2.5) {
		t.Errorf("expected total 2.50, got %f", totals.CostUSD)
	}
	if FormatUSD(totals.CostUSD) != "$2.5000" {
		t.Errorf("unexpected formatted total %s", FormatUSD(totals.CostUSD))
	}
	if !almostEqual(totals.InputCost, 1.0) || !almostEqual(totals.CachedCost, 0.5) || !almostEqual(totals.OutputCost, 1.0) {
		t.Errorf("unexpected cost breakdown: %+v", totals)
	}
}

func TestRecordRejectsInvalidUsage(t *testing.T) {
	tests := []struct {
		name  string
		usage *model.Usage
	}{
		{"nil", nil},
		{"negative input", &model.Usage{InputTokens: -1}},
		{"negative cached", &model.Usage{CachedTokens: -5}},
		{"negative output", &model.Usage{OutputTokens: -10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			if _, _, err := a.Record(&model.Usage{InputTokens: 10}, model.Pricing{InputTokens: 1}); err != nil {
				t.Fatalf("setup failed: %v", err)
			}
			before := a.Totals()

			_, totals, err := a.Record(tt.usage, model.Pricing{InputTokens: 1})
			var uerr *InvalidUsageError
			if !errors.As(err, &uerr) {
				t.Fatalf("expected InvalidUsageError, got %v", err)
			}
			if totals != before || a.Totals() != before {
				t.Errorf("totals changed on invalid usage: %+v -> %+v", before, a.Totals())
			}
		})
	}
}

func TestRecordAllMatchesSequential(t *testing.T) {
	pricing := model.Pricing{InputTokens: 0.27, CachedTokens: 0.07, OutputTokens: 1.1}
	usages := []*model.Usage{
		{InputTokens: 1234, CachedTokens: 100, OutputTokens: 567},
		{InputTokens: 98765, CachedTokens: 4321, OutputTokens: 1},
		{InputTokens: 3, CachedTokens: 0, OutputTokens: 77777},
	}

	seq := New()
	for _, u := range usages {
		if _, _, err := seq.Record(u, pricing); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	batch := New()
	if _, _, err := batch.RecordAll(usages, pricing); err != nil {
		t.Fatalf("RecordAll failed: %v", err)
	}

	s, b := seq.Totals(), batch.Totals()
	if s.InputTokens != b.InputTokens || s.CachedTokens != b.CachedTokens || s.OutputTokens != b.OutputTokens {
		t.Errorf("token totals differ: %+v vs %+v", s, b)
	}
	if !almostEqual(s.CostUSD, b.CostUSD) {
		t.Errorf("cost differs: %.12f vs %.12f", s.CostUSD, b.CostUSD)
	}
}

func TestRecordAllRejectsBatch(t *testing.T) {
	a := New()
	_, _, err := a.RecordAll([]*model.Usage{{InputTokens: 5}, nil}, model.Pricing{InputTokens: 1})
	var uerr *InvalidUsageError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected InvalidUsageError, got %v", err)
	}
	if a.Totals() != (model.Totals{}) {
		t.Errorf("expected untouched totals, got %+v", a.Totals())
	}
}

func TestZeroPricingCountsTokens(t *testing.T) {
	a := New()
	turn, totals, err := a.Record(&model.Usage{InputTokens: 10, OutputTokens: 20}, model.Pricing{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn != 0 || totals.CostUSD != 0 {
		t.Errorf("expected zero cost, got turn=%f total=%f", turn, totals.CostUSD)
	}
	if totals.InputTokens != 10 || totals.OutputTokens != 20 {
		t.Errorf("unexpected token totals: %+v", totals)
	}
}

func TestRestore(t *testing.T) {
	want := model.Totals{InputTokens: 1, CachedTokens: 2, OutputTokens: 3, CostUSD: 0.123456789}
	a := New()
	a.Restore(want)
	if a.Totals() != want {
		t.Errorf("got %+v, want %+v", a.Totals(), want)
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.0000"},
		{0.00012, "$0.0001"},
		{1.23456, "$1.2346"},
	}
	for _, tt := range tests {
		if got := FormatUSD(tt.in); got != tt.want {
			t.Errorf("FormatUSD(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
