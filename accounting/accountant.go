// Package accounting tracks token usage and USD cost for a session.
//
// Costs are kept at full float64 precision; rounding happens only when a value
// is rendered with FormatUSD.

package accounting

import (
	"fmt"

	"github.com/richinex/reasonloop/model"
)

const perMillion = 1_000_000.0

// InvalidUsageError reports a usage record that cannot be priced.
type InvalidUsageError struct {
	Reason string
}

func (e *InvalidUsageError) Error() string {
	return "invalid usage: " + e.Reason
}

// Accountant accumulates usage and cost. It is not safe for concurrent use;
// the owning session serializes access.
type Accountant struct {
	totals model.Totals
}

// New returns an accountant with zero totals.
func New() *Accountant {
	return &Accountant{}
}

// Cost returns the price of a single usage record at the given rates.
func Cost(u model.Usage, p model.Pricing) (input, cached, output float64) {
	input = float64(u.InputTokens) / perMillion * p.InputTokens
	cached = float64(u.CachedTokens) / perMillion * p.CachedTokens
	output = float64(u.OutputTokens) / perMillion * p.OutputTokens
	return input, cached, output
}

// Record prices usage and adds it to the totals. Invalid usage leaves the
// totals untouched.
func (a *Accountant) Record(usage *model.Usage, pricing model.Pricing) (float64, model.Totals, error) {
	if err := check(usage); err != nil {
		return 0, a.totals, err
	}
	turn := a.add(*usage, pricing)
	return turn, a.totals, nil
}

// RecordAll prices a batch as one record: token counts are summed first and
// priced once. Any invalid entry rejects the whole batch.
func (a *Accountant) RecordAll(usages []*model.Usage, pricing model.Pricing) (float64, model.Totals, error) {
	var sum model.Usage
	for i, u := range usages {
		if err := check(u); err != nil {
			return 0, a.totals, fmt.Errorf("usage %d: %w", i, err)
		}
		sum.InputTokens += u.InputTokens
		sum.CachedTokens += u.CachedTokens
		sum.OutputTokens += u.OutputTokens
	}
	turn := a.add(sum, pricing)
	return turn, a.totals, nil
}

// Totals returns the cumulative totals.
func (a *Accountant) Totals() model.Totals {
	return a.totals
}

// Restore replaces the totals, e.g. when a session is rebuilt from a record.
func (a *Accountant) Restore(t model.Totals) {
	a.totals = t
}

func (a *Accountant) add(u model.Usage, p model.Pricing) float64 {
	in, cached, out := Cost(u, p)
	turn := in + cached + out

	a.totals.InputTokens += u.InputTokens
	a.totals.CachedTokens += u.CachedTokens
	a.totals.OutputTokens += u.OutputTokens
	a.totals.InputCost += in
	a.totals.CachedCost += cached
	a.totals.OutputCost += out
	a.totals.CostUSD += turn
	return turn
}

func check(u *model.Usage) error {
	switch {
	case u == nil:
		return &InvalidUsageError{Reason: "usage is missing"}
	case u.InputTokens < 0:
		return &InvalidUsageError{Reason: fmt.Sprintf("negative input tokens: %d", u.InputTokens)}
	case u.CachedTokens < 0:
		return &InvalidUsageError{Reason: fmt.Sprintf("negative cached tokens: %d", u.CachedTokens)}
	case u.OutputTokens < 0:
		return &InvalidUsageError{Reason: fmt.Sprintf("negative output tokens: %d", u.OutputTokens)}
	}
	return nil
}

// FormatUSD renders a cost with four decimal places.
func FormatUSD(v float64) string {
	return fmt.Sprintf("$%.4f", v)
}
