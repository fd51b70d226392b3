// Package pricing computes treatment totals. Everything here is pure: no
// I/O, no clocks, no shared state.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a manual discount is interpreted.
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountFixed      DiscountType = "fixed"
	DiscountPercentage DiscountType = "percentage"
)

func (t DiscountType) Valid() bool {
	switch t {
	case DiscountNone, DiscountFixed, DiscountPercentage, "":
		return true
	}
	return false
}

var hundred = decimal.NewFromInt(100)

// Rates holds the age discount policy.
type Rates struct {
	SeniorAge  int
	ElderAge   int
	MinorAge   int
	SeniorRate decimal.Decimal
	ElderRate  decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{
		SeniorAge:  60,
		ElderAge:   80,
		MinorAge:   18,
		SeniorRate: decimal.RequireFromString("0.25"),
		ElderRate:  decimal.RequireFromString("0.35"),
	}
}

func (r Rates) rateFor(c AgeCategory) (decimal.Decimal, bool) {
	switch c {
	case CategorySenior:
		return r.SeniorRate, true
	case CategoryElder:
		return r.ElderRate, true
	}
	return decimal.Zero, false
}

// Line is one priced procedure as the calculator sees it. For promotional
// lines UnitOriginal is already the promotional price.
type Line struct {
	Name               string
	UnitOriginal       decimal.Decimal
	Quantity           int
	Promotional        bool
	DisableAgeDiscount bool
}

// ManualDiscount is the discount typed in by the receptionist.
type ManualDiscount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Input bundles one calculation.
type Input struct {
	Lines    []Line
	Category AgeCategory
	Manual   ManualDiscount
	// Charge is false for historical records without bypass; see Gate.
	Charge bool
}

type LineResult struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

type Result struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	ManualDiscount decimal.Decimal `json:"manual_discount"`
	Lines          []LineResult    `json:"lines"`
	Reasons        []string        `json:"reasons"`
}

type Calculator struct {
	rates Rates
}

func NewCalculator(r Rates) *Calculator {
	return &Calculator{rates: r}
}

// Calculate applies, in order: per-line age discount, then the manual
// discount against what is left. The total never goes below zero.
func (c *Calculator) Calculate(in Input) Result {
	res := Result{
		Subtotal:       decimal.Zero,
		Discount:       decimal.Zero,
		Total:          decimal.Zero,
		ManualDiscount: decimal.Zero,
		Lines:          make([]LineResult, len(in.Lines)),
		Reasons:        []string{},
	}

	if !in.Charge {
		for i := range in.Lines {
			res.Lines[i] = LineResult{Subtotal: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero}
		}
		res.Reasons = append(res.Reasons, "registro histórico: sin cargo")
		return res
	}

	rate, aged := c.rates.rateFor(in.Category)
	for i, l := range in.Lines {
		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		price := l.UnitOriginal
		if price.IsNegative() {
			price = decimal.Zero
		}

		lr := LineResult{Subtotal: price.Mul(decimal.NewFromInt(int64(qty))).Round(2), Discount: decimal.Zero}
		if aged && (!l.Promotional || !l.DisableAgeDiscount) {
			lr.Discount = lr.Subtotal.Mul(rate).Round(2)
			res.Reasons = append(res.Reasons, fmt.Sprintf("descuento %s %s%% en %s",
				categoryLabel(in.Category), rate.Mul(hundred).String(), l.Name))
		}
		lr.Total = lr.Subtotal.Sub(lr.Discount)

		res.Lines[i] = lr
		res.Subtotal = res.Subtotal.Add(lr.Subtotal)
		res.Discount = res.Discount.Add(lr.Discount)
	}

	remaining := res.Subtotal.Sub(res.Discount)
	manual := manualAmount(in.Manual, remaining)
	if manual.IsPositive() {
		res.ManualDiscount = manual
		res.Discount = res.Discount.Add(manual)
		res.Reasons = append(res.Reasons, manualReason(in.Manual, manual))
	}

	res.Total = res.Subtotal.Sub(res.Discount)
	if res.Total.IsNegative() {
		res.Total = decimal.Zero
	}
	return res
}

// manualAmount resolves a manual discount against the remaining balance. A
// fixed amount is capped at the balance; a percentage is clamped to 0..100.
func manualAmount(m ManualDiscount, remaining decimal.Decimal) decimal.Decimal {
	if !remaining.IsPositive() || !m.Value.IsPositive() {
		return decimal.Zero
	}
	switch m.Type {
	case DiscountFixed:
		return decimal.Min(m.Value, remaining).Round(2)
	case DiscountPercentage:
		pct := decimal.Min(m.Value, hundred)
		return remaining.Mul(pct).Div(hundred).Round(2)
	}
	return decimal.Zero
}

func manualReason(m ManualDiscount, applied decimal.Decimal) string {
	if m.Type == DiscountPercentage {
		return fmt.Sprintf("descuento manual %s%% (%s)", decimal.Min(m.Value, hundred).String(), applied.StringFixed(2))
	}
	return fmt.Sprintf("descuento manual fijo (%s)", applied.StringFixed(2))
}

func categoryLabel(c AgeCategory) string {
	if c == CategoryElder {
		return "cuarta edad"
	}
	return "tercera edad"
}
