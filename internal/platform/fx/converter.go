// Package fx converts payment amounts into a treatment's currency.
package fx

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/odonto/odonto/internal/platform/apperr"
)

// Source records where a rate came from.
type Source string

const (
	SourceIdentity Source = "identity"
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// ErrNoRateAvailable is returned for pairs with neither a live nor a
// fallback rate.
var ErrNoRateAvailable = &apperr.Error{Kind: apperr.KindValidation, Msg: "no exchange rate available"}

type Conversion struct {
	Amount    decimal.Decimal `json:"amount"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Source    Source          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
}

// FallbackPair is the one pair the clinic can always convert: Rate units of
// Quote per unit of Base.
type FallbackPair struct {
	Base  string
	Quote string
	Rate  decimal.Decimal
}

func (f FallbackPair) rateFor(from, to string) (decimal.Decimal, bool) {
	if !f.Rate.IsPositive() {
		return decimal.Zero, false
	}
	switch {
	case from == f.Base && to == f.Quote:
		return f.Rate.Round(RatePlaces), true
	case from == f.Quote && to == f.Base:
		return decimal.NewFromInt(1).DivRound(f.Rate, RatePlaces), true
	}
	return decimal.Zero, false
}

// RatePlaces is the precision rates are applied and stored at.
const RatePlaces = 8

type Converter struct {
	provider RateProvider
	fallback FallbackPair
	logger   zerolog.Logger
	now      func() time.Time
}

func NewConverter(provider RateProvider, fallback FallbackPair, logger zerolog.Logger) *Converter {
	return &Converter{provider: provider, fallback: fallback, logger: logger, now: time.Now}
}

// NormalizeCurrency upper-cases code and checks it is ISO 4217.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if _, err := currency.ParseISO(code); err != nil {
		return "", apperr.Validation("fx", "unsupported currency %q", code)
	}
	return code, nil
}

// Convert expresses amount (in from) in to. Lookup failures never surface:
// they downgrade to the fallback pair, and only pairs outside it fail.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (Conversion, error) {
	from, err := NormalizeCurrency(from)
	if err != nil {
		return Conversion{}, err
	}
	to, err = NormalizeCurrency(to)
	if err != nil {
		return Conversion{}, err
	}

	// The converted amount is always original × Rate rounded to cents, with
	// both operands exactly as returned.
	amount = amount.Round(2)
	conv := Conversion{From: from, To: to, Timestamp: c.now().UTC()}
	if from == to {
		conv.Amount = amount
		conv.Rate = decimal.NewFromInt(1)
		conv.Source = SourceIdentity
		return conv, nil
	}

	rate, lookupErr := c.liveRate(ctx, from, to)
	if lookupErr == nil {
		conv.Amount = amount.Mul(rate).Round(2)
		conv.Rate = rate
		conv.Source = SourceLive
		return conv, nil
	}

	if rate, ok := c.fallback.rateFor(from, to); ok {
		c.logger.Warn().Err(lookupErr).
			Str("from", from).Str("to", to).Str("rate", rate.String()).
			Msg("exchange rate lookup failed, using fallback rate")
		conv.Amount = amount.Mul(rate).Round(2)
		conv.Rate = rate
		conv.Source = SourceFallback
		return conv, nil
	}

	c.logger.Warn().Err(lookupErr).Str("from", from).Str("to", to).Msg("no exchange rate available")
	return Conversion{}, &apperr.Error{Kind: apperr.KindValidation, Op: "fx.Convert", Msg: ErrNoRateAvailable.Msg, Err: lookupErr}
}

func (c *Converter) liveRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if c.provider == nil {
		return decimal.Zero, ErrLookupFailed
	}
	rates, err := c.provider.Rates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[to]
	rate = rate.Round(RatePlaces)
	if !ok || !rate.IsPositive() {
		return decimal.Zero, apperr.ExternalService("fx.Rates", ErrLookupFailed)
	}
	return rate, nil
}
