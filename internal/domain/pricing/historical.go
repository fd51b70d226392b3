package pricing

import (
	"context"
	"time"
)

// PricingContext carries what the gate needs about one record. It is passed
// explicitly; there is no process-wide bypass switch.
type PricingContext struct {
	AsOfDate time.Time
	Bypass   bool
}

// HistoricalPolicy marks records dated before Cutoff as historical.
type HistoricalPolicy struct {
	Cutoff  time.Time
	Enabled bool
}

// PolicyProvider supplies the historical window in effect.
type PolicyProvider interface {
	HistoricalPolicy(ctx context.Context) (HistoricalPolicy, error)
}

// StaticPolicy is a PolicyProvider backed by configuration.
type StaticPolicy HistoricalPolicy

func (p StaticPolicy) HistoricalPolicy(context.Context) (HistoricalPolicy, error) {
	return HistoricalPolicy(p), nil
}

type Decision struct {
	Historical        bool `json:"historical"`
	Bypassed          bool `json:"bypassed"`
	RequiresPricing   bool `json:"requires_pricing"`
	RequiresSignature bool `json:"requires_signature"`
}

// Gate decides whether a record is priced and signed. Dates compare by
// calendar day so a visit on the cutoff day is not historical.
func Gate(p HistoricalPolicy, pc PricingContext) Decision {
	historical := p.Enabled && !p.Cutoff.IsZero() && !pc.AsOfDate.IsZero() &&
		dateOnly(pc.AsOfDate).Before(dateOnly(p.Cutoff))

	active := !historical || pc.Bypass
	return Decision{
		Historical:        historical,
		Bypassed:          historical && pc.Bypass,
		RequiresPricing:   active,
		RequiresSignature: active,
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
