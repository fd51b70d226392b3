package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PricingPolicy is the clinic's pricing rule file. Every field has a
// default, so the file only needs to list what differs.
type PricingPolicy struct {
	AgeDiscounts struct {
		SeniorAge  int             `yaml:"senior_age"`
		ElderAge   int             `yaml:"elder_age"`
		MinorAge   int             `yaml:"minor_age"`
		SeniorRate decimal.Decimal `yaml:"senior_rate"`
		ElderRate  decimal.Decimal `yaml:"elder_rate"`
	} `yaml:"age_discounts"`

	Currency struct {
		Default      string          `yaml:"default"`
		FallbackBase string          `yaml:"fallback_base"`
		FallbackTo   string          `yaml:"fallback_quote"`
		FallbackRate decimal.Decimal `yaml:"fallback_rate"`
	} `yaml:"currency"`

	Historical struct {
		Enabled bool   `yaml:"enabled"`
		Cutoff  string `yaml:"cutoff"`
	} `yaml:"historical"`
}

// DefaultPricingPolicy is used when PRICING_POLICY_FILE is empty.
func DefaultPricingPolicy() *PricingPolicy {
	p := &PricingPolicy{}
	p.AgeDiscounts.SeniorAge = 60
	p.AgeDiscounts.ElderAge = 80
	p.AgeDiscounts.MinorAge = 18
	p.AgeDiscounts.SeniorRate = decimal.RequireFromString("0.25")
	p.AgeDiscounts.ElderRate = decimal.RequireFromString("0.35")
	p.Currency.Default = "HNL"
	p.Currency.FallbackBase = "USD"
	p.Currency.FallbackTo = "HNL"
	p.Currency.FallbackRate = decimal.RequireFromString("24.5")
	return p
}

// LoadPricingPolicy reads a YAML policy over the defaults.
func LoadPricingPolicy(path string) (*PricingPolicy, error) {
	p := DefaultPricingPolicy()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parse pricing policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("pricing policy %s: %w", path, err)
	}
	return p, nil
}

func (p *PricingPolicy) Validate() error {
	one := decimal.NewFromInt(1)
	a := p.AgeDiscounts
	if a.SeniorAge <= 0 || a.ElderAge <= a.SeniorAge {
		return fmt.Errorf("elder_age (%d) must be greater than senior_age (%d)", a.ElderAge, a.SeniorAge)
	}
	for name, r := range map[string]decimal.Decimal{"senior_rate": a.SeniorRate, "elder_rate": a.ElderRate} {
		if r.IsNegative() || r.GreaterThan(one) {
			return fmt.Errorf("%s must be between 0 and 1, got %s", name, r)
		}
	}
	if !p.Currency.FallbackRate.IsPositive() {
		return fmt.Errorf("fallback_rate must be positive, got %s", p.Currency.FallbackRate)
	}
	if p.Historical.Enabled {
		if _, err := p.HistoricalCutoff(); err != nil {
			return err
		}
	}
	p.Currency.Default = strings.ToUpper(p.Currency.Default)
	p.Currency.FallbackBase = strings.ToUpper(p.Currency.FallbackBase)
	p.Currency.FallbackTo = strings.ToUpper(p.Currency.FallbackTo)
	return nil
}

// HistoricalCutoff parses the cutoff as a calendar date (YYYY-MM-DD).
func (p *PricingPolicy) HistoricalCutoff() (time.Time, error) {
	if p.Historical.Cutoff == "" {
		return time.Time{}, fmt.Errorf("historical.cutoff is required when historical pricing is enabled")
	}
	t, err := time.Parse(time.DateOnly, p.Historical.Cutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("historical.cutoff: %w", err)
	}
	return t, nil
}
