package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a treatment offered by the clinic. Prices are snapshotted onto
// treatment lines at save time; later catalog edits never reprice a record.
type Item struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Code      string          `db:"code" json:"code"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Currency  string          `db:"currency" json:"currency"`
	Active    bool            `db:"active" json:"active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Promotion is read-only to billing apart from its usage counter.
type Promotion struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Code             string          `db:"code" json:"code"`
	Name             string          `db:"name" json:"name"`
	DiscountPercent  decimal.Decimal `db:"discount_percent" json:"discount_percent"`
	OriginalPrice    decimal.Decimal `db:"original_price" json:"original_price"`
	PromotionalPrice decimal.Decimal `db:"promotional_price" json:"promotional_price"`
	Currency         string          `db:"currency" json:"currency"`
	ValidFrom        *time.Time      `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil       *time.Time      `db:"valid_until" json:"valid_until,omitempty"`
	Active           bool            `db:"active" json:"active"`
	// IsGroup is nil for rows created before the flag existed.
	IsGroup          *bool     `db:"is_group" json:"is_group,omitempty"`
	MaxBeneficiaries int       `db:"max_beneficiaries" json:"max_beneficiaries"`
	UsageCount       int       `db:"usage_count" json:"usage_count"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// IsGroupPromotion reports whether one payer covers beneficiaries under this
// promotion. Unclassified legacy rows fall back to the name heuristic.
func (p *Promotion) IsGroupPromotion() bool {
	if p.IsGroup != nil {
		return *p.IsGroup
	}
	return LooksLikeGroupName(p.Name)
}

// ActiveOn reports whether the promotion can be applied to a visit on day.
// The window bounds are inclusive calendar days.
func (p *Promotion) ActiveOn(day time.Time) bool {
	if !p.Active {
		return false
	}
	d := dateOnly(day)
	if p.ValidFrom != nil && d.Before(dateOnly(*p.ValidFrom)) {
		return false
	}
	if p.ValidUntil != nil && d.After(dateOnly(*p.ValidUntil)) {
		return false
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
