package treatment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odonto/odonto/internal/domain/payment"
	"github.com/odonto/odonto/internal/domain/pricing"
)

// Role is how a record takes part in a (possibly group) sale.
type Role string

const (
	RoleIndividual  Role = "individual"
	RolePayer       Role = "payer"
	RoleBeneficiary Role = "beneficiary"
)

// LineKind tells catalog treatment lines from promotion lines. For a
// promotion line CatalogRef is the promotion id.
type LineKind string

const (
	KindTreatment LineKind = "treatment"
	KindPromotion LineKind = "promotion"
)

// CompletedTreatment maps to the completed_treatment table.
type CompletedTreatment struct {
	ID                uuid.UUID            `db:"id" json:"id"`
	PatientID         uuid.UUID            `db:"patient_id" json:"patient_id"`
	VisitDate         time.Time            `db:"visit_date" json:"visit_date"`
	Currency          string               `db:"currency" json:"currency"`
	Subtotal          decimal.Decimal      `db:"subtotal" json:"subtotal"`
	DiscountTotal     decimal.Decimal      `db:"discount_total" json:"discount_total"`
	FinalTotal        decimal.Decimal      `db:"final_total" json:"final_total"`
	DiscountType      pricing.DiscountType `db:"discount_type" json:"discount_type"`
	DiscountValue     decimal.Decimal      `db:"discount_value" json:"discount_value"`
	Role              Role                 `db:"role" json:"role"`
	ParentID          *uuid.UUID           `db:"parent_id" json:"parent_id,omitempty"`
	PromotionID       *uuid.UUID           `db:"promotion_id" json:"promotion_id,omitempty"`
	RequestID         *uuid.UUID           `db:"request_id" json:"request_id,omitempty"`
	SignatureRef      *string              `db:"signature_ref" json:"signature_ref,omitempty"`
	RequiresSignature bool                 `db:"requires_signature" json:"requires_signature"`
	PaidAmount        decimal.Decimal      `db:"paid_amount" json:"paid_amount"`
	Status            payment.Status       `db:"status" json:"status"`
	IsHistorical      bool                 `db:"is_historical" json:"is_historical"`
	// GroupPosition is 0 for the payer or individual record and 1..N for
	// beneficiaries in the order they were named.
	GroupPosition     int                  `db:"group_position" json:"group_position"`
	CreatedAt         time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `db:"updated_at" json:"updated_at"`

	Lines []*Line `db:"-" json:"lines,omitempty"`
}

// Line maps to treatment_line. Name, code and prices are snapshots taken at
// save time.
type Line struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	TreatmentID        uuid.UUID       `db:"completed_treatment_id" json:"treatment_id"`
	Kind               LineKind        `db:"kind" json:"kind"`
	CatalogRef         uuid.UUID       `db:"catalog_ref" json:"catalog_ref"`
	Name               string          `db:"name" json:"name"`
	Code               *string         `db:"code" json:"code,omitempty"`
	UnitPriceOriginal  decimal.Decimal `db:"unit_price_original" json:"unit_price_original"`
	UnitPriceFinal     decimal.Decimal `db:"unit_price_final" json:"unit_price_final"`
	Currency           string          `db:"currency" json:"currency"`
	Quantity           int             `db:"quantity" json:"quantity"`
	Note               *string         `db:"note" json:"note,omitempty"`
	ClinicianID        *uuid.UUID      `db:"clinician_id" json:"clinician_id,omitempty"`
	ClinicianName      *string         `db:"clinician_name" json:"clinician_name,omitempty"`
	DisableAgeDiscount bool            `db:"disable_age_discount" json:"disable_age_discount"`
	Position           int             `db:"position" json:"position"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

func (l *Line) Promotional() bool { return l.Kind == KindPromotion }

// LineInput is one selected line as submitted by the front desk.
type LineInput struct {
	Kind               LineKind   `json:"kind"`
	CatalogRef         uuid.UUID  `json:"catalog_ref"`
	Quantity           int        `json:"quantity"`
	Note               *string    `json:"note,omitempty"`
	ClinicianID        *uuid.UUID `json:"clinician_id,omitempty"`
	ClinicianName      *string    `json:"clinician_name,omitempty"`
	DisableAgeDiscount bool       `json:"disable_age_discount"`
}

// SaveRequest is everything needed to price and persist one visit. It is
// echoed back on failure so the caller can retry without re-entering it.
type SaveRequest struct {
	// RequestID makes Save idempotent when the client replays a request.
	RequestID     *uuid.UUID           `json:"request_id,omitempty"`
	PatientID     uuid.UUID            `json:"patient_id"`
	VisitDate     *time.Time           `json:"visit_date,omitempty"`
	Currency      string               `json:"currency,omitempty"`
	Lines         []LineInput          `json:"lines"`
	DiscountType  pricing.DiscountType `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal      `json:"discount_value"`
	Beneficiaries []uuid.UUID          `json:"beneficiaries,omitempty"`
	SignatureRef  *string              `json:"signature_ref,omitempty"`
}

// SaveResult is the persisted record, plus beneficiaries for a group sale.
type SaveResult struct {
	Treatment     *CompletedTreatment   `json:"treatment"`
	Beneficiaries []*CompletedTreatment `json:"beneficiaries"`
	Pricing       pricing.Result        `json:"pricing"`
	Decision      pricing.Decision      `json:"decision"`
	Replayed      bool                  `json:"replayed"`
}

// Quote is a priced draft that was not written.
type Quote struct {
	Treatment *CompletedTreatment `json:"treatment"`
	Pricing   pricing.Result      `json:"pricing"`
	Decision  pricing.Decision    `json:"decision"`
	Category  pricing.AgeCategory `json:"age_category"`
	GroupSale bool                `json:"group_sale"`
}
