package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash     Method = "efectivo"
	MethodCard     Method = "tarjeta"
	MethodTransfer Method = "transferencia"
	MethodCheck    Method = "cheque"
	MethodOther    Method = "otro"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodCheck, MethodOther:
		return true
	}
	return false
}

// Payment is one ledger row. Rows are inserted and deleted, never updated.
// Amount and Currency are always in the treatment's currency; the Original*
// fields hold what the cashier typed.
type Payment struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	TreatmentID       uuid.UUID       `db:"completed_treatment_id" json:"treatment_id"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Currency          string          `db:"currency" json:"currency"`
	OriginalAmount    decimal.Decimal `db:"original_amount" json:"original_amount"`
	OriginalCurrency  string          `db:"original_currency" json:"original_currency"`
	ConvertedAmount   decimal.Decimal `db:"converted_amount" json:"converted_amount"`
	ConvertedCurrency string          `db:"converted_currency" json:"converted_currency"`
	Rate              decimal.Decimal `db:"rate" json:"rate"`
	RateSource        string          `db:"rate_source" json:"rate_source"`
	Method            Method          `db:"method" json:"method"`
	Note              *string         `db:"note" json:"note,omitempty"`
	PaidAt            time.Time       `db:"paid_at" json:"paid_at"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// Account is the payable view of a completed treatment. PaidAmount and
// Status are cached columns and may only be trusted after a recompute.
type Account struct {
	TreatmentID uuid.UUID
	Currency    string
	FinalTotal  decimal.Decimal
	PaidAmount  decimal.Decimal
	Status      Status
}

type AddPaymentRequest struct {
	TreatmentID uuid.UUID       `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Method      Method          `json:"method"`
	Note        *string         `json:"note,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}
