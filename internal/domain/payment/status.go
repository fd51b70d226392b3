package payment

import "github.com/shopspring/decimal"

// Status is derived from final total and paid amount; it is never set
// directly.
type Status string

const (
	StatusPending Status = "pendiente"
	StatusPartial Status = "parcialmente_pagado"
	StatusPaid    Status = "pagado"
)

// StatusFor derives the payment status of a treatment.
func StatusFor(finalTotal, paid decimal.Decimal) Status {
	switch {
	case !finalTotal.IsPositive(), paid.GreaterThanOrEqual(finalTotal):
		return StatusPaid
	case !paid.IsPositive():
		return StatusPending
	}
	return StatusPartial
}

// Summary is the recomputed payment state of one treatment.
type Summary struct {
	TreatmentID string          `json:"treatment_id"`
	Currency    string          `json:"currency"`
	FinalTotal  decimal.Decimal `json:"final_total"`
	Paid        decimal.Decimal `json:"paid"`
	// Pending is never negative, even for an overpaid ledger.
	Pending decimal.Decimal `json:"pending"`
	Status  Status          `json:"status"`
}

func NewSummary(acct *Account, paid decimal.Decimal) *Summary {
	pending := acct.FinalTotal.Sub(paid)
	if pending.IsNegative() {
		pending = decimal.Zero
	}
	return &Summary{
		TreatmentID: acct.TreatmentID.String(),
		Currency:    acct.Currency,
		FinalTotal:  acct.FinalTotal,
		Paid:        paid,
		Pending:     pending,
		Status:      StatusFor(acct.FinalTotal, paid),
	}
}
