package treatment

import (
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/odonto/odonto/internal/domain/catalog"
	"github.com/odonto/odonto/internal/domain/payment"
	"github.com/odonto/odonto/internal/domain/pricing"
	"github.com/odonto/odonto/internal/platform/apperr"
)

// ErrCapacityExceeded is returned before any write when a group sale names
// more beneficiaries than the promotion allows.
var ErrCapacityExceeded = &apperr.Error{Kind: apperr.KindValidation, Msg: "promotion beneficiary capacity exceeded"}

// Expand turns a priced payer record into the full set of rows for a sale.
// Without a group promotion the payer is returned alone as an individual
// record. For a group promotion it returns the payer first, followed by one
// zero-cost beneficiary per id, each carrying a full copy of the lines.
func Expand(payer *CompletedTreatment, promo *catalog.Promotion, beneficiaries []uuid.UUID) ([]*CompletedTreatment, error) {
	const op = "treatment.Expand"
	if payer.ID == uuid.Nil {
		payer.ID = uuid.New()
	}

	if promo == nil || !promo.IsGroupPromotion() {
		if len(beneficiaries) > 0 {
			return nil, apperr.Validation(op, "beneficiaries require a group promotion")
		}
		payer.Role = RoleIndividual
		return []*CompletedTreatment{payer}, nil
	}

	if len(beneficiaries) > promo.MaxBeneficiaries {
		return nil, &apperr.Error{
			Kind: apperr.KindValidation, Op: op, Msg: ErrCapacityExceeded.Msg,
			Err: apperr.Validation(op, "%d beneficiaries, promotion %q allows %d", len(beneficiaries), promo.Name, promo.MaxBeneficiaries),
		}
	}

	payer.Role = RolePayer
	payer.GroupPosition = 0
	payer.PromotionID = &promo.ID
	out := make([]*CompletedTreatment, 0, len(beneficiaries)+1)
	out = append(out, payer)
	for i, patientID := range beneficiaries {
		b := beneficiaryOf(payer, patientID)
		b.GroupPosition = i + 1
		out = append(out, b)
	}
	return out, nil
}

func beneficiaryOf(payer *CompletedTreatment, patientID uuid.UUID) *CompletedTreatment {
	id := uuid.New()
	parent := payer.ID
	b := &CompletedTreatment{
		ID:                id,
		PatientID:         patientID,
		VisitDate:         payer.VisitDate,
		Currency:          payer.Currency,
		Subtotal:          decimal.Zero,
		DiscountTotal:     decimal.Zero,
		FinalTotal:        decimal.Zero,
		DiscountType:      pricing.DiscountNone,
		DiscountValue:     decimal.Zero,
		Role:              RoleBeneficiary,
		ParentID:          &parent,
		PromotionID:       payer.PromotionID,
		RequestID:         payer.RequestID,
		RequiresSignature: false,
		PaidAmount:        decimal.Zero,
		Status:            payment.StatusFor(decimal.Zero, decimal.Zero),
		IsHistorical:      payer.IsHistorical,
	}
	b.Lines = lo.Map(payer.Lines, func(l *Line, _ int) *Line {
		cp := *l
		cp.ID = uuid.New()
		cp.TreatmentID = id
		cp.UnitPriceFinal = decimal.Zero
		return &cp
	})
	return b
}
