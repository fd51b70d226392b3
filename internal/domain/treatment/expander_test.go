package treatment

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odonto/odonto/internal/domain/catalog"
	"github.com/odonto/odonto/internal/domain/payment"
	"github.com/odonto/odonto/internal/platform/apperr"
)

func pricedPayer() *CompletedTreatment {
	return &CompletedTreatment{
		PatientID:         uuid.New(),
		VisitDate:         visitDay,
		Currency:          "HNL",
		Subtotal:          dec("500"),
		DiscountTotal:     decimal.Zero,
		FinalTotal:        dec("500"),
		RequiresSignature: true,
		Status:            payment.StatusPending,
		Lines: []*Line{{
			ID: uuid.New(), Kind: KindPromotion, CatalogRef: uuid.New(), Name: "Limpieza 2x1",
			UnitPriceOriginal: dec("500"), UnitPriceFinal: dec("500"), Currency: "HNL", Quantity: 1,
		}},
	}
}

func TestExpand_Individual(t *testing.T) {
	recs, err := Expand(pricedPayer(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].Role != RoleIndividual || recs[0].ID == uuid.Nil {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestExpand_LegacyNameHeuristic(t *testing.T) {
	promo := &catalog.Promotion{ID: uuid.New(), Name: "Limpieza dos por uno", MaxBeneficiaries: 1}
	recs, err := Expand(pricedPayer(), promo, []uuid.UUID{uuid.New()})
	if err != nil {
		t.Fatalf("unclassified 'dos por uno' promotion should expand: %v", err)
	}
	if len(recs) != 2 || recs[0].Role != RolePayer {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestExpand_BeneficiariesAreCompleteZeroCostCopies(t *testing.T) {
	payer := pricedPayer()
	promo := &catalog.Promotion{ID: uuid.New(), Name: "Limpieza 2x1", IsGroup: ptrBool(true), MaxBeneficiaries: 2}
	bens := []uuid.UUID{uuid.New(), uuid.New()}

	recs, err := Expand(payer, promo, bens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0] != payer || payer.PromotionID == nil || *payer.PromotionID != promo.ID {
		t.Error("payer must come first and reference the promotion")
	}
	if payer.GroupPosition != 0 {
		t.Errorf("payer GroupPosition = %d, want 0", payer.GroupPosition)
	}
	for i, b := range recs[1:] {
		if b.PatientID != bens[i] || b.Role != RoleBeneficiary {
			t.Errorf("beneficiary %d: unexpected identity %+v", i, b)
		}
		if b.GroupPosition != i+1 {
			t.Errorf("beneficiary %d: GroupPosition = %d, want %d", i, b.GroupPosition, i+1)
		}
		if *b.ParentID != payer.ID || b.ID == payer.ID {
			t.Errorf("beneficiary %d: bad parent link", i)
		}
		if !b.Subtotal.IsZero() || !b.FinalTotal.IsZero() || b.RequiresSignature || b.Status != payment.StatusPaid {
			t.Errorf("beneficiary %d: must be free and unsigned", i)
		}
		if b.VisitDate != payer.VisitDate || b.Currency != payer.Currency {
			t.Errorf("beneficiary %d: header not copied", i)
		}
		if len(b.Lines) != 1 || b.Lines[0].ID == payer.Lines[0].ID || b.Lines[0].TreatmentID != b.ID {
			t.Errorf("beneficiary %d: lines must be fresh copies", i)
		}
		if !b.Lines[0].UnitPriceOriginal.Equal(dec("500")) || !b.Lines[0].UnitPriceFinal.IsZero() {
			t.Errorf("beneficiary %d: line should keep original and zero final price", i)
		}
	}
	if !payer.Lines[0].UnitPriceFinal.Equal(dec("500")) {
		t.Error("payer lines must not be modified")
	}
}

func TestExpand_CapacityExceeded(t *testing.T) {
	promo := &catalog.Promotion{ID: uuid.New(), Name: "2x1", IsGroup: ptrBool(true), MaxBeneficiaries: 1}
	_, err := Expand(pricedPayer(), promo, []uuid.UUID{uuid.New(), uuid.New()})
	if !errors.Is(err, ErrCapacityExceeded) || !apperr.IsValidation(err) {
		t.Errorf("expected capacity validation error, got %v", err)
	}
}

func TestExpand_NonGroupWithBeneficiaries(t *testing.T) {
	promo := &catalog.Promotion{ID: uuid.New(), Name: "Limpieza 2x1", IsGroup: ptrBool(false), MaxBeneficiaries: 5}
	if _, err := Expand(pricedPayer(), promo, []uuid.UUID{uuid.New()}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
