package treatment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/odonto/odonto/internal/domain/catalog"
	"github.com/odonto/odonto/internal/domain/patient"
	"github.com/odonto/odonto/internal/domain/payment"
	"github.com/odonto/odonto/internal/domain/pricing"
	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/db"
	"github.com/odonto/odonto/internal/platform/fx"
)

type Settings struct {
	Rates           pricing.Rates
	DefaultCurrency string
}

type Service struct {
	repo       Repository
	tx         db.TxRunner
	items      catalog.ItemRepository
	promotions catalog.PromotionRepository
	patients   patient.Repository
	policy     pricing.PolicyProvider
	calc       *pricing.Calculator
	settings   Settings
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, items catalog.ItemRepository, promotions catalog.PromotionRepository,
	patients patient.Repository, policy pricing.PolicyProvider, settings Settings, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		items:      items,
		promotions: promotions,
		patients:   patients,
		policy:     policy,
		calc:       pricing.NewCalculator(settings.Rates),
		settings:   settings,
		logger:     logger.With().Str("component", "treatment").Logger(),
		now:        time.Now,
	}
}

// draft is a priced, validated request that has not been written.
type draft struct {
	records    []*CompletedTreatment
	promoIDs   []uuid.UUID
	groupPromo *catalog.Promotion
	result     pricing.Result
	decision   pricing.Decision
	category   pricing.AgeCategory
	payerName  string
}

// Save prices the request and writes the treatment with its lines, plus any
// beneficiaries, in one transaction. Replaying a committed RequestID returns
// the stored records without writing again.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if req.RequestID != nil {
		res, err := s.replay(ctx, *req.RequestID)
		if err == nil {
			return res, nil
		}
		if !apperr.IsNotFound(err) {
			return nil, err
		}
	}

	d, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, rec := range d.records {
			if err := s.repo.Create(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrDuplicateRequest) && req.RequestID != nil {
		return s.replay(ctx, *req.RequestID)
	}
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Persistence("treatment.Save", err)
		}
		s.logger.Error().Err(err).
			Str("patient_id", req.PatientID.String()).
			Int("records", len(d.records)).
			Msg("treatment save rolled back")
		return nil, err
	}

	// Usage counters live in the catalog and are bumped once per committed
	// save. They are never decremented.
	for _, id := range d.promoIDs {
		if err := s.promotions.IncrementUsage(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("promotion_id", id.String()).Msg("promotion usage not incremented")
		}
	}

	head := d.records[0]
	s.logger.Info().
		Str("treatment_id", head.ID.String()).
		Str("patient_id", head.PatientID.String()).
		Str("patient", d.payerName).
		Str("role", string(head.Role)).
		Int("beneficiaries", len(d.records)-1).
		Str("final_total", head.FinalTotal.String()).
		Str("currency", head.Currency).
		Bool("historical", head.IsHistorical).
		Msg("treatment saved")

	return &SaveResult{
		Treatment:     head,
		Beneficiaries: d.records[1:],
		Pricing:       d.result,
		Decision:      d.decision,
	}, nil
}

// Quote prices a request exactly as Save would, without writing.
func (s *Service) Quote(ctx context.Context, req SaveRequest) (*Quote, error) {
	d, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	head := d.records[0]
	head.ID = uuid.Nil
	for _, l := range head.Lines {
		l.ID, l.TreatmentID = uuid.Nil, uuid.Nil
	}
	return &Quote{
		Treatment: head,
		Pricing:   d.result,
		Decision:  d.decision,
		Category:  d.category,
		GroupSale: d.groupPromo != nil,
	}, nil
}

func (s *Service) replay(ctx context.Context, requestID uuid.UUID) (*SaveResult, error) {
	head, err := s.repo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if head.Lines, err = s.repo.GetLines(ctx, head.ID); err != nil {
		return nil, err
	}
	beneficiaries, err := s.repo.ListByParent(ctx, head.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range beneficiaries {
		if b.Lines, err = s.repo.GetLines(ctx, b.ID); err != nil {
			return nil, err
		}
	}
	if beneficiaries == nil {
		beneficiaries = []*CompletedTreatment{}
	}
	s.logger.Info().Str("request_id", requestID.String()).Str("treatment_id", head.ID.String()).Msg("replayed save")
	return &SaveResult{Treatment: head, Beneficiaries: beneficiaries, Replayed: true}, nil
}

func (s *Service) prepare(ctx context.Context, req SaveRequest) (*draft, error) {
	const op = "treatment.Save"
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation(op, "patient_id is required")
	}
	if len(req.Lines) == 0 {
		return nil, apperr.Validation(op, "at least one line is required")
	}
	if !req.DiscountType.Valid() {
		return nil, apperr.Validation(op, "invalid discount_type: %s", req.DiscountType)
	}
	if req.DiscountValue.IsNegative() {
		return nil, apperr.Validation(op, "discount_value must not be negative")
	}

	visit := s.now()
	if req.VisitDate != nil {
		visit = *req.VisitDate
	}
	y, m, day := visit.Date()
	visit = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)

	pat, err := s.patients.GetByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	d := &draft{payerName: pat.FullName()}
	lines := make([]*Line, 0, len(req.Lines))
	for i, in := range req.Lines {
		l, promo, err := s.resolveLine(ctx, in, visit)
		if err != nil {
			return nil, err
		}
		l.Position = i
		if promo != nil {
			d.promoIDs = append(d.promoIDs, promo.ID)
			if promo.IsGroupPromotion() {
				if d.groupPromo != nil && d.groupPromo.ID != promo.ID {
					return nil, apperr.Validation(op, "line %d: only one group promotion per treatment", i+1)
				}
				d.groupPromo = promo
			}
		}
		lines = append(lines, l)
	}
	d.promoIDs = lo.Uniq(d.promoIDs)

	currency := req.Currency
	if currency == "" {
		currency = lines[0].Currency
	}
	if currency == "" {
		currency = s.settings.DefaultCurrency
	}
	if currency, err = fx.NormalizeCurrency(currency); err != nil {
		return nil, err
	}
	for _, l := range lines {
		if l.Currency, err = fx.NormalizeCurrency(l.Currency); err != nil {
			return nil, err
		}
		if l.Currency != currency {
			return nil, apperr.Validation(op, "line %q is priced in %s, treatment currency is %s", l.Name, l.Currency, currency)
		}
	}

	beneficiaries, err := s.resolveBeneficiaries(ctx, req.PatientID, req.Beneficiaries)
	if err != nil {
		return nil, err
	}

	bypass, err := s.patients.HistoricalBypass(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.HistoricalPolicy(ctx)
	if err != nil {
		return nil, err
	}
	d.decision = pricing.Gate(policy, pricing.PricingContext{AsOfDate: visit, Bypass: bypass})
	d.category = s.settings.Rates.CategoryFor(pat.BirthDate, visit)

	manual := pricing.ManualDiscount{Type: req.DiscountType, Value: req.DiscountValue}
	if manual.Type == "" || manual.Type == pricing.DiscountNone || !d.decision.RequiresPricing {
		manual = pricing.ManualDiscount{Type: pricing.DiscountNone, Value: decimal.Zero}
	}
	d.result = s.calc.Calculate(pricing.Input{
		Lines: lo.Map(lines, func(l *Line, _ int) pricing.Line {
			return pricing.Line{
				Name:               l.Name,
				UnitOriginal:       l.UnitPriceOriginal,
				Quantity:           l.Quantity,
				Promotional:        l.Promotional(),
				DisableAgeDiscount: l.DisableAgeDiscount,
			}
		}),
		Category: d.category,
		Manual:   manual,
		Charge:   d.decision.RequiresPricing,
	})
	for i, lr := range d.result.Lines {
		lines[i].UnitPriceFinal = lr.Total.DivRound(decimal.NewFromInt(int64(lines[i].Quantity)), 2)
	}

	header := &CompletedTreatment{
		PatientID:         req.PatientID,
		VisitDate:         visit,
		Currency:          currency,
		Subtotal:          d.result.Subtotal,
		DiscountTotal:     d.result.Discount,
		FinalTotal:        d.result.Total,
		DiscountType:      manual.Type,
		DiscountValue:     manual.Value,
		RequestID:         req.RequestID,
		SignatureRef:      req.SignatureRef,
		RequiresSignature: d.decision.RequiresSignature,
		PaidAmount:        decimal.Zero,
		Status:            payment.StatusFor(d.result.Total, decimal.Zero),
		IsHistorical:      d.decision.Historical,
		Lines:             lines,
	}
	if len(d.promoIDs) == 1 {
		header.PromotionID = &d.promoIDs[0]
	}

	if d.records, err = Expand(header, d.groupPromo, beneficiaries); err != nil {
		return nil, err
	}
	return d, nil
}

// resolveLine snapshots a catalog treatment or promotion onto a new line.
func (s *Service) resolveLine(ctx context.Context, in LineInput, visit time.Time) (*Line, *catalog.Promotion, error) {
	const op = "treatment.Save"
	if in.Kind == "" {
		in.Kind = KindTreatment
	}
	if in.CatalogRef == uuid.Nil {
		return nil, nil, apperr.Validation(op, "catalog_ref is required")
	}
	if in.Quantity < 1 {
		return nil, nil, apperr.Validation(op, "quantity must be at least 1")
	}

	l := &Line{
		Kind:               in.Kind,
		CatalogRef:         in.CatalogRef,
		Quantity:           in.Quantity,
		Note:               in.Note,
		ClinicianID:        in.ClinicianID,
		ClinicianName:      in.ClinicianName,
		DisableAgeDiscount: in.DisableAgeDiscount,
	}

	switch in.Kind {
	case KindTreatment:
		item, err := s.items.GetByID(ctx, in.CatalogRef)
		if err != nil {
			return nil, nil, err
		}
		if !item.Active {
			return nil, nil, apperr.Validation(op, "treatment %q is not offered", item.Name)
		}
		l.Name, l.Code = item.Name, lo.EmptyableToPtr(item.Code)
		l.UnitPriceOriginal = item.Price
		l.Currency = item.Currency
		return l, nil, nil

	case KindPromotion:
		promo, err := s.promotions.GetByID(ctx, in.CatalogRef)
		if err != nil {
			return nil, nil, err
		}
		if !promo.ActiveOn(visit) {
			return nil, nil, apperr.Validation(op, "promotion %q is not active on %s", promo.Name, visit.Format("2006-01-02"))
		}
		l.Name, l.Code = promo.Name, lo.EmptyableToPtr(promo.Code)
		l.UnitPriceOriginal = promo.PromotionalPrice
		l.Currency = promo.Currency
		return l, promo, nil
	}
	return nil, nil, apperr.Validation(op, "invalid line kind: %s", in.Kind)
}

// resolveBeneficiaries drops duplicates and checks every beneficiary exists
// and differs from the payer.
func (s *Service) resolveBeneficiaries(ctx context.Context, payerID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	const op = "treatment.Save"
	ids = lo.Uniq(ids)
	for _, id := range ids {
		if id == payerID {
			return nil, apperr.Validation(op, "the payer cannot be a beneficiary")
		}
		if _, err := s.patients.GetByID(ctx, id); err != nil {
			if apperr.IsNotFound(err) {
				return nil, apperr.Validation(op, "beneficiary %s not found", id)
			}
			return nil, err
		}
	}
	return ids, nil
}

// Get returns a treatment with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CompletedTreatment, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Lines, err = s.repo.GetLines(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CompletedTreatment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListBeneficiaries returns the zero-cost records paid for by a payer.
func (s *Service) ListBeneficiaries(ctx context.Context, payerID uuid.UUID) ([]*CompletedTreatment, error) {
	if _, err := s.repo.GetByID(ctx, payerID); err != nil {
		return nil, err
	}
	return s.repo.ListByParent(ctx, payerID)
}
