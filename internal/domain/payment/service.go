package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/db"
	"github.com/odonto/odonto/internal/platform/fx"
)

// overpaymentTolerance absorbs cent rounding from currency conversion.
var overpaymentTolerance = decimal.RequireFromString("0.01")

// Converter is satisfied by *fx.Converter.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (fx.Conversion, error)
}

type Options struct {
	AllowOverpayment bool
}

type Service struct {
	repo   Repository
	tx     db.TxRunner
	conv   Converter
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, conv Converter, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		conv:   conv,
		opts:   opts,
		logger: logger.With().Str("component", "payment").Logger(),
		now:    time.Now,
	}
}

// AddPayment converts the amount into the treatment currency, then appends
// it under a row lock on the treatment so concurrent payments cannot both
// spend the same pending balance.
func (s *Service) AddPayment(ctx context.Context, req AddPaymentRequest) (*Summary, error) {
	const op = "payment.Add"
	if req.TreatmentID == uuid.Nil {
		return nil, apperr.Validation(op, "treatment_id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation(op, "amount must be positive")
	}
	if req.Method == "" {
		req.Method = MethodCash
	}
	if !req.Method.Valid() {
		return nil, apperr.Validation(op, "invalid payment method: %s", req.Method)
	}
	currency, err := fx.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	original := req.Amount.Round(2)
	if !original.IsPositive() {
		return nil, apperr.Validation(op, "amount must be at least 0.01 %s", currency)
	}

	acct, err := s.repo.GetAccount(ctx, req.TreatmentID)
	if err != nil {
		return nil, err
	}

	// The rate lookup is bounded by its own timeout and runs before any lock
	// is taken.
	conv, err := s.conv.Convert(ctx, original, currency, acct.Currency)
	if err != nil {
		return nil, err
	}
	if !conv.Amount.IsPositive() {
		return nil, apperr.Validation(op, "%s %s converts to less than 0.01 %s",
			original.StringFixed(2), currency, acct.Currency)
	}

	paidAt := s.now().UTC()
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}
	p := &Payment{
		TreatmentID:       req.TreatmentID,
		Amount:            conv.Amount,
		Currency:          acct.Currency,
		OriginalAmount:    original,
		OriginalCurrency:  currency,
		ConvertedAmount:   conv.Amount,
		ConvertedCurrency: acct.Currency,
		Rate:              conv.Rate,
		RateSource:        string(conv.Source),
		Method:            req.Method,
		Note:              req.Note,
		PaidAt:            paidAt,
	}

	var sum *Summary
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.repo.LockAccount(ctx, req.TreatmentID)
		if err != nil {
			return err
		}
		if locked.Currency != acct.Currency {
			return apperr.Consistency(op, "treatment currency changed during payment")
		}
		paid, err := s.repo.SumPaid(ctx, req.TreatmentID)
		if err != nil {
			return err
		}
		pending := locked.FinalTotal.Sub(paid)
		if !s.opts.AllowOverpayment && p.Amount.GreaterThan(pending.Add(overpaymentTolerance)) {
			return apperr.Validation(op, "payment of %s %s exceeds pending balance %s %s",
				p.Amount.StringFixed(2), p.Currency, decimal.Max(pending, decimal.Zero).StringFixed(2), p.Currency)
		}
		if err := s.repo.Insert(ctx, p); err != nil {
			return err
		}
		sum, err = s.recompute(ctx, locked)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("treatment_id", req.TreatmentID.String()).
		Str("payment_id", p.ID.String()).
		Str("amount", p.Amount.String()).
		Str("original", p.OriginalAmount.String()+" "+p.OriginalCurrency).
		Str("rate_source", p.RateSource).
		Str("status", string(sum.Status)).
		Msg("payment recorded")
	return sum, nil
}

// DeletePayment removes a ledger row and returns the recomputed summary.
func (s *Service) DeletePayment(ctx context.Context, paymentID uuid.UUID) (*Summary, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var sum *Summary
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		acct, err := s.repo.LockAccount(ctx, p.TreatmentID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, paymentID); err != nil {
			return err
		}
		sum, err = s.recompute(ctx, acct)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("treatment_id", p.TreatmentID.String()).
		Str("payment_id", paymentID.String()).
		Str("status", string(sum.Status)).
		Msg("payment deleted")
	return sum, nil
}

// recompute derives paid and status from the ledger and rewrites the cached
// columns. The caller holds the account lock.
func (s *Service) recompute(ctx context.Context, acct *Account) (*Summary, error) {
	paid, err := s.repo.SumPaid(ctx, acct.TreatmentID)
	if err != nil {
		return nil, err
	}
	sum := NewSummary(acct, paid)
	if err := s.repo.UpdateAggregate(ctx, acct.TreatmentID, paid, sum.Status); err != nil {
		return nil, err
	}
	return sum, nil
}

// GetSummary never trusts the cached aggregate. When the cache has drifted
// from the ledger it is repaired under the account lock.
func (s *Service) GetSummary(ctx context.Context, treatmentID uuid.UUID) (*Summary, error) {
	acct, err := s.repo.GetAccount(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	paid, err := s.repo.SumPaid(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	sum := NewSummary(acct, paid)
	if acct.PaidAmount.Equal(paid) && acct.Status == sum.Status {
		return sum, nil
	}

	drift := apperr.Consistency("payment.GetSummary",
		"cached paid %s (%s) disagrees with ledger %s (%s)", acct.PaidAmount, acct.Status, paid, sum.Status)
	s.logger.Error().Err(drift).Str("treatment_id", treatmentID.String()).Msg("repairing payment aggregate")

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.repo.LockAccount(ctx, treatmentID)
		if err != nil {
			return err
		}
		sum, err = s.recompute(ctx, locked)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func (s *Service) ListPayments(ctx context.Context, treatmentID uuid.UUID) ([]*Payment, error) {
	if _, err := s.repo.GetAccount(ctx, treatmentID); err != nil {
		return nil, err
	}
	return s.repo.ListByTreatment(ctx, treatmentID)
}

// Preview is shown while a foreign-currency amount is being typed. Nothing
// is written.
type Preview struct {
	fx.Conversion
	Pending      decimal.Decimal `json:"pending"`
	ExceedsTotal bool            `json:"exceeds_pending"`
}

func (s *Service) PreviewConversion(ctx context.Context, amount decimal.Decimal, from string, treatmentID uuid.UUID) (*Preview, error) {
	const op = "payment.Preview"
	if !amount.IsPositive() {
		return nil, apperr.Validation(op, "amount must be positive")
	}
	sum, err := s.GetSummary(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	conv, err := s.conv.Convert(ctx, amount, from, sum.Currency)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Conversion:   conv,
		Pending:      sum.Pending,
		ExceedsTotal: conv.Amount.GreaterThan(sum.Pending.Add(overpaymentTolerance)),
	}, nil
}
