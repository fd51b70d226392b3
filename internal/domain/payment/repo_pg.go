package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/db"
)

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &paymentRepoPG{pool: pool} }

const accountSelect = `SELECT id, currency, final_total, paid_amount, status FROM completed_treatment WHERE id = $1`

func (r *paymentRepoPG) account(ctx context.Context, op, query string, id uuid.UUID) (*Account, error) {
	var a Account
	err := db.Resolve(ctx, r.pool).QueryRow(ctx, query, id).
		Scan(&a.TreatmentID, &a.Currency, &a.FinalTotal, &a.PaidAmount, &a.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(op, "treatment")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &a, nil
}

func (r *paymentRepoPG) GetAccount(ctx context.Context, treatmentID uuid.UUID) (*Account, error) {
	return r.account(ctx, "payment.GetAccount", accountSelect, treatmentID)
}

func (r *paymentRepoPG) LockAccount(ctx context.Context, treatmentID uuid.UUID) (*Account, error) {
	if db.TxFromContext(ctx) == nil {
		return nil, fmt.Errorf("payment.LockAccount: no transaction in context")
	}
	return r.account(ctx, "payment.LockAccount", accountSelect+` FOR UPDATE`, treatmentID)
}

func (r *paymentRepoPG) UpdateAggregate(ctx context.Context, treatmentID uuid.UUID, paid decimal.Decimal, status Status) error {
	_, err := db.Resolve(ctx, r.pool).Exec(ctx, `
		UPDATE completed_treatment SET paid_amount = $2, status = $3, updated_at = NOW()
		WHERE id = $1`, treatmentID, paid, status)
	if err != nil {
		return apperr.Persistence("payment.UpdateAggregate", err)
	}
	return nil
}

const paymentCols = `id, completed_treatment_id, amount, currency, original_amount, original_currency,
	converted_amount, converted_currency, rate, rate_source, method, note, paid_at, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.TreatmentID, &p.Amount, &p.Currency, &p.OriginalAmount, &p.OriginalCurrency,
		&p.ConvertedAmount, &p.ConvertedCurrency, &p.Rate, &p.RateSource, &p.Method, &p.Note, &p.PaidAt, &p.CreatedAt)
	return &p, err
}

func (r *paymentRepoPG) Insert(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.Resolve(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payment (id, completed_treatment_id, amount, currency, original_amount, original_currency,
			converted_amount, converted_currency, rate, rate_source, method, note, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		p.ID, p.TreatmentID, p.Amount, p.Currency, p.OriginalAmount, p.OriginalCurrency,
		p.ConvertedAmount, p.ConvertedCurrency, p.Rate, p.RateSource, p.Method, p.Note, p.PaidAt).
		Scan(&p.CreatedAt)
	if err != nil {
		return apperr.Persistence("payment.Insert", err)
	}
	return nil
}

func (r *paymentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Resolve(ctx, r.pool).Exec(ctx, `DELETE FROM payment WHERE id = $1`, id)
	if err != nil {
		return apperr.Persistence("payment.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment.Delete", "payment")
	}
	return nil
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := scanPayment(db.Resolve(ctx, r.pool).QueryRow(ctx, `SELECT `+paymentCols+` FROM payment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("payment.Get", "payment")
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *paymentRepoPG) ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]*Payment, error) {
	rows, err := db.Resolve(ctx, r.pool).Query(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE completed_treatment_id = $1 ORDER BY paid_at, created_at`, treatmentID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// SumPaid uses the converted amount for rows entered in a foreign currency.
func (r *paymentRepoPG) SumPaid(ctx context.Context, treatmentID uuid.UUID) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := db.Resolve(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN p.original_currency = t.currency
			THEN p.original_amount ELSE p.converted_amount END), 0)
		FROM completed_treatment t
		LEFT JOIN payment p ON p.completed_treatment_id = t.id
		WHERE t.id = $1`, treatmentID).Scan(&paid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return paid, nil
}
