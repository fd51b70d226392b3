package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetAccount(ctx context.Context, treatmentID uuid.UUID) (*Account, error)
	// LockAccount is GetAccount holding a row lock until the surrounding
	// transaction ends. It must run inside db.TxRunner.WithTx.
	LockAccount(ctx context.Context, treatmentID uuid.UUID) (*Account, error)
	UpdateAggregate(ctx context.Context, treatmentID uuid.UUID, paid decimal.Decimal, status Status) error

	Insert(ctx context.Context, p *Payment) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]*Payment, error)
	// SumPaid totals the ledger in the treatment's currency.
	SumPaid(ctx context.Context, treatmentID uuid.UUID) (decimal.Decimal, error)
}
