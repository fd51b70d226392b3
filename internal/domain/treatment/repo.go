package treatment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateRequest is returned by Create when another save with the same
// request id committed first.
var ErrDuplicateRequest = errors.New("duplicate request id")

type Repository interface {
	// Create writes the header and its lines. Callers run it inside
	// db.TxRunner.WithTx so a failed line write leaves no header behind.
	Create(ctx context.Context, t *CompletedTreatment) error
	GetByID(ctx context.Context, id uuid.UUID) (*CompletedTreatment, error)
	// GetByRequestID returns the payer or individual record of a request.
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*CompletedTreatment, error)
	GetLines(ctx context.Context, treatmentID uuid.UUID) ([]*Line, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CompletedTreatment, int, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]*CompletedTreatment, error)
}
