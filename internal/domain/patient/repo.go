package patient

import (
	"context"

	"github.com/google/uuid"
)

// BypassLookup reports whether historical records of a patient are priced
// and signed as if they were current.
type BypassLookup interface {
	HistoricalBypass(ctx context.Context, patientID uuid.UUID) (bool, error)
}

type Repository interface {
	BypassLookup
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}
