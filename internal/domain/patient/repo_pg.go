package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/db"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := db.Resolve(ctx, r.pool).QueryRow(ctx, `
		SELECT id, first_name, last_name, birth_date, sex, pregnant
		FROM patient WHERE id = $1`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Sex, &p.Pregnant)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient.Get", "patient")
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &p, nil
}

// HistoricalBypass reads patient_setting. A patient without a settings row
// has no bypass.
func (r *patientRepoPG) HistoricalBypass(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var bypass bool
	err := db.Resolve(ctx, r.pool).QueryRow(ctx,
		`SELECT historical_bypass FROM patient_setting WHERE patient_id = $1`, patientID).Scan(&bypass)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get historical bypass: %w", err)
	}
	return bypass, nil
}
