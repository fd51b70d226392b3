package treatment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/db"
)

const requestIDConstraint = "completed_treatment_request_head_key"

type treatmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &treatmentRepoPG{pool: pool} }

const treatmentCols = `id, patient_id, visit_date, currency, subtotal, discount_total, final_total,
	discount_type, discount_value, role, parent_id, promotion_id, request_id,
	signature_ref, requires_signature, paid_amount, status, is_historical,
	group_position, created_at, updated_at`

func scanTreatment(row pgx.Row) (*CompletedTreatment, error) {
	var t CompletedTreatment
	err := row.Scan(&t.ID, &t.PatientID, &t.VisitDate, &t.Currency, &t.Subtotal, &t.DiscountTotal, &t.FinalTotal,
		&t.DiscountType, &t.DiscountValue, &t.Role, &t.ParentID, &t.PromotionID, &t.RequestID,
		&t.SignatureRef, &t.RequiresSignature, &t.PaidAmount, &t.Status, &t.IsHistorical,
		&t.GroupPosition, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *treatmentRepoPG) Create(ctx context.Context, t *CompletedTreatment) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	err := q.QueryRow(ctx, `
		INSERT INTO completed_treatment (id, patient_id, visit_date, currency, subtotal, discount_total, final_total,
			discount_type, discount_value, role, parent_id, promotion_id, request_id,
			signature_ref, requires_signature, paid_amount, status, is_historical, group_position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING created_at, updated_at`,
		t.ID, t.PatientID, t.VisitDate, t.Currency, t.Subtotal, t.DiscountTotal, t.FinalTotal,
		t.DiscountType, t.DiscountValue, t.Role, t.ParentID, t.PromotionID, t.RequestID,
		t.SignatureRef, t.RequiresSignature, t.PaidAmount, t.Status, t.IsHistorical, t.GroupPosition).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == requestIDConstraint {
			return ErrDuplicateRequest
		}
		return apperr.Persistence("treatment.Create", err)
	}

	for i, l := range t.Lines {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.TreatmentID = t.ID
		l.Position = i
		err := q.QueryRow(ctx, `
			INSERT INTO treatment_line (id, completed_treatment_id, kind, catalog_ref, name, code,
				unit_price_original, unit_price_final, currency, quantity, note,
				clinician_id, clinician_name, disable_age_discount, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			RETURNING created_at`,
			l.ID, l.TreatmentID, l.Kind, l.CatalogRef, l.Name, l.Code,
			l.UnitPriceOriginal, l.UnitPriceFinal, l.Currency, l.Quantity, l.Note,
			l.ClinicianID, l.ClinicianName, l.DisableAgeDiscount, l.Position).
			Scan(&l.CreatedAt)
		if err != nil {
			return apperr.Persistence("treatment.AddLine", err)
		}
	}
	return nil
}

func (r *treatmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CompletedTreatment, error) {
	t, err := scanTreatment(db.Resolve(ctx, r.pool).QueryRow(ctx,
		`SELECT `+treatmentCols+` FROM completed_treatment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("treatment.Get", "treatment")
	}
	if err != nil {
		return nil, fmt.Errorf("get treatment: %w", err)
	}
	return t, nil
}

func (r *treatmentRepoPG) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*CompletedTreatment, error) {
	t, err := scanTreatment(db.Resolve(ctx, r.pool).QueryRow(ctx,
		`SELECT `+treatmentCols+` FROM completed_treatment WHERE request_id = $1 AND role <> 'beneficiary'`, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("treatment.GetByRequestID", "treatment")
	}
	if err != nil {
		return nil, fmt.Errorf("get treatment by request id: %w", err)
	}
	return t, nil
}

const lineCols = `id, completed_treatment_id, kind, catalog_ref, name, code,
	unit_price_original, unit_price_final, currency, quantity, note,
	clinician_id, clinician_name, disable_age_discount, position, created_at`

func (r *treatmentRepoPG) GetLines(ctx context.Context, treatmentID uuid.UUID) ([]*Line, error) {
	rows, err := db.Resolve(ctx, r.pool).Query(ctx,
		`SELECT `+lineCols+` FROM treatment_line WHERE completed_treatment_id = $1 ORDER BY position`, treatmentID)
	if err != nil {
		return nil, fmt.Errorf("get treatment lines: %w", err)
	}
	defer rows.Close()
	var items []*Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.TreatmentID, &l.Kind, &l.CatalogRef, &l.Name, &l.Code,
			&l.UnitPriceOriginal, &l.UnitPriceFinal, &l.Currency, &l.Quantity, &l.Note,
			&l.ClinicianID, &l.ClinicianName, &l.DisableAgeDiscount, &l.Position, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}

func (r *treatmentRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*CompletedTreatment, error) {
	rows, err := db.Resolve(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CompletedTreatment
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *treatmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CompletedTreatment, int, error) {
	var total int
	if err := db.Resolve(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM completed_treatment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count treatments: %w", err)
	}
	items, err := r.list(ctx, `SELECT `+treatmentCols+` FROM completed_treatment
		WHERE patient_id = $1 ORDER BY visit_date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list treatments: %w", err)
	}
	return items, total, nil
}

func (r *treatmentRepoPG) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*CompletedTreatment, error) {
	items, err := r.list(ctx, `SELECT `+treatmentCols+` FROM completed_treatment
		WHERE parent_id = $1 ORDER BY group_position`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list beneficiaries: %w", err)
	}
	return items, nil
}
