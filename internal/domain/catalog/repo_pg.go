package catalog

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

// =========== Item Repository ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

const itemCols = `id, code, name, price, currency, active, created_at, updated_at`

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	var it Item
	err := db.Resolve(ctx, r.pool).QueryRow(ctx, `SELECT `+itemCols+` FROM treatment_catalog WHERE id = $1`, id).
		Scan(&it.ID, &it.Code, &it.Name, &it.Price, &it.Currency, &it.Active, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("catalog.GetItem", "treatment")
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	return &it, nil
}

// =========== Promotion Repository ===========

type promotionRepoPG struct{ pool *pgxpool.Pool }

func NewPromotionRepoPG(pool *pgxpool.Pool) PromotionRepository {
	return &promotionRepoPG{pool: pool}
}

const promoCols = `id, code, name, discount_percent, original_price, promotional_price,
	currency, valid_from, valid_until, active, is_group, max_beneficiaries, usage_count,
	created_at, updated_at`

func scanPromotion(row pgx.Row) (*Promotion, error) {
	var p Promotion
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.DiscountPercent, &p.OriginalPrice, &p.PromotionalPrice,
		&p.Currency, &p.ValidFrom, &p.ValidUntil, &p.Active, &p.IsGroup, &p.MaxBeneficiaries, &p.UsageCount,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *promotionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	p, err := scanPromotion(db.Resolve(ctx, r.pool).QueryRow(ctx, `SELECT `+promoCols+` FROM promotion WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("catalog.GetPromotion", "promotion")
	}
	if err != nil {
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	return p, nil
}

func (r *promotionRepoPG) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Resolve(ctx, r.pool).Exec(ctx,
		`UPDATE promotion SET usage_count = usage_count + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment promotion usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("catalog.IncrementUsage", "promotion")
	}
	return nil
}

func (r *promotionRepoPG) ListUnclassified(ctx context.Context) ([]*Promotion, error) {
	rows, err := db.Resolve(ctx, r.pool).Query(ctx,
		`SELECT `+promoCols+` FROM promotion WHERE is_group IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list unclassified promotions: %w", err)
	}
	defer rows.Close()
	var items []*Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *promotionRepoPG) SetGroupFlag(ctx context.Context, id uuid.UUID, isGroup bool) error {
	_, err := db.Resolve(ctx, r.pool).Exec(ctx,
		`UPDATE promotion SET is_group = $2, updated_at = NOW() WHERE id = $1`, id, isGroup)
	if err != nil {
		return fmt.Errorf("set promotion group flag: %w", err)
	}
	return nil
}
