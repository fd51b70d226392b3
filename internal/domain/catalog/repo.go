package catalog

import (
	"context"

	"github.com/google/uuid"
)

type ItemRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
}

type PromotionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Promotion, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	// ListUnclassified returns promotions whose group flag is still NULL.
	ListUnclassified(ctx context.Context) ([]*Promotion, error)
	SetGroupFlag(ctx context.Context, id uuid.UUID, isGroup bool) error
}
