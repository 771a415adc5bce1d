package items

import (
	"context"

	"github.com/dmitrijs2005/wardrobe/internal/server/models"
)

// Repository stores inventory items. Every call is scoped to the owner;
// items of other users behave as missing.
type Repository interface {
	List(ctx context.Context, userID string) ([]*models.Item, error)
	Get(ctx context.Context, userID, id string) (*models.Item, error)
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	Update(ctx context.Context, item *models.Item) (*models.Item, error)
	Delete(ctx context.Context, userID, id string) error
}
