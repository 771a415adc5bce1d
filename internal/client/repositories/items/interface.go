// Package items keeps the last inventory fetched from the backend so the
// client can still list the wardrobe while offline.
package items

import (
	"context"

	"github.com/dmitrijs2005/wardrobe/internal/client/models"
)

type Repository interface {
	// ReplaceAll swaps the cached inventory for owner's items, keeping their
	// order. Rows cached for any other owner are dropped.
	ReplaceAll(ctx context.Context, owner string, items []models.InventoryItem) error
	// GetAll returns owner's cached inventory in its original order.
	GetAll(ctx context.Context, owner string) ([]models.InventoryItem, error)
	Clear(ctx context.Context) error
}
