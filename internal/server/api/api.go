// Package api is the REST transport of the directory service: user
// directory endpoints, inventory CRUD and image upload presigning over gin.
package api

import (
	"context"

	"github.com/dmitrijs2005/wardrobe/internal/server/models"
	"github.com/dmitrijs2005/wardrobe/internal/server/services"
)

type UserDirectory interface {
	Register(ctx context.Context, in services.NewUser) (*models.User, bool, error)
	OAuthLogin(ctx context.Context, in services.NewUser) (*models.User, bool, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Verify(ctx context.Context, email string) (*models.User, error)
}

type Inventory interface {
	List(ctx context.Context, userID string) ([]*models.Item, error)
	Get(ctx context.Context, userID, id string) (*models.Item, error)
	Create(ctx context.Context, userID string, item models.Item) (*models.Item, error)
	Update(ctx context.Context, userID, id string, patch models.ItemPatch) (*models.Item, error)
	Delete(ctx context.Context, userID, id string) error
}

type ImagePresigner interface {
	PresignUpload(ctx context.Context, userID, contentType string) (uploadURL, imageURL string, err error)
}
