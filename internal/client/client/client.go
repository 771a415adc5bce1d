package client

import (
	"context"

	"github.com/dmitrijs2005/wardrobe/internal/client/models"
)

// UserDirectory is the backend user directory.
type UserDirectory interface {
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.ApplicationUser, error)
	// CreateOAuthUser gets or creates a verified record for an OAuth identity.
	CreateOAuthUser(ctx context.Context, req models.CreateUserRequest) (*models.ApplicationUser, error)
	// GetUserByEmail fails with an error matching ErrNotFound for unknown e-mails.
	GetUserByEmail(ctx context.Context, email string) (*models.ApplicationUser, error)
	VerifyUser(ctx context.Context, email string) (*models.ApplicationUser, error)
}

type InventoryAPI interface {
	ListItems(ctx context.Context) ([]models.InventoryItem, error)
	GetItem(ctx context.Context, id string) (*models.InventoryItem, error)
	CreateItem(ctx context.Context, item models.InventoryItem) (*models.InventoryItem, error)
	UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (*models.InventoryItem, error)
	DeleteItem(ctx context.Context, id string) error
	// UploadImage stores data and returns the public image URL.
	UploadImage(ctx context.Context, data []byte, contentType string) (string, error)
}

type Client interface {
	UserDirectory
	InventoryAPI
}

// TokenSource yields the bearer token of the active identity session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
