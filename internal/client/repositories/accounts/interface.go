// Package accounts persists local identity provider accounts.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/wardrobe/internal/client/models"
)

// Repository stores accounts keyed by id with a unique e-mail.
// Lookups of missing accounts return common.ErrorNotFound; creating a
// duplicate e-mail returns common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, a *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdatePassword(ctx context.Context, id string, salt, verifier []byte) error
	// LinkExternal records an OAuth identity and marks the e-mail verified.
	LinkExternal(ctx context.Context, id, provider, subject string) error
}
