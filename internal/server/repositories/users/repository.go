package users

import (
	"context"

	"github.com/dmitrijs2005/wardrobe/internal/server/models"
)

type Repository interface {
	// CreateIfAbsent inserts user unless the e-mail is taken and returns the
	// stored record. created is false when the record already existed.
	CreateIfAbsent(ctx context.Context, user *models.User) (stored *models.User, created bool, err error)
	// GetByEmail fails with common.ErrorNotFound for unknown e-mails.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// MarkVerified sets email_verified; it never clears it.
	MarkVerified(ctx context.Context, email string) (*models.User, error)
}
