// Package services contains server-side business logic. This file implements
// UserService, the user directory: idempotent registration, OAuth
// get-or-create, verification and lookup by e-mail.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/logging"
	"github.com/dmitrijs2005/wardrobe/internal/server/models"
	"github.com/dmitrijs2005/wardrobe/internal/server/repositories/repomanager"
)

// NewUser is the input of Register and OAuthLogin.
type NewUser struct {
	Email      string
	FirstName  string
	LastName   string
	ExternalID string
	ImageURL   string
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *UserService {
	return &UserService{db: db, repomanager: m, log: log.With("module", "users")}
}

// NormalizeEmail lower-cases and trims e-mail addresses before storage and
// lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified record. Registering an e-mail that already
// has a record returns that record unchanged.
func (s *UserService) Register(ctx context.Context, in NewUser) (*models.User, bool, error) {
	return s.create(ctx, in, false)
}

// OAuthLogin returns the record for an OAuth identity, creating it verified
// when missing. An existing unverified record is marked verified since the
// provider vouches for the address.
func (s *UserService) OAuthLogin(ctx context.Context, in NewUser) (*models.User, bool, error) {
	u, created, err := s.create(ctx, in, true)
	if err != nil || created || u.EmailVerified {
		return u, created, err
	}
	u, err = s.repomanager.Users(s.db).MarkVerified(ctx, u.Email)
	return u, false, err
}

func (s *UserService) create(ctx context.Context, in NewUser, verified bool) (*models.User, bool, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, false, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}

	u, created, err := s.repomanager.Users(s.db).CreateIfAbsent(ctx, &models.User{
		ExternalID:    in.ExternalID,
		Email:         email,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		ImageURL:      in.ImageURL,
		EmailVerified: verified,
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.Info(ctx, "user created", "email", email, "verified", verified)
	} else {
		s.log.Debug(ctx, "user already exists", "email", email)
	}
	return u, created, nil
}

// GetByEmail fails with common.ErrorNotFound for unknown e-mails.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByEmail(ctx, NormalizeEmail(email))
}

// Verify marks the record verified. Verified records stay verified.
func (s *UserService) Verify(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).MarkVerified(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user verified", "email", u.Email)
	return u, nil
}
