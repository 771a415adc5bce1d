package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/dbx"
	"github.com/dmitrijs2005/wardrobe/internal/server/models"
)

const userColumns = `id, external_id, email, first_name, last_name, image_url, email_verified, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.FirstName, &u.LastName, &u.ImageURL, &u.EmailVerified, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, bool, error) {
	query :=
		`INSERT INTO app_users (external_id, email, first_name, last_name, image_url, email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING ` + userColumns

	stored, err := scanUser(r.db.QueryRowContext(ctx, query,
		user.ExternalID, user.Email, user.FirstName, user.LastName, user.ImageURL, user.EmailVerified))

	switch {
	case err == nil:
		return stored, true, nil
	case errors.Is(err, common.ErrorNotFound):
		// conflict: the record is already there
		existing, err := r.GetByEmail(ctx, user.Email)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		return nil, false, err
	}
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM app_users
		 WHERE email = $1`

	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, email string) (*models.User, error) {
	query :=
		`UPDATE app_users SET email_verified = TRUE
		 WHERE email = $1
		 RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, email))
}
