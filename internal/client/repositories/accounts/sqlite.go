package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/wardrobe/internal/client/models"
	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const selectAccount = `SELECT id, email, first_name, last_name, image_url, email_verified,
	password_salt, password_verifier, external_provider, external_subject, created_at
	FROM identity_accounts`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.ImageURL, &a.EmailVerified,
		&a.PasswordSalt, &a.PasswordVerifier, &a.ExternalProvider, &a.ExternalSubject, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new account. CreatedAt is filled by the database.
func (r *SQLiteRepository) Create(ctx context.Context, a *models.Account) error {
	a.Email = normalizeEmail(a.Email)
	_, err := r.db.ExecContext(ctx, `INSERT INTO identity_accounts
		(id, email, first_name, last_name, image_url, email_verified,
		 password_salt, password_verifier, external_provider, external_subject)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.FirstName, a.LastName, a.ImageURL, a.EmailVerified,
		a.PasswordSalt, a.PasswordVerifier, a.ExternalProvider, a.ExternalSubject)
	if dbx.IsUniqueViolation(err) {
		return common.ErrorAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, selectAccount+` WHERE id = ?`, id))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return a, err
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, selectAccount+` WHERE email = ?`, normalizeEmail(email)))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return a, err
}

func (r *SQLiteRepository) exec(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) UpdatePassword(ctx context.Context, id string, salt, verifier []byte) error {
	return r.exec(ctx, "update password",
		`UPDATE identity_accounts SET password_salt = ?, password_verifier = ? WHERE id = ?`,
		salt, verifier, id)
}

func (r *SQLiteRepository) LinkExternal(ctx context.Context, id, provider, subject string) error {
	return r.exec(ctx, "link external identity",
		`UPDATE identity_accounts SET external_provider = ?, external_subject = ?, email_verified = 1 WHERE id = ?`,
		provider, subject, id)
}
