package items

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/dbx"
	"github.com/dmitrijs2005/wardrobe/internal/server/models"
)

const itemColumns = `id, user_id, category, sub_category, attributes, image_urls, metadata, stats, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*models.Item, error) {
	var (
		it                      models.Item
		attrs, urls, meta, stat []byte
	)
	err := row.Scan(&it.ID, &it.UserID, &it.Category, &it.SubCategory, &attrs, &urls, &meta, &stat, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	it.Attributes = json.RawMessage(attrs)
	it.Metadata = nullableJSON(meta)
	it.Stats = nullableJSON(stat)
	it.ImageURLs = []string{}
	if len(urls) > 0 {
		if err := json.Unmarshal(urls, &it.ImageURLs); err != nil {
			return nil, fmt.Errorf("decode image urls: %w", err)
		}
	}
	return &it, nil
}

func nullableJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

// jsonArg turns raw JSON into a query argument; empty values become NULL.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func itemArgs(item *models.Item) ([]any, error) {
	urls := item.ImageURLs
	if urls == nil {
		urls = []string{}
	}
	encoded, err := json.Marshal(urls)
	if err != nil {
		return nil, err
	}
	attrs := item.Attributes
	if len(attrs) == 0 {
		attrs = json.RawMessage(`{}`)
	}
	return []any{item.Category, item.SubCategory, string(attrs), string(encoded), jsonArg(item.Metadata), jsonArg(item.Stats)}, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*models.Item, error) {
	query :=
		`SELECT ` + itemColumns + ` FROM inventory_items
		 WHERE user_id = $1
		 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Item, error) {
	query :=
		`SELECT ` + itemColumns + ` FROM inventory_items
		 WHERE id = $1 AND user_id = $2`

	return scanItem(r.db.QueryRowContext(ctx, query, id, userID))
}

func (r *PostgresRepository) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	args, err := itemArgs(item)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO inventory_items (user_id, category, sub_category, attributes, image_urls, metadata, stats)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING ` + itemColumns

	return scanItem(r.db.QueryRowContext(ctx, query, append([]any{item.UserID}, args...)...))
}

func (r *PostgresRepository) Update(ctx context.Context, item *models.Item) (*models.Item, error) {
	args, err := itemArgs(item)
	if err != nil {
		return nil, err
	}

	query :=
		`UPDATE inventory_items
		 SET category = $3, sub_category = $4, attributes = $5, image_urls = $6, metadata = $7, stats = $8, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING ` + itemColumns

	return scanItem(r.db.QueryRowContext(ctx, query, append([]any{item.ID, item.UserID}, args...)...))
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM inventory_items WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
