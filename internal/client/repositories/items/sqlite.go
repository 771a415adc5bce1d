package items

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/wardrobe/internal/client/models"
	"github.com/dmitrijs2005/wardrobe/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, owner string, items []models.InventoryItem) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_cache`); err != nil {
			return fmt.Errorf("failed to clear inventory cache: %w", err)
		}

		for i, item := range items {
			payload, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO inventory_cache (owner, id, position, payload) VALUES (?, ?, ?, ?)`,
				owner, item.ID, i, payload)
			if err != nil {
				return fmt.Errorf("failed to cache item %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) GetAll(ctx context.Context, owner string) ([]models.InventoryItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payload FROM inventory_cache WHERE owner = ? ORDER BY position`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to select cached items: %w", err)
	}
	defer rows.Close()

	var result []models.InventoryItem
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var item models.InventoryItem
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, fmt.Errorf("failed to decode cached item: %w", err)
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM inventory_cache`); err != nil {
		return fmt.Errorf("failed to clear inventory cache: %w", err)
	}
	return nil
}
