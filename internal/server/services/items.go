package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/dbx"
	"github.com/dmitrijs2005/wardrobe/internal/logging"
	"github.com/dmitrijs2005/wardrobe/internal/server/models"
	"github.com/dmitrijs2005/wardrobe/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ItemService manages inventory items. userID is always the subject of the
// caller's session token.
type ItemService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewItemService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *ItemService {
	return &ItemService{db: db, repomanager: m, log: log.With("module", "items")}
}

func validateItem(it *models.Item) error {
	if strings.TrimSpace(it.Category) == "" {
		return fmt.Errorf("%w: category is required", common.ErrorValidation)
	}
	if strings.TrimSpace(it.SubCategory) == "" {
		return fmt.Errorf("%w: subCategory is required", common.ErrorValidation)
	}
	return nil
}

// checkID maps malformed ids to common.ErrorNotFound.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}
	return nil
}

func (s *ItemService) List(ctx context.Context, userID string) ([]*models.Item, error) {
	return s.repomanager.Items(s.db).List(ctx, userID)
}

func (s *ItemService) Get(ctx context.Context, userID, id string) (*models.Item, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repomanager.Items(s.db).Get(ctx, userID, id)
}

func (s *ItemService) Create(ctx context.Context, userID string, item models.Item) (*models.Item, error) {
	item.UserID = userID
	if err := validateItem(&item); err != nil {
		return nil, err
	}

	created, err := s.repomanager.Items(s.db).Create(ctx, &item)
	if err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "item created", "user", userID, "id", created.ID)
	return created, nil
}

// Update applies patch to the stored item inside one transaction.
func (s *ItemService) Update(ctx context.Context, userID, id string, patch models.ItemPatch) (*models.Item, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	var updated *models.Item
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		cur, err := repo.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		next := patch.Apply(*cur)
		if err := validateItem(&next); err != nil {
			return err
		}
		updated, err = repo.Update(ctx, &next)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ItemService) Delete(ctx context.Context, userID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.repomanager.Items(s.db).Delete(ctx, userID, id); err != nil {
		return err
	}
	s.log.Debug(ctx, "item deleted", "user", userID, "id", id)
	return nil
}
