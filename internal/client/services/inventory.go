package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"sync"

	"github.com/dmitrijs2005/wardrobe/internal/client/client"
	"github.com/dmitrijs2005/wardrobe/internal/client/models"
	"github.com/dmitrijs2005/wardrobe/internal/client/repositories/items"
	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/logging"
	"github.com/google/uuid"
)

// InventoryState is a snapshot of the inventory store. Err holds the last
// failure message until ResetError. Offline is set while Items come from the
// local cache because the backend could not be reached.
type InventoryState struct {
	Items          []models.InventoryItem
	IsLoading      bool
	Err            string
	PendingUploads []models.InventoryItem
	Offline        bool
}

type InventoryService interface {
	Fetch(ctx context.Context) error
	// AddItem creates item, uploading the file at localImagePath first when
	// it is not empty. The item is listed as a pending upload meanwhile.
	AddItem(ctx context.Context, item models.InventoryItem, localImagePath string) (*models.InventoryItem, error)
	Update(ctx context.Context, id string, patch models.ItemPatch) (*models.InventoryItem, error)
	Delete(ctx context.Context, id string) error
	ToggleFavorite(ctx context.Context, id string) error
	Get(id string) (models.InventoryItem, bool)
	ResetError()
	Snapshot() InventoryState
	// Clear drops the in-memory and cached inventory, e.g. on sign-out.
	Clear(ctx context.Context) error
}

type inventoryService struct {
	api   client.InventoryAPI
	cache items.Repository
	owner func() string
	log   logging.Logger

	mu    sync.Mutex
	state InventoryState
}

type InventoryOption func(*inventoryService)

// WithCache keeps a local copy of the inventory for offline listing. The
// copy is keyed by owner, the directory record of the signed-in user; the
// cache is skipped while owner returns "".
func WithCache(cache items.Repository, owner func() string) InventoryOption {
	return func(s *inventoryService) {
		s.cache = cache
		s.owner = owner
	}
}

func (s *inventoryService) cacheOwner() string {
	if s.cache == nil || s.owner == nil {
		return ""
	}
	return s.owner()
}

func NewInventoryService(api client.InventoryAPI, log logging.Logger, opts ...InventoryOption) InventoryService {
	s := &inventoryService{api: api, log: log.With("module", "inventory")}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *inventoryService) Snapshot() InventoryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return InventoryState{
		Items:          slices.Clone(s.state.Items),
		IsLoading:      s.state.IsLoading,
		Err:            s.state.Err,
		PendingUploads: slices.Clone(s.state.PendingUploads),
		Offline:        s.state.Offline,
	}
}

func (s *inventoryService) Get(id string) (models.InventoryItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.state.Items, func(it models.InventoryItem) bool { return it.ID == id })
	if i < 0 {
		return models.InventoryItem{}, false
	}
	return s.state.Items[i], true
}

func (s *inventoryService) ResetError() {
	s.mu.Lock()
	s.state.Err = ""
	s.mu.Unlock()
}

func (s *inventoryService) Fetch(ctx context.Context) error {
	s.startLoading()

	list, err := s.api.ListItems(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) && s.loadCached(ctx, err) {
			return nil
		}
		return s.failLoading(ctx, "fetch inventory", err)
	}

	s.mu.Lock()
	s.state.Items = list
	s.state.IsLoading = false
	s.state.Offline = false
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// loadCached serves the cached inventory after a connectivity failure. It
// reports false when there is nothing cached.
func (s *inventoryService) loadCached(ctx context.Context, cause error) bool {
	owner := s.cacheOwner()
	if owner == "" {
		return false
	}
	cached, err := s.cache.GetAll(ctx, owner)
	if err != nil {
		s.log.Warn(ctx, "read inventory cache failed", "error", err)
		return false
	}
	if len(cached) == 0 {
		return false
	}

	s.log.Info(ctx, "backend unreachable, serving cached inventory", "items", len(cached), "error", cause)
	s.mu.Lock()
	s.state.Items = cached
	s.state.IsLoading = false
	s.state.Offline = true
	s.mu.Unlock()
	return true
}

// persist mirrors the current inventory into the cache; failures are logged.
func (s *inventoryService) persist(ctx context.Context) {
	owner := s.cacheOwner()
	if owner == "" {
		return
	}
	s.mu.Lock()
	snapshot := slices.Clone(s.state.Items)
	s.mu.Unlock()

	if err := s.cache.ReplaceAll(ctx, owner, snapshot); err != nil {
		s.log.Warn(ctx, "write inventory cache failed", "error", err)
	}
}

func (s *inventoryService) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.state = InventoryState{}
	s.mu.Unlock()

	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

func (s *inventoryService) AddItem(ctx context.Context, item models.InventoryItem, localImagePath string) (*models.InventoryItem, error) {
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	tempID := "local-" + uuid.NewString()
	pending := item
	pending.ID = tempID
	pending.IsUploading = true
	pending.LocalImagePath = localImagePath

	s.mu.Lock()
	s.state.PendingUploads = append(s.state.PendingUploads, pending)
	s.mu.Unlock()
	defer s.removePending(tempID)

	if localImagePath != "" {
		url, err := s.upload(ctx, localImagePath)
		if err != nil {
			return nil, s.fail(ctx, "add item", err)
		}
		item.ImageURLs = []string{url}
	}

	created, err := s.api.CreateItem(ctx, item)
	if err != nil {
		return nil, s.fail(ctx, "add item", err)
	}

	s.mu.Lock()
	s.state.Items = append(s.state.Items, *created)
	s.mu.Unlock()

	s.persist(ctx)
	return created, nil
}

func (s *inventoryService) upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	url, err := s.api.UploadImage(ctx, data, http.DetectContentType(data))
	if err != nil {
		return "", err
	}
	s.log.Debug(ctx, "image uploaded", "path", path, "url", url)
	return url, nil
}

func (s *inventoryService) Update(ctx context.Context, id string, patch models.ItemPatch) (*models.InventoryItem, error) {
	s.startLoading()

	updated, err := s.api.UpdateItem(ctx, id, patch)
	if err != nil {
		return nil, s.failLoading(ctx, "update item", err)
	}

	s.mu.Lock()
	for i := range s.state.Items {
		if s.state.Items[i].ID == id {
			s.state.Items[i] = *updated
		}
	}
	s.state.IsLoading = false
	s.mu.Unlock()

	s.persist(ctx)
	return updated, nil
}

func (s *inventoryService) Delete(ctx context.Context, id string) error {
	s.startLoading()

	if err := s.api.DeleteItem(ctx, id); err != nil {
		return s.failLoading(ctx, "delete item", err)
	}

	s.mu.Lock()
	s.state.Items = slices.DeleteFunc(s.state.Items, func(it models.InventoryItem) bool { return it.ID == id })
	s.state.IsLoading = false
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// ToggleFavorite flips the favorite flag of a listed item, keeping the rest
// of its metadata.
func (s *inventoryService) ToggleFavorite(ctx context.Context, id string) error {
	item, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("item %s: %w", id, common.ErrorNotFound)
	}

	var md models.Metadata
	if item.Metadata != nil {
		md = *item.Metadata
	}
	md.Favorite = !item.IsFavorite()

	_, err := s.Update(ctx, id, models.ItemPatch{Metadata: &md})
	return err
}

func (s *inventoryService) startLoading() {
	s.mu.Lock()
	s.state.IsLoading = true
	s.state.Err = ""
	s.mu.Unlock()
}

func (s *inventoryService) failLoading(ctx context.Context, op string, err error) error {
	s.mu.Lock()
	s.state.IsLoading = false
	s.mu.Unlock()
	return s.fail(ctx, op, err)
}

func (s *inventoryService) fail(ctx context.Context, op string, err error) error {
	s.log.Warn(ctx, op+" failed", "error", err)
	s.mu.Lock()
	s.state.Err = err.Error()
	s.mu.Unlock()
	return fmt.Errorf("%s: %w", op, err)
}

func (s *inventoryService) removePending(tempID string) {
	s.mu.Lock()
	s.state.PendingUploads = slices.DeleteFunc(s.state.PendingUploads, func(it models.InventoryItem) bool {
		return it.ID == tempID
	})
	s.mu.Unlock()
}
