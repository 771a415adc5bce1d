package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/dbx"
	"github.com/dmitrijs2005/wardrobe/internal/server/models"
	itemsrepo "github.com/dmitrijs2005/wardrobe/internal/server/repositories/items"
	usersrepo "github.com/dmitrijs2005/wardrobe/internal/server/repositories/users"
	"github.com/google/uuid"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// fakeUsersRepo keeps records keyed by e-mail.
type fakeUsersRepo struct {
	mu      sync.Mutex
	records map[string]*models.User
	err     error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{records: map[string]*models.User{}}
}

func (f *fakeUsersRepo) CreateIfAbsent(_ context.Context, u *models.User) (*models.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if existing, ok := f.records[u.Email]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *u
	cp.ID = uuid.NewString()
	f.records[u.Email] = &cp
	out := cp
	return &out, true, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.records[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) MarkVerified(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.records[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.EmailVerified = true
	cp := *u
	return &cp, nil
}

// fakeItemsRepo scopes items by owner like the real repository.
type fakeItemsRepo struct {
	items map[string]*models.Item
}

func newFakeItemsRepo() *fakeItemsRepo {
	return &fakeItemsRepo{items: map[string]*models.Item{}}
}

func (f *fakeItemsRepo) List(_ context.Context, userID string) ([]*models.Item, error) {
	out := []*models.Item{}
	for _, it := range f.items {
		if it.UserID == userID {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeItemsRepo) Get(_ context.Context, userID, id string) (*models.Item, error) {
	it, ok := f.items[id]
	if !ok || it.UserID != userID {
		return nil, common.ErrorNotFound
	}
	cp := *it
	return &cp, nil
}

func (f *fakeItemsRepo) Create(_ context.Context, item *models.Item) (*models.Item, error) {
	cp := *item
	cp.ID = uuid.NewString()
	f.items[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeItemsRepo) Update(_ context.Context, item *models.Item) (*models.Item, error) {
	cur, ok := f.items[item.ID]
	if !ok || cur.UserID != item.UserID {
		return nil, common.ErrorNotFound
	}
	cp := *item
	f.items[item.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeItemsRepo) Delete(_ context.Context, userID, id string) error {
	it, ok := f.items[id]
	if !ok || it.UserID != userID {
		return common.ErrorNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeRepoManager struct {
	users *fakeUsersRepo
	items *fakeItemsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{users: newFakeUsersRepo(), items: newFakeItemsRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.users }
func (m *fakeRepoManager) Items(dbx.DBTX) itemsrepo.Repository          { return m.items }
