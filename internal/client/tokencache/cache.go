// Package tokencache keeps identity provider tokens in the client database,
// sealed with the device key.
package tokencache

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/wardrobe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/wardrobe/internal/cryptox"
)

const keyPrefix = "token:"

type Cache struct {
	repo metadata.Repository
	key  []byte
}

func New(repo metadata.Repository, deviceKey []byte) *Cache {
	return &Cache{repo: repo, key: deviceKey}
}

// GetToken returns "" when nothing is stored under name.
func (c *Cache) GetToken(ctx context.Context, name string) (string, error) {
	sealed, err := c.repo.Get(ctx, keyPrefix+name)
	if err != nil {
		return "", err
	}
	if sealed == nil {
		return "", nil
	}
	plain, err := cryptox.Open(c.key, sealed)
	if err != nil {
		return "", fmt.Errorf("open token %s: %w", name, err)
	}
	return string(plain), nil
}

func (c *Cache) SaveToken(ctx context.Context, name, value string) error {
	sealed, err := cryptox.Seal(c.key, []byte(value))
	if err != nil {
		return fmt.Errorf("seal token %s: %w", name, err)
	}
	return c.repo.Set(ctx, keyPrefix+name, sealed)
}

func (c *Cache) DeleteToken(ctx context.Context, name string) error {
	return c.repo.Delete(ctx, keyPrefix+name)
}

// Clear removes every cached token.
func (c *Cache) Clear(ctx context.Context) error {
	return c.repo.DeletePrefix(ctx, keyPrefix)
}
