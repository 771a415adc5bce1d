package api

import (
	"github.com/dmitrijs2005/wardrobe/internal/logging"
)

// Handler serves the REST endpoints.
type Handler struct {
	users     UserDirectory
	inventory Inventory
	images    ImagePresigner
	log       logging.Logger
}

func NewHandler(users UserDirectory, inventory Inventory, images ImagePresigner, log logging.Logger) *Handler {
	return &Handler{users: users, inventory: inventory, images: images, log: log.With("module", "api")}
}
