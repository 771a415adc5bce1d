package api

import (
	"net/http"

	"github.com/dmitrijs2005/wardrobe/internal/server/models"
	"github.com/gin-gonic/gin"
)

const itemNotFound = "item not found"

// Inventory endpoints are scoped to the session subject.

func (h *Handler) ListItems(c *gin.Context) {
	items, err := h.inventory.List(c.Request.Context(), sessionClaims(c).Subject)
	if err != nil {
		h.respondError(c, err, itemNotFound)
		return
	}
	if items == nil {
		items = []*models.Item{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) GetItem(c *gin.Context) {
	item, err := h.inventory.Get(c.Request.Context(), sessionClaims(c).Subject, c.Param("id"))
	if err != nil {
		h.respondError(c, err, itemNotFound)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) CreateItem(c *gin.Context) {
	var item models.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	created, err := h.inventory.Create(c.Request.Context(), sessionClaims(c).Subject, item)
	if err != nil {
		h.respondError(c, err, itemNotFound)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateItem(c *gin.Context) {
	var patch models.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	updated, err := h.inventory.Update(c.Request.Context(), sessionClaims(c).Subject, c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err, itemNotFound)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteItem(c *gin.Context) {
	if err := h.inventory.Delete(c.Request.Context(), sessionClaims(c).Subject, c.Param("id")); err != nil {
		h.respondError(c, err, itemNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
