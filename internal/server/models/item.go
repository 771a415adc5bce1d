package models

import (
	"encoding/json"
	"time"
)

// Item is an inventory item. Attributes, Metadata and Stats are stored as
// JSONB and passed through untouched.
type Item struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Category    string          `json:"category"`
	SubCategory string          `json:"subCategory"`
	Attributes  json.RawMessage `json:"attributes"`
	ImageURLs   []string        `json:"imageUrls"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ItemPatch holds the fields of an update; nil fields are left untouched.
type ItemPatch struct {
	Category    *string         `json:"category,omitempty"`
	SubCategory *string         `json:"subCategory,omitempty"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	ImageURLs   []string        `json:"imageUrls,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty"`
}

// Apply returns a copy of item with the patch applied.
func (p ItemPatch) Apply(item Item) Item {
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.SubCategory != nil {
		item.SubCategory = *p.SubCategory
	}
	if p.Attributes != nil {
		item.Attributes = p.Attributes
	}
	if p.ImageURLs != nil {
		item.ImageURLs = p.ImageURLs
	}
	if p.Metadata != nil {
		item.Metadata = p.Metadata
	}
	if p.Stats != nil {
		item.Stats = p.Stats
	}
	return item
}
