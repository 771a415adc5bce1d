package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type Category string

const (
	CategoryTop       Category = "top"
	CategoryBottom    Category = "bottom"
	CategoryOuterwear Category = "outerwear"
	CategoryAccessory Category = "accessory"
	CategoryShoes     Category = "shoes"
	CategoryOther     Category = "other"
)

var Categories = []Category{
	CategoryTop, CategoryBottom, CategoryOuterwear, CategoryAccessory, CategoryShoes, CategoryOther,
}

var Subcategories = map[Category][]string{
	CategoryTop:       {"t-shirt", "shirt", "blouse", "sweater", "tank top"},
	CategoryBottom:    {"jeans", "pants", "shorts", "skirt", "leggings"},
	CategoryOuterwear: {"jacket", "coat", "hoodie", "cardigan"},
	CategoryAccessory: {"hat", "scarf", "jewelry", "bag", "belt", "sunglasses"},
	CategoryShoes:     {"sneakers", "boots", "sandals", "dress shoes", "flats", "heels"},
	CategoryOther:     {"pajamas", "swimwear", "costume"},
}

var (
	Seasons   = []string{"spring", "summer", "fall", "winter"}
	Colors    = []string{"black", "white", "red", "blue", "green", "yellow", "purple", "pink", "brown", "gray", "orange", "multicolor"}
	Materials = []string{"cotton", "polyester", "wool", "linen", "denim", "leather", "silk", "nylon", "spandex", "other"}
	Occasions = []string{"casual", "formal", "work", "athletic", "beach", "party", "travel"}
	Styles    = []string{"classic", "vintage", "streetwear", "bohemian", "minimal", "preppy", "athleisure", "formal"}
)

var (
	ErrUnknownCategory    = errors.New("unknown category")
	ErrUnknownSubcategory = errors.New("unknown subcategory")
	ErrUnknownOption      = errors.New("unknown option")
)

type Attributes struct {
	Color     string   `json:"color,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Material  string   `json:"material,omitempty"`
	Brand     string   `json:"brand,omitempty"`
	Size      string   `json:"size,omitempty"`
	Season    []string `json:"season,omitempty"`
	Style     []string `json:"style,omitempty"`
	Occasions []string `json:"occasions,omitempty"`
}

type Metadata struct {
	PurchaseDate *time.Time `json:"purchaseDate,omitempty"`
	Retired      bool       `json:"retired,omitempty"`
	RetiredDate  *time.Time `json:"retiredDate,omitempty"`
	Favorite     bool       `json:"favorite,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
}

type Stats struct {
	TimesWorn     int        `json:"timesWorn,omitempty"`
	LastWorn      *time.Time `json:"lastWorn,omitempty"`
	AverageRating float64    `json:"averageRating,omitempty"`
}

// InventoryItem is a single piece of clothing. IsUploading and
// LocalImagePath only live on the client while an add is in flight.
type InventoryItem struct {
	ID          string     `json:"id,omitempty"`
	UserID      string     `json:"userId,omitempty"`
	Category    Category   `json:"category"`
	SubCategory string     `json:"subCategory"`
	Attributes  Attributes `json:"attributes"`
	ImageURLs   []string   `json:"imageUrls"`
	Metadata    *Metadata  `json:"metadata,omitempty"`
	Stats       *Stats     `json:"stats,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`

	IsUploading    bool   `json:"-"`
	LocalImagePath string `json:"-"`
}

// IsFavorite is false when no metadata is present.
func (i InventoryItem) IsFavorite() bool {
	return i.Metadata != nil && i.Metadata.Favorite
}

// Validate checks category, subcategory and the enumerated attribute values.
func (i InventoryItem) Validate() error {
	subs, ok := Subcategories[i.Category]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, i.Category)
	}
	if !slices.Contains(subs, i.SubCategory) {
		return fmt.Errorf("%w: %q for %s", ErrUnknownSubcategory, i.SubCategory, i.Category)
	}

	checks := []struct {
		name    string
		values  []string
		allowed []string
	}{
		{"season", i.Attributes.Season, Seasons},
		{"style", i.Attributes.Style, Styles},
		{"occasion", i.Attributes.Occasions, Occasions},
	}
	if i.Attributes.Color != "" {
		checks = append(checks, struct {
			name    string
			values  []string
			allowed []string
		}{"color", []string{i.Attributes.Color}, Colors})
	}
	if i.Attributes.Material != "" {
		checks = append(checks, struct {
			name    string
			values  []string
			allowed []string
		}{"material", []string{i.Attributes.Material}, Materials})
	}

	for _, c := range checks {
		for _, v := range c.values {
			if !slices.Contains(c.allowed, v) {
				return fmt.Errorf("%w: %s %q", ErrUnknownOption, c.name, v)
			}
		}
	}
	return nil
}

// ItemPatch holds the fields of an update; nil fields are left untouched.
type ItemPatch struct {
	Category    *Category   `json:"category,omitempty"`
	SubCategory *string     `json:"subCategory,omitempty"`
	Attributes  *Attributes `json:"attributes,omitempty"`
	ImageURLs   []string    `json:"imageUrls,omitempty"`
	Metadata    *Metadata   `json:"metadata,omitempty"`
	Stats       *Stats      `json:"stats,omitempty"`
}

// Apply returns a copy of item with the patch applied.
func (p ItemPatch) Apply(item InventoryItem) InventoryItem {
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.SubCategory != nil {
		item.SubCategory = *p.SubCategory
	}
	if p.Attributes != nil {
		item.Attributes = *p.Attributes
	}
	if p.ImageURLs != nil {
		item.ImageURLs = p.ImageURLs
	}
	if p.Metadata != nil {
		md := *p.Metadata
		item.Metadata = &md
	}
	if p.Stats != nil {
		st := *p.Stats
		item.Stats = &st
	}
	return item
}

// ListFromString splits a comma separated CLI value, trimming blanks.
func ListFromString(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UploadResult is returned by the image presign endpoint.
type UploadResult struct {
	UploadURL string `json:"uploadUrl"`
	ImageURL  string `json:"imageUrl"`
}
