package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/wardrobe/internal/client/models"
)

// itemID takes the id from the command arguments or asks for it.
func (a *App) itemID(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, "Item ID", a.out)
}

// List refreshes the inventory from the backend and prints it.
func (a *App) List(ctx context.Context) error {
	return a.guard.Protect(func() error {
		if err := a.inventory.Fetch(ctx); err != nil {
			return a.report(ctx, err)
		}
		st := a.inventory.Snapshot()
		if st.Offline {
			fmt.Fprintln(a.out, "Offline: showing your last synced wardrobe.")
		}
		if len(st.Items) == 0 {
			fmt.Fprintln(a.out, "Your wardrobe is empty. Use 'add' to add an item.")
			return nil
		}

		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tTYPE\tCOLOR\tFAV")
		for _, it := range st.Items {
			fav := ""
			if it.IsFavorite() {
				fav = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Category, it.SubCategory, it.Attributes.Color, fav)
		}
		return w.Flush()
	})
}

// Add prompts for a new item and an optional image file.
func (a *App) Add(ctx context.Context) error {
	return a.guard.Protect(func() error {
		item, err := a.promptItem(models.InventoryItem{})
		if err != nil {
			return err
		}
		image, err := getSimpleText(a.reader, "Image file (optional)", a.out)
		if err != nil {
			return err
		}

		created, err := a.inventory.AddItem(ctx, item, image)
		if err != nil {
			return a.report(ctx, err)
		}
		fmt.Fprintf(a.out, "Added %s (%s)\n", created.SubCategory, created.ID)
		return nil
	})
}

// Show prints a single item from the last listing.
func (a *App) Show(ctx context.Context, args []string) error {
	return a.guard.Protect(func() error {
		id, err := a.itemID(args)
		if err != nil {
			return err
		}
		it, ok := a.inventory.Get(id)
		if !ok {
			fmt.Fprintf(a.out, "No item %q. Run 'list' first.\n", id)
			return nil
		}
		printItem(a, it)
		return nil
	})
}

// Update prompts for new values, defaulting to the current ones, and sends
// only what changed.
func (a *App) Update(ctx context.Context, args []string) error {
	return a.guard.Protect(func() error {
		id, err := a.itemID(args)
		if err != nil {
			return err
		}
		cur, ok := a.inventory.Get(id)
		if !ok {
			fmt.Fprintf(a.out, "No item %q. Run 'list' first.\n", id)
			return nil
		}

		next, err := a.promptItem(cur)
		if err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			fmt.Fprintln(a.out, err.Error())
			return err
		}

		patch := diffItem(cur, next)
		if _, err := a.inventory.Update(ctx, id, patch); err != nil {
			return a.report(ctx, err)
		}
		fmt.Fprintln(a.out, "Updated.")
		return nil
	})
}

func (a *App) Delete(ctx context.Context, args []string) error {
	return a.guard.Protect(func() error {
		id, err := a.itemID(args)
		if err != nil {
			return err
		}
		if err := a.inventory.Delete(ctx, id); err != nil {
			return a.report(ctx, err)
		}
		fmt.Fprintln(a.out, "Deleted.")
		return nil
	})
}

func (a *App) Favorite(ctx context.Context, args []string) error {
	return a.guard.Protect(func() error {
		id, err := a.itemID(args)
		if err != nil {
			return err
		}
		if err := a.inventory.ToggleFavorite(ctx, id); err != nil {
			return a.report(ctx, err)
		}
		if it, ok := a.inventory.Get(id); ok && it.IsFavorite() {
			fmt.Fprintln(a.out, "Marked as favorite.")
		} else {
			fmt.Fprintln(a.out, "Removed from favorites.")
		}
		return nil
	})
}

// promptItem asks for every editable field, offering the values of base as
// defaults.
func (a *App) promptItem(base models.InventoryItem) (models.InventoryItem, error) {
	item := base

	cats := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		cats[i] = string(c)
	}

	cat, err := GetOptionalText(a.reader, "Category ("+strings.Join(cats, ", ")+")", string(base.Category), a.out)
	if err != nil {
		return item, err
	}
	item.Category = models.Category(cat)

	sub, err := GetOptionalText(a.reader, "Type ("+strings.Join(models.Subcategories[item.Category], ", ")+")", base.SubCategory, a.out)
	if err != nil {
		return item, err
	}
	item.SubCategory = sub

	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Color", &item.Attributes.Color},
		{"Pattern", &item.Attributes.Pattern},
		{"Material", &item.Attributes.Material},
		{"Brand", &item.Attributes.Brand},
		{"Size", &item.Attributes.Size},
	}
	for _, f := range fields {
		v, err := GetOptionalText(a.reader, f.prompt, *f.dst, a.out)
		if err != nil {
			return item, err
		}
		*f.dst = v
	}

	lists := []struct {
		prompt string
		dst    *[]string
	}{
		{"Seasons (comma separated)", &item.Attributes.Season},
		{"Styles (comma separated)", &item.Attributes.Style},
		{"Occasions (comma separated)", &item.Attributes.Occasions},
	}
	for _, l := range lists {
		v, err := GetOptionalText(a.reader, l.prompt, strings.Join(*l.dst, ","), a.out)
		if err != nil {
			return item, err
		}
		*l.dst = models.ListFromString(v)
	}
	return item, nil
}

// diffItem builds a patch holding the fields of next that differ from cur.
func diffItem(cur, next models.InventoryItem) models.ItemPatch {
	var p models.ItemPatch
	if next.Category != cur.Category {
		p.Category = &next.Category
	}
	if next.SubCategory != cur.SubCategory {
		p.SubCategory = &next.SubCategory
	}
	if !attributesEqual(cur.Attributes, next.Attributes) {
		p.Attributes = &next.Attributes
	}
	return p
}

func attributesEqual(a, b models.Attributes) bool {
	return a.Color == b.Color && a.Pattern == b.Pattern && a.Material == b.Material &&
		a.Brand == b.Brand && a.Size == b.Size &&
		slices.Equal(a.Season, b.Season) && slices.Equal(a.Style, b.Style) &&
		slices.Equal(a.Occasions, b.Occasions)
}

func printItem(a *App, it models.InventoryItem) {
	fmt.Fprintf(a.out, "ID:        %s\n", it.ID)
	fmt.Fprintf(a.out, "Category:  %s / %s\n", it.Category, it.SubCategory)
	if c := it.Attributes.Color; c != "" {
		fmt.Fprintf(a.out, "Color:     %s\n", c)
	}
	if m := it.Attributes.Material; m != "" {
		fmt.Fprintf(a.out, "Material:  %s\n", m)
	}
	if b := it.Attributes.Brand; b != "" {
		fmt.Fprintf(a.out, "Brand:     %s\n", b)
	}
	if s := it.Attributes.Size; s != "" {
		fmt.Fprintf(a.out, "Size:      %s\n", s)
	}
	if len(it.Attributes.Season) > 0 {
		fmt.Fprintf(a.out, "Seasons:   %s\n", strings.Join(it.Attributes.Season, ", "))
	}
	for _, u := range it.ImageURLs {
		fmt.Fprintf(a.out, "Image:     %s\n", u)
	}
	if it.IsFavorite() {
		fmt.Fprintln(a.out, "Favorite:  yes")
	}
}
