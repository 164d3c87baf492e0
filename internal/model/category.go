package model

import "time"

// Category is a ledger category.
type Category struct {
	CreatedAt time.Time
	Name      string
	ID        int
}

// CategoryIndex maps category names to ledger ids.
type CategoryIndex map[string]int

// NewCategoryIndex builds an index from a category list.
func NewCategoryIndex(categories []Category) CategoryIndex {
	idx := make(CategoryIndex, len(categories))
	for _, c := range categories {
		idx[c.Name] = c.ID
	}
	return idx
}

// NameOf returns the name for id, if known.
func (ci CategoryIndex) NameOf(id int) (string, bool) {
	for name, cid := range ci {
		if cid == id {
			return name, true
		}
	}
	return "", false
}
