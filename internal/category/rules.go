// Package category assigns ledger categories to purchased items, either from
// marketplace category rules or from overrides learned from earlier user edits.
package category

import (
	"sort"
	"strings"
)

// Default ledger category names.
const (
	Shopping      = "Shopping"
	Shipping      = "Shipping"
	Uncategorized = "Uncategorized"
)

// Rule maps marketplace categories containing Keyword to a ledger category.
type Rule struct {
	Keyword  string
	Category string
}

// DefaultRules is the built-in marketplace-to-ledger category mapping, consulted
// in order.
var DefaultRules = []Rule{
	{Keyword: "office", Category: "Office Supplies"},
	{Keyword: "book", Category: "Books"},
	{Keyword: "kindle", Category: "Books"},
	{Keyword: "audible", Category: "Books"},
	{Keyword: "software", Category: "Electronics & Software"},
	{Keyword: "video game", Category: "Electronics & Software"},
	{Keyword: "electronic", Category: "Electronics & Software"},
	{Keyword: "computer", Category: "Electronics & Software"},
	{Keyword: "camera", Category: "Electronics & Software"},
	{Keyword: "wireless", Category: "Electronics & Software"},
	{Keyword: "grocery", Category: "Groceries"},
	{Keyword: "gourmet", Category: "Groceries"},
	{Keyword: "toy", Category: "Toys"},
	{Keyword: "baby", Category: "Baby Supplies"},
	{Keyword: "apparel", Category: "Clothing"},
	{Keyword: "shoes", Category: "Clothing"},
	{Keyword: "jewelry", Category: "Clothing"},
	{Keyword: "beauty", Category: "Personal Care"},
	{Keyword: "health", Category: "Personal Care"},
	{Keyword: "personal care", Category: "Personal Care"},
	{Keyword: "pet supplies", Category: "Pet Food & Supplies"},
	{Keyword: "pet food", Category: "Pet Food & Supplies"},
	{Keyword: "sport", Category: "Sporting Goods"},
	{Keyword: "outdoor", Category: "Sporting Goods"},
	{Keyword: "kitchen", Category: "Home Supplies"},
	{Keyword: "home", Category: "Home Supplies"},
	{Keyword: "tool", Category: "Home Improvement"},
	{Keyword: "automotive", Category: "Auto & Transport"},
	{Keyword: "music", Category: "Entertainment"},
	{Keyword: "movie", Category: "Entertainment"},
	{Keyword: "dvd", Category: "Entertainment"},
}

// Rules resolves marketplace categories to ledger categories.
type Rules struct {
	fallback string
	rules    []Rule
}

// NewRules creates rules from extra keyword mappings, consulted before
// DefaultRules. Extra keywords are applied longest first.
func NewRules(extra map[string]string) *Rules {
	custom := make([]Rule, 0, len(extra))
	for k, v := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || strings.TrimSpace(v) == "" {
			continue
		}
		custom = append(custom, Rule{Keyword: k, Category: strings.TrimSpace(v)})
	}
	sort.Slice(custom, func(i, j int) bool {
		if len(custom[i].Keyword) != len(custom[j].Keyword) {
			return len(custom[i].Keyword) > len(custom[j].Keyword)
		}
		return custom[i].Keyword < custom[j].Keyword
	})
	return &Rules{
		rules:    append(custom, DefaultRules...),
		fallback: Shopping,
	}
}

// Lookup returns the ledger category for a marketplace category.
func (r *Rules) Lookup(productCategory string) string {
	pc := strings.ToLower(productCategory)
	if pc == "" {
		return r.fallback
	}
	for _, rule := range r.rules {
		if strings.Contains(pc, rule.Keyword) {
			return rule.Category
		}
	}
	return r.fallback
}

// Default returns the category used when no rule applies.
func (r *Rules) Default() string { return r.fallback }

// Names returns every category name the rules can produce, sorted.
func (r *Rules) Names() []string {
	seen := map[string]bool{r.fallback: true, Shipping: true}
	for _, rule := range r.rules {
		seen[rule.Category] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
