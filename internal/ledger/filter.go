package ledger

import (
	"strings"

	"github.com/Veraticus/order-tagger/internal/model"
)

// Filter selects the ledger transactions considered for matching.
type Filter struct {
	// MerchantTerms are case-insensitive substrings; a transaction is kept when its
	// merchant or description contains any of them. Empty keeps everything.
	MerchantTerms []string
	// Categories, when set, keeps only transactions in one of these category names.
	Categories []string
}

// Apply returns the non-pending transactions passing the filter, in input order.
// It counts the feed size, merchant hits and pending exclusions on stats.
func (f Filter) Apply(txns []model.Transaction, stats *model.Stats) []model.Transaction {
	out := make([]model.Transaction, 0, len(txns))
	for _, t := range txns {
		stats.Inc(model.StatTransactions)
		if !f.matchesMerchant(t) {
			continue
		}
		stats.Inc(model.StatMerchantInDescription)
		if !f.matchesCategory(t) {
			continue
		}
		if t.Pending {
			stats.Inc(model.StatPending)
			continue
		}
		out = append(out, t)
	}
	return out
}

func (f Filter) matchesMerchant(t model.Transaction) bool {
	if len(f.MerchantTerms) == 0 {
		return true
	}
	merchant := strings.ToLower(t.Merchant)
	desc := strings.ToLower(t.Description)
	for _, term := range f.MerchantTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.Contains(merchant, term) || strings.Contains(desc, term) {
			return true
		}
	}
	return false
}

func (f Filter) matchesCategory(t model.Transaction) bool {
	if len(f.Categories) == 0 {
		return true
	}
	for _, c := range f.Categories {
		if strings.EqualFold(strings.TrimSpace(c), t.Category) {
			return true
		}
	}
	return false
}
