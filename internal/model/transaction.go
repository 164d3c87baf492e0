package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Transaction is one entry of the personal-finance ledger feed.
type Transaction struct {
	Date time.Time
	ID   string
	// Merchant is the raw merchant text as delivered by the feed.
	Merchant string
	// Description is the current, possibly tagged, description.
	Description string
	Category    string
	AccountID   string
	// AppliedFingerprint is the content fingerprint written by the last applied update.
	AppliedFingerprint string
	// RuleCategory is the category the last applied update chose without a
	// learned override. A differing Category is a user recategorization.
	RuleCategory string
	Splits       []Split
	Amount       Micro // debit positive, credit negative
	CategoryID   int
	Pending      bool
}

// Split is one itemized child line of a transaction.
type Split struct {
	Description string
	Category    string
	// RuleCategory is the category chosen for the line without a learned override.
	RuleCategory string
	Amount       Micro
	CategoryID   int
}

// IsDebit reports whether money left the account.
func (t Transaction) IsDebit() bool { return t.Amount > 0 }

// HasPrefix reports whether the description starts with any of the given prefixes,
// compared case-insensitively.
func (t Transaction) HasPrefix(prefixes []string) bool {
	desc := strings.ToLower(t.Description)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(desc, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// ContentFingerprint hashes the tagged content of the transaction in its current state.
func (t Transaction) ContentFingerprint() string {
	return Fingerprint(t.Description, t.CategoryID, t.Splits)
}

// Fingerprint hashes a description, category and split list.
func Fingerprint(description string, categoryID int, splits []Split) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d", description, categoryID)
	for _, s := range splits {
		fmt.Fprintf(h, "|%s:%d:%d", s.Description, s.Amount, s.CategoryID)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// SplitsTotal returns the sum of the split amounts.
func SplitsTotal(splits []Split) Micro {
	var total Micro
	for _, s := range splits {
		total += s.Amount
	}
	return total
}
