package plaid

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/Veraticus/order-tagger/internal/model"
)

// ErrBadDate is returned for a transaction whose date cannot be parsed.
var ErrBadDate = errors.New("unparseable transaction date")

// corporateSuffixes are dropped from the end of merchant names.
var corporateSuffixes = map[string]bool{
	"llc": true, "inc": true, "corp": true, "corporation": true,
	"company": true, "co": true, "ltd": true, "limited": true,
}

// mapTransaction converts a Plaid transaction to a ledger transaction. The raw
// name stays the description; the merchant is the cleaned merchant name.
func mapTransaction(pt plaid.Transaction) (model.Transaction, error) {
	date, err := time.Parse(dateLayout, pt.GetDate())
	if err != nil {
		return model.Transaction{}, fmt.Errorf("%w: %q", ErrBadDate, pt.GetDate())
	}

	merchant := pt.GetMerchantName()
	if merchant == "" {
		merchant = pt.GetName()
	}

	// most specific level of Plaid's category hierarchy
	var category string
	if levels := pt.GetCategory(); len(levels) > 0 {
		category = levels[len(levels)-1]
	}

	return model.Transaction{
		Date:        date,
		ID:          pt.GetTransactionId(),
		Merchant:    cleanMerchantName(merchant),
		Description: strings.TrimSpace(pt.GetName()),
		AccountID:   pt.GetAccountId(),
		Amount:      model.MicroFromFloat(pt.GetAmount()),
		Category:    category,
		Pending:     pt.GetPending(),
	}, nil
}

// cleanMerchantName title-cases name and drops a trailing reference number
// and corporate suffixes: "ACME WIDGETS INC 1234567" becomes "Acme Widgets".
func cleanMerchantName(name string) string {
	words := strings.Fields(strings.ToLower(name))

	if n := len(words); n > 1 && isReference(words[n-1]) {
		words = words[:n-1]
	}
	for len(words) > 1 && corporateSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}

	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

// isReference reports whether w looks like a transaction reference number.
func isReference(w string) bool {
	if len(w) <= 5 {
		return false
	}
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// titleWord upper-cases every letter that follows a non-letter, so "o'reilly"
// becomes "O'Reilly".
func titleWord(w string) string {
	runes := []rune(w)
	for i, r := range runes {
		if i == 0 || !unicode.IsLetter(runes[i-1]) {
			runes[i] = unicode.ToUpper(r)
		}
	}
	return string(runes)
}
