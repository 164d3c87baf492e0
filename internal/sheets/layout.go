package sheets

import (
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/order-tagger/internal/model"
	"github.com/Veraticus/order-tagger/internal/tagger"
)

// Tab names of the exported spreadsheet.
const (
	TabSummary   = "Summary"
	TabUpdates   = "Updates"
	TabUnmatched = "Unmatched"
)

// Tabs lists the report tabs in display order.
var Tabs = []string{TabSummary, TabUpdates, TabUnmatched}

var updateHeader = []any{"Transaction", "Date", "Amount", "Line", "Description", "Category", "Retag"}

var unmatchedHeader = []any{"Kind", "ID", "Date", "Amount", "Items", "Invoice"}

// amount renders m as a plain number so the currency column format applies.
func amount(m model.Micro) any {
	f, _ := m.Decimal().Round(2).Float64()
	return f
}

func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// summaryValues lays out the run header, purchase history and counters.
func summaryValues(r tagger.Report) [][]any {
	mode := "live"
	if r.DryRun {
		mode = "dry run"
	}
	h := r.History

	values := [][]any{
		{"Order Tagger Report", mode},
		{},
		{"Purchase History"},
		{"First order", isoDate(h.First)},
		{"Last order", isoDate(h.Last)},
		{"Orders", h.Orders},
		{"Orders matched", h.OrdersMatched},
		{"Items", h.Items},
		{"Items matched", h.ItemsMatched},
		{"Refunds", h.Refunds},
		{"Total spend", amount(h.TotalSpend)},
		{"Average order", amount(h.AverageOrder)},
		{},
		{"Counters"},
		{"Name", "Count"},
	}

	names := make([]string, 0, len(r.Stats))
	for name := range r.Stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values = append(values, []any{name, r.Stats[name]})
	}
	return values
}

// updateValues writes one row per update and one indented row per split.
func updateValues(r tagger.Report) [][]any {
	values := make([][]any, 0, len(r.Updates)+1)
	values = append(values, updateHeader)

	for _, u := range r.Updates {
		tx := u.Original
		values = append(values, []any{
			u.TransactionID,
			isoDate(tx.Date),
			amount(tx.Amount),
			"",
			u.Description,
			u.Category,
			u.Retag,
		})
		for i, s := range u.Splits {
			values = append(values, []any{
				u.TransactionID,
				"",
				amount(s.Amount),
				i + 1,
				s.Description,
				s.Category,
				"",
			})
		}
	}
	return values
}

// unmatchedValues lists purchases with no ledger transaction.
func unmatchedValues(r tagger.Report) [][]any {
	values := make([][]any, 0, len(r.Unmatched)+1)
	values = append(values, unmatchedHeader)

	for _, p := range r.Unmatched {
		values = append(values, []any{
			p.Kind,
			p.ID,
			isoDate(p.Date),
			amount(p.Amount),
			strings.Join(p.Titles, "; "),
			p.InvoiceURL,
		})
	}
	return values
}

// tabValues returns the values of every tab keyed by tab name.
func tabValues(r tagger.Report) map[string][][]any {
	return map[string][][]any{
		TabSummary:   summaryValues(r),
		TabUpdates:   updateValues(r),
		TabUnmatched: unmatchedValues(r),
	}
}
