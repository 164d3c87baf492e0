// Package ledger indexes ledger transactions for candidate lookup.
package ledger

import (
	"sort"
	"time"

	"github.com/Veraticus/order-tagger/internal/model"
)

// Window bounds how far a ledger date may sit from a purchase anchor date.
type Window struct {
	Days int
	// Symmetric also accepts dates up to Days before the anchor.
	Symmetric bool
}

// Bounds returns the first and last calendar day accepted for anchor.
func (w Window) Bounds(anchor time.Time) (time.Time, time.Time) {
	start := model.Day(anchor)
	end := start.AddDate(0, 0, w.Days)
	if w.Symmetric {
		start = start.AddDate(0, 0, -w.Days)
	}
	return start, end
}

// Contains reports whether date falls within the window around anchor, inclusive.
func (w Window) Contains(anchor, date time.Time) bool {
	start, end := w.Bounds(anchor)
	d := model.Day(date)
	return !d.Before(start) && !d.After(end)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	d := int(model.Day(a).Sub(model.Day(b)).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// Index is a read-only lookup over ledger transactions keyed by absolute amount,
// with a secondary date ordering for range scans.
type Index struct {
	byAmount map[model.Micro][]int
	byDate   []int
	txns     []model.Transaction
}

// NewIndex builds an index over a copy of txns.
func NewIndex(txns []model.Transaction) *Index {
	ix := &Index{
		txns:     append([]model.Transaction(nil), txns...),
		byAmount: make(map[model.Micro][]int),
		byDate:   make([]int, len(txns)),
	}

	for i := range ix.txns {
		ix.byDate[i] = i
	}
	sort.SliceStable(ix.byDate, func(a, b int) bool {
		return ix.less(ix.byDate[a], ix.byDate[b])
	})

	for _, i := range ix.byDate {
		amt := ix.txns[i].Amount.Abs()
		ix.byAmount[amt] = append(ix.byAmount[amt], i)
	}

	return ix
}

func (ix *Index) less(a, b int) bool {
	ta, tb := ix.txns[a], ix.txns[b]
	if !ta.Date.Equal(tb.Date) {
		return ta.Date.Before(tb.Date)
	}
	return ta.ID < tb.ID
}

// Len returns the number of indexed transactions.
func (ix *Index) Len() int { return len(ix.txns) }

// All returns the indexed transactions ordered by date, then id.
func (ix *Index) All() []model.Transaction {
	out := make([]model.Transaction, 0, len(ix.byDate))
	for _, i := range ix.byDate {
		out = append(out, ix.txns[i])
	}
	return out
}

// CandidatesFor returns transactions whose absolute amount equals amount and whose
// date falls within the window around date. The result is ordered by date, then id,
// and is empty when nothing matches.
func (ix *Index) CandidatesFor(amount model.Micro, date time.Time, w Window) []model.Transaction {
	var out []model.Transaction
	for _, i := range ix.byAmount[amount.Abs()] {
		if w.Contains(date, ix.txns[i].Date) {
			out = append(out, ix.txns[i])
		}
	}
	return out
}

// Near returns transactions within the window whose absolute amount differs from
// amount by at most tolerance, ordered by date, then id.
func (ix *Index) Near(amount, tolerance model.Micro, date time.Time, w Window) []model.Transaction {
	start, end := w.Bounds(date)
	var out []model.Transaction
	for _, t := range ix.InRange(start, end) {
		if (t.Amount.Abs() - amount.Abs()).Abs() <= tolerance {
			out = append(out, t)
		}
	}
	return out
}

// InRange returns transactions dated on or between the start and end days.
func (ix *Index) InRange(start, end time.Time) []model.Transaction {
	start, end = model.Day(start), model.Day(end)
	lo := sort.Search(len(ix.byDate), func(k int) bool {
		return !model.Day(ix.txns[ix.byDate[k]].Date).Before(start)
	})

	var out []model.Transaction
	for k := lo; k < len(ix.byDate); k++ {
		t := ix.txns[ix.byDate[k]]
		if model.Day(t.Date).After(end) {
			break
		}
		out = append(out, t)
	}
	return out
}
