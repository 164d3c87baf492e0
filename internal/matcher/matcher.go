// Package matcher pairs purchases with ledger transactions.
//
// Matching is amount-first: a charge pairs with a transaction of the same
// magnitude and direction dated within the configured window after the ship (or
// refund) date. When several candidates qualify, the one closest in date wins and
// ties go to the lowest transaction id. An optional amount tolerance allows a
// second pass for charges whose ledger amount drifted by a tax or misc charge.
//
// Orders are processed oldest first so the output is reproducible:
//
//	m := matcher.New(cfg, ledger.NewIndex(txns), stats)
//	res := m.Run(orders, refunds)
package matcher

import (
	"cmp"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/order-tagger/internal/ledger"
	"github.com/Veraticus/order-tagger/internal/model"
)

// Config controls candidate selection.
type Config struct {
	Window ledger.Window
	// AmountTolerance allows a fallback match whose magnitude differs from the
	// charge by at most this much. Zero disables the fallback.
	AmountTolerance model.Micro
	// MatchShipments tries each shipment of an unmatched multi-shipment order on its own.
	MatchShipments bool
	// CombineSameDay tries unmatched orders that shipped the same day as one charge.
	CombineSameDay bool
}

// DefaultConfig returns the default matching configuration.
func DefaultConfig() Config {
	return Config{
		Window:         ledger.Window{Days: 3},
		MatchShipments: true,
		CombineSameDay: true,
	}
}

// Match pairs one charge with one ledger transaction.
type Match struct {
	Charge      *model.Charge
	Transaction model.Transaction
	// Adjustment is the transaction magnitude minus the charge amount; non-zero only
	// for tolerance matches. The itemizer absorbs it across item lines.
	Adjustment model.Micro
}

// Result is the outcome of a matching run.
type Result struct {
	Matches          []Match
	UnmatchedOrders  []*model.Order
	UnmatchedRefunds []*model.Refund
}

// Unmatched returns unmatched orders followed by unmatched refunds.
func (r Result) Unmatched() []model.Purchase {
	out := make([]model.Purchase, 0, len(r.UnmatchedOrders)+len(r.UnmatchedRefunds))
	for _, o := range r.UnmatchedOrders {
		out = append(out, o)
	}
	for _, rf := range r.UnmatchedRefunds {
		out = append(out, rf)
	}
	return out
}

// Matcher tracks match state for one run. It is not safe for concurrent use.
type Matcher struct {
	index *ledger.Index
	stats *model.Stats
	used  map[string]bool
	cfg   Config
}

// New creates a matcher over a read-only index.
func New(cfg Config, index *ledger.Index, stats *model.Stats) *Matcher {
	if stats == nil {
		stats = model.NewStats()
	}
	return &Matcher{
		cfg:   cfg,
		index: index,
		stats: stats,
		used:  make(map[string]bool),
	}
}

// Closer returns a comparator ordering transactions by calendar-day distance from
// anchor, then by id ascending. Ids that both parse as integers compare
// numerically.
func Closer(anchor time.Time) func(a, b model.Transaction) int {
	return func(a, b model.Transaction) int {
		da, db := ledger.DaysBetween(anchor, a.Date), ledger.DaysBetween(anchor, b.Date)
		if da != db {
			return da - db
		}
		return compareIDs(a.ID, b.ID)
	}
}

func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil && na != nb {
		return cmp.Compare(na, nb)
	}
	return strings.Compare(a, b)
}

// Run matches orders, then refunds.
func (m *Matcher) Run(orders []*model.Order, refunds []*model.Refund) Result {
	var res Result
	res.Matches = append(res.Matches, m.MatchOrders(orders)...)
	res.Matches = append(res.Matches, m.MatchRefunds(refunds)...)

	for _, o := range orders {
		if o.Matched {
			m.stats.Inc(model.StatOrderMatch)
		} else {
			m.stats.Inc(model.StatOrderUnmatch)
			res.UnmatchedOrders = append(res.UnmatchedOrders, o)
		}
	}
	for _, r := range refunds {
		if r.Matched {
			m.stats.Inc(model.StatRefundMatch)
		} else {
			m.stats.Inc(model.StatRefundUnmatch)
			res.UnmatchedRefunds = append(res.UnmatchedRefunds, r)
		}
	}
	m.stats.Add(model.StatTransactionMatch, len(m.used))
	m.stats.Add(model.StatTransactionUnmatch, m.index.Len()-len(m.used))

	return res
}

// MatchOrders matches orders oldest ship date first and returns the matches in
// the order they were made.
func (m *Matcher) MatchOrders(orders []*model.Order) []Match {
	sorted := append([]*model.Order(nil), orders...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.ShipDate().Equal(b.ShipDate()) {
			return a.ShipDate().Before(b.ShipDate())
		}
		return a.OrderID < b.OrderID
	})

	var matches []Match
	pending := func() []*model.Order {
		var out []*model.Order
		for _, o := range sorted {
			if !o.Matched && !o.TransactDate().IsZero() {
				out = append(out, o)
			}
		}
		return out
	}

	for _, o := range pending() {
		if mt, ok := m.try(model.NewOrderCharge(o), false); ok {
			matches = append(matches, mt)
		}
	}
	if m.cfg.AmountTolerance > 0 {
		for _, o := range pending() {
			if mt, ok := m.try(model.NewOrderCharge(o), true); ok {
				matches = append(matches, mt)
			}
		}
	}

	partial := make(map[string]bool)
	if m.cfg.MatchShipments {
		for _, o := range pending() {
			if len(o.Shipments) < 2 {
				continue
			}
			matched := 0
			for _, s := range o.Shipments {
				if mt, ok := m.try(model.NewShipmentCharge(o, s), false); ok {
					matches = append(matches, mt)
					m.stats.Inc(model.StatPartialShipmentMatches)
					matched++
				}
			}
			switch {
			case matched == len(o.Shipments):
				o.Matched = true
			case matched > 0:
				partial[o.OrderID] = true
				slog.Debug("Order partially matched by shipment",
					"order_id", o.OrderID,
					"matched_shipments", matched,
					"shipments", len(o.Shipments))
			}
		}
	}

	if m.cfg.CombineSameDay {
		matches = append(matches, m.combineSameDay(pending(), partial)...)
	}

	return matches
}

func (m *Matcher) combineSameDay(orders []*model.Order, partial map[string]bool) []Match {
	groups := make(map[time.Time][]*model.Order)
	var days []time.Time
	for _, o := range orders {
		if partial[o.OrderID] {
			continue
		}
		day := model.Day(o.ShipDate())
		if _, ok := groups[day]; !ok {
			days = append(days, day)
		}
		groups[day] = append(groups[day], o)
	}

	var matches []Match
	for _, day := range days {
		group := groups[day]
		if len(group) < 2 {
			continue
		}
		if mt, ok := m.try(model.NewCombinedCharge(group), false); ok {
			matches = append(matches, mt)
			m.stats.Inc(model.StatCombinedOrderMatches)
		}
	}
	return matches
}

// MatchRefunds matches refunds oldest refund date first. A refund whose total
// matches nothing is retried per refund day.
func (m *Matcher) MatchRefunds(refunds []*model.Refund) []Match {
	sorted := append([]*model.Refund(nil), refunds...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.RefundDate().Equal(b.RefundDate()) {
			return a.RefundDate().Before(b.RefundDate())
		}
		return a.OrderID < b.OrderID
	})

	var matches []Match
	for _, r := range sorted {
		if mt, ok := m.try(model.NewRefundCharge(r, r.Items), false); ok {
			matches = append(matches, mt)
		}
	}
	if m.cfg.AmountTolerance > 0 {
		for _, r := range sorted {
			if r.Matched {
				continue
			}
			if mt, ok := m.try(model.NewRefundCharge(r, r.Items), true); ok {
				matches = append(matches, mt)
			}
		}
	}

	for _, r := range sorted {
		dates := r.RefundDates()
		if r.Matched || len(dates) < 2 {
			continue
		}
		matched := 0
		for _, d := range dates {
			var items []model.RefundItem
			for _, it := range r.Items {
				if model.SameDay(it.RefundDate, d) {
					items = append(items, it)
				}
			}
			if mt, ok := m.try(model.NewRefundCharge(r, items), false); ok {
				matches = append(matches, mt)
				matched++
			}
		}
		if matched == len(dates) {
			r.Matched = true
		}
	}

	return matches
}

// try pairs c with its best candidate. With tolerant set, only the amount
// tolerance fallback is consulted.
func (m *Matcher) try(c *model.Charge, tolerant bool) (Match, bool) {
	if c.Amount <= 0 || c.Date.IsZero() {
		return Match{}, false
	}

	var (
		best model.Transaction
		ok   bool
	)
	if tolerant {
		best, ok = m.bestNear(c)
	} else {
		best, ok = m.bestExact(c)
	}
	if !ok {
		return Match{}, false
	}

	mt := Match{
		Charge:      c,
		Transaction: best,
		Adjustment:  best.Amount.Abs() - c.Amount,
	}
	m.commit(mt)
	return mt, true
}

func (m *Matcher) bestExact(c *model.Charge) (model.Transaction, bool) {
	cands := m.eligible(c, m.index.CandidatesFor(c.Amount, c.Date, m.cfg.Window))
	if len(cands) == 0 {
		return model.Transaction{}, false
	}
	closer := Closer(c.Date)
	sort.SliceStable(cands, func(i, j int) bool { return closer(cands[i], cands[j]) < 0 })
	return cands[0], true
}

func (m *Matcher) bestNear(c *model.Charge) (model.Transaction, bool) {
	cands := m.eligible(c, m.index.Near(c.Amount, m.cfg.AmountTolerance, c.Date, m.cfg.Window))
	if len(cands) == 0 {
		return model.Transaction{}, false
	}
	closer := Closer(c.Date)
	sort.SliceStable(cands, func(i, j int) bool {
		di := (cands[i].Amount.Abs() - c.Amount).Abs()
		dj := (cands[j].Amount.Abs() - c.Amount).Abs()
		if di != dj {
			return di < dj
		}
		return closer(cands[i], cands[j]) < 0
	})
	return cands[0], true
}

func (m *Matcher) eligible(c *model.Charge, cands []model.Transaction) []model.Transaction {
	out := cands[:0:0]
	for _, t := range cands {
		if m.used[t.ID] || t.Pending || t.Amount == 0 {
			continue
		}
		if c.IsDebit() != t.IsDebit() {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (m *Matcher) commit(mt Match) {
	c := mt.Charge
	m.used[mt.Transaction.ID] = true
	c.MarkMatched()

	switch {
	case mt.Adjustment != 0 && c.Tax != 0:
		m.stats.Inc(model.StatAdjustItemizedTax)
	case mt.Adjustment != 0:
		m.stats.Inc(model.StatMiscCharge)
	default:
		if c.AdjustItemizedTax {
			m.stats.Inc(model.StatAdjustItemizedTax)
		}
		if c.Misc > 0 {
			m.stats.Inc(model.StatMiscCharge)
		}
	}

	slog.Debug("Matched charge",
		"kind", c.Kind,
		"order_ids", c.OrderIDs(),
		"transaction_id", mt.Transaction.ID,
		"amount", c.Amount.String(),
		"adjustment", mt.Adjustment.String())
}
