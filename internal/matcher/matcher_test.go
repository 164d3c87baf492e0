package matcher

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/order-tagger/internal/ledger"
	"github.com/Veraticus/order-tagger/internal/model"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func dollars(f float64) model.Micro {
	return model.MicroFromFloat(f)
}

func newOrder(id string, ship time.Time, total model.Micro) *model.Order {
	return &model.Order{
		OrderID:   id,
		OrderDate: ship.AddDate(0, 0, -2),
		Website:   "Amazon.com",
		Shipments: []model.Shipment{{ShipDate: ship, Subtotal: total, Total: total}},
		Items: []*model.Item{{
			OrderID:  id,
			ShipDate: ship,
			Title:    "Item " + id,
			Quantity: 1,
			Subtotal: total,
			Total:    total,
		}},
		ItemsMatched: true,
	}
}

func newTx(id string, date time.Time, amount model.Micro) model.Transaction {
	return model.Transaction{ID: id, Date: date, Amount: amount, Merchant: "AMZN Mktp US"}
}

func run(t *testing.T, cfg Config, txns []model.Transaction, orders []*model.Order, refunds []*model.Refund) (Result, *model.Stats) {
	t.Helper()
	stats := model.NewStats()
	m := New(cfg, ledger.NewIndex(txns), stats)
	return m.Run(orders, refunds), stats
}

func TestWindowBoundary(t *testing.T) {
	tests := []struct {
		name    string
		txDate  time.Time
		matched bool
	}{
		{name: "same day", txDate: day(10), matched: true},
		{name: "last day of window", txDate: day(13), matched: true},
		{name: "one day past window", txDate: day(14), matched: false},
		{name: "before ship date", txDate: day(9), matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrder("111-1", day(10), dollars(25))
			res, _ := run(t, DefaultConfig(), []model.Transaction{newTx("t1", tt.txDate, dollars(25))}, []*model.Order{o}, nil)

			assert.Equal(t, tt.matched, o.Matched)
			if tt.matched {
				require.Len(t, res.Matches, 1)
				assert.Equal(t, "t1", res.Matches[0].Transaction.ID)
				assert.Empty(t, res.UnmatchedOrders)
			} else {
				assert.Empty(t, res.Matches)
				assert.Len(t, res.UnmatchedOrders, 1)
			}
		})
	}
}

func TestSymmetricWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window.Symmetric = true

	o := newOrder("111-1", day(10), dollars(25))
	res, _ := run(t, cfg, []model.Transaction{newTx("t1", day(7), dollars(25))}, []*model.Order{o}, nil)

	require.Len(t, res.Matches, 1)
	assert.True(t, o.Matched)
}

func TestTieBreakIsDeterministic(t *testing.T) {
	base := []model.Transaction{
		newTx("tx-b", day(11), dollars(42.5)),
		newTx("tx-a", day(11), dollars(42.5)),
		newTx("tx-c", day(11), dollars(42.5)),
		newTx("noise-1", day(11), dollars(10)),
		newTx("noise-2", day(12), dollars(42.51)),
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 25; i++ {
		txns := append([]model.Transaction(nil), base...)
		rng.Shuffle(len(txns), func(a, b int) { txns[a], txns[b] = txns[b], txns[a] })

		o := newOrder("111-1", day(10), dollars(42.5))
		res, _ := run(t, DefaultConfig(), txns, []*model.Order{o}, nil)

		require.Len(t, res.Matches, 1)
		assert.Equal(t, "tx-a", res.Matches[0].Transaction.ID, "iteration %d", i)
	}
}

func TestPrefersClosestDate(t *testing.T) {
	txns := []model.Transaction{
		newTx("a", day(13), dollars(9.99)),
		newTx("z", day(11), dollars(9.99)),
	}
	o := newOrder("111-1", day(10), dollars(9.99))
	res, _ := run(t, DefaultConfig(), txns, []*model.Order{o}, nil)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "z", res.Matches[0].Transaction.ID)
}

func TestCloser(t *testing.T) {
	cmp := Closer(day(10))

	assert.Negative(t, cmp(newTx("b", day(10), 0), newTx("a", day(12), 0)))
	assert.Positive(t, cmp(newTx("a", day(13), 0), newTx("b", day(11), 0)))
	assert.Negative(t, cmp(newTx("a", day(11), 0), newTx("b", day(11), 0)))
	assert.Zero(t, cmp(newTx("a", day(11), 0), newTx("a", day(11), 0)))
}

func TestCloserIDTieBreak(t *testing.T) {
	cmp := Closer(day(10))

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "numeric ids compare by value", a: "9", b: "10", want: -1},
		{name: "numeric ids reversed", a: "10", b: "9", want: 1},
		{name: "leading zeros fall back to text", a: "007", b: "7", want: -1},
		{name: "mixed ids compare as text", a: "10", b: "a9", want: -1},
		{name: "text ids", a: "b", b: "a", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cmp(newTx(tt.a, day(11), 0), newTx(tt.b, day(11), 0))
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
			case tt.want > 0:
				assert.Positive(t, got)
			}
		})
	}
}

func TestNumericIDTieGoesToLowerNumber(t *testing.T) {
	txns := []model.Transaction{
		newTx("10", day(11), dollars(9.99)),
		newTx("9", day(11), dollars(9.99)),
	}
	o := newOrder("111-1", day(10), dollars(9.99))
	res, _ := run(t, DefaultConfig(), txns, []*model.Order{o}, nil)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "9", res.Matches[0].Transaction.ID)
}

func TestTransactionUsedOnce(t *testing.T) {
	older := newOrder("111-1", day(10), dollars(15))
	newer := newOrder("111-2", day(11), dollars(15))
	cfg := DefaultConfig()
	cfg.CombineSameDay = false

	res, stats := run(t, cfg, []model.Transaction{newTx("t1", day(12), dollars(15))}, []*model.Order{newer, older}, nil)

	require.Len(t, res.Matches, 1)
	assert.True(t, older.Matched)
	assert.False(t, newer.Matched)
	assert.Equal(t, 1, stats.Get(model.StatOrderMatch))
	assert.Equal(t, 1, stats.Get(model.StatOrderUnmatch))
	assert.Equal(t, 1, stats.Get(model.StatTransactionMatch))
	assert.Equal(t, 0, stats.Get(model.StatTransactionUnmatch))
}

func TestDirectionMustAgree(t *testing.T) {
	o := newOrder("111-1", day(10), dollars(20))
	res, _ := run(t, DefaultConfig(), []model.Transaction{newTx("credit", day(10), -dollars(20))}, []*model.Order{o}, nil)

	assert.Empty(t, res.Matches)
	assert.False(t, o.Matched)
}

func TestRefundMatching(t *testing.T) {
	r := &model.Refund{
		OrderID: "111-9",
		Website: "Amazon.com",
		Items: []model.RefundItem{
			{RefundDate: day(5), Title: "Widget", Quantity: 1, Amount: dollars(10), Tax: dollars(0.8)},
		},
	}
	txns := []model.Transaction{
		newTx("debit", day(5), dollars(10.8)),
		newTx("credit", day(6), -dollars(10.8)),
	}
	res, stats := run(t, DefaultConfig(), txns, nil, []*model.Refund{r})

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "credit", res.Matches[0].Transaction.ID)
	assert.True(t, r.Matched)
	assert.Equal(t, 1, stats.Get(model.StatRefundMatch))
}

func TestRefundMatchedPerRefundDay(t *testing.T) {
	r := &model.Refund{
		OrderID: "111-9",
		Items: []model.RefundItem{
			{RefundDate: day(5), Title: "Widget", Quantity: 1, Amount: dollars(10)},
			{RefundDate: day(20), Title: "Gadget", Quantity: 1, Amount: dollars(4)},
		},
	}
	txns := []model.Transaction{
		newTx("r1", day(6), -dollars(10)),
		newTx("r2", day(20), -dollars(4)),
	}
	res, _ := run(t, DefaultConfig(), txns, nil, []*model.Refund{r})

	require.Len(t, res.Matches, 2)
	assert.True(t, r.Matched)
	assert.Len(t, res.Matches[0].Charge.RefundItems, 1)
}

func TestPartialShipments(t *testing.T) {
	o := &model.Order{
		OrderID: "111-5",
		Website: "Amazon.com",
		Shipments: []model.Shipment{
			{ShipDate: day(5), Subtotal: dollars(10), Total: dollars(10)},
			{ShipDate: day(8), Subtotal: dollars(15), Total: dollars(15)},
		},
		Items: []*model.Item{
			{OrderID: "111-5", ShipDate: day(5), Title: "First", Quantity: 1, Subtotal: dollars(10), Total: dollars(10)},
			{OrderID: "111-5", ShipDate: day(8), Title: "Second", Quantity: 1, Subtotal: dollars(15), Total: dollars(15)},
		},
	}
	txns := []model.Transaction{
		newTx("s1", day(6), dollars(10)),
		newTx("s2", day(9), dollars(15)),
	}
	res, stats := run(t, DefaultConfig(), txns, []*model.Order{o}, nil)

	require.Len(t, res.Matches, 2)
	assert.True(t, o.Matched)
	assert.Equal(t, model.ChargeShipment, res.Matches[0].Charge.Kind)
	require.Len(t, res.Matches[0].Charge.Items, 1)
	assert.Equal(t, "First", res.Matches[0].Charge.Items[0].Title)
	assert.Equal(t, 2, stats.Get(model.StatPartialShipmentMatches))
}

func TestPartialShipmentLeavesOrderUnmatched(t *testing.T) {
	o := &model.Order{
		OrderID: "111-5",
		Shipments: []model.Shipment{
			{ShipDate: day(5), Subtotal: dollars(10), Total: dollars(10)},
			{ShipDate: day(8), Subtotal: dollars(15), Total: dollars(15)},
		},
	}
	res, _ := run(t, DefaultConfig(), []model.Transaction{newTx("s1", day(6), dollars(10))}, []*model.Order{o}, nil)

	assert.Len(t, res.Matches, 1)
	assert.False(t, o.Matched)
	assert.Len(t, res.UnmatchedOrders, 1)
}

func TestCombinedSameDayOrders(t *testing.T) {
	a := newOrder("111-1", day(10), dollars(10))
	b := newOrder("111-2", day(10), dollars(5))
	txns := []model.Transaction{newTx("t1", day(11), dollars(15))}

	res, stats := run(t, DefaultConfig(), txns, []*model.Order{a, b}, nil)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, model.ChargeCombined, res.Matches[0].Charge.Kind)
	assert.Equal(t, []string{"111-1", "111-2"}, res.Matches[0].Charge.OrderIDs())
	assert.True(t, a.Matched)
	assert.True(t, b.Matched)
	assert.Equal(t, 1, stats.Get(model.StatCombinedOrderMatches))

	a, b = newOrder("111-1", day(10), dollars(10)), newOrder("111-2", day(10), dollars(5))
	cfg := DefaultConfig()
	cfg.CombineSameDay = false
	res, _ = run(t, cfg, txns, []*model.Order{a, b}, nil)
	assert.Empty(t, res.Matches)
}

func TestAmountTolerance(t *testing.T) {
	build := func() *model.Order {
		o := newOrder("111-1", day(10), dollars(21))
		o.Shipments[0].Subtotal = dollars(20)
		o.Shipments[0].Tax = dollars(1)
		return o
	}
	txns := []model.Transaction{newTx("t1", day(11), dollars(21.3))}

	o := build()
	res, _ := run(t, DefaultConfig(), txns, []*model.Order{o}, nil)
	assert.Empty(t, res.Matches, "no tolerance configured")

	cfg := DefaultConfig()
	cfg.AmountTolerance = dollars(0.5)
	o = build()
	res, stats := run(t, cfg, txns, []*model.Order{o}, nil)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, dollars(0.3), res.Matches[0].Adjustment)
	assert.True(t, o.Matched)
	assert.Equal(t, 1, stats.Get(model.StatAdjustItemizedTax))
	assert.Equal(t, 0, stats.Get(model.StatMiscCharge))
}

func TestExactMatchBeatsToleranceFromOlderOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AmountTolerance = dollars(1)
	cfg.CombineSameDay = false

	older := newOrder("111-1", day(10), dollars(30.5))
	newer := newOrder("111-2", day(11), dollars(30))
	txns := []model.Transaction{newTx("t1", day(12), dollars(30))}

	res, _ := run(t, cfg, txns, []*model.Order{older, newer}, nil)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "111-2", res.Matches[0].Charge.OrderIDs()[0])
	assert.Zero(t, res.Matches[0].Adjustment)
}

func TestPendingTransactionsIgnored(t *testing.T) {
	tx := newTx("t1", day(10), dollars(8))
	tx.Pending = true
	o := newOrder("111-1", day(10), dollars(8))

	res, _ := run(t, DefaultConfig(), []model.Transaction{tx}, []*model.Order{o}, nil)
	assert.Empty(t, res.Matches)
}

func TestUnmatchedPurchases(t *testing.T) {
	o := newOrder("111-1", day(10), dollars(8))
	r := &model.Refund{OrderID: "111-2", Items: []model.RefundItem{{RefundDate: day(3), Amount: dollars(1)}}}

	res, _ := run(t, DefaultConfig(), nil, []*model.Order{o}, []*model.Refund{r})

	unmatched := res.Unmatched()
	require.Len(t, unmatched, 2)
	assert.Equal(t, "111-1", unmatched[0].PurchaseID())
	assert.True(t, unmatched[0].IsDebit())
	assert.Equal(t, "111-2", unmatched[1].PurchaseID())
	assert.False(t, unmatched[1].IsDebit())
}
