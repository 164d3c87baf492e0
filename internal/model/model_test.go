package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

func TestOrderAggregates(t *testing.T) {
	o := &Order{
		OrderID: "1",
		Shipments: []Shipment{
			{ShipDate: day(3), Subtotal: 10 * MicroPerUnit, Tax: MicroPerUnit, Total: 11 * MicroPerUnit},
			{ShipDate: day(7), Subtotal: 5 * MicroPerUnit, Shipping: 2 * MicroPerUnit, Promotion: MicroPerUnit, Total: 8 * MicroPerUnit},
		},
		Items: []*Item{
			{Title: "A", ShipDate: day(3)},
			{Title: "B", ShipDate: day(7)},
		},
	}

	assert.Equal(t, day(7), o.ShipDate())
	assert.Equal(t, day(7), o.TransactDate())
	assert.Equal(t, 19*MicroPerUnit, o.TotalCharged())
	assert.Equal(t, 15*MicroPerUnit, o.Subtotal())
	assert.Equal(t, MicroPerUnit, o.Tax())
	assert.Equal(t, 2*MicroPerUnit, o.MiscCharges())
	assert.Equal(t, []string{"A", "B"}, o.Titles())
	require.Len(t, o.ItemsShippedOn(day(3)), 1)
	assert.Equal(t, "A", o.ItemsShippedOn(day(3))[0].Title)
	assert.True(t, o.IsDebit())
}

func TestMiscChargeIgnoresRounding(t *testing.T) {
	s := Shipment{Subtotal: 10 * MicroPerUnit, Total: 10*MicroPerUnit + MicroPerCent}
	assert.Zero(t, s.MiscCharge())
}

func TestPaidByGiftCardOnly(t *testing.T) {
	tests := []struct {
		instrument string
		want       bool
	}{
		{instrument: "Gift Certificate/Card", want: true},
		{instrument: "Gift Certificate/Card and Gift Certificate/Card", want: true},
		{instrument: "Visa - 1234 and Gift Certificate/Card", want: false},
		{instrument: "Visa - 1234", want: false},
		{instrument: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.instrument, func(t *testing.T) {
			o := &Order{PaymentInstrument: tt.instrument}
			assert.Equal(t, tt.want, o.PaidByGiftCardOnly())
		})
	}
}

func TestRefundAggregates(t *testing.T) {
	r := &Refund{Items: []RefundItem{
		{RefundDate: day(9), Title: "B", Amount: 4 * MicroPerUnit},
		{RefundDate: day(2), Title: "A", Amount: 10 * MicroPerUnit, Tax: MicroPerUnit},
		{RefundDate: day(9), Title: "C", Amount: MicroPerUnit},
	}}

	assert.Equal(t, day(9), r.RefundDate())
	assert.Equal(t, 16*MicroPerUnit, r.TotalRefundAmount())
	assert.Equal(t, []time.Time{day(2), day(9)}, r.RefundDates())
	assert.False(t, r.IsDebit())
}

func TestChargeMarkMatched(t *testing.T) {
	o := &Order{
		OrderID:   "1",
		Shipments: []Shipment{{ShipDate: day(3), Total: MicroPerUnit}, {ShipDate: day(4), Total: MicroPerUnit}},
		Items:     []*Item{{Title: "A", ShipDate: day(3)}, {Title: "B", ShipDate: day(4)}},
	}

	sc := NewShipmentCharge(o, o.Shipments[0])
	sc.MarkMatched()
	assert.True(t, o.Items[0].Matched)
	assert.False(t, o.Items[1].Matched)
	assert.False(t, o.Matched, "shipment charges leave the order flag to the caller")

	oc := NewOrderCharge(o)
	assert.Equal(t, 2*MicroPerUnit, oc.Amount)
	assert.Equal(t, day(4), oc.Date)
	oc.MarkMatched()
	assert.True(t, o.Matched)
}

func TestCombinedCharge(t *testing.T) {
	a := &Order{OrderID: "a", Website: "Amazon.com", Shipments: []Shipment{{ShipDate: day(3), Total: MicroPerUnit, Shipping: MicroPerUnit}}}
	b := &Order{OrderID: "b", Shipments: []Shipment{{ShipDate: day(3), Total: 2 * MicroPerUnit, Subtotal: 2 * MicroPerUnit}}}

	c := NewCombinedCharge([]*Order{a, b})
	assert.Equal(t, 3*MicroPerUnit, c.Amount)
	assert.Equal(t, MicroPerUnit, c.Shipping)
	assert.Equal(t, "Amazon.com", c.Website)
	assert.Equal(t, []string{"a", "b"}, c.OrderIDs())
}

func TestUpdateApplyRecordsFingerprint(t *testing.T) {
	tx := Transaction{ID: "t", Description: "AMZN Mktp", Amount: 3 * MicroPerUnit}
	u := Update{
		TransactionID: "t",
		Description:   "Amazon.com: A, B",
		Category:      "Shopping",
		CategoryID:    1,
		Splits: []Split{
			{Description: "A", Amount: MicroPerUnit, CategoryID: 1},
			{Description: "B", Amount: 2 * MicroPerUnit, CategoryID: 2},
		},
	}

	applied := u.Apply(tx)
	assert.Equal(t, "Amazon.com: A, B", applied.Description)
	assert.Equal(t, u.Fingerprint(), applied.AppliedFingerprint)
	assert.Equal(t, applied.AppliedFingerprint, applied.ContentFingerprint())
	assert.True(t, u.Itemized())
	assert.Equal(t, tx.Amount, SplitsTotal(applied.Splits))

	applied.Splits[0].CategoryID = 9
	assert.NotEqual(t, applied.AppliedFingerprint, applied.ContentFingerprint())
	assert.Equal(t, 1, u.Splits[0].CategoryID, "apply copies splits")
}

func TestHasPrefix(t *testing.T) {
	tx := Transaction{Description: "amazon.com refund: Widget"}
	assert.True(t, tx.HasPrefix([]string{"Amazon.com: ", "Amazon.com refund: "}))
	assert.False(t, tx.HasPrefix([]string{"Amazon.com: ", ""}))
}

func TestStats(t *testing.T) {
	s := NewStats()
	assert.Contains(t, s.Names(), StatNewTag)
	assert.Zero(t, s.Get(StatNewTag))

	s.Inc(StatNewTag)
	s.Add(StatRetag, 2)
	other := NewStats()
	other.Inc(StatNewTag)
	other.Inc(StatPending)
	s.Merge(other)

	assert.Equal(t, 2, s.Get(StatNewTag))
	assert.Equal(t, 2, s.Get(StatRetag))
	assert.Equal(t, 1, s.Snapshot()[StatPending])

	var nilStats *Stats
	nilStats.Inc(StatNewTag)
	assert.Zero(t, nilStats.Get(StatNewTag))
}

func TestCategoryIndex(t *testing.T) {
	idx := NewCategoryIndex([]Category{{Name: "Books", ID: 2}, {Name: "Shopping", ID: 1}})
	assert.Equal(t, 2, idx["Books"])
	name, ok := idx.NameOf(1)
	assert.True(t, ok)
	assert.Equal(t, "Shopping", name)
	_, ok = idx.NameOf(7)
	assert.False(t, ok)
}
