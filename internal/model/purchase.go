package model

import (
	"sort"
	"strings"
	"time"
)

// GiftCardInstrument is the payment instrument label used for gift card balances.
const GiftCardInstrument = "Gift Certificate/Card"

// Purchase is an Order or a Refund: the two reconciled e-commerce record kinds.
type Purchase interface {
	PurchaseID() string
	Site() string
	IsDebit() bool
	// TransactDate is the date the ledger charge is anchored to. Zero means never shipped.
	TransactDate() time.Time
	// TransactAmount is the magnitude expected on the ledger.
	TransactAmount() Micro
	Titles() []string
}

// Shipment is one charged shipment of an order.
type Shipment struct {
	ShipDate  time.Time
	Tracking  string
	Subtotal  Micro
	Shipping  Micro
	Promotion Micro
	Tax       Micro
	Total     Micro
}

// Item is one product line within an order.
type Item struct {
	ShipDate  time.Time
	OrderDate time.Time
	OrderID   string
	Title     string
	Category  string
	ASIN      string
	Website   string
	Quantity  int
	UnitPrice Micro
	Subtotal  Micro
	Tax       Micro
	Total     Micro
	Matched   bool
}

// Order is one logical purchase, possibly merged from several shipment rows.
type Order struct {
	OrderDate         time.Time
	OrderID           string
	Website           string
	PaymentInstrument string
	Shipments         []Shipment
	Items             []*Item
	// AdjustItemizedTax is set when item totals do not reconcile with the order totals.
	AdjustItemizedTax bool
	ItemsMatched      bool
	Matched           bool
}

// PurchaseID implements Purchase.
func (o *Order) PurchaseID() string { return o.OrderID }

// Site implements Purchase.
func (o *Order) Site() string { return o.Website }

// IsDebit implements Purchase.
func (o *Order) IsDebit() bool { return true }

// TransactDate returns the latest shipment date.
func (o *Order) TransactDate() time.Time { return o.ShipDate() }

// TransactAmount implements Purchase.
func (o *Order) TransactAmount() Micro { return o.TotalCharged() }

// Titles returns the titles of the order's items.
func (o *Order) Titles() []string {
	titles := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		titles = append(titles, it.Title)
	}
	return titles
}

// ShipDate returns the latest non-zero shipment date.
func (o *Order) ShipDate() time.Time {
	var latest time.Time
	for _, s := range o.Shipments {
		if s.ShipDate.After(latest) {
			latest = s.ShipDate
		}
	}
	return latest
}

// TotalCharged is the sum of all shipment totals.
func (o *Order) TotalCharged() Micro {
	var total Micro
	for _, s := range o.Shipments {
		total += s.Total
	}
	return total
}

// Subtotal is the pre-tax item subtotal across shipments.
func (o *Order) Subtotal() Micro {
	var total Micro
	for _, s := range o.Shipments {
		total += s.Subtotal
	}
	return total
}

// Tax is the tax charged across shipments.
func (o *Order) Tax() Micro {
	var total Micro
	for _, s := range o.Shipments {
		total += s.Tax
	}
	return total
}

// MiscCharges returns per-shipment charges not explained by subtotal, shipping, tax
// and promotions (gift wrap and the like), summed across shipments.
func (o *Order) MiscCharges() Micro {
	var total Micro
	for _, s := range o.Shipments {
		total += s.MiscCharge()
	}
	return total
}

// PaidByGiftCardOnly reports whether every payment instrument is a gift card balance.
func (o *Order) PaidByGiftCardOnly() bool {
	if o.PaymentInstrument == "" {
		return false
	}
	for _, part := range splitInstruments(o.PaymentInstrument) {
		if !strings.EqualFold(part, GiftCardInstrument) {
			return false
		}
	}
	return true
}

// ItemsShippedOn returns the items shipped on the same day as date.
func (o *Order) ItemsShippedOn(date time.Time) []*Item {
	var items []*Item
	for _, it := range o.Items {
		if SameDay(it.ShipDate, date) {
			items = append(items, it)
		}
	}
	return items
}

// MiscCharge returns the unexplained remainder of the shipment total, if positive
// beyond a cent of rounding.
func (s Shipment) MiscCharge() Micro {
	misc := s.Total - (s.Subtotal + s.Shipping + s.Tax - s.Promotion)
	if misc <= MicroPerCent {
		return 0
	}
	return misc
}

func splitInstruments(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	var parts []string
	for _, f := range fields {
		for _, p := range strings.Split(f, " and ") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}
	return parts
}

// RefundItem is one refunded product line.
type RefundItem struct {
	RefundDate time.Time
	Title      string
	Category   string
	Quantity   int
	Amount     Micro
	Tax        Micro
}

// Total is the refunded amount including tax.
func (ri RefundItem) Total() Micro { return ri.Amount + ri.Tax }

// Refund mirrors Order for money returned to the buyer.
type Refund struct {
	OrderDate time.Time
	OrderID   string
	Website   string
	Items     []RefundItem
	Matched   bool
}

// PurchaseID implements Purchase.
func (r *Refund) PurchaseID() string { return r.OrderID }

// Site implements Purchase.
func (r *Refund) Site() string { return r.Website }

// IsDebit implements Purchase.
func (r *Refund) IsDebit() bool { return false }

// TransactDate returns the latest refund date.
func (r *Refund) TransactDate() time.Time { return r.RefundDate() }

// TransactAmount implements Purchase.
func (r *Refund) TransactAmount() Micro { return r.TotalRefundAmount() }

// Titles returns the refunded item titles.
func (r *Refund) Titles() []string {
	titles := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		titles = append(titles, it.Title)
	}
	return titles
}

// RefundDate returns the latest refund date of the refunded items.
func (r *Refund) RefundDate() time.Time {
	var latest time.Time
	for _, it := range r.Items {
		if it.RefundDate.After(latest) {
			latest = it.RefundDate
		}
	}
	return latest
}

// TotalRefundAmount is the sum of refunded amounts including tax.
func (r *Refund) TotalRefundAmount() Micro {
	var total Micro
	for _, it := range r.Items {
		total += it.Total()
	}
	return total
}

// RefundDates returns the distinct refund days in ascending order.
func (r *Refund) RefundDates() []time.Time {
	var dates []time.Time
	for _, it := range r.Items {
		seen := false
		for _, d := range dates {
			if SameDay(d, it.RefundDate) {
				seen = true
				break
			}
		}
		if !seen {
			dates = append(dates, it.RefundDate)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
