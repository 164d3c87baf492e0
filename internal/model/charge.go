package model

import "time"

// ChargeKind describes how a Charge was assembled from purchase records.
type ChargeKind string

const (
	// ChargeOrder is a whole (possibly multi-shipment) order charged at once.
	ChargeOrder ChargeKind = "order"
	// ChargeShipment is a single shipment of an order charged on its own.
	ChargeShipment ChargeKind = "shipment"
	// ChargeCombined is several orders that shipped together and were charged as one.
	ChargeCombined ChargeKind = "combined"
	// ChargeRefund is money returned for some or all refunded items of an order.
	ChargeRefund ChargeKind = "refund"
)

// ChargeLine is one product line of a Charge, before any redistribution.
type ChargeLine struct {
	Title    string
	Category string
	Quantity int
	Subtotal Micro
	Tax      Micro
}

// Charge is the unit paired with exactly one ledger transaction.
type Charge struct {
	Date    time.Time
	Refund  *Refund
	Kind    ChargeKind
	Website string
	Orders  []*Order
	Items   []*Item
	// RefundItems holds the refunded lines when Kind is ChargeRefund.
	RefundItems       []RefundItem
	Amount            Micro
	Subtotal          Micro
	Shipping          Micro
	Promotion         Micro
	Tax               Micro
	Misc              Micro
	AdjustItemizedTax bool
}

// NewOrderCharge builds a charge covering every shipment of o.
func NewOrderCharge(o *Order) *Charge {
	c := &Charge{
		Kind:              ChargeOrder,
		Date:              o.ShipDate(),
		Website:           o.Website,
		Orders:            []*Order{o},
		Items:             o.Items,
		AdjustItemizedTax: o.AdjustItemizedTax,
	}
	for _, s := range o.Shipments {
		c.addShipment(s)
	}
	return c
}

// NewShipmentCharge builds a charge for one shipment of o and the items shipped that day.
func NewShipmentCharge(o *Order, s Shipment) *Charge {
	c := &Charge{
		Kind:    ChargeShipment,
		Date:    s.ShipDate,
		Website: o.Website,
		Orders:  []*Order{o},
		Items:   o.ItemsShippedOn(s.ShipDate),
	}
	c.addShipment(s)

	var itemsTotal Micro
	for _, it := range c.Items {
		itemsTotal += it.Subtotal + it.Tax
	}
	if len(c.Items) > 0 && (itemsTotal-(s.Subtotal+s.Tax)).Abs() > MicroPerCent {
		c.AdjustItemizedTax = true
	}
	return c
}

// NewCombinedCharge builds a charge for several orders billed as a single transaction.
func NewCombinedCharge(orders []*Order) *Charge {
	c := &Charge{Kind: ChargeCombined, Orders: orders}
	for _, o := range orders {
		if c.Website == "" {
			c.Website = o.Website
		}
		if d := o.ShipDate(); d.After(c.Date) {
			c.Date = d
		}
		c.Items = append(c.Items, o.Items...)
		c.AdjustItemizedTax = c.AdjustItemizedTax || o.AdjustItemizedTax
		for _, s := range o.Shipments {
			c.addShipment(s)
		}
	}
	return c
}

// NewRefundCharge builds a refund charge for the given refunded items of r.
func NewRefundCharge(r *Refund, items []RefundItem) *Charge {
	c := &Charge{
		Kind:        ChargeRefund,
		Refund:      r,
		Website:     r.Website,
		RefundItems: items,
	}
	for _, it := range items {
		if it.RefundDate.After(c.Date) {
			c.Date = it.RefundDate
		}
		c.Subtotal += it.Amount
		c.Tax += it.Tax
		c.Amount += it.Total()
	}
	return c
}

func (c *Charge) addShipment(s Shipment) {
	c.Amount += s.Total
	c.Subtotal += s.Subtotal
	c.Shipping += s.Shipping
	c.Promotion += s.Promotion
	c.Tax += s.Tax
	c.Misc += s.MiscCharge()
}

// IsDebit reports whether the charge is a purchase rather than a refund.
func (c *Charge) IsDebit() bool { return c.Kind != ChargeRefund }

// OrderIDs returns the ids of every order covered by the charge.
func (c *Charge) OrderIDs() []string {
	if c.Refund != nil {
		return []string{c.Refund.OrderID}
	}
	ids := make([]string, 0, len(c.Orders))
	for _, o := range c.Orders {
		ids = append(ids, o.OrderID)
	}
	return ids
}

// Lines returns the product lines of the charge in input order.
func (c *Charge) Lines() []ChargeLine {
	if c.Kind == ChargeRefund {
		lines := make([]ChargeLine, 0, len(c.RefundItems))
		for _, it := range c.RefundItems {
			lines = append(lines, ChargeLine{
				Title:    it.Title,
				Category: it.Category,
				Quantity: it.Quantity,
				Subtotal: it.Amount,
				Tax:      it.Tax,
			})
		}
		return lines
	}

	lines := make([]ChargeLine, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, ChargeLine{
			Title:    it.Title,
			Category: it.Category,
			Quantity: it.Quantity,
			Subtotal: it.Subtotal,
			Tax:      it.Tax,
		})
	}
	return lines
}

// MarkMatched sets the matched flags of the records covered by the charge.
// Orders charged per shipment are flagged by the caller once every shipment matched.
func (c *Charge) MarkMatched() {
	for _, it := range c.Items {
		it.Matched = true
	}
	if c.Kind == ChargeShipment {
		return
	}
	for _, o := range c.Orders {
		o.Matched = true
	}
	if c.Refund != nil && len(c.RefundItems) == len(c.Refund.Items) {
		c.Refund.Matched = true
	}
}
