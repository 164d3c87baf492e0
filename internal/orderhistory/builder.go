package orderhistory

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/model"
)

// DefaultWebsite is used when a report row carries no website.
const DefaultWebsite = "Amazon.com"

// Result holds normalized purchase records.
type Result struct {
	// Orders are shipped, card-charged orders, oldest ship date first.
	Orders []*model.Order
	// Items holds every parsed item, including those whose order was skipped.
	Items []*model.Item
	// Refunds are ordered by refund date, oldest first.
	Refunds   []*model.Refund
	Unshipped []*model.Order
	GiftCard  []*model.Order
	Errors    []error
}

type orderAccumulator struct {
	order     *model.Order
	unshipped int
}

// Builder accumulates raw report rows. Orders are assembled from their shipment
// rows and handed out by Build; they are not modified afterwards except for the
// matched flags.
type Builder struct {
	orders    map[string]*orderAccumulator
	refunds   map[string]*model.Refund
	orderIDs  []string
	refundIDs []string
	items     []*model.Item
	errs      []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		orders:  make(map[string]*orderAccumulator),
		refunds: make(map[string]*model.Refund),
	}
}

// Normalize builds orders, items and refunds from raw report rows. Malformed rows
// are skipped and counted under model.StatMalformedRows.
func Normalize(orderRows, itemRows, refundRows []RawRow, stats *model.Stats) Result {
	b := NewBuilder()
	for _, row := range orderRows {
		_ = b.AddOrderRow(row)
	}
	for _, row := range itemRows {
		_ = b.AddItemRow(row)
	}
	for _, row := range refundRows {
		_ = b.AddRefundRow(row)
	}
	return b.Build(stats)
}

// AddOrderRow adds one "orders and shipments" row.
func (b *Builder) AddOrderRow(row RawRow) error {
	id, err := row.required(ColOrderID)
	if err != nil {
		return b.malformed(ReportOrders, row, err)
	}
	orderDate, err := row.date(ColOrderDate, true)
	if err != nil {
		return b.malformed(ReportOrders, row, err)
	}
	total, err := row.money(ColTotalCharged, true)
	if err != nil {
		return b.malformed(ReportOrders, row, err)
	}
	shipDate, err := row.date(ColShipmentDate, false)
	if err != nil {
		return b.malformed(ReportOrders, row, err)
	}

	var amounts [4]model.Micro
	for i, col := range []string{ColSubtotal, ColShippingCharge, ColTotalPromotions, ColTaxCharged} {
		if amounts[i], err = row.money(col, false); err != nil {
			return b.malformed(ReportOrders, row, err)
		}
	}

	acc, ok := b.orders[id]
	if !ok {
		website, _ := row.Get(ColWebsite)
		payment, _ := row.Get(ColPaymentInstrument)
		acc = &orderAccumulator{order: &model.Order{
			OrderID:           id,
			OrderDate:         orderDate,
			Website:           website,
			PaymentInstrument: payment,
		}}
		b.orders[id] = acc
		b.orderIDs = append(b.orderIDs, id)
	}

	if shipDate.IsZero() {
		acc.unshipped++
		return nil
	}

	tracking, _ := row.Get(ColTracking)
	acc.order.Shipments = append(acc.order.Shipments, model.Shipment{
		ShipDate:  shipDate,
		Tracking:  tracking,
		Subtotal:  amounts[0],
		Shipping:  amounts[1],
		Promotion: amounts[2].Abs(),
		Tax:       amounts[3],
		Total:     total,
	})
	return nil
}

// AddItemRow adds one "items" row.
func (b *Builder) AddItemRow(row RawRow) error {
	id, err := row.required(ColOrderID)
	if err != nil {
		return b.malformed(ReportItems, row, err)
	}
	title, err := row.required(ColTitle)
	if err != nil {
		return b.malformed(ReportItems, row, err)
	}
	total, err := row.money(ColItemTotal, true)
	if err != nil {
		return b.malformed(ReportItems, row, err)
	}
	quantity, err := row.quantity()
	if err != nil {
		return b.malformed(ReportItems, row, err)
	}
	unitPrice, err := row.money(ColPurchasePrice, false)
	if err != nil {
		return b.malformed(ReportItems, row, err)
	}
	subtotal, err := row.money(ColItemSubtotal, false)
	if err != nil {
		return b.malformed(ReportItems, row, err)
	}
	tax, err := row.money(ColItemSubtotalTax, false)
	if err != nil {
		return b.malformed(ReportItems, row, err)
	}
	shipDate, err := row.date(ColShipmentDate, false)
	if err != nil {
		return b.malformed(ReportItems, row, err)
	}
	orderDate, err := row.date(ColOrderDate, false)
	if err != nil {
		return b.malformed(ReportItems, row, err)
	}

	if subtotal == 0 {
		subtotal = total - tax
	}
	category, _ := row.Get(ColCategory)
	asin, _ := row.Get(ColASIN)
	website, _ := row.Get(ColWebsite)

	b.items = append(b.items, &model.Item{
		OrderID:   id,
		OrderDate: orderDate,
		ShipDate:  shipDate,
		Title:     title,
		Category:  category,
		ASIN:      asin,
		Website:   website,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     total,
	})
	return nil
}

// AddRefundRow adds one "refunds" row.
func (b *Builder) AddRefundRow(row RawRow) error {
	id, err := row.required(ColOrderID)
	if err != nil {
		return b.malformed(ReportRefunds, row, err)
	}
	refundDate, err := row.date(ColRefundDate, true)
	if err != nil {
		return b.malformed(ReportRefunds, row, err)
	}
	amount, err := row.money(ColRefundAmount, true)
	if err != nil {
		return b.malformed(ReportRefunds, row, err)
	}
	tax, err := row.money(ColRefundTaxAmount, false)
	if err != nil {
		return b.malformed(ReportRefunds, row, err)
	}
	quantity, err := row.quantity()
	if err != nil {
		return b.malformed(ReportRefunds, row, err)
	}
	orderDate, err := row.date(ColOrderDate, false)
	if err != nil {
		return b.malformed(ReportRefunds, row, err)
	}

	r, ok := b.refunds[id]
	if !ok {
		website, _ := row.Get(ColWebsite)
		r = &model.Refund{OrderID: id, OrderDate: orderDate, Website: website}
		b.refunds[id] = r
		b.refundIDs = append(b.refundIDs, id)
	}

	title, _ := row.Get(ColTitle)
	category, _ := row.Get(ColCategory)
	r.Items = append(r.Items, model.RefundItem{
		RefundDate: refundDate,
		Title:      title,
		Category:   category,
		Quantity:   quantity,
		Amount:     amount.Abs(),
		Tax:        tax.Abs(),
	})
	return nil
}

// Build finishes normalization. Orders without any shipped row and orders fully
// paid by gift card are set aside and counted.
func (b *Builder) Build(stats *model.Stats) Result {
	res := Result{Items: b.items, Errors: b.errs}
	if stats != nil && len(b.errs) > 0 {
		stats.Add(model.StatMalformedRows, len(b.errs))
	}

	itemsByOrder := make(map[string][]*model.Item)
	for _, it := range b.items {
		itemsByOrder[it.OrderID] = append(itemsByOrder[it.OrderID], it)
	}

	for _, id := range b.orderIDs {
		acc := b.orders[id]
		o := acc.order
		if o.Website == "" {
			o.Website = DefaultWebsite
		}
		o.Items = itemsByOrder[id]
		o.ItemsMatched = len(o.Items) > 0
		sort.SliceStable(o.Shipments, func(i, j int) bool {
			return o.Shipments[i].ShipDate.Before(o.Shipments[j].ShipDate)
		})

		switch {
		case len(o.Shipments) == 0:
			res.Unshipped = append(res.Unshipped, o)
			inc(stats, model.StatSkippedUnshipped)
			continue
		case o.PaidByGiftCardOnly() || o.TotalCharged() == 0:
			res.GiftCard = append(res.GiftCard, o)
			inc(stats, model.StatSkippedGiftCard)
			continue
		}

		if o.ItemsMatched {
			var itemsTotal model.Micro
			for _, it := range o.Items {
				itemsTotal += it.Subtotal + it.Tax
			}
			if (itemsTotal - (o.Subtotal() + o.Tax())).Abs() > model.MicroPerCent {
				o.AdjustItemizedTax = true
			}
		}
		if acc.unshipped > 0 {
			slog.Debug("Order has unshipped rows", "order_id", id, "unshipped_rows", acc.unshipped)
		}
		res.Orders = append(res.Orders, o)
	}

	sort.SliceStable(res.Orders, func(i, j int) bool {
		x, y := res.Orders[i], res.Orders[j]
		if !x.ShipDate().Equal(y.ShipDate()) {
			return x.ShipDate().Before(y.ShipDate())
		}
		return x.OrderID < y.OrderID
	})

	for _, id := range b.refundIDs {
		r := b.refunds[id]
		if r.Website == "" {
			r.Website = DefaultWebsite
		}
		res.Refunds = append(res.Refunds, r)
	}
	sort.SliceStable(res.Refunds, func(i, j int) bool {
		x, y := res.Refunds[i], res.Refunds[j]
		if !x.RefundDate().Equal(y.RefundDate()) {
			return x.RefundDate().Before(y.RefundDate())
		}
		return x.OrderID < y.OrderID
	})

	return res
}

func (b *Builder) malformed(report string, row RawRow, err error) error {
	merr := &common.MalformedRecordError{Report: report, Line: row.Line, Err: err}
	var ferr *fieldError
	if errors.As(err, &ferr) {
		merr.Column = ferr.column
		merr.Err = ferr.err
	}
	slog.Warn("Skipping malformed row", "report", report, "line", row.Line, "error", merr)
	b.errs = append(b.errs, merr)
	return merr
}

func inc(stats *model.Stats, name string) {
	if stats != nil {
		stats.Inc(name)
	}
}
