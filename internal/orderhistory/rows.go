// Package orderhistory reads purchase-history reports and normalizes them into
// orders, items and refunds.
package orderhistory

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/order-tagger/internal/model"
)

// Report names used in errors and logs.
const (
	ReportOrders  = "orders"
	ReportItems   = "items"
	ReportRefunds = "refunds"
)

// Column names of the purchase-history export.
const (
	ColOrderID           = "Order ID"
	ColOrderDate         = "Order Date"
	ColShipmentDate      = "Shipment Date"
	ColPaymentInstrument = "Payment Instrument Type"
	ColWebsite           = "Website"
	ColTracking          = "Carrier Name & Tracking Number"
	ColSubtotal          = "Subtotal"
	ColShippingCharge    = "Shipping Charge"
	ColTotalPromotions   = "Total Promotions"
	ColTaxCharged        = "Tax Charged"
	ColTotalCharged      = "Total Charged"
	ColTitle             = "Title"
	ColCategory          = "Category"
	ColASIN              = "ASIN/ISBN"
	ColQuantity          = "Quantity"
	ColPurchasePrice     = "Purchase Price Per Unit"
	ColItemSubtotal      = "Item Subtotal"
	ColItemSubtotalTax   = "Item Subtotal Tax"
	ColItemTotal         = "Item Total"
	ColRefundDate        = "Refund Date"
	ColRefundAmount      = "Refund Amount"
	ColRefundTaxAmount   = "Refund Tax Amount"
)

var dateLayouts = []string{"01/02/06", "01/02/2006", "2006-01-02", "2006-01-02T15:04:05Z07:00"}

// RawRow is one report row keyed by column name. Line is the 1-based source line.
type RawRow struct {
	Fields map[string]string
	Line   int
}

// NewRawRow builds a row from a field map.
func NewRawRow(line int, fields map[string]string) RawRow {
	return RawRow{Line: line, Fields: fields}
}

// Get returns the trimmed value of a column and whether the column is present.
func (r RawRow) Get(col string) (string, bool) {
	v, ok := r.Fields[col]
	return strings.TrimSpace(v), ok
}

// fieldError records which column failed.
type fieldError struct {
	err    error
	column string
}

func (e *fieldError) Error() string { return fmt.Sprintf("%s: %v", e.column, e.err) }

func (r RawRow) required(col string) (string, error) {
	v, ok := r.Get(col)
	if !ok || v == "" {
		return "", &fieldError{column: col, err: fmt.Errorf("required column missing")}
	}
	return v, nil
}

func (r RawRow) money(col string, required bool) (model.Micro, error) {
	v, ok := r.Get(col)
	if !ok || v == "" {
		if required {
			return 0, &fieldError{column: col, err: fmt.Errorf("required column missing")}
		}
		return 0, nil
	}
	m, err := model.ParseMicro(v)
	if err != nil {
		return 0, &fieldError{column: col, err: err}
	}
	return m, nil
}

func (r RawRow) date(col string, required bool) (time.Time, error) {
	v, ok := r.Get(col)
	if !ok || v == "" || strings.EqualFold(v, "not available") {
		if required {
			return time.Time{}, &fieldError{column: col, err: fmt.Errorf("required column missing")}
		}
		return time.Time{}, nil
	}
	t, err := ParseDate(v)
	if err != nil {
		return time.Time{}, &fieldError{column: col, err: err}
	}
	return t, nil
}

func (r RawRow) quantity() (int, error) {
	v, ok := r.Get(ColQuantity)
	if !ok || v == "" {
		return 1, nil
	}
	q, err := strconv.Atoi(v)
	if err != nil || q < 0 {
		return 0, &fieldError{column: ColQuantity, err: fmt.Errorf("invalid quantity %q", v)}
	}
	if q == 0 {
		q = 1
	}
	return q, nil
}

// ParseDate parses the date formats used by the purchase-history export.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
