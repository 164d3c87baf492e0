package tagger

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/order-tagger/internal/model"
)

// UnmatchedPurchase is one order or refund with no ledger transaction.
type UnmatchedPurchase struct {
	Date       time.Time
	Kind       string
	ID         string
	InvoiceURL string
	Titles     []string
	Amount     model.Micro
}

// History summarizes the purchase history a run reconciled.
type History struct {
	First         time.Time
	Last          time.Time
	Orders        int
	OrdersMatched int
	Items         int
	ItemsMatched  int
	Refunds       int
	TotalSpend    model.Micro
	AverageOrder  model.Micro
}

// Report is the rendered outcome of one run, shared by every output sink.
type Report struct {
	Stats     map[string]int
	Updates   []model.Update
	Unmatched []UnmatchedPurchase
	History   History
	DryRun    bool
}

// NewReport builds a report from res.
func NewReport(res *Result, dryRun bool) Report {
	r := Report{
		Stats:   res.Stats.Snapshot(),
		Updates: res.Updates,
		History: summarizeHistory(res),
		DryRun:  dryRun,
	}
	for _, p := range res.Unmatched {
		kind := "order"
		if !p.IsDebit() {
			kind = "refund"
		}
		r.Unmatched = append(r.Unmatched, UnmatchedPurchase{
			Date:       p.TransactDate(),
			Kind:       kind,
			ID:         p.PurchaseID(),
			InvoiceURL: InvoiceURL(p.Site(), p.PurchaseID()),
			Titles:     p.Titles(),
			Amount:     p.TransactAmount(),
		})
	}
	sort.SliceStable(r.Unmatched, func(i, j int) bool {
		return r.Unmatched[i].Date.Before(r.Unmatched[j].Date)
	})
	return r
}

func summarizeHistory(res *Result) History {
	h := History{Orders: len(res.Orders), Items: len(res.Items), Refunds: len(res.Refunds)}
	for _, o := range res.Orders {
		if o.Matched {
			h.OrdersMatched++
		}
		h.TotalSpend += o.TotalCharged()
		if h.First.IsZero() || o.OrderDate.Before(h.First) {
			h.First = o.OrderDate
		}
		if o.OrderDate.After(h.Last) {
			h.Last = o.OrderDate
		}
	}
	for _, it := range res.Items {
		if it.Matched {
			h.ItemsMatched++
		}
	}
	if h.Orders > 0 {
		h.AverageOrder = (h.TotalSpend / model.Micro(h.Orders)).RoundToCent()
	}
	return h
}

// InvoiceURL returns the printable invoice page of an order on site.
func InvoiceURL(site, orderID string) string {
	host := strings.ToLower(strings.TrimSpace(site))
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "smile.")
	if host == "" || !strings.Contains(host, ".") {
		host = "amazon.com"
	}
	return fmt.Sprintf("https://www.%s/gp/css/summary/print.html?orderID=%s", host, url.QueryEscape(orderID))
}
