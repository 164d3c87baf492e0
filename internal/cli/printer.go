package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Veraticus/order-tagger/internal/model"
	"github.com/Veraticus/order-tagger/internal/tagger"
)

// Printer renders run results as text.
type Printer struct {
	writer io.Writer
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{writer: w}
}

// PrintDryRun lists the updates a live run would apply.
func (p *Printer) PrintDryRun(updates []model.Update) error {
	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Dry run: %d proposed updates", len(updates))))
	b.WriteString("\n")

	for _, u := range updates {
		tx := u.Original
		action := "tag"
		if u.Retag {
			action = "retag"
		}
		fmt.Fprintf(&b, "%s  %10s  %-5s  %s\n",
			tx.Date.Format("2006-01-02"), tx.Amount, action, SubtleStyle.Render(u.TransactionID))
		if tx.Description != u.Description {
			fmt.Fprintf(&b, "    - %s (%s)\n", tx.Description, tx.Category)
		}
		fmt.Fprintf(&b, "    + %s (%s)\n", u.Description, u.Category)
		for _, s := range u.Splits {
			fmt.Fprintf(&b, "        %10s  %s (%s)\n", s.Amount, s.Description, s.Category)
		}
	}
	if len(updates) == 0 {
		b.WriteString(FormatInfo("Nothing to update.") + "\n")
	}

	_, err := io.WriteString(p.writer, b.String())
	return err
}

// PrintUnmatched lists purchases with no ledger transaction and their invoice links.
func (p *Printer) PrintUnmatched(unmatched []tagger.UnmatchedPurchase) error {
	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Unmatched purchases: %d", len(unmatched))))
	b.WriteString("\n")

	for _, u := range unmatched {
		date := "never shipped"
		if !u.Date.IsZero() {
			date = u.Date.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "%-10s  %-6s  %-19s  %10s\n", date, u.Kind, u.ID, u.Amount)
		for _, title := range u.Titles {
			fmt.Fprintf(&b, "    %s\n", title)
		}
		fmt.Fprintf(&b, "    %s %s\n", LinkIcon, u.InvoiceURL)
	}

	_, err := io.WriteString(p.writer, b.String())
	return err
}

// PrintHistory summarizes the purchase history.
func (p *Printer) PrintHistory(h tagger.History) error {
	var b strings.Builder
	b.WriteString(FormatTitle("Purchase history"))
	b.WriteString("\n")

	if h.Orders == 0 {
		b.WriteString(FormatInfo("No orders.") + "\n")
	} else {
		fmt.Fprintf(&b, "Orders:        %d (%d matched)\n", h.Orders, h.OrdersMatched)
		fmt.Fprintf(&b, "Items:         %d (%d matched)\n", h.Items, h.ItemsMatched)
		fmt.Fprintf(&b, "Refunds:       %d\n", h.Refunds)
		fmt.Fprintf(&b, "Date range:    %s to %s\n", h.First.Format("2006-01-02"), h.Last.Format("2006-01-02"))
		fmt.Fprintf(&b, "Total spend:   %s\n", h.TotalSpend)
		fmt.Fprintf(&b, "Average order: %s\n", h.AverageOrder)
	}

	_, err := io.WriteString(p.writer, b.String())
	return err
}

// PrintStats lists the run counters in name order, skipping zeros.
func (p *Printer) PrintStats(stats map[string]int) error {
	names := make([]string, 0, len(stats))
	width := 0
	for name, n := range stats {
		if n == 0 {
			continue
		}
		names = append(names, name)
		width = max(width, len(name))
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(TitleStyle.Render(ChartIcon + " Stats"))
	b.WriteString("\n")
	for _, name := range names {
		fmt.Fprintf(&b, "%-*s  %d\n", width, name, stats[name])
	}

	_, err := io.WriteString(p.writer, b.String())
	return err
}

// PrintReport prints the history, the proposed updates of a dry run, the
// counters and optionally the unmatched purchases.
func (p *Printer) PrintReport(r tagger.Report, showUnmatched bool) error {
	if err := p.PrintHistory(r.History); err != nil {
		return err
	}
	if r.DryRun {
		if err := p.PrintDryRun(r.Updates); err != nil {
			return err
		}
	}
	if showUnmatched {
		if err := p.PrintUnmatched(r.Unmatched); err != nil {
			return err
		}
	}
	return p.PrintStats(r.Stats)
}
