// Package itemize turns a matched charge into the description, category and
// optional per-item splits written to its ledger transaction.
package itemize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/matcher"
	"github.com/Veraticus/order-tagger/internal/model"
)

// Line descriptions and categories of the non-product splits.
const (
	ShippingDescription  = "Shipping"
	PromotionDescription = "Promotion(s)"
	ShippingCategory     = "Shipping"
	DefaultCategory      = "Shopping"
)

// Options controls itemization.
type Options struct {
	DescriptionPrefixOverride       string
	DescriptionRefundPrefixOverride string
	// ItemizeAlways splits even single-item charges.
	ItemizeAlways bool
	// NoItemize always writes a single summary line.
	NoItemize bool
	// SummarizeSingleItem writes a single line for one-item charges without misc charges.
	SummarizeSingleItem bool
}

// Line is one rendered description to categorize.
type Line struct {
	// TransactionID is the ledger transaction the line is written to.
	TransactionID string
	Prefix        string
	Text          string
	// ProductCategory is the marketplace category of the underlying items.
	ProductCategory string
}

// Choice is the category picked for a line.
type Choice struct {
	Category string
	// Rule is the category the marketplace rules give without any learned override.
	Rule      string
	Predicted bool
}

// Categorizer names the category of one rendered line.
type Categorizer interface {
	Categorize(line Line) Choice
}

// Proposal is the content the tool would write to a matched transaction.
// Split categories are names; ids are resolved by the planner.
type Proposal struct {
	Prefix       string
	Description  string
	Category     string
	RuleCategory string
	Splits       []model.Split
	Predicted    bool
}

// Itemizer builds proposals. It is not safe for concurrent use.
type Itemizer struct {
	categorizer Categorizer
	stats       *model.Stats
	opts        Options
}

// New creates an itemizer.
func New(opts Options, categorizer Categorizer, stats *model.Stats) *Itemizer {
	return &Itemizer{opts: opts, categorizer: categorizer, stats: stats}
}

// Prefix returns the description prefix for a charge.
func (iz *Itemizer) Prefix(c *model.Charge) string {
	return Prefix(iz.opts, c.Website, c.IsDebit())
}

// Prefix returns the description prefix for a purchase on website.
func Prefix(opts Options, website string, debit bool) string {
	if debit {
		if opts.DescriptionPrefixOverride != "" {
			return opts.DescriptionPrefixOverride
		}
		return website + ": "
	}
	if opts.DescriptionRefundPrefixOverride != "" {
		return opts.DescriptionRefundPrefixOverride
	}
	return website + " refund: "
}

// Prefixes returns every prefix the tool may have written for the given websites.
func Prefixes(opts Options, websites []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p != "" && !seen[strings.ToLower(p)] {
			seen[strings.ToLower(p)] = true
			out = append(out, p)
		}
	}
	for _, w := range websites {
		add(Prefix(opts, w, true))
		add(Prefix(opts, w, false))
	}
	return out
}

// Build returns the proposal for a match. It fails with *common.InvariantViolation
// when the splits would not sum to the transaction amount.
func (iz *Itemizer) Build(mt matcher.Match) (Proposal, error) {
	c := mt.Charge
	lines := c.Lines()
	p := Proposal{Prefix: iz.Prefix(c)}

	single := iz.opts.NoItemize || len(lines) == 0 ||
		(len(lines) == 1 && c.Misc == 0 && iz.opts.SummarizeSingleItem && !iz.opts.ItemizeAlways)
	if single {
		iz.summarize(&p, mt, lines)
	} else {
		iz.itemize(&p, mt, lines)
		if got := model.SplitsTotal(p.Splits); got != mt.Transaction.Amount {
			return Proposal{}, &common.InvariantViolation{
				TransactionID: mt.Transaction.ID,
				Detail:        fmt.Sprintf("splits for %s do not sum to the transaction amount", strings.Join(c.OrderIDs(), ",")),
				Want:          int64(mt.Transaction.Amount),
				Got:           int64(got),
			}
		}
	}

	if p.Predicted {
		iz.stats.Inc(model.StatPersonalCat)
	}
	return p, nil
}

func (iz *Itemizer) summarize(p *Proposal, mt matcher.Match, lines []model.ChargeLine) {
	c := mt.Charge
	var text string
	switch len(lines) {
	case 0:
		text = "Order " + strings.Join(c.OrderIDs(), ", ")
	case 1:
		text = withQuantity(ShortTitle(lines[0].Title), lines[0].Quantity)
	default:
		titles := make([]string, 0, len(lines))
		for _, l := range lines {
			titles = append(titles, l.Title)
		}
		text = Summarize(titles, MaxDescriptionLen)
	}

	room := MaxDescriptionLen - len([]rune(p.Prefix))
	text = Truncate(text, max(room, len(ellipsis)))
	p.Description = p.Prefix + text
	choice := iz.categorize(Line{
		TransactionID:   mt.Transaction.ID,
		Prefix:          p.Prefix,
		Text:            text,
		ProductCategory: dominantCategory(lines),
	})
	p.Category, p.RuleCategory, p.Predicted = choice.Category, choice.Rule, choice.Predicted
}

func (iz *Itemizer) itemize(p *Proposal, mt matcher.Match, lines []model.ChargeLine) {
	c := mt.Charge
	target := mt.Transaction.Amount
	sign := model.Micro(1)
	if target < 0 {
		sign = -1
	}

	base := make([]model.Micro, len(lines))
	var subtotal model.Micro
	for i, l := range lines {
		base[i] = l.Subtotal
		subtotal += l.Subtotal
	}

	shipping, promotion := c.Shipping, c.Promotion
	residual := target.Abs() - (subtotal + shipping - promotion)
	shares := distribute(residual, base)

	titles := make([]string, 0, len(lines))
	for i, l := range lines {
		text := ItemTitle(l.Title, l.Quantity)
		choice := iz.categorize(Line{
			TransactionID:   mt.Transaction.ID,
			Prefix:          p.Prefix,
			Text:            text,
			ProductCategory: l.Category,
		})
		p.Predicted = p.Predicted || choice.Predicted
		p.Splits = append(p.Splits, model.Split{
			Description:  text,
			Category:     choice.Category,
			RuleCategory: choice.Rule,
			Amount:       sign * (base[i] + shares[i]),
		})
		titles = append(titles, l.Title)
	}
	if shipping != 0 {
		p.Splits = append(p.Splits, model.Split{
			Description:  ShippingDescription,
			Category:     ShippingCategory,
			RuleCategory: ShippingCategory,
			Amount:       sign * shipping,
		})
	}
	if promotion != 0 {
		p.Splits = append(p.Splits, model.Split{
			Description:  PromotionDescription,
			Category:     DefaultCategory,
			RuleCategory: DefaultCategory,
			Amount:       -sign * promotion,
		})
	}

	room := MaxDescriptionLen - len([]rune(p.Prefix))
	p.Description = p.Prefix + Summarize(titles, max(room, len(ellipsis)))
	p.Category, p.RuleCategory = p.Splits[0].Category, p.Splits[0].RuleCategory

	if residual != 0 {
		slog.Debug("Redistributed charge remainder across items",
			"transaction_id", mt.Transaction.ID,
			"remainder", residual.String(),
			"tax", c.Tax.String(),
			"misc", c.Misc.String())
	}
}

// distribute splits total across weights proportionally, rounding each share to
// the cent. The last share takes the rounding residual so the shares sum to total.
// Zero total weight splits evenly.
func distribute(total model.Micro, weights []model.Micro) []model.Micro {
	n := len(weights)
	shares := make([]model.Micro, n)
	if n == 0 || total == 0 {
		return shares
	}

	var sum model.Micro
	for _, w := range weights {
		sum += w
	}

	var assigned model.Micro
	for i := 0; i < n-1; i++ {
		var share decimal.Decimal
		if sum == 0 {
			share = decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(n)))
		} else {
			share = decimal.NewFromInt(int64(total)).
				Mul(decimal.NewFromInt(int64(weights[i]))).
				Div(decimal.NewFromInt(int64(sum)))
		}
		shares[i] = model.Micro(share.Round(0).IntPart()).RoundToCent()
		assigned += shares[i]
	}
	shares[n-1] = total - assigned
	return shares
}

func (iz *Itemizer) categorize(line Line) Choice {
	var choice Choice
	if iz.categorizer != nil {
		choice = iz.categorizer.Categorize(line)
	}
	if choice.Rule == "" {
		choice.Rule = DefaultCategory
	}
	if choice.Category == "" {
		return Choice{Category: choice.Rule, Rule: choice.Rule}
	}
	return choice
}

// dominantCategory returns the most common product category. On a tie the
// category that reached the count first wins.
func dominantCategory(lines []model.ChargeLine) string {
	counts := make(map[string]int)
	best, bestN := "", 0
	for _, l := range lines {
		counts[l.Category]++
		if counts[l.Category] > bestN {
			best, bestN = l.Category, counts[l.Category]
		}
	}
	return best
}
