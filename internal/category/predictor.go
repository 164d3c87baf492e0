package category

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/Veraticus/order-tagger/internal/itemize"
	"github.com/Veraticus/order-tagger/internal/model"
)

const (
	maxSignatureLen = 60
	// fuzzyThreshold is the largest normalized edit distance accepted when no
	// exact signature is known.
	fuzzyThreshold = 0.15
)

// Predictor learns personal category overrides from transactions this tool
// tagged before and the user recategorized since.
type Predictor struct {
	rules  *Rules
	titles map[string]string
	// seen holds, per override key, the category each source transaction carries.
	seen map[string][]sighting
}

type sighting struct {
	transactionID string
	category      string
}

// verdict is what the sightings of one key say once a transaction is set aside.
type verdict int

const (
	unknown verdict = iota
	agreed
	conflicting
)

// NewPredictor creates a predictor. Items and refunds supply the marketplace
// category of each known title, used to tell the default category apart from
// an override on rows tagged before rule categories were stored.
func NewPredictor(rules *Rules, items []*model.Item, refunds []*model.Refund) *Predictor {
	if rules == nil {
		rules = NewRules(nil)
	}
	p := &Predictor{
		rules:  rules,
		titles: make(map[string]string),
		seen:   make(map[string][]sighting),
	}
	for _, it := range items {
		p.addTitle(it.Title, it.Quantity, it.Category)
	}
	for _, r := range refunds {
		for _, it := range r.Items {
			p.addTitle(it.Title, it.Quantity, it.Category)
		}
	}
	return p
}

func (p *Predictor) addTitle(title string, quantity int, productCategory string) {
	if productCategory == "" {
		return
	}
	for _, text := range []string{itemize.ItemTitle(title, quantity), itemize.ShortTitle(title)} {
		if sig := Signature(text); sig != "" {
			if _, ok := p.titles[sig]; !ok {
				p.titles[sig] = productCategory
			}
		}
	}
}

// Learn scans txns for tool-tagged transactions whose category differs from the
// rule category and records them as overrides. It returns the number of
// unambiguous overrides known.
func (p *Predictor) Learn(txns []model.Transaction, prefixes []string) int {
	sorted := append([]string(nil), prefixes...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	for _, t := range txns {
		if t.Pending {
			continue
		}
		prefix, ok := matchPrefix(t.Description, sorted)
		if !ok {
			continue
		}

		if len(t.Splits) == 0 {
			p.observe(t.ID, prefix, t.Description[len(prefix):], t.Category, t.RuleCategory)
			continue
		}
		for _, s := range t.Splits {
			if s.Description == itemize.ShippingDescription || s.Description == itemize.PromotionDescription {
				continue
			}
			p.observe(t.ID, prefix, s.Description, s.Category, s.RuleCategory)
		}
	}

	n := p.Len()
	slog.Debug("Learned category overrides", "overrides", n, "signatures", len(p.seen))
	return n
}

func (p *Predictor) observe(id, prefix, text, cat, rule string) {
	cat = strings.TrimSpace(cat)
	if rule == "" {
		rule = p.defaultFor(text)
	}
	if cat == "" || strings.EqualFold(cat, rule) {
		return
	}
	if k := key(prefix, text); k != "" {
		p.seen[k] = append(p.seen[k], sighting{transactionID: id, category: cat})
	}
}

func (p *Predictor) defaultFor(text string) string {
	return p.rules.Lookup(p.titles[Signature(text)])
}

// judge folds the sightings of k, ignoring those from transaction skip.
func (p *Predictor) judge(k, skip string) (string, verdict) {
	var found string
	for _, s := range p.seen[k] {
		if skip != "" && s.transactionID == skip {
			continue
		}
		if found != "" && !strings.EqualFold(found, s.category) {
			return "", conflicting
		}
		found = s.category
	}
	if found == "" {
		return "", unknown
	}
	return found, agreed
}

// Predict returns the learned category for text written under prefix to
// transaction id. The transaction's own category never counts as evidence for
// itself, so an override applies to other matches of the pattern. Ambiguous
// signatures yield no prediction.
func (p *Predictor) Predict(id, prefix, text string) (string, bool) {
	k := key(prefix, text)
	if k == "" {
		return "", false
	}
	switch cat, v := p.judge(k, id); v {
	case agreed:
		return cat, true
	case conflicting:
		return "", false
	}
	return p.fuzzy(k, id)
}

func (p *Predictor) fuzzy(k, skip string) (string, bool) {
	pre, sig, _ := strings.Cut(k, "|")
	var found string
	for other := range p.seen {
		otherPre, otherSig, _ := strings.Cut(other, "|")
		if otherPre != pre || !similar(sig, otherSig) {
			continue
		}
		cat, v := p.judge(other, skip)
		switch {
		case v == conflicting:
			return "", false
		case v == unknown:
			continue
		case found != "" && !strings.EqualFold(found, cat):
			return "", false
		}
		found = cat
	}
	return found, found != ""
}

func similar(a, b string) bool {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return false
	}
	return float64(levenshtein.ComputeDistance(a, b))/float64(longest) < fuzzyThreshold
}

// Len returns the number of unambiguous overrides.
func (p *Predictor) Len() int {
	n := 0
	for k := range p.seen {
		if _, v := p.judge(k, ""); v == agreed {
			n++
		}
	}
	return n
}

// Signature normalizes a rendered title: lowercased alphanumeric words without a
// leading quantity marker, capped in length.
func Signature(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) > 1 && isQuantity(words[0]) {
		words = words[1:]
	}
	sig := strings.Join(words, " ")
	if r := []rune(sig); len(r) > maxSignatureLen {
		sig = strings.TrimSpace(string(r[:maxSignatureLen]))
	}
	return sig
}

func isQuantity(w string) bool {
	if len(w) < 2 || w[len(w)-1] != 'x' {
		return false
	}
	for _, r := range w[:len(w)-1] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func key(prefix, text string) string {
	sig := Signature(text)
	if sig == "" {
		return ""
	}
	return Signature(prefix) + "|" + sig
}

func matchPrefix(desc string, prefixes []string) (string, bool) {
	lower := strings.ToLower(desc)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(lower, strings.ToLower(p)) {
			return desc[:len(p)], true
		}
	}
	return "", false
}

// Resolver picks a category for each itemized line: a learned override when the
// predictor has one, otherwise the marketplace rule.
type Resolver struct {
	Rules     *Rules
	Predictor *Predictor
}

// Categorize implements itemize.Categorizer.
func (r *Resolver) Categorize(line itemize.Line) itemize.Choice {
	rule := Shopping
	if r.Rules != nil {
		rule = r.Rules.Lookup(line.ProductCategory)
	}
	if r.Predictor != nil {
		if cat, ok := r.Predictor.Predict(line.TransactionID, line.Prefix, line.Text); ok {
			return itemize.Choice{Category: cat, Rule: rule, Predicted: true}
		}
	}
	return itemize.Choice{Category: rule, Rule: rule}
}
