package tagger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/order-tagger/internal/category"
	"github.com/Veraticus/order-tagger/internal/itemize"
	"github.com/Veraticus/order-tagger/internal/model"
)

// TagState classifies the existing tag of a ledger transaction.
type TagState int

// Tag states.
const (
	Untagged TagState = iota
	TaggedByTool
	EditedByUser
)

func (s TagState) String() string {
	switch s {
	case Untagged:
		return "untagged"
	case TaggedByTool:
		return "tagged_by_tool"
	case EditedByUser:
		return "tagged_by_tool_edited_by_user"
	default:
		return fmt.Sprintf("TagState(%d)", int(s))
	}
}

// Confirmer decides whether a tool-tagged transaction may be retagged.
type Confirmer interface {
	ConfirmRetag(ctx context.Context, tx model.Transaction, proposed model.Update) (bool, error)
}

// PlannerOptions controls the retag policy.
type PlannerOptions struct {
	// Prefixes are every description prefix this tool writes.
	Prefixes        []string
	ForceRetag      bool
	ConfirmRetag    bool
	NoTagCategories bool
}

// Planner turns proposals into updates according to the retag policy.
type Planner struct {
	categories model.CategoryIndex
	confirmer  Confirmer
	stats      *model.Stats
	opts       PlannerOptions
}

// NewPlanner creates a planner. Categories map ledger category names to ids.
func NewPlanner(opts PlannerOptions, categories model.CategoryIndex, confirmer Confirmer, stats *model.Stats) *Planner {
	if categories == nil {
		categories = model.CategoryIndex{}
	}
	return &Planner{opts: opts, categories: categories, confirmer: confirmer, stats: stats}
}

// Classify returns the tag state of tx relative to the update this run would
// write to it.
func (p *Planner) Classify(tx model.Transaction, proposed model.Update) TagState {
	if !tx.HasPrefix(p.opts.Prefixes) {
		return Untagged
	}
	current := tx.ContentFingerprint()
	if tx.AppliedFingerprint != "" {
		if current == tx.AppliedFingerprint {
			return TaggedByTool
		}
		return EditedByUser
	}
	if current == proposed.Fingerprint() {
		return TaggedByTool
	}
	return EditedByUser
}

// Plan returns the update for tx, or false when nothing should be written.
// Only a failing confirmer returns an error.
func (p *Planner) Plan(ctx context.Context, tx model.Transaction, proposal itemize.Proposal) (model.Update, bool, error) {
	if tx.Pending {
		return model.Update{}, false, nil
	}

	u := p.Resolve(tx, proposal)
	state := p.Classify(tx, u)
	log := slog.Default().With("transaction_id", tx.ID, "state", state.String())

	switch state {
	case Untagged:
		p.stats.Inc(model.StatNewTag)
		return u, true, nil

	case TaggedByTool:
		if tx.ContentFingerprint() == u.Fingerprint() {
			p.stats.Inc(model.StatAlreadyUpToDate)
			return model.Update{}, false, nil
		}
		u.Retag = true
		if p.opts.ConfirmRetag && p.confirmer != nil {
			return p.confirm(ctx, tx, u)
		}
		p.stats.Inc(model.StatRetag)
		return u, true, nil

	default:
		retagging := p.opts.ForceRetag || (p.opts.ConfirmRetag && p.confirmer != nil)
		if !retagging {
			p.stats.Inc(model.StatNoRetag)
			log.Debug("Keeping user-edited transaction")
			return model.Update{}, false, nil
		}
		if tx.ContentFingerprint() == u.Fingerprint() {
			p.stats.Inc(model.StatAlreadyUpToDate)
			return model.Update{}, false, nil
		}
		u.Retag = true
		if p.opts.ConfirmRetag && p.confirmer != nil {
			return p.confirm(ctx, tx, u)
		}
		p.stats.Inc(model.StatRetag)
		log.Debug("Overwriting user-edited transaction")
		return u, true, nil
	}
}

func (p *Planner) confirm(ctx context.Context, tx model.Transaction, u model.Update) (model.Update, bool, error) {
	ok, err := p.confirmer.ConfirmRetag(ctx, tx, u)
	if err != nil {
		return model.Update{}, false, fmt.Errorf("failed to confirm retag of %s: %w", tx.ID, err)
	}
	if !ok {
		p.stats.Inc(model.StatUserSkippedRetag)
		return model.Update{}, false, nil
	}
	p.stats.Inc(model.StatRetag)
	return u, true, nil
}

// Resolve builds the update a proposal would write to tx, resolving category
// names to ledger ids.
func (p *Planner) Resolve(tx model.Transaction, proposal itemize.Proposal) model.Update {
	u := model.Update{
		TransactionID: tx.ID,
		Description:   proposal.Description,
		Original:      tx,
	}
	u.Category, u.CategoryID = p.category(tx, proposal.Category)
	u.RuleCategory, _ = p.category(tx, proposal.RuleCategory)

	if len(proposal.Splits) > 0 {
		u.Splits = make([]model.Split, 0, len(proposal.Splits))
		for _, s := range proposal.Splits {
			s.Category, s.CategoryID = p.category(tx, s.Category)
			s.RuleCategory, _ = p.category(tx, s.RuleCategory)
			u.Splits = append(u.Splits, s)
		}
		u.Category, u.CategoryID = u.Splits[0].Category, u.Splits[0].CategoryID
		u.RuleCategory = u.Splits[0].RuleCategory
	}
	return u
}

func (p *Planner) category(tx model.Transaction, name string) (string, int) {
	if p.opts.NoTagCategories {
		return tx.Category, tx.CategoryID
	}
	if id, ok := p.categories[name]; ok {
		return name, id
	}
	if id, ok := p.categories[category.Uncategorized]; ok {
		slog.Debug("Unknown category, using fallback", "category", name, "fallback", category.Uncategorized)
		return category.Uncategorized, id
	}
	return tx.Category, tx.CategoryID
}
