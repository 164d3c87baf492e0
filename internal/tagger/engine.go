// Package tagger reconciles purchase history against a ledger and plans the
// description, category and split edits to write back.
//
// The Engine runs the stages in order: normalize report rows, filter and index
// the ledger, match charges to transactions, build itemized proposals and plan
// updates under the retag policy. It performs no I/O; the only blocking call is
// the optional retag confirmer.
package tagger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/order-tagger/internal/category"
	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/config"
	"github.com/Veraticus/order-tagger/internal/itemize"
	"github.com/Veraticus/order-tagger/internal/ledger"
	"github.com/Veraticus/order-tagger/internal/matcher"
	"github.com/Veraticus/order-tagger/internal/model"
	"github.com/Veraticus/order-tagger/internal/orderhistory"
)

// Input is everything one run reconciles.
type Input struct {
	// Categories maps ledger category names to ids.
	Categories map[string]int
	OrderRows  []orderhistory.RawRow
	ItemRows   []orderhistory.RawRow
	RefundRows []orderhistory.RawRow
	Ledger     []model.Transaction
}

// Result is the outcome of one run.
type Result struct {
	Stats *model.Stats
	// Updates follow match order: orders by ship date through each matching
	// pass, then refunds by refund date.
	Updates   []model.Update
	Unmatched []model.Purchase
	Orders    []*model.Order
	Items     []*model.Item
	Refunds   []*model.Refund
	// Dropped lists updates discarded because their splits did not reconcile.
	Dropped []error
}

// Engine runs the reconciliation pipeline.
type Engine struct {
	confirmer Confirmer
	opts      config.Options
}

// NewEngine creates an engine. The confirmer is consulted only when
// opts.ConfirmRetag is set; it may be nil otherwise.
func NewEngine(opts config.Options, confirmer Confirmer) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts, confirmer: confirmer}, nil
}

// Run reconciles in. A zero-update run is a valid outcome; the only error is a
// failing confirmer or a cancelled context.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	stats := model.NewStats()

	norm := orderhistory.Normalize(in.OrderRows, in.ItemRows, in.RefundRows, stats)
	slog.Info("Normalized purchase history",
		"orders", len(norm.Orders),
		"items", len(norm.Items),
		"refunds", len(norm.Refunds),
		"malformed_rows", len(norm.Errors))

	filter := ledger.Filter{MerchantTerms: e.opts.MerchantFilter, Categories: e.opts.CategoryFilter}
	txns := filter.Apply(in.Ledger, stats)

	m := matcher.New(e.matcherConfig(), ledger.NewIndex(txns), stats)
	matched := m.Run(norm.Orders, norm.Refunds)
	slog.Info("Matched purchases",
		"matches", len(matched.Matches),
		"unmatched_orders", len(matched.UnmatchedOrders),
		"unmatched_refunds", len(matched.UnmatchedRefunds))

	itemizeOpts := e.itemizeOptions()
	prefixes := itemize.Prefixes(itemizeOpts, e.websites(norm))
	rules := category.NewRules(e.opts.CategoryRules)
	resolver := &category.Resolver{Rules: rules}
	if !e.opts.NoPredictCategories {
		resolver.Predictor = category.NewPredictor(rules, norm.Items, norm.Refunds)
		resolver.Predictor.Learn(in.Ledger, prefixes)
	}

	iz := itemize.New(itemizeOpts, resolver, stats)
	planner := NewPlanner(PlannerOptions{
		Prefixes:        prefixes,
		ForceRetag:      e.opts.ForceRetag,
		ConfirmRetag:    e.opts.ConfirmRetag,
		NoTagCategories: e.opts.NoTagCategories,
	}, model.CategoryIndex(in.Categories), e.confirmer, stats)

	res := &Result{
		Stats:     stats,
		Unmatched: matched.Unmatched(),
		Orders:    norm.Orders,
		Items:     norm.Items,
		Refunds:   norm.Refunds,
	}

	for _, mt := range matched.Matches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("tagging cancelled: %w", err)
		}
		if e.opts.NumUpdates > 0 && len(res.Updates) >= e.opts.NumUpdates {
			slog.Info("Update limit reached", "limit", e.opts.NumUpdates)
			break
		}

		proposal, err := iz.Build(mt)
		if err != nil {
			var iv *common.InvariantViolation
			if !errors.As(err, &iv) {
				return nil, err
			}
			stats.Inc(model.StatInvariantViolation)
			res.Dropped = append(res.Dropped, err)
			common.LogWarn("Dropping update that does not reconcile", common.Fields{
				"transaction_id": iv.TransactionID,
				"error":          err.Error(),
			})
			continue
		}

		u, ok, err := planner.Plan(ctx, mt.Transaction, proposal)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Updates = append(res.Updates, u)
		}
	}

	return res, nil
}

func (e *Engine) matcherConfig() matcher.Config {
	return matcher.Config{
		Window:          ledger.Window{Days: e.opts.DaysWindow, Symmetric: e.opts.SymmetricWindow},
		AmountTolerance: e.opts.AmountTolerance,
		MatchShipments:  e.opts.MatchShipments,
		CombineSameDay:  e.opts.CombineSameDayOrders,
	}
}

func (e *Engine) itemizeOptions() itemize.Options {
	return itemize.Options{
		DescriptionPrefixOverride:       e.opts.DescriptionPrefixOverride,
		DescriptionRefundPrefixOverride: e.opts.DescriptionRefundPrefixOverride,
		ItemizeAlways:                   e.opts.ItemizeAlways,
		NoItemize:                       e.opts.NoItemize,
		SummarizeSingleItem:             e.opts.SummarizeSingleItem,
	}
}

// websites returns the configured merchant domains plus any website seen in the
// purchase history.
func (e *Engine) websites(norm orderhistory.Result) []string {
	sites := append([]string(nil), e.opts.MerchantDomains...)
	for _, o := range norm.Orders {
		sites = append(sites, o.Website)
	}
	for _, r := range norm.Refunds {
		sites = append(sites, r.Website)
	}
	return sites
}
