package model

import "sort"

// Counter names accumulated during a tagging run.
const (
	StatNewTag                 = "new_tag"
	StatRetag                  = "retag"
	StatAlreadyUpToDate        = "already_up_to_date"
	StatNoRetag                = "no_retag"
	StatUserSkippedRetag       = "user_skipped_retag"
	StatAdjustItemizedTax      = "adjust_itemized_tax"
	StatMiscCharge             = "misc_charge"
	StatPersonalCat            = "personal_cat"
	StatSkippedUnshipped       = "skipped_orders_unshipped"
	StatSkippedGiftCard        = "skipped_orders_gift_card"
	StatMalformedRows          = "malformed_rows"
	StatTransactions           = "trans"
	StatMerchantInDescription  = "amazon_in_desc"
	StatPending                = "pending"
	StatOrderMatch             = "order_match"
	StatOrderUnmatch           = "order_unmatch"
	StatRefundMatch            = "refund_match"
	StatRefundUnmatch          = "refund_unmatch"
	StatTransactionMatch       = "trans_match"
	StatTransactionUnmatch     = "trans_unmatch"
	StatInvariantViolation     = "invariant_violation"
	StatPartialShipmentMatches = "shipment_match"
	StatCombinedOrderMatches   = "combined_match"
)

// Stats accumulates named counters for one run. It is owned by the caller and
// written by one stage at a time; it is not safe for concurrent use.
type Stats struct {
	counts map[string]int
}

// NewStats returns a Stats with the planner counters initialized to zero so they
// always appear in summaries.
func NewStats() *Stats {
	s := &Stats{counts: make(map[string]int)}
	for _, name := range []string{
		StatAdjustItemizedTax, StatAlreadyUpToDate, StatMiscCharge, StatNewTag,
		StatNoRetag, StatRetag, StatUserSkippedRetag, StatPersonalCat,
	} {
		s.counts[name] = 0
	}
	return s
}

// Inc increments the named counter.
func (s *Stats) Inc(name string) { s.Add(name, 1) }

// Add adds n to the named counter. Adding to a nil Stats is a no-op.
func (s *Stats) Add(name string, n int) {
	if s == nil {
		return
	}
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[name] += n
}

// Get returns the named counter.
func (s *Stats) Get(name string) int {
	if s == nil {
		return 0
	}
	return s.counts[name]
}

// Merge adds every counter of other into s.
func (s *Stats) Merge(other *Stats) {
	if other == nil {
		return
	}
	for k, v := range other.counts {
		s.Add(k, v)
	}
}

// Names returns the counter names in sorted order.
func (s *Stats) Names() []string {
	names := make([]string, 0, len(s.counts))
	for k := range s.counts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
