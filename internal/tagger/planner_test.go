package tagger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/order-tagger/internal/itemize"
	"github.com/Veraticus/order-tagger/internal/model"
)

var testPrefixes = []string{"Amazon.com: ", "Amazon.com refund: "}

func proposal(desc, category string) itemize.Proposal {
	return itemize.Proposal{Prefix: "Amazon.com: ", Description: desc, Category: category}
}

func TestClassify(t *testing.T) {
	p := NewPlanner(PlannerOptions{Prefixes: testPrefixes}, testCategories, nil, nil)
	proposed := model.Update{Description: "Amazon.com: Widget", CategoryID: 1}

	tagged := model.Transaction{ID: "t", Description: "Amazon.com: Widget", CategoryID: 1}
	tagged.AppliedFingerprint = tagged.ContentFingerprint()

	edited := tagged
	edited.CategoryID = 3

	tests := []struct {
		name string
		tx   model.Transaction
		want TagState
	}{
		{name: "raw merchant text", tx: model.Transaction{ID: "t", Description: "AMZN Mktp US"}, want: Untagged},
		{name: "applied content unchanged", tx: tagged, want: TaggedByTool},
		{name: "applied content edited", tx: edited, want: EditedByUser},
		{name: "prefix case insensitive", tx: model.Transaction{ID: "t", Description: "amazon.com: Widget", CategoryID: 1}, want: EditedByUser},
		{name: "no fingerprint but matches proposal", tx: model.Transaction{ID: "t", Description: "Amazon.com: Widget", CategoryID: 1}, want: TaggedByTool},
		{name: "no fingerprint and differs", tx: model.Transaction{ID: "t", Description: "Amazon.com: Widget", CategoryID: 2}, want: EditedByUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(tt.tx, proposed))
		})
	}
}

func TestPlanTransitions(t *testing.T) {
	tagged := model.Transaction{ID: "t", Description: "Amazon.com: Widget", Category: "Shopping", CategoryID: 1}
	tagged.AppliedFingerprint = tagged.ContentFingerprint()

	edited := tagged
	edited.Category, edited.CategoryID = "Gifts", 3

	tests := []struct {
		name     string
		tx       model.Transaction
		proposal itemize.Proposal
		opts     PlannerOptions
		stat     string
		emitted  bool
		retag    bool
	}{
		{
			name:     "untagged gets new tag",
			tx:       model.Transaction{ID: "t", Description: "AMZN Mktp US", Category: "Uncategorized"},
			proposal: proposal("Amazon.com: Widget", "Shopping"),
			stat:     model.StatNewTag,
			emitted:  true,
		},
		{
			name:     "unchanged tag is up to date",
			tx:       tagged,
			proposal: proposal("Amazon.com: Widget", "Shopping"),
			stat:     model.StatAlreadyUpToDate,
		},
		{
			name:     "changed content is retagged",
			tx:       tagged,
			proposal: proposal("Amazon.com: Widget, Gadget", "Shopping"),
			stat:     model.StatRetag,
			emitted:  true,
			retag:    true,
		},
		{
			name:     "user edit is kept",
			tx:       edited,
			proposal: proposal("Amazon.com: Widget", "Shopping"),
			stat:     model.StatNoRetag,
		},
		{
			name:     "user edit is kept even when prediction agrees",
			tx:       edited,
			proposal: proposal("Amazon.com: Widget", "Gifts"),
			stat:     model.StatNoRetag,
		},
		{
			name:     "force overwrites user edit",
			tx:       edited,
			proposal: proposal("Amazon.com: Widget", "Shopping"),
			opts:     PlannerOptions{ForceRetag: true},
			stat:     model.StatRetag,
			emitted:  true,
			retag:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := model.NewStats()
			tt.opts.Prefixes = testPrefixes
			p := NewPlanner(tt.opts, testCategories, nil, stats)

			u, ok, err := p.Plan(context.Background(), tt.tx, tt.proposal)
			require.NoError(t, err)
			assert.Equal(t, tt.emitted, ok)
			assert.Equal(t, 1, stats.Get(tt.stat))
			if ok {
				assert.Equal(t, tt.retag, u.Retag)
				assert.Equal(t, tt.tx.ID, u.TransactionID)
				assert.Equal(t, tt.tx, u.Original)
			}
		})
	}
}

func TestPlanSkipsPending(t *testing.T) {
	stats := model.NewStats()
	p := NewPlanner(PlannerOptions{Prefixes: testPrefixes}, testCategories, nil, stats)

	_, ok, err := p.Plan(context.Background(), model.Transaction{ID: "t", Pending: true}, proposal("Amazon.com: Widget", "Shopping"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, stats.Get(model.StatNewTag))
}

func TestResolveCategories(t *testing.T) {
	tx := model.Transaction{ID: "t", Category: "Bills", CategoryID: 42}
	prop := itemize.Proposal{
		Description: "Amazon.com: A, B",
		Category:    "Books",
		Splits: []model.Split{
			{Description: "A", Category: "Pet Food & Supplies", Amount: 100},
			{Description: "B", Category: "Books", Amount: 200},
		},
	}

	p := NewPlanner(PlannerOptions{}, testCategories, nil, nil)
	u := p.Resolve(tx, prop)
	assert.Equal(t, "Uncategorized", u.Splits[0].Category, "unknown names fall back")
	assert.Equal(t, 0, u.Splits[0].CategoryID)
	assert.Equal(t, 2, u.Splits[1].CategoryID)
	assert.Equal(t, u.Splits[0].CategoryID, u.CategoryID)

	noFallback := NewPlanner(PlannerOptions{}, model.CategoryIndex{"Books": 2}, nil, nil)
	u = noFallback.Resolve(tx, prop)
	assert.Equal(t, 42, u.Splits[0].CategoryID, "current category kept without a fallback")

	keep := NewPlanner(PlannerOptions{NoTagCategories: true}, testCategories, nil, nil)
	u = keep.Resolve(tx, prop)
	assert.Equal(t, 42, u.CategoryID)
	assert.Equal(t, "Bills", u.Splits[1].Category)
}

func TestTagStateString(t *testing.T) {
	assert.Equal(t, "untagged", Untagged.String())
	assert.Equal(t, "tagged_by_tool_edited_by_user", EditedByUser.String())
	assert.Equal(t, "TagState(9)", TagState(9).String())
}
