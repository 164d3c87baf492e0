package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/order-tagger/internal/model"
)

func testUpdates() []model.Update {
	day := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	return []model.Update{
		{
			TransactionID: "tx-1",
			Description:   "Amazon.com: The Go Programming Language",
			Category:      "Books",
			Original:      model.Transaction{ID: "tx-1", Date: day, Amount: 21_600_000, Description: "AMZN Mktp US"},
		},
		{
			TransactionID: "tx-2",
			Description:   "Amazon.com: 2 items",
			Category:      "Shopping",
			Retag:         true,
			Original:      model.Transaction{ID: "tx-2", Date: day.AddDate(0, 0, 3), Amount: 16_200_000},
			Splits: []model.Split{
				{Description: "USB Cable", Category: "Electronics", Amount: 10_800_000},
				{Description: "Spatula", Category: "Home Supplies", Amount: 5_400_000},
			},
		},
		{
			TransactionID: "tx-4",
			Description:   "Amazon.com: Dish Soap",
			Category:      "Home Supplies",
			Original:      model.Transaction{ID: "tx-4", Date: day.AddDate(0, 0, 7), Amount: 9_990_000},
		},
	}
}

func press(t *testing.T, m ReviewModel, keys ...tea.KeyMsg) (ReviewModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		var ok bool
		m, ok = next.(ReviewModel)
		require.True(t, ok)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func ids(updates []model.Update) []string {
	out := make([]string, 0, len(updates))
	for _, u := range updates {
		out = append(out, u.TransactionID)
	}
	return out
}

func TestReviewModel_StartsApproved(t *testing.T) {
	m := NewReviewModel(testUpdates())
	assert.Equal(t, 3, m.ApprovedCount())
	assert.Equal(t, []string{"tx-1", "tx-2", "tx-4"}, ids(m.Approved()))
	assert.Nil(t, m.Init())

	view := m.View()
	assert.Contains(t, view, "Review 3 proposed updates (3 approved)")
	assert.Contains(t, view, "tx-1  new tag")
}

func TestReviewModel_Toggle(t *testing.T) {
	m, cmd := press(t, NewReviewModel(testUpdates()),
		tea.KeyMsg{Type: tea.KeyDown},
		runes("x"),
	)
	assert.Nil(t, cmd)
	assert.Equal(t, []string{"tx-1", "tx-4"}, ids(m.Approved()))

	view := m.View()
	assert.Contains(t, view, "tx-2  retag")
	assert.Contains(t, view, "Spatula (Home Supplies)")

	m, _ = press(t, m, runes("x"))
	assert.Equal(t, 3, m.ApprovedCount())
}

func TestReviewModel_BulkActions(t *testing.T) {
	m, _ := press(t, NewReviewModel(testUpdates()), runes("n"))
	assert.Empty(t, m.Approved())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown}, runes("x"))
	assert.Equal(t, []string{"tx-4"}, ids(m.Approved()))

	m, _ = press(t, m, runes("a"))
	assert.Equal(t, 3, m.ApprovedCount())
}

func TestReviewModel_ConfirmAndAbort(t *testing.T) {
	m, cmd := press(t, NewReviewModel(testUpdates()), tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Confirmed())
	assert.Empty(t, m.View())

	m, cmd = press(t, NewReviewModel(testUpdates()), tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.False(t, m.Confirmed())
}

func TestReviewModel_WindowSize(t *testing.T) {
	m, _ := press(t, NewReviewModel(testUpdates()))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(ReviewModel)
	assert.Equal(t, 40-chrome, m.table.Height())

	next, _ = m.Update(tea.WindowSizeMsg{Width: 40, Height: 5})
	m = next.(ReviewModel)
	assert.Equal(t, 3, m.table.Height())
}

func TestReviewModel_HelpToggle(t *testing.T) {
	m, _ := press(t, NewReviewModel(testUpdates()), runes("?"))
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "approve all")
}
