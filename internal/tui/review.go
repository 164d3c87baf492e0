// Package tui provides a terminal screen for reviewing proposed updates
// before they are applied.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/order-tagger/internal/model"
)

// ErrReviewAborted is returned when the user leaves the review without confirming.
var ErrReviewAborted = errors.New("review aborted")

const (
	defaultTableHeight = 15
	// chrome is the number of lines around the table: title, detail box and help.
	chrome = 12
)

// ReviewModel is the bubbletea model of the review screen. Every update starts
// approved.
type ReviewModel struct {
	keys      KeyMap
	theme     Theme
	help      help.Model
	updates   []model.Update
	approved  []bool
	table     table.Model
	confirmed bool
	aborted   bool
}

// NewReviewModel creates a review of updates.
func NewReviewModel(updates []model.Update) ReviewModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: " ", Width: 1},
			{Title: "Date", Width: 10},
			{Title: "Amount", Width: 10},
			{Title: "Description", Width: 44},
			{Title: "Category", Width: 20},
			{Title: "Lines", Width: 5},
		}),
		table.WithFocused(true),
		table.WithHeight(defaultTableHeight),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(DefaultTheme.Border).
		BorderBottom(true).
		Bold(false)
	s.Selected = DefaultTheme.Selected
	t.SetStyles(s)

	m := ReviewModel{
		keys:     DefaultKeyMap(),
		theme:    DefaultTheme,
		help:     help.New(),
		updates:  updates,
		approved: make([]bool, len(updates)),
		table:    t,
	}
	for i := range m.approved {
		m.approved[i] = true
	}
	m.refreshRows()
	return m
}

// Init implements tea.Model.
func (m ReviewModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(3, msg.Height-chrome))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.aborted = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Confirm):
			m.confirmed = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			if i := m.table.Cursor(); i >= 0 && i < len(m.approved) {
				m.approved[i] = !m.approved[i]
				m.refreshRows()
			}
			return m, nil
		case key.Matches(msg, m.keys.ApproveAll):
			m.setAll(true)
			return m, nil
		case key.Matches(msg, m.keys.RejectAll):
			m.setAll(false)
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m ReviewModel) View() string {
	if m.confirmed || m.aborted {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render(fmt.Sprintf("Review %d proposed updates (%d approved)", len(m.updates), m.ApprovedCount())))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if detail := m.detail(); detail != "" {
		b.WriteString(m.theme.Detail.Render(detail))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Approved returns the approved updates in their original order.
func (m ReviewModel) Approved() []model.Update {
	out := make([]model.Update, 0, len(m.updates))
	for i, u := range m.updates {
		if m.approved[i] {
			out = append(out, u)
		}
	}
	return out
}

// ApprovedCount returns how many updates are approved.
func (m ReviewModel) ApprovedCount() int {
	n := 0
	for _, ok := range m.approved {
		if ok {
			n++
		}
	}
	return n
}

// Confirmed reports whether the user confirmed the review.
func (m ReviewModel) Confirmed() bool { return m.confirmed }

func (m *ReviewModel) setAll(approved bool) {
	for i := range m.approved {
		m.approved[i] = approved
	}
	m.refreshRows()
}

func (m *ReviewModel) refreshRows() {
	rows := make([]table.Row, 0, len(m.updates))
	for i, u := range m.updates {
		mark := "✗"
		if m.approved[i] {
			mark = "✓"
		}
		lines := "1"
		if u.Itemized() {
			lines = fmt.Sprint(len(u.Splits))
		}
		rows = append(rows, table.Row{
			mark,
			u.Original.Date.Format("2006-01-02"),
			u.Original.Amount.String(),
			u.Description,
			u.Category,
			lines,
		})
	}
	m.table.SetRows(rows)
}

// detail renders the selected update against the current transaction.
func (m ReviewModel) detail() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.updates) {
		return ""
	}
	u := m.updates[i]

	var b strings.Builder
	status := m.theme.Approved.Render("approved")
	if !m.approved[i] {
		status = m.theme.Rejected.Render("rejected")
	}
	action := "new tag"
	if u.Retag {
		action = "retag"
	}
	fmt.Fprintf(&b, "%s  %s  %s\n", u.TransactionID, action, status)
	fmt.Fprintf(&b, "%s %s\n", m.theme.Subtle.Render("was:"), u.Original.Description)
	fmt.Fprintf(&b, "%s %s", m.theme.Subtle.Render("now:"), u.Description)
	for _, s := range u.Splits {
		fmt.Fprintf(&b, "\n  %10s  %s (%s)", s.Amount, s.Description, s.Category)
	}
	return b.String()
}

// Review shows updates and returns the ones the user approved. Aborting
// returns ErrReviewAborted.
func Review(ctx context.Context, updates []model.Update, in io.Reader, out io.Writer) ([]model.Update, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	final, err := tea.NewProgram(NewReviewModel(updates), opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run review: %w", err)
	}

	m, ok := final.(ReviewModel)
	if !ok || !m.Confirmed() {
		return nil, ErrReviewAborted
	}
	return m.Approved(), nil
}
