package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the review screen shortcuts. The table keeps its own paging
// bindings; Up and Down are listed here only for help.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Toggle     key.Binding
	ApproveAll key.Binding
	RejectAll  key.Binding
	Confirm    key.Binding
	Quit       key.Binding
	Help       key.Binding
}

func bind(label, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

// DefaultKeyMap returns the default review bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:         bind("↑/k", "up", "k", "up"),
		Down:       bind("↓/j", "down", "j", "down"),
		Toggle:     bind("space/x", "toggle update", " ", "x"),
		ApproveAll: bind("a", "approve all", "a"),
		RejectAll:  bind("n", "reject all", "n"),
		Confirm:    bind("enter", "apply approved", "enter"),
		Quit:       bind("q/esc", "abort", "q", "esc", "ctrl+c"),
		Help:       bind("?", "toggle help", "?"),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Confirm, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Toggle, k.ApproveAll, k.RejectAll},
		{k.Confirm, k.Quit, k.Help},
	}
}
