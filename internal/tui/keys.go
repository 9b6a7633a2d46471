package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Inc      key.Binding
	Dec      key.Binding
	Remove   key.Binding
	COD      key.Binding
	Online   key.Binding
	Refresh  key.Binding
	Quit     key.Binding
	ShowHelp key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Inc:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "more")),
		Dec:      key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "less")),
		Remove:   key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "remove")),
		COD:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "order (cash on delivery)")),
		Online:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order and pay by card")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload cart")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		ShowHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Inc, k.Dec, k.Remove, k.COD, k.Quit, k.ShowHelp}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Inc, k.Dec, k.Remove},
		{k.COD, k.Online, k.Refresh, k.Quit, k.ShowHelp},
	}
}
