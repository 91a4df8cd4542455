package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down              key.Binding
	FocusLeft, FocusRight key.Binding
	Tab                   key.Binding
	PageUp, PageDown      key.Binding
	PrevMatch, NextMatch  key.Binding
	Filter, Esc           key.Binding
	Copy, Follow, Quit    key.Binding
}

func bind(helpKey, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(helpKey, desc))
}

func defaultKeys() keyMap {
	return keyMap{
		Up:         bind("↑/k", "up", "up", "k"),
		Down:       bind("↓/j", "down", "down", "j"),
		FocusLeft:  bind("←", "focus list", "left"),
		FocusRight: bind("→", "focus message", "right"),
		Tab:        bind("tab", "toggle focus", "tab"),
		PageUp:     bind("pgup", "page up", "pgup", "b"),
		PageDown:   bind("pgdn", "page down", "pgdown", "f"),
		PrevMatch:  bind("p", "prev match", "p"),
		NextMatch:  bind("n", "next match", "n"),
		Filter:     bind("/", "filter", "/"),
		Esc:        bind("esc", "clear filter", "esc"),
		Copy:       bind("c", "copy message", "c"),
		Follow:     bind("F", "follow newest", "F"),
		Quit:       bind("q", "quit", "q", "ctrl+c"),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Tab, k.Filter, k.NextMatch, k.PrevMatch, k.Copy, k.Follow, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.FocusLeft, k.FocusRight, k.Tab},
		{k.PageDown, k.PageUp, k.NextMatch, k.PrevMatch, k.Filter, k.Esc},
		{k.Copy, k.Follow, k.Quit},
	}
}
