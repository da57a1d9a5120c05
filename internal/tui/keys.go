package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Filter  key.Binding
	Advance key.Binding
	Delete  key.Binding
	Refresh key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "subir")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "bajar")),
		Filter:  key.NewBinding(key.WithKeys("tab", "1", "2", "3", "4", "5"), key.WithHelp("tab/1-5", "filtrar")),
		Advance: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "avanzar")),
		Delete:  key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "eliminar")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recargar")),
		Dismiss: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cerrar aviso")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "salir")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Filter, k.Advance, k.Delete, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Dismiss}}
}
