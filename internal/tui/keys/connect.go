package keys

import "github.com/charmbracelet/bubbles/key"

// ConnectKeys adds sending, scrolling and pump control to ViewKeys
type ConnectKeys struct {
	ViewKeys
	Enter           key.Binding
	ToggleSendMode  key.Binding
	Up              key.Binding
	Down            key.Binding
	GotoTop         key.Binding
	GotoBottom      key.Binding
	ToggleReadPump  key.Binding
	ToggleWritePump key.Binding
	Stats           key.Binding
}

func NewConnectKeys() ConnectKeys {
	return ConnectKeys{
		ViewKeys:        NewViewKeys(),
		Enter:           bind("", "send message", "enter"),
		ToggleSendMode:  bind("", "toggle send mode", "tab"),
		Up:              bind("↑/k", "up", "up", "k"),
		Down:            bind("↓/j", "down", "down", "j"),
		GotoTop:         bind("", "goto top", "g"),
		GotoBottom:      bind("", "goto bottom", "G"),
		ToggleReadPump:  bind("", "kill/restart read pump", "r"),
		ToggleWritePump: bind("", "kill/restart write pump", "w"),
		Stats:           bind("", "show stats", "s"),
	}
}

// Normal lists every binding handled in normal mode
func (k ConnectKeys) Normal() []key.Binding {
	return append(k.ViewKeys.normal(),
		k.ToggleSendMode, k.Up, k.Down, k.GotoTop, k.GotoBottom,
		k.ToggleReadPump, k.ToggleWritePump, k.Stats)
}

func (k ConnectKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.Enter, k.Stats, k.Quit}
}

func (k ConnectKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.InsertMode, k.Escape, k.Clear, k.Enter},
		{k.ToggleHex, k.ToggleASCII, k.ToggleTimestamps, k.ToggleSendMode},
		{k.GotoTop, k.GotoBottom, k.Up, k.Down},
		{k.ToggleReadPump, k.ToggleWritePump, k.Stats},
		{k.Help, k.Quit},
	}
}
