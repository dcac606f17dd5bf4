package keys

import "github.com/charmbracelet/bubbles/key"

// bind builds a binding whose help key is the first of keys unless label
// is set.
func bind(label, desc string, keys ...string) key.Binding {
	if label == "" {
		label = keys[0]
	}
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

// ViewKeys are the bindings shared by every view that shows a data
// stream: mode switching plus the display toggles.
type ViewKeys struct {
	Quit             key.Binding
	Help             key.Binding
	InsertMode       key.Binding
	Escape           key.Binding
	Clear            key.Binding
	ToggleHex        key.Binding
	ToggleASCII      key.Binding
	ToggleTimestamps key.Binding
}

func NewViewKeys() ViewKeys {
	return ViewKeys{
		Quit:             bind("q/ctrl+c", "quit", "q", "Q", "ctrl+c"),
		Help:             bind("", "toggle help", "?"),
		InsertMode:       bind("i", "insert mode", "i", "I"),
		Escape:           bind("", "normal mode", "esc"),
		Clear:            bind("", "clear buffer", "c"),
		ToggleHex:        bind("", "hex display", "h"),
		ToggleASCII:      bind("", "ascii display", "a"),
		ToggleTimestamps: bind("", "timestamps", "t"),
	}
}

// normal lists the bindings active outside insert mode
func (k ViewKeys) normal() []key.Binding {
	return []key.Binding{k.Quit, k.Help, k.InsertMode, k.Clear, k.ToggleHex, k.ToggleASCII, k.ToggleTimestamps}
}
