package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the terminal.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Activity   key.Binding
	Escape     key.Binding

	// Setup form
	NextField key.Binding
	PrevField key.Binding
	Toggle    key.Binding
	Confirm   key.Binding

	// Keypad
	Digit       key.Binding
	Backspace   key.Binding
	Clear       key.Binding
	ToggleMode  key.Binding
	Description key.Binding
	Settings    key.Binding

	// Receive
	Back key.Binding

	// Activity view
	Up   key.Binding
	Down key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Activity: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Activity log"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close / leave field"),
		),

		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Toggle option"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),

		Digit: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "."),
			key.WithHelp("0-9 .", "Enter amount"),
		),
		Backspace: key.NewBinding(
			key.WithKeys("backspace"),
			key.WithHelp("backspace", "Delete digit"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c", "delete"),
			key.WithHelp("c", "Clear amount"),
		),
		ToggleMode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Fiat / sats"),
		),
		Description: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Edit description"),
		),
		Settings: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Settings"),
		),

		Back: key.NewBinding(
			key.WithKeys("b", "esc", "enter"),
			key.WithHelp("b", "New payment"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k", "Scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j", "Scroll down"),
		),
	}
}
