package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jsarenik/btcpos/internal/amount"
	"github.com/jsarenik/btcpos/internal/pager"
)

// renderHeader renders the status bar: logo, page, network, session state
// and the current exchange rate.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{
		bg.Render("btcpos", styles.Logo),
		bg.Render(strings.ToUpper(m.page.Page().String()), styles.Text.Bold(true)),
		bg.Render(string(m.manager.Network()), styles.MutedText),
	}

	if _, onSetup := m.page.(pager.Setup); !onSetup {
		label, status := m.sessionStatus()
		parts = append(parts, styles.StatusStyle(status).Render(label))

		if m.snapshot.HasRate {
			rate := "1 BTC = " + amount.FormatFiat(m.snapshot.ExchangeRate) + " " + string(m.snapshot.Currency)
			parts = append(parts, bg.Render(rate, styles.InfoText))
		}
		if m.snapshot.WalletID != "" {
			parts = append(parts,
				bg.Render("wallet", styles.FaintText)+bg.Space()+
					bg.Render(truncateMiddle(m.snapshot.WalletID, 16), styles.MutedText))
		}
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(bg.Join(parts, "  "))
}

func (m Model) sessionStatus() (label, status string) {
	ready := m.snapshot.Ready
	if pos, ok := m.page.(pager.POS); ok {
		ready = m.manager.ReadyFor(pos.Config)
	}
	switch {
	case ready:
		return "READY", statusReady
	case m.syncing:
		return "SYNCING", statusSyncing
	default:
		return "OFFLINE", statusFailed
	}
}

// renderCommandBar lists the keys of the current page.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch p := m.page.(type) {
	case pager.Setup:
		commands = []cmd{
			{"tab", "Next"},
			{"space", "Toggle"},
			{"enter", "Confirm"},
			{"esc", "Leave field"},
		}
	case pager.POS:
		commands = []cmd{
			{"0-9.", "Amount"},
			{"m", "Fiat/sats"},
			{"c", "Clear"},
			{"enter", "Charge"},
		}
		if p.Config.ShowDescription {
			commands = append(commands, cmd{"d", "Description"})
		}
		if p.Config.ShowSettingsGear {
			commands = append(commands, cmd{"s", "Settings"})
		}
	case pager.Receive:
		commands = []cmd{{"b", "New payment"}}
	case pager.Error:
		commands = []cmd{{"s", "Settings"}}
	}
	if m.activity.open {
		commands = []cmd{{"j/k", "Scroll"}, {"esc", "Close"}}
	}
	commands = append(commands, cmd{"L", "Activity"}, cmd{"?", "More"})

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))
	if m.flash != "" {
		segments = append(segments, bg.Render(m.flash, styles.WarningText))
	}

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}
