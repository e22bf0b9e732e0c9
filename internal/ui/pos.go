package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsarenik/btcpos/internal/amount"
	"github.com/jsarenik/btcpos/internal/pager"
)

func newDescriptionInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "What is this payment for?"
	ti.CharLimit = 120
	ti.Width = 40
	ti.Prompt = ""
	return ti
}

func (m Model) handlePOSKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur := m.page.(pager.POS)

	if m.editingDescription {
		if key.Matches(msg, m.keys.Escape) || key.Matches(msg, m.keys.Confirm) {
			m.editingDescription = false
			m.description.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.description, cmd = m.description.Update(msg)
		changed := m.dispatch(pager.DescriptionChanged{Text: m.description.Value()})
		return m, tea.Batch(cmd, changed)
	}

	rate, _ := m.store.Rate()
	switch {
	case key.Matches(msg, m.keys.Digit):
		r := []rune(msg.String())
		cmd := m.dispatch(pager.KeyPressed{Key: r[0]})
		return m, cmd
	case key.Matches(msg, m.keys.Backspace):
		cmd := m.dispatch(pager.Backspace{})
		return m, cmd
	case key.Matches(msg, m.keys.Clear):
		cmd := m.dispatch(pager.ClearAmount{})
		return m, cmd
	case key.Matches(msg, m.keys.ToggleMode):
		cmd := m.dispatch(pager.ToggleMode{Rate: rate})
		return m, cmd
	case key.Matches(msg, m.keys.Confirm):
		cmd := m.dispatch(pager.Submit{
			Rate:    rate,
			Ready:   m.manager.ReadyFor(cur.Config),
			Request: m.shared.nextRequest(),
		})
		return m, cmd
	case key.Matches(msg, m.keys.Description):
		if cur.Config.ShowDescription && !cur.Pending {
			m.editingDescription = true
			cmd := m.description.Focus()
			return m, cmd
		}
	case key.Matches(msg, m.keys.Settings):
		if cur.Config.ShowSettingsGear {
			cmd := m.dispatch(pager.SettingsRequested{})
			return m, cmd
		}
	}
	return m, nil
}

var keypadRows = [][]string{
	{"7", "8", "9"},
	{"4", "5", "6"},
	{"1", "2", "3"},
	{".", "0", "⌫"},
}

func (m Model) renderPOS(p pager.POS) string {
	styles := m.theme.Styles()
	rate, hasRate := m.store.Rate()
	currency := p.Config.Currency

	var b strings.Builder

	display := amount.NormalizeForDisplay(p.Amount.Digits)
	unit := currency
	if p.Amount.Mode == amount.Satoshi {
		unit = "sats"
	}
	b.WriteString(styles.Amount.Render(display + " " + unit))
	b.WriteString("\n")

	if hasRate {
		resolved := amount.Resolve(p.Amount, rate, currency)
		var other string
		if p.Amount.Mode == amount.Satoshi {
			other = "≈ " + amount.FormatFiat(resolved.Fiat) + " " + currency
		} else {
			other = "≈ " + amount.FormatSats(resolved.Sats) + " sats"
		}
		b.WriteString(styles.MutedText.Render(other))
	} else {
		b.WriteString(styles.FaintText.Render("waiting for exchange rate"))
	}
	b.WriteString("\n\n")

	for _, row := range keypadRows {
		cells := make([]string, 0, len(row))
		for _, k := range row {
			cells = append(cells, styles.Panel.Padding(0, 2).Render(k))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	if p.Config.ShowDescription {
		b.WriteString("\n")
		b.WriteString(styles.MutedText.Render("Description "))
		if m.editingDescription {
			b.WriteString(m.description.View())
		} else if p.Description != "" {
			b.WriteString(styles.Text.Render(p.Description))
		} else {
			b.WriteString(styles.FaintText.Render("press d to add"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case p.Pending:
		b.WriteString(m.spinner.View())
		b.WriteString(styles.InfoText.Render(" Creating invoice for " + amount.FormatSats(p.Submitted.Sats) + " sats"))
	case p.Notice != "":
		b.WriteString(styles.WarningText.Render(p.Notice))
	case !m.manager.ReadyFor(p.Config):
		b.WriteString(m.spinner.View())
		b.WriteString(styles.MutedText.Render(" Syncing wallet"))
	default:
		b.WriteString(styles.SuccessText.Render("Ready"))
	}
	return styles.FocusedPanel.Render(b.String())
}
