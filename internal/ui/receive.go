package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsarenik/btcpos/internal/amount"
	"github.com/jsarenik/btcpos/internal/pager"
)

func (m Model) handleReceiveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Back) {
		cmd := m.dispatch(pager.Back{})
		return m, cmd
	}
	return m, nil
}

func (m Model) handleErrorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Settings) || key.Matches(msg, m.keys.Confirm) {
		cmd := m.dispatch(pager.SettingsRequested{})
		return m, cmd
	}
	return m, nil
}

func (m Model) renderReceive(p pager.Receive) string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Amount.Render(amount.FormatSats(p.Amounts.Sats) + " sats"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render(amount.FormatFiat(p.Amounts.Fiat) + " " + p.Amounts.Currency))
	if p.Description != "" {
		b.WriteString("\n")
		b.WriteString(styles.Text.Render(p.Description))
	}
	b.WriteString("\n\n")

	switch p.Status {
	case pager.StatusPaid:
		b.WriteString(styles.StatusStyle(statusPaid).Render("Payment received"))
	case pager.StatusFailed:
		b.WriteString(styles.StatusStyle(statusFailed).Render("Payment failed or expired"))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(styles.StatusStyle(statusWaiting).Render("Waiting for payment"))
	}
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("swap " + p.SwapID))
	b.WriteString("\n")
	b.WriteString(styles.AccentText.Render(truncateMiddle(p.PaymentRequest, 48)))

	info := styles.FocusedPanel.Render(b.String())
	if p.Status != pager.StatusWaiting {
		return info
	}
	qr, err := renderQR(strings.ToUpper(p.PaymentRequest))
	if err != nil {
		return info
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, info, " ", styles.Panel.Render(qr))
}

func (m Model) renderError(p pager.Error) string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.DangerText.Render("This terminal link is not valid"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(p.Message))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("Press s to set the terminal up again."))
	return styles.FocusedPanel.Render(b.String())
}
