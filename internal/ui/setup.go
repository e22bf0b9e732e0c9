package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsarenik/btcpos/internal/backend"
	"github.com/jsarenik/btcpos/internal/pager"
	"github.com/jsarenik/btcpos/internal/posconfig"
	"github.com/jsarenik/btcpos/internal/prefs"
)

// Setup form fields in focus order.
const (
	fieldDescriptor = iota
	fieldCurrency
	fieldGear
	fieldShowDescription
	fieldGenerate
	fieldOpen
)

type setupForm struct {
	descriptor      textinput.Model
	currency        textinput.Model
	gear            bool
	showDescription bool
	focus           int
	message         string
	qr              string
}

func newSetupForm() setupForm {
	desc := textinput.New()
	desc.Placeholder = "ct(slip77(...),elwpkh(...))"
	desc.CharLimit = 4096
	desc.Width = 60
	desc.Prompt = ""

	cur := textinput.New()
	cur.Placeholder = "USD"
	cur.CharLimit = posconfig.CurrencyLength
	cur.Width = 4
	cur.Prompt = ""
	cur.SetValue("USD")

	f := setupForm{descriptor: desc, currency: cur, showDescription: true}
	f.setFocus(fieldDescriptor)
	return f
}

// reset clears the generated link and validation message.
func (f *setupForm) reset() {
	f.message = ""
	f.qr = ""
	f.setFocus(fieldDescriptor)
}

func (f *setupForm) fill(form prefs.StoredForm) {
	f.descriptor.SetValue(form.Descriptor)
	if form.Currency != "" {
		f.currency.SetValue(form.Currency)
	}
	f.gear = form.ShowGear
	f.showDescription = form.ShowDescription
}

func (f setupForm) config() posconfig.Config {
	return posconfig.Config{
		Descriptor:       strings.TrimSpace(f.descriptor.Value()),
		Currency:         strings.ToUpper(strings.TrimSpace(f.currency.Value())),
		ShowSettingsGear: f.gear,
		ShowDescription:  f.showDescription,
	}
}

func (f setupForm) typing() bool {
	return f.focus == fieldDescriptor || f.focus == fieldCurrency
}

func (f *setupForm) setFocus(field int) {
	f.focus = field
	f.descriptor.Blur()
	f.currency.Blur()
	switch field {
	case fieldDescriptor:
		f.descriptor.Focus()
	case fieldCurrency:
		f.currency.Focus()
	}
}

// move shifts focus by delta; fieldOpen is reachable only once a link exists.
func (f *setupForm) move(delta int, hasLink bool) {
	count := fieldGenerate + 1
	if hasLink {
		count = fieldOpen + 1
	}
	f.setFocus(((f.focus+delta)%count + count) % count)
}

func (m Model) handleSetupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur := m.page.(pager.Setup)
	hasLink := cur.Config != nil

	switch {
	case key.Matches(msg, m.keys.NextField):
		m.setup.move(1, hasLink)
		return m, nil
	case key.Matches(msg, m.keys.PrevField):
		m.setup.move(-1, hasLink)
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		if m.setup.typing() {
			m.setup.setFocus(fieldGenerate)
		}
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		switch m.setup.focus {
		case fieldDescriptor, fieldCurrency:
			m.setup.move(1, hasLink)
			return m, nil
		case fieldGear:
			m.setup.gear = !m.setup.gear
			return m, nil
		case fieldShowDescription:
			m.setup.showDescription = !m.setup.showDescription
			return m, nil
		case fieldGenerate:
			cmd := m.generateLink()
			return m, cmd
		case fieldOpen:
			cmd := m.dispatch(pager.OpenPOS{})
			return m, cmd
		}
	case key.Matches(msg, m.keys.Toggle) && !m.setup.typing():
		switch m.setup.focus {
		case fieldGear:
			m.setup.gear = !m.setup.gear
		case fieldShowDescription:
			m.setup.showDescription = !m.setup.showDescription
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.setup.focus {
	case fieldDescriptor:
		m.setup.descriptor, cmd = m.setup.descriptor.Update(msg)
	case fieldCurrency:
		m.setup.currency, cmd = m.setup.currency.Update(msg)
	}
	return m, cmd
}

// generateLink validates the form and, when it is acceptable, records the
// link. A descriptor for another network keeps the form as it is.
func (m *Model) generateLink() tea.Cmd {
	cfg := m.setup.config()
	if err := posconfig.Validate(cfg); err != nil {
		m.setup.message = err.Error()
		return nil
	}
	if _, err := backend.ParseCurrencyCode(cfg.Currency); err != nil {
		m.setup.message = err.Error()
		return nil
	}
	if err := m.manager.CheckDescriptor(cfg.Descriptor); err != nil {
		if errors.Is(err, backend.ErrNetworkMismatch) {
			m.setup.message = fmt.Sprintf("This descriptor is not for %s", m.manager.Network())
		} else {
			m.setup.message = err.Error()
		}
		return nil
	}

	link := posconfig.Link(m.baseURL, cfg)
	qr, err := renderQR(link)
	if err != nil {
		m.log.Warn().Err(err).Msg("render link qr")
	}
	m.setup.message = ""
	m.setup.qr = qr
	cmd := m.dispatch(pager.LinkGenerated{Config: cfg, Link: link})
	m.setup.setFocus(fieldOpen)
	return cmd
}

func (m Model) renderSetup(p pager.Setup) string {
	styles := m.theme.Styles()
	f := m.setup

	label := func(field int, text string) string {
		if f.focus == field {
			return styles.AccentText.Bold(true).Render("› " + text)
		}
		return styles.MutedText.Render("  " + text)
	}
	check := func(field int, on bool, text string) string {
		box := "[ ]"
		if on {
			box = "[x]"
		}
		return label(field, box+" "+text)
	}
	button := func(field int, text string) string {
		if f.focus == field {
			return styles.StatusStyle(statusReady).Render(text)
		}
		return styles.FaintText.Render("[" + text + "]")
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Terminal setup"))
	b.WriteString("\n\n")
	b.WriteString(label(fieldDescriptor, "Wallet descriptor"))
	b.WriteString("\n    ")
	b.WriteString(f.descriptor.View())
	b.WriteString("\n\n")
	b.WriteString(label(fieldCurrency, "Currency"))
	b.WriteString("  ")
	b.WriteString(f.currency.View())
	b.WriteString("\n\n")
	b.WriteString(check(fieldGear, f.gear, "Show settings key"))
	b.WriteString("\n")
	b.WriteString(check(fieldShowDescription, f.showDescription, "Ask for a description"))
	b.WriteString("\n\n")
	b.WriteString(button(fieldGenerate, "Generate link"))
	if p.Config != nil {
		b.WriteString("  ")
		b.WriteString(button(fieldOpen, "Open terminal"))
	}
	if f.message != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.DangerText.Render(f.message))
	}
	if m.flash != "" {
		b.WriteString("\n")
		b.WriteString(styles.WarningText.Render(m.flash))
	}

	form := styles.FocusedPanel.Render(b.String())
	if p.Config == nil {
		return form
	}

	var l strings.Builder
	l.WriteString(styles.Text.Bold(true).Render("Terminal link"))
	l.WriteString("\n\n")
	l.WriteString(styles.AccentText.Render(truncateMiddle(p.Link, 72)))
	if f.qr != "" {
		l.WriteString("\n\n")
		l.WriteString(f.qr)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, form, " ", styles.Panel.Render(l.String()))
}
