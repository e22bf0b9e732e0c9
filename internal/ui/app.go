package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jsarenik/btcpos/internal/location"
	"github.com/jsarenik/btcpos/internal/logging"
	"github.com/jsarenik/btcpos/internal/pager"
	"github.com/jsarenik/btcpos/internal/payment"
	"github.com/jsarenik/btcpos/internal/prefs"
	"github.com/jsarenik/btcpos/internal/session"
	"github.com/jsarenik/btcpos/internal/state"
)

// Options configures the UI.
type Options struct {
	Context  context.Context
	Manager  *session.Manager
	Watcher  *payment.Watcher
	Location *location.File // nil keeps the current fragment in memory only
	// Changes delivers fragments written to the location file by other
	// processes. Nil disables external navigation.
	Changes   <-chan string
	Fragment  string
	BaseURL   string
	PrefsPath string
	ThemeName string
	LogFile   string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	manager   *session.Manager
	store     *state.Store
	watcher   *payment.Watcher
	location  *location.File
	changes   <-chan string
	baseURL   string
	prefsPath string
	logFile   string
	keys      keyMap
	log       zerolog.Logger

	// UI state
	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool
	spinner  spinner.Model
	flash    string

	// Page state
	page     pager.State
	snapshot state.Snapshot
	syncing  bool

	setup              setupForm
	description        textinput.Model
	editingDescription bool

	activity activityState

	shared   *shared
	initCmds []tea.Cmd
}

// New creates the model and performs the effects of the start-up page.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Nightfox"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	watcher := opts.Watcher
	if watcher == nil {
		watcher = payment.NewWatcher()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:         ctx,
		manager:     opts.Manager,
		store:       opts.Manager.Store(),
		watcher:     watcher,
		location:    opts.Location,
		changes:     opts.Changes,
		baseURL:     opts.BaseURL,
		prefsPath:   prefsPath,
		logFile:     opts.LogFile,
		keys:        DefaultKeyMap(),
		log:         logging.WithComponent("ui"),
		theme:       GetTheme(themeName),
		spinner:     sp,
		setup:       newSetupForm(),
		description: newDescriptionInput(),
		shared:      newShared(),
	}

	page, effects := pager.Start(opts.Fragment)
	m.page = page
	m.initCmds = append(m.initCmds, m.apply(effects))
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := append([]tea.Cmd{
		tea.EnterAltScreen,
		m.spinner.Tick,
		waitForStore(m.shared.notify),
		waitForLocation(m.changes),
	}, m.initCmds...)
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeActivity()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case storeChangedMsg:
		m.snapshot = m.store.Snapshot()
		return m, waitForStore(m.shared.notify)

	case locationMsg:
		if !msg.ok {
			return m, nil
		}
		cmd := m.dispatch(pager.FragmentChanged{Fragment: msg.fragment})
		return m, tea.Batch(cmd, waitForLocation(m.changes))

	case sessionMsg:
		cmd := m.handleSession(msg)
		return m, cmd

	case invoiceMsg:
		cmd := m.handleInvoice(msg)
		return m, cmd

	case paymentMsg:
		cmd := m.handlePayment(msg)
		return m, cmd

	case activityMsg:
		m.handleActivity(msg)
		return m, nil

	case activityTickMsg:
		if !m.activity.open {
			return m, nil
		}
		return m, tea.Batch(fetchActivityCmd(m.logFile), activityTick())
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// typing reports whether keystrokes belong to a text input.
func (m Model) typing() bool {
	switch m.page.(type) {
	case pager.Setup:
		return m.setup.typing()
	case pager.POS:
		return m.editingDescription
	}
	return false
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		cmd := m.quit()
		return m, cmd
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.activity.open {
		return m.handleActivityKey(msg)
	}

	if !m.typing() {
		switch {
		case key.Matches(msg, m.keys.Quit):
			cmd := m.quit()
			return m, cmd
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.CycleTheme):
			m.theme = GetTheme(NextTheme(m.theme.Name))
			if err := prefs.SaveTheme(m.prefsPath, m.theme.Name); err != nil {
				m.log.Warn().Err(err).Msg("save theme")
			}
			return m, nil
		case key.Matches(msg, m.keys.Activity):
			cmd := m.openActivity()
			return m, cmd
		}
	}

	m.flash = ""
	switch m.page.(type) {
	case pager.Setup:
		return m.handleSetupKey(msg)
	case pager.POS:
		return m.handlePOSKey(msg)
	case pager.Receive:
		return m.handleReceiveKey(msg)
	case pager.Error:
		return m.handleErrorKey(msg)
	}
	return m, nil
}

// quit tears down the current page before leaving.
func (m *Model) quit() tea.Cmd {
	m.manager.StopRateRefresh()
	m.shared.unsubscribe()
	m.watcher.Abandon()
	return tea.Quit
}

// dispatch feeds ev to the page state machine and performs its effects.
func (m *Model) dispatch(ev pager.Event) tea.Cmd {
	prev := m.page
	next, effects := pager.Transition(prev, ev)
	m.page = next
	m.pageChanged(prev, next)
	return m.apply(effects)
}

// pageChanged resets per-page widgets when a new page is entered.
func (m *Model) pageChanged(prev, next pager.State) {
	switch cur := next.(type) {
	case pager.Setup:
		if _, was := prev.(pager.Setup); !was {
			m.setup.reset()
		}
	case pager.POS:
		if _, was := prev.(pager.POS); !was {
			m.description.SetValue(cur.Description)
			m.description.Blur()
			m.editingDescription = false
		}
	default:
		m.editingDescription = false
	}
}

// renderMain renders header, command bar and the active page.
func (m Model) renderMain() string {
	content := m.renderPage()
	if m.activity.open {
		content = m.renderActivity()
	}
	return m.renderHeader() + "\n" + m.renderCommandBar() + "\n" + content
}

func (m Model) renderPage() string {
	switch p := m.page.(type) {
	case pager.Setup:
		return m.renderSetup(p)
	case pager.POS:
		return m.renderPOS(p)
	case pager.Receive:
		return m.renderReceive(p)
	case pager.Error:
		return m.renderError(p)
	}
	return ""
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}

const activityRefresh = 2 * time.Second
