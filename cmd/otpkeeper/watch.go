package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dmitrymomot/otpkeeper"
	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
)

var (
	docStyle   = lipgloss.NewStyle().Margin(1, 2)
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true).MarginBottom(1)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("244")).
			Padding(1, 2)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true).PaddingBottom(1)

	issuerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Width(20)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(26)
	codeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).Width(10)

	expiresStyle  = lipgloss.NewStyle().Width(10)
	normalStyle   = expiresStyle.Foreground(lipgloss.Color("70"))
	warningStyle  = expiresStyle.Foreground(lipgloss.Color("214"))
	criticalStyle = expiresStyle.Foreground(lipgloss.Color("196")).Bold(true)

	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("197")).Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
)

type viewState int

const (
	viewCodes viewState = iota
	viewAdding
)

type (
	tickMsg     time.Time
	addedMsg    struct{ added otpkeeper.Added }
	errMsg      struct{ err error }
	reloadedMsg struct{ err error }
)

type watchModel struct {
	ctx     context.Context
	keeper  *otpkeeper.Keeper
	state   viewState
	entries []account.Entry
	now     time.Time
	input   textinput.Model
	notice  string
	err     error
}

func newWatchModel(ctx context.Context, k *otpkeeper.Keeper) watchModel {
	ti := textinput.New()
	ti.Placeholder = "otpauth://totp/..."
	ti.CharLimit = 512
	ti.Width = 60

	m := watchModel{ctx: ctx, keeper: k, input: ti}
	m.refresh()
	if len(m.entries) == 0 {
		m.state = viewAdding
		m.input.Focus()
	}
	return m
}

func cmdWatch(ctx context.Context, e *env, args []string) error {
	if _, err := positional(e.flags("watch"), args, 0); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newWatchModel(ctx, e.keeper),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(e.stdout),
	)
	go func() {
		err := e.keeper.WatchFile(ctx, func(err error) { p.Send(reloadedMsg{err: err}) })
		if err != nil {
			e.log.WarnContext(ctx, "live reload disabled", logger.Error(err))
		}
	}()

	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *watchModel) refresh() {
	m.now = m.keeper.Now()
	m.entries = m.keeper.Codes()
}

func (m watchModel) Init() tea.Cmd {
	if m.state == viewAdding {
		return tea.Batch(tick(), textinput.Blink)
	}
	return tick()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.state {
		case viewCodes:
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "a":
				m.state = viewAdding
				m.err, m.notice = nil, ""
				m.input.Reset()
				m.input.Focus()
				return m, textinput.Blink
			}
			return m, nil
		case viewAdding:
			switch msg.String() {
			case "ctrl+c", "esc":
				m.state = viewCodes
				m.err = nil
				m.input.Blur()
				return m, nil
			case "enter":
				return m, m.addURI(m.input.Value())
			}
		}
	case tickMsg:
		m.refresh()
		cmds = append(cmds, tick())
	case addedMsg:
		m.state = viewCodes
		m.err = nil
		m.notice = ""
		if msg.added.Duplicate() {
			m.notice = "same account was already stored"
		}
		m.input.Blur()
		m.refresh()
	case errMsg:
		m.err = msg.err
	case reloadedMsg:
		m.err = msg.err
		m.refresh()
	}

	if m.state == viewAdding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m watchModel) addURI(uri string) tea.Cmd {
	ctx, k := m.ctx, m.keeper
	return func() tea.Msg {
		added, err := k.AddURI(ctx, strings.TrimSpace(uri))
		if err != nil {
			return errMsg{err: err}
		}
		return addedMsg{added: added}
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("otpkeeper"))
	b.WriteString("\n")

	switch m.state {
	case viewCodes:
		b.WriteString(boxStyle.Render(m.table()))
		if m.err != nil {
			b.WriteString("\n" + errorStyle.Render(m.err.Error()))
		}
		if m.notice != "" {
			b.WriteString("\n" + promptStyle.Render(m.notice))
		}
		b.WriteString("\n" + helpStyle.Render("a: add account • q: quit"))
	case viewAdding:
		b.WriteString(promptStyle.Render("Paste an otpauth:// URI"))
		b.WriteString("\n\n" + m.input.View())
		if m.err != nil {
			b.WriteString("\n\n" + errorStyle.Render(m.err.Error()))
		}
		b.WriteString("\n" + helpStyle.Render("enter: add • esc: back"))
	}
	return docStyle.Render(b.String())
}

func (m watchModel) table() string {
	if len(m.entries) == 0 {
		return "No accounts yet."
	}

	rows := make([]string, 0, len(m.entries)+1)
	rows = append(rows, headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Left,
		issuerStyle.Render("ISSUER"),
		labelStyle.Render("ACCOUNT"),
		codeStyle.Render("CODE"),
		expiresStyle.Render("EXPIRES"),
	)))
	for _, e := range m.entries {
		code, expires, style := e.Code.Value, "", normalStyle
		if e.Err != nil {
			code, style = "error", criticalStyle
		} else {
			left := remainingSeconds(e.Code, m.now)
			expires = fmt.Sprintf("%ds", left)
			switch {
			case left <= 5:
				style = criticalStyle
			case left <= 10:
				style = warningStyle
			}
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			issuerStyle.Render(truncate(e.Account.Issuer, 19)),
			labelStyle.Render(truncate(e.Account.Label, 25)),
			codeStyle.Render(code),
			style.Render(expires),
		))
	}
	return strings.Join(rows, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
