package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Richiestixx/SiteRightApp/internal/viewstate"
)

// watchRow is one rendered line. Color is an optional hex accent.
type watchRow struct {
	Text  string
	Color string
}

// watchSource is a live list the watch screen follows.
type watchSource struct {
	Title    string
	Snapshot func() (viewstate.Phase, error, []watchRow)
	Changes  <-chan struct{}
}

type changedMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
)

// runWatch follows src until ctx ends or the user quits. Interactive
// terminals get a full-screen view; pipes get one plain block per update.
func runWatch(ctx context.Context, src watchSource) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return plainWatch(ctx, src)
	}
	p := tea.NewProgram(newWatchModel(ctx, src), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func plainWatch(ctx context.Context, src watchSource) error {
	for {
		phase, err, rows := src.Snapshot()
		fmt.Printf("%s  [%s]  %s\n", src.Title, phase, time.Now().Format("15:04:05"))
		if err != nil {
			fmt.Printf("! %v\n", err)
		}
		for _, row := range rows {
			fmt.Println(row.Text)
		}
		fmt.Println()
		select {
		case <-ctx.Done():
			return nil
		case <-src.Changes:
		}
	}
}

type watchModel struct {
	ctx     context.Context
	src     watchSource
	spinner spinner.Model
	phase   viewstate.Phase
	err     error
	rows    []watchRow
	updated time.Time
	width   int
	height  int
}

func newWatchModel(ctx context.Context, src watchSource) *watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = dimStyle
	m := &watchModel{ctx: ctx, src: src, spinner: s}
	m.refresh()
	return m
}

func (m *watchModel) refresh() {
	m.phase, m.err, m.rows = m.src.Snapshot()
	m.updated = time.Now()
}

func (m *watchModel) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return tea.Quit()
		case <-m.src.Changes:
			return changedMsg{}
		}
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait())
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case changedMsg:
		m.refresh()
		return m, m.wait()
	case spinner.TickMsg:
		if m.phase != viewstate.PhaseLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.src.Title))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %s  updated %s  (q to quit)", m.phase, m.updated.Format("15:04:05"))))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("! " + m.err.Error()))
		b.WriteString("\n")
	}
	switch {
	case m.phase == viewstate.PhaseLoading:
		b.WriteString(m.spinner.View() + " loading\n")
		return b.String()
	case len(m.rows) == 0:
		b.WriteString(dimStyle.Render("(empty)") + "\n")
		return b.String()
	}

	room := len(m.rows)
	if m.height > 5 && room > m.height-5 {
		room = m.height - 5
	}
	for _, row := range m.rows[:room] {
		style := lipgloss.NewStyle()
		if m.width > 0 {
			style = style.MaxWidth(m.width)
		}
		text := row.Text
		if row.Color != "" {
			text = lipgloss.NewStyle().Foreground(lipgloss.Color(row.Color)).Render("●") + " " + text
		}
		b.WriteString(style.Render(text))
		b.WriteString("\n")
	}
	if room < len(m.rows) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("... %d more", len(m.rows)-room)) + "\n")
	}
	return b.String()
}
