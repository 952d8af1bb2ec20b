package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ames/pkg/persist"
)

const refreshInterval = 2 * time.Second

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			PaddingRight(2)

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingRight(2)

	altRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Background(lipgloss.Color("236")).
			PaddingRight(2)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true).
			PaddingLeft(1)
)

type tickMsg time.Time

type dataMsg struct{ rows []persist.Snapshot }

type errMsg error

type dashboardModel struct {
	dbPath    string
	rows      []persist.Snapshot
	width     int
	err       error
	lastFetch time.Time
}

func newDashboardModel(dbPath string) dashboardModel {
	return dashboardModel{dbPath: dbPath}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(tick(), fetchSnapshots(m.dbPath))
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func fetchSnapshots(dbPath string) tea.Cmd {
	return func() tea.Msg {
		rows, err := loadSnapshots(dbPath)
		if err != nil {
			return errMsg(err)
		}
		return dataMsg{rows: rows}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchSnapshots(m.dbPath)
		}
		return m, nil
	case tickMsg:
		return m, tea.Batch(tick(), fetchSnapshots(m.dbPath))
	case dataMsg:
		m.rows = msg.rows
		m.err = nil
		m.lastFetch = time.Now()
		return m, nil
	case errMsg:
		m.err = msg
		return m, nil
	}
	return m, nil
}

func (m dashboardModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("  Ames Peers  "))
	sb.WriteString("\n")

	header := fmt.Sprintf("%-14s %-7s %-6s %-6s %-14s %s", "SHIP", "KNOWN", "LIFE", "RIFT", "SPONSOR", "LAST CONTACT")
	sb.WriteString(headerCellStyle.Render(header))
	sb.WriteString("\n")

	if len(m.rows) == 0 {
		sb.WriteString(dimStyle.Render("no peers recorded"))
		sb.WriteString("\n")
	}
	for i, s := range m.rows {
		sponsor := "-"
		if s.HasSponsor {
			sponsor = s.Sponsor.String()
		}
		last := "never"
		if !s.LastContact.IsZero() {
			last = s.LastContact.Format("15:04:05")
		}
		line := fmt.Sprintf("%-14s %-7v %-6d %-6d %-14s %s",
			s.Ship.String(), s.Known, s.Life, s.Rift, sponsor, last)
		if i%2 == 0 {
			sb.WriteString(rowStyle.Render(line))
		} else {
			sb.WriteString(altRowStyle.Render(line))
		}
		sb.WriteString("\n")
	}

	if m.err != nil {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else {
		status := fmt.Sprintf("db: %s  |  peers: %d  |  q: quit  r: refresh", m.dbPath, len(m.rows))
		if !m.lastFetch.IsZero() {
			status = fmt.Sprintf("%s  |  last refresh: %s", status, m.lastFetch.Format("15:04:05"))
		}
		sb.WriteString(statusBarStyle.Render(status))
	}
	return sb.String()
}
