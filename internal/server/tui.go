// ABOUTME: Terminal dashboard listing live sessions
// ABOUTME: Bubbletea model fed with periodic registry snapshots
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/resonix-audio/resonix-go/internal/version"
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{} // Signal to stop the server
	done     chan struct{}
	stopOnce sync.Once
}

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name     string
	Addr     string
	Sessions []SessionInfo
}

// SessionInfo is one dashboard row
type SessionInfo struct {
	ID        string
	Title     string
	State     string
	Loop      string
	Queued    int
	Listeners int
	Position  time.Duration
}

// tuiModel is the bubbletea model for server TUI
type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{} // Channel to signal server stop
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(
		tickEvery(),
	)
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			// Signal the server to stop
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	sessionHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	// Build the view
	var b strings.Builder

	// Title
	b.WriteString(titleStyle.Render(version.String()))
	b.WriteString("\n\n")

	// Server info
	b.WriteString(headerStyle.Render("Server: "))
	b.WriteString(valueStyle.Render(m.status.Name))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Listening: "))
	b.WriteString(valueStyle.Render(m.status.Addr))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	uptime := time.Since(m.startTime).Round(time.Second)
	b.WriteString(valueStyle.Render(uptime.String()))
	b.WriteString("\n")

	b.WriteString("\n")
	b.WriteString(sessionHeaderStyle.Render(fmt.Sprintf("Sessions (%d)", len(m.status.Sessions))))
	b.WriteString("\n\n")

	if len(m.status.Sessions) == 0 {
		b.WriteString(valueStyle.Render("  No active sessions"))
		b.WriteString("\n")
	} else {
		for _, sess := range m.status.Sessions {
			b.WriteString(fmt.Sprintf("  • %s  %s", sess.ID, sess.Title))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s, loop %s, %d queued, %d listening, %s)",
				sess.State, sess.Loop, sess.Queued, sess.Listeners, sess.Position.Round(time.Second))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewServerTUI creates the dashboard for a server
func NewServerTUI(serverName, addr string) *ServerTUI {
	t := &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	m := tuiModel{
		status: ServerStatus{
			Name: serverName,
			Addr: addr,
		},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}
	t.program = tea.NewProgram(m, tea.WithAltScreen())
	return t
}

// Start runs the TUI until Stop or a quit key
func (t *ServerTUI) Start() error {
	go func() {
		for {
			select {
			case status := <-t.updates:
				t.program.Send(statusMsg(status))
			case <-t.done:
				return
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI without blocking
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	case <-t.done:
	default:
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		t.program.Quit()
	})
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}

// refreshTUI pushes a registry snapshot to the dashboard every second
func (s *Server) refreshTUI() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tui.Update(s.snapshot())
		}
	}
}

func (s *Server) snapshot() ServerStatus {
	players := s.registry.List()
	sessions := make([]SessionInfo, 0, len(players))
	for _, p := range players {
		info := p.TrackInfo()
		title := info.Title
		if info.Author != "" {
			title = info.Author + " - " + title
		}
		sessions = append(sessions, SessionInfo{
			ID:        p.ID(),
			Title:     title,
			State:     p.State().String(),
			Loop:      p.LoopMode().String(),
			Queued:    len(p.Queue()),
			Listeners: p.Listeners(),
			Position:  time.Duration(info.PositionMs) * time.Millisecond,
		})
	}
	return ServerStatus{Name: s.config.Name, Addr: s.Addr(), Sessions: sessions}
}
