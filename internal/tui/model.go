// Package tui is the terminal interface of the linechat client: a scrolling
// log above a single line prompt.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tyrowin/linechat/internal/client"
)

const (
	connectTimeout = 10 * time.Second
	exitDelay      = 2 * time.Second
	inputHeight    = 1
)

// Session is a joined chat connection.
type Session interface {
	client.Sender
	Events() <-chan client.Event
}

// DialFunc connects and joins the room.
type DialFunc func(ctx context.Context) (Session, error)

type state int

const (
	stateConnecting state = iota
	stateChatting
	stateExiting
)

type (
	connectedMsg     struct{ session Session }
	connectFailedMsg struct{ err error }
	eventMsg         struct{ event client.Event }
	exitMsg          struct{}
)

// Model is the bubbletea model of the chat client.
type Model struct {
	username string
	addr     string
	dial     DialFunc

	state      state
	session    Session
	controller *client.Controller
	log        *logBuffer

	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	ready     bool
}

// New creates the model for username connecting to addr through dial.
func New(username, addr string, dial DialFunc) Model {
	ti := textinput.New()
	ti.Prompt = fmt.Sprintf(" %s > ", username)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		username:  username,
		addr:      addr,
		dial:      dial,
		log:       &logBuffer{},
		textinput: ti,
		spinner:   sp,
	}
}

// NewClientDialer returns a DialFunc joining addr as username.
func NewClientDialer(addr, username string) DialFunc {
	return func(ctx context.Context) (Session, error) {
		c, err := client.Dial(ctx, addr, username)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.connect(),
	)
}

func (m Model) connect() tea.Cmd {
	dial := m.dial
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		session, err := dial(ctx)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		return connectedMsg{session: session}
	}
}

// waitForEvent reads the next event. A closed channel reads as EventClosed.
func waitForEvent(events <-chan client.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventMsg{event: client.EventClosed{}}
		}
		return eventMsg{event: ev}
	}
}

func exitLater() tea.Cmd {
	return tea.Tick(exitDelay, func(time.Time) tea.Msg { return exitMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.session != nil {
				_ = m.session.Close()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			if m.state != stateChatting {
				return m, nil
			}
			text := m.textinput.Value()
			m.textinput.Reset()
			if m.controller.Submit(text) {
				return m, tea.Quit
			}
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		height := msg.Height - inputHeight
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.textinput.Width = msg.Width - len(m.textinput.Prompt) - 1
		m.refresh()

	case spinner.TickMsg:
		if m.state != stateConnecting {
			return m, nil
		}
		var spCmd tea.Cmd
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd

	case connectedMsg:
		m.state = stateChatting
		m.session = msg.session
		m.controller = client.NewController(m.username, msg.session, m.log)
		m.log.AppendLine(client.FormatMessage(time.Now(), "", fmt.Sprintf("Joined %s as %s, type /help for commands", m.addr, m.username)))
		m.refresh()
		return m, waitForEvent(msg.session.Events())

	case connectFailedMsg:
		m.state = stateExiting
		var rejection *client.RejectionError
		if errors.As(msg.err, &rejection) {
			m.log.AppendLine(client.FormatLine(time.Now(), "Invalid username: "+rejection.Reason))
		} else {
			m.log.AppendLine(client.FormatLine(time.Now(), "Connection failed: "+msg.err.Error()))
		}
		m.refresh()
		return m, exitLater()

	case eventMsg:
		if m.controller == nil {
			return m, nil
		}
		closed := m.controller.HandleEvent(msg.event)
		m.refresh()
		if closed {
			m.state = stateExiting
			return m, exitLater()
		}
		return m, waitForEvent(m.session.Events())

	case exitMsg:
		return m, tea.Quit
	}

	if m.state == stateChatting {
		m.textinput, tiCmd = m.textinput.Update(msg)
	}
	if m.ready && scrollsLog(msg) {
		m.viewport, vpCmd = m.viewport.Update(msg)
	}
	return m, tea.Batch(tiCmd, vpCmd)
}

// scrollsLog reports whether msg belongs to the viewport. Typed keys go to
// the prompt; only page up and page down scroll the log.
func scrollsLog(msg tea.Msg) bool {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return true
	}
	return key.Type == tea.KeyPgUp || key.Type == tea.KeyPgDown
}

// refresh shows the log bottom aligned, like a terminal scrollback.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.log.render(m.viewport.Height))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.state == stateConnecting {
		return fmt.Sprintf("\n %s Connecting to %s as %s...\n", m.spinner.View(), m.addr, m.username)
	}
	if !m.ready {
		return m.log.String() + "\n" + m.textinput.View()
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.state == stateChatting {
		b.WriteString(m.textinput.View())
	}
	return b.String()
}
