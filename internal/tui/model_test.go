package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tyrowin/linechat/internal/client"
)

type fakeSession struct {
	said   []string
	closed bool
	events chan client.Event
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan client.Event, 8)}
}

func (s *fakeSession) Say(text string) error {
	s.said = append(s.said, text)
	return nil
}

func (s *fakeSession) RequestUsers() error { return nil }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSession) Events() <-chan client.Event { return s.events }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func newTestModel(t *testing.T, session Session, dialErr error) Model {
	t.Helper()
	m := New("alice", "localhost:32311", func(context.Context) (Session, error) {
		return session, dialErr
	})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func TestConnectingView(t *testing.T) {
	m := newTestModel(t, nil, nil)
	if view := m.View(); !strings.Contains(view, "Connecting to localhost:32311 as alice") {
		t.Errorf("connecting view = %q", view)
	}
}

func TestConnectRunsDial(t *testing.T) {
	session := newFakeSession()
	m := newTestModel(t, session, nil)

	msg := m.connect()()
	connected, ok := msg.(connectedMsg)
	if !ok {
		t.Fatalf("connect produced %T, want connectedMsg", msg)
	}
	if connected.session != session {
		t.Error("connect returned a different session")
	}
}

func TestRejectedUsername(t *testing.T) {
	m := newTestModel(t, nil, nil)

	m, cmd := update(t, m, connectFailedMsg{err: &client.RejectionError{Reason: "invalid username"}})
	if cmd == nil {
		t.Fatal("rejection did not schedule an exit")
	}
	if !strings.Contains(m.log.String(), "Invalid username: invalid username") {
		t.Errorf("log = %q", m.log.String())
	}

	_, cmd = update(t, m, exitMsg{})
	if cmd == nil {
		t.Fatal("exit message did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("exit message did not produce tea.QuitMsg")
	}
}

func TestChatFlow(t *testing.T) {
	session := newFakeSession()
	m := newTestModel(t, session, nil)

	m, cmd := update(t, m, connectedMsg{session: session})
	if cmd == nil {
		t.Fatal("connected model is not waiting for events")
	}
	if m.textinput.Prompt != " alice > " {
		t.Errorf("prompt = %q", m.textinput.Prompt)
	}

	session.events <- client.EventMessage{Sender: "bob", Text: "hello alice"}
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.log.String(), "bob: hello alice") {
		t.Errorf("log missing incoming message: %q", m.log.String())
	}

	m.textinput.SetValue("hi bob")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(session.said) != 1 || session.said[0] != "hi bob" {
		t.Errorf("sent %q, want [hi bob]", session.said)
	}
	if m.textinput.Value() != "" {
		t.Error("prompt not cleared after submit")
	}
	if !strings.Contains(m.log.String(), "alice: hi bob") {
		t.Errorf("own message not echoed: %q", m.log.String())
	}
	if !strings.Contains(m.View(), "alice: hi bob") {
		t.Error("view does not show the log")
	}

	m, cmd = update(t, m, eventMsg{event: client.EventClosed{}})
	if cmd == nil {
		t.Fatal("closed connection did not schedule an exit")
	}
	if !strings.Contains(m.log.String(), "connection closed") {
		t.Errorf("log = %q", m.log.String())
	}
}

func TestQuitCommand(t *testing.T) {
	session := newFakeSession()
	m := newTestModel(t, session, nil)
	m, _ = update(t, m, connectedMsg{session: session})

	m.textinput.SetValue("/quit")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("/quit did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("/quit did not produce tea.QuitMsg")
	}
	if !session.closed {
		t.Error("/quit did not close the session")
	}
}

func typeKeys(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestTypingDoesNotScrollLog(t *testing.T) {
	session := newFakeSession()
	m := New("alice", "localhost:32311", nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 7})
	m, _ = update(t, m, connectedMsg{session: session})

	for i := 0; i < 30; i++ {
		m.log.AppendLine(fmt.Sprintf("line %d", i))
	}
	m.refresh()
	bottom := m.viewport.YOffset
	if bottom == 0 {
		t.Fatal("log does not overflow the view")
	}

	m = typeKeys(t, m, "kkkbb jfdu")
	if m.viewport.YOffset != bottom {
		t.Errorf("typing moved the log from offset %d to %d", bottom, m.viewport.YOffset)
	}
	if got := m.textinput.Value(); got != "kkkbb jfdu" {
		t.Errorf("prompt = %q, want the typed text", got)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	if m.viewport.YOffset >= bottom {
		t.Errorf("page up left the log at offset %d", m.viewport.YOffset)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	if m.viewport.YOffset != bottom {
		t.Errorf("page down left the log at offset %d, want %d", m.viewport.YOffset, bottom)
	}
}

func TestLogRenderBottomAligned(t *testing.T) {
	b := &logBuffer{}
	b.AppendLines([]string{"one", "two"})

	if got := b.render(4); got != "\n\none\ntwo" {
		t.Errorf("render(4) = %q", got)
	}
	if got := b.render(1); got != "one\ntwo" {
		t.Errorf("render(1) = %q", got)
	}
}
