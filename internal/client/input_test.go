package client

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		text string
		want Input
	}{
		{"", Input{Kind: InputEmpty}},
		{"hello", Input{Kind: InputChat, Text: "hello"}},
		{"  spaced  ", Input{Kind: InputChat, Text: "  spaced  "}},
		{"/quit", Input{Kind: InputCommand, Text: "/quit", Command: "/quit"}},
		{"/names please", Input{Kind: InputCommand, Text: "/names please", Command: "/names"}},
		{"//quit", Input{Kind: InputChat, Text: "/quit"}},
		{"// not a command", Input{Kind: InputChat, Text: "/ not a command"}},
		{"/", Input{Kind: InputCommand, Text: "/", Command: "/"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ParseInput(tt.text); got != tt.want {
				t.Errorf("ParseInput(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

type fakeSender struct {
	said     []string
	requests int
	closed   bool
	err      error
}

func (s *fakeSender) Say(text string) error {
	if s.err != nil {
		return s.err
	}
	s.said = append(s.said, text)
	return nil
}

func (s *fakeSender) RequestUsers() error {
	if s.err != nil {
		return s.err
	}
	s.requests++
	return nil
}

func (s *fakeSender) Close() error {
	s.closed = true
	return nil
}

type fakeDisplay struct {
	lines []string
}

func (d *fakeDisplay) AppendLine(line string) {
	d.lines = append(d.lines, line)
}

func (d *fakeDisplay) AppendLines(lines []string) {
	d.lines = append(d.lines, lines...)
}

var fixedTime = time.Date(2024, 5, 1, 9, 8, 7, 0, time.UTC)

func newTestController() (*Controller, *fakeSender, *fakeDisplay) {
	sender := &fakeSender{}
	display := &fakeDisplay{}
	c := NewController("alice", sender, display)
	c.now = func() time.Time { return fixedTime }
	return c, sender, display
}

func TestControllerSubmitChat(t *testing.T) {
	c, sender, display := newTestController()

	if c.Submit("hello") {
		t.Fatal("chat text reported quit")
	}
	if c.Submit("//help") {
		t.Fatal("escaped text reported quit")
	}
	c.Submit("")

	if want := []string{"hello", "/help"}; !reflect.DeepEqual(sender.said, want) {
		t.Errorf("sent %q, want %q", sender.said, want)
	}
	want := []string{"09:08:07  alice: hello", "09:08:07  alice: /help"}
	if !reflect.DeepEqual(display.lines, want) {
		t.Errorf("display = %q, want %q", display.lines, want)
	}
}

func TestControllerSubmitSendFailure(t *testing.T) {
	c, sender, display := newTestController()
	sender.err = errors.New("broken pipe")

	c.Submit("hello")

	if len(display.lines) != 2 || !strings.Contains(display.lines[1], "<server> message not sent: broken pipe") {
		t.Errorf("display = %q", display.lines)
	}
}

func TestControllerCommands(t *testing.T) {
	c, sender, display := newTestController()

	if c.Submit("/names") {
		t.Fatal("/names reported quit")
	}
	if sender.requests != 1 {
		t.Errorf("/names sent %d requests, want 1", sender.requests)
	}

	c.Submit("/help")
	if len(display.lines) != len(helpLines) {
		t.Fatalf("/help printed %d lines, want %d", len(display.lines), len(helpLines))
	}
	for i, line := range display.lines {
		if want := "09:08:07  " + helpLines[i]; line != want {
			t.Errorf("help line %d = %q, want %q", i, line, want)
		}
	}

	display.lines = nil
	c.Submit("/dance")
	if len(display.lines) != 1 || !strings.Contains(display.lines[0], "unknown command /dance") {
		t.Errorf("unknown command printed %q", display.lines)
	}
	if len(sender.said) != 0 {
		t.Errorf("commands leaked chat text %q", sender.said)
	}

	if !c.Submit("/quit") {
		t.Error("/quit did not report quit")
	}
	if !sender.closed {
		t.Error("/quit did not close the connection")
	}
}

func TestControllerHandleEvent(t *testing.T) {
	c, _, display := newTestController()

	tests := []struct {
		name   string
		event  Event
		line   string
		closed bool
	}{
		{"chat", EventMessage{Sender: "bob", Text: "hi"}, "09:08:07  bob: hi", false},
		{"notice", EventMessage{Text: "User <bob> has joined the room"}, "09:08:07  <server> User <bob> has joined the room", false},
		{"users", EventUsers{Users: []string{"bob", "carol"}}, "09:08:07  <server> Users online: bob carol", false},
		{"no users", EventUsers{}, "09:08:07  <server> Users online: ", false},
		{"closed", EventClosed{}, "09:08:07  <server> connection closed", true},
		{"lost", EventClosed{Err: errors.New("reset")}, "09:08:07  <server> connection lost: reset", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display.lines = nil
			if closed := c.HandleEvent(tt.event); closed != tt.closed {
				t.Errorf("HandleEvent reported closed = %v, want %v", closed, tt.closed)
			}
			if len(display.lines) != 1 || display.lines[0] != tt.line {
				t.Errorf("display = %q, want %q", display.lines, tt.line)
			}
		})
	}
}

func TestFormatMessage(t *testing.T) {
	if got := FormatMessage(fixedTime, "bob", "a  b"); got != "09:08:07  bob: a  b" {
		t.Errorf("FormatMessage = %q", got)
	}
	if got := FormatMessage(fixedTime, "", "notice"); got != "09:08:07  <server> notice" {
		t.Errorf("FormatMessage = %q", got)
	}
}
