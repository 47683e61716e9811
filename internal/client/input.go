package client

import (
	"strings"
	"time"
)

// InputKind classifies a submitted line.
type InputKind int

const (
	InputEmpty InputKind = iota
	InputChat
	InputCommand
)

// Input is a parsed line from the prompt.
type Input struct {
	Kind InputKind
	// Text is the chat text, or the full command line.
	Text string
	// Command is the command word, slash included, for InputCommand.
	Command string
}

// ParseInput splits prompt input into chat text and commands. A line that
// starts with a single slash is a command; a leading "//" escapes the slash
// and the rest is sent as chat with one slash removed.
func ParseInput(text string) Input {
	switch {
	case text == "":
		return Input{Kind: InputEmpty}
	case strings.HasPrefix(text, "//"):
		return Input{Kind: InputChat, Text: text[1:]}
	case strings.HasPrefix(text, "/"):
		command := text
		if fields := strings.Fields(text); len(fields) > 0 {
			command = fields[0]
		}
		return Input{Kind: InputCommand, Text: text, Command: command}
	default:
		return Input{Kind: InputChat, Text: text}
	}
}

// Sender is the outgoing half of a chat connection.
type Sender interface {
	Say(text string) error
	RequestUsers() error
	Close() error
}

// Display is the scrolling log the user reads.
type Display interface {
	AppendLine(line string)
	AppendLines(lines []string)
}

var helpLines = []string{
	">> /names - list the users online",
	">> /quit - exit the program",
	">> /help - print this",
	">> start a message with // to send a leading slash",
}

// Controller connects the prompt and the event stream to a Sender and a
// Display. It is not safe for concurrent use; a UI calls it from its own
// update loop.
type Controller struct {
	username string
	sender   Sender
	display  Display
	now      func() time.Time
}

// NewController creates a controller for the user named username.
func NewController(username string, sender Sender, display Display) *Controller {
	return &Controller{
		username: username,
		sender:   sender,
		display:  display,
		now:      time.Now,
	}
}

// Submit handles one line typed at the prompt and reports whether the user
// asked to quit.
func (c *Controller) Submit(text string) bool {
	in := ParseInput(text)
	switch in.Kind {
	case InputEmpty:
		return false
	case InputCommand:
		return c.command(in)
	}

	c.display.AppendLine(FormatMessage(c.now(), c.username, in.Text))
	if err := c.sender.Say(in.Text); err != nil {
		c.notice("message not sent: " + err.Error())
	}
	return false
}

func (c *Controller) command(in Input) bool {
	switch in.Command {
	case "/quit":
		_ = c.sender.Close()
		return true
	case "/help":
		at := c.now()
		lines := make([]string, len(helpLines))
		for i, line := range helpLines {
			lines[i] = FormatLine(at, line)
		}
		c.display.AppendLines(lines)
	case "/names":
		if err := c.sender.RequestUsers(); err != nil {
			c.notice("request failed: " + err.Error())
		}
	default:
		c.notice("unknown command " + in.Command + ", type /help for a list")
	}
	return false
}

// HandleEvent shows ev in the display and reports whether the connection
// has ended.
func (c *Controller) HandleEvent(ev Event) bool {
	switch ev := ev.(type) {
	case EventMessage:
		c.display.AppendLine(FormatMessage(c.now(), ev.Sender, ev.Text))
	case EventUsers:
		c.display.AppendLine(FormatUsers(c.now(), ev.Users))
	case EventClosed:
		if ev.Err != nil {
			c.notice("connection lost: " + ev.Err.Error())
		} else {
			c.notice("connection closed")
		}
		return true
	}
	return false
}

func (c *Controller) notice(text string) {
	c.display.AppendLine(FormatMessage(c.now(), "", text))
}
