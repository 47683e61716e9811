package client

import (
	"fmt"
	"strings"
	"time"
)

const timeLayout = "15:04:05"

// FormatMessage renders a chat line as "HH:MM:SS  sender: text". An empty
// sender marks a server notice, rendered as "HH:MM:SS  <server> text".
func FormatMessage(at time.Time, sender, text string) string {
	if sender == "" {
		return FormatLine(at, "<server> "+text)
	}
	return FormatLine(at, sender+": "+text)
}

// FormatLine prefixes text with the time of day.
func FormatLine(at time.Time, text string) string {
	return fmt.Sprintf("%s  %s", at.Format(timeLayout), text)
}

// FormatUsers renders a users listing as a server notice.
func FormatUsers(at time.Time, users []string) string {
	return FormatMessage(at, "", "Users online: "+strings.Join(users, " "))
}
