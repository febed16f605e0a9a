package domain

import "strings"

// ChatUser is the sender of an inbound chat message.
type ChatUser struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName joins first and last name, defaulting the first name to Unknown.
func (u ChatUser) DisplayName() string {
	first := u.FirstName
	if first == "" {
		first = "Unknown"
	}
	return strings.TrimSpace(first + " " + u.LastName)
}

// ChatMessage is an outbound message to the chat group.
type ChatMessage struct {
	Text      string
	ParseMode string
}

// ParseModeHTML is the rich-text mode used for every outbound chat message.
const ParseModeHTML = "HTML"
