package domain

import "strings"

// RelayKind classifies a ticket-system event.
type RelayKind string

const (
	RelayKindReply   RelayKind = "reply"
	RelayKindComment RelayKind = "comment"
	RelayKindOther   RelayKind = "other"
)

// ClassifyEventType maps a ticket-system eventType onto a relay kind by case-sensitive
// substring. Event types are upper snake case.
func ClassifyEventType(eventType string) RelayKind {
	switch {
	case strings.Contains(eventType, "REPLY"):
		return RelayKindReply
	case strings.Contains(eventType, "COMMENT"):
		return RelayKindComment
	default:
		return RelayKindOther
	}
}

// Relayable reports whether events of this kind are pushed to chat.
func (k RelayKind) Relayable() bool {
	return k == RelayKindReply || k == RelayKindComment
}

// RelayEvent is a normalized ticket-system notification destined for chat.
type RelayEvent struct {
	Kind         RelayKind
	TicketNumber string
	Author       string
	Content      string
}
