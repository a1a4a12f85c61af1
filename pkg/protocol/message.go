// Package protocol describes the text-frame conventions shared by the chat
// client and the relay.
//
// Every frame is an opaque UTF-8 string. The first client frame on a fresh
// connection carries the display name; every later client frame is chat text.
// Relay frames are display lines, already formatted by the relay.
package protocol

import (
	"fmt"
	"strings"
)

// AnonymousName is used by the relay when a client announces an empty name.
const AnonymousName = "Anonymous"

// FrameKind classifies an outbound client frame by its position on the
// connection. It is never written to the wire.
type FrameKind int

const (
	FrameHandshake FrameKind = iota
	FrameChat
)

// String returns the string representation of FrameKind
func (k FrameKind) String() string {
	switch k {
	case FrameHandshake:
		return "handshake"
	case FrameChat:
		return "chat"
	default:
		return "unknown"
	}
}

// MessageType represents the type of line the relay broadcasts
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeJoin
	MessageTypeLeave
)

// String returns the string representation of MessageType
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeText:
		return "TEXT"
	case MessageTypeJoin:
		return "JOIN"
	case MessageTypeLeave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// Message is a relay-side event rendered into a single display line.
type Message struct {
	Type    MessageType
	Sender  string
	Content string
}

// Line renders the message as the text frame the relay sends to clients.
// Unknown types degrade to a plain text line.
func (m Message) Line() string {
	switch m.Type {
	case MessageTypeJoin:
		return fmt.Sprintf("%s joined the chat", m.Sender)
	case MessageTypeLeave:
		return fmt.Sprintf("%s left the chat", m.Sender)
	default:
		return fmt.Sprintf("[%s]: %s", m.Sender, m.Content)
	}
}

// Encode returns the wire bytes of the rendered line.
func (m Message) Encode() []byte {
	return []byte(m.Line())
}

// NormalizeName trims an announced display name and substitutes
// AnonymousName when nothing is left.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return AnonymousName
	}
	return name
}
