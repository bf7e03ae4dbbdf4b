// Package channels defines the transport-neutral types for Manu's chat
// transport. The WhatsApp channel converts platform events into Event values
// carrying the raw message envelope; the pipeline only ever reads them.
package channels

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GroupServer is the JID domain suffix that marks a group conversation.
const GroupServer = "@g.us"

// StatusBroadcastJID is the pseudo-chat used for status updates. Events
// addressed to it are dropped before any processing.
const StatusBroadcastJID = "status@broadcast"

// Key identifies where an event came from and who sent it.
type Key struct {
	// RemoteJID is the chat identifier (user or group JID).
	RemoteJID string `json:"remoteJid"`

	// Participant is the sender JID inside a group chat (empty in DMs).
	Participant string `json:"participant,omitempty"`

	// FromMe is true when the event was sent by the bot's own account.
	FromMe bool `json:"fromMe"`

	// ID is the platform message identifier.
	ID string `json:"id"`
}

// IsGroup reports whether the chat id denotes a group conversation.
func (k Key) IsGroup() bool {
	return strings.HasSuffix(k.RemoteJID, GroupServer)
}

// IsStatusBroadcast reports whether the event belongs to the status
// broadcast pseudo-chat.
func (k Key) IsStatusBroadcast() bool {
	return k.RemoteJID == StatusBroadcastJID
}

// Sender returns the JID of the actual sender: the participant in groups,
// the chat id itself in direct conversations.
func (k Key) Sender() string {
	if k.IsGroup() && k.Participant != "" {
		return k.Participant
	}
	return k.RemoteJID
}

// SenderNumber returns the numeric local part of the sender JID, i.e.
// everything before the "@" domain separator. Empty input yields "".
func (k Key) SenderNumber() string {
	sender := k.Sender()
	if i := strings.Index(sender, "@"); i >= 0 {
		return sender[:i]
	}
	return sender
}

// Event is one inbound chat event. It is immutable for the duration of
// pipeline processing; the transport owns it.
type Event struct {
	// Key identifies chat, sender and message.
	Key Key

	// PushName is the sender's display name, when the platform provides one.
	PushName string

	// Timestamp is when the message was sent.
	Timestamp time.Time

	// Message is the polymorphic payload. May be nil for events that carry
	// no content (protocol noise); those are dropped by the coordinator.
	Message *Envelope
}

// Channel is the lifecycle interface every chat transport implements.
type Channel interface {
	// Name returns the channel identifier (e.g. "whatsapp").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Receive returns a Go channel that emits inbound events.
	Receive() <-chan *Event

	// IsConnected reports whether the transport is connected.
	IsConnected() bool
}

// Errors.
var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrConnectionFailed    = fmt.Errorf("failed to connect to channel")
)
