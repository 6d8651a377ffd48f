// Package bus decouples channels, the pipeline, and the operator gateway via
// buffered in-process queues.
package bus

import (
	"context"
	"time"
)

// InboundMessage is a message received from a channel (Telegram, web, etc.).
type InboundMessage struct {
	Channel  string `json:"channel"`
	SenderID string `json:"sender_id"`
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
	// Staff marks messages from a staff console chat: these run the
	// staff-assisted pipeline or record a human reply.
	Staff    bool              `json:"staff,omitempty"`
	StaffID  string            `json:"staff_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a message to be delivered to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EscalationEvent is broadcast to operator clients when a conversation needs
// a human.
type EscalationEvent struct {
	Channel    string    `json:"channel"`
	SenderID   string    `json:"sender_id"`
	ChatID     string    `json:"chat_id"`
	Message    string    `json:"message"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Priority   string    `json:"priority"`
	Reason     string    `json:"reason"`
	// Factors carries the individual escalation signals so consoles can
	// filter and route without parsing the reason string.
	Factors map[string]bool `json:"factors,omitempty"`
	At      time.Time       `json:"at"`
}

// Event is a server-side event broadcast to operator WebSocket clients.
type Event struct {
	Name    string `json:"name"` // "escalation", "health"
	Payload any    `json:"payload,omitempty"`
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast and subscription. The gateway
// subscribes operator connections; the pipeline broadcasts escalations.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// MessageRouter routes inbound and outbound messages between channels and the
// pipeline runtime.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	ConsumeOutbound(ctx context.Context) (OutboundMessage, bool)
}
