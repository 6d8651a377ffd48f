package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chatdesk-ai/chatdesk/internal/bus"
)

const (
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 64
)

// OperatorCommand is a frame sent by an operator console.
type OperatorCommand struct {
	// Type is "reply" for now; unknown types are ignored.
	Type    string `json:"type"`
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	// SenderID identifies the customer conversation the reply belongs to;
	// consoles echo it from the escalation event. Falls back to ChatID.
	SenderID string `json:"sender_id,omitempty"`
	Content  string `json:"content"`
}

// Client is one connected operator console.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	send   chan bus.Event
	done   chan struct{}
}

// NewClient wraps a WebSocket connection.
func NewClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: server,
		send:   make(chan bus.Event, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// SendEvent queues an event for delivery. Slow consumers drop events rather
// than stalling the broadcast path.
func (c *Client) SendEvent(event bus.Event) {
	select {
	case c.send <- event:
	case <-c.done:
	default:
		slog.Warn("operator send queue full, dropping event", "id", c.id, "event", event.Name)
	}
}

// Run drives the read and write loops until the connection drops.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

// Close tears the connection down.
func (c *Client) Close() {
	close(c.done)
	c.conn.Close()
}

func (c *Client) writePump() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(event); err != nil {
				slog.Debug("operator write failed", "id", c.id, "error", err)
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd OperatorCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Debug("bad operator frame", "id", c.id, "error", err)
			continue
		}
		c.handleCommand(ctx, cmd)
	}
}

func (c *Client) handleCommand(ctx context.Context, cmd OperatorCommand) {
	switch cmd.Type {
	case "reply":
		if c.server.manager == nil {
			return
		}
		if err := c.server.manager.SendToChannel(ctx, cmd.Channel, cmd.ChatID, cmd.Content); err != nil {
			slog.Warn("operator reply failed", "id", c.id, "channel", cmd.Channel, "error", err)
			return
		}

		// A delivered operator reply is a human answer: feed it back through
		// the pipeline so it is paired with the customer question and picked
		// up by the next index sync.
		conversation := cmd.SenderID
		if conversation == "" {
			conversation = cmd.ChatID
		}
		c.server.bus.PublishInbound(bus.InboundMessage{
			Channel:  cmd.Channel,
			SenderID: conversation,
			ChatID:   cmd.ChatID,
			Content:  cmd.Content,
			Staff:    true,
			StaffID:  "operator:" + c.id,
			Metadata: map[string]string{"conversation": conversation},
		})
	default:
		slog.Debug("unknown operator command", "id", c.id, "type", cmd.Type)
	}
}
