// Package telegram implements the Telegram channel adapter.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"github.com/chatdesk-ai/chatdesk/internal/bus"
	"github.com/chatdesk-ai/chatdesk/internal/channels"
	"github.com/chatdesk-ai/chatdesk/internal/config"
)

// maxMessageChars is Telegram's hard limit per message.
const maxMessageChars = 4096

// Channel is the Telegram adapter. Messages from staff console chats run the
// staff-assisted pipeline; everything else is treated as a customer message.
type Channel struct {
	*channels.BaseChannel
	bot        *telego.Bot
	config     config.TelegramConfig
	staffChats map[int64]bool
	limiter    *rate.Limiter
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a Telegram channel from config.
func New(cfg config.TelegramConfig, msgBus *bus.MessageBus) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	staff := make(map[int64]bool, len(cfg.StaffChatIDs))
	for _, id := range cfg.StaffChatIDs {
		staff[id] = true
	}

	rps := cfg.RateLimitPerSecond
	if rps <= 0 {
		rps = 25 // Telegram's documented global bot limit is ~30/s
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", msgBus),
		bot:         bot,
		config:      cfg,
		staffChats:  staff,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	slog.Info("telegram bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(update.Message)
				}
			}
		}
	}()
	return nil
}

// Stop cancels long polling and waits for the receive loop to drain.
func (c *Channel) Stop(ctx context.Context) error {
	if c.pollCancel != nil {
		c.pollCancel()
	}
	c.SetRunning(false)
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return nil
}

func (c *Channel) handleMessage(message *telego.Message) {
	if message.Text == "" || message.From == nil {
		return
	}

	chatID := message.Chat.ID
	msg := bus.InboundMessage{
		SenderID: strconv.FormatInt(message.From.ID, 10),
		ChatID:   strconv.FormatInt(chatID, 10),
		Content:  message.Text,
	}
	if c.staffChats[chatID] {
		msg.Staff = true
		msg.StaffID = strconv.FormatInt(message.From.ID, 10)
	}
	if message.From.FirstName != "" {
		msg.Metadata = map[string]string{"display_name": message.From.FirstName}
	}

	c.HandleMessage(msg)
}

// Send delivers an outbound message, splitting text that exceeds Telegram's
// per-message limit. The limiter spaces sends across all chats so replies
// never trip the bot-wide rate limit.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat ID %q: %w", msg.ChatID, err)
	}

	for _, part := range splitMessage(msg.Content, maxMessageChars) {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), part)); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// splitMessage chunks text into rune-safe pieces of at most limit bytes.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	runes := []rune(text)
	var b []rune
	size := 0
	for _, r := range runes {
		rl := len(string(r))
		if size+rl > limit {
			parts = append(parts, string(b))
			b = b[:0]
			size = 0
		}
		b = append(b, r)
		size += rl
	}
	if len(b) > 0 {
		parts = append(parts, string(b))
	}
	return parts
}
