package chat

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chatdesk-ai/chatdesk/internal/bus"
)

// Runtime consumes inbound messages from the bus, runs the pipeline, and
// publishes replies and escalation events.
type Runtime struct {
	processor *Processor
	bus       *bus.MessageBus
	workers   int
}

// NewRuntime creates a pipeline runtime. Workers bound how many messages are
// in flight at once; the transport is expected to deliver at most one message
// per sender at a time.
func NewRuntime(processor *Processor, msgBus *bus.MessageBus, workers int) *Runtime {
	if workers <= 0 {
		workers = 4
	}
	return &Runtime{processor: processor, bus: msgBus, workers: workers}
}

// Run blocks, processing messages until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			for {
				msg, ok := r.bus.ConsumeInbound(ctx)
				if !ok {
					return ctx.Err()
				}
				r.handle(ctx, msg)
			}
		})
	}
	return g.Wait()
}

func (r *Runtime) handle(ctx context.Context, msg bus.InboundMessage) {
	// A staff message in a customer conversation is a human reply, not a
	// question for the pipeline.
	if msg.Staff && msg.Metadata["conversation"] != "" {
		if err := r.processor.ProcessStaffReply(ctx, msg.Metadata["conversation"], msg.StaffID, msg.Content); err != nil {
			slog.Warn("record staff reply failed", "staff", msg.StaffID, "error", err)
		}
		return
	}

	mode := ModeAssistant
	if msg.Staff {
		mode = ModeStaff
	}

	result := r.processor.ProcessMessage(ctx, msg.SenderID, msg.Content, mode)

	reply := result.Reply
	if mode == ModeStaff {
		reply = formatSuggestions(result)
	}
	if reply != "" {
		r.bus.PublishOutbound(bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: reply,
		})
	}

	if result.Escalation.ShouldEscalate {
		r.bus.Broadcast(bus.Event{
			Name: "escalation",
			Payload: bus.EscalationEvent{
				Channel:    msg.Channel,
				SenderID:   msg.SenderID,
				ChatID:     msg.ChatID,
				Message:    msg.Content,
				Intent:     string(result.Intent.Intent),
				Confidence: result.Confidence,
				Priority:   string(result.Escalation.Priority),
				Reason:     result.Escalation.Reason,
				Factors:    result.Escalation.Factors,
				At:         time.Now().UTC(),
			},
		})
	}
}

// formatSuggestions renders staff-mode suggestions as a numbered list for
// channels without rich UI.
func formatSuggestions(result *Result) string {
	if len(result.Suggestions) == 0 {
		return result.Reply
	}
	out := "Suggested replies:"
	for i, s := range result.Suggestions {
		out += "\n" + string(rune('1'+i)) + ". " + s.Text
	}
	return out
}
